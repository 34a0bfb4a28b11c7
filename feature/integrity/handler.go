package integrity

import (
	"marvin-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/device", h.HandleStructureCheck)
	group.Get("/files", h.HandleFilesCheck)
	group.Get("/library", h.HandleLibraryCheck)
}

// HandleIntegrityCheck triggers all integrity checks.
// @Summary Run All Integrity Checks
// @Description Checks the device sandbox layout, the app files and the library schema.
// @Tags integrity
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.UserContext()
	report := make(map[string]interface{})

	// Device folders
	if missing, err := h.service.CheckStructure(ctx); err != nil {
		report["device"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		report["device"] = map[string]interface{}{"status": "ok", "missing": missing}
	}

	// App files
	if files, err := h.service.CheckFiles(ctx); err != nil {
		report["files"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		report["files"] = map[string]interface{}{"status": "ok", "files": files}
	}

	// Library
	if lib, err := h.service.CheckLibrary(); err != nil {
		report["library"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		report["library"] = lib
	}

	return c.JSON(report)
}

// HandleStructureCheck checks and optionally fixes the device folders.
// @Summary Check Device Folders
// @Description Checks that the sandbox folders used for sync exist. Optionally creates the missing ones.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Create missing folders"
// @Success 200 {object} map[string]interface{} "Structure Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/device [get]
func (h *Handler) HandleStructureCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	missing, err := h.service.CheckStructure(c.UserContext())
	if err != nil {
		l.Error("Structure check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(missing) > 0 {
		l.Warn("Missing folders detected", zap.Strings("missing", missing))

		if fix {
			l.Info("Attempting to fix missing folders")
			if err := h.service.FixStructure(c.UserContext(), missing); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "Failed to fix structure",
					"details": err.Error(),
					"missing": missing,
				})
			}
			return c.JSON(fiber.Map{
				"status": "fixed",
				"fixed":  missing,
			})
		}
	}

	return c.JSON(fiber.Map{
		"status":  "checked",
		"missing": missing,
	})
}

// HandleFilesCheck reports on the app database and preferences files.
// @Summary Check App Files
// @Tags integrity
// @Produce json
// @Success 200 {object} map[string]interface{} "Files Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/files [get]
func (h *Handler) HandleFilesCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	files, err := h.service.CheckFiles(c.UserContext())
	if err != nil {
		l.Error("Files check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status": "checked",
		"files":  files,
	})
}

// HandleLibraryCheck checks the calibre library schema.
// @Summary Check Library Schema
// @Description Checks that metadata.db has the tables and columns sync reads and writes, and the configured custom fields.
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.LibraryReport "Library Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/library [get]
func (h *Handler) HandleLibraryCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting library schema check")

	report, err := h.service.CheckLibrary()
	if err != nil {
		l.Error("Library schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}
