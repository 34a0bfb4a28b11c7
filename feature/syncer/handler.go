package syncer

import (
	"context"
	"errors"
	"net/http"

	"marvin-sync/core/logger"
	"marvin-sync/core/model"
	"marvin-sync/core/protocol"
	"marvin-sync/core/reconcile"
	"marvin-sync/feature/device"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// IDsRequest selects device books.
type IDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// PlanRequest previews a metadata transfer.
type PlanRequest struct {
	IDs       []int64 `json:"ids" validate:"required,min=1"`
	Direction string  `json:"direction" validate:"required,oneof=export import"`
}

// CollectionsRequest updates collections of device books.
type CollectionsRequest struct {
	IDs  []int64 `json:"ids" validate:"required,min=1"`
	Mode string  `json:"mode" validate:"required,oneof=export import synchronize clear"`
}

// FlagsRequest sets or clears reading flags. Mask bits: 1 read, 2 reading
// list, 4 new.
type FlagsRequest struct {
	IDs  []int64 `json:"ids" validate:"required,min=1"`
	Mask int     `json:"mask" validate:"required,min=1,max=7"`
}

// MaintenanceRequest renames or deletes a device collection.
type MaintenanceRequest struct {
	Action  string `json:"action" validate:"required,oneof=rename delete"`
	Name    string `json:"name" validate:"required"`
	NewName string `json:"new_name" validate:"required_if=Action rename"`
}

// DeepViewOrderRequest selects the Deep View sort order.
type DeepViewOrderRequest struct {
	IDs   []int64 `json:"ids" validate:"required,min=1"`
	Order string  `json:"order" validate:"required"`
}

// Handler exposes a sync session over HTTP.
type Handler struct {
	service *Service
	binder  *binder
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, binder: newBinder()}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleFullSync)
	group.Get("/books", h.HandleListBooks)
	group.Get("/books/:id", h.HandleGetBook)
	group.Get("/summary", h.HandleSummary)
	group.Get("/app", h.HandleAppInfo)
	group.Post("/plan", h.HandlePlan)
	group.Post("/metadata/export", h.HandleExportMetadata)
	group.Post("/metadata/import", h.HandleImportMetadata)
	group.Post("/collections", h.HandleUpdateCollections)
	group.Post("/collections/maintenance", h.HandleMaintainCollection)
	group.Post("/flags/set", h.HandleSetFlags)
	group.Post("/flags/clear", h.HandleClearFlags)
	group.Post("/books/delete", h.HandleDeleteBooks)
	group.Post("/annotations", h.HandleFetchAnnotations)
	group.Post("/deepview", h.HandleGenerateDeepView)
	group.Post("/deepview/order", h.HandleSetDeepViewOrder)
	group.Post("/disconnect", h.HandleDisconnect)
}

// HandleFullSync scans the device and matches it against the library.
// @Summary Full sync
// @Tags sync
// @Produce json
// @Success 200 {array} model.BookRecord
// @Failure 500 {object} map[string]string
// @Router /sync [post]
func (h *Handler) HandleFullSync(c *fiber.Ctx) error {
	records, err := h.service.FullSync(c.UserContext())
	if err != nil {
		return h.fail(c, "Full sync failed", err)
	}
	return c.JSON(records)
}

// HandleListBooks returns the current records.
func (h *Handler) HandleListBooks(c *fiber.Ctx) error {
	return c.JSON(h.service.Records())
}

// HandleGetBook returns one record.
func (h *Handler) HandleGetBook(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid book id"})
	}
	rec, ok := h.service.Record(int64(id))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrUnknownBook.Error()})
	}
	return c.JSON(rec)
}

// HandleSummary counts records per match quality.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	return c.JSON(h.service.Summary())
}

// HandleAppInfo reports the installed app version.
func (h *Handler) HandleAppInfo(c *fiber.Ctx) error {
	info, err := h.service.AppInfo(c.UserContext())
	if err != nil {
		return h.fail(c, "App info unreadable", err)
	}
	return c.JSON(info)
}

// HandlePlan previews a metadata export or import.
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	var req PlanRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(h.service.Plan(req.IDs, reconcile.Direction(req.Direction)))
}

// HandleExportMetadata writes desktop metadata to the device.
func (h *Handler) HandleExportMetadata(c *fiber.Ctx) error {
	return h.withIDs(c, "Metadata export failed", func(ctx context.Context, ids []int64) (*BatchReport, error) {
		return h.service.ExportMetadata(ctx, ids, h.progress(c, "export"))
	})
}

// HandleImportMetadata writes device metadata into the library.
func (h *Handler) HandleImportMetadata(c *fiber.Ctx) error {
	return h.withIDs(c, "Metadata import failed", func(ctx context.Context, ids []int64) (*BatchReport, error) {
		return h.service.ImportMetadata(ctx, ids, h.progress(c, "import"))
	})
}

// HandleUpdateCollections aligns device and desktop collections.
func (h *Handler) HandleUpdateCollections(c *fiber.Ctx) error {
	var req CollectionsRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	report, err := h.service.UpdateCollections(c.UserContext(), req.IDs, CollectionsMode(req.Mode))
	return h.respond(c, "Collections update failed", report, err)
}

// HandleMaintainCollection renames or deletes a device collection.
func (h *Handler) HandleMaintainCollection(c *fiber.Ctx) error {
	var req MaintenanceRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	if model.IsFlagName(req.Name) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reserved collection name"})
	}

	var (
		report *BatchReport
		err    error
	)
	if req.Action == "rename" {
		report, err = h.service.RenameCollection(c.UserContext(), req.Name, req.NewName)
	} else {
		report, err = h.service.DeleteCollection(c.UserContext(), req.Name)
	}
	return h.respond(c, "Collection maintenance failed", report, err)
}

// HandleSetFlags sets reading flags.
func (h *Handler) HandleSetFlags(c *fiber.Ctx) error {
	return h.flags(c, h.service.SetFlags)
}

// HandleClearFlags clears reading flags.
func (h *Handler) HandleClearFlags(c *fiber.Ctx) error {
	return h.flags(c, h.service.ClearFlags)
}

func (h *Handler) flags(c *fiber.Ctx, apply func(context.Context, []int64, model.Flags) (*BatchReport, error)) error {
	var req FlagsRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	report, err := apply(c.UserContext(), req.IDs, model.Flags(req.Mask))
	return h.respond(c, "Flag update failed", report, err)
}

// HandleDeleteBooks removes books from the device.
func (h *Handler) HandleDeleteBooks(c *fiber.Ctx) error {
	return h.withIDs(c, "Delete failed", h.service.DeleteBooks)
}

// HandleFetchAnnotations imports highlights into the library.
func (h *Handler) HandleFetchAnnotations(c *fiber.Ctx) error {
	return h.withIDs(c, "Annotations fetch failed", h.service.FetchAnnotations)
}

// HandleGenerateDeepView asks the app to build Deep View data.
func (h *Handler) HandleGenerateDeepView(c *fiber.Ctx) error {
	return h.withIDs(c, "Deep View generation failed", h.service.GenerateDeepView)
}

// HandleSetDeepViewOrder sets the Deep View sort order.
func (h *Handler) HandleSetDeepViewOrder(c *fiber.Ctx) error {
	var req DeepViewOrderRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	report, err := h.service.SetDeepViewOrder(c.UserContext(), req.IDs, req.Order)
	return h.respond(c, "Deep View order failed", report, err)
}

// HandleDisconnect ends the session.
func (h *Handler) HandleDisconnect(c *fiber.Ctx) error {
	if err := h.service.Disconnect(); err != nil {
		return h.fail(c, "Disconnect failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) withIDs(c *fiber.Ctx, msg string, fn func(context.Context, []int64) (*BatchReport, error)) error {
	var req IDsRequest
	if err := h.binder.Bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	report, err := fn(c.UserContext(), req.IDs)
	return h.respond(c, msg, report, err)
}

func (h *Handler) progress(c *fiber.Ctx, op string) Progress {
	l := logger.WithRayID(h.service.logger, c)
	return func(done, total int) {
		l.Debug("Batch progress", zap.String("op", op), zap.Int("done", done), zap.Int("total", total))
	}
}

// respond writes the report. A failed command still returns the per-book
// outcome next to the error.
func (h *Handler) respond(c *fiber.Ctx, msg string, report *BatchReport, err error) error {
	if err == nil {
		return c.JSON(report)
	}
	if report == nil {
		return h.fail(c, msg, err)
	}
	logger.WithRayID(h.service.logger, c).Error(msg, zap.Error(err))
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":  err.Error(),
		"report": report,
	})
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	l := logger.WithRayID(h.service.logger, c)
	if status >= http.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Warn(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var se *SyncError
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, protocol.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, protocol.ErrCancelled), errors.Is(err, device.ErrUserAborted):
		return fiber.StatusConflict
	case errors.As(err, &se):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}
