package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marvin-sync/core/loader"
	"marvin-sync/core/logger"
	"marvin-sync/core/middleware/auth"
	"marvin-sync/core/middleware/rayid"
	"marvin-sync/feature/integrity"
	"marvin-sync/feature/syncer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "marvin-sync/docs/swagger"
)

// @title marvin-sync API
// @version 1.0
// @description Matches Marvin reader books against a calibre library.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP bridge",
	Long:  `Opens the library and the device, then serves the sync and integrity features over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		zap.ReplaceGlobals(s.log)

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           s.cfg.Server.ReadTimeout(),
		})

		mgr := loader.NewManager(s.log)
		mgr.Register(syncer.NewFeature(s.sync))
		mgr.Register(integrity.NewFeature(s.fs, s.store.DB(), integrity.NewLayout(s.cfg.Device.AppConfig(), s.cfg.Protocol, s.cfg.Sync), s.log))

		// RayID first so every log line carries it
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(s.log, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger documentation stays public
		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Use(auth.New(auth.Config{ApiKey: s.cfg.Server.ApiKey}))

		if err := mgr.LoadAll(app); err != nil {
			return fmt.Errorf("failed to load features: %w", err)
		}

		errc := make(chan error, 1)
		go func() {
			s.log.Info("Starting server", zap.String("address", s.cfg.Server.Address()))
			errc <- app.Listen(s.cfg.Server.Address())
		}()

		select {
		case err := <-errc:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}
		s.log.Info("Shutting down server...")
		return app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
