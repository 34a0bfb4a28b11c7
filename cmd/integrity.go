package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"marvin-sync/core/config"
	"marvin-sync/core/database"
	"marvin-sync/core/devicefs"
	"marvin-sync/core/logger"
	"marvin-sync/feature/integrity"
	"marvin-sync/feature/library"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixFlag bool

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check the device sandbox and the library schema",
	Long:  `Checks that the device sandbox has the folders and files the app exchange needs, and that the library has the expected schema and custom fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, true)
	},
}

// deviceIntegrityCmd represents the integrity device command
var deviceIntegrityCmd = &cobra.Command{
	Use:   "device",
	Short: "Check and fix the device folder structure",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, false)
	},
}

// libraryIntegrityCmd represents the integrity library command
var libraryIntegrityCmd = &cobra.Command{
	Use:   "library",
	Short: "Check the library schema and custom fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, true)
	},
}

func init() {
	deviceIntegrityCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create missing folders")
	integrityCmd.AddCommand(deviceIntegrityCmd, libraryIntegrityCmd)
	RootCmd.AddCommand(integrityCmd)
}

func runIntegrityChecks(ctx context.Context, runStructure, runFiles, runLibrary bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Sync()

	// Device and library are both optional; a check without its backend reports an error
	var fs devicefs.FS
	if dev, err := openDevice(ctx, cfg); err != nil {
		logg.Warn("Device unavailable", zap.Error(err))
	} else {
		fs = dev
	}

	var db *gorm.DB
	if conn, err := database.Connect(database.Config{
		Driver:         "sqlite",
		Path:           filepath.Join(cfg.Library.Root, library.MetadataFile),
		ReadOnly:       true,
		TimeoutSeconds: cfg.Library.TimeoutSeconds,
	}); err != nil {
		logg.Warn("Library unavailable", zap.Error(err))
	} else {
		db = conn
		defer database.Close(db)
	}

	layout := integrity.NewLayout(cfg.Device.AppConfig(), cfg.Protocol, cfg.Sync)
	svc := integrity.NewService(fs, db, layout, logg)
	failed := false

	if runStructure {
		logg.Info("Checking device folder structure...")
		missing, err := svc.CheckStructure(ctx)
		switch {
		case err != nil:
			logg.Error("Structure check failed", zap.Error(err))
			failed = true
		case len(missing) == 0:
			logg.Info("Structure is intact.")
		default:
			logg.Warn("Missing folders detected", zap.Strings("missing", missing))
			if fixFlag {
				logg.Info("Fixing missing folders...")
				if err := svc.FixStructure(ctx, missing); err != nil {
					return fmt.Errorf("failed to fix structure: %w", err)
				}
				logg.Info("Structure fixed successfully.")
			} else {
				logg.Info("Run 'integrity device --fix' to create missing folders.")
				failed = true
			}
		}
	}

	if runFiles {
		logg.Info("Checking device files...")
		reports, err := svc.CheckFiles(ctx)
		if err != nil {
			logg.Error("File check failed", zap.Error(err))
			failed = true
		} else {
			for _, r := range reports {
				switch {
				case !r.Exists:
					logg.Warn("Missing file", zap.String("path", r.Path))
					failed = true
				case r.Empty:
					logg.Warn("Empty file", zap.String("path", r.Path))
					failed = true
				default:
					logg.Info("File present", zap.String("path", r.Path), zap.Int64("size", r.Size))
				}
			}
		}
	}

	if runLibrary {
		logg.Info("Checking library schema...", zap.String("root", cfg.Library.Root))
		report, err := svc.CheckLibrary()
		if err != nil {
			logg.Error("Library schema check failed", zap.Error(err))
			failed = true
		} else if report.Matched {
			logg.Info("Library schema matches expected definition.")
		} else {
			failed = true
			logg.Warn("Library schema mismatches found")
			for table, tbl := range report.Tables {
				if tbl.Status != "ok" {
					logg.Warn("Missing Columns", zap.String("table", table), zap.String("status", tbl.Status), zap.Strings("columns", tbl.MissingColumns))
				}
			}
			if len(report.Fields.Missing) > 0 {
				logg.Warn("Missing custom fields", zap.Strings("fields", report.Fields.Missing))
			}
			for _, e := range report.Errors {
				logg.Error("Inspection Error", zap.String("error", e))
			}
		}
	}

	if failed {
		return fmt.Errorf("integrity checks failed")
	}
	return nil
}
