package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"marvin-sync/core/model"
	"marvin-sync/core/report"
	"marvin-sync/feature/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	idsFlag        []int64
	modeFlag       string
	formatFlag     string
	outFlag        string
	orderFlag      string
	renameFlag     string
	deleteCollFlag bool
)

// syncCmd runs a full sync and prints the match summary.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Match device books against the library",
	Long:  `Indexes the library, scans the device and classifies every device book by match quality.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			records, err := s.sync.FullSync(ctx)
			if err != nil {
				return err
			}
			printSummary(s.log, records)
			return nil
		})
	},
}

// reportCmd writes the match report to a file or stdout.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a match report (json, yaml or pdf)",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, s *session) error {
			records, err := s.sync.FullSync(ctx)
			if err != nil {
				return err
			}
			if outFlag == "" || outFlag == "-" {
				return report.Write(os.Stdout, records, format)
			}
			f, err := os.Create(outFlag)
			if err != nil {
				return fmt.Errorf("failed to create report: %w", err)
			}
			if err := report.Write(f, records, format); err != nil {
				_ = f.Close()
				return err
			}
			s.log.Info("Report saved", zap.String("file", outFlag), zap.Int("books", len(records)))
			return f.Close()
		})
	},
}

// collectionsCmd aligns device collections with the library.
var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Export, import, synchronize or clear device collections",
	Long: `Aligns device collections with the library collections field (or tags).

Examples:
  collections --mode synchronize
  collections --mode clear --ids 3,4
  collections --rename "Sci-Fi" --to "Science Fiction"
  collections --delete "Old"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			if _, err := s.sync.FullSync(ctx); err != nil {
				return err
			}
			switch {
			case renameFlag != "":
				to, _ := cmd.Flags().GetString("to")
				return logBatch(s.log, "rename collection")(s.sync.RenameCollection(ctx, renameFlag, to))
			case deleteCollFlag:
				if len(args) != 1 {
					return fmt.Errorf("--delete takes exactly one collection name")
				}
				return logBatch(s.log, "delete collection")(s.sync.DeleteCollection(ctx, args[0]))
			}
			mode, err := syncer.ParseCollectionsMode(modeFlag)
			if err != nil {
				return err
			}
			return logBatch(s.log, "collections "+string(mode))(s.sync.UpdateCollections(ctx, targetIDs(s), mode))
		})
	},
}

// flagsCmd is the parent of the reading flag commands.
var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Set or clear reading flags (NEW, READING LIST, READ)",
}

var flagsSetCmd = &cobra.Command{
	Use:   "set FLAG...",
	Short: "Set reading flags on device books",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlags(args, (*syncer.Service).SetFlags, "set flags")
	},
}

var flagsClearCmd = &cobra.Command{
	Use:   "clear FLAG...",
	Short: "Clear reading flags on device books",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlags(args, (*syncer.Service).ClearFlags, "clear flags")
	},
}

// deleteCmd removes books from the device.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete books from the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(idsFlag) == 0 {
			return fmt.Errorf("--ids is required")
		}
		return withSession(func(ctx context.Context, s *session) error {
			if _, err := s.sync.FullSync(ctx); err != nil {
				return err
			}
			s.log.Warn("Books will be removed from the device", zap.Int64s("ids", idsFlag))
			if !confirmDestructiveAction() {
				s.log.Warn("Operation cancelled by user. No changes were made.")
				return nil
			}
			return logBatch(s.log, "delete books")(s.sync.DeleteBooks(ctx, idsFlag))
		})
	},
}

// annotationsCmd copies device highlights into the library.
var annotationsCmd = &cobra.Command{
	Use:   "annotations",
	Short: "Fetch device highlights into the annotations field",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			if _, err := s.sync.FullSync(ctx); err != nil {
				return err
			}
			return logBatch(s.log, "fetch annotations")(s.sync.FetchAnnotations(ctx, targetIDs(s)))
		})
	},
}

// deepViewCmd asks the app to prepare Deep View content.
var deepViewCmd = &cobra.Command{
	Use:   "deepview",
	Short: "Generate Deep View content, or set its sort order with --order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			if _, err := s.sync.FullSync(ctx); err != nil {
				return err
			}
			if orderFlag != "" {
				return logBatch(s.log, "deep view order")(s.sync.SetDeepViewOrder(ctx, targetIDs(s), orderFlag))
			}
			return logBatch(s.log, "generate deep view")(s.sync.GenerateDeepView(ctx, targetIDs(s)))
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{collectionsCmd, flagsSetCmd, flagsClearCmd, deleteCmd, annotationsCmd, deepViewCmd, exportCmd, importCmd} {
		c.Flags().Int64SliceVar(&idsFlag, "ids", nil, "Device book ids (default: every book)")
	}
	reportCmd.Flags().StringVarP(&formatFlag, "format", "f", "json", "Report format: json, yaml or pdf")
	reportCmd.Flags().StringVarP(&outFlag, "out", "o", "-", "Output file (- for stdout)")
	collectionsCmd.Flags().StringVar(&modeFlag, "mode", "synchronize", "export, import, synchronize or clear")
	collectionsCmd.Flags().StringVar(&renameFlag, "rename", "", "Rename this device collection")
	collectionsCmd.Flags().String("to", "", "New name for --rename")
	collectionsCmd.Flags().BoolVar(&deleteCollFlag, "delete", false, "Delete the named device collection")
	deleteCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	deepViewCmd.Flags().StringVar(&orderFlag, "order", "", "Deep View sort order")

	flagsCmd.AddCommand(flagsSetCmd, flagsClearCmd)
	RootCmd.AddCommand(syncCmd, reportCmd, collectionsCmd, flagsCmd, deleteCmd, annotationsCmd, deepViewCmd)
}

// withSession opens a session bound to SIGINT/SIGTERM and closes it after fn.
func withSession(fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// targetIDs returns --ids, or every device book when none were given.
func targetIDs(s *session) []int64 {
	if len(idsFlag) > 0 {
		return idsFlag
	}
	records := s.sync.Records()
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// parseFlagMask turns flag names (NEW, READING LIST, READ, or reading_list) into a mask.
func parseFlagMask(names []string) (model.Flags, error) {
	var mask model.Flags
	for _, n := range names {
		switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(n), "_", " ")) {
		case model.FlagNameNew:
			mask |= model.FlagNew
		case model.FlagNameReadingList:
			mask |= model.FlagReadingList
		case model.FlagNameRead:
			mask |= model.FlagRead
		default:
			return 0, fmt.Errorf("unknown flag %q", n)
		}
	}
	return mask, nil
}

func runFlags(names []string, apply func(*syncer.Service, context.Context, []int64, model.Flags) (*syncer.BatchReport, error), op string) error {
	mask, err := parseFlagMask(names)
	if err != nil {
		return err
	}
	return withSession(func(ctx context.Context, s *session) error {
		if _, err := s.sync.FullSync(ctx); err != nil {
			return err
		}
		return logBatch(s.log, op)(apply(s.sync, ctx, targetIDs(s), mask))
	})
}

// logBatch logs a batch outcome and passes its error through.
func logBatch(l *zap.Logger, op string) func(*syncer.BatchReport, error) error {
	return func(r *syncer.BatchReport, err error) error {
		if r != nil {
			l.Info("Batch finished",
				zap.String("operation", op),
				zap.Int("succeeded", len(r.Succeeded)),
				zap.Int("failed", len(r.Failed)),
			)
			failed := make([]int64, 0, len(r.Failed))
			for id := range r.Failed {
				failed = append(failed, id)
			}
			sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
			for _, id := range failed {
				l.Warn("Book failed", zap.Int64("book", id), zap.String("reason", r.Failed[id]))
			}
			for _, w := range r.Warnings {
				l.Warn("App warning", zap.String("message", w))
			}
		}
		return err
	}
}

// printSummary logs the per-quality counts of a record set.
func printSummary(l *zap.Logger, records []*model.BookRecord) {
	sum := report.Summarize(records)
	fields := []zap.Field{zap.Int("books", sum.Total), zap.Int("mismatched", sum.Mismatched)}
	for _, q := range model.AllQualities() {
		fields = append(fields, zap.Int(q.String(), sum.ByQuality[q.String()]))
	}
	l.Info("Sync report", fields...)
}
