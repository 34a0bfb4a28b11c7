package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"marvin-sync/core/reconcile"
	"marvin-sync/feature/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the metadata commands
	dryRunMetadata bool
	yesConfirm     bool
)

// metadataCmd is the parent command for metadata transfers.
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Transfer metadata between the library and the device",
	Long: `Plans and applies metadata writes for matched books.
Only fields with a recorded mismatch are written.`,
}

// exportCmd writes library metadata to the device.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write library metadata to the device",
	Long: `Writes library metadata (and changed covers) to the device.

Examples:
  # Show the plan only
  metadata export --dry-run

  # Export two books without prompting
  metadata export --ids 3,4 --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetadata(reconcile.Export)
	},
}

// importCmd writes device metadata into the library.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Write device metadata into the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetadata(reconcile.Import)
	},
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().BoolVar(&dryRunMetadata, "dry-run", false, "Print the plan without writing")
		c.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm writes (non-interactive)")
	}
	metadataCmd.AddCommand(exportCmd, importCmd)
	RootCmd.AddCommand(metadataCmd)
}

func runMetadata(direction reconcile.Direction) error {
	return withSession(func(ctx context.Context, s *session) error {
		// Step 1: Match (always runs)
		s.log.Info("Matching device books...")
		if _, err := s.sync.FullSync(ctx); err != nil {
			return err
		}

		// Step 2: Plan and print
		ids := targetIDs(s)
		plan := s.sync.Plan(ids, direction)
		printMetadataPlan(s.log, plan)

		if len(plan.Books) == 0 {
			s.log.Info("No metadata changes required.")
			return nil
		}
		if dryRunMetadata {
			s.log.Info("Dry-run mode: No changes were made.")
			return nil
		}
		if !confirmDestructiveAction() {
			s.log.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}

		// Step 3: Apply
		planned := make([]int64, 0, len(plan.Books))
		for _, b := range plan.Books {
			planned = append(planned, b.BookID)
		}
		progress := func(done, total int) {
			s.log.Debug("Progress", zap.Int("done", done), zap.Int("total", total))
		}

		var (
			r   *syncer.BatchReport
			err error
		)
		if direction == reconcile.Export {
			r, err = s.sync.ExportMetadata(ctx, planned, progress)
		} else {
			r, err = s.sync.ImportMetadata(ctx, planned, progress)
		}
		return logBatch(s.log, "metadata "+string(direction))(r, err)
	})
}

// printMetadataPlan prints a metadata plan using logger.
func printMetadataPlan(l *zap.Logger, plan *reconcile.Plan) {
	s := plan.Summary
	l.Info("Metadata plan",
		zap.String("direction", string(plan.Direction)),
		zap.Int("books", s.Total),
		zap.Int("mismatched", s.Mismatched),
		zap.Int("planned", s.Planned),
		zap.Int("changes", s.Changes),
		zap.Int("skipped", len(plan.Skipped)),
	)

	// Show a sample of changes (max 5 books)
	maxShow := min(5, len(plan.Books))
	for _, b := range plan.Books[:maxShow] {
		for _, c := range b.Changes {
			l.Info("Planned change",
				zap.Int64("book", b.BookID),
				zap.String("title", b.Title),
				zap.String("field", c.Field),
				zap.Any("from", c.From),
				zap.Any("to", c.To),
			)
		}
	}
	if len(plan.Books) > maxShow {
		l.Info("Additional books not shown", zap.Int("count", len(plan.Books)-maxShow))
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}
