package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

var (
	indexPhotos        bool
	indexFiles         bool
	indexRequirePhotos bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index photos and files up to the remaining quota",
	Long: `Runs a bulk ingestion: enumerates the configured photo directory and
drop folder, then extracts text, generates tags, embeds and saves each
item. Interrupt with Ctrl-C to stop after the in-flight item; everything
already saved stays searchable.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexPhotos, "photos", true, "include photos")
	indexCmd.Flags().BoolVar(&indexFiles, "files", true, "include the drop folder")
	indexCmd.Flags().BoolVar(&indexRequirePhotos, "require-photos", false,
		"fail the run if photo access is denied")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexerService == nil {
		return errors.New("model gateway not configured, run 'findmysh config set-key' first")
	}
	if !indexPhotos && !indexFiles {
		return errors.New("nothing to index: both --photos and --files disabled")
	}

	unsubscribe := indexerService.Subscribe(printProgress(cmd))
	defer unsubscribe()

	// Ctrl-C requests cooperative cancellation, the in-flight item finishes.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			cmd.Println("\nStopping after the current item...")
			indexerService.Cancel()
		}
	}()

	opts := domain.IngestOptions{
		IncludePhotos: indexPhotos,
		IncludeFiles:  indexFiles,
		RequirePhotos: indexRequirePhotos,
	}
	// Cancellation is cooperative: the signal handler above flips the
	// cancel flag and the in-flight item runs to completion, so the run
	// context must survive Ctrl-C.
	if err := indexerService.Start(context.WithoutCancel(cmd.Context()), opts); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	return nil
}

// printProgress renders progress updates: state changes on their own
// line, per-item ticks as a counter.
func printProgress(cmd *cobra.Command) func(domain.IngestProgress) {
	var lastState domain.IndexState
	return func(p domain.IngestProgress) {
		switch p.State {
		case domain.StateComplete:
			cmd.Printf("\rDone: %d/%d items processed.\n", p.ProcessedCount, p.TotalCount)
		case domain.StateError:
			cmd.Printf("\rRun failed: %s\n", p.Error)
		case domain.StateErrorItem:
			cmd.Printf("\rItem failed: %s (continuing)\n", p.Error)
		case domain.StateEnumerating, domain.StateRequestingPermissions:
			if p.State != lastState {
				cmd.Printf("%s...\n", stateLabel(p.State))
			}
		default:
			if p.TotalCount > 0 {
				cmd.Printf("\r%s %d/%d (%.0f%%)", stateLabel(p.State),
					p.ProcessedCount, p.TotalCount, p.Progress*100)
			}
		}
		lastState = p.State
	}
}

func stateLabel(s domain.IndexState) string {
	switch s {
	case domain.StateRequestingPermissions:
		return "Requesting photo access"
	case domain.StateEnumerating:
		return "Enumerating sources"
	case domain.StateProcessingPhotos:
		return "Processing photos"
	case domain.StateProcessingFilesIntake:
		return "Processing files"
	case domain.StateCopyingToLibrary:
		return "Copying"
	case domain.StateExtractingText:
		return "Extracting text"
	case domain.StateTagging:
		return "Tagging"
	case domain.StateEmbedding:
		return "Embedding"
	case domain.StateSaving:
		return "Saving"
	default:
		return string(s)
	}
}
