package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Remove index entries whose source has disappeared",
	Long: `Re-checks every indexed photo against the photo directory and every
file against its library copy, purging entries whose source is gone.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	if refreshService == nil {
		return errors.New("refresh service not configured")
	}

	stats, err := refreshService.Refresh(cmd.Context(), func(p domain.RefreshProgress) {
		switch p.Phase {
		case domain.RefreshCheckingPhotos:
			if p.Total > 0 {
				cmd.Printf("\rChecking photos %d/%d", p.Processed, p.Total)
			}
		case domain.RefreshCheckingFiles:
			if p.Total > 0 {
				cmd.Printf("\rChecking files %d/%d ", p.Processed, p.Total)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	cmd.Printf("\rRefresh complete: removed %d photos and %d files.\n",
		stats.PhotosRemoved, stats.FilesRemoved)
	return nil
}
