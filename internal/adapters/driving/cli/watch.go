package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/davidsparrow/findmysh/internal/adapters/driven/config/file"
	"github.com/davidsparrow/findmysh/internal/adapters/driving/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drop folder and index new files as they arrive",
	Long: `Monitors the configured drop folder (sources.drop_dir) and indexes
each new file automatically, up to the remaining quota. Runs until
interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if indexerService == nil {
		return errors.New("model gateway not configured, run 'findmysh config set-key' first")
	}

	dir := configStore.GetString(configfile.KeyDropDir)
	if dir == "" {
		return errors.New("no drop folder configured, run 'findmysh config set sources.drop_dir <dir>'")
	}

	unsubscribe := indexerService.Subscribe(printProgress(cmd))
	defer unsubscribe()

	err := watch.NewWatcher(dir, indexerService).Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}
