package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Index specific files",
	Long: `Copies the given files into the private library and indexes them.
Files beyond the remaining quota are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errors.New("model gateway not configured, run 'findmysh config set-key' first")
	}

	paths := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", arg, err)
		}
		paths = append(paths, abs)
	}

	unsubscribe := indexerService.Subscribe(printProgress(cmd))
	defer unsubscribe()

	if err := indexerService.AddFiles(cmd.Context(), paths); err != nil {
		return fmt.Errorf("adding files failed: %w", err)
	}
	return nil
}
