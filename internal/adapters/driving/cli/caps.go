package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	capsPhotos int
	capsFiles  int
)

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "Show quota usage",
	RunE:  runCapsShow,
}

var capsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set per-kind indexing caps",
	RunE:  runCapsSet,
}

func init() {
	capsSetCmd.Flags().IntVar(&capsPhotos, "photos", -1, "photo cap")
	capsSetCmd.Flags().IntVar(&capsFiles, "files", -1, "file cap")
	capsCmd.AddCommand(capsSetCmd)
	rootCmd.AddCommand(capsCmd)
}

func runCapsShow(cmd *cobra.Command, _ []string) error {
	if quotaStore == nil {
		return errors.New("store not configured")
	}

	usage, err := quotaStore.Usage(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading quota: %w", err)
	}

	cmd.Printf("Photos: %d / %d (%d remaining)\n",
		usage.PhotoCount, usage.PhotoCap, usage.PhotoRemaining())
	cmd.Printf("Files:  %d / %d (%d remaining)\n",
		usage.FileCount, usage.FileCap, usage.FileRemaining())
	return nil
}

func runCapsSet(cmd *cobra.Command, _ []string) error {
	if quotaStore == nil {
		return errors.New("store not configured")
	}

	usage, err := quotaStore.Usage(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading quota: %w", err)
	}

	photoCap := usage.PhotoCap
	fileCap := usage.FileCap
	if cmd.Flags().Changed("photos") {
		photoCap = capsPhotos
	}
	if cmd.Flags().Changed("files") {
		fileCap = capsFiles
	}

	if err := quotaStore.SetCaps(cmd.Context(), photoCap, fileCap); err != nil {
		return fmt.Errorf("setting caps: %w", err)
	}
	cmd.Printf("Caps updated: %d photos, %d files.\n", photoCap, fileCap)
	return nil
}
