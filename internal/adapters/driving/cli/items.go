package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

var (
	itemsKind string
	itemsHard bool
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage indexed items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed items",
	RunE:  runItemsList,
}

var itemsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one item with its tags and text",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsShow,
}

var itemsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an item from the index",
	Long: `Soft-deletes an item so it no longer appears in search results.
With --hard the item and all its data are removed permanently.`,
	Args: cobra.ExactArgs(1),
	RunE: runItemsDelete,
}

func init() {
	itemsListCmd.Flags().StringVar(&itemsKind, "kind", "", "restrict to 'photo' or 'file'")
	itemsDeleteCmd.Flags().BoolVar(&itemsHard, "hard", false, "remove the item permanently")
	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsShowCmd)
	itemsCmd.AddCommand(itemsDeleteCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsList(cmd *cobra.Command, _ []string) error {
	if itemStore == nil {
		return errors.New("store not configured")
	}

	kind := domain.SourceKind(itemsKind)
	if itemsKind != "" && !kind.IsValid() {
		return fmt.Errorf("invalid --kind %q: use 'photo' or 'file'", itemsKind)
	}

	items, err := itemStore.ListItems(cmd.Context(), kind)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}
	if len(items) == 0 {
		cmd.Println("No items indexed yet.")
		return nil
	}

	for i := range items {
		item := &items[i]
		marker := ""
		if item.UserDeleted {
			marker = " (deleted)"
		}
		cmd.Printf("%s  %-5s  %s%s\n", item.ID, item.Kind, item.Title(), marker)
	}
	return nil
}

func runItemsShow(cmd *cobra.Command, args []string) error {
	if itemStore == nil {
		return errors.New("store not configured")
	}
	id := args[0]

	item, err := itemStore.GetItem(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no item with id %s", id)
		}
		return fmt.Errorf("loading item: %w", err)
	}

	cmd.Printf("ID:       %s\n", item.ID)
	cmd.Printf("Kind:     %s\n", item.Kind)
	cmd.Printf("Title:    %s\n", item.Title())
	cmd.Printf("Source:   %s\n", item.Origin.Ref())
	cmd.Printf("Status:   %s\n", item.Status)
	cmd.Printf("Indexed:  %s\n", item.IndexedAt.Format("2006-01-02 15:04:05"))
	if item.UserDeleted {
		cmd.Println("Deleted:  yes (soft)")
	}

	tags, err := itemStore.GetTags(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	if len(tags) > 0 {
		cmd.Print("Tags:     ")
		for i, tag := range tags {
			if i > 0 {
				cmd.Print(", ")
			}
			cmd.Print(tag.Label)
		}
		cmd.Println()
	}

	chunks, err := itemStore.GetChunks(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("loading text: %w", err)
	}
	if len(chunks) > 0 {
		cmd.Printf("\n%s\n", domain.Snippet(chunks[0].Content))
	}
	return nil
}

func runItemsDelete(cmd *cobra.Command, args []string) error {
	if itemStore == nil {
		return errors.New("store not configured")
	}
	id := args[0]

	if itemsHard {
		item, err := itemStore.GetItem(cmd.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no item with id %s", id)
			}
			return fmt.Errorf("loading item: %w", err)
		}
		if err := itemStore.DeleteItem(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		// Remove the library copy along with the file's index entry.
		if item.Kind == domain.SourceKindFile && fileLibrary != nil && item.Origin.LocalPath != "" {
			if err := fileLibrary.Remove(item.Origin.LocalPath); err != nil {
				cmd.PrintErrf("warning: %v\n", err)
			}
		}
		cmd.Printf("Item %s removed permanently.\n", id)
		return nil
	}

	if err := itemStore.MarkUserDeleted(cmd.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no item with id %s", id)
		}
		return fmt.Errorf("deleting item: %w", err)
	}
	cmd.Printf("Item %s hidden from search.\n", id)
	return nil
}
