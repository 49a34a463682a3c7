package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	configfile "github.com/davidsparrow/findmysh/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Sets a configuration value. Common keys:

  sources.photos_dir   directory holding your photos
  sources.drop_dir     intake folder for bulk file indexing
  openai.base_url      API base URL (for compatible providers)
  openai.chat_model    chat model for OCR, tagging and query parsing
  openai.embed_model   embedding model
  openai.dimensions    embedding vector size`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Set the API key",
	Long:  `Prompts for the API key without echoing it to the terminal.`,
	RunE:  runConfigSetKey,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("Config file: %s\n\n", configStore.Path())

	apiKey := configStore.GetString(configfile.KeyAPIKey)
	if apiKey != "" {
		cmd.Printf("API key:    %s\n", maskAPIKey(apiKey))
	} else {
		cmd.Println("API key:    (not set)")
	}

	printIfSet := func(label, key string) {
		if v := configStore.GetString(key); v != "" {
			cmd.Printf("%s %s\n", label, v)
		}
	}
	printIfSet("Photos dir:", configfile.KeyPhotosDir)
	printIfSet("Drop dir:  ", configfile.KeyDropDir)
	printIfSet("Base URL:  ", configfile.KeyBaseURL)
	printIfSet("Chat model:", configfile.KeyChatModel)
	printIfSet("Embeddings:", configfile.KeyEmbedModel)
	if d := configStore.GetInt(configfile.KeyDimensions); d > 0 {
		cmd.Printf("Dimensions: %d\n", d)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	key, value := args[0], args[1]

	// Integer-valued keys are stored as integers so GetInt works.
	if n, err := strconv.Atoi(value); err == nil &&
		(key == configfile.KeyDimensions || key == configfile.KeyRequestRate) {
		if err := configStore.Set(key, n); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	} else {
		if err := configStore.Set(key, value); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	cmd.Printf("Set %s.\n", key)
	return nil
}

func runConfigSetKey(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Print("API key: ")
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}

	apiKey := strings.TrimSpace(string(keyBytes))
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if err := configStore.Set(configfile.KeyAPIKey, apiKey); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	cmd.Println("API key saved.")
	return nil
}

// maskAPIKey shows only the first and last few characters.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
