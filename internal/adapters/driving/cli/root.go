// Package cli implements the findmysh command-line interface.
package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/davidsparrow/findmysh/internal/adapters/driven/catalog/filesystem"
	configfile "github.com/davidsparrow/findmysh/internal/adapters/driven/config/file"
	"github.com/davidsparrow/findmysh/internal/adapters/driven/model/openai"
	"github.com/davidsparrow/findmysh/internal/adapters/driven/storage/sqlite"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
	"github.com/davidsparrow/findmysh/internal/core/services"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// Services wired at startup. Commands check for nil and report what is
// missing, so `findmysh config` works before anything is configured.
var (
	configStore    driven.ConfigStore
	vectorStore    *sqlite.Store
	itemStore      driven.VectorStore
	quotaStore     driven.QuotaStore
	modelGateway   driven.ModelGateway
	fileLibrary    driven.FileLibrary
	indexerService driving.Indexer
	searchService  driving.SearchService
	refreshService driving.Refresher
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "findmysh",
	Short: "Semantic search over your photos and files",
	Long: `findmysh indexes your photos and files on-device and lets you find
them by meaning, not just by name. Items are tagged and embedded through
a model gateway; search ranks by semantic similarity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with the given context, so
// long-running commands stop on SIGINT/SIGTERM.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// initServices builds the adapter stack from configuration. Services
// needing the model gateway stay nil until an API key is configured.
func initServices() error {
	if configStore != nil {
		// Already wired, e.g. by a test.
		return nil
	}

	cfg, err := configfile.NewConfigStore("")
	if err != nil {
		return err
	}
	configStore = cfg

	store, err := sqlite.NewStore(cfg.GetString(configfile.KeyDataDir))
	if err != nil {
		return err
	}
	vectorStore = store
	itemStore = store
	quotaStore = store

	library, err := filesystem.NewFileLibrary(libraryDir(store))
	if err != nil {
		return err
	}
	fileLibrary = library

	photos := filesystem.NewPhotoCatalog(cfg.GetString(configfile.KeyPhotosDir))
	drop := filesystem.NewDropFolder(cfg.GetString(configfile.KeyDropDir))

	refreshService = services.NewRefreshService(store, photos, library, store)

	apiKey := cfg.GetString(configfile.KeyAPIKey)
	if apiKey == "" {
		logger.Debug("no API key configured, model-backed commands unavailable")
		return nil
	}

	gateway, err := openai.NewGateway(openai.Config{
		APIKey:      apiKey,
		BaseURL:     cfg.GetString(configfile.KeyBaseURL),
		ChatModel:   cfg.GetString(configfile.KeyChatModel),
		EmbedModel:  cfg.GetString(configfile.KeyEmbedModel),
		Dimensions:  cfg.GetInt(configfile.KeyDimensions),
		RequestRate: float64(cfg.GetInt(configfile.KeyRequestRate)),
	})
	if err != nil {
		return err
	}
	modelGateway = gateway

	indexerService = services.NewIngestionPipeline(store, gateway, store, photos, drop, library)
	searchService = services.NewRetrievalEngine(store, gateway)
	return nil
}

// libraryDir places the file library next to the database.
func libraryDir(store *sqlite.Store) string {
	return filepath.Join(filepath.Dir(store.Path()), "files")
}

func closeServices() {
	if modelGateway != nil {
		modelGateway.Close() //nolint:errcheck
	}
	if vectorStore != nil {
		vectorStore.Close() //nolint:errcheck
	}
}
