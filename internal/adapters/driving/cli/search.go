package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

var (
	searchKind  string
	searchDate  string
	searchFrom  string
	searchTo    string
	searchLevel int
	searchSmart bool
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed photos and files by meaning",
	Long: `Embeds the query and ranks indexed items by semantic similarity.
The association level controls how loose a match may be: 0 returns only
near-exact matches, 3 casts the widest net.

With --smart the query is first interpreted by the model, so phrases
like "tax documents from last march" become structured filters.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "restrict to 'photo' or 'file'")
	searchCmd.Flags().StringVar(&searchDate, "date", "", "date predicate: on, after, before or range")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "date bound (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "upper date bound for --date range (YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchLevel, "level", "l", 1, "association level 0-3")
	searchCmd.Flags().BoolVar(&searchSmart, "smart", false, "let the model interpret the query")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("model gateway not configured, run 'findmysh config set-key' first")
	}

	filters, err := buildFilters(cmd, args[0])
	if err != nil {
		return err
	}

	results, err := searchService.Search(cmd.Context(), filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func buildFilters(cmd *cobra.Command, query string) (domain.SearchFilters, error) {
	filters := domain.SearchFilters{
		Query: query,
		Level: domain.AssociationLevel(searchLevel),
	}

	if searchSmart {
		parsed, err := searchService.ParseQuery(cmd.Context(), query)
		if err != nil {
			return domain.SearchFilters{}, fmt.Errorf("interpreting query: %w", err)
		}
		filters = parsed
		// Explicit flags still win over the model's interpretation.
		if cmd.Flags().Changed("level") {
			filters.Level = domain.AssociationLevel(searchLevel)
		}
	}

	if searchKind != "" {
		kind := domain.SourceKind(searchKind)
		if !kind.IsValid() {
			return filters, fmt.Errorf("invalid --kind %q: use 'photo' or 'file'", searchKind)
		}
		filters.Kind = kind
	}

	if searchDate != "" {
		op := domain.DateOp(searchDate)
		if !op.IsValid() || op == domain.DateOpNone {
			return filters, fmt.Errorf("invalid --date %q: use on, after, before or range", searchDate)
		}
		filters.DateOp = op

		from, err := parseDateFlag(searchFrom, "--from")
		if err != nil {
			return filters, err
		}
		if from == nil {
			return filters, errors.New("--date requires --from")
		}
		filters.From = from

		if op == domain.DateOpRange {
			to, err := parseDateFlag(searchTo, "--to")
			if err != nil {
				return filters, err
			}
			if to == nil {
				return filters, errors.New("--date range requires --to")
			}
			filters.To = to
		}
	}

	return filters, nil
}

func parseDateFlag(value, flag string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: use YYYY-MM-DD", flag, value)
	}
	return &t, nil
}

func outputSearchJSON(cmd *cobra.Command, results domain.SearchResults) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results domain.SearchResults) error {
	if len(results.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Found %d results (%d photos, %d files):\n\n",
		len(results.Results), results.Counts.Photos, results.Counts.Files)

	for i, r := range results.Results {
		cmd.Printf("[%d] %s (%s, score %.3f)\n", i+1, r.Title, r.Kind, r.Score)
		if r.Snippet != "" {
			cmd.Printf("    %s\n", r.Snippet)
		}
		cmd.Printf("    %s\n", r.Origin.Ref())
	}
	return nil
}
