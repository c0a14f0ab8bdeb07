package medinsight

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/retrieval"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Manage stored expert insights",
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import insights from a YAML file",
	Long: `Import insights from a YAML file holding a list of entries:

  - text: Check ferritin before starting IV iron.
    category: Hematology
    owner_scope: hosp-a
    medication: Iron sucrose
    lab_test: Ferritin, TSAT

Entries without owner_scope use --scope.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search insights as a user of --scope and print JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.AddCommand(importCmd, searchCmd)

	for _, c := range []*cobra.Command{importCmd, searchCmd} {
		addStoreFlags(c)
		c.Flags().String("scope", "", "Hospital scope")
	}
	searchCmd.Flags().String("category", "", "Restrict to a category")
	searchCmd.Flags().Int("top-k", 0, "Number of results (default from config)")
}

// readInsights parses a YAML list of insights, filling missing scopes.
func readInsights(path, defaultScope string) ([]retrieval.InsightInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var inputs []retrieval.InsightInput
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i := range inputs {
		if inputs[i].OwnerScope == "" {
			inputs[i].OwnerScope = defaultScope
		}
		if inputs[i].OwnerScope == "" {
			return nil, fmt.Errorf("entry %d has no owner_scope and --scope is not set", i)
		}
	}
	return inputs, nil
}

func openClient(cmd *cobra.Command) (*medinsight.Client, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, flush := newLogger(cfg)
	// Local commands run as the operator, so paths on disk are fair game.
	cfg.Modality.AllowLocalFiles = true

	client, err := medinsight.NewClientFromConfig(cmd.Context(), cfg, nil, logger)
	if err != nil {
		flush()
		return nil, nil, fmt.Errorf("failed to initialize MedInsight: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Error closing client", "error", err)
		}
		flush()
	}, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	inputs, err := readInsights(args[0], scope)
	if err != nil {
		return err
	}

	client, done, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	for i, in := range inputs {
		insight, err := client.UpsertInsight(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", insight.ID, insight.OwnerScope)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	if scope == "" {
		return medinsight.ErrMissingScope
	}
	category, _ := cmd.Flags().GetString("category")
	topK, _ := cmd.Flags().GetInt("top-k")

	client, done, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	matches := client.SearchInsights(cmd.Context(), medinsight.SearchRequest{
		Query:    args[0],
		Scope:    scope,
		Category: category,
		TopK:     topK,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(matches)
}
