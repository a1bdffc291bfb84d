package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd, statsCmd, knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)

	knowledgeSearchCmd.Flags().Int("limit", 5, "maximum results")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend service health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := backendClient().Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		fmt.Printf("Status: %s\n", health.Status)
		if len(health.Services) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for name, state := range health.Services {
				fmt.Fprintf(w, "  %s\t%s\n", name, state)
			}
			w.Flush()
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show platform incident statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := backendClient().Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}

		fmt.Printf("Incidents: %d total, %d unresolved, %d resolved\n",
			stats.Incidents.Total, stats.Incidents.Unresolved, stats.Incidents.Resolved)
		fmt.Printf("Resolution rate: %.1f%%\n", stats.ResolutionRate*100)
		return nil
	},
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Query the incident knowledge base",
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find past incidents similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		query := args[0]
		for _, arg := range args[1:] {
			query += " " + arg
		}

		res, err := backendClient().SearchKnowledge(cmd.Context(), query, limit)
		if err != nil {
			return fmt.Errorf("search knowledge base: %w", err)
		}

		if res.Count == 0 {
			fmt.Println("No similar incidents found.")
			return nil
		}
		for _, sim := range res.Results {
			fmt.Printf("%s (%.0f%% similar)\n", sim.IncidentID, sim.Similarity*100)
			fmt.Printf("  error: %s\n", sim.ErrorMessage)
			fmt.Printf("  cause: %s\n", sim.RootCause)
			if sim.Fix != "" {
				fmt.Printf("  fix:   %s\n", sim.Fix)
			}
		}
		return nil
	},
}
