package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(analysesCmd)
	analysesCmd.AddCommand(analysesListCmd, analysesShowCmd)

	analysesListCmd.Flags().Int("limit", 10, "maximum analyses to fetch")
}

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Browse analyses persisted by the backend",
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := backendClient().ListAnalyses(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list analyses: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No analyses found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tINCIDENT\tSTATUS\tCONFIDENCE\tWHEN\tROOT CAUSE")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
				shortID(rec.ID),
				rec.IssueID,
				rec.Status,
				rec.Confidence*100,
				formatAge(rec.CreatedAt),
				truncate(rec.RootCause, 60),
			)
		}
		return w.Flush()
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show one persisted analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := backendClient().GetAnalysis(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get analysis: %w", err)
		}

		fmt.Printf("Analysis %s for incident %s\n", rec.ID, rec.IssueID)
		fmt.Printf("Status: %s\n", rec.Status)
		fmt.Printf("Root cause (%.0f%% confidence): %s\n", rec.Confidence*100, rec.RootCause)
		if rec.ErrorMessage != "" {
			fmt.Printf("Error message: %s\n", rec.ErrorMessage)
		}
		if len(rec.SuggestedFixes) > 0 {
			fmt.Println("\nSuggested fixes:")
			for i, fix := range rec.SuggestedFixes {
				fmt.Printf("  %d. %s (confidence %.0f, risk %s)\n", i+1, fix.Title, fix.Confidence, fix.Risk)
			}
		}
		if len(rec.Steps) > 0 {
			fmt.Println("\nSteps:")
			for _, step := range rec.Steps {
				line := step.Step
				if step.Tool != "" {
					line += " [" + step.Tool + "]"
				}
				fmt.Printf("  %s %s\n", step.Timestamp.Format("15:04:05"), line)
			}
		}
		return nil
	},
}
