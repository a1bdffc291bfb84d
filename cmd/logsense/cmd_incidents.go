package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(incidentsCmd)
	incidentsCmd.AddCommand(incidentsListCmd, incidentsShowCmd, incidentsResolveCmd)

	incidentsListCmd.Flags().Int("limit", 10, "maximum incidents to fetch")
	incidentsListCmd.Flags().String("status", "unresolved", "filter by status (unresolved, resolved, ignored)")

	incidentsResolveCmd.Flags().String("root-cause", "", "root cause to record (required)")
	incidentsResolveCmd.Flags().String("fix", "", "fix applied (required)")
	incidentsResolveCmd.Flags().Float64("confidence", 1.0, "confidence in the fix, 0 to 1")
	_ = incidentsResolveCmd.MarkFlagRequired("root-cause")
	_ = incidentsResolveCmd.MarkFlagRequired("fix")
}

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Browse and resolve incidents",
}

var incidentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent incidents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")

		incidents, err := backendClient().ListIncidents(cmd.Context(), limit, status)
		if err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}

		if len(incidents) == 0 {
			fmt.Println("No incidents found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLEVEL\tCOUNT\tLAST SEEN\tTITLE")
		for _, inc := range incidents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				inc.ID,
				inc.Level,
				inc.Count,
				formatAge(inc.LastSeen),
				inc.Title,
			)
		}
		return w.Flush()
	},
}

var incidentsShowCmd = &cobra.Command{
	Use:   "show <incident-id>",
	Short: "Show full details for one incident",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := backendClient().GetIncident(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	},
}

var incidentsResolveCmd = &cobra.Command{
	Use:   "resolve <incident-id>",
	Short: "Mark an incident resolved and record the fix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootCause, _ := cmd.Flags().GetString("root-cause")
		fix, _ := cmd.Flags().GetString("fix")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		if err := backendClient().ResolveIncident(cmd.Context(), args[0], rootCause, fix, confidence); err != nil {
			return fmt.Errorf("resolve incident: %w", err)
		}
		fmt.Printf("Incident %s resolved.\n", args[0])
		return nil
	},
}
