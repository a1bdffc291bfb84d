package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohanadkandil/logSense/internal/runlog"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd)

	historyListCmd.Flags().Int("limit", 20, "maximum runs to show")
	historyListCmd.Flags().String("incident", "", "only show runs for this incident")

	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete runs older than this")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review past analysis runs recorded locally",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		incident, _ := cmd.Flags().GetString("incident")

		store, err := runlog.Open(cfg.RunLogPath)
		if err != nil {
			return fmt.Errorf("open run journal: %w", err)
		}
		defer store.Close()

		var runs []runlog.Run
		if incident != "" {
			runs, err = store.ListRunsForIncident(incident, limit)
		} else {
			runs, err = store.ListRuns(limit)
		}
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tINCIDENT\tOUTCOME\tCONFIDENCE\tWHEN\tROOT CAUSE")
		for _, run := range runs {
			confidence := "-"
			if run.Outcome == "success" {
				confidence = fmt.Sprintf("%.0f%%", run.Confidence*100)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(run.ID),
				run.IncidentID,
				run.Outcome,
				confidence,
				formatAge(run.StartedAt),
				truncate(run.RootCause, 60),
			)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run with its step log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runlog.Open(cfg.RunLogPath)
		if err != nil {
			return fmt.Errorf("open run journal: %w", err)
		}
		defer store.Close()

		run, err := resolveRun(store, args[0])
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}

		fmt.Printf("Run %s\n", run.ID)
		fmt.Printf("Incident: %s (%s)\n", run.IncidentID, run.Subject)
		fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
		fmt.Printf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
		fmt.Printf("Outcome:  %s\n", run.Outcome)
		if run.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", run.ErrorMessage)
		}
		if run.RootCause != "" {
			fmt.Printf("Root cause (%.0f%% confidence): %s\n", run.Confidence*100, run.RootCause)
		}
		if len(run.Steps) > 0 {
			fmt.Println("\nSteps:")
			for _, step := range run.Steps {
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

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		store, err := runlog.Open(cfg.RunLogPath)
		if err != nil {
			return fmt.Errorf("open run journal: %w", err)
		}
		defer store.Close()

		n, err := store.PruneOlderThan(time.Now().Add(-olderThan))
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		fmt.Printf("Deleted %d run(s).\n", n)
		return nil
	},
}

// resolveRun looks up a run by full ID, then by unique prefix so the short
// IDs printed by "history list" work as arguments.
func resolveRun(store *runlog.Store, id string) (*runlog.Run, error) {
	run, err := store.GetRun(id)
	if err == nil {
		return run, nil
	}

	runs, listErr := store.ListRuns(0)
	if listErr != nil {
		return nil, err
	}
	var match *runlog.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
