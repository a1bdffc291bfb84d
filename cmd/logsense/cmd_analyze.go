package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mohanadkandil/logSense/internal/channel"
	"github.com/mohanadkandil/logSense/internal/metrics"
	"github.com/mohanadkandil/logSense/internal/runlog"
	"github.com/mohanadkandil/logSense/pkg/analysis"
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("subject", "", "display label for this analysis")
	analyzeCmd.Flags().Duration("timeout", 0, "override the stall watchdog timeout")
	analyzeCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while streaming (e.g. :9090)")
	analyzeCmd.Flags().Bool("no-save", false, "do not record this run in the local journal")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <incident-id>",
	Short: "Stream a live AI analysis of an incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	incidentID := args[0]
	subject, _ := cmd.Flags().GetString("subject")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	noSave, _ := cmd.Flags().GetBool("no-save")

	if subject == "" {
		subject = incidentID
	}
	if timeout <= 0 {
		timeout = cfg.WatchdogTimeout
	}

	if metricsAddr != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go serveMetrics(metricsAddr)
	}

	session := analysis.New(analysis.Config{
		BaseURL: cfg.BackendURL,
		Backoff: channel.BackoffConfig{
			InitialDelay: cfg.ReconnectInitialDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			MaxAttempts:  cfg.ReconnectMaxAttempts,
		},
		WatchdogTimeout: timeout,
		Logger:          slog.Default(),
	})
	defer session.Close()

	sub := session.Subscribe()
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	startedAt := time.Now()
	session.Start(incidentID, subject)
	fmt.Printf("Analyzing %s...\n", incidentID)

	var final analysis.Snapshot
	rendered := 0
loop:
	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				break loop
			}
			rendered = renderSteps(snap, rendered)
			if !snap.Running && (snap.Result != nil || snap.Error != "") {
				final = snap
				break loop
			}
		case <-sigCh:
			fmt.Println("\nInterrupted.")
			return nil
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	}

	renderOutcome(final)

	if !noSave {
		if err := saveRun(final, startedAt); err != nil {
			slog.Warn("could not record run", "error", err)
		}
	}

	if final.Error != "" {
		return fmt.Errorf("analysis failed: %s", final.Error)
	}
	return nil
}

// renderSteps prints any steps not yet shown and returns the new count.
func renderSteps(snap analysis.Snapshot, already int) int {
	for _, step := range snap.Steps[already:] {
		line := step.Step
		if step.Tool != "" {
			line += " [" + step.Tool + "]"
		}
		fmt.Printf("  %s %s\n", step.Timestamp.Format("15:04:05"), line)
	}
	return len(snap.Steps)
}

func renderOutcome(snap analysis.Snapshot) {
	if snap.Error != "" {
		fmt.Printf("\nFailed: %s\n", snap.Error)
		return
	}
	res := snap.Result
	if res == nil {
		return
	}

	fmt.Printf("\nRoot cause (%.0f%% confidence):\n  %s\n", res.Confidence*100, res.RootCause)
	if len(res.SuggestedFixes) > 0 {
		fmt.Println("\nSuggested fixes:")
		for i, fix := range res.SuggestedFixes {
			fmt.Printf("  %d. %s (confidence %.0f, risk %s, est. %s)\n",
				i+1, fix.Title, fix.Confidence, fix.Risk, fix.TimeEstimate)
			for _, step := range fix.Steps {
				fmt.Printf("     - %s\n", step)
			}
		}
	}
	if len(res.SimilarIncidents) > 0 {
		fmt.Println("\nSimilar past incidents:")
		for _, sim := range res.SimilarIncidents {
			fmt.Printf("  %s (%.0f%% similar): %s\n",
				sim.IncidentID, sim.Similarity*100, sim.RootCause)
		}
	}
	fmt.Printf("\nCompleted in %.1fs\n", res.DurationSeconds)
}

func saveRun(snap analysis.Snapshot, startedAt time.Time) error {
	store, err := runlog.Open(cfg.RunLogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	run := runlog.Run{
		ID:         uuid.NewString(),
		IncidentID: snap.IncidentID,
		Subject:    snap.Subject,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Steps:      snap.Steps,
	}
	switch {
	case snap.Error == analysis.TimeoutMessage:
		run.Outcome = "timeout"
		run.ErrorMessage = snap.Error
	case snap.Error != "":
		run.Outcome = "error"
		run.ErrorMessage = snap.Error
	case snap.Result != nil:
		run.Outcome = "success"
		run.RootCause = snap.Result.RootCause
		run.Confidence = snap.Result.Confidence
	default:
		run.Outcome = "error"
	}
	return store.SaveRun(run)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}
