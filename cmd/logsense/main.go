// Command logsense is a terminal client for the LogSense incident analysis
// platform. It lists incidents, streams live analyses over WebSocket and
// keeps a local journal of past runs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohanadkandil/logSense/internal/apiclient"
	"github.com/mohanadkandil/logSense/internal/config"
	"github.com/mohanadkandil/logSense/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "logsense",
	Short:         "AI-powered incident analysis from your terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		return nil
	},
}

func backendClient() *apiclient.Client {
	return apiclient.New(cfg.BackendURL, cfg.RequestTimeout)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
