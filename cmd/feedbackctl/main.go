package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dominica-news/feedback/internal/report"
	"github.com/dominica-news/feedback/pkg/config"
	"github.com/dominica-news/feedback/pkg/health"
)

var (
	baseURL   string
	authToken string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "feedbackctl",
		Short: "Inspect and exercise the Dominica News feedback pipeline",
	}

	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	root.PersistentFlags().StringVar(&baseURL, "base-url", defaults.Backend.BaseURL, "backend base URL")
	root.PersistentFlags().StringVar(&authToken, "token", defaults.Backend.AuthToken, "bearer token for report endpoints")

	root.AddCommand(statusCmd(defaults))
	root.AddCommand(watchCmd(defaults))
	root.AddCommand(reportCmd())
	root.AddCommand(recentCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newProbe(cfg *config.Config) *health.Probe {
	probeConfig := health.DefaultConfig(baseURL)
	probeConfig.RequestTimeout = cfg.Probe.RequestTimeout
	probeConfig.CacheTTL = cfg.Probe.CacheTTL
	probeConfig.HealthyRatio = cfg.Probe.HealthyRatio
	if len(cfg.Probe.CriticalEndpoints) > 0 {
		probeConfig.CriticalEndpoints = cfg.Probe.CriticalEndpoints
	}
	return health.NewProbe(probeConfig)
}

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the critical backend endpoints once",
		RunE: func(cmd *cobra.Command, args []string) error {
			overall := newProbe(cfg).Overall(cmd.Context())

			for _, ep := range overall.Endpoints {
				mark := "ok"
				if !ep.Healthy {
					mark = "FAIL"
				}
				fmt.Printf("%-28s %-5s %8dms  %s\n", ep.Endpoint, mark, ep.Latency.Milliseconds(), ep.Error)
			}
			fmt.Printf("\noverall: healthy=%v (%d/%d), avg latency %dms\n",
				overall.IsHealthy, overall.HealthyCount, overall.TotalCount,
				overall.AverageLatency.Milliseconds())

			return overall.Err()
		},
	}
}

func watchCmd(cfg *config.Config) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll backend health until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			probe := newProbe(cfg)

			stop := probe.StartMonitoring(interval, func(overall health.OverallHealth) {
				fmt.Printf("%s healthy=%v (%d/%d) avg=%dms\n",
					overall.Timestamp.Format(time.TimeOnly),
					overall.IsHealthy, overall.HealthyCount, overall.TotalCount,
					overall.AverageLatency.Milliseconds())
			})
			defer stop()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "polling interval")
	return cmd
}

func reportCmd() *cobra.Command {
	var message, component string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit a test error report",
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter := report.NewReporter(report.ReporterConfig{
				BaseURL:   baseURL,
				AuthToken: authToken,
			})
			err := reporter.Report(cmd.Context(), errors.New(message), report.ReportContext{
				Component: component,
				Action:    "feedbackctl",
			})
			if err != nil {
				return err
			}
			fmt.Println("report accepted")
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "test error from feedbackctl", "error message to report")
	cmd.Flags().StringVar(&component, "component", "cli", "component name attached to the report")
	return cmd
}

func recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently stored error reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/errors/recent", nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+authToken)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("backend returned status %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			var pretty map[string]interface{}
			if err := json.Unmarshal(body, &pretty); err != nil {
				return err
			}
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}
