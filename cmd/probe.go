package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/secondvote/trends/internal/probe"
	"github.com/secondvote/trends/pkg/logger"
)

func newProbeCmd() *cobra.Command {
	cfg := probe.Config{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a running server end to end",
		Long: `probe opens a session on a running server, reloads it, requests every view
for every organization and checks that the histogram, breakdown and trend agree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runProbe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the server")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 4, "organizations checked concurrently")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "write the JSON report to this file")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every organization checked")
	return cmd
}

func runProbe(ctx context.Context, cfg probe.Config) error {
	if err := logger.Init(logger.WithFormat(logger.FormatAuto)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	if cfg.Verbose {
		_ = logger.SetLevelString("debug")
	}
	if _, err := probe.Run(ctx, cfg); err != nil {
		if probe.IsInconsistent(err) {
			return fmt.Errorf("views disagree: %w", err)
		}
		return err
	}
	return nil
}
