package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobgraph/internal/dispatcher"
	"jobgraph/internal/logging"
	"jobgraph/internal/preflight"
)

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool
	var only []string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run the dispatcher for every configured job",
		Long: "Subscribe to job requests on each [[dispatcher.jobs]] entry point and\n" +
			"process them until interrupted. Use --job to run a subset.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(only) > 0 {
				selected := *cfg
				selected.Dispatcher.Jobs = nil
				for _, key := range only {
					dispatchJob, ok := cfg.Job(key)
					if !ok {
						return fmt.Errorf("no dispatcher job named %q", key)
					}
					selected.Dispatcher.Jobs = append(selected.Dispatcher.Jobs, dispatchJob)
				}
				cfg = &selected
			}
			client, logger, err := ctx.client()
			if err != nil {
				return err
			}
			dialer, err := ctx.dialer()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				failed := preflight.Failed(preflight.RunAll(runCtx, cfg, client, dialer))
				for _, r := range failed {
					logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", r.Name),
						logging.String("detail", r.Detail),
						logging.String(logging.FieldErrorHint, "run `jobgraph preflight` for the full report"),
					)
				}
				if len(failed) > 0 {
					return fmt.Errorf("%d preflight check(s) failed", len(failed))
				}
			}

			manager, err := dispatcher.NewManager(cfg, client, dialer, logger)
			if err != nil {
				return err
			}
			if err := manager.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			manager.Stop()

			for _, status := range manager.Status() {
				logger.Info("dispatcher summary",
					logging.String("job", status.Name),
					logging.String(logging.FieldEntryPoint, status.EntryPoint),
					logging.Int64("processed", status.Processed),
					logging.Int64("failed", status.Failed),
					logging.Int64("sessions", status.Sessions),
					logging.String(logging.FieldEventType, "dispatcher_summary"),
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without running preflight checks")
	cmd.Flags().StringArrayVar(&only, "job", nil, "Run only the named job or entry point (repeatable)")
	return cmd
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the remote store, directories and job binaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, _, err := ctx.client()
			if err != nil {
				return err
			}
			dialer, err := ctx.dialer()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results := preflight.RunAll(checkCtx, cfg, client, dialer)
			out := cmd.OutOrStdout()
			writeLines(out, renderChecks(results, shouldColorize(out)))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall time limit for the checks")
	return cmd
}
