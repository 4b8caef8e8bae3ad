package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipecheck/internal/service"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the mapping and table checks on a schedule and on config changes",
		Long: `Runs the mapping check once, then re-runs the mapping and table checks on
the configured watch.schedule (default "@every 1h"). When --config is given,
the mapping check also re-runs each time the file is saved. Stops on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx)
		},
	}
}

func (a *app) watch(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stdout, "FAIL: %v\n", err)
		return nil
	}
	svc, cleanup := a.newService(cfg, &service.WriterEmitter{W: a.stdout})
	defer cleanup()

	if _, err := svc.RunMapping(ctx); err != nil {
		return err
	}
	if err := svc.Watch(ctx); err != nil {
		a.exitCode = 2
		return err
	}
	fmt.Fprintf(a.stderr, "watching (schedule %s); press Ctrl+C to stop\n", cfg.Watch.Schedule)

	<-ctx.Done()
	a.logger.Info("Received shutdown signal")
	svc.Stop()

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svc.WaitRunning(shutdown)
	if shutdown.Err() != nil {
		a.logger.Warn("checks still running at shutdown", zap.Error(shutdown.Err()))
	}
	return nil
}
