package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/pricepilot/internal/api"
	"github.com/rewired-gh/pricepilot/internal/logger"
	"github.com/rewired-gh/pricepilot/internal/scheduler"
)

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.telegram != nil {
		a.telegram.ListenForCommands(ctx)
	}

	var runner *scheduler.Runner
	if a.cfg.Scheduler.Enabled {
		runner = scheduler.New(ctx, a.cfg.Scheduler.Timeout)
		if _, err := runner.Add("repricing", a.cfg.Scheduler.CycleSpec, a.service.ScheduledCycle); err != nil {
			return err
		}
		if a.cfg.Scheduler.PruneSpec != "" {
			retention := a.cfg.Storage.Retention
			if _, err := runner.Add("prune", a.cfg.Scheduler.PruneSpec, func(ctx context.Context) {
				n, err := a.service.Prune(ctx, retention)
				if err != nil {
					logger.Warn("Failed to prune observations: %v", err)
					return
				}
				logger.Info("Pruned %d rows older than %v", n, retention)
			}); err != nil {
				return err
			}
		}
		runner.Start()
	} else {
		logger.Info("Scheduler disabled; cycles run only on demand")
	}

	srv := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: api.NewRouter(&api.Handler{
			Service:   a.service,
			Optimizer: a.optimizer,
			Estimator: a.estimator,
			Evaluator: a.evaluator,
		}, a.cfg.Server.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, cleaning up...")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("HTTP server failed: %v", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if runner != nil {
		runner.Stop()
	}
	logger.Info("Service stopped")
	return serveErr
}

func runOptimize(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if apply, _ := cmd.Flags().GetBool("apply"); apply {
		a.service.SetAutoApply(true)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := a.service.RunCycle(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	analysis, err := a.service.ExperimentResults(ctx, args[0])
	if err != nil {
		return err
	}
	if err := printJSON(analysis); err != nil {
		return err
	}

	if end, _ := cmd.Flags().GetBool("end"); end {
		adopt, _ := cmd.Flags().GetBool("adopt")
		e, err := a.service.EndExperiment(ctx, args[0], adopt)
		if err != nil {
			return err
		}
		return printJSON(e)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
