package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/internal/capture"
	"github.com/marqueewinq/shooter/internal/observability"
	"github.com/marqueewinq/shooter/internal/server"
	"github.com/marqueewinq/shooter/internal/store"
)

// newServeCmd creates the `serve` command: the HTTP capture service.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP capture service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			if err := viper.BindPFlag("output.dir", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			return viper.BindPFlag("server.database_path", cmd.Flags().Lookup("database"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Server.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := server.NewMetrics(registry)

			// The pool reports every finished unit back into the store.
			onDone := func(out capture.Outcome) {
				recordCtx := context.Background()
				if out.Err != nil {
					metrics.ObserveTask("failure", out.Duration)
					if err := st.FailTask(recordCtx, out.Job.TaskID, out.Err.Error()); err != nil {
						logger.Error("failed to record task failure", zap.Error(err))
					}
					return
				}
				metrics.ObserveTask("success", out.Duration)
				if err := st.CompleteTask(recordCtx, out.Job.TaskID, out.Result.OutputPath); err != nil {
					logger.Error("failed to record task completion", zap.Error(err))
				}
			}

			pool := capture.NewPool(logger, cfg.Output.Dir,
				cfg.Engine.WorkerConcurrency, cfg.Engine.RatePerSecond, cfg.Engine.TaskTimeout, onDone)
			scheduler := server.NewPoolScheduler(ctx, logger, pool)
			srv := server.New(logger, st, scheduler, registry)

			addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
			httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP service listening", zap.String("addr", addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down HTTP service")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("forced shutdown", zap.Error(err))
			}
			scheduler.Wait()
			return nil
		},
	}

	serveCmd.Flags().IntP("port", "p", 8000, "Port to listen on. (Overrides config/env)")
	serveCmd.Flags().StringP("output", "o", "./output", "Root directory for capture artifacts.")
	serveCmd.Flags().String("database", "shooter.db", "Path to the sqlite task database.")
	return serveCmd
}
