package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alimgiray/sentinel/internal/handlers"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/alimgiray/sentinel/internal/workers"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/alimgiray/sentinel/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// healthCycle wires a health check with optional dispatch and summary.
func (a *app) healthCycle(dispatch, summary bool, m *metrics.Manager) *services.HealthCycle {
	notifier := a.notifier()
	health := services.NewHealthService(a.repo, a.tracker, notifier, a.cfg)

	var d *services.DispatchService
	if dispatch {
		d = a.dispatch()
	}
	if !summary {
		notifier = nil
	}
	return services.NewHealthCycle(health, d, notifier, m)
}

func newHealthCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		dispatch    bool
		summary     bool
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "health-check",
		Short: "Free closed issues, reassign overdue ones and send deadline reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				var m *metrics.Manager
				if metricsFile != "" {
					m = metrics.NewManager()
				}

				result, err := a.healthCycle(dispatch, summary, m).Run(ctx)
				if m != nil {
					if werr := m.WriteTextfile(metricsFile); werr != nil {
						logger.WithError(werr).WithField("file", metricsFile).Warn("Failed to write metrics textfile")
					}
				}
				return result, err
			})
		},
	}
	cmd.Flags().BoolVar(&dispatch, "dispatch", false, "reassign released issues to free Sentinels")
	cmd.Flags().BoolVar(&summary, "summary", false, "post a run summary to the Knights channel")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API and run scheduled health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				return serve(ctx, a, port)
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from config)")
	return cmd
}

func serve(ctx context.Context, a *app, port string) (interface{}, error) {
	log := logger.Component("server")
	gin.SetMode(a.cfg.Server.Mode)
	if port == "" {
		port = a.cfg.Server.Port
	}

	m := metrics.NewManager()

	var background []workers.Worker
	if minutes := a.cfg.Server.HealthCheckIntervalMinutes; minutes > 0 {
		cycle := a.healthCycle(true, true, m)
		background = append(background, workers.NewHealthCheckWorker("health-check", cycle, time.Duration(minutes)*time.Minute))
	}
	workerManager := workers.NewWorkerManager(ctx, background...)

	router := handlers.NewRouter(handlers.Routes{
		Health:       handlers.NewHealthHandler(version).WithWorkers(workerManager.GetWorkerStatus),
		Contributors: handlers.NewContributorHandler(a.repo, a.promotion(), a.cfg),
		Metrics:      m.Handler(),
		APIToken:     a.cfg.Server.APIToken,
	})

	workerManager.StartAll()
	defer workerManager.StopAll()

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return nil, fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info("Server stopped")
	return map[string]interface{}{"addr": server.Addr, "stopped": true}, nil
}
