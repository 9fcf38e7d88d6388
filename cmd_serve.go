package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smart-maintenance/internal/audit"
	"smart-maintenance/internal/auth"
	"smart-maintenance/internal/config"
	maintenancehttp "smart-maintenance/internal/maintenance/interfaces/http"
)

const shutdownTimeout = 10 * time.Second

var serveMQTT bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the maintenance API, /metrics and /healthz. With --mqtt the process
also subscribes to MQTT_TOPIC and runs every received sample through the pipeline.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMQTT, "mqtt", false, "also consume telemetry from MQTT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := newHTTPHandler(a)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if serveMQTT {
		g.Go(func() error {
			return consumeMQTT(gctx, a)
		})
	}
	return g.Wait()
}

func newHTTPHandler(a *app) (http.Handler, error) {
	var opts []maintenancehttp.Option
	if a.db != nil {
		opts = append(opts, maintenancehttp.WithAuditLogger(audit.NewRepository(a.db)))
	}
	maintenanceHandler, err := maintenancehttp.NewHandler(a.orchestrator, a.reports, a.history, opts...)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/maintenance/", maintenanceHandler)
	mux.Handle("/api/v1/devices/", maintenanceHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if a.cfg.AuthEnabled {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		authMiddleware := auth.NewMiddleware([]byte(a.cfg.JWTSecret), policy, auth.WithMiddlewareLogger(a.logger))
		handler = authMiddleware.Wrap(handler)
	} else if a.cfg.TenantID != "" {
		handler = fixedTenant(handler, a.cfg.TenantID)
	}
	return loggingMiddleware(handler, a.logger), nil
}

// fixedTenant stamps every request with the configured tenant when auth is off.
func fixedTenant(next http.Handler, tenantID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), tenantID, auth.RoleAdmin, "local")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", resp.status).
			Dur("elapsed", time.Since(start)).
			Msg("http")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
