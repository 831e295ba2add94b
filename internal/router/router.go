package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homelab-metrics/internal/domain"
	"homelab-metrics/internal/endpoints"
	"homelab-metrics/internal/util"
)

const RequestIDHeader = "X-Request-ID"

func NewRouter(metricStore domain.MetricStore, webSlogger *util.MetricsLogger, defaultNode string) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, metricStore, webSlogger, defaultNode)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, metricStore domain.MetricStore, webSlogger *util.MetricsLogger, defaultNode string) {
	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(metricStore, webSlogger, defaultNode)

	r.HandleFunc("/api/metrics", metricsHandler.GetMetricsHandler).Methods("GET")
	r.HandleFunc("/api/metrics/nodes", metricsHandler.ListNodesHandler).Methods("GET")
	r.HandleFunc("/api/metrics/samples", metricsHandler.RecordSampleHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		endpoints.APIResponse{}.WriteResultResponse(w, "ok")
	}).Methods("GET")
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves handler on addr until SIGINT/SIGTERM, then shuts down within
// shutdownTimeout. It returns once the listener is closed.
func Run(addr string, shutdownTimeout time.Duration, handler http.Handler, webSlogger *util.MetricsLogger) error {
	server := NewServer(addr, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-quit:
	}

	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")
	if err := gracefulShutdown(server, shutdownTimeout); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			observeRequest(r.Method, route, rec.status, time.Since(start))

			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s %d %s id=%s",
				r.Method, r.RequestURI, rec.status, time.Since(start), r.Header.Get(RequestIDHeader)))
		})
	}
}
