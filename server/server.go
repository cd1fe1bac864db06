// Package server exposes the prediction pipeline over HTTP.
//
// Routes:
//
//	GET  /               index page
//	GET  /health         liveness
//	POST /predict        one JSON object
//	POST /batch_predict  {"data": [...]}
//	GET  /predict_form   HTML form built from the preprocessor's input columns
//	POST /predict_form   form submission
//	GET  /metrics        Prometheus metrics
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

// Version is reported by /health.
const Version = "1.0.0"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Predictor is what the server needs from the prediction pipeline.
type Predictor interface {
	Predict(ctx context.Context, records []map[string]interface{}) ([]float64, error)
	InputColumns(ctx context.Context) ([]string, error)
}

// Server routes HTTP requests to a Predictor.
type Server struct {
	router    *mux.Router
	predictor Predictor
	logger    log.Logger
	metrics   *telemetry.Recorder
}

// New builds the router. metrics may be nil.
func New(predictor Predictor, logger log.Logger, metrics *telemetry.Recorder) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder()
	}
	s := &Server{
		router:    mux.NewRouter(),
		predictor: predictor,
		logger:    logger,
		metrics:   metrics,
	}
	s.router.Use(s.requestLogging, metrics.Middleware)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/predict", s.predict).Methods(http.MethodPost)
	s.router.HandleFunc("/batch_predict", s.batchPredict).Methods(http.MethodPost)
	s.router.HandleFunc("/predict_form", s.predictFormPage).Methods(http.MethodGet)
	s.router.HandleFunc("/predict_form", s.predictFormSubmit).Methods(http.MethodPost)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey struct{}

// loggerFrom returns the request-scoped logger set by requestLogging.
func (s *Server) loggerFrom(r *http.Request) log.Logger {
	if l, ok := r.Context().Value(ctxKey{}).(log.Logger); ok {
		return l
	}
	return s.logger
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		logger := s.logger.With(log.RequestIDKey, requestID)
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), ctxKey{}, logger)))

		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		logger.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"bytes", rw.size,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}
