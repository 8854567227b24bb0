package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// initLogger returns a production logger writing to errorFile at info level.
// The returned level is raised or lowered once the settings are known.
func initLogger(errorFile string) (*zap.Logger, zap.AtomicLevel, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{errorFile}
	cfg.ErrorOutputPaths = []string{errorFile}
	logger, err := cfg.Build()
	if err != nil {
		return nil, cfg.Level, errors.Annotatef(err, "open error file %s", errorFile)
	}
	return logger, cfg.Level, nil
}

// requestLogger logs one line per status request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
