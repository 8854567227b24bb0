package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/theadell/soccergame/internal/soccer"
)

// snapshotter is the part of the world the status server reads.
type snapshotter interface {
	Snapshot() soccer.Snapshot
	Config() soccer.Config
}

type stateResponse struct {
	Config   soccer.Config   `json:"config"`
	Snapshot soccer.Snapshot `json:"snapshot"`
}

func handleState(src snapshotter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(stateResponse{Config: src.Config(), Snapshot: src.Snapshot()})
		if err != nil {
			logger.Error("failed to encode snapshot", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter(src snapshotter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/state", handleState(src, logger))
	r.Get("/healthz", handleHealth)
	return r
}

// statusServer serves the live snapshot while a run is in progress.
type statusServer struct {
	srv    *http.Server
	logger *zap.Logger
	addr   string
	done   chan error
}

// startStatusServer binds addr before returning, so a bad address fails the
// command before the simulation starts.
func startStatusServer(addr string, src snapshotter, logger *zap.Logger) (*statusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "listen on %s", addr)
	}
	s := &statusServer{
		srv: &http.Server{
			Handler:        newRouter(src, logger),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger,
		addr:   ln.Addr().String(),
		done:   make(chan error, 1),
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", s.addr))
		err := s.srv.Serve(ln)
		if err == http.ErrServerClosed {
			err = nil
		}
		if err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
		s.done <- err
	}()
	return s, nil
}

// Addr is the address the server is bound to.
func (s *statusServer) Addr() string {
	return s.addr
}

// Shutdown stops the server gracefully within ten seconds and waits for it
// to stop serving.
func (s *statusServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("status server failed to shutdown gracefully", zap.Error(err))
		return errors.Trace(err)
	}
	// a serve error was already logged and must not fail a finished run
	<-s.done
	s.logger.Info("status server shut down")
	return nil
}
