package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/liuscraft/orion-dictate/internal/logging"
)

// Server 暴露 /metrics 与 /healthz
type Server struct {
	server *http.Server
	addr   string
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		logging.Infof("Metrics: listening on %s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("Metrics: server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the server's mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
