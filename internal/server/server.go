// Package server exposes the job API: drawing upload, job status, artifact
// download, an HTML report view, health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/jobstore"
	"git.home.luguber.info/inful/boqbuilder/internal/workspace"
)

// Submitter stages an uploaded drawing and queues a job for it.
type Submitter interface {
	Submit(ctx context.Context, filename string, body io.Reader) (jobID string, err error)
}

// Records serves job status.
type Records interface {
	Get(jobID string) (*jobstore.Record, error)
	List() []*jobstore.Record
}

// QueueInfo reports queue occupancy for the health endpoint.
type QueueInfo interface {
	Length() int
}

// Options wires the server's collaborators.
type Options struct {
	Submitter  Submitter
	Records    Records
	Workspaces *workspace.Manager
	Queue      QueueInfo
	Metrics    http.Handler // nil disables /metrics
	Logger     *slog.Logger
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg          config.DaemonConfig
	opts         Options
	router       chi.Router
	errorAdapter *derrors.HTTPErrorAdapter
	httpServer   *http.Server
	started      time.Time
}

// New builds the router. Call Start to listen.
func New(cfg config.DaemonConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: derrors.NewHTTPErrorAdapter(opts.Logger),
		started:      time.Now(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.NotFoundError("route not found").WithContext("path", r.URL.Path).Build())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		err := derrors.ValidationError("invalid HTTP method").WithContext("method", r.Method).Build()
		s.errorAdapter.WriteErrorResponse(w, r, err)
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/download", s.handleDownload)
		r.Get("/{id}/report", s.handleReport)
	})
	return r
}

// Start binds the configured address and serves until Shutdown. Concurrent
// connections are capped at MaxConnections.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryDaemon, "http startup failed").
			WithContext("addr", s.cfg.HTTPAddr).Build()
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.opts.Logger.Info("HTTP server listening",
		slog.String("addr", ln.Addr().String()), slog.Int("max_connections", s.cfg.MaxConnections))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error("HTTP server stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
