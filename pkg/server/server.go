package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/store"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/go-go-golems/parley/pkg/summarizer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the conversation operations and the snapshot store over HTTP.
type Server struct {
	registry *stream.Registry
	store    store.Store
	mux      *http.ServeMux
}

type Config struct {
	Engine       engine.Engine
	Summarizer   *summarizer.Summarizer
	Orchestrator *orchestrator.Orchestrator
	// DefaultModel is used by the complete operation when the input names none.
	DefaultModel string
	// Store is optional; without it the history endpoints are not mounted.
	Store store.Store
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Summarizer == nil || cfg.Orchestrator == nil {
		return nil, errors.New("server needs an engine, a summarizer and an orchestrator")
	}

	registry := stream.NewRegistry()
	ops := []stream.Operation{
		stream.NewProcedure(ChatOperation, chatResolver(cfg.Orchestrator)),
		stream.NewProcedure(SummarizeOperation, summarizeResolver(cfg.Summarizer)),
		stream.NewProcedure(CompleteOperation, completeResolver(cfg.Engine, cfg.DefaultModel)),
	}
	for _, op := range ops {
		if err := registry.Register(op); err != nil {
			return nil, err
		}
	}

	s := &Server{
		registry: registry,
		store:    cfg.Store,
		mux:      http.NewServeMux(),
	}
	stream.NewHandler(registry).Register(s.mux)
	if s.store != nil {
		s.mux.HandleFunc("POST "+HistoryPath, s.handleSaveHistory)
		s.mux.HandleFunc("GET "+HistoryPath+"/{id}", s.handleLoadHistory)
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s, nil
}

func (s *Server) Registry() *stream.Registry {
	return s.registry
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
