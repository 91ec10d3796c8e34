// Package server hosts the demo card service: sample handlers mounted on
// every transport the SDK supports, behind a plain http.Server lifecycle.
//
// It exists so the whole integration surface (parameter normalizing, record
// validation, HTTP one-shot, NDJSON streaming, and both WebSocket stacks) is
// exercised end to end by one runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/adimis-ai/cereon-sdk/card"
	"github.com/adimis-ai/cereon-sdk/cardhttp"
	"github.com/adimis-ai/cereon-sdk/cardws"
	"github.com/adimis-ai/cereon-sdk/gorillaws"
	"github.com/adimis-ai/cereon-sdk/internal/platform/timeouts"
	"github.com/adimis-ai/cereon-sdk/stream"
)

// Config defines the inputs for the card service.
type Config struct {
	HTTPAddr          string
	HeartbeatInterval time.Duration
	StreamErrorPolicy string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the card HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// NewHandler creates the card routes with default streaming options.
func NewHandler() http.Handler {
	return newHandler(Config{})
}

func newHandler(config Config) http.Handler {
	streamOpts := stream.Options{
		Validator:   card.ForKind(card.KindNumber),
		Heartbeat:   config.HeartbeatInterval,
		ErrorPolicy: stream.ErrorPolicy(strings.TrimSpace(config.StreamErrorPolicy)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/cards/number", cardhttp.NewHandler(numberCard, card.ForKind(card.KindNumber)))
	mux.Handle("/cards/table", cardhttp.NewHandler(tableCards, card.ForKind(card.KindTable)))
	mux.Handle("/cards/stream", cardhttp.NewStreamHandler(streamNumbersHTTP, card.ForKind(card.KindNumber)))
	mux.Handle("/ws/cards", cardws.NewHandler(streamNumbersWS, cardws.Options{Options: streamOpts}))
	mux.Handle("/ws/gorilla", gorillaws.NewHandler(streamNumbersWS, gorillaws.Options{
		Options: streamOpts,
		// the demo has no origin policy of its own
		CheckOrigin: func(*http.Request) bool { return true },
	}))
	return mux
}

// NewServer builds a configured card server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(config),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves a card server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init card server: %w", err)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve cards: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("card server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("card server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
