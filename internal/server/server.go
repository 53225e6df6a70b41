// Package server is the relay's websocket transport. It upgrades client
// connections, runs one engine.Session per connection and shuts down
// gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/Dolu89/ghost-relay/internal/engine"
	"github.com/Dolu89/ghost-relay/internal/eventstore"
	"github.com/Dolu89/ghost-relay/internal/protocol"
)

// Banner is the body served to plain HTTP requests on "/".
const Banner = "Ghost relay is running"

// DefaultMaxMessageBytes caps inbound websocket messages when Options leaves
// MaxMessageBytes unset.
const DefaultMaxMessageBytes = 128 << 10

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// MaxMessageBytes is the largest accepted inbound message. Larger
	// messages are answered with a notice and skipped.
	MaxMessageBytes int

	// RestrictFilters is passed to every session.
	RestrictFilters bool

	// IDs generates session ids. Defaults to engine.UUIDv7Generator.
	IDs engine.IDGenerator
}

// Server serves the relay protocol over websocket.
type Server struct {
	store  *eventstore.Store
	opts   Options
	logger *slog.Logger
	ws     websocket.Server

	active atomic.Int64
	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// New creates a Server over store.
func New(store *eventstore.Store, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.IDs == nil {
		opts.IDs = engine.UUIDv7Generator{}
	}

	s := &Server{
		store:  store,
		opts:   opts,
		logger: logger.With("component", "server"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.ws = websocket.Server{
		Handshake: acceptAnyOrigin,
		Handler:   s.ServeConn,
	}
	return s
}

// Relay clients are not browsers bound to one site; every Origin is accepted.
func acceptAnyOrigin(*websocket.Config, *http.Request) error {
	return nil
}

// Handler returns the HTTP handler: websocket upgrades on any path, and the
// banner for plain requests to "/".
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUpgrade(r) {
			s.ws.ServeHTTP(w, r)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, Banner)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ActiveSessions returns the number of connected sessions.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// ServeConn runs one client connection to completion. It returns when the
// client disconnects or the server shuts down.
func (s *Server) ServeConn(conn *websocket.Conn) {
	conn.MaxPayloadBytes = s.opts.MaxMessageBytes
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	id := s.opts.IDs.Generate()
	logger := s.logger.With("session_id", id, "remote", remoteAddr(conn))

	outbox := engine.NewOutbox()
	session := engine.NewSession(id, s.store, outbox, engine.SessionOptions{
		RestrictFilters: s.opts.RestrictFilters,
		Logger:          s.logger,
	})
	session.Open()
	s.active.Add(1)
	logger.Info("session opened", "active", s.active.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		err := outbox.Pump(ctx, func(frame []byte) error {
			return websocket.Message.Send(conn, string(frame))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("write failed", "error", err)
			_ = conn.Close()
		}
	}()

	s.readLoop(ctx, conn, session, logger)

	session.Close()
	outbox.Close()
	<-pumpDone
	_ = conn.Close()

	s.active.Add(-1)
	logger.Info("session closed", "active", s.active.Load())
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *engine.Session, logger *slog.Logger) {
	for {
		var msg []byte
		err := websocket.Message.Receive(conn, &msg)
		switch {
		case err == nil:
			session.HandleFrame(ctx, msg)
		case errors.Is(err, websocket.ErrFrameTooLarge):
			logger.Debug("rejected oversized message", "limit", s.opts.MaxMessageBytes)
			session.Notice(protocol.LevelError, "message too large")
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			return
		default:
			logger.Debug("read failed", "error", err)
			return
		}
	}
}

func remoteAddr(conn *websocket.Conn) string {
	if req := conn.Request(); req != nil {
		return req.RemoteAddr
	}
	return ""
}

// track registers conn for shutdown. Returns false once shutdown started.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// closeConnections closes every tracked connection and refuses new ones.
func (s *Server) closeConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for conn := range conns {
		_ = conn.Close()
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then stops accepting,
// closes every client connection and waits for their sessions to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info("relay listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("relay shutting down", "active", s.active.Load())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	s.closeConnections()
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("relay stopped")
	return nil
}
