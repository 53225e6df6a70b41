package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Dolu89/ghost-relay/internal/eventstore"
	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/protocol"
)

// Sender receives a session's encoded outbound frames, in order.
// Send must not block.
type Sender interface {
	Send(frame []byte)
}

// State is the lifecycle state of a Session.
type State int32

const (
	// StateOpen means the connection is up and the session is registered
	// with the store.
	StateOpen State = iota + 1
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "new"
	}
}

// OK reasons.
const (
	reasonDuplicate = "duplicate: event already exists"
	reasonPersist   = "error: failed to persist event"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// RestrictFilters rejects REQ filters that name neither authors nor #p.
	RestrictFilters bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is the protocol state machine of one client connection.
type Session struct {
	id       string
	store    *eventstore.Store
	sender   Sender
	registry *Registry
	restrict bool
	logger   *slog.Logger

	mu     sync.Mutex // guards lifecycle transitions
	state  atomic.Int32
	handle eventstore.ListenerHandle
}

// NewSession creates a session for connection id. Call Open before handing
// it frames.
func NewSession(id string, store *eventstore.Store, sender Sender, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:       id,
		store:    store,
		sender:   sender,
		registry: NewRegistry(),
		restrict: opts.RestrictFilters,
		logger:   logger.With("session_id", id),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Subscriptions returns the open subscription ids in insertion order.
func (s *Session) Subscriptions() []string { return s.registry.IDs() }

// Open registers the session as a store listener. Calling Open more than
// once, or after Close, has no effect.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != 0 {
		return
	}
	s.handle = s.store.Subscribe(s)
	s.state.Store(int32(StateOpen))
	s.logger.Debug("session registered")
}

// Close deregisters the session from the store exactly once and discards
// its subscriptions. Safe to call concurrently and repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	if prev == StateClosed {
		return
	}
	s.state.Store(int32(StateClosed))
	if prev == StateOpen {
		s.store.Unsubscribe(s.handle)
	}
	s.registry.Clear()
	s.logger.Debug("session deregistered")
}

// HandleFrame dispatches one inbound frame. Failures are reported to the
// client as NOTICE or OK frames; HandleFrame never fails the connection.
// Frames received outside StateOpen are ignored.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic while handling frame", "panic", fmt.Sprint(r))
			s.notice(protocol.LevelError, "internal error")
		}
	}()

	if s.State() != StateOpen {
		return
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		s.rejectFrame(err)
		return
	}

	switch env := env.(type) {
	case *protocol.ReqEnvelope:
		s.handleReq(ctx, env)
	case *protocol.EventEnvelope:
		s.handleEvent(ctx, env.Event)
	case *protocol.CloseEnvelope:
		s.handleClose(env.SubscriptionID)
	}
}

// Notice sends NOTICE "<level>: <message>" to the client. The transport uses
// it for failures it detects before a frame reaches HandleFrame.
func (s *Session) Notice(level protocol.Level, message string) {
	s.notice(level, message)
}

func (s *Session) rejectFrame(err error) {
	var pe *protocol.Error
	if !errors.As(err, &pe) {
		s.notice(protocol.LevelError, err.Error())
		return
	}

	s.logger.Debug("rejected frame", "kind", pe.Kind, "reason", pe.Message)
	if pe.Kind == protocol.KindInvalidEvent {
		s.ok(pe.EventID, false, pe.Message)
		return
	}
	s.notice(protocol.LevelError, pe.Message)
}

func (s *Session) handleReq(ctx context.Context, req *protocol.ReqEnvelope) {
	if s.restrict {
		for _, f := range req.Filters {
			// A present but empty authors or #p counts; it matches nothing.
			_, hasP := f.Tags["p"]
			if f.Authors == nil && !hasP {
				s.notice(protocol.LevelError, ErrUnrestrictedFilter.Error())
				return
			}
		}
	}

	sub := Subscription{ID: req.SubscriptionID, Filters: req.Filters}
	err := s.store.Do(ctx, func(tx *eventstore.Tx) error {
		if err := s.registry.Open(sub.ID, sub.Filters); err != nil {
			return err
		}
		replayed, err := s.replay(ctx, tx, sub)
		if err != nil {
			return fmt.Errorf("replay %s: %w", sub.ID, err)
		}
		s.logger.Debug("subscription opened",
			"subscription_id", sub.ID,
			"filters", len(sub.Filters),
			"replayed", replayed,
		)
		s.send(protocol.EncodeEOSE(sub.ID))
		return nil
	})
	if err == nil {
		return
	}

	switch {
	case IsTooManySubscriptions(err):
		s.logger.Warn("subscription limit reached", "subscription_id", sub.ID, "open", s.registry.Len())
		s.notice(protocol.LevelError, noticeTooManySubscriptions)
	case IsDuplicateSubscription(err):
		s.logger.Debug("duplicate subscription id", "subscription_id", sub.ID)
		s.notice(protocol.LevelError, noticeDuplicateSubscription)
	default:
		s.logger.Error("subscription failed", "subscription_id", sub.ID, "error", err)
		s.notice(protocol.LevelError, "internal error")
	}
}

func (s *Session) handleEvent(ctx context.Context, ev nostr.Event) {
	if err := nostr.Verify(ev); err != nil {
		s.logger.Debug("rejected event", "event_id", ev.ID, "reason", err.Error())
		s.ok(ev.ID, false, err.Error())
		return
	}

	err := s.store.Add(ctx, ev)
	switch {
	case err == nil:
		s.ok(ev.ID, true, "")
	case errors.Is(err, eventstore.ErrDuplicateEvent):
		s.ok(ev.ID, false, reasonDuplicate)
	default:
		s.logger.Error("failed to store event", "event_id", ev.ID, "error", err)
		s.ok(ev.ID, false, reasonPersist)
	}
}

func (s *Session) handleClose(id string) {
	sub, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.registry.Close(id)
	s.logger.Debug("subscription closed", "subscription_id", id, "filters", len(sub.Filters))
}

func (s *Session) ok(eventID string, accepted bool, message string) {
	s.send(protocol.EncodeOK(eventID, accepted, message))
}

func (s *Session) notice(level protocol.Level, message string) {
	s.send(protocol.EncodeNotice(level, message))
}

func (s *Session) send(frame []byte, err error) {
	if err != nil {
		s.logger.Error("failed to encode frame", "error", err)
		return
	}
	s.sender.Send(frame)
}
