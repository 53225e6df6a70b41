package engine

import (
	"context"

	"github.com/Dolu89/ghost-relay/internal/eventstore"
	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/protocol"
)

// OnEvent is the live fan-out trigger. It runs inside eventstore.Store.Add
// with the store lock held, once per added event.
//
// Implements eventstore.Listener.
func (s *Session) OnEvent(ctx context.Context, tx *eventstore.Tx, ev nostr.Event) {
	if s.State() != StateOpen {
		return
	}

	sub, ok := s.registry.Match(ev)
	if !ok {
		return
	}
	s.consume(ctx, tx, sub.ID, ev)
}

// replay delivers every stored event matching sub, filter by filter, newest
// first within a filter. Each event is delivered at most once per pass.
func (s *Session) replay(ctx context.Context, tx *eventstore.Tx, sub Subscription) (int, error) {
	delivered := 0
	seen := make(map[string]struct{})

	for _, f := range sub.Filters {
		events, err := tx.Query(f)
		if err != nil {
			return delivered, err
		}
		for _, ev := range events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			if s.consume(ctx, tx, sub.ID, ev) {
				delivered++
			}
		}
	}
	return delivered, nil
}

// consume claims ev for subID and delivers it if the claim won. A failed
// durable delete still counts as a claim: the event is already gone from
// the index.
func (s *Session) consume(ctx context.Context, tx *eventstore.Tx, subID string, ev nostr.Event) bool {
	claimed, err := tx.Remove(ctx, ev.ID)
	if err != nil {
		s.logger.Warn("durable delete failed after delivery",
			"event_id", ev.ID,
			"subscription_id", subID,
			"error", err,
		)
	}
	if !claimed {
		return false
	}

	s.logger.Debug("delivering event", "event_id", ev.ID, "subscription_id", subID)
	s.send(protocol.EncodeEvent(subID, ev))
	return true
}
