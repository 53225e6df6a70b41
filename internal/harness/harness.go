package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dolu89/ghost-relay/internal/engine"
	"github.com/Dolu89/ghost-relay/internal/eventstore"
	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/store"
	"github.com/Dolu89/ghost-relay/internal/testutil"
)

// DefaultCreatedAt is the created_at of the first event, in alias order,
// whose definition leaves created_at unset. Each later one gets the next
// second.
const DefaultCreatedAt = 1_700_000_000

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Transcript is the readable log of the run, one line per connection,
	// frame, or seeded event. Event ids are shown by alias.
	Transcript []string `json:"transcript"`

	// Stored lists the aliases of the events left in the store, sorted.
	Stored []string `json:"stored"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Transcript: []string{}, Stored: []string{}}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addLine(format string, args ...any) {
	r.Transcript = append(r.Transcript, fmt.Sprintf(format, args...))
}

// client is one scripted connection.
type client struct {
	session *engine.Session
	rec     *testutil.Recorder
	frames  []string // rendered, in arrival order
}

type runner struct {
	ctx      context.Context
	scenario *Scenario
	events   *eventstore.Store
	logger   *slog.Logger

	pubkeys    map[string]string      // key alias -> pubkey
	signed     map[string]nostr.Event // event alias -> event
	aliases    map[string]string      // event id -> alias
	clients    map[string]*client
	order      []string // session names in connect order
	deliveries map[string]int
	result     *Result
}

// Run executes a scenario against a fresh in-memory relay.
//
// Every session writes into a Recorder and frames are handled synchronously,
// so the transcript depends only on the scenario.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	table, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer table.Close()

	events, err := eventstore.New(ctx, table, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	r := &runner{
		ctx:        ctx,
		scenario:   scenario,
		events:     events,
		logger:     logger,
		pubkeys:    make(map[string]string),
		signed:     make(map[string]nostr.Event),
		aliases:    make(map[string]string),
		clients:    make(map[string]*client),
		deliveries: make(map[string]int),
		result:     NewResult(),
	}
	if err := r.sign(); err != nil {
		return nil, err
	}

	r.result.addLine("scenario: %s", scenario.Name)
	for _, alias := range scenario.Seed {
		if err := events.Add(ctx, r.signed[alias]); err != nil {
			return nil, fmt.Errorf("seed %s: %w", alias, err)
		}
		r.result.addLine("seed @%s", alias)
	}

	for i, step := range scenario.Steps {
		if err := r.step(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	for _, name := range r.order {
		r.clients[name].session.Close()
	}

	r.result.Stored = r.stored()
	if len(r.result.Stored) == 0 {
		r.result.addLine("stored: (none)")
	} else {
		r.result.addLine("stored: @%s", strings.Join(r.result.Stored, " @"))
	}

	r.evaluate()
	return r.result, nil
}

// sign derives every key and signs every event definition.
func (r *runner) sign() error {
	for alias, secret := range r.scenario.keys() {
		sk, err := nostr.ParseSecretKey(secret)
		if err != nil {
			return fmt.Errorf("keys.%s: %w", alias, err)
		}
		r.pubkeys[alias] = nostr.PublicKeyHex(sk)
	}

	names := make([]string, 0, len(r.scenario.Events))
	for alias := range r.scenario.Events {
		names = append(names, alias)
	}
	sort.Strings(names)

	clock := testutil.NewClock(DefaultCreatedAt)
	for _, alias := range names {
		def := r.scenario.Events[alias]
		sk, err := nostr.ParseSecretKey(r.scenario.keys()[def.Key])
		if err != nil {
			return fmt.Errorf("events.%s: %w", alias, err)
		}
		kind := def.Kind
		if kind == 0 {
			kind = 1
		}
		createdAt := def.CreatedAt
		if createdAt == 0 {
			createdAt = clock.Next()
		}
		ev := nostr.Event{
			CreatedAt: createdAt,
			Kind:      kind,
			Tags:      r.tags(def.Tags),
			Content:   def.Content,
		}
		if err := nostr.Sign(&ev, sk); err != nil {
			return fmt.Errorf("events.%s: %w", alias, err)
		}
		switch def.Tamper {
		case TamperContent:
			ev.Content += "!"
		case TamperSig:
			ev.Sig = flipLast(ev.Sig)
		}

		if other, ok := r.aliases[ev.ID]; ok {
			return fmt.Errorf("events.%s: same id as events.%s", alias, other)
		}
		r.aliases[ev.ID] = alias
		r.signed[alias] = ev
	}
	return nil
}

// tags copies def tags with key references expanded.
func (r *runner) tags(def [][]string) nostr.Tags {
	if def == nil {
		return nil
	}
	out := make(nostr.Tags, len(def))
	for i, tag := range def {
		out[i] = make([]string, len(tag))
		for j, value := range tag {
			if name, _, ok := splitRef(value); ok {
				value = r.pubkeys[name]
			}
			out[i][j] = value
		}
	}
	return out
}

func flipLast(s string) string {
	last := s[len(s)-1]
	if last == '0' {
		return s[:len(s)-1] + "1"
	}
	return s[:len(s)-1] + "0"
}

func (r *runner) step(step Step) error {
	c := r.client(step.Session)

	switch {
	case step.Disconnect:
		c.session.Close()
		r.result.addLine("%s disconnected", step.Session)
	case step.Raw != "":
		r.result.addLine("%s -> %s", step.Session, step.Raw)
		c.session.HandleFrame(r.ctx, []byte(step.Raw))
	default:
		shown, err := json.Marshal(step.Send)
		if err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		frame, err := json.Marshal(r.resolve(step.Send))
		if err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		r.result.addLine("%s -> %s", step.Session, shown)
		c.session.HandleFrame(r.ctx, frame)
	}

	r.collect()
	return nil
}

// client returns the named session, connecting it on first use.
func (r *runner) client(name string) *client {
	if c, ok := r.clients[name]; ok {
		return c
	}
	rec := &testutil.Recorder{}
	s := engine.NewSession(name, r.events, rec, engine.SessionOptions{
		RestrictFilters: r.scenario.RestrictFilters,
		Logger:          r.logger,
	})
	s.Open()

	c := &client{session: s, rec: rec}
	r.clients[name] = c
	r.order = append(r.order, name)
	r.result.addLine("%s connected", name)
	return c
}

// collect moves every recorded frame into the transcript, session by
// session in connect order.
func (r *runner) collect() {
	for _, name := range r.order {
		c := r.clients[name]
		for _, frame := range c.rec.Drain() {
			shown := r.render(frame)
			c.frames = append(c.frames, shown)
			r.result.addLine("%s <- %s", name, shown)
		}
	}
}

// resolve expands "@" references inside a scripted frame.
func (r *runner) resolve(v any) any {
	switch v := v.(type) {
	case string:
		name, field, ok := splitRef(v)
		if !ok {
			return v
		}
		if ev, isEvent := r.signed[name]; isEvent {
			switch field {
			case "id":
				return ev.ID
			case "pubkey":
				return ev.PubKey
			}
			return ev
		}
		return r.pubkeys[name]
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.resolve(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = r.resolve(item)
		}
		return out
	}
	return v
}

// render rewrites known event ids in an outbound frame to their aliases.
// EVENT frames carrying a known event show the alias in place of the
// event object.
func (r *runner) render(frame string) string {
	var parts []any
	if err := json.Unmarshal([]byte(frame), &parts); err != nil || len(parts) < 2 {
		return frame
	}

	label, _ := parts[0].(string)
	switch label {
	case "EVENT":
		if len(parts) != 3 {
			break
		}
		obj, _ := parts[2].(map[string]any)
		id, _ := obj["id"].(string)
		if alias, ok := r.aliases[id]; ok {
			parts[2] = "@" + alias
			r.deliveries[alias]++
		}
	case "OK":
		id, _ := parts[1].(string)
		if alias, ok := r.aliases[id]; ok {
			parts[1] = "@" + alias
		}
	}

	out, err := json.Marshal(parts)
	if err != nil {
		return frame
	}
	return string(out)
}

// stored returns the sorted aliases of the events still in the store.
// Events with no alias are listed by id.
func (r *runner) stored() []string {
	var out []string
	for _, ev := range r.events.Query(nostr.Filter{}) {
		if alias, ok := r.aliases[ev.ID]; ok {
			out = append(out, alias)
		} else {
			out = append(out, ev.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (r *runner) evaluate() {
	for i, a := range r.scenario.Assertions {
		switch a.Type {
		case AssertStored:
			want := append([]string(nil), a.Events...)
			sort.Strings(want)
			if strings.Join(want, " ") != strings.Join(r.result.Stored, " ") {
				r.result.AddError(fmt.Sprintf("assertions[%d]: stored %v, want %v", i, r.result.Stored, want))
			}
		case AssertDeliveredCount:
			if got := r.deliveries[a.Event]; got != a.Count {
				r.result.AddError(fmt.Sprintf("assertions[%d]: @%s delivered %d times, want %d", i, a.Event, got, a.Count))
			}
		case AssertFrameCount:
			got := 0
			if c, ok := r.clients[a.Session]; ok {
				got = len(c.frames)
			}
			if got != a.Count {
				r.result.AddError(fmt.Sprintf("assertions[%d]: %s received %d frames, want %d", i, a.Session, got, a.Count))
			}
		}
	}
}
