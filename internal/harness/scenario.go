package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dolu89/ghost-relay/internal/testutil"
)

// Scenario is a scripted exchange between clients and an in-process relay.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RestrictFilters makes every session reject REQs whose filters name
	// neither authors nor #p.
	RestrictFilters bool `yaml:"restrict_filters,omitempty"`

	// Keys maps key aliases to hex secret keys. The aliases alice, bob and
	// carol are predefined and may be overridden.
	Keys map[string]string `yaml:"keys,omitempty"`

	// Events maps event aliases to the events the scenario signs up front.
	Events map[string]EventDef `yaml:"events,omitempty"`

	// Seed lists event aliases added to the store before any client connects.
	Seed []string `yaml:"seed,omitempty"`

	// Steps run in order. A session connects on the first step naming it.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// EventDef describes one signed event. A zero CreatedAt is filled from a
// clock starting at DefaultCreatedAt.
type EventDef struct {
	Key       string `yaml:"key"`
	CreatedAt int64  `yaml:"created_at,omitempty"`
	Kind      int    `yaml:"kind,omitempty"`
	Content   string `yaml:"content,omitempty"`

	// Tags values of the form "@alias.pubkey" expand to a key's public key.
	Tags [][]string `yaml:"tags,omitempty"`

	// Tamper corrupts the event after signing: "content" alters the
	// content so the id no longer matches, "sig" alters the signature.
	Tamper string `yaml:"tamper,omitempty"`
}

// Step is one client action. Exactly one of Send, Raw and Disconnect is set.
type Step struct {
	Session string `yaml:"session"`

	// Send is a frame written as a YAML sequence. Strings of the form
	// "@alias" expand to the aliased event, "@alias.id" to its id and
	// "@alias.pubkey" to the event's or key's public key.
	Send []any `yaml:"send,omitempty"`

	// Raw is sent verbatim.
	Raw string `yaml:"raw,omitempty"`

	// Disconnect closes the session.
	Disconnect bool `yaml:"disconnect,omitempty"`
}

// Assertion checks the outcome of a run.
type Assertion struct {
	// Type is one of stored, delivered_count or frame_count.
	Type string `yaml:"type"`

	// Events lists the aliases expected in the store (stored).
	Events []string `yaml:"events,omitempty"`

	// Event is the alias counted across EVENT frames (delivered_count).
	Event string `yaml:"event,omitempty"`

	// Session is the session whose frames are counted (frame_count).
	Session string `yaml:"session,omitempty"`

	// Count is the expected number of frames.
	Count int `yaml:"count"`
}

// Assertion types.
const (
	AssertStored         = "stored"
	AssertDeliveredCount = "delivered_count"
	AssertFrameCount     = "frame_count"
)

// Tamper modes.
const (
	TamperContent = "content"
	TamperSig     = "sig"
)

var aliasPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// defaultKeys are available in every scenario.
var defaultKeys = map[string]string{
	"alice": testutil.AliceSecret,
	"bob":   testutil.BobSecret,
	"carol": testutil.CarolSecret,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// keys returns the scenario's key table with the defaults filled in.
func (s *Scenario) keys() map[string]string {
	out := make(map[string]string, len(defaultKeys)+len(s.Keys))
	for alias, secret := range defaultKeys {
		out[alias] = secret
	}
	for alias, secret := range s.Keys {
		out[alias] = secret
	}
	return out
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !aliasPattern.MatchString(s.Name) {
		return fmt.Errorf("name %q must be lowercase letters, digits and underscores", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	keys := s.keys()
	for alias := range s.Keys {
		if !aliasPattern.MatchString(alias) {
			return fmt.Errorf("keys: bad alias %q", alias)
		}
	}
	for alias, def := range s.Events {
		if !aliasPattern.MatchString(alias) {
			return fmt.Errorf("events: bad alias %q", alias)
		}
		if _, ok := keys[alias]; ok {
			return fmt.Errorf("events.%s: alias already names a key", alias)
		}
		if _, ok := keys[def.Key]; !ok {
			return fmt.Errorf("events.%s: unknown key %q", alias, def.Key)
		}
		for _, tag := range def.Tags {
			for _, value := range tag {
				name, field, ok := splitRef(value)
				if !ok {
					continue
				}
				if _, isKey := keys[name]; !isKey || field != "pubkey" {
					return fmt.Errorf("events.%s: tag reference %q must name a key pubkey", alias, value)
				}
			}
		}
		switch def.Tamper {
		case "", TamperContent, TamperSig:
		default:
			return fmt.Errorf("events.%s: unknown tamper mode %q", alias, def.Tamper)
		}
	}
	for i, alias := range s.Seed {
		if _, ok := s.Events[alias]; !ok {
			return fmt.Errorf("seed[%d]: unknown event %q", i, alias)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, keys, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(s, a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s *Scenario, keys map[string]string, step Step) error {
	if !aliasPattern.MatchString(step.Session) {
		return fmt.Errorf("session is required")
	}
	set := 0
	if step.Send != nil {
		set++
	}
	if step.Raw != "" {
		set++
	}
	if step.Disconnect {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of send, raw and disconnect is required")
	}
	return checkRefs(s, keys, step.Send)
}

// checkRefs verifies that every "@" reference inside v resolves.
func checkRefs(s *Scenario, keys map[string]string, v any) error {
	switch v := v.(type) {
	case string:
		name, field, ok := splitRef(v)
		if !ok {
			return nil
		}
		if _, isEvent := s.Events[name]; isEvent {
			switch field {
			case "", "id", "pubkey":
				return nil
			}
			return fmt.Errorf("reference %q: events have no field %q", v, field)
		}
		if _, isKey := keys[name]; isKey {
			if field == "pubkey" {
				return nil
			}
			return fmt.Errorf("reference %q: keys only expose pubkey", v)
		}
		return fmt.Errorf("reference %q: unknown alias", v)
	case []any:
		for _, item := range v {
			if err := checkRefs(s, keys, item); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, item := range v {
			if err := checkRefs(s, keys, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateAssertion(s *Scenario, a Assertion) error {
	switch a.Type {
	case AssertStored:
		for _, alias := range a.Events {
			if _, ok := s.Events[alias]; !ok {
				return fmt.Errorf("unknown event %q", alias)
			}
		}
	case AssertDeliveredCount:
		if _, ok := s.Events[a.Event]; !ok {
			return fmt.Errorf("event is required for delivered_count")
		}
	case AssertFrameCount:
		if a.Session == "" {
			return fmt.Errorf("session is required for frame_count")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}

// splitRef parses "@name" or "@name.field".
func splitRef(v string) (name, field string, ok bool) {
	rest, found := strings.CutPrefix(v, "@")
	if !found || rest == "" {
		return "", "", false
	}
	name, field, _ = strings.Cut(rest, ".")
	return name, field, true
}
