package trigger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
	"github.com/SlightlyLoony/Monitor/pkg/types"
)

// Wildcard selects every target present in the current sample.
const Wildcard = "?"

// Kind is a comparison kind.
type Kind int

const (
	Equal Kind = iota
	Unequal
	In
	Out
	Below
	Above
)

var kindNames = map[Kind]string{
	Equal:   "equal",
	Unequal: "unequal",
	In:      "in",
	Out:     "out",
	Below:   "below",
	Above:   "above",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a comparison kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown comparison kind %q", s)
}

// Class decides when a true condition produces an event.
type Class int

const (
	// Value fires on every cycle in which the condition holds.
	Value Class = iota
	// Transition fires only when the condition goes from false to true.
	Transition
)

func (c Class) String() string {
	switch c {
	case Value:
		return "value"
	case Transition:
		return "transition"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// ParseClass parses a trigger class, ignoring case. Empty means Value.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "value":
		return Value, nil
	case "transition":
		return Transition, nil
	default:
		return 0, fmt.Errorf("unknown trigger class %q", s)
	}
}

// Definition is an immutable trigger rule.
type Definition struct {
	Target      string
	Lower       float64
	Upper       float64
	Kind        Kind
	Field       string
	Class       Class
	Tag         string
	Type        string
	Subject     string
	Message     string
	Level       int
	MinInterval time.Duration
}

// New validates cfg and builds a Definition from it.
func New(cfg config.Trigger) (*Definition, error) {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", cfg.Tag, err)
	}
	class, err := ParseClass(cfg.Class)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", cfg.Tag, err)
	}

	d := &Definition{
		Target:      strings.TrimSpace(cfg.Target),
		Lower:       cfg.Lower,
		Upper:       cfg.Upper,
		Kind:        kind,
		Field:       strings.TrimSpace(cfg.Field),
		Class:       class,
		Tag:         strings.TrimSpace(cfg.Tag),
		Type:        cfg.Type,
		Subject:     cfg.Subject,
		Message:     cfg.Message,
		Level:       cfg.Level,
		MinInterval: cfg.MinInterval,
	}
	if cfg.Bound != nil {
		d.Lower, d.Upper = *cfg.Bound, *cfg.Bound
	}
	if d.Type == "" {
		d.Type = d.Tag
	}

	switch {
	case d.Tag == "":
		return nil, fmt.Errorf("trigger: tag is required")
	case d.Target == "":
		return nil, fmt.Errorf("trigger %q: target is required", d.Tag)
	case d.Field == "":
		return nil, fmt.Errorf("trigger %q: field is required", d.Tag)
	case d.Subject == "":
		return nil, fmt.Errorf("trigger %q: subject is required", d.Tag)
	case d.Message == "":
		return nil, fmt.Errorf("trigger %q: message is required", d.Tag)
	case d.Level < types.MinLevel || d.Level > types.MaxLevel:
		return nil, fmt.Errorf("trigger %q: level %d out of range [%d, %d]",
			d.Tag, d.Level, types.MinLevel, types.MaxLevel)
	case d.MinInterval < 0:
		return nil, fmt.Errorf("trigger %q: min_interval must not be negative", d.Tag)
	case (d.Kind == In || d.Kind == Out) && d.Lower > d.Upper:
		return nil, fmt.Errorf("trigger %q: lower %v exceeds upper %v", d.Tag, d.Lower, d.Upper)
	}
	if len(d.Targets(nil)) == 0 && d.Target != Wildcard {
		return nil, fmt.Errorf("trigger %q: target list %q names no targets", d.Tag, d.Target)
	}
	for _, tmpl := range []string{d.Subject, d.Message} {
		if _, err := expand(tmpl, templateArgs{}); err != nil {
			return nil, fmt.Errorf("trigger %q: %w", d.Tag, err)
		}
	}
	return d, nil
}

// Evaluate reports whether value satisfies d.
func Evaluate(value float64, d *Definition) bool {
	switch d.Kind {
	case Equal:
		return value == d.Lower
	case Unequal:
		return value != d.Lower
	case In:
		return value >= d.Lower && value <= d.Upper
	case Out:
		return value < d.Lower || value > d.Upper
	case Below:
		return value < d.Lower
	case Above:
		return value > d.Upper
	default:
		return false
	}
}

// Targets expands the target selector. known is the set of targets in the
// current sample; it is only consulted for the wildcard.
func (d *Definition) Targets(known []string) []string {
	if d.Target == Wildcard {
		out := append([]string(nil), known...)
		sort.Strings(out)
		return out
	}
	parts := strings.Split(d.Target, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Render fills the subject and message templates. Both receive the current
// value, the lower bound, the upper bound and the target name, at positions
// 1 to 4; a template may use any subset of them. See expand for the
// placeholder rules.
func (d *Definition) Render(value float64, target string) (subject, message string) {
	args := templateArgs{value: value, lower: d.Lower, upper: d.Upper, target: target}
	return render(d.Subject, args), render(d.Message, args)
}

// render returns tmpl unexpanded if it does not parse; New rejects such
// templates, so this only happens for hand-built definitions.
func render(tmpl string, args templateArgs) string {
	s, err := expand(tmpl, args)
	if err != nil {
		return tmpl
	}
	return s
}

// Key returns the state key shared by condition tracking and rate limiting.
func Key(tag, target string) string {
	return tag + "." + target
}
