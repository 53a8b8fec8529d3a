package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord is returned when a persisted record cannot be parsed.
var ErrMalformedRecord = errors.New("stats: malformed record")

const (
	nullField   = "null"
	recordWidth = 12
)

// Rank is which link is carrying traffic.
type Rank int

const (
	RankUnknown Rank = iota
	RankPrimary
	RankSecondary
)

func (r Rank) String() string {
	switch r {
	case RankPrimary:
		return "PRIMARY"
	case RankSecondary:
		return "SECONDARY"
	default:
		return "UNKNOWN"
	}
}

// ParseRank parses the persisted rank name.
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIMARY":
		return RankPrimary, nil
	case "SECONDARY":
		return RankSecondary, nil
	case "UNKNOWN":
		return RankUnknown, nil
	default:
		return RankUnknown, fmt.Errorf("unknown rank %q", s)
	}
}

// Record is the full statistics state of one link monitor.
// A zero time means absent, as does an empty Identity.
type Record struct {
	OnPrimary        time.Duration
	OnSecondary      time.Duration
	OnPrimaryPct     float64
	ToSecondaryCount int64
	DownPrimary      time.Duration
	DownSecondary    time.Duration
	LastToSecondary  time.Time
	LastCapture      time.Time
	LastRank         Rank
	PrimaryUp        bool
	SecondaryUp      bool
	Identity         string
}

// String returns the persisted form of r.
func (r Record) String() string {
	fields := []string{
		strconv.FormatInt(r.OnPrimary.Milliseconds(), 10),
		strconv.FormatInt(r.OnSecondary.Milliseconds(), 10),
		strconv.FormatFloat(r.OnPrimaryPct, 'g', -1, 64),
		strconv.FormatInt(r.ToSecondaryCount, 10),
		strconv.FormatInt(r.DownPrimary.Milliseconds(), 10),
		strconv.FormatInt(r.DownSecondary.Milliseconds(), 10),
		formatTime(r.LastToSecondary),
		formatTime(r.LastCapture),
		r.LastRank.String(),
		strconv.FormatBool(r.PrimaryUp),
		strconv.FormatBool(r.SecondaryUp),
		formatIdentity(r.Identity),
	}
	return strings.Join(fields, ",")
}

// Parse reads the persisted form of a Record. Any malformed field fails the
// whole record with an error wrapping ErrMalformedRecord.
func Parse(s string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) != recordWidth {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, len(fields), recordWidth)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	p := parser{fields: fields}
	r := Record{
		OnPrimary:        p.duration(0),
		OnSecondary:      p.duration(1),
		OnPrimaryPct:     p.float(2),
		ToSecondaryCount: p.count(3),
		DownPrimary:      p.duration(4),
		DownSecondary:    p.duration(5),
		LastToSecondary:  p.optTime(6),
		LastCapture:      p.optTime(7),
		LastRank:         p.rank(8),
		PrimaryUp:        p.bool(9),
		SecondaryUp:      p.bool(10),
		Identity:         p.optString(11),
	}
	if p.err != nil {
		return Record{}, p.err
	}
	return r, nil
}

// parser keeps the first field error so Parse can read every field in one
// expression.
type parser struct {
	fields []string
	err    error
}

func (p *parser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: field %d (%q): %v", ErrMalformedRecord, i, p.fields[i], err)
	}
}

func (p *parser) int(i int) int64 {
	v, err := strconv.ParseInt(p.fields[i], 10, 64)
	if err != nil {
		p.fail(i, err)
		return 0
	}
	if v < 0 {
		p.fail(i, errors.New("negative"))
		return 0
	}
	return v
}

func (p *parser) duration(i int) time.Duration { return time.Duration(p.int(i)) * time.Millisecond }

func (p *parser) count(i int) int64 { return p.int(i) }

func (p *parser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.fields[i], 64)
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return v
}

func (p *parser) optTime(i int) time.Time {
	if p.fields[i] == nullField {
		return time.Time{}
	}
	return time.UnixMilli(p.int(i))
}

func (p *parser) rank(i int) Rank {
	r, err := ParseRank(p.fields[i])
	if err != nil {
		p.fail(i, err)
	}
	return r
}

func (p *parser) bool(i int) bool {
	switch strings.ToLower(p.fields[i]) {
	case "true":
		return true
	case "false":
		return false
	default:
		p.fail(i, errors.New("not a boolean"))
		return false
	}
}

func (p *parser) optString(i int) string {
	if p.fields[i] == nullField || p.fields[i] == "" {
		return ""
	}
	return p.fields[i]
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return nullField
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func formatIdentity(s string) string {
	if s == "" {
		return nullField
	}
	return s
}
