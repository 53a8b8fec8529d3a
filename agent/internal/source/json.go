package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

// JSONParams configures a json source.
type JSONParams struct {
	Endpoint string `yaml:"endpoint"`

	// Path is a dotted path to the node holding the targets. Empty means the
	// document root.
	Path string `yaml:"path"`

	// NameField names the member holding the target name when the node is an
	// array of objects. Defaults to "name".
	NameField string `yaml:"name_field"`

	// Rates lists counter fields that also get a per-minute "_pm" field.
	Rates []string `yaml:"rates"`
}

// JSON reads a JSON document whose target node is either an object of
// objects (keys are target names) or an array of objects (names taken from
// NameField). Numbers and booleans become fields, nested objects are
// flattened with dotted keys, and strings become attributes.
type JSON struct {
	params JSONParams
	client *http.Client
	rates  *rates
	now    func() time.Time
}

// NewJSON builds a json source from the monitor's params.
func NewJSON(m config.Monitor) (*JSON, error) {
	p := JSONParams{NameField: "name"}
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	if p.Endpoint == "" {
		return nil, fmt.Errorf("json: params.endpoint is required")
	}
	client, err := buildHTTPClient(m)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return &JSON{params: p, client: client, rates: newRates(p.Rates), now: time.Now}, nil
}

// Sample fetches and decodes the document.
func (s *JSON) Sample(ctx context.Context) (*Sample, error) {
	body, err := getBody(ctx, s.client, s.params.Endpoint, "application/json")
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	smp, err := decodeTargets(body, s.params, s.now())
	if err != nil {
		return nil, fmt.Errorf("json %s: %w", s.params.Endpoint, err)
	}
	s.rates.apply(smp)
	return smp, nil
}

func decodeTargets(body []byte, p JSONParams, at time.Time) (*Sample, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	node := doc
	if p.Path != "" {
		for _, part := range strings.Split(p.Path, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: path %q: %q is not an object", ErrMalformed, p.Path, part)
			}
			if node, ok = obj[part]; !ok {
				return nil, fmt.Errorf("%w: path %q: %q not found", ErrMalformed, p.Path, part)
			}
		}
	}

	smp := NewSample(at)
	switch n := node.(type) {
	case map[string]any:
		for name, v := range n {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			flatten(smp, name, "", obj)
		}
	case []any:
		for i, v := range n {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformed, i)
			}
			name, ok := obj[p.NameField].(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("%w: element %d has no %q", ErrMalformed, i, p.NameField)
			}
			flatten(smp, name, "", obj)
		}
	default:
		return nil, fmt.Errorf("%w: target node is neither object nor array", ErrMalformed)
	}
	return smp, nil
}

func flatten(smp *Sample, target, prefix string, obj map[string]any) {
	smp.reading(target)
	for k, v := range obj {
		key := prefix + k
		switch val := v.(type) {
		case float64:
			smp.Set(target, key, val)
		case bool:
			smp.Set(target, key, boolValue(val))
		case string:
			smp.SetAttr(target, key, val)
		case map[string]any:
			flatten(smp, target, key+".", val)
		}
	}
}
