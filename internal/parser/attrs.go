package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InvalidKey lists the attribute keys whose values failed validation. The
// raw value is still kept under the key itself.
const InvalidKey = "_invalid"

// Kind is the value type of an attribute.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDate
	KindTime
	KindDuration
	KindBool
	KindEnum
	KindRatio
)

// AttrSpec describes how one attribute key is parsed. Normalize runs on the
// raw text before the kind conversion; Validate runs on the converted value.
type AttrSpec struct {
	Kind      Kind
	Values    []string // allowed values for KindEnum
	Normalize func(string) string
	Validate  func(any) error
}

type alias struct {
	key   string
	value string
}

// Registry maps attribute keys to their descriptors.
type Registry struct {
	specs   map[string]AttrSpec
	aliases map[string]alias
}

var attrRe = regexp.MustCompile(`(^|\s)@([A-Za-z_][\w-]*)(?:\(([^)]*)\))?`)

// Default is the registry with the built-in zortex attributes.
var Default = NewRegistry()

// NewRegistry returns a registry loaded with the built-in attributes.
func NewRegistry() *Registry {
	r := &Registry{specs: map[string]AttrSpec{}, aliases: map[string]alias{}}

	priority := AttrSpec{Kind: KindInt, Normalize: normalizePriority, Validate: intRange(1, 3)}
	r.Register("id", AttrSpec{Kind: KindString})
	r.Register("p", priority)
	r.Register("priority", priority)
	for _, k := range []string{"due", "done", "start"} {
		r.Register(k, AttrSpec{Kind: KindDate})
	}
	r.Register("at", AttrSpec{Kind: KindTime})
	r.Register("dur", AttrSpec{Kind: KindDuration})
	r.Register("est", AttrSpec{Kind: KindDuration})
	r.Register("repeat", AttrSpec{Kind: KindEnum, Values: []string{"daily", "weekly", "monthly", "yearly"}})
	r.Register("progress", AttrSpec{Kind: KindRatio})
	r.Register("status", AttrSpec{Kind: KindEnum, Values: []string{"todo", "in_progress", "cancelled", "done"}})
	for i := 1; i <= 3; i++ {
		r.Alias(fmt.Sprintf("p%d", i), "p", strconv.Itoa(i))
	}
	return r
}

// Register adds or replaces the descriptor for key.
func (r *Registry) Register(key string, spec AttrSpec) {
	r.specs[strings.ToLower(key)] = spec
}

// Alias makes a bare @name equivalent to @key(value).
func (r *Registry) Alias(name, key, value string) {
	r.aliases[strings.ToLower(name)] = alias{key: key, value: value}
}

// Lookup returns the descriptor for key.
func (r *Registry) Lookup(key string) (AttrSpec, bool) {
	s, ok := r.specs[strings.ToLower(key)]
	return s, ok
}

// ParseAttributes removes @key(value) and @flag markers from text and
// returns the remaining text with the parsed attributes. Values that fail
// their descriptor are kept raw and listed under InvalidKey.
func (r *Registry) ParseAttributes(text string) (string, map[string]any) {
	attrs := map[string]any{}
	var invalid []string

	clean := attrRe.ReplaceAllStringFunc(text, func(match string) string {
		m := attrRe.FindStringSubmatch(match)
		key, raw, hasValue := strings.ToLower(m[2]), m[3], strings.Contains(match, "(")
		if a, ok := r.aliases[key]; ok && !hasValue {
			key, raw, hasValue = a.key, a.value, true
		}
		if !hasValue {
			if _, known := r.specs[key]; !known {
				attrs[key] = true
				return m[1]
			}
		}
		v, err := r.Convert(key, raw)
		if err != nil {
			attrs[key] = raw
			invalid = append(invalid, key)
			return m[1]
		}
		attrs[key] = v
		return m[1]
	})

	if len(invalid) > 0 {
		sort.Strings(invalid)
		attrs[InvalidKey] = invalid
	}
	return strings.Join(strings.Fields(clean), " "), attrs
}

// Convert parses raw according to the descriptor for key. Unknown keys are
// kept as trimmed strings.
func (r *Registry) Convert(key, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	spec, ok := r.specs[strings.ToLower(key)]
	if !ok {
		return raw, nil
	}
	if spec.Normalize != nil {
		raw = spec.Normalize(raw)
	}
	v, err := convert(spec, raw)
	if err != nil {
		return nil, fmt.Errorf("parser: attribute %q: %w", key, err)
	}
	if spec.Validate != nil {
		if err := spec.Validate(v); err != nil {
			return nil, fmt.Errorf("parser: attribute %q: %w", key, err)
		}
	}
	return v, nil
}

func convert(spec AttrSpec, raw string) (any, error) {
	switch spec.Kind {
	case KindInt:
		return strconv.Atoi(raw)
	case KindDate:
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindTime:
		t, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, err
		}
		return t.Format("15:04"), nil
	case KindDuration:
		return ParseDuration(raw)
	case KindBool:
		if raw == "" {
			return true, nil
		}
		return strconv.ParseBool(raw)
	case KindEnum:
		v := strings.ToLower(raw)
		for _, allowed := range spec.Values {
			if v == allowed {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %v", raw, spec.Values)
	case KindRatio:
		return parseRatio(raw)
	default:
		if raw == "" {
			return nil, fmt.Errorf("empty value")
		}
		return raw, nil
	}
}

// ParseDuration accepts Go durations, a "d" day suffix and bare minutes.
func ParseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(raw)
}

func parseRatio(raw string) (float64, error) {
	if pct, ok := strings.CutSuffix(raw, "%"); ok {
		n, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, err
		}
		return clampRatio(n / 100)
	}
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		return 0, fmt.Errorf("ratio %q: want n/m or n%%", raw)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 0, fmt.Errorf("ratio %q: zero denominator", raw)
	}
	return clampRatio(a / b)
}

func clampRatio(v float64) (float64, error) {
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("ratio %v out of [0,1]", v)
	}
	return v, nil
}

func normalizePriority(raw string) string {
	switch strings.ToLower(raw) {
	case "high", "h":
		return "1"
	case "medium", "med", "m":
		return "2"
	case "low", "l":
		return "3"
	}
	return raw
}

func intRange(lo, hi int) func(any) error {
	return func(v any) error {
		n, _ := v.(int)
		if n < lo || n > hi {
			return fmt.Errorf("%d out of range %d..%d", n, lo, hi)
		}
		return nil
	}
}

// ParseAttributes parses text with the Default registry.
func ParseAttributes(text string) (string, map[string]any) {
	return Default.ParseAttributes(text)
}
