// Package codec maps structured domain values onto the flat scalar/array
// property model a graph store holds natively, and back. Encode and Decode
// satisfy a round-trip law: any value the codec decomposed is reconstructed
// identically on read, modulo second-precision timestamps.
package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ohana-garden/almoner/internal/models"
)

// temporalFields names the properties decoded back into time.Time. Decoding
// is name-driven, not type-driven: the store holds ISO-8601 text and only
// these fields are rehydrated.
var temporalFields = map[string]bool{
	"deadline":  true,
	"timestamp": true,
	"createdAt": true,
	"updatedAt": true,
	"closeDate": true,
}

// Codec encodes and decodes property records. Stateless after construction.
type Codec struct {
	logger *slog.Logger
}

// New creates a codec. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{logger: logger}
}

// Encode flattens structured values into store-native scalars and arrays.
// Range-shaped values decompose into <field>Min/<field>Max/<field>Currency,
// coordinates into <field>Lat/<field>Lng/<field>State, dates into ISO-8601
// text, and any other nested record into a single JSON-text scalar. Nil
// values are dropped. Lists of nested records are unsupported; model them as
// separate nodes and edges instead.
func (c *Codec) Encode(props map[string]any) (map[string]any, error) {
	flat := make(map[string]any, len(props))
	for key, value := range props {
		if value == nil {
			continue
		}

		switch v := value.(type) {
		case models.AmountRange:
			encodeRange(flat, key, &v)
		case *models.AmountRange:
			if v != nil {
				encodeRange(flat, key, v)
			}
		case models.GeoPoint:
			encodePoint(flat, key, &v)
		case *models.GeoPoint:
			if v != nil {
				encodePoint(flat, key, v)
			}
		case time.Time:
			flat[key] = v.UTC().Truncate(time.Second).Format(time.RFC3339)
		case map[string]any:
			if err := c.encodeMap(flat, key, v); err != nil {
				return nil, err
			}
		case []any:
			if containsRecord(v) {
				return nil, fmt.Errorf("encoding %q: lists of nested records are unsupported, store them as nodes and edges", key)
			}
			flat[key] = v
		default:
			flat[key] = v
		}
	}
	return flat, nil
}

// encodeMap handles untyped nested records: known shapes decompose like
// their typed counterparts, everything else falls back to JSON text. Shape
// detection requires the map's keys to be a subset of the shape's fields, so
// a map carrying extra keys is preserved whole as JSON instead of losing
// them. Component values are copied verbatim when they are not numeric;
// nothing is ever dropped.
func (c *Codec) encodeMap(flat map[string]any, key string, m map[string]any) error {
	if keysWithin(m, "min", "max", "currency") {
		_, hasMin := m["min"]
		_, hasMax := m["max"]
		if hasMin || hasMax {
			copyComponent(flat, key+"Min", m["min"])
			copyComponent(flat, key+"Max", m["max"])
			copyComponent(flat, key+"Currency", m["currency"])
			return nil
		}
	}

	if keysWithin(m, "lat", "lng", "state") {
		_, hasLat := m["lat"]
		_, hasLng := m["lng"]
		if hasLat || hasLng {
			copyComponent(flat, key+"Lat", m["lat"])
			copyComponent(flat, key+"Lng", m["lng"])
			copyComponent(flat, key+"State", m["state"])
			return nil
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %q as JSON fallback: %w", key, err)
	}
	flat[key] = string(raw)
	return nil
}

// keysWithin reports whether every key of m is in allowed.
func keysWithin(m map[string]any, allowed ...string) bool {
	for k := range m {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// copyComponent writes one decomposed component, normalizing numerics to
// float64 and passing any other non-nil value through unchanged.
func copyComponent(flat map[string]any, key string, v any) {
	if v == nil {
		return
	}
	if f, ok := toFloat(v); ok {
		flat[key] = f
		return
	}
	flat[key] = v
}

func encodeRange(flat map[string]any, key string, r *models.AmountRange) {
	if r.Min != nil {
		flat[key+"Min"] = *r.Min
	}
	if r.Max != nil {
		flat[key+"Max"] = *r.Max
	}
	if r.Currency != "" {
		flat[key+"Currency"] = r.Currency
	}
}

func encodePoint(flat map[string]any, key string, p *models.GeoPoint) {
	if p.Lat != nil {
		flat[key+"Lat"] = *p.Lat
	}
	if p.Lng != nil {
		flat[key+"Lng"] = *p.Lng
	}
	if p.State != "" {
		flat[key+"State"] = p.State
	}
}

// Decode reverses Encode: sibling Min/Max and Lat/Lng fields regroup into
// ranges and coordinates, JSON-text scalars parse back into records, and the
// named temporal fields parse back into time.Time. A scalar that looks like
// JSON but fails to parse is returned as the raw string; that ambiguity is
// logged, never fatal.
func (c *Codec) Decode(flat map[string]any) (map[string]any, error) {
	props := make(map[string]any, len(flat))
	consumed := make(map[string]bool, len(flat))

	// Regroup decomposed ranges and coordinates first so their parts never
	// leak to the top level.
	for key := range flat {
		if base, ok := strings.CutSuffix(key, "Min"); ok && base != "" {
			decodeRange(flat, props, consumed, base)
		} else if base, ok := strings.CutSuffix(key, "Max"); ok && base != "" {
			decodeRange(flat, props, consumed, base)
		} else if base, ok := strings.CutSuffix(key, "Lat"); ok && base != "" {
			decodePoint(flat, props, consumed, base)
		} else if base, ok := strings.CutSuffix(key, "Lng"); ok && base != "" {
			decodePoint(flat, props, consumed, base)
		}
	}

	for key, value := range flat {
		if consumed[key] {
			continue
		}

		if s, ok := value.(string); ok {
			if temporalFields[key] {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					props[key] = t.UTC().Truncate(time.Second)
					continue
				}
				c.logger.Warn("temporal field is not valid ISO-8601, keeping raw string", "field", key)
			}
			if looksLikeJSON(s) {
				var m map[string]any
				if err := json.Unmarshal([]byte(s), &m); err != nil {
					c.logger.Warn("scalar looks like JSON but failed to parse, keeping raw string",
						"field", key, "error", err)
					props[key] = s
					continue
				}
				props[key] = m
				continue
			}
		}

		props[key] = value
	}

	return props, nil
}

// decodeRange regroups sibling components into a range. When no component is
// numeric nothing is consumed and no record is written; the raw fields stay
// at the top level rather than backing a fabricated empty range.
func decodeRange(flat, props map[string]any, consumed map[string]bool, base string) {
	if _, done := props[base]; done {
		return
	}
	r := &models.AmountRange{}
	parts := 0
	if f, ok := toFloat(flat[base+"Min"]); ok {
		r.Min = &f
		consumed[base+"Min"] = true
		parts++
	}
	if f, ok := toFloat(flat[base+"Max"]); ok {
		r.Max = &f
		consumed[base+"Max"] = true
		parts++
	}
	if parts == 0 {
		return
	}
	if s, ok := flat[base+"Currency"].(string); ok {
		r.Currency = s
		consumed[base+"Currency"] = true
	}
	props[base] = r
}

func decodePoint(flat, props map[string]any, consumed map[string]bool, base string) {
	if _, done := props[base]; done {
		return
	}
	p := &models.GeoPoint{}
	parts := 0
	if f, ok := toFloat(flat[base+"Lat"]); ok {
		p.Lat = &f
		consumed[base+"Lat"] = true
		parts++
	}
	if f, ok := toFloat(flat[base+"Lng"]); ok {
		p.Lng = &f
		consumed[base+"Lng"] = true
		parts++
	}
	if parts == 0 {
		return
	}
	if s, ok := flat[base+"State"].(string); ok {
		p.State = s
		consumed[base+"State"] = true
	}
	props[base] = p
}

// NameKey normalizes a display name for exact-name matching: lowercased with
// runs of whitespace collapsed to single spaces.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func looksLikeJSON(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

func containsRecord(list []any) bool {
	for _, item := range list {
		switch item.(type) {
		case map[string]any, models.AmountRange, *models.AmountRange, models.GeoPoint, *models.GeoPoint:
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
