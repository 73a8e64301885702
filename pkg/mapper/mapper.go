// Package mapper turns loosely-structured, dynamically-keyed survey payloads
// into typed domain values. It is a pure transform: no I/O, no storage.
package mapper

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
)

// Mapped holds normalized values keyed by target field name. Absent optional
// keys have no entry; bool targets are always present and default to false.
type Mapped struct {
	values map[string]any
}

// Has reports whether a value was mapped for the target field.
func (m Mapped) Has(target string) bool {
	_, ok := m.values[target]
	return ok
}

// String returns the mapped string for target, or nil when absent.
func (m Mapped) String(target string) *string {
	if v, ok := m.values[target].(string); ok {
		return &v
	}
	return nil
}

// Int returns the mapped integer for target, or nil when absent.
func (m Mapped) Int(target string) *int {
	if v, ok := m.values[target].(int); ok {
		return &v
	}
	return nil
}

// Bool returns the mapped boolean for target. Absent means false.
func (m Mapped) Bool(target string) bool {
	v, _ := m.values[target].(bool)
	return v
}

// Time returns the mapped timestamp for target, or nil when absent.
func (m Mapped) Time(target string) *time.Time {
	if v, ok := m.values[target].(time.Time); ok {
		return &v
	}
	return nil
}

// Map applies the mapping table to one raw payload. Values that cannot be
// coerced to their declared kind are left absent and reported in the returned
// error slice (each a *apperrors.MalformedFieldError); the caller decides
// whether to null-and-log or reject. Missing optional keys are simply absent,
// never defaulted, with the single exception of bool kinds which map to
// false by rule.
func Map(raw map[string]any, table []FieldMapping) (Mapped, []error) {
	out := Mapped{values: make(map[string]any, len(table))}
	var fieldErrs []error

	for _, fm := range table {
		rawVal, present := raw[fm.SourceKey]

		switch fm.Kind {
		case KindBool:
			// Lossy binary rule: exact "Yes"/"yes" is true, anything
			// else (absent included) is false.
			s, _ := rawVal.(string)
			out.values[fm.Target] = s == "Yes" || s == "yes"

		case KindString:
			if !present || rawVal == nil {
				continue
			}
			out.values[fm.Target] = coerceString(rawVal)

		case KindInt:
			if !present || rawVal == nil {
				continue
			}
			n, ok, err := coerceInt(rawVal)
			if err != nil {
				fieldErrs = append(fieldErrs, &apperrors.MalformedFieldError{
					Key: fm.SourceKey, Value: rawVal, Err: err,
				})
				continue
			}
			if ok {
				out.values[fm.Target] = n
			}

		case KindDateTime, KindDate:
			if !present || rawVal == nil {
				continue
			}
			t, err := coerceTime(rawVal, fm.Kind)
			if err != nil {
				fieldErrs = append(fieldErrs, &apperrors.MalformedFieldError{
					Key: fm.SourceKey, Value: rawVal, Err: err,
				})
				continue
			}
			out.values[fm.Target] = t

		case KindOpaque:
			if !present || rawVal == nil {
				continue
			}
			out.values[fm.Target] = CanonicalString(rawVal)
		}
	}

	return out, fieldErrs
}

// coerceString renders a scalar as a string. Survey tools are inconsistent
// about quoting, so numbers and booleans are accepted too.
func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// coerceInt parses numeric-looking values. Empty strings count as absent
// (ok=false); non-numeric non-empty strings are malformed.
func coerceInt(v any) (n int, ok bool, err error) {
	switch t := v.(type) {
	case int:
		return t, true, nil
	case int64:
		return int(t), true, nil
	case float64:
		return int(t), true, nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("not an integer: %w", err)
		}
		return int(i), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, fmt.Errorf("not an integer: %q", t)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported type %T", v)
	}
}

// Timestamp layouts seen in Kobo exports, most specific first.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

const dateLayout = "2006-01-02"

func coerceTime(v any, kind Kind) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if kind == KindDate {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("not a date: %q", s)
		}
		return t, nil
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a timestamp: %q", s)
}

// CanonicalString renders an opaque structured value as a stable string for
// persistence in a text column. Lists join their rendered elements with
// ", " preserving order; maps render as JSON with sorted keys; scalars
// render verbatim. Empty lists and nil render as the empty string.
func CanonicalString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = CanonicalString(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// json.Marshal sorts map keys, so the rendering is stable.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", sortedKeys(t))
		}
		return string(b)
	default:
		return coerceString(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
