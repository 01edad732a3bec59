package model

import (
	"slices"
	"time"
)

type clearSignal struct{}

// Clear is the explicit signal that removes a previously set field. Among
// strategies only email verification emits it; the pipeline also uses it to
// drop stale enrichment errors after a clean run.
var Clear = clearSignal{}

// FieldUpdate is a sparse set of field changes produced by one strategy.
// Keys absent from the map are untouched.
type FieldUpdate map[Field]any

// Set records v for f unless v is null.
func (u FieldUpdate) Set(f Field, v any) {
	if IsNull(v) {
		return
	}
	u[f] = v
}

// ClearField records an explicit removal of f.
func (u FieldUpdate) ClearField(f Field) {
	u[f] = Clear
}

// Merge copies the non-null entries of other into u, overwriting.
func (u FieldUpdate) Merge(other FieldUpdate) {
	for f, v := range other {
		if v == Clear {
			u[f] = Clear
			continue
		}
		u.Set(f, v)
	}
}

// Fields returns the keys of u in canonical column order.
func (u FieldUpdate) Fields() []Field {
	out := make([]Field, 0, len(u))
	for _, f := range Fields {
		if _, ok := u[f]; ok {
			out = append(out, f)
		}
	}
	for f := range u {
		if !slices.Contains(Fields, f) {
			out = append(out, f)
		}
	}
	return out
}

// IsNull reports whether v carries no value: nil, an empty string, a nil
// pointer, an empty slice or a zero time.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case *string:
		return x == nil || *x == ""
	case *float64:
		return x == nil
	case *int:
		return x == nil
	case *bool:
		return x == nil
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}
