package network

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Attrs holds the attribute columns of a line or edge.
type Attrs map[string]any

// Float returns the attribute as a number. Strings are parsed; anything
// else (or a missing key) reports false.
func (a Attrs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String returns the attribute formatted as a string, or "" when missing.
func (a Attrs) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Line is one input feature: a geometry plus its attribute columns.
type Line struct {
	Geometry orb.Geometry
	Attrs    Attrs
}
