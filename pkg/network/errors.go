package network

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is matched by every configuration error.
	ErrConfig = errors.New("invalid network configuration")
	// ErrGeometry is matched by every geometry error.
	ErrGeometry = errors.New("invalid line geometry")
)

// ConfigError reports a bad option passed to a network operation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// GeometryKind names what is wrong with a rejected line.
type GeometryKind uint8

const (
	// KindRing is a closed line, which has no boundary endpoints.
	KindRing GeometryKind = iota + 1
	// KindMultiPart is an unexploded multi-part line.
	KindMultiPart
	// KindMixed is a geometry that is not a line at all.
	KindMixed
	// KindEndpointCount is a line without two usable endpoints.
	KindEndpointCount
)

func (k GeometryKind) String() string {
	switch k {
	case KindRing:
		return "ring"
	case KindMultiPart:
		return "multi-part"
	case KindMixed:
		return "mixed-type"
	case KindEndpointCount:
		return "endpoint-count"
	}
	return "unknown"
}

// GeometryError reports a line that cannot become an edge.
type GeometryError struct {
	Index int // position of the line in the input
	Kind  GeometryKind
	Type  string // GeoJSON type name of the offending geometry
}

func (e *GeometryError) Error() string {
	switch e.Kind {
	case KindRing:
		return fmt.Sprintf("line %d is a ring and has no endpoints; split or drop closed lines", e.Index)
	case KindMultiPart:
		return fmt.Sprintf("line %d is a %s with more than two endpoints; explode it to LineStrings first", e.Index, e.Type)
	case KindMixed:
		return fmt.Sprintf("line %d is a %s; only single-part LineStrings are allowed", e.Index, e.Type)
	default:
		return fmt.Sprintf("line %d does not have exactly two endpoints", e.Index)
	}
}

func (e *GeometryError) Unwrap() error { return ErrGeometry }
