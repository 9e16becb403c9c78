// Package geo handles GeoJSON structures captured from the drawing surface
// and their normalization for export.
package geo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	typeFeatureCollection = "FeatureCollection"
	typeFeature           = "Feature"
)

// Snapshot is every shape present on the drawing surface at capture time.
type Snapshot []DrawnFeature

// DrawnFeature is one user-drawn shape as reported by the drawing surface.
// Everything besides the geometry and the mode property is opaque.
type DrawnFeature struct {
	ID         any            `json:"id,omitempty"`
	Properties map[string]any `json:"properties"`
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
}

// Mode returns the drawing mode the shape was captured with, empty when the
// mode property is missing or not a string.
func (f DrawnFeature) Mode() string {
	mode, _ := f.Properties["mode"].(string)
	return mode
}

// ModeProperty returns the mode property as the surface sent it.
func (f DrawnFeature) ModeProperty() Properties {
	v, ok := f.Properties["mode"]
	if !ok {
		return Properties{}
	}
	return ModeProperties(v)
}

// FeatureCollection is the normalized export document.
type FeatureCollection struct {
	Type     string    `json:"type" yaml:"type"`
	Features []Feature `json:"features" yaml:"features"`
}

// Feature carries only the geometry and the drawing mode of a shape.
type Feature struct {
	Type       string     `json:"type" yaml:"type"`
	Geometry   Geometry   `json:"geometry" yaml:"geometry"`
	Properties Properties `json:"properties" yaml:"properties"`
}

// Properties is the reduced property set kept on exported features: the mode
// property with whatever value the source had, or nothing when the source had
// no mode.
type Properties struct {
	mode any
	set  bool
}

// ModeProperties returns properties holding only mode.
func ModeProperties(mode any) Properties {
	return Properties{mode: mode, set: true}
}

// Mode returns the mode value and whether one is set.
func (p Properties) Mode() (any, bool) {
	return p.mode, p.set
}

// MarshalJSON encodes {"mode": ...}, or {} without a mode.
func (p Properties) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("{}"), nil
	}
	return json.Marshal(struct {
		Mode any `json:"mode"`
	}{p.mode})
}

// MarshalYAML emits the same structure as the JSON encoding.
func (p Properties) MarshalYAML() (any, error) {
	if !p.set {
		return map[string]any{}, nil
	}
	return map[string]any{"mode": p.mode}, nil
}

// Geometry holds a GeoJSON geometry. The JSON it arrived with is kept and
// written back as is; the orb value decoded from it, when orb accepts it, is a
// read-only view used for inspection.
type Geometry struct {
	value orb.Geometry
	raw   json.RawMessage
}

// NewGeometry wraps an orb geometry.
func NewGeometry(g orb.Geometry) Geometry {
	return Geometry{value: g}
}

// Orb returns the decoded geometry, nil when the input was not decodable.
func (g Geometry) Orb() orb.Geometry {
	return g.value
}

// Raw returns the JSON the geometry was decoded from, nil for geometries
// built with NewGeometry.
func (g Geometry) Raw() json.RawMessage {
	return g.raw
}

// IsZero reports whether the geometry is absent.
func (g Geometry) IsZero() bool {
	return g.value == nil && len(g.raw) == 0
}

// UnmarshalJSON never fails on a syntactically valid value. The input is kept
// verbatim, including members and coordinate values orb does not model.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	g.value, g.raw = nil, nil

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	g.raw = append(json.RawMessage(nil), data...)
	if parsed, err := geojson.UnmarshalGeometry(data); err == nil {
		g.value = parsed.Geometry()
	}

	return nil
}

// MarshalJSON writes the original JSON back, or encodes the orb value for
// geometries built with NewGeometry.
func (g Geometry) MarshalJSON() ([]byte, error) {
	switch {
	case len(g.raw) > 0:
		return g.raw, nil
	case g.value != nil:
		return geojson.NewGeometry(g.value).MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML emits the same structure as the JSON encoding.
func (g Geometry) MarshalYAML() (any, error) {
	data, err := g.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type snapshotDocument struct {
	Type     string         `json:"type"`
	Features []DrawnFeature `json:"features"`
}

// DecodeSnapshot parses either a bare array of features or a FeatureCollection.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Snapshot{}, nil
	}

	if trimmed[0] == '[' {
		var s Snapshot
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return s, nil
	}

	var doc snapshotDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Type != "" && doc.Type != typeFeatureCollection {
		return nil, fmt.Errorf("decode snapshot: unexpected type %q", doc.Type)
	}
	if doc.Features == nil {
		return Snapshot{}, nil
	}

	return Snapshot(doc.Features), nil
}
