package geo

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/paulmach/orb"
)

// Rewind returns a copy of g whose polygon rings follow the right-hand rule:
// exterior rings counter-clockwise, holes clockwise. Other geometry types are
// returned unchanged. The input is never modified.
func Rewind(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}

	out := orb.Clone(g)
	rewindInPlace(out)

	return out
}

func rewindInPlace(g orb.Geometry) {
	switch v := g.(type) {
	case orb.Polygon:
		rewindPolygon(v)
	case orb.MultiPolygon:
		for _, p := range v {
			rewindPolygon(p)
		}
	case orb.Collection:
		for _, child := range v {
			rewindInPlace(child)
		}
	}
}

func rewindPolygon(p orb.Polygon) {
	for i, ring := range p {
		want := orb.CCW
		if i > 0 {
			want = orb.CW
		}
		rewindRing(ring, want)
	}
}

// rewindRing reverses ring when it winds against want.
func rewindRing(ring orb.Ring, want orb.Orientation) {
	if windsAgainst(ring, want) {
		ring.Reverse()
	}
}

// windsAgainst reports whether ring has an orientation other than want.
// Degenerate rings have no orientation and are left as they are.
func windsAgainst(ring orb.Ring, want orb.Orientation) bool {
	if len(ring) < 3 {
		return false
	}
	o := ring.Orientation()
	return o != 0 && o != want
}

// rewindRaw applies the right-hand rule to a geometry held as GeoJSON text.
// Only the order of ring positions changes: members, their order and every
// coordinate value, altitude included, are kept. Rings that are not arrays
// of numeric positions are left alone. It reports whether anything was
// reversed, and returns data itself when not.
func rewindRaw(data []byte) ([]byte, bool) {
	obj, ok := decodeObject(data)
	if !ok {
		return data, false
	}

	var typ string
	if err := json.Unmarshal(obj.values["type"], &typ); err != nil {
		return data, false
	}

	switch typ {
	case "Polygon", "MultiPolygon":
		coords, ok := decodeCoordinates(obj.values["coordinates"])
		if !ok {
			return data, false
		}

		changed := false
		if typ == "Polygon" {
			changed = rewindRawPolygon(coords)
		} else if polygons, ok := coords.([]any); ok {
			for _, p := range polygons {
				if rewindRawPolygon(p) {
					changed = true
				}
			}
		}
		if !changed {
			return data, false
		}

		enc, err := json.Marshal(coords)
		if err != nil {
			return data, false
		}
		obj.values["coordinates"] = enc

	case "GeometryCollection":
		var geometries []json.RawMessage
		if err := json.Unmarshal(obj.values["geometries"], &geometries); err != nil {
			return data, false
		}

		changed := false
		for i, child := range geometries {
			if out, ok := rewindRaw(child); ok {
				geometries[i] = out
				changed = true
			}
		}
		if !changed {
			return data, false
		}

		enc, err := json.Marshal(geometries)
		if err != nil {
			return data, false
		}
		obj.values["geometries"] = enc

	default:
		return data, false
	}

	return obj.encode(), true
}

func rewindRawPolygon(v any) bool {
	rings, ok := v.([]any)
	if !ok {
		return false
	}

	changed := false
	for i, r := range rings {
		positions, ok := r.([]any)
		if !ok {
			continue
		}
		ring, ok := rawRing(positions)
		if !ok {
			continue
		}

		want := orb.CCW
		if i > 0 {
			want = orb.CW
		}
		if windsAgainst(ring, want) {
			slices.Reverse(positions)
			changed = true
		}
	}

	return changed
}

// rawRing reads the planar part of every position in a ring.
func rawRing(positions []any) (orb.Ring, bool) {
	ring := make(orb.Ring, 0, len(positions))
	for _, p := range positions {
		values, ok := p.([]any)
		if !ok || len(values) < 2 {
			return nil, false
		}
		x, okX := rawNumber(values[0])
		y, okY := rawNumber(values[1])
		if !okX || !okY {
			return nil, false
		}
		ring = append(ring, orb.Point{x, y})
	}

	return ring, true
}

func rawNumber(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

// decodeCoordinates keeps numbers as their original literals.
func decodeCoordinates(data json.RawMessage) (any, bool) {
	if len(data) == 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// object is a JSON object whose members keep their order.
type object struct {
	values map[string]json.RawMessage
	keys   []string
}

func decodeObject(data []byte) (*object, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}

	obj := &object{values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if _, seen := obj.values[key]; !seen {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = value
	}

	return obj, true
}

func (o *object) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(key)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(o.values[key])
	}
	buf.WriteByte('}')

	return buf.Bytes()
}
