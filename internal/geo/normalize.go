package geo

// Normalize reduces a snapshot to an exportable FeatureCollection. Each
// feature keeps its geometry and its mode property only, and polygon rings are
// rewound to the right-hand rule. Everything else in a geometry, malformed
// parts included, is passed through untouched. Feature order is preserved and
// s is not modified.
func Normalize(s Snapshot) *FeatureCollection {
	fc := &FeatureCollection{
		Type:     typeFeatureCollection,
		Features: make([]Feature, 0, len(s)),
	}

	for _, item := range s {
		fc.Features = append(fc.Features, Feature{
			Type:       typeFeature,
			Geometry:   rewindGeometry(item.Geometry),
			Properties: item.ModeProperty(),
		})
	}

	return fc
}

func rewindGeometry(g Geometry) Geometry {
	if len(g.raw) == 0 {
		if g.value == nil {
			return g
		}
		return Geometry{value: Rewind(g.value)}
	}

	raw, changed := rewindRaw(g.raw)
	if !changed {
		return g
	}

	return Geometry{value: Rewind(g.value), raw: raw}
}
