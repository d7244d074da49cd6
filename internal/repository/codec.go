package repository

import (
	"encoding/json"
	"fmt"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/tom"
)

const (
	surfaceKindPlanar = "planar"
	surfaceKindPoint  = "point"

	modelKindPoisson = "poisson"
)

type surfaceRecord struct {
	MeshSpacing float64     `json:"mesh_spacing,omitempty"`
	Strike      float64     `json:"strike,omitempty"`
	Dip         float64     `json:"dip,omitempty"`
	Points      []geo.Point `json:"points"`
}

func encodeSurface(s geo.Surface) (string, []byte, error) {
	var (
		kind string
		rec  surfaceRecord
	)
	switch v := s.(type) {
	case *geo.PlanarSurface:
		c := v.Corners()
		kind = surfaceKindPlanar
		rec = surfaceRecord{
			MeshSpacing: v.MeshSpacing,
			Strike:      v.Strike,
			Dip:         v.Dip,
			Points:      c[:],
		}
	case *geo.PointSurface:
		kind = surfaceKindPoint
		rec = surfaceRecord{Points: []geo.Point{v.Location}}
	default:
		return "", nil, fmt.Errorf("unsupported surface type %T", s)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", nil, err
	}
	return kind, data, nil
}

func decodeSurface(kind string, data []byte) (geo.Surface, error) {
	var rec surfaceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	switch kind {
	case surfaceKindPlanar:
		if len(rec.Points) != 4 {
			return nil, fmt.Errorf("planar surface needs 4 corners, got %d", len(rec.Points))
		}
		p := rec.Points
		s, err := geo.NewPlanarSurface(rec.MeshSpacing, rec.Strike, rec.Dip, p[0], p[1], p[2], p[3])
		if err != nil {
			return nil, err
		}
		return s, nil
	case surfaceKindPoint:
		if len(rec.Points) != 1 {
			return nil, fmt.Errorf("point surface needs 1 point, got %d", len(rec.Points))
		}
		return geo.NewPointSurface(rec.Points[0]), nil
	default:
		return nil, fmt.Errorf("unknown surface kind %q", kind)
	}
}

func encodeModel(m tom.TemporalOccurrenceModel) (string, float64, error) {
	switch m.(type) {
	case *tom.Poisson:
		return modelKindPoisson, m.TimeSpan(), nil
	default:
		return "", 0, fmt.Errorf("unsupported occurrence model %T", m)
	}
}

func decodeModel(kind string, timeSpan float64) (tom.TemporalOccurrenceModel, error) {
	switch kind {
	case modelKindPoisson:
		p, err := tom.NewPoisson(timeSpan)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown occurrence model %q", kind)
	}
}
