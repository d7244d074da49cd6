package api

import (
	"time"

	"github.com/mr1hm/go-rupture-hazard/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toFeature places the event at its hypocenter; depth is the third coordinate.
func toFeature(e *models.Event) Feature {
	r := e.Rupture()
	c := e.Coordinates()

	props := map[string]any{
		"id":                   e.ID,
		"source":               e.Source,
		"title":                e.Title,
		"magnitude":            r.Magnitude(),
		"rake":                 r.Rake(),
		"tectonic_region_type": string(r.TectonicRegionType()),
		"surface_area":         r.Surface().Area(),
		"probabilistic":        e.IsProbabilistic(),
		"created_at":           e.CreatedAt.Format(time.RFC3339),
	}
	if !e.OccurredAt.IsZero() {
		props["occurred_at"] = e.OccurredAt.Format(time.RFC3339)
	}
	if p := e.Probabilistic; p != nil {
		props["occurrence_rate"] = p.OccurrenceRate()
		props["time_span"] = p.TemporalOccurrenceModel().TimeSpan()
		props["probability"] = p.Probability()
	}

	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{c.Longitude, c.Latitude, c.Depth},
		},
		Properties: props,
	}
}

func toGeoJSON(events []models.Event) FeatureCollection {
	features := make([]Feature, 0, len(events))
	for i := range events {
		features = append(features, toFeature(&events[i]))
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
