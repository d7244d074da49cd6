package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/metrics"
	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   usgsGeometry   `json:"geometry"`
}
type usgsProperties struct {
	Mag   *float64 `json:"mag"` // null for some automatic solutions
	Place string   `json:"place"`
	Time  int64    `json:"time"` // unix millis
	Title string   `json:"title"`
}
type usgsGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

// rejection is a feature that could not become a rupture.
type rejection struct {
	ID  string
	Err error
}

func (m *Manager) pollUSGS(ctx context.Context, url string) ([]*models.Event, []rejection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	events, rejected, err := parseUSGS(resp.Body, m.cfg.Sources.RegionType(), time.Now())
	if err != nil {
		return nil, nil, err
	}
	return events, rejected, nil
}

// parseUSGS turns a GeoJSON summary feed into deterministic rupture events.
// The feed carries no fault geometry or mechanism, so every event gets a
// point surface at its hypocenter and a zero rake.
func parseUSGS(r io.Reader, trt tectonic.RegionType, now time.Time) ([]*models.Event, []rejection, error) {
	var data usgsResponse
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	events := make([]*models.Event, 0, len(data.Features))
	var rejected []rejection
	for _, f := range data.Features {
		id := models.SourceUSGS + "_" + f.ID

		r, err := featureRupture(f, trt)
		if err != nil {
			rejected = append(rejected, rejection{ID: id, Err: err})
			continue
		}

		events = append(events, &models.Event{
			ID:            id,
			Source:        models.SourceUSGS,
			Title:         f.Properties.Title,
			Deterministic: r,
			OccurredAt:    time.UnixMilli(f.Properties.Time).UTC(),
			CreatedAt:     now,
		})
	}

	return events, rejected, nil
}

func featureRupture(f usgsFeature, trt tectonic.RegionType) (*rupture.Rupture, error) {
	if len(f.Geometry.Coordinates) < 3 {
		return nil, fmt.Errorf("%w: expected [lon, lat, depth], got %d coordinates", metrics.ErrMalformed, len(f.Geometry.Coordinates))
	}
	if f.Properties.Mag == nil {
		return nil, fmt.Errorf("%w: magnitude is null", metrics.ErrMalformed)
	}

	c := f.Geometry.Coordinates
	hypo := &geo.Point{Longitude: c[0], Latitude: c[1], Depth: c[2]}
	return rupture.New(*f.Properties.Mag, 0, trt, hypo, geo.NewPointSurface(*hypo))
}
