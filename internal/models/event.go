package models

import (
	"time"

	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
)

const (
	SourceUSGS = "usgs"
	SourceAPI  = "api"
)

// Event is a cataloged rupture. Exactly one of Deterministic and
// Probabilistic is set.
type Event struct {
	ID            string // Unique ID, prefixed with the source (e.g., "usgs_us7000abcd")
	Source        string
	Title         string
	Deterministic *rupture.Rupture
	Probabilistic *rupture.ProbabilisticRupture
	OccurredAt    time.Time // when the earthquake happened; zero for modeled ruptures
	CreatedAt     time.Time // when we cataloged it
}

// Rupture returns the shared rupture description regardless of variant.
func (e *Event) Rupture() *rupture.Rupture {
	if e.Probabilistic != nil {
		return &e.Probabilistic.Rupture
	}
	return e.Deterministic
}

func (e *Event) IsProbabilistic() bool {
	return e.Probabilistic != nil
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
	Depth     float64
}

func (e *Event) Coordinates() Coordinates {
	h := e.Rupture().Hypocenter()
	return Coordinates{
		Latitude:  h.Latitude,
		Longitude: h.Longitude,
		Depth:     h.Depth,
	}
}
