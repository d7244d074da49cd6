package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

type Filter struct {
	Limit              int
	Offset             int
	Since              *time.Time
	TectonicRegionType *tectonic.RegionType
	MinMagnitude       *float64
	ProbabilisticOnly  bool
}

type EventRepository interface {
	Add(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListEvents(ctx context.Context, opts Filter) ([]models.Event, error)
	Count(ctx context.Context) (int64, error)
}
