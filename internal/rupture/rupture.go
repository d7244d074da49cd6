package rupture

import (
	"fmt"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

// Rupture is a deterministic description of a single earthquake source.
// It is immutable once built and safe to share between goroutines.
type Rupture struct {
	magnitude  float64
	rake       float64
	trt        tectonic.RegionType
	hypocenter *geo.Point
	surface    geo.Surface
}

// New validates its arguments and builds a Rupture. Checks run in a fixed
// order: region type, magnitude, hypocenter depth, surface. The first
// failing check is reported as an *InvalidArgumentError.
//
// The hypocenter and surface are stored as given, not copied.
func New(mag, rake float64, trt tectonic.RegionType, hypocenter *geo.Point, surface geo.Surface) (*Rupture, error) {
	if err := validate(mag, trt, hypocenter, surface); err != nil {
		return nil, err
	}
	return &Rupture{
		magnitude:  mag,
		rake:       rake,
		trt:        trt,
		hypocenter: hypocenter,
		surface:    surface,
	}, nil
}

func validate(mag float64, trt tectonic.RegionType, hypocenter *geo.Point, surface geo.Surface) error {
	if !trt.Valid() {
		return invalid(fmt.Sprintf("unknown tectonic region type '%s'", trt))
	}
	if !(mag > 0) {
		return invalid("magnitude must be positive")
	}
	if hypocenter == nil {
		return invalid("rupture hypocenter is required")
	}
	if !(hypocenter.Depth > 0) {
		return invalid("rupture hypocenter must have positive depth")
	}
	if surface == nil {
		return invalid("rupture surface is required")
	}
	return nil
}

func (r *Rupture) Magnitude() float64 {
	return r.magnitude
}

// Rake is the slip direction in degrees. No range is enforced.
func (r *Rupture) Rake() float64 {
	return r.rake
}

func (r *Rupture) TectonicRegionType() tectonic.RegionType {
	return r.trt
}

func (r *Rupture) Hypocenter() *geo.Point {
	return r.hypocenter
}

func (r *Rupture) Surface() geo.Surface {
	return r.surface
}
