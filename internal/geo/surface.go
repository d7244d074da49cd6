package geo

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidGeometry = errors.New("geo: invalid geometry")

// depthTolerance is how far corner depths along one edge may differ (km)
// before the edge is considered non-horizontal.
const depthTolerance = 1e-6

// Surface is the fault-surface capability a rupture carries.
type Surface interface {
	Area() float64
	Width() float64
	TopEdge() []Point
}

// PlanarSurface is a rectangular fault plane bounded by four corners.
type PlanarSurface struct {
	MeshSpacing float64
	Strike      float64
	Dip         float64
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

func NewPlanarSurface(meshSpacing, strike, dip float64, topLeft, topRight, bottomRight, bottomLeft Point) (*PlanarSurface, error) {
	if !(meshSpacing > 0) {
		return nil, fmt.Errorf("%w: mesh spacing must be positive", ErrInvalidGeometry)
	}
	if !(strike >= 0 && strike < 360) {
		return nil, fmt.Errorf("%w: strike must be in range [0, 360)", ErrInvalidGeometry)
	}
	if !(dip > 0 && dip <= 90) {
		return nil, fmt.Errorf("%w: dip must be in range (0, 90]", ErrInvalidGeometry)
	}
	if math.Abs(topLeft.Depth-topRight.Depth) > depthTolerance {
		return nil, fmt.Errorf("%w: top edge must be horizontal", ErrInvalidGeometry)
	}
	if math.Abs(bottomLeft.Depth-bottomRight.Depth) > depthTolerance {
		return nil, fmt.Errorf("%w: bottom edge must be horizontal", ErrInvalidGeometry)
	}
	if !(bottomLeft.Depth > topLeft.Depth) {
		return nil, fmt.Errorf("%w: bottom edge must be deeper than top edge", ErrInvalidGeometry)
	}

	return &PlanarSurface{
		MeshSpacing: meshSpacing,
		Strike:      strike,
		Dip:         dip,
		TopLeft:     topLeft,
		TopRight:    topRight,
		BottomRight: bottomRight,
		BottomLeft:  bottomLeft,
	}, nil
}

// Length is the along-strike length of the top edge in km.
func (s *PlanarSurface) Length() float64 {
	return s.TopLeft.Distance(s.TopRight)
}

// Width is the down-dip width in km.
func (s *PlanarSurface) Width() float64 {
	return s.TopLeft.Distance(s.BottomLeft)
}

func (s *PlanarSurface) Area() float64 {
	return s.Length() * s.Width()
}

func (s *PlanarSurface) TopEdge() []Point {
	return []Point{s.TopLeft, s.TopRight}
}

// Corners returns the corners in top-left, top-right, bottom-right,
// bottom-left order.
func (s *PlanarSurface) Corners() [4]Point {
	return [4]Point{s.TopLeft, s.TopRight, s.BottomRight, s.BottomLeft}
}

// PointSurface collapses a rupture onto a single location. Used for
// observed events whose finite geometry is unknown.
type PointSurface struct {
	Location Point
}

func NewPointSurface(p Point) *PointSurface {
	return &PointSurface{Location: p}
}

func (s *PointSurface) Area() float64 {
	return 0
}

func (s *PointSurface) Width() float64 {
	return 0
}

func (s *PointSurface) TopEdge() []Point {
	return []Point{s.Location}
}
