package tectonic

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRegionType = errors.New("tectonic: unknown region type")

// RegionType labels the seismotectonic environment a rupture belongs to.
type RegionType string

const (
	ActiveShallowCrust  RegionType = "Active Shallow Crust"
	StableContinental   RegionType = "Stable Shallow Crust"
	SubductionInterface RegionType = "Subduction Interface"
	SubductionIntraslab RegionType = "Subduction IntraSlab"
	Volcanic            RegionType = "Volcanic"
	Geothermal          RegionType = "Geothermal"
)

var regionTypes = []RegionType{
	ActiveShallowCrust,
	StableContinental,
	SubductionInterface,
	SubductionIntraslab,
	Volcanic,
	Geothermal,
}

var regionKeys = map[string]RegionType{
	"active_shallow_crust": ActiveShallowCrust,
	"stable_continental":   StableContinental,
	"subduction_interface": SubductionInterface,
	"subduction_intraslab": SubductionIntraslab,
	"volcanic":             Volcanic,
	"geothermal":           Geothermal,
}

// RegionTypes returns every member of the enumeration in declaration order.
func RegionTypes() []RegionType {
	out := make([]RegionType, len(regionTypes))
	copy(out, regionTypes)
	return out
}

func (r RegionType) Valid() bool {
	for _, known := range regionTypes {
		if r == known {
			return true
		}
	}
	return false
}

func (r RegionType) String() string {
	return string(r)
}

// ParseRegionType accepts either the label ("Stable Shallow Crust") or the
// snake-case key ("stable_continental"), ignoring case.
func ParseRegionType(s string) (RegionType, error) {
	trimmed := strings.TrimSpace(s)
	for _, known := range regionTypes {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	if r, ok := regionKeys[strings.ToLower(trimmed)]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegionType, s)
}
