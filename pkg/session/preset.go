package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/units"
)

// Preset is a named orbit configuration.
type Preset struct {
	Name                string  `json:"name"`
	SemiMajorAxisMeters float64 `json:"semiMajorAxisMeters"`
	Eccentricity        float64 `json:"eccentricity"`
	MassMantissa        float64 `json:"massMantissa"`
	MassExponent        int     `json:"massExponent"`
}

var presets = map[string]Preset{
	"earth": {
		Name:                "earth",
		SemiMajorAxisMeters: units.AUInMeters,
		Eccentricity:        0.0167,
		MassMantissa:        1.989,
		MassExponent:        30,
	},
	"moon": {
		Name:                "moon",
		SemiMajorAxisMeters: 384748000,
		Eccentricity:        0.0549,
		MassMantissa:        5.972,
		MassExponent:        24,
	},
}

// LookupPreset finds a preset by name, ignoring case.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// PresetNames lists the known presets in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SemiMajorAxisAU is the value shown in the axis field after loading p.
func (p Preset) SemiMajorAxisAU() float64 {
	return units.MetersToAU(p.SemiMajorAxisMeters)
}

// State builds the orbit state p describes.
func (p Preset) State() (State, error) {
	shape, err := orbit.FromEccentricity(units.MetersToPixels(p.SemiMajorAxisMeters), p.Eccentricity)
	if err != nil {
		return State{}, err
	}
	return State{MassMantissa: p.MassMantissa, MassExponent: p.MassExponent}.withShape(shape), nil
}
