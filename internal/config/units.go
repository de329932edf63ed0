package config

import (
	"math"

	"github.com/wildstyl3r/mcfit/internal/utils"
)

// internal units: MeV, cm, rad, MeV/c
var unitToInternal = map[string]float64{
	"eV":    1e-6,          // [MeV]
	"keV":   1e-3,          // [MeV]
	"MeV":   1,             // [MeV]
	"GeV":   1e3,           // [MeV]
	"fm":    1e-13,         // [cm]
	"nm":    1e-7,          // [cm]
	"um":    1e-4,          // [cm]
	"mm":    1e-1,          // [cm]
	"cm":    1,             // [cm]
	"m":     1e2,           // [cm]
	"rad":   1,             // [rad]
	"mrad":  1e-3,          // [rad]
	"deg":   math.Pi / 180, // [rad]
	"keV/c": 1e-3,          // [MeV/c]
	"MeV/c": 1,             // [MeV/c]
	"GeV/c": 1e3,           // [MeV/c]
}

type UnitClass int

const (
	Energy UnitClass = iota
	Length
	Angle
	Momentum
)

func (c UnitClass) String() string {
	switch c {
	case Energy:
		return "energy"
	case Length:
		return "length"
	case Angle:
		return "angle"
	case Momentum:
		return "momentum"
	}
	return "unknown"
}

var unitsInClass = map[UnitClass][]string{
	Energy:   {"eV", "keV", "MeV", "GeV"},
	Length:   {"fm", "nm", "um", "mm", "cm", "m"},
	Angle:    {"rad", "mrad", "deg"},
	Momentum: {"keV/c", "MeV/c", "GeV/c"},
}

var classesOfUnits = func() map[string]UnitClass {
	m := map[string]UnitClass{}
	for class, units := range unitsInClass {
		for _, u := range units {
			m[u] = class
		}
	}
	return m
}()

var defaultUnits = []string{"MeV", "cm", "rad", "MeV/c"}

type UnitElement = struct {
	Class UnitClass
	Power int
}

// checkUnits completes units with the default unit of every class it does
// not mention. A second unit of an already covered class is a conflict.
func checkUnits(units []string) (extended, conflicts, unknown []string) {
	classes := map[UnitClass]struct{}{}
	for _, unit := range units {
		class, known := classesOfUnits[unit]
		if !known {
			unknown = append(unknown, unit)
			continue
		}
		if _, some := classes[class]; some {
			conflicts = append(conflicts, unit)
		} else {
			classes[class] = struct{}{}
			extended = append(extended, unit)
		}
	}
	for _, unit := range defaultUnits {
		if _, some := classes[classesOfUnits[unit]]; !some {
			extended = append(extended, unit)
		}
	}
	return
}

// Convert scales v carrying the dimension classes from units into internal
// units when toInternal is set, and back otherwise.
func Convert(v float64, classes []UnitElement, units []string, toInternal bool) float64 {
	for _, uc := range classes {
		unit := utils.Intersect(unitsInClass[uc.Class], units)
		if unit == nil {
			continue
		}
		factor := unitToInternal[*unit]
		absPower := utils.IntAbs(uc.Power)
		if (uc.Power > 0) != toInternal {
			factor = 1 / factor
		}
		for range absPower {
			v *= factor
		}
	}
	return v
}

// UnitOf is the unit of the given class among units, or "".
func UnitOf(class UnitClass, units []string) string {
	if unit := utils.Intersect(unitsInClass[class], units); unit != nil {
		return *unit
	}
	return ""
}
