package model

import (
	"math"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/constants"
)

// Target is a projectile of charge z and kinetic energy T hitting a foil of
// nuclei with charge Z. Lengths are in cm.
type Target struct {
	ProjectileCharge int
	AtomicNumber     int
	KineticEnergy    float64 // [MeV]
	MassNumber       float64 // [g/mol]
	Density          float64 // [g/cm^3]
	Thickness        float64 // [cm]

	closestApproach float64
	screeningLength float64
}

func NewTarget(p config.ParameterSet) Target {
	t := Target{
		ProjectileCharge: p.ProjectileCharge,
		AtomicNumber:     p.AtomicNumber,
		KineticEnergy:    p.KineticEnergy,
		MassNumber:       p.MassNumber,
		Density:          p.Density,
		Thickness:        p.Thickness,
	}
	zZ := float64(p.ProjectileCharge * p.AtomicNumber)
	t.closestApproach = zZ * constants.CoulombMeVfm / p.KineticEnergy * constants.FmToCm
	t.screeningLength = constants.ThomasFermiScreening * constants.BohrRadiusFm *
		math.Pow(float64(p.AtomicNumber), -1./3.) * constants.FmToCm
	return t
}

// ClosestApproach is the head-on distance d = zZe^2/(4 pi e0 T).
func (t Target) ClosestApproach() float64 { return t.closestApproach }

// ScreeningLength is the Thomas-Fermi radius a = 0.8853 a0 Z^(-1/3).
func (t Target) ScreeningLength() float64 { return t.screeningLength }

// ScreeningAngle is the deflection of a projectile passing at the screening
// radius, 2 atan(d / 2a). Below it the bare Coulomb law no longer holds.
func (t Target) ScreeningAngle() float64 {
	return 2. * math.Atan(t.closestApproach/(2.*t.screeningLength))
}

// ImpactParameter b = (d/2) cot(theta/2).
func (t Target) ImpactParameter(theta float64) float64 {
	return 0.5 * t.closestApproach / math.Tan(theta/2.)
}

// CrossSection is the Rutherford cross section for deflections beyond
// thetaMin, pi b(thetaMin)^2 [cm^2].
func (t Target) CrossSection(thetaMin float64) float64 {
	b := t.ImpactParameter(thetaMin)
	return math.Pi * b * b
}

// NumberDensity of nuclei, rho N_A / A [cm^-3].
func (t Target) NumberDensity() float64 {
	if t.MassNumber <= 0 {
		return 0
	}
	return t.Density * constants.Avogadro / t.MassNumber
}

// ScatterProbability is n t sigma(thetaMin) for a thin foil, the chance a
// projectile is deflected beyond thetaMin at all.
func (t Target) ScatterProbability(thetaMin float64) float64 {
	return t.NumberDensity() * t.Thickness * t.CrossSection(thetaMin)
}
