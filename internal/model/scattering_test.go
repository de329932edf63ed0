package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/sampler"
)

func goldFoil() Target {
	return NewTarget(rutherford(1, 1))
}

func TestTargetLengths(t *testing.T) {
	tg := goldFoil()
	// 2 * 79 * 1.44 MeV fm / 5 MeV
	assert.InEpsilon(t, 45.5e-13, tg.ClosestApproach(), 1e-3)
	assert.InEpsilon(t, 1.092e-9, tg.ScreeningLength(), 2e-3)
	assert.InDelta(t, 0.00417, tg.ScreeningAngle(), 2e-5)
}

func TestImpactParameter(t *testing.T) {
	tg := goldFoil()
	assert.InDelta(t, 0, tg.ImpactParameter(math.Pi), 1e-25)
	assert.InEpsilon(t, tg.ClosestApproach()/2, tg.ImpactParameter(math.Pi/2), 1e-12)

	prev := math.Inf(1)
	for theta := 0.01; theta < math.Pi; theta += 0.1 {
		b := tg.ImpactParameter(theta)
		assert.Less(t, b, prev)
		prev = b
	}
	// at the screening angle the projectile passes at the screening radius
	assert.InEpsilon(t, tg.ScreeningLength(), tg.ImpactParameter(tg.ScreeningAngle()), 1e-9)
}

func TestScatterProbability(t *testing.T) {
	tg := goldFoil()
	n := 19.32 * 6.02214076e23 / 196.97
	assert.InEpsilon(t, n, tg.NumberDensity(), 1e-12)

	b := tg.ImpactParameter(0.1)
	assert.InEpsilon(t, n*4e-5*math.Pi*b*b, tg.ScatterProbability(0.1), 1e-12)
	assert.Greater(t, tg.ScatterProbability(0.01), tg.ScatterProbability(0.1))

	bare := tg
	bare.MassNumber = 0
	assert.Zero(t, bare.ScatterProbability(0.1))
}

func TestMoreEnergyNarrowerScattering(t *testing.T) {
	slow := goldFoil()
	p := rutherford(1, 1)
	p.KineticEnergy = 20
	fast := NewTarget(p)
	assert.InEpsilon(t, slow.ClosestApproach()/4, fast.ClosestApproach(), 1e-12)
	assert.Less(t, fast.ScreeningAngle(), slow.ScreeningAngle())
}

func TestScatteringEventsAreConsistent(t *testing.T) {
	p := rutherford(1, 1)
	p.ThetaMin, p.DeriveThetaMin = 0.05, false
	g, err := NewGenerator(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"theta", "b"}, g.Observables())

	tg := NewTarget(p)
	r := sampler.NewStream(3)
	event := make([]float64, 2)
	for range 1000 {
		g.Generate(r, event)
		require.GreaterOrEqual(t, event[0], 0.05)
		require.LessOrEqual(t, event[0], math.Pi)
		assert.InEpsilon(t, tg.ImpactParameter(event[0]), event[1], 1e-12)
	}
	lo, hi := g.Range(1)
	assert.Zero(t, lo)
	assert.Equal(t, tg.ImpactParameter(0.05), hi)
}

func TestDecayGenerator(t *testing.T) {
	g, err := NewGenerator(momentum(1, 1))
	require.NoError(t, err)
	lo, hi := g.Range(0)
	assert.Equal(t, 0., lo)
	assert.Equal(t, 100., hi)
	lo, hi = g.Range(2)
	assert.Equal(t, 0., lo)
	assert.Equal(t, 100., hi)

	r := rand.New(rand.NewPCG(1, 2))
	event := make([]float64, 3)
	for range 1000 {
		g.Generate(r, event)
		require.InDelta(t, math.Abs(event[0])*math.Sqrt(1-event[1]*event[1]), event[2], 1e-9)
	}
}

func TestUnknownExperiment(t *testing.T) {
	p := config.Default()
	p.Experiment = "pion"
	_, err := NewGenerator(p)
	require.Error(t, err)
}
