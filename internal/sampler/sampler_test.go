package sampler

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

func TestSameSeedSameSequence(t *testing.T) {
	for _, kind := range []Kind{Uniform, Gaussian, Isotropic, RutherfordAngular, RutherfordSolidAngleKind} {
		t.Run(string(kind), func(t *testing.T) {
			d, err := New(kind, Params{A: 0, B: 200, Mean: 50, Sigma: 10, ThetaMin: 0.01})
			require.NoError(t, err)

			r1, r2 := NewStream(42), NewStream(42)
			for i := 0; i < 1000; i++ {
				require.Equal(t, d.Sample(r1), d.Sample(r2), "draw %d", i)
			}
		})
	}
}

func TestSubStreamsDiffer(t *testing.T) {
	r0, r1 := SubStream(7, 0), SubStream(7, 1)
	same := 0
	for i := 0; i < 100; i++ {
		if r0.Uint64() == r1.Uint64() {
			same++
		}
	}
	assert.Zero(t, same)

	assert.Equal(t, NewStream(7).Uint64(), SubStream(7, 0).Uint64())
}

func TestGaussianMoments(t *testing.T) {
	d, err := NewGaussian(50, 10)
	require.NoError(t, err)
	r := NewStream(1)

	const n = 200000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := d.Sample(r)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)
	assert.InDelta(t, 50, mean, 0.1)
	assert.InDelta(t, 10, std, 0.1)
}

func TestUniformSupport(t *testing.T) {
	d, err := NewUniform(-3, 5)
	require.NoError(t, err)
	r := NewStream(3)
	for i := 0; i < 10000; i++ {
		v := d.Sample(r)
		require.GreaterOrEqual(t, v, -3.)
		require.Less(t, v, 5.)
	}
}

func TestRutherfordDomain(t *testing.T) {
	const thetaMin = 0.01
	for _, kind := range []Kind{RutherfordAngular, RutherfordSolidAngleKind} {
		t.Run(string(kind), func(t *testing.T) {
			d, err := New(kind, Params{ThetaMin: thetaMin})
			require.NoError(t, err)
			r := NewStream(11)
			below, above := 0, 0
			for i := 0; i < 100000; i++ {
				theta := d.Sample(r)
				if theta < thetaMin {
					below++
				}
				if theta > math.Pi {
					above++
				}
			}
			assert.Zero(t, below)
			assert.Zero(t, above)
		})
	}
}

func TestRutherfordQuantileInvertsCDF(t *testing.T) {
	d, err := NewRutherford(0.05)
	require.NoError(t, err)
	for _, u := range []float64{0, 1e-6, 0.1, 0.5, 0.9, 0.999, 1 - 1e-12} {
		theta := d.Quantile(u)
		assert.InDelta(t, u, d.CDF(theta), 1e-9, "u=%v", u)
	}
	assert.InDelta(t, 0.05, d.Quantile(0), 1e-15)
	assert.GreaterOrEqual(t, d.Quantile(0), 0.05)
	assert.InDelta(t, math.Pi, d.Quantile(1), 1e-12)
}

func TestRutherfordSolidAngleQuantileInvertsCDF(t *testing.T) {
	d, err := NewRutherfordSolidAngle(0.05)
	require.NoError(t, err)
	for _, u := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		assert.InDelta(t, u, d.CDF(d.Quantile(u)), 1e-9, "u=%v", u)
	}
}

func TestRutherfordPDFNormalized(t *testing.T) {
	d, err := NewRutherford(0.2)
	require.NoError(t, err)
	// midpoint rule over a logarithmic grid, the density is steep near the cutoff
	const steps = 200000
	lo, hi := math.Log(0.2), math.Log(math.Pi)
	h := (hi - lo) / steps
	var integral float64
	for i := 0; i < steps; i++ {
		x := math.Exp(lo + (float64(i)+0.5)*h)
		integral += d.PDF(x) * x * h
	}
	assert.InDelta(t, 1, integral, 1e-6)
}

func TestRutherfordEmpiricalCDF(t *testing.T) {
	d, err := NewRutherford(0.1)
	require.NoError(t, err)
	r := NewStream(5)
	const n = 50000
	median := d.Quantile(0.5)
	below := 0
	for i := 0; i < n; i++ {
		if d.Sample(r) < median {
			below++
		}
	}
	assert.InDelta(t, 0.5, float64(below)/n, 0.01)
}

func TestRutherfordTinyCutoff(t *testing.T) {
	// far below the cutoff scale the tail is F = 1 - (thetaMin/theta)^3
	for _, thetaMin := range []float64{1e-10, 1e-40, 1e-60, 1e-100} {
		d, err := NewRutherford(thetaMin)
		require.NoError(t, err)
		assert.InEpsilon(t, math.Cbrt(2), d.Quantile(0.5)/thetaMin, 1e-6, "thetaMin=%g", thetaMin)
		assert.InEpsilon(t, math.Cbrt(10), d.Quantile(0.9)/thetaMin, 1e-6, "thetaMin=%g", thetaMin)

		r := NewStream(11)
		atCutoff := 0
		for range 10000 {
			if d.Sample(r) == thetaMin {
				atCutoff++
			}
		}
		assert.Less(t, atCutoff, 5, "thetaMin=%g", thetaMin)
	}
}

func TestRutherfordCutoffTooSmall(t *testing.T) {
	_, err := NewRutherford(1e-120)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = NewRutherfordSolidAngle(1e-200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestRutherfordSolidAngleKind(t *testing.T) {
	d, err := NewRutherfordSolidAngle(0.05)
	require.NoError(t, err)
	assert.Equal(t, RutherfordSolidAngleKind, d.Kind())
	k, err := ParseKind("rutherford-solid-angle")
	require.NoError(t, err)
	assert.Equal(t, RutherfordSolidAngleKind, k)
}

func TestInvalidParameters(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		p    Params
	}{
		{"zero sigma", Gaussian, Params{Mean: 1, Sigma: 0}},
		{"negative sigma", Gaussian, Params{Mean: 1, Sigma: -2}},
		{"nan mean", Gaussian, Params{Mean: math.NaN(), Sigma: 1}},
		{"empty uniform", Uniform, Params{A: 2, B: 2}},
		{"reversed uniform", Uniform, Params{A: 3, B: 2}},
		{"infinite uniform", Uniform, Params{A: 0, B: math.Inf(1)}},
		{"zero theta_min", RutherfordAngular, Params{ThetaMin: 0}},
		{"negative theta_min", RutherfordSolidAngleKind, Params{ThetaMin: -0.1}},
		{"theta_min at pi", RutherfordAngular, Params{ThetaMin: math.Pi}},
		{"unknown kind", Kind("cauchy"), Params{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Sample(tc.kind, tc.p, NewStream(1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfiguration))
			var cfgErr *errs.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("rutherford")
	require.NoError(t, err)
	assert.Equal(t, RutherfordAngular, k)

	_, err = ParseKind("landau")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
