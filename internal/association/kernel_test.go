package association

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/geometry"
)

func row(ra, decl, raErr, declErr float64) [CoordSlots]float64 {
	v := geometry.UnitVector(ra, decl)
	return [CoordSlots]float64{ra, decl, raErr, declErr, v.X, v.Y, v.Z, float64(geometry.Zone(decl, 1))}
}

func TestGoKernelMatchesBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	thr := Thresholds{Point: 3.717, Extended: 5.68}

	var (
		ids    []uint
		coords [][CoordSlots]float64
		kinds  []int8
	)
	for i := range 200 {
		ids = append(ids, uint(1000+i))
		coords = append(coords, row(geometry.NormalizeRA(359.99+rng.Float64()*0.02), -1+rng.Float64()*0.02, 1+rng.Float64(), 1+rng.Float64()))
		kinds = append(kinds, KindCatalog)
	}
	for i := range 100 {
		ids = append(ids, uint(1+i))
		kind := int8(entities.SourceKindPoint)
		if i%3 == 0 {
			kind = int8(entities.SourceKindExtended)
		}
		coords = append(coords, row(geometry.NormalizeRA(359.99+rng.Float64()*0.02), -1+rng.Float64()*0.02, 1, 1))
		kinds = append(kinds, kind)
	}

	k := NewGoKernel()
	require.Equal(t, len(ids), k.Load(1, ids, coords, kinds))
	res := k.Match(KernelParams{Thresholds: thr, HalfWindow: geometry.RadToDeg(0.025)})

	type key struct{ s, c uint }
	want := map[key]float64{}
	for i := range ids {
		if kinds[i] == KindCatalog {
			continue
		}
		for j := range ids {
			if kinds[j] != KindCatalog {
				continue
			}
			r2 := geometry.DeRuiterSquared(position(coords[i]), position(coords[j]))
			if thr.Accepts(entities.SourceKind(kinds[i]), r2) {
				want[key{ids[i], ids[j]}] = r2
			}
		}
	}

	require.NotEmpty(t, want)
	require.Len(t, res.Pairs, len(want))
	require.Len(t, res.Distances, len(want))
	require.Len(t, res.Kinds, len(want))
	total := 0
	for _, c := range res.Counts {
		total += c
	}
	assert.Equal(t, len(want), total)

	for i, p := range res.Pairs {
		_, ok := want[key{p[0], p[1]}]
		assert.True(t, ok, "unexpected pair %v", p)
		if i > 0 {
			prev := res.Pairs[i-1]
			assert.True(t, prev[0] < p[0] || (prev[0] == p[0] && prev[1] < p[1]), "pairs not sorted")
		}
	}
}

func TestGoKernelEmpty(t *testing.T) {
	t.Parallel()

	k := NewGoKernel()
	assert.Zero(t, k.Load(1, nil, nil, nil))
	res := k.Match(KernelParams{Thresholds: Thresholds{Point: 1, Extended: 1}, HalfWindow: 1})
	assert.Empty(t, res.Pairs)
	assert.Empty(t, res.Counts)
}

func TestHalfWindow(t *testing.T) {
	t.Parallel()

	cfg := Config{Thresholds: Thresholds{Point: 3.717, Extended: 5.68}, ZoneWidth: 1, MinWindow: 0.025}

	// Small errors: the minimum window applies.
	assert.InDelta(t, geometry.RadToDeg(0.025), cfg.HalfWindow(1, 1), 1e-12)

	// Large errors widen it: 5.68 * hypot(30000, 40000) arcsec.
	assert.InDelta(t, 5.68*50000/3600, cfg.HalfWindow(30000, 40000), 1e-9)
}
