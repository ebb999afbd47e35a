package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/surface"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

func buildStore(t *testing.T, coords ...[3]float64) *cloud.PointStore {
	t.Helper()
	s := cloud.NewPointStore("test")
	pts := make([]cloud.Point, len(coords))
	for i, c := range coords {
		pts[i] = cloud.Point{ID: int64(i + 1), X: c[0], Y: c[1], Z: c[2]}
	}
	s.Append(pts)
	s.RecomputeMetrics()
	return s
}

func buildLayers(t *testing.T, s *cloud.PointStore, step float64) *surface.BiLayer {
	t.Helper()
	g, err := voxel.NewGrid(s.Metrics(), s.Name, step, 0, 0)
	require.NoError(t, err)
	dem := surface.BuildDemLayer(s, g)
	return surface.BuildBiLayer(s, dem, true)
}

func TestMaxV_OneSided(t *testing.T) {
	t.Parallel()

	p := MaxV{MaxV: 1}
	assert.False(t, p.Reject(-5), "points below the surface are never rejected")
	assert.False(t, p.Reject(0))
	assert.False(t, p.Reject(1), "threshold itself is not an excess")
	assert.True(t, p.Reject(1.001))
	assert.Equal(t, 1.0, p.Threshold())
}

func TestMedian_Threshold(t *testing.T) {
	t.Parallel()

	p := Median{Median: 0.25, K: 3}
	assert.Equal(t, 0.75, p.Threshold())
	assert.False(t, p.Reject(0.75))
	assert.True(t, p.Reject(0.76))
	assert.False(t, p.Reject(-2))
}

func TestMedianCellMSE(t *testing.T) {
	t.Parallel()

	// Two points per cell at z = 0 +/- spread give every cell the same
	// MSE, so the median equals it.
	s := buildStore(t,
		[3]float64{0.25, 0.25, -0.1}, [3]float64{0.75, 0.75, 0.1},
		[3]float64{1.25, 0.25, -0.1}, [3]float64{1.75, 0.75, 0.1},
		[3]float64{0.25, 1.25, -0.1}, [3]float64{0.75, 1.75, 0.1},
		[3]float64{1.25, 1.25, -0.1}, [3]float64{1.75, 1.75, 0.1},
	)
	layer := buildLayers(t, s, 1)
	m := MedianCellMSE(layer)
	require.False(t, surface.IsNull(m))
	assert.Greater(t, m, 0.0)
}

func TestMedianCellMSE_NullOnEmptyLayer(t *testing.T) {
	t.Parallel()

	// Single-point cells: no MSE anywhere.
	s := buildStore(t, [3]float64{0.5, 0.5, 1}, [3]float64{1.5, 0.5, 2})
	layer := buildLayers(t, s, 1)
	assert.True(t, surface.IsNull(MedianCellMSE(layer)))
}

func TestApply_RejectsAboveSurfaceOnly(t *testing.T) {
	t.Parallel()

	// Nine lattice points at z=0 on a 3x3 unit grid plus an outlier high
	// above the centre. The centre cell is the only one with a defined
	// patch; only the outlier exceeds the threshold.
	coords := [][3]float64{}
	for ix := 0; ix < 3; ix++ {
		for iy := 0; iy < 3; iy++ {
			coords = append(coords, [3]float64{float64(ix), float64(iy), 0})
		}
	}
	coords = append(coords, [3]float64{1, 1, 10})
	s := buildStore(t, coords...)
	layer := buildLayers(t, s, 1)

	rejected := Apply(s, layer, MaxV{MaxV: 1})
	assert.Equal(t, 1, rejected)
	assert.False(t, s.IsActive(10), "the z=10 outlier is rejected")
	for id := int64(1); id <= 9; id++ {
		assert.True(t, s.IsActive(id), "point %d stays active", id)
	}
	assert.Equal(t, 9, s.Metrics().ActiveCount)
}

func TestApply_KeepsOnMissingEvidence(t *testing.T) {
	t.Parallel()

	// Every cell holds one point: no DEM MSE, no corners, no interpolation.
	// Nothing may be rejected regardless of how high a point sits.
	s := buildStore(t,
		[3]float64{0.5, 0.5, 0},
		[3]float64{1.5, 0.5, 50},
		[3]float64{2.5, 0.5, 0},
	)
	layer := buildLayers(t, s, 1)

	rejected := Apply(s, layer, MaxV{MaxV: 1})
	assert.Equal(t, 0, rejected)
	assert.Equal(t, 3, s.Metrics().ActiveCount)
}

func TestApply_RecomputesMetrics(t *testing.T) {
	t.Parallel()

	coords := [][3]float64{}
	for ix := 0; ix < 3; ix++ {
		for iy := 0; iy < 3; iy++ {
			coords = append(coords, [3]float64{float64(ix), float64(iy), 0})
		}
	}
	coords = append(coords, [3]float64{1, 1, 10})
	s := buildStore(t, coords...)
	require.Equal(t, 10.0, s.Metrics().MaxZ)

	layer := buildLayers(t, s, 1)
	Apply(s, layer, MaxV{MaxV: 1})
	assert.Equal(t, 0.0, s.Metrics().MaxZ, "bounds shrink once the outlier is gone")
}
