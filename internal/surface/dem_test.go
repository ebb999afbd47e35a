package surface

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

// testStore builds a store from (x, y, z) triples, all active, metrics fresh.
func testStore(t *testing.T, coords ...[3]float64) *cloud.PointStore {
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

func testGrid(t *testing.T, s *cloud.PointStore, step, dx, dy float64) *voxel.Grid {
	t.Helper()
	g, err := voxel.NewGrid(s.Metrics(), s.Name, step, dx, dy)
	require.NoError(t, err)
	return g
}

func TestBuildDemLayer_MeanAndMSE(t *testing.T) {
	t.Parallel()

	// Two points in one cell, one in a second cell.
	s := testStore(t,
		[3]float64{0.2, 0.2, 1},
		[3]float64{0.8, 0.8, 3},
		[3]float64{1.5, 0.5, 7},
	)
	layer := BuildDemLayer(s, testGrid(t, s, 1, 0, 0))

	require.Len(t, layer.Cells, 2)

	c := layer.Cell(0, 0)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Count)
	assert.InDelta(t, 2.0, c.AvgZ, 1e-12)
	// sqrt(((1-2)^2 + (3-2)^2) / (2-1))
	assert.InDelta(t, math.Sqrt2, c.MSE, 1e-12)

	single := layer.Cell(1, 0)
	require.NotNil(t, single)
	assert.Equal(t, 1, single.Count)
	assert.InDelta(t, 7.0, single.AvgZ, 1e-12)
	assert.True(t, IsNull(single.MSE), "single-point cell must have undefined MSE")
}

func TestBuildDemLayer_SkipsInactivePoints(t *testing.T) {
	t.Parallel()

	s := testStore(t,
		[3]float64{0.2, 0.2, 1},
		[3]float64{0.8, 0.8, 100},
	)
	s.Deactivate([]int64{2})
	s.RecomputeMetrics()

	layer := BuildDemLayer(s, testGrid(t, s, 1, 0, 0))
	c := layer.Cell(0, 0)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.Count)
	assert.InDelta(t, 1.0, c.AvgZ, 1e-12)
}

func TestBuildDemLayer_EmptyCellsNotMaterialised(t *testing.T) {
	t.Parallel()

	// Two occupied cells separated by empty ones.
	s := testStore(t,
		[3]float64{0.5, 0.5, 0},
		[3]float64{4.5, 0.5, 0},
	)
	layer := BuildDemLayer(s, testGrid(t, s, 1, 0, 0))
	assert.Len(t, layer.Cells, 2)
	assert.Nil(t, layer.Cell(2, 0))
}

func TestDemLayer_MSEData(t *testing.T) {
	t.Parallel()

	// Cell A: 3 points, sd over {0, 1, 2} about mean 1 -> mse = 1, dof 2.
	// Cell B: 2 points {0, 2} about mean 1 -> mse = sqrt2, dof 1.
	// Weighted RMS: sqrt((1*2 + 2*1) / 3) = sqrt(4/3).
	s := testStore(t,
		[3]float64{0.1, 0.1, 0},
		[3]float64{0.5, 0.5, 1},
		[3]float64{0.9, 0.9, 2},
		[3]float64{1.5, 0.5, 0},
		[3]float64{1.6, 0.6, 2},
	)
	layer := BuildDemLayer(s, testGrid(t, s, 1, 0, 0))
	assert.InDelta(t, math.Sqrt(4.0/3.0), layer.MSEData, 1e-12)
}

func TestDemLayer_MSEDataNullWhenNoCellQualifies(t *testing.T) {
	t.Parallel()

	s := testStore(t,
		[3]float64{0.5, 0.5, 1},
		[3]float64{1.5, 0.5, 2},
	)
	layer := BuildDemLayer(s, testGrid(t, s, 1, 0, 0))
	assert.True(t, IsNull(layer.MSEData))
}
