package cloud

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePoints(coords ...[3]float64) []Point {
	pts := make([]Point, len(coords))
	for i, c := range coords {
		pts[i] = Point{ID: int64(i + 1), X: c[0], Y: c[1], Z: c[2]}
	}
	return pts
}

func TestPointStore_AppendAndMetrics(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	s.Append(makePoints([3]float64{0, 0, 0}, [3]float64{10, -5, 2}, [3]float64{-3, 7, -1}))
	s.RecomputeMetrics()

	m := s.Metrics()
	assert.Equal(t, 3, m.ActiveCount)
	assert.Equal(t, -3.0, m.MinX)
	assert.Equal(t, 10.0, m.MaxX)
	assert.Equal(t, -5.0, m.MinY)
	assert.Equal(t, 7.0, m.MaxY)
	assert.Equal(t, -1.0, m.MinZ)
	assert.Equal(t, 2.0, m.MaxZ)
}

func TestPointStore_DeactivateIsMonotone(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	s.Append(makePoints([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, [3]float64{2, 2, 2}))
	s.RecomputeMetrics()

	changed := s.Deactivate([]int64{2})
	s.RecomputeMetrics()
	assert.Equal(t, 1, changed)
	assert.Equal(t, 2, s.Metrics().ActiveCount)
	assert.False(t, s.IsActive(2))

	// Deactivating again is a no-op, not a toggle.
	changed = s.Deactivate([]int64{2})
	s.RecomputeMetrics()
	assert.Equal(t, 0, changed)
	assert.Equal(t, 2, s.Metrics().ActiveCount)
	assert.False(t, s.IsActive(2))
}

func TestPointStore_MetricsShrinkWithActivity(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	s.Append(makePoints([3]float64{0, 0, 0}, [3]float64{100, 100, 50}))
	s.RecomputeMetrics()
	require.Equal(t, 100.0, s.Metrics().MaxX)

	s.Deactivate([]int64{2})
	s.RecomputeMetrics()
	assert.Equal(t, 0.0, s.Metrics().MaxX)
	assert.Equal(t, 0.0, s.Metrics().MaxZ)
}

func TestPointStore_EmptyActiveSetHasNaNBounds(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	s.Append(makePoints([3]float64{1, 2, 3}))
	s.RecomputeMetrics()
	s.Deactivate([]int64{1})
	s.RecomputeMetrics()

	m := s.Metrics()
	assert.Equal(t, 0, m.ActiveCount)
	assert.True(t, math.IsNaN(m.MinX))
	assert.True(t, math.IsNaN(m.MaxZ))
}

func TestPointStore_ForEachActiveOrder(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	s.Append(makePoints([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{2, 0, 0}))
	s.RecomputeMetrics()
	s.Deactivate([]int64{2})

	var ids []int64
	s.ForEachActive(func(p Point) { ids = append(ids, p.ID) })
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestPointStore_AppendPanicsOnIDGap(t *testing.T) {
	t.Parallel()

	s := NewPointStore("test")
	assert.Panics(t, func() {
		s.Append([]Point{{ID: 5}})
	})
}
