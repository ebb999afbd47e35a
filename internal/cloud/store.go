package cloud

import (
	"fmt"
	"math"

	"github.com/banshee-data/groundfilter/internal/monitoring"
)

// Metrics caches aggregate bounds over the active subset of a PointStore.
// ActiveCount is the number of points still classified as ground candidates.
type Metrics struct {
	ActiveCount int
	MinX, MaxX  float64
	MinY, MaxY  float64
	MinZ, MaxZ  float64
}

// PointStore owns the loaded point cloud plus a parallel activity bitmap.
// Invariants: len(active) == number of points; a point's slice index is
// ID-1; activity only ever flips true -> false within a run.
type PointStore struct {
	Name string

	points  []Point
	active  []bool
	metrics Metrics
}

// NewPointStore returns an empty store named after the input file stem.
func NewPointStore(name string) *PointStore {
	return &PointStore{Name: name}
}

// LoadFromFile ingests an ASCII point cloud into the store in chunks.
// All loaded points start active. Metrics are computed once at the end.
func (s *PointStore) LoadFromFile(path string) error {
	parser := &TxtParser{}
	_, err := parser.Parse(path, int64(len(s.points))+1, func(chunk []Point) error {
		s.Append(chunk)
		return nil
	})
	if err != nil {
		return err
	}
	s.RecomputeMetrics()
	monitoring.Logf("loaded %d points from %s", len(s.points), path)
	return nil
}

// Append adds points to the store, all active. IDs are assumed dense and in
// order; Append panics on a gap since every lookup relies on ID == index+1.
func (s *PointStore) Append(pts []Point) {
	for _, p := range pts {
		if p.ID != int64(len(s.points))+1 {
			panic(fmt.Sprintf("cloud: non-dense point ID %d at index %d", p.ID, len(s.points)))
		}
		s.points = append(s.points, p)
		s.active = append(s.active, true)
	}
}

// Len returns the total number of points, active or not.
func (s *PointStore) Len() int { return len(s.points) }

// Point returns the point with the given ID.
func (s *PointStore) Point(id int64) Point { return s.points[id-1] }

// IsActive reports whether the point with the given ID is still a ground candidate.
func (s *PointStore) IsActive(id int64) bool { return s.active[id-1] }

// ForEachActive calls fn for every active point in ID order.
func (s *PointStore) ForEachActive(fn func(p Point)) {
	for i, p := range s.points {
		if s.active[i] {
			fn(p)
		}
	}
}

// ForEachPoint calls fn for every point in ID order with its activity flag.
func (s *PointStore) ForEachPoint(fn func(p Point, active bool)) {
	for i, p := range s.points {
		fn(p, s.active[i])
	}
}

// Deactivate flips the given point IDs to inactive and returns how many
// actually changed state. Callers stage rejections during a filter pass and
// apply them here in one step, so an abandoned pass mutates nothing.
// Metrics are stale after Deactivate until RecomputeMetrics runs.
func (s *PointStore) Deactivate(ids []int64) int {
	changed := 0
	for _, id := range ids {
		if s.active[id-1] {
			s.active[id-1] = false
			changed++
		}
	}
	return changed
}

// RecomputeMetrics rescans the active subset and refreshes the cached
// aggregate bounds. With zero active points all bounds are NaN.
func (s *PointStore) RecomputeMetrics() {
	m := Metrics{
		MinX: math.NaN(), MaxX: math.NaN(),
		MinY: math.NaN(), MaxY: math.NaN(),
		MinZ: math.NaN(), MaxZ: math.NaN(),
	}
	for i, p := range s.points {
		if !s.active[i] {
			continue
		}
		if m.ActiveCount == 0 {
			m.MinX, m.MaxX = p.X, p.X
			m.MinY, m.MaxY = p.Y, p.Y
			m.MinZ, m.MaxZ = p.Z, p.Z
		} else {
			m.MinX = math.Min(m.MinX, p.X)
			m.MaxX = math.Max(m.MaxX, p.X)
			m.MinY = math.Min(m.MinY, p.Y)
			m.MaxY = math.Max(m.MaxY, p.Y)
			m.MinZ = math.Min(m.MinZ, p.Z)
			m.MaxZ = math.Max(m.MaxZ, p.Z)
		}
		m.ActiveCount++
	}
	s.metrics = m
}

// Metrics returns the cached aggregate bounds over the active subset.
func (s *PointStore) Metrics() Metrics { return s.metrics }
