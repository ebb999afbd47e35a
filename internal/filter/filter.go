// Package filter applies one-sided threshold policies to a point cloud
// measured against a bilinear surface. Points are only ever rejected for
// sitting too far ABOVE the surface; negative residuals and every
// missing-evidence case (absent cell, undefined interpolation, undefined
// cell MSE) keep the point active.
package filter

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/surface"
)

// Policy decides whether a positive residual (point Z minus surface Z)
// disqualifies a point from the ground class.
type Policy interface {
	Name() string
	Threshold() float64
	Reject(residual float64) bool
}

// MaxV is the absolute fallback policy: reject when the residual exceeds a
// fixed ceiling in metres.
type MaxV struct {
	MaxV float64
}

func (p MaxV) Name() string       { return "max_v" }
func (p MaxV) Threshold() float64 { return p.MaxV }
func (p MaxV) Reject(residual float64) bool {
	return residual > p.MaxV
}

// Median is the adaptive policy: reject when the residual exceeds K times
// the median of the layer's defined cell MSEs.
type Median struct {
	Median float64
	K      float64
}

func (p Median) Name() string       { return "median" }
func (p Median) Threshold() float64 { return p.K * p.Median }
func (p Median) Reject(residual float64) bool {
	return residual > p.K*p.Median
}

// MedianCellMSE computes the median of the layer's defined cell MSEs,
// Null when no cell has one.
func MedianCellMSE(layer *surface.BiLayer) float64 {
	mses := layer.CellMSEs()
	if len(mses) == 0 {
		return surface.Null()
	}
	sort.Float64s(mses)
	return stat.Quantile(0.5, stat.Empirical, mses, nil)
}

// Apply runs one filter pass of policy over the store's active points.
// Rejections are staged and applied in a single Deactivate call, so an
// abandoned pass leaves the store untouched; the store's aggregate metrics
// are recomputed before returning. Returns the number of points rejected.
func Apply(store *cloud.PointStore, layer *surface.BiLayer, policy Policy) int {
	grid := layer.Grid
	var staged []int64
	store.ForEachActive(func(p cloud.Point) {
		ix, iy, ok := grid.CellOf(p.X, p.Y)
		if !ok {
			return
		}
		c := layer.Cell(ix, iy)
		if c == nil || surface.IsNull(c.MSE) {
			return
		}
		z := c.InterpolateZ(p.X, p.Y, grid.Step)
		if surface.IsNull(z) {
			return
		}
		if policy.Reject(p.Z - z) {
			staged = append(staged, p.ID)
		}
	})
	rejected := store.Deactivate(staged)
	store.RecomputeMetrics()
	monitoring.Logf("%s pass on %s rejected %d points (threshold %.4f), %d active",
		policy.Name(), grid.Name(), rejected, policy.Threshold(), store.Metrics().ActiveCount)
	return rejected
}
