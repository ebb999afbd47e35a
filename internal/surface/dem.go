package surface

import (
	"math"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

// Null is the in-memory representation of an undefined metric. Persistence
// maps it to SQL NULL; arithmetic on it stays NaN, which every downstream
// comparison treats as "keep the point".
func Null() float64 { return math.NaN() }

// IsNull reports whether a metric value is undefined.
func IsNull(v float64) bool { return math.IsNaN(v) }

// Key addresses one cell of a sparse layer.
type Key struct {
	IX, IY int
}

// DemCell is the piecewise-constant elevation estimate for one grid cell:
// the running mean of its points' Z and, with two or more points, the
// Bessel-corrected RMSE of Z about that mean.
type DemCell struct {
	IX, IY int
	AvgZ   float64
	Count  int
	MSE    float64 // Null when Count < 2

	vv float64 // accumulated squared deviations
}

// DOF returns the cell's degrees of freedom for layer-level aggregation.
func (c *DemCell) DOF() int { return c.Count - 1 }

// DemLayer is a sparse mapping from occupied cells to their DEM estimate.
// Empty cells are never materialised.
type DemLayer struct {
	Grid  *voxel.Grid
	Cells map[Key]*DemCell

	// MSEData is the dof-weighted RMS of cell MSEs: sqrt(Σ mse²·r / Σ r)
	// over cells with r > 0. Null when no cell has a defined MSE.
	MSEData float64
}

// BuildDemLayer fits the DEM over the currently active points of the store.
// The mean is accumulated as a running mean in a first pass and the squared
// deviations are taken against the finished mean in a second.
func BuildDemLayer(store *cloud.PointStore, grid *voxel.Grid) *DemLayer {
	layer := &DemLayer{
		Grid:    grid,
		Cells:   make(map[Key]*DemCell),
		MSEData: Null(),
	}

	store.ForEachActive(func(p cloud.Point) {
		ix, iy, ok := grid.CellOf(p.X, p.Y)
		if !ok {
			return
		}
		k := Key{ix, iy}
		c := layer.Cells[k]
		if c == nil {
			c = &DemCell{IX: ix, IY: iy, MSE: Null()}
			layer.Cells[k] = c
		}
		c.AvgZ = (c.AvgZ*float64(c.Count) + p.Z) / float64(c.Count+1)
		c.Count++
	})

	store.ForEachActive(func(p cloud.Point) {
		ix, iy, ok := grid.CellOf(p.X, p.Y)
		if !ok {
			return
		}
		c := layer.Cells[Key{ix, iy}]
		d := p.Z - c.AvgZ
		c.vv += d * d
	})

	for _, c := range layer.Cells {
		if c.Count >= 2 {
			c.MSE = math.Sqrt(c.vv / float64(c.Count-1))
		}
	}
	layer.MSEData = aggregateMSE(func(yield func(mse float64, dof int)) {
		for _, c := range layer.Cells {
			yield(c.MSE, c.DOF())
		}
	})
	monitoring.Logf("DEM layer over %s: %d occupied cells, MSE %.4f",
		grid.Name(), len(layer.Cells), layer.MSEData)
	return layer
}

// Cell returns the DEM cell at (ix, iy), or nil when the cell is empty.
func (l *DemLayer) Cell(ix, iy int) *DemCell {
	return l.Cells[Key{ix, iy}]
}

// aggregateMSE computes the dof-weighted RMS over an enumeration of
// (mse, dof) pairs, skipping undefined and zero-dof entries.
func aggregateMSE(each func(yield func(mse float64, dof int))) float64 {
	var vv float64
	sumDOF := 0
	each(func(mse float64, dof int) {
		if dof <= 0 || IsNull(mse) {
			return
		}
		vv += mse * mse * float64(dof)
		sumDOF += dof
	})
	if sumDOF == 0 {
		return Null()
	}
	return math.Sqrt(vv / float64(sumDOF))
}
