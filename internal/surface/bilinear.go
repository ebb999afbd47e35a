package surface

import (
	"math"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

// Corner indexes the four corners of a BiCell.
type Corner int

const (
	LeftDown Corner = iota
	LeftUp
	RightDown
	RightUp
)

// BiCell is one bilinear surface patch. The corner heights Z and their
// propagated uncertainties CornerMSE are derived from the DEM cells meeting
// at each corner; MSE is the patch RMSE against the base points, measured
// after construction. Any of these may be Null.
type BiCell struct {
	IX, IY int
	X1, Y1 float64 // lower-left corner position

	Z         [4]float64 // corner heights, indexed by Corner
	CornerMSE [4]float64

	Count int // active points whose interpolation was defined
	MSE   float64

	vv float64
}

// InterpolateZ evaluates the bilinear patch at (x, y). The result is Null
// when any referenced corner height is Null.
func (c *BiCell) InterpolateZ(x, y, step float64) float64 {
	x1, y1 := c.X1, c.Y1
	x2, y2 := x1+step, y1+step
	r1 := ((x2-x)/step)*c.Z[LeftDown] + ((x-x1)/step)*c.Z[RightDown]
	r2 := ((x2-x)/step)*c.Z[LeftUp] + ((x-x1)/step)*c.Z[RightUp]
	return ((y2-y)/step)*r1 + ((y-y1)/step)*r2
}

// DOF returns the patch's degrees of freedom for layer-level aggregation:
// one per point measured against the already-fitted corners.
func (c *BiCell) DOF() int { return c.Count }

// BiLayer is a sparse mapping from occupied cells to their bilinear patch.
// A patch is materialised for every occupied DEM cell, which covers every
// cell any active point can map to.
type BiLayer struct {
	Grid     *voxel.Grid
	Cells    map[Key]*BiCell
	Weighted bool

	// MSEData is the dof-weighted RMS of patch MSEs, Null when no patch
	// has a defined MSE.
	MSEData float64
}

// cornerContributors lists, per corner, the (dx, dy) cell offsets of the up
// to four DEM cells meeting at that corner.
var cornerContributors = [4][4][2]int{
	LeftDown:  {{-1, -1}, {-1, 0}, {0, -1}, {0, 0}},
	LeftUp:    {{-1, 0}, {-1, 1}, {0, 0}, {0, 1}},
	RightDown: {{0, -1}, {0, 0}, {1, -1}, {1, 0}},
	RightUp:   {{0, 0}, {0, 1}, {1, 0}, {1, 1}},
}

// BuildBiLayer derives a bilinear layer from a DEM layer and measures each
// patch against the store's active points.
//
// With weighted enabled (the production default) corner heights combine
// contributors by inverse-variance weights w = 1/mse², the corner MSE being
// 1/sqrt(Σw); a zero-MSE contributor pins the corner to its height exactly.
// Contributors with an undefined MSE are skipped. Unweighted corners are the
// plain mean of every present contributor, with no propagated uncertainty.
func BuildBiLayer(store *cloud.PointStore, dem *DemLayer, weighted bool) *BiLayer {
	grid := dem.Grid
	layer := &BiLayer{
		Grid:     grid,
		Cells:    make(map[Key]*BiCell, len(dem.Cells)),
		Weighted: weighted,
		MSEData:  Null(),
	}

	for k := range dem.Cells {
		x1, y1 := grid.CellOrigin(k.IX, k.IY)
		c := &BiCell{IX: k.IX, IY: k.IY, X1: x1, Y1: y1, MSE: Null()}
		for corner, offsets := range cornerContributors {
			c.Z[corner], c.CornerMSE[corner] = blendCorner(dem, k, offsets, weighted)
		}
		layer.Cells[k] = c
	}

	// Second pass: patch RMSE against the base points. Points whose patch
	// interpolation is undefined contribute nothing, leaving that patch's
	// MSE Null so the filter keeps its points.
	store.ForEachActive(func(p cloud.Point) {
		ix, iy, ok := grid.CellOf(p.X, p.Y)
		if !ok {
			return
		}
		c := layer.Cells[Key{ix, iy}]
		if c == nil {
			return
		}
		z := c.InterpolateZ(p.X, p.Y, grid.Step)
		if IsNull(z) {
			return
		}
		d := p.Z - z
		c.vv += d * d
		c.Count++
	})
	for _, c := range layer.Cells {
		if c.Count > 0 {
			c.MSE = math.Sqrt(c.vv / float64(c.Count))
		}
	}
	layer.MSEData = aggregateMSE(func(yield func(mse float64, dof int)) {
		for _, c := range layer.Cells {
			yield(c.MSE, c.DOF())
		}
	})
	monitoring.Logf("BI layer over %s: %d patches, MSE %.4f",
		grid.Name(), len(layer.Cells), layer.MSEData)
	return layer
}

// Cell returns the bilinear patch at (ix, iy), or nil when absent.
func (l *BiLayer) Cell(ix, iy int) *BiCell {
	return l.Cells[Key{ix, iy}]
}

// CellMSEs returns the defined patch MSEs in unspecified order.
func (l *BiLayer) CellMSEs() []float64 {
	out := make([]float64, 0, len(l.Cells))
	for _, c := range l.Cells {
		if !IsNull(c.MSE) {
			out = append(out, c.MSE)
		}
	}
	return out
}

// blendCorner combines the DEM cells meeting at one corner of cell k into a
// corner height and uncertainty. Both are Null when no contributor survives.
func blendCorner(dem *DemLayer, k Key, offsets [4][2]int, weighted bool) (z, mse float64) {
	if !weighted {
		sum, n := 0.0, 0
		for _, off := range offsets {
			c := dem.Cell(k.IX+off[0], k.IY+off[1])
			if c == nil {
				continue
			}
			sum += c.AvgZ
			n++
		}
		if n == 0 {
			return Null(), Null()
		}
		return sum / float64(n), Null()
	}

	var sumW, sumWZ float64
	for _, off := range offsets {
		c := dem.Cell(k.IX+off[0], k.IY+off[1])
		if c == nil || IsNull(c.MSE) {
			continue
		}
		if c.MSE == 0 {
			// An exact contributor dominates: the corner adopts its height.
			return c.AvgZ, 0
		}
		w := 1 / (c.MSE * c.MSE)
		sumW += w
		sumWZ += w * c.AvgZ
	}
	if sumW == 0 {
		return Null(), Null()
	}
	return sumWZ / sumW, 1 / math.Sqrt(sumW)
}
