// Package voxel builds the axis-aligned 2-D grids that partition a point
// cloud for DEM fitting. A grid is immutable once built; phase-shifted
// variants of the same grid differ only in their fractional (dx, dy) origin
// offset, which is what decorrelates cell boundaries between filter passes.
package voxel

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/banshee-data/groundfilter/internal/cloud"
)

// Grid is a 2-D voxel grid over (X, Y) with cell side Step and fractional
// origin offsets DX, DY in [0, 1). The Z dimension is collapsed for the DEM
// path (ZCount == 1); MinZ/MaxZ are carried for completeness only.
type Grid struct {
	Step   float64
	DX, DY float64

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	XCount, YCount, ZCount int

	name string
}

// NewGrid derives grid bounds from the store's current active-subset metrics.
// The origin snaps to a Step-aligned lattice shifted by (DX, DY)·Step so that
// every active point falls inside [MinX, MaxX) × [MinY, MaxY).
func NewGrid(m cloud.Metrics, scanName string, step, dx, dy float64) (*Grid, error) {
	if step <= 0 {
		return nil, fmt.Errorf("voxel: step must be positive, got %g", step)
	}
	if dx < 0 || dx >= 1 || dy < 0 || dy >= 1 {
		return nil, fmt.Errorf("voxel: offsets must be in [0,1), got dx=%g dy=%g", dx, dy)
	}
	if m.ActiveCount == 0 {
		return nil, errors.New("voxel: cannot build a grid over an empty active set")
	}

	g := &Grid{Step: step, DX: dx, DY: dy}
	g.MinX = math.Floor(m.MinX/step)*step - math.Mod(1-dx, 1)*step
	g.MinY = math.Floor(m.MinY/step)*step - math.Mod(1-dy, 1)*step
	g.MinZ = math.Floor(m.MinZ/step) * step

	g.MaxX = (math.Floor(m.MaxX/step)+1)*step + math.Mod(dx, 1)*step
	g.MaxY = (math.Floor(m.MaxY/step)+1)*step + math.Mod(dy, 1)*step
	g.MaxZ = (math.Floor(m.MaxZ/step) + 1) * step

	g.XCount = int(math.Round((g.MaxX - g.MinX) / step))
	g.YCount = int(math.Round((g.MaxY - g.MinY) / step))
	g.ZCount = 1

	g.name = fmt.Sprintf("VM_2D_Sc:%s_st:%s_dx:%s_dy:%s",
		scanName, formatParam(step), formatParam(dx), formatParam(dy))
	return g, nil
}

// CellOf maps a planar position to its cell address. ok is false when the
// position lies outside the grid bounds; callers skip such points.
func (g *Grid) CellOf(x, y float64) (ix, iy int, ok bool) {
	if x < g.MinX || x >= g.MaxX || y < g.MinY || y >= g.MaxY {
		return 0, 0, false
	}
	ix = int(math.Floor((x - g.MinX) / g.Step))
	iy = int(math.Floor((y - g.MinY) / g.Step))
	// Guard the upper edge against float rounding in the division above.
	if ix >= g.XCount || iy >= g.YCount {
		return 0, 0, false
	}
	return ix, iy, true
}

// CellOrigin returns the lower-left corner of cell (ix, iy).
func (g *Grid) CellOrigin(ix, iy int) (x, y float64) {
	return g.MinX + float64(ix)*g.Step, g.MinY + float64(iy)*g.Step
}

// Name is a stable identifier embedding the source scan, cell size and phase
// offsets. It keys run-log lines and persisted snapshots.
func (g *Grid) Name() string { return g.name }

func (g *Grid) String() string {
	return fmt.Sprintf("Grid [%s, cells: (x:%d * y:%d * z:%d)]", g.name, g.XCount, g.YCount, g.ZCount)
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
