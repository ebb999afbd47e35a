package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/surface"
)

// demGrid adapts a sparse DemLayer to plotter.GridXYZ. Cells with no points
// report the layer minimum so the palette mapping stays finite everywhere.
type demGrid struct {
	layer *surface.DemLayer
	floor float64
}

func (g demGrid) Dims() (c, r int) {
	return g.layer.Grid.XCount, g.layer.Grid.YCount
}

func (g demGrid) Z(c, r int) float64 {
	cell := g.layer.Cell(c, r)
	if cell == nil {
		return g.floor
	}
	return cell.AvgZ
}

func (g demGrid) X(c int) float64 {
	x, _ := g.layer.Grid.CellOrigin(c, 0)
	return x + g.layer.Grid.Step/2
}

func (g demGrid) Y(r int) float64 {
	_, y := g.layer.Grid.CellOrigin(0, r)
	return y + g.layer.Grid.Step/2
}

// WriteDemHeatmap renders the DEM's per-cell mean elevation as a PNG
// heatmap. The file extension picks the encoder, so .svg and .pdf also work.
func WriteDemHeatmap(path string, layer *surface.DemLayer) error {
	if len(layer.Cells) == 0 {
		return fmt.Errorf("DEM layer has no occupied cells")
	}

	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, c := range layer.Cells {
		minZ = math.Min(minZ, c.AvgZ)
		maxZ = math.Max(maxZ, c.AvgZ)
	}

	h := plotter.NewHeatMap(demGrid{layer: layer, floor: minZ}, palette.Heat(16, 1))
	h.Min, h.Max = minZ, maxZ
	if h.Min == h.Max {
		// Degenerate flat surface still needs a non-empty colour range.
		h.Max = h.Min + 1e-9
	}

	p := plot.New()
	p.Title.Text = "DEM mean elevation"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(h)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap %s: %w", path, err)
	}
	monitoring.Logf("wrote DEM heatmap to %s", path)
	return nil
}
