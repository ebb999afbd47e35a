// Package ground orchestrates the iterative ground/non-ground classification
// of a point cloud: a fixed set of phase-shifted voxel grids is cycled, a
// DEM and a bilinear surface are fitted per iteration, and a threshold
// policy prunes points sitting too far above the fitted surface. Activity
// only ever shrinks, so the loop converges towards the bare terrain.
package ground

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/groundfilter/internal/cloud"
	"github.com/banshee-data/groundfilter/internal/filter"
	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/surface"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

// Params are the run parameters. Validate clamps nothing: out-of-range
// values are an error, mirroring the slider bounds of the control panel.
type Params struct {
	// Iterations is the number of filter passes, in [1, 30].
	Iterations int
	// Step is the voxel cell side in metres, in [1, 20].
	Step float64
	// KValue scales the median-based adaptive threshold, in [1, 6].
	KValue float64
	// MaxV is the absolute fallback threshold in metres. Zero means 1.
	MaxV float64
	// GridCount is the number of phase-shifted grids to cycle. Zero means 4.
	GridCount int
}

// Validate checks the parameter ranges and fills defaults.
func (p *Params) Validate() error {
	if p.Iterations < 1 || p.Iterations > 30 {
		return fmt.Errorf("iterations must be in [1,30], got %d", p.Iterations)
	}
	if p.Step < 1 || p.Step > 20 {
		return fmt.Errorf("step must be in [1,20] metres, got %g", p.Step)
	}
	if p.KValue < 1 || p.KValue > 6 {
		return fmt.Errorf("k value must be in [1,6], got %g", p.KValue)
	}
	if p.MaxV == 0 {
		p.MaxV = 1
	}
	if p.MaxV < 0 {
		return fmt.Errorf("max v must be positive, got %g", p.MaxV)
	}
	if p.GridCount == 0 {
		p.GridCount = 4
	}
	if p.GridCount < 1 {
		return fmt.Errorf("grid count must be positive, got %d", p.GridCount)
	}
	return nil
}

// IterationRecord is the progress record emitted once per completed
// iteration. LayerMSE and Median are Null for degenerate iterations.
type IterationRecord struct {
	N           int // 1-based
	GridName    string
	ActiveCount int // after the pass
	LayerMSE    float64
	Median      float64
	Policy      string // "median", "max_v", or "none" for a degenerate no-op
	Threshold   float64
	Rejected    int
	Elapsed     time.Duration
}

// LogLine renders the record in the run-log format.
func (r IterationRecord) LogLine() string {
	return fmt.Sprintf("N:%d\tvm_name:%s\tscan_len:%d\tMSE:%.4f\tMedian:%.4f\n",
		r.N, r.GridName, r.ActiveCount, r.LayerMSE, r.Median)
}

// SnapshotStore is the optional persistence collaborator. It receives one
// record per non-degenerate iteration together with the layer's encoded
// cell blob; degenerate no-op iterations are not passed to it. The engine
// never reads any of it back.
type SnapshotStore interface {
	RecordIteration(rec IterationRecord, layerBlob []byte) error
}

// GroundFilter drives the multi-pass classification of one scan.
type GroundFilter struct {
	Store  *cloud.PointStore
	Params Params

	// OnIteration, when set, observes each IterationRecord as it is
	// produced; a UI can advance a progress bar from it. The callback runs
	// on the filtering goroutine between iterations.
	OnIteration func(IterationRecord)

	// Snapshots, when set, persists per-iteration state.
	Snapshots SnapshotStore

	grids   []*voxel.Grid
	dir     string
	stem    string
	records []IterationRecord
}

// New loads the scan at path and prepares the phase-shifted grids from its
// initial active set. The grids' bounds are reused for every iteration.
func New(path string, params Params) (*GroundFilter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	store := cloud.NewPointStore(stem)
	if err := store.LoadFromFile(path); err != nil {
		return nil, err
	}

	gf := &GroundFilter{
		Store:  store,
		Params: params,
		dir:    filepath.Dir(path),
		stem:   stem,
	}
	if store.Len() == 0 {
		monitoring.Logf("scan %s is empty; run will be a no-op", stem)
		return gf, nil
	}
	if err := gf.buildGrids(); err != nil {
		return nil, err
	}
	return gf, nil
}

// buildGrids constructs the phase-shifted grid cycle: grid i is offset by
// round(i/GridCount, 2) in both axes. With the normative GridCount of 4
// the phases are exactly {0, 0.25, 0.5, 0.75}.
func (gf *GroundFilter) buildGrids() error {
	m := gf.Store.Metrics()
	for i := 0; i < gf.Params.GridCount; i++ {
		delta := math.Round(float64(i)/float64(gf.Params.GridCount)*100) / 100
		g, err := voxel.NewGrid(m, gf.stem, gf.Params.Step, delta, delta)
		if err != nil {
			return fmt.Errorf("grid %d: %w", i, err)
		}
		gf.grids = append(gf.grids, g)
	}
	return nil
}

// Grids exposes the phase cycle, mainly for tests and diagnostics.
func (gf *GroundFilter) Grids() []*voxel.Grid { return gf.grids }

// Records returns the iteration records accumulated by Run.
func (gf *GroundFilter) Records() []IterationRecord { return gf.records }

// Run executes the configured number of iterations and writes the ground,
// non-ground and log files next to the input. Cancellation is honoured
// between iterations only; a cancelled run leaves no partial pass applied
// and writes neither classified output file, while the run log keeps the
// lines of the iterations that completed.
func (gf *GroundFilter) Run(ctx context.Context) error {
	for t := 0; t < gf.Params.Iterations; t++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before iteration %d: %w", t+1, err)
		}
		rec := gf.iterate(t)
		gf.records = append(gf.records, rec)
		if err := cloud.AppendLogLine(gf.LogPath(), rec.LogLine()); err != nil {
			return err
		}
		if gf.OnIteration != nil {
			gf.OnIteration(rec)
		}
	}
	return gf.Store.WriteClassifiedFiles(gf.GroundPath(), gf.NotGroundPath())
}

// iterate performs one full cycle: grid selection, DEM fit, BI fit,
// threshold selection, filter application. Both layers are released when
// the iteration returns.
func (gf *GroundFilter) iterate(t int) IterationRecord {
	start := time.Now()
	rec := IterationRecord{
		N:         t + 1,
		Policy:    "none",
		LayerMSE:  surface.Null(),
		Median:    surface.Null(),
		Threshold: surface.Null(),
	}

	if gf.Store.Metrics().ActiveCount == 0 || len(gf.grids) == 0 {
		rec.GridName = "empty"
		rec.Elapsed = time.Since(start)
		monitoring.Logf("iteration %d: no active points, skipping", rec.N)
		return rec
	}

	grid := gf.grids[t%len(gf.grids)]
	rec.GridName = grid.Name()

	dem := surface.BuildDemLayer(gf.Store, grid)
	bi := surface.BuildBiLayer(gf.Store, dem, true)
	rec.LayerMSE = bi.MSEData
	rec.Median = filter.MedianCellMSE(bi)

	if surface.IsNull(rec.Median) {
		// Degenerate iteration: no patch carries an MSE, so neither policy
		// has any evidence to reject on.
		rec.ActiveCount = gf.Store.Metrics().ActiveCount
		rec.Elapsed = time.Since(start)
		monitoring.Logf("iteration %d on %s: no measurable cells, no-op", rec.N, rec.GridName)
		return rec
	}

	var policy filter.Policy
	if rec.Median*gf.Params.KValue < gf.Params.MaxV {
		policy = filter.Median{Median: rec.Median, K: gf.Params.KValue}
	} else {
		policy = filter.MaxV{MaxV: gf.Params.MaxV}
	}
	rec.Policy = policy.Name()
	rec.Threshold = policy.Threshold()
	rec.Rejected = filter.Apply(gf.Store, bi, policy)
	rec.ActiveCount = gf.Store.Metrics().ActiveCount
	rec.Elapsed = time.Since(start)

	if gf.Snapshots != nil {
		blob, err := bi.EncodeSnapshot()
		if err == nil {
			err = gf.Snapshots.RecordIteration(rec, blob)
		}
		if err != nil {
			// Persistence is an observer; a failed snapshot never fails the run.
			monitoring.Logf("iteration %d: snapshot not persisted: %v", rec.N, err)
		}
	}
	return rec
}

// GroundPath is the output path for still-active points.
func (gf *GroundFilter) GroundPath() string {
	return filepath.Join(gf.dir, gf.stem+"_ground_points.txt")
}

// NotGroundPath is the output path for rejected points.
func (gf *GroundFilter) NotGroundPath() string {
	return filepath.Join(gf.dir, gf.stem+"_not_ground_points.txt")
}

// LogPath is the appended per-iteration run log.
func (gf *GroundFilter) LogPath() string {
	return filepath.Join(gf.dir, gf.stem+"_log.txt")
}
