// Command groundfilter classifies an ASCII LiDAR point cloud into ground and
// non-ground points by iteratively fitting bilinear elevation surfaces over
// phase-shifted voxel grids.
//
// Usage:
//
//	groundfilter -input cloud.txt [-iterations 10] [-step 5] [-k 4]
//	             [-maxv 1] [-grids 4] [-config tuning.json]
//	             [-db run.db] [-report report.html] [-heatmap dem.png] [-quiet]
//
// Outputs land next to the input: <stem>_ground_points.txt,
// <stem>_not_ground_points.txt and an appended <stem>_log.txt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/groundfilter/internal/config"
	"github.com/banshee-data/groundfilter/internal/ground"
	"github.com/banshee-data/groundfilter/internal/monitoring"
	"github.com/banshee-data/groundfilter/internal/reliefdb"
	"github.com/banshee-data/groundfilter/internal/report"
	"github.com/banshee-data/groundfilter/internal/surface"
	"github.com/banshee-data/groundfilter/internal/voxel"
)

var (
	inputPath   = flag.String("input", "", "Path to the input point cloud (*.txt or *.ascii)")
	iterations  = flag.Int("iterations", config.DefaultIterations, "Number of filter iterations [1,30]")
	step        = flag.Float64("step", config.DefaultStep, "Voxel cell size in metres [1,20]")
	kValue      = flag.Float64("k", config.DefaultKValue, "Median threshold multiplier [1,6]")
	maxV        = flag.Float64("maxv", config.DefaultMaxV, "Absolute fallback threshold in metres")
	gridCount   = flag.Int("grids", config.DefaultGridCount, "Number of phase-shifted voxel grids")
	configPath  = flag.String("config", "", "Optional JSON tuning file; explicit flags win over it")
	dbPath      = flag.String("db", "", "Optional sqlite run database for per-iteration snapshots")
	reportPath  = flag.String("report", "", "Optional HTML convergence report path")
	heatmapPath = flag.String("heatmap", "", "Optional DEM heatmap image path (.png/.svg/.pdf)")
	quiet       = flag.Bool("quiet", false, "Suppress diagnostic logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Printf("groundfilter: %v", err)
		os.Exit(1)
	}
}

func run() error {
	if *inputPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required -input")
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	applyConfigFile()

	params := ground.Params{
		Iterations: *iterations,
		Step:       *step,
		KValue:     *kValue,
		MaxV:       *maxV,
		GridCount:  *gridCount,
	}

	gf, err := ground.New(*inputPath, params)
	if err != nil {
		return err
	}

	var dbRun *reliefdb.Run
	if *dbPath != "" {
		db, err := reliefdb.Open(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		dbRun, err = db.BeginRun(gf.Store.Name, *inputPath, gf.Params)
		if err != nil {
			return err
		}
		if _, err := dbRun.RecordImport(*inputPath); err != nil {
			monitoring.Logf("import ledger not updated: %v", err)
		}
		gf.Snapshots = dbRun
	}

	gf.OnIteration = func(rec ground.IterationRecord) {
		monitoring.Logf("iteration %d/%d: grid=%s policy=%s rejected=%d active=%d",
			rec.N, gf.Params.Iterations, rec.GridName, rec.Policy, rec.Rejected, rec.ActiveCount)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gf.Run(ctx); err != nil {
		return err
	}

	groundCount := gf.Store.Metrics().ActiveCount
	notGroundCount := gf.Store.Len() - groundCount
	monitoring.Logf("run complete: %d ground, %d non-ground of %d points",
		groundCount, notGroundCount, gf.Store.Len())

	if dbRun != nil {
		if err := dbRun.FinishRun(groundCount, notGroundCount); err != nil {
			monitoring.Logf("run record not finalised: %v", err)
		}
	}
	if *reportPath != "" {
		if err := report.WriteConvergenceReport(*reportPath, gf.Store.Name, gf.Records()); err != nil {
			return err
		}
	}
	if *heatmapPath != "" {
		if err := writeFinalHeatmap(gf); err != nil {
			return err
		}
	}
	return nil
}

// applyConfigFile overlays tuning-file values onto flags the user did not
// set explicitly.
func applyConfigFile() {
	if *configPath == "" {
		return
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Printf("groundfilter: ignoring tuning file: %v", err)
		return
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["iterations"] {
		*iterations = cfg.GetIterations()
	}
	if !set["step"] {
		*step = cfg.GetStep()
	}
	if !set["k"] {
		*kValue = cfg.GetKValue()
	}
	if !set["maxv"] {
		*maxV = cfg.GetMaxV()
	}
	if !set["grids"] {
		*gridCount = cfg.GetGridCount()
	}
	if !set["db"] && cfg.GetDBPath() != "" {
		*dbPath = cfg.GetDBPath()
	}
	if !set["report"] && cfg.GetReportPath() != "" {
		*reportPath = cfg.GetReportPath()
	}
	if !set["heatmap"] && cfg.GetHeatmapPath() != "" {
		*heatmapPath = cfg.GetHeatmapPath()
	}
}

// writeFinalHeatmap refits a canonical unshifted DEM over the surviving
// ground points and renders it.
func writeFinalHeatmap(gf *ground.GroundFilter) error {
	m := gf.Store.Metrics()
	if m.ActiveCount == 0 {
		monitoring.Logf("no ground points left; skipping heatmap")
		return nil
	}
	grid, err := voxel.NewGrid(m, gf.Store.Name, gf.Params.Step, 0, 0)
	if err != nil {
		return err
	}
	dem := surface.BuildDemLayer(gf.Store, grid)
	return report.WriteDemHeatmap(*heatmapPath, dem)
}
