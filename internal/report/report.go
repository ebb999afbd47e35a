// Package report renders post-run diagnostics: an HTML convergence chart of
// the per-iteration metrics and a PNG heatmap of the final DEM. Both are
// optional outputs; the filtering engine does not depend on this package.
package report

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/groundfilter/internal/ground"
	"github.com/banshee-data/groundfilter/internal/monitoring"
)

// WriteConvergenceReport renders the iteration records as an HTML page with
// a line chart: layer MSE and median per iteration, plus the active count
// trajectory. Degenerate iterations chart as gaps.
func WriteConvergenceReport(path string, scanName string, recs []ground.IterationRecord) error {
	if len(recs) == 0 {
		return fmt.Errorf("no iteration records to report")
	}

	xAxis := make([]string, 0, len(recs))
	mse := make([]opts.LineData, 0, len(recs))
	median := make([]opts.LineData, 0, len(recs))
	active := make([]opts.LineData, 0, len(recs))
	for _, r := range recs {
		xAxis = append(xAxis, strconv.Itoa(r.N))
		mse = append(mse, lineValue(r.LayerMSE))
		median = append(median, lineValue(r.Median))
		active = append(active, opts.LineData{Value: r.ActiveCount})
	}

	metrics := charts.NewLine()
	metrics.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Ground filter convergence", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Surface fit per iteration", Subtitle: fmt.Sprintf("scan=%s iterations=%d", scanName, len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "metres"}),
	)
	metrics.SetXAxis(xAxis).
		AddSeries("layer MSE", mse).
		AddSeries("median cell MSE", median)

	counts := charts.NewLine()
	counts.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Active points"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "points"}),
	)
	counts.SetXAxis(xAxis).AddSeries("active", active)

	page := components.NewPage()
	page.AddCharts(metrics, counts)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	monitoring.Logf("wrote convergence report to %s", path)
	return nil
}

// lineValue maps Null metrics to a chart gap.
func lineValue(v float64) opts.LineData {
	if math.IsNaN(v) {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: v}
}
