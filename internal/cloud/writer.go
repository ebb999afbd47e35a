package cloud

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/banshee-data/groundfilter/internal/monitoring"
)

// WriteClassifiedFiles emits the two output partitions of a run:
// groundPath receives every still-active point, notGroundPath every rejected
// one, both in ID order, one "X Y Z R G B" line per point. Together the two
// files contain every input point exactly once.
func (s *PointStore) WriteClassifiedFiles(groundPath, notGroundPath string) error {
	ground, err := os.Create(groundPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", groundPath, err)
	}
	defer ground.Close()
	notGround, err := os.Create(notGroundPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", notGroundPath, err)
	}
	defer notGround.Close()

	gw := bufio.NewWriter(ground)
	nw := bufio.NewWriter(notGround)
	groundCount, notGroundCount := 0, 0
	s.ForEachPoint(func(p Point, active bool) {
		w := gw
		if active {
			groundCount++
		} else {
			w = nw
			notGroundCount++
		}
		w.WriteString(formatFloat(p.X))
		w.WriteByte(' ')
		w.WriteString(formatFloat(p.Y))
		w.WriteByte(' ')
		w.WriteString(formatFloat(p.Z))
		fmt.Fprintf(w, " %d %d %d\n", p.R, p.G, p.B)
	})
	if err := gw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", groundPath, err)
	}
	if err := nw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", notGroundPath, err)
	}
	monitoring.Logf("wrote %d ground points to %s, %d non-ground points to %s",
		groundCount, groundPath, notGroundCount, notGroundPath)
	return nil
}

// AppendLogLine appends one pre-formatted line to the run log at path,
// creating the file on first use.
func AppendLogLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// formatFloat renders a coordinate with the shortest representation that
// round-trips, matching the plain decimal style of the input format.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
