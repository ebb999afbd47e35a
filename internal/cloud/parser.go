package cloud

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/groundfilter/internal/monitoring"
)

// DefaultChunkSize is the number of points delivered per parser callback.
// Memory use during ingestion is bounded by one chunk regardless of file size.
const DefaultChunkSize = 100_000

// ErrUnsupportedExtension is returned for input files that are not .txt or .ascii.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

var supportedExtensions = []string{".txt", ".ascii"}

// TxtParser streams whitespace-separated ASCII point clouds in fixed-size
// chunks. A malformed line aborts the whole parse: a partially ingested
// cloud would silently skew the DEM fit downstream.
type TxtParser struct {
	// ChunkSize overrides DefaultChunkSize when > 0. Mostly for tests.
	ChunkSize int
}

// Parse reads path line by line, assigning dense IDs starting at nextID, and
// hands chunks of parsed points to emit. Blank lines are skipped. The first
// malformed line is logged at critical level and ends the parse with an error.
// Returns the next unassigned ID so several files can share one ID space.
func (tp *TxtParser) Parse(path string, nextID int64, emit func(chunk []Point) error) (int64, error) {
	if err := checkExtension(path); err != nil {
		return nextID, err
	}
	chunkSize := tp.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nextID, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	chunk := make([]Point, 0, chunkSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := ParsePointLine(line, nextID)
		if err != nil {
			monitoring.Logf("CRITICAL: %s:%d malformed point line %q: %v", path, lineNo, line, err)
			return nextID, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		nextID++
		chunk = append(chunk, p)
		if len(chunk) == chunkSize {
			if err := emit(chunk); err != nil {
				return nextID, err
			}
			chunk = chunk[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nextID, fmt.Errorf("read %s: %w", path, err)
	}
	if len(chunk) > 0 {
		if err := emit(chunk); err != nil {
			return nextID, err
		}
	}
	return nextID, nil
}

func checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range supportedExtensions {
		if ext == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (want one of %v)", ErrUnsupportedExtension, ext, supportedExtensions)
}
