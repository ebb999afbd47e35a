// Package reliefdb persists groundfilter run state to a sqlite database.
// It is a pure observer: the filtering engine works entirely in memory and
// none of its invariants depend on anything stored here.
package reliefdb

import (
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/groundfilter/internal/ground"
	"github.com/banshee-data/groundfilter/internal/monitoring"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the run database. The schema is created on open; there is no
// migration machinery, matching the single-file sidecar nature of the store.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run db %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run db schema: %w", err)
	}
	monitoring.Logf("initialized run database at %s", path)
	return &DB{db}, nil
}

// Run ties one filtering run to the database: the engine's SnapshotStore
// plus begin/finish bookkeeping.
type Run struct {
	db    *DB
	RunID string
}

// BeginRun records a new run and returns its handle. Params are stored as
// JSON so runs with different parameter shapes stay comparable.
func (db *DB) BeginRun(scanName, sourcePath string, params ground.Params) (*Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal run params: %w", err)
	}
	runID := uuid.NewString()
	_, err = db.Exec(`INSERT INTO runs (run_id, scan_name, source_path, started_unix_nanos, params_json)
	                  VALUES (?, ?, ?, ?, ?)`,
		runID, scanName, sourcePath, time.Now().UnixNano(), string(paramsJSON))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{db: db, RunID: runID}, nil
}

// RecordIteration implements ground.SnapshotStore. Null metrics become SQL
// NULL so ad-hoc queries aggregate cleanly.
func (r *Run) RecordIteration(rec ground.IterationRecord, layerBlob []byte) error {
	_, err := r.db.Exec(`INSERT INTO iterations
	        (run_id, n, vm_name, scan_len, mse, median, policy, threshold, rejected, elapsed_nanos, layer_blob)
	        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, rec.N, rec.GridName, rec.ActiveCount,
		nullable(rec.LayerMSE), nullable(rec.Median),
		rec.Policy, nullable(rec.Threshold),
		rec.Rejected, rec.Elapsed.Nanoseconds(), layerBlob)
	if err != nil {
		return fmt.Errorf("insert iteration %d: %w", rec.N, err)
	}
	return nil
}

// FinishRun stamps the final partition sizes onto the run record.
func (r *Run) FinishRun(groundCount, notGroundCount int) error {
	_, err := r.db.Exec(`UPDATE runs SET ground_count = ?, not_ground_count = ?, finished_unix_nanos = ?
	                     WHERE run_id = ?`,
		groundCount, notGroundCount, time.Now().UnixNano(), r.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordImport hashes the input file and records it against the run.
// It reports whether the same content was already imported by an earlier
// run in this database, which is worth a notice but never an error.
func (r *Run) RecordImport(path string) (seenBefore bool, err error) {
	hash, err := hashFile(path)
	if err != nil {
		return false, err
	}
	var prior int
	err = r.db.QueryRow(`SELECT COUNT(*) FROM imported_files WHERE file_hash = ?`, hash).Scan(&prior)
	if err != nil {
		return false, fmt.Errorf("query imported files: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO imported_files (file_hash, file_path, run_id, imported_unix_nanos)
	                    VALUES (?, ?, ?, ?)`,
		hash, path, r.RunID, time.Now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert imported file: %w", err)
	}
	if prior > 0 {
		monitoring.Logf("input %s was already filtered by an earlier run in this database", path)
	}
	return prior > 0, nil
}

// IterationCount returns how many iterations a run persisted. Test and
// inspection helper.
func (db *DB) IterationCount(runID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM iterations WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
