package surface

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// CellSnapshot is the serialisable form of one bilinear patch. NaN metrics
// survive gob encoding, so Null round-trips without a sentinel.
type CellSnapshot struct {
	IX, IY    int
	X1, Y1    float64
	Z         [4]float64
	CornerMSE [4]float64
	Count     int
	MSE       float64
}

// EncodeSnapshot serialises the layer's patches as a gzip-compressed gob
// blob for persistence between iterations. The grid geometry is not
// embedded; the surrounding run record carries the grid name.
func (l *BiLayer) EncodeSnapshot() ([]byte, error) {
	cells := make([]CellSnapshot, 0, len(l.Cells))
	for _, c := range l.Cells {
		cells = append(cells, CellSnapshot{
			IX: c.IX, IY: c.IY,
			X1: c.X1, Y1: c.Y1,
			Z:         c.Z,
			CornerMSE: c.CornerMSE,
			Count:     c.Count,
			MSE:       c.MSE,
		})
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(cells); err != nil {
		return nil, fmt.Errorf("encode layer snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress layer snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(blob []byte) ([]CellSnapshot, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress layer snapshot: %w", err)
	}
	defer gz.Close()
	var cells []CellSnapshot
	if err := gob.NewDecoder(gz).Decode(&cells); err != nil {
		return nil, fmt.Errorf("decode layer snapshot: %w", err)
	}
	return cells, nil
}
