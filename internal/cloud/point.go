package cloud

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Point is a single LiDAR return in metres, with optional 8-bit colour.
// Points are immutable after load; ID is assigned densely from 1 in input
// order and doubles as the index into the store's activity bitmap.
type Point struct {
	ID      int64
	X, Y, Z float64
	R, G, B uint8
}

func (p Point) String() string {
	return fmt.Sprintf("Point [id: %d,\tx: %.4f y: %.4f z: %.4f,\trgb: (%d, %d, %d)]",
		p.ID, p.X, p.Y, p.Z, p.R, p.G, p.B)
}

// ErrUnsupportedArity is returned when a point line does not carry 3, 6, 7
// or 9 whitespace-separated fields.
var ErrUnsupportedArity = errors.New("unsupported point line arity")

// ParsePointLine parses one whitespace-separated text line into a Point.
// Supported arities:
//
//	3: X Y Z
//	6: X Y Z R G B
//	7: X Y Z R G B is_ground   (trailing flag ignored)
//	9: X Y Z R G B nX nY nZ    (normals ignored)
//
// Colour defaults to (0, 0, 0) for 3-field lines.
func ParsePointLine(line string, id int64) (Point, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 3, 6, 7, 9:
	default:
		return Point{}, fmt.Errorf("%w: %d fields", ErrUnsupportedArity, len(fields))
	}

	p := Point{ID: id}
	var err error
	if p.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return Point{}, fmt.Errorf("bad X %q: %w", fields[0], err)
	}
	if p.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return Point{}, fmt.Errorf("bad Y %q: %w", fields[1], err)
	}
	if p.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return Point{}, fmt.Errorf("bad Z %q: %w", fields[2], err)
	}
	if len(fields) >= 6 {
		if p.R, err = parseColour(fields[3]); err != nil {
			return Point{}, fmt.Errorf("bad R %q: %w", fields[3], err)
		}
		if p.G, err = parseColour(fields[4]); err != nil {
			return Point{}, fmt.Errorf("bad G %q: %w", fields[4], err)
		}
		if p.B, err = parseColour(fields[5]); err != nil {
			return Point{}, fmt.Errorf("bad B %q: %w", fields[5], err)
		}
	}
	return p, nil
}

func parseColour(s string) (uint8, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("colour %d out of range [0,255]", v)
	}
	return uint8(v), nil
}
