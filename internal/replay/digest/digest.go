// Package digest thins resolver rows down to a compact, compressed frame
// summary suitable for embedding in a text prompt.
package digest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"rattlebrain/internal/replay/actors"
	"rattlebrain/internal/replay/table"
)

const DefaultEvery = 30

var Columns = []string{
	"frame", "player", "boost",
	"location_x", "location_y", "location_z",
	"rotation_x", "rotation_y", "rotation_z", "rotation_w",
	"angular_velocity_magnitude", "linear_velocity_magnitude",
}

// Point is one sampled row.
type Point struct {
	Frame    int
	Player   string
	Boost    int
	Location [3]int
	Rotation [4]float64

	AngularSpeed float64
	LinearSpeed  float64
}

// Sample keeps every nth distinct frame (counted in ascending frame order,
// starting with the first) and drops rows resting at the origin unless they
// belong to the ball. every <= 0 means DefaultEvery.
func Sample(rows []actors.Row, every int, ballName string) []Point {
	if every <= 0 {
		every = DefaultEvery
	}
	byFrame := map[int][]*actors.Row{}
	for i := range rows {
		r := &rows[i]
		if r.Location == [3]int{} && !isBall(r, ballName) {
			continue
		}
		byFrame[r.Frame] = append(byFrame[r.Frame], r)
	}
	frames := make([]int, 0, len(byFrame))
	for f := range byFrame {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	out := []Point{}
	for i, f := range frames {
		if i%every != 0 {
			continue
		}
		for _, r := range byFrame[f] {
			s := Point{
				Frame:        r.Frame,
				Location:     r.Location,
				Rotation:     r.Rotation,
				AngularSpeed: magnitude(r.AngularVelocity),
				LinearSpeed:  magnitude(r.LinearVelocity),
			}
			if r.Player != nil {
				s.Player = *r.Player
			}
			if r.Boost != nil {
				s.Boost = *r.Boost
			}
			out = append(out, s)
		}
	}
	return out
}

func isBall(r *actors.Row, ballName string) bool {
	if r.Source == actors.SourceBall {
		return true
	}
	return r.Player != nil && *r.Player == ballName
}

func magnitude(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Encode renders points as CSV, gzips it and returns standard base64.
func Encode(points []Point) (string, error) {
	lines := make([][]string, 0, len(points))
	for _, s := range points {
		lines = append(lines, []string{
			strconv.Itoa(s.Frame), s.Player, strconv.Itoa(s.Boost),
			strconv.Itoa(s.Location[0]), strconv.Itoa(s.Location[1]), strconv.Itoa(s.Location[2]),
			ff(s.Rotation[0]), ff(s.Rotation[1]), ff(s.Rotation[2]), ff(s.Rotation[3]),
			ff(s.AngularSpeed), ff(s.LinearSpeed),
		})
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := table.WriteLines(zw, "digest", Columns, lines, table.Options{}); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip digest: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode and returns the CSV text.
func Decode(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode digest: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode digest: %w", err)
	}
	defer zr.Close()
	b, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decode digest: %w", err)
	}
	return string(b), nil
}

func ff(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
