// Package motion holds finalized skeletal animation: a joint hierarchy with
// rest offsets plus a table of channel values indexed by elapsed time.
package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/handmocap/internal/skeleton"
)

// ErrUnknownColumn is returned when a column label is not part of the table.
var ErrUnknownColumn = errors.New("unknown column")

// Data is a completed recording ready for serialization.
type Data struct {
	Skeleton  *skeleton.Skeleton
	Root      string
	FrameRate float64

	// Columns are "<joint>_<channel>" labels in joint-then-channel order.
	Columns []string
	// Index holds the elapsed time of each row since calibration.
	Index []time.Duration
	// Values has one row per sample, one entry per column.
	Values [][]float64
}

// New creates an empty table for s.
func New(s *skeleton.Skeleton) *Data {
	return &Data{
		Skeleton:  s,
		Root:      s.Root,
		FrameRate: s.FrameRate,
		Columns:   s.Labels(),
	}
}

// Append adds one row. The row must have exactly one value per column.
func (d *Data) Append(elapsed time.Duration, values []float64) error {
	if len(values) != len(d.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(d.Columns))
	}
	d.Index = append(d.Index, elapsed)
	d.Values = append(d.Values, values)
	return nil
}

// Len returns the number of rows.
func (d *Data) Len() int {
	return len(d.Index)
}

// FrameTime is the nominal time between samples.
func (d *Data) FrameTime() time.Duration {
	if d.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / d.FrameRate)
}

// ColumnIndex returns the position of label in the table.
func (d *Data) ColumnIndex(label string) (int, error) {
	for i, c := range d.Columns {
		if c == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, label)
}

// Column returns every value of one column, in row order.
func (d *Data) Column(label string) ([]float64, error) {
	idx, err := d.ColumnIndex(label)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(d.Values))
	for i, row := range d.Values {
		out[i] = row[idx]
	}
	return out, nil
}

// Value returns one cell.
func (d *Data) Value(row int, label string) (float64, error) {
	if row < 0 || row >= len(d.Values) {
		return 0, fmt.Errorf("row %d out of range [0,%d)", row, len(d.Values))
	}
	idx, err := d.ColumnIndex(label)
	if err != nil {
		return 0, err
	}
	return d.Values[row][idx], nil
}

// Table is the JSON form of the channel table.
type Table struct {
	Root      string      `json:"root"`
	FrameRate float64     `json:"frame_rate"`
	Columns   []string    `json:"columns"`
	ElapsedUs []int64     `json:"elapsed_us"`
	Values    [][]float64 `json:"values"`
}

// Table converts the data to its JSON form.
func (d *Data) Table() Table {
	elapsed := make([]int64, len(d.Index))
	for i, e := range d.Index {
		elapsed[i] = e.Microseconds()
	}
	values := d.Values
	if values == nil {
		values = [][]float64{}
	}
	return Table{
		Root:      d.Root,
		FrameRate: d.FrameRate,
		Columns:   d.Columns,
		ElapsedUs: elapsed,
		Values:    values,
	}
}
