// Package bvh writes motion data as Biovision Hierarchy files.
package bvh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/skeleton"
)

// ErrNoSkeleton is returned when the motion data has no joint hierarchy.
var ErrNoSkeleton = errors.New("motion data has no skeleton")

// Precision is the number of decimals written for offsets and channel values.
const Precision = 6

// Write serializes d: a HIERARCHY block built from the skeleton's rest
// offsets and channel lists, then a MOTION block with one line per sample.
func Write(w io.Writer, d *motion.Data) error {
	if d == nil || d.Skeleton == nil {
		return ErrNoSkeleton
	}
	root, ok := d.Skeleton.Joint(d.Root)
	if !ok {
		return fmt.Errorf("root joint %q not in skeleton", d.Root)
	}
	for i, row := range d.Values {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(d.Columns))
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("HIERARCHY\n")
	writeJoint(bw, d.Skeleton, root, 0)

	bw.WriteString("MOTION\n")
	fmt.Fprintf(bw, "Frames: %d\n", d.Len())
	fmt.Fprintf(bw, "Frame Time: %s\n", formatFloat(d.FrameTime().Seconds()))
	for _, row := range d.Values {
		for i, v := range row {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

func writeJoint(w *bufio.Writer, s *skeleton.Skeleton, j *skeleton.Joint, depth int) {
	indent := strings.Repeat("\t", depth)

	switch {
	case j.IsEnd():
		fmt.Fprintf(w, "%sEnd Site\n", indent)
	case depth == 0:
		fmt.Fprintf(w, "ROOT %s\n", j.Name)
	default:
		fmt.Fprintf(w, "%sJOINT %s\n", indent, j.Name)
	}
	fmt.Fprintf(w, "%s{\n", indent)

	fmt.Fprintf(w, "%s\tOFFSET %s %s %s\n", indent,
		formatFloat(j.Offset.X), formatFloat(j.Offset.Y), formatFloat(j.Offset.Z))

	if len(j.Channels) > 0 {
		names := make([]string, len(j.Channels))
		for i, c := range j.Channels {
			names[i] = string(c)
		}
		fmt.Fprintf(w, "%s\tCHANNELS %d %s\n", indent, len(names), strings.Join(names, " "))
	}

	for _, name := range j.Children {
		child, _ := s.Joint(name)
		writeJoint(w, s, child, depth+1)
	}

	fmt.Fprintf(w, "%s}\n", indent)
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', Precision, 64)
	if s == "-0."+strings.Repeat("0", Precision) {
		return s[1:]
	}
	return s
}
