package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/skeleton"
)

func smallData(t *testing.T) *motion.Data {
	t.Helper()
	sk, err := skeleton.New(skeleton.Config{
		Mode:          skeleton.ModeRotation,
		RotationOrder: skeleton.DefaultRotationOrder,
		FrameRate:     skeleton.DefaultFrameRate,
		Joints: []skeleton.JointSpec{
			{Name: "Root"},
			{Name: skeleton.LimbRootJoint, Parent: "Root"},
		},
	})
	if err != nil {
		t.Fatalf("skeleton.New() error = %v", err)
	}
	d := motion.New(sk)
	row := make([]float64, len(d.Columns))
	row[len(row)-1] = 7.5
	if err := d.Append(0, make([]float64, len(d.Columns))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := d.Append(8*time.Millisecond, row); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return d
}

func TestRecords(t *testing.T) {
	d := smallData(t)
	records := Records("wave", d)

	if len(records) != 2*len(d.Columns) {
		t.Fatalf("got %d records, want %d", len(records), 2*len(d.Columns))
	}

	last := records[len(records)-1]
	want := ChannelRecord{
		Take:      "wave",
		Sample:    1,
		ElapsedUs: 8000,
		Joint:     skeleton.LimbRootJoint,
		Channel:   "Yrotation",
		Value:     7.5,
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("last record mismatch (-want +got):\n%s", diff)
	}

	if records[0].Joint != "Root" || records[0].Channel != "Xposition" {
		t.Errorf("first record = %+v", records[0])
	}
}

func TestSplitLabel(t *testing.T) {
	tests := []struct {
		label, joint, channel string
	}{
		{"Root_Xposition", "Root", "Xposition"},
		{"RightHandIndex4_End_Zrotation", "RightHandIndex4_End", "Zrotation"},
		{"bare", "bare", ""},
	}
	for _, tt := range tests {
		joint, channel := splitLabel(tt.label)
		if joint != tt.joint || channel != tt.channel {
			t.Errorf("splitLabel(%q) = %q, %q; want %q, %q", tt.label, joint, channel, tt.joint, tt.channel)
		}
	}
}

func TestWriteParquet(t *testing.T) {
	d := smallData(t)
	path := filepath.Join(t.TempDir(), "wave.parquet")

	n, err := WriteParquet(path, "wave", d)
	if err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}
	if n != 2*len(d.Columns) {
		t.Errorf("wrote %d records, want %d", n, 2*len(d.Columns))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	// Parquet files start and end with the PAR1 magic
	if len(data) < 8 || string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Error("output is not a parquet file")
	}
}

func TestWriteParquet_BadPath(t *testing.T) {
	_, err := WriteParquet(filepath.Join(t.TempDir(), "missing", "x.parquet"), "x", smallData(t))
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
