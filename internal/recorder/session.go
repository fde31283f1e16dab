// Package recorder accumulates tracked hand frames into a calibrated motion
// recording.
package recorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handmocap/internal/kinematics"
	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/sensor"
	"github.com/ayusman/handmocap/internal/skeleton"
)

// ErrNotCalibrated is returned when calibration data is requested before the
// first frame has been accepted.
var ErrNotCalibrated = errors.New("session not calibrated")

// State is the calibration state of a session.
type State int

const (
	// StateUncalibrated waits for the first valid frame.
	StateUncalibrated State = iota
	// StateRecording appends one sample per valid frame.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateUncalibrated:
		return "uncalibrated"
	case StateRecording:
		return "recording"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultDriftTolerance is the largest entry of Bᵗ·B − I accepted from a
// sensor basis without a warning.
const DefaultDriftTolerance = 1e-3

// Config holds the options a session is built from.
type Config struct {
	Skeleton skeleton.Config
	Solver   kinematics.Options
	// DriftTolerance enables a once-per-joint warning when a basis drifts
	// further from orthonormal. 0 disables the check.
	DriftTolerance float64
}

// DefaultConfig returns a right-hand rotation-mode session using raw sensor
// bases.
func DefaultConfig() Config {
	return Config{
		Skeleton:       skeleton.DefaultConfig(),
		Solver:         kinematics.DefaultOptions(),
		DriftTolerance: DefaultDriftTolerance,
	}
}

// Sample is one accepted frame: the value of every channel, in column order,
// and the time elapsed since the calibration frame.
type Sample struct {
	FrameID int64
	Elapsed time.Duration
	Values  []float64
}

// Session records one take. The first valid frame becomes the calibration
// pose: it fixes every joint's rest offset and defines zero rotation. A
// session is not safe for concurrent use; frames must be added from a
// single goroutine and must not be modified afterwards.
type Session struct {
	skel   *skeleton.Skeleton
	solver *kinematics.Solver
	cols   []skeleton.ColumnRef

	state       State
	calibration sensor.Hand
	startUs     int64
	samples     []Sample
	err         error

	driftTol float64
	drifted  map[string]bool
}

// NewSession creates an uncalibrated session with its own skeleton.
func NewSession(cfg Config) (*Session, error) {
	skel, err := skeleton.New(cfg.Skeleton)
	if err != nil {
		return nil, fmt.Errorf("build skeleton: %w", err)
	}
	solver, err := kinematics.NewSolver(skel, cfg.Solver)
	if err != nil {
		return nil, err
	}
	return &Session{
		skel:     skel,
		solver:   solver,
		cols:     skel.Columns(),
		driftTol: cfg.DriftTolerance,
		drifted:  make(map[string]bool),
	}, nil
}

// AddFrame validates frame and, when it carries a usable right hand, appends
// one sample. Invalid frames are logged and skipped without changing the
// session. A non-nil error means the skeleton and the extraction rules
// disagree; the session is then unusable and every later call returns the
// same error.
func (s *Session) AddFrame(frame sensor.Frame) (bool, error) {
	if s.err != nil {
		return false, s.err
	}

	hand, ok := checkFrame(frame)
	if !ok {
		return false, nil
	}
	s.checkDrift(frame.ID(), hand)

	calibrating := s.state == StateUncalibrated
	calibration := s.calibration
	if calibrating {
		calibration = hand
	}

	offsets, values, err := s.channelValues(hand, calibration, calibrating)
	if err != nil {
		if errors.Is(err, kinematics.ErrMissingBone) {
			Logf("Skipping frame %d: %v", frame.ID(), err)
			return false, nil
		}
		s.err = fmt.Errorf("frame %d: %w", frame.ID(), err)
		return false, s.err
	}

	var elapsed time.Duration
	if calibrating {
		for name, off := range offsets {
			if err := s.skel.SetOffset(name, off); err != nil {
				s.err = err
				return false, err
			}
		}
		s.calibration = hand
		s.startUs = frame.Timestamp()
		s.state = StateRecording
		Logf("Calibrated on frame %d", frame.ID())
	} else {
		elapsed = time.Duration(frame.Timestamp()-s.startUs) * time.Microsecond
	}

	s.samples = append(s.samples, Sample{
		FrameID: frame.ID(),
		Elapsed: elapsed,
		Values:  values,
	})
	return true, nil
}

// checkFrame returns the hand to record, or logs why the frame is unusable.
func checkFrame(frame sensor.Frame) (sensor.Hand, bool) {
	hands := frame.Hands()
	if len(hands) == 0 {
		Logf("No hand found.")
		return nil, false
	}

	hand := hands[0]
	if hand.IsLeft() {
		Logf("Please use your right hand.")
		return nil, false
	}
	if !hand.IsRight() || !hand.IsValid() {
		Logf("Hand in frame %d is not valid.", frame.ID())
		return nil, false
	}
	if hand.FingerCount() == 0 {
		Logf("No valid fingers found.")
		return nil, false
	}
	return hand, true
}

// checkDrift warns the first time each joint's sensor basis is further from
// orthonormal than the tolerance.
func (s *Session) checkDrift(id int64, hand sensor.Hand) {
	if s.driftTol <= 0 {
		return
	}
	for _, j := range s.skel.Joints() {
		if s.drifted[j.Name] || j.Name == s.skel.Root || j.IsEnd() {
			continue
		}
		drift, err := s.solver.Drift(hand, j.Name)
		if err != nil || drift <= s.driftTol {
			continue
		}
		s.drifted[j.Name] = true
		Logf("Frame %d: %s basis drift %.2g exceeds %.2g", id, j.Name, drift, s.driftTol)
	}
}

// channelValues computes every joint's offset and the full row of channel
// values. Nothing is committed to the session here.
func (s *Session) channelValues(hand, calibration sensor.Hand, calibrating bool) (map[string]r3.Vector, []float64, error) {
	ext := s.solver.Extractor()
	offsets := make(map[string]r3.Vector, s.skel.Len())
	rotations := make(map[string]kinematics.Euler, s.skel.Len())

	for _, j := range s.skel.Joints() {
		off, err := ext.Offset(hand, j.Name)
		if err != nil {
			return nil, nil, err
		}
		offsets[j.Name] = off

		if calibrating {
			continue
		}
		rot, err := s.solver.Rotation(hand, calibration, j.Name)
		if err != nil {
			return nil, nil, err
		}
		rotations[j.Name] = rot
	}

	values := make([]float64, len(s.cols))
	for i, c := range s.cols {
		off, rot := offsets[c.Joint], rotations[c.Joint]
		switch c.Channel {
		case skeleton.XPosition:
			values[i] = off.X
		case skeleton.YPosition:
			values[i] = off.Y
		case skeleton.ZPosition:
			values[i] = off.Z
		case skeleton.XRotation:
			values[i] = rot.X
		case skeleton.YRotation:
			values[i] = rot.Y
		case skeleton.ZRotation:
			values[i] = rot.Z
		}
	}
	return offsets, values, nil
}

// State returns the calibration state.
func (s *Session) State() State {
	return s.state
}

// Err returns the error that stopped the session, if any.
func (s *Session) Err() error {
	return s.err
}

// Skeleton returns the session's skeleton. Offsets are set once the session
// is calibrated.
func (s *Session) Skeleton() *skeleton.Skeleton {
	return s.skel
}

// Calibration returns the hand captured on the first accepted frame.
func (s *Session) Calibration() (sensor.Hand, error) {
	if s.state == StateUncalibrated {
		return nil, ErrNotCalibrated
	}
	return s.calibration, nil
}

// Len returns the number of accepted samples.
func (s *Session) Len() int {
	return len(s.samples)
}

// Samples returns the accepted samples in arrival order.
func (s *Session) Samples() []Sample {
	return s.samples
}

// Last returns the most recent sample.
func (s *Session) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Finalize converts the accumulated samples into a motion table indexed by
// elapsed time. An uncalibrated session yields an empty table.
func (s *Session) Finalize() *motion.Data {
	d := motion.New(s.skel)
	d.Index = make([]time.Duration, 0, len(s.samples))
	d.Values = make([][]float64, 0, len(s.samples))
	for _, sm := range s.samples {
		d.Index = append(d.Index, sm.Elapsed)
		d.Values = append(d.Values, sm.Values)
	}
	return d
}
