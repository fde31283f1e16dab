package kinematics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handmocap/internal/sensor"
	"github.com/ayusman/handmocap/internal/skeleton"
)

// Convention selects how sensor bases are mapped before rotations are composed.
type Convention string

const (
	// ConventionSensor uses bases exactly as the sensor reports them.
	ConventionSensor Convention = "sensor"
	// ConventionMirrorZ negates the Z axis, converting the sensor's
	// right-handed frame to a left-handed one (and back).
	ConventionMirrorZ Convention = "mirror-z"
)

// ParseConvention validates a coordinate convention name.
func ParseConvention(s string) (Convention, error) {
	switch c := Convention(s); c {
	case ConventionSensor, ConventionMirrorZ:
		return c, nil
	case "":
		return ConventionSensor, nil
	}
	return "", fmt.Errorf("unknown coordinate convention %q", s)
}

// Options tune the relative rotation solver.
type Options struct {
	Convention Convention
	// Renormalize replaces every basis with its nearest rotation before
	// composing. When false, non-orthonormal sensor bases are used as-is.
	Renormalize bool
}

// DefaultOptions returns the solver settings matching raw sensor output.
func DefaultOptions() Options {
	return Options{Convention: ConventionSensor}
}

// Solver computes each joint's rotation relative to its parent and to the
// calibration pose. It holds no per-frame state.
type Solver struct {
	skel *skeleton.Skeleton
	ext  *Extractor
	opts Options
}

// NewSolver creates a Solver for s.
func NewSolver(s *skeleton.Skeleton, opts Options) (*Solver, error) {
	conv, err := ParseConvention(string(opts.Convention))
	if err != nil {
		return nil, err
	}
	opts.Convention = conv

	return &Solver{
		skel: s,
		ext:  NewExtractor(s),
		opts: opts,
	}, nil
}

// Extractor returns the basis and offset extractor used by the solver.
func (s *Solver) Extractor() *Extractor {
	return s.ext
}

// Rotation returns the Euler angles in degrees, in the skeleton's rotation
// order, of the named joint in current relative to its parent, with both
// measured from their orientation in calibration. The root and end effectors
// are untracked and always yield zero.
func (s *Solver) Rotation(current, calibration sensor.Hand, name string) (Euler, error) {
	j, ok := s.skel.Joint(name)
	if !ok {
		return Euler{}, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
	}
	if j.Name == s.skel.Root || j.IsEnd() {
		return Euler{}, nil
	}

	b, err := s.basis(current, j.Name)
	if err != nil {
		return Euler{}, err
	}
	b0, err := s.basis(calibration, j.Name)
	if err != nil {
		return Euler{}, err
	}
	bp, err := s.basis(current, j.Parent)
	if err != nil {
		return Euler{}, err
	}
	b0p, err := s.basis(calibration, j.Parent)
	if err != nil {
		return Euler{}, err
	}

	r := relativeRotation(b, b0, bp, b0p)
	return Decompose(r, s.skel.RotationOrder).Degrees(), nil
}

// basis applies the configured convention and renormalization policy.
func (s *Solver) basis(hand sensor.Hand, name string) (mat.Matrix, error) {
	b, err := s.ext.Basis(hand, name)
	if err != nil {
		return nil, err
	}
	if s.opts.Renormalize {
		b = nearestRotation(b)
	}
	if s.opts.Convention == ConventionMirrorZ {
		b = conjugate(b, mirrorZ)
	}
	return b, nil
}

// Drift reports how far the named joint's sensor basis is from orthonormal,
// as the largest entry of Bᵗ·B − I.
func (s *Solver) Drift(hand sensor.Hand, name string) (float64, error) {
	b, err := s.ext.Basis(hand, name)
	if err != nil {
		return 0, err
	}
	return orthonormalityError(b), nil
}
