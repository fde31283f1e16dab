// Package kinematics reconstructs joint offsets and rotations from tracked
// hand frames.
package kinematics

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handmocap/internal/sensor"
	"github.com/ayusman/handmocap/internal/skeleton"
)

var (
	// ErrUnknownJoint is returned for a joint the skeleton does not define.
	ErrUnknownJoint = errors.New("unknown joint")
	// ErrMissingBone is returned when the frame does not track a segment the
	// skeleton needs.
	ErrMissingBone = errors.New("bone not tracked")
)

// Extractor pulls per-joint orientation bases and offsets out of a tracked hand.
type Extractor struct {
	skel *skeleton.Skeleton
}

// NewExtractor creates an Extractor for the joints of s.
func NewExtractor(s *skeleton.Skeleton) *Extractor {
	return &Extractor{skel: s}
}

func (e *Extractor) joint(name string) (*skeleton.Joint, error) {
	j, ok := e.skel.Joint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
	}
	return j, nil
}

// Basis returns the orientation of the named joint as a 3x3 matrix whose
// columns are the sensor-reported axis vectors. The root is untracked and
// always reports the identity. No handedness remap is applied here.
func (e *Extractor) Basis(hand sensor.Hand, name string) (*mat.Dense, error) {
	j, err := e.joint(name)
	if err != nil {
		return nil, err
	}

	switch j.Descriptor.Kind {
	case skeleton.KindRoot:
		return identity(), nil
	case skeleton.KindLimbRoot:
		return basisMatrix(hand.ArmBasis()), nil
	case skeleton.KindHand:
		return basisMatrix(hand.Basis()), nil
	}

	boneType, err := skeleton.Bone(j.Descriptor.Segment)
	if err != nil {
		return nil, fmt.Errorf("basis of %q: %w", name, err)
	}
	bone, err := fingerBone(hand, j.Descriptor.Finger, boneType)
	if err != nil {
		return nil, err
	}
	return basisMatrix(bone.Basis), nil
}

// Offset returns the translation of the named joint from its anatomical
// reference point. Offsets are additive along each chain: summing a finger's
// offsets from the hand joint outward gives the position of that segment's
// distal end relative to the wrist.
func (e *Extractor) Offset(hand sensor.Hand, name string) (r3.Vector, error) {
	j, err := e.joint(name)
	if err != nil {
		return r3.Vector{}, err
	}

	switch j.Descriptor.Kind {
	case skeleton.KindRoot:
		return r3.Vector{}, nil
	case skeleton.KindLimbRoot:
		return hand.ElbowPosition(), nil
	case skeleton.KindHand:
		return hand.WristPosition().Sub(hand.ElbowPosition()), nil
	}

	finger, segment := j.Descriptor.Finger, j.Descriptor.Segment

	// First segment of the chain: wrist to the segment's proximal end. The
	// thumb chain starts at the proximal bone.
	if segment == 1 || (finger == sensor.Thumb && segment == 2) {
		boneType, err := skeleton.Bone(segment)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("offset of %q: %w", name, err)
		}
		bone, err := fingerBone(hand, finger, boneType)
		if err != nil {
			return r3.Vector{}, err
		}
		return bone.PrevJoint.Sub(hand.WristPosition()), nil
	}

	// Otherwise the length and direction of the preceding bone.
	boneType, err := skeleton.Bone(segment - 1)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("offset of %q: %w", name, err)
	}
	bone, err := fingerBone(hand, finger, boneType)
	if err != nil {
		return r3.Vector{}, err
	}
	return bone.NextJoint.Sub(bone.PrevJoint), nil
}

func fingerBone(hand sensor.Hand, finger sensor.FingerType, boneType sensor.BoneType) (sensor.Bone, error) {
	bone, ok := hand.Bone(finger, boneType)
	if !ok {
		return sensor.Bone{}, fmt.Errorf("%w: %v %v", ErrMissingBone, finger, boneType)
	}
	return bone, nil
}
