package skeleton

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handmocap/internal/sensor"
)

// Joint naming used by the hand hierarchy.
const (
	LimbRootJoint = "RightElbow"
	HandJoint     = "RightHand"
	// FingerPrefix starts every finger segment name, e.g. "RightHandIndex2".
	FingerPrefix = "RightHand"
	// EndMarker suffixes end-effector joints, e.g. "RightHandIndex4_End".
	EndMarker = "_End"
)

// EndSegment is the segment number given to a finger's end effector.
const EndSegment = 5

// Kind is the anatomical category of a joint.
type Kind int

const (
	KindRoot Kind = iota
	KindLimbRoot
	KindHand
	KindFinger
)

func (k Kind) String() string {
	return [...]string{"root", "limb-root", "hand", "finger"}[k]
}

// Descriptor tags a joint with the sensor data it is driven by. It is
// resolved once when the skeleton is built.
type Descriptor struct {
	Kind Kind
	// Finger and Segment are set for KindFinger only. Segment runs 1..4 for
	// metacarpal..distal and is EndSegment for the end effector.
	Finger  sensor.FingerType
	Segment int
}

// IsEnd reports whether the joint is a finger end effector.
func (d Descriptor) IsEnd() bool {
	return d.Kind == KindFinger && d.Segment == EndSegment
}

// Bone maps segment n to its sensor bone.
func Bone(segment int) (sensor.BoneType, error) {
	if segment < 1 || segment > sensor.NumBones {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBone, segment)
	}
	return sensor.BoneType(segment - 1), nil
}

// Joint is a node of the skeleton.
type Joint struct {
	Name       string
	Parent     string // empty for the root
	Children   []string
	Channels   []Channel
	Offset     r3.Vector // rest-pose offset from the parent, captured at calibration
	Descriptor Descriptor
}

// IsEnd reports whether the joint is an end effector.
func (j *Joint) IsEnd() bool {
	return j.Descriptor.IsEnd()
}

// ParseFingerJoint splits a finger segment name such as "RightHandThumb3" or
// "RightHandIndex4_End" into its finger and segment.
func ParseFingerJoint(name string) (sensor.FingerType, int, error) {
	rest, ok := strings.CutPrefix(name, FingerPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedJoint, name)
	}

	digit := strings.IndexAny(rest, "0123456789")
	if digit <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedJoint, name)
	}

	finger, err := fingerType(rest[:digit])
	if err != nil {
		return 0, 0, err
	}

	segment := int(rest[digit] - '0')
	if _, err := Bone(segment); err != nil {
		return 0, 0, fmt.Errorf("joint %q: %w", name, err)
	}

	switch suffix := rest[digit+1:]; suffix {
	case "":
		return finger, segment, nil
	case EndMarker:
		return finger, EndSegment, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrMalformedJoint, name)
}

func fingerType(name string) (sensor.FingerType, error) {
	for f := sensor.Thumb; f < sensor.NumFingers; f++ {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFinger, name)
}

func describe(name string, isRoot bool) (Descriptor, error) {
	switch {
	case isRoot:
		return Descriptor{Kind: KindRoot}, nil
	case name == LimbRootJoint:
		return Descriptor{Kind: KindLimbRoot}, nil
	case name == HandJoint:
		return Descriptor{Kind: KindHand}, nil
	}

	finger, segment, err := ParseFingerJoint(name)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Kind: KindFinger, Finger: finger, Segment: segment}, nil
}
