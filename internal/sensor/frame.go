// Package sensor describes the hand-tracking frames consumed by the motion recorder.
//
// The tracking SDK itself is not part of this module; frames reach the recorder
// through the narrow read-only Frame and Hand interfaces below, so recorded or
// synthetic snapshots can stand in for a live device.
package sensor

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// FingerType identifies one of the five digits of a hand.
type FingerType int

// Finger types in the order reported by the tracking SDK.
const (
	Thumb FingerType = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers = 5
)

var fingerNames = [NumFingers]string{"Thumb", "Index", "Middle", "Ring", "Pinky"}

func (f FingerType) String() string {
	if f < 0 || int(f) >= NumFingers {
		return fmt.Sprintf("FingerType(%d)", int(f))
	}
	return fingerNames[f]
}

// BoneType identifies a segment of a finger, from the palm outward.
type BoneType int

// Bone types in anatomical order.
const (
	Metacarpal BoneType = iota
	Proximal
	Intermediate
	Distal
	NumBones = 4
)

var boneNames = [NumBones]string{"Metacarpal", "Proximal", "Intermediate", "Distal"}

func (b BoneType) String() string {
	if b < 0 || int(b) >= NumBones {
		return fmt.Sprintf("BoneType(%d)", int(b))
	}
	return boneNames[b]
}

// Basis is an orientation expressed as the three axis vectors of a segment's
// local frame, in sensor coordinates.
type Basis struct {
	X r3.Vector `json:"x_basis"`
	Y r3.Vector `json:"y_basis"`
	Z r3.Vector `json:"z_basis"`
}

// IdentityBasis returns the basis aligned with the sensor axes.
func IdentityBasis() Basis {
	return Basis{
		X: r3.Vector{X: 1},
		Y: r3.Vector{Y: 1},
		Z: r3.Vector{Z: 1},
	}
}

// Bone is one tracked finger segment.
type Bone struct {
	Type      BoneType  `json:"type"`
	PrevJoint r3.Vector `json:"prev_joint"` // end closer to the wrist
	NextJoint r3.Vector `json:"next_joint"` // end closer to the finger tip
	Basis     Basis     `json:"basis"`
}

// Frame is a single sensor reading.
type Frame interface {
	// ID is the sensor-assigned, monotonically increasing frame number.
	ID() int64
	// Timestamp is the capture time in microseconds.
	Timestamp() int64
	// Hands returns the hands tracked in this frame, most prominent first.
	Hands() []Hand
}

// Hand is the read-only view of one tracked hand and the forearm attached to it.
type Hand interface {
	IsLeft() bool
	IsRight() bool
	IsValid() bool

	// FingerCount is the number of tracked digits.
	FingerCount() int

	// Basis is the palm orientation.
	Basis() Basis
	// ArmBasis is the forearm orientation.
	ArmBasis() Basis

	WristPosition() r3.Vector
	ElbowPosition() r3.Vector

	// Bone returns the requested segment, or false when the finger is not tracked.
	Bone(finger FingerType, bone BoneType) (Bone, bool)
}
