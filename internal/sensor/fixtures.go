package sensor

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Bone lengths in millimetres for an average adult right hand, metacarpal first.
// The thumb reports a zero-length metacarpal.
var restBoneLengths = [NumFingers][NumBones]float64{
	Thumb:  {0, 46, 32, 26},
	Index:  {68, 39, 23, 17},
	Middle: {64, 44, 27, 19},
	Ring:   {58, 41, 26, 19},
	Pinky:  {53, 33, 18, 17},
}

// Lateral (X) offset of each metacarpal base from the wrist.
var restKnuckleSpread = [NumFingers]float64{
	Thumb:  22,
	Index:  12,
	Middle: 0,
	Ring:   -11,
	Pinky:  -21,
}

// RestPoseSnapshot returns a valid right-hand frame with every segment aligned
// to the sensor axes: forearm and fingers point along -Z, palm facing down.
func RestPoseSnapshot(id, timestampUs int64) *Snapshot {
	wrist := r3.Vector{X: 0, Y: 200, Z: 50}
	hand := HandSnapshot{
		Side:        SideRight,
		Valid:       true,
		PalmBasis:   IdentityBasis(),
		Wrist:       wrist,
		Elbow:       r3.Vector{X: 0, Y: 180, Z: 300},
		ForearmAxes: IdentityBasis(),
	}

	dir := r3.Vector{Z: -1}
	for f := Thumb; f < NumFingers; f++ {
		base := wrist.Add(r3.Vector{X: restKnuckleSpread[f], Z: -5})
		hand.Fingers = append(hand.Fingers, FingerSnapshot{
			Type:  f,
			Bones: boneChain(base, dir, restBoneLengths[f]),
		})
	}

	return &Snapshot{
		FrameID:     id,
		TimestampUs: timestampUs,
		HandList:    []HandSnapshot{hand},
	}
}

// LeftHandSnapshot returns the rest pose reported as a left hand.
func LeftHandSnapshot(id, timestampUs int64) *Snapshot {
	s := RestPoseSnapshot(id, timestampUs)
	s.HandList[0].Side = SideLeft
	return s
}

// EmptySnapshot returns a frame with no tracked hands.
func EmptySnapshot(id, timestampUs int64) *Snapshot {
	return &Snapshot{FrameID: id, TimestampUs: timestampUs}
}

// boneChain lays out four contiguous bones starting at base: each bone's
// PrevJoint is the previous bone's NextJoint.
func boneChain(base, dir r3.Vector, lengths [NumBones]float64) [NumBones]Bone {
	var bones [NumBones]Bone
	prev := base
	for b := Metacarpal; b < NumBones; b++ {
		next := prev.Add(dir.Mul(lengths[b]))
		bones[b] = Bone{
			Type:      b,
			PrevJoint: prev,
			NextJoint: next,
			Basis:     IdentityBasis(),
		}
		prev = next
	}
	return bones
}

// RotatedBasis returns the identity basis rotated by degrees about axis
// (right-hand rule).
func RotatedBasis(axis r3.Vector, degrees float64) Basis {
	id := IdentityBasis()
	return Basis{
		X: rotate(id.X, axis, degrees),
		Y: rotate(id.Y, axis, degrees),
		Z: rotate(id.Z, axis, degrees),
	}
}

// rotate turns v about axis as q·v·q*.
func rotate(v, axis r3.Vector, degrees float64) r3.Vector {
	k := axis.Normalize()
	half := degrees * math.Pi / 360
	sin := math.Sin(half)
	q := quat.Number{Real: math.Cos(half), Imag: k.X * sin, Jmag: k.Y * sin, Kmag: k.Z * sin}
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}
