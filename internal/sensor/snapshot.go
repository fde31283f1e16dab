package sensor

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
)

// Side is the handedness reported by the sensor.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Snapshot is a plain, serializable Frame. Recorded sessions are stored as one
// JSON Snapshot per line.
type Snapshot struct {
	FrameID     int64          `json:"id"`
	TimestampUs int64          `json:"timestamp_us"`
	HandList    []HandSnapshot `json:"hands"`
}

// HandSnapshot is a plain, serializable Hand.
type HandSnapshot struct {
	Side        Side             `json:"side"`
	Valid       bool             `json:"valid"`
	PalmBasis   Basis            `json:"basis"`
	Wrist       r3.Vector        `json:"wrist_position"`
	Elbow       r3.Vector        `json:"elbow_position"`
	ForearmAxes Basis            `json:"arm_basis"`
	Fingers     []FingerSnapshot `json:"fingers"`
}

// FingerSnapshot holds the four bones of one digit.
type FingerSnapshot struct {
	Type  FingerType     `json:"type"`
	Bones [NumBones]Bone `json:"bones"`
}

// ID implements Frame.
func (s *Snapshot) ID() int64 { return s.FrameID }

// Timestamp implements Frame.
func (s *Snapshot) Timestamp() int64 { return s.TimestampUs }

// Hands implements Frame.
func (s *Snapshot) Hands() []Hand {
	hands := make([]Hand, len(s.HandList))
	for i := range s.HandList {
		hands[i] = &s.HandList[i]
	}
	return hands
}

func (h *HandSnapshot) IsLeft() bool             { return h.Side == SideLeft }
func (h *HandSnapshot) IsRight() bool            { return h.Side == SideRight }
func (h *HandSnapshot) IsValid() bool            { return h.Valid }
func (h *HandSnapshot) FingerCount() int         { return len(h.Fingers) }
func (h *HandSnapshot) Basis() Basis             { return h.PalmBasis }
func (h *HandSnapshot) ArmBasis() Basis          { return h.ForearmAxes }
func (h *HandSnapshot) WristPosition() r3.Vector { return h.Wrist }
func (h *HandSnapshot) ElbowPosition() r3.Vector { return h.Elbow }

// Bone implements Hand.
func (h *HandSnapshot) Bone(finger FingerType, bone BoneType) (Bone, bool) {
	if bone < 0 || int(bone) >= NumBones {
		return Bone{}, false
	}
	for i := range h.Fingers {
		if h.Fingers[i].Type == finger {
			return h.Fingers[i].Bones[bone], true
		}
	}
	return Bone{}, false
}

// Finger returns a pointer to the digit of the given type so fixtures can
// modify it in place, or nil when it is not tracked.
func (h *HandSnapshot) Finger(finger FingerType) *FingerSnapshot {
	for i := range h.Fingers {
		if h.Fingers[i].Type == finger {
			return &h.Fingers[i]
		}
	}
	return nil
}

// ParseSnapshot decodes one JSON-encoded frame.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &s, nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		FrameID:     s.FrameID,
		TimestampUs: s.TimestampUs,
		HandList:    make([]HandSnapshot, len(s.HandList)),
	}
	for i, h := range s.HandList {
		h.Fingers = append([]FingerSnapshot(nil), h.Fingers...)
		c.HandList[i] = h
	}
	return c
}
