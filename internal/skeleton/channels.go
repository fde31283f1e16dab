package skeleton

import (
	"fmt"
	"strings"
)

// Channel is one recorded scalar degree of freedom of a joint.
type Channel string

const (
	XPosition Channel = "Xposition"
	YPosition Channel = "Yposition"
	ZPosition Channel = "Zposition"
	XRotation Channel = "Xrotation"
	YRotation Channel = "Yrotation"
	ZRotation Channel = "Zrotation"
)

// PositionChannels are always recorded in X, Y, Z order.
var PositionChannels = []Channel{XPosition, YPosition, ZPosition}

// IsRotation reports whether c is one of the rotation channels.
func (c Channel) IsRotation() bool {
	return c == XRotation || c == YRotation || c == ZRotation
}

// Axis is one of the three coordinate axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

var rotationChannels = [3]Channel{XRotation, YRotation, ZRotation}

func (a Axis) String() string {
	return [...]string{"X", "Y", "Z"}[a]
}

// RotationChannel returns the rotation channel about a.
func (a Axis) RotationChannel() Channel {
	return rotationChannels[a]
}

// RotationOrder is the global permutation of axes in which every joint's
// rotation channels are stored and composed: for order (a, b, c) the joint's
// rotation is R_a · R_b · R_c.
type RotationOrder [3]Axis

// DefaultRotationOrder is the order used by most hand-animation players.
var DefaultRotationOrder = RotationOrder{AxisZ, AxisX, AxisY}

// ParseRotationOrder parses a permutation such as "ZXY" (case-insensitive).
func ParseRotationOrder(s string) (RotationOrder, error) {
	var order RotationOrder
	if len(s) != 3 {
		return order, fmt.Errorf("%w: %q", ErrUnknownRotationOrder, s)
	}

	var seen [3]bool
	for i, r := range strings.ToUpper(s) {
		var a Axis
		switch r {
		case 'X':
			a = AxisX
		case 'Y':
			a = AxisY
		case 'Z':
			a = AxisZ
		default:
			return order, fmt.Errorf("%w: %q", ErrUnknownRotationOrder, s)
		}
		if seen[a] {
			return order, fmt.Errorf("%w: %q repeats %s", ErrUnknownRotationOrder, s, a)
		}
		seen[a] = true
		order[i] = a
	}
	return order, nil
}

// Validate checks that o is a permutation of X, Y and Z.
func (o RotationOrder) Validate() error {
	var seen [3]bool
	for _, a := range o {
		if a < AxisX || a > AxisZ || seen[a] {
			return fmt.Errorf("%w: %v", ErrUnknownRotationOrder, [3]int{int(o[0]), int(o[1]), int(o[2])})
		}
		seen[a] = true
	}
	return nil
}

func (o RotationOrder) String() string {
	return o[0].String() + o[1].String() + o[2].String()
}

// Channels returns the rotation channels in this order.
func (o RotationOrder) Channels() []Channel {
	return []Channel{o[0].RotationChannel(), o[1].RotationChannel(), o[2].RotationChannel()}
}

// ChannelMode selects which channels non-root joints record.
type ChannelMode string

const (
	// ModeRotation records rotations only; the root also records its position.
	ModeRotation ChannelMode = "rotation"
	// ModePosition records position and rotation for every joint.
	ModePosition ChannelMode = "position"
)

// ParseChannelMode validates a channel-setting value.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch m := ChannelMode(s); m {
	case ModeRotation, ModePosition:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannelMode, s)
}
