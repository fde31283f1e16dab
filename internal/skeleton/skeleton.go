// Package skeleton defines the joint hierarchy recorded from the hand tracker
// and which channels each joint contributes to the motion table.
package skeleton

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// Configuration-integrity errors. They indicate a mismatch between the joint
// table and the extraction logic and are never recoverable at runtime.
var (
	ErrUnknownChannelMode   = errors.New("unknown channel mode")
	ErrUnknownRotationOrder = errors.New("unknown rotation order")
	ErrMalformedJoint       = errors.New("malformed joint name")
	ErrUnknownFinger        = errors.New("unknown finger")
	ErrUnknownBone          = errors.New("unknown bone")
	ErrUnknownParent        = errors.New("unknown parent joint")
	ErrJointOrder           = errors.New("joint table is not in depth-first order")
)

// DefaultFrameRate is the nominal tracker frame rate in Hz.
const DefaultFrameRate = 120.0

// JointSpec is one row of the static hierarchy table.
type JointSpec struct {
	Name   string
	Parent string
}

// RightHandJoints is the recorded hierarchy: a root at the sensor origin, the
// elbow, the wrist and four segments plus an end effector per finger. The
// thumb has no metacarpal joint.
var RightHandJoints = buildRightHand()

func buildRightHand() []JointSpec {
	specs := []JointSpec{
		{Name: "Root"},
		{Name: LimbRootJoint, Parent: "Root"},
		{Name: HandJoint, Parent: LimbRootJoint},
	}
	for _, finger := range []string{"Thumb", "Index", "Middle", "Ring", "Pinky"} {
		first := 1
		if finger == "Thumb" {
			first = 2
		}
		parent := HandJoint
		for seg := first; seg <= 4; seg++ {
			name := fmt.Sprintf("%s%s%d", FingerPrefix, finger, seg)
			specs = append(specs, JointSpec{Name: name, Parent: parent})
			parent = name
		}
		specs = append(specs, JointSpec{Name: parent + EndMarker, Parent: parent})
	}
	return specs
}

// Config holds the options a skeleton is built from.
type Config struct {
	Mode          ChannelMode
	RotationOrder RotationOrder
	FrameRate     float64
	Joints        []JointSpec
}

// DefaultConfig returns the right-hand hierarchy in rotation mode.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeRotation,
		RotationOrder: DefaultRotationOrder,
		FrameRate:     DefaultFrameRate,
		Joints:        RightHandJoints,
	}
}

// Skeleton is an ordered joint hierarchy. Insertion order defines the
// column order of the motion table.
type Skeleton struct {
	Root          string
	FrameRate     float64
	RotationOrder RotationOrder
	Mode          ChannelMode

	joints map[string]*Joint
	order  []string
}

// New builds a skeleton from cfg. The first joint in the table is the root;
// every other joint must name a parent defined before it. The table must list
// joints depth-first, each subtree contiguous, so that column order matches
// the order of a hierarchy walk.
func New(cfg Config) (*Skeleton, error) {
	if _, err := ParseChannelMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if err := cfg.RotationOrder.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Joints) == 0 {
		return nil, errors.New("skeleton has no joints")
	}
	if cfg.Joints[0].Parent != "" {
		return nil, fmt.Errorf("root joint %q must not have a parent", cfg.Joints[0].Name)
	}

	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	s := &Skeleton{
		Root:          cfg.Joints[0].Name,
		FrameRate:     frameRate,
		RotationOrder: cfg.RotationOrder,
		Mode:          cfg.Mode,
		joints:        make(map[string]*Joint, len(cfg.Joints)),
		order:         make([]string, 0, len(cfg.Joints)),
	}

	// joints from the root down to the previous row
	var path []string
	for i, spec := range cfg.Joints {
		if _, dup := s.joints[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate joint %q", spec.Name)
		}
		isRoot := i == 0
		if !isRoot {
			parent, ok := s.joints[spec.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: %q (parent of %q)", ErrUnknownParent, spec.Parent, spec.Name)
			}
			parent.Children = append(parent.Children, spec.Name)
		}

		desc, err := describe(spec.Name, isRoot)
		if err != nil {
			return nil, err
		}

		j := &Joint{
			Name:       spec.Name,
			Parent:     spec.Parent,
			Descriptor: desc,
		}
		j.Channels = s.channelsFor(j)

		if !isRoot {
			for len(path) > 0 && path[len(path)-1] != spec.Parent {
				path = path[:len(path)-1]
			}
			if len(path) == 0 {
				return nil, fmt.Errorf("%w: %q follows a joint outside the subtree of %q",
					ErrJointOrder, spec.Name, spec.Parent)
			}
		}
		path = append(path, spec.Name)

		s.joints[spec.Name] = j
		s.order = append(s.order, spec.Name)
	}

	return s, nil
}

// channelsFor applies the channel setting: nothing for end effectors,
// position and rotation for the root or in position mode, otherwise rotation.
func (s *Skeleton) channelsFor(j *Joint) []Channel {
	if strings.Contains(j.Name, EndMarker) {
		return nil
	}
	rotation := s.RotationOrder.Channels()
	if s.Mode == ModePosition || j.Name == s.Root {
		return append(append([]Channel{}, PositionChannels...), rotation...)
	}
	return rotation
}

// Joint returns the named joint.
func (s *Skeleton) Joint(name string) (*Joint, bool) {
	j, ok := s.joints[name]
	return j, ok
}

// Joints returns all joints in insertion order.
func (s *Skeleton) Joints() []*Joint {
	joints := make([]*Joint, len(s.order))
	for i, name := range s.order {
		joints[i] = s.joints[name]
	}
	return joints
}

// Len returns the number of joints.
func (s *Skeleton) Len() int {
	return len(s.order)
}

// ColumnRef identifies one column of the motion table.
type ColumnRef struct {
	Joint   string
	Channel Channel
}

// Label is the column name "<joint>_<channel>".
func (c ColumnRef) Label() string {
	return c.Joint + "_" + string(c.Channel)
}

// Columns lists every recorded channel, joint by joint in insertion order.
func (s *Skeleton) Columns() []ColumnRef {
	var cols []ColumnRef
	for _, name := range s.order {
		for _, ch := range s.joints[name].Channels {
			cols = append(cols, ColumnRef{Joint: name, Channel: ch})
		}
	}
	return cols
}

// Labels returns the column labels in table order.
func (s *Skeleton) Labels() []string {
	cols := s.Columns()
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = c.Label()
	}
	return labels
}

// SetOffset records a joint's rest-pose offset.
func (s *Skeleton) SetOffset(name string, offset r3.Vector) error {
	j, ok := s.joints[name]
	if !ok {
		return fmt.Errorf("set offset: unknown joint %q", name)
	}
	j.Offset = offset
	return nil
}

// Specs returns the hierarchy table the skeleton was built from.
func (s *Skeleton) Specs() []JointSpec {
	specs := make([]JointSpec, len(s.order))
	for i, name := range s.order {
		specs[i] = JointSpec{Name: name, Parent: s.joints[name].Parent}
	}
	return specs
}
