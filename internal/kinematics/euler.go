package kinematics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handmocap/internal/skeleton"
)

// Euler holds one angle per axis. Units depend on the producer; the solver
// reports degrees.
type Euler struct {
	X, Y, Z float64
}

// Get returns the angle about a.
func (e Euler) Get(a skeleton.Axis) float64 {
	switch a {
	case skeleton.AxisX:
		return e.X
	case skeleton.AxisY:
		return e.Y
	}
	return e.Z
}

func (e *Euler) set(a skeleton.Axis, v float64) {
	switch a {
	case skeleton.AxisX:
		e.X = v
	case skeleton.AxisY:
		e.Y = v
	default:
		e.Z = v
	}
}

// Degrees converts radians to degrees.
func (e Euler) Degrees() Euler {
	const k = 180 / math.Pi
	return Euler{X: e.X * k, Y: e.Y * k, Z: e.Z * k}
}

// Radians converts degrees to radians.
func (e Euler) Radians() Euler {
	const k = math.Pi / 180
	return Euler{X: e.X * k, Y: e.Y * k, Z: e.Z * k}
}

// gimbalEpsilon is the smallest |cos| of the middle angle for which the
// first and last axes are still treated as distinct.
const gimbalEpsilon = 1e-12

// Decompose splits a rotation matrix into angles (radians) such that
// r = R_a(θa)·R_b(θb)·R_c(θc) for order (a, b, c). At gimbal lock the last
// angle is reported as zero.
func Decompose(r mat.Matrix, order skeleton.RotationOrder) Euler {
	i, j, k := int(order[0]), int(order[1]), int(order[2])

	// +1 for cyclic orders (XYZ, YZX, ZXY), -1 for the others
	parity := 1.0
	if (j-i+3)%3 != 1 {
		parity = -1
	}

	sinMiddle := parity * r.At(i, k)
	sinMiddle = math.Max(-1, math.Min(1, sinMiddle))
	cosMiddle := math.Hypot(r.At(i, i), r.At(i, j))
	middle := math.Atan2(sinMiddle, cosMiddle)

	var first, last float64
	if cosMiddle > gimbalEpsilon {
		first = math.Atan2(-parity*r.At(j, k), r.At(k, k))
		// Row j of R_a(first)ᵗ·r is (p·sin, cos, 0) of the last angle and
		// keeps full precision near the lock.
		s1, c1 := math.Sincos(first)
		last = math.Atan2(
			parity*(c1*r.At(j, i)+parity*s1*r.At(k, i)),
			c1*r.At(j, j)+parity*s1*r.At(k, j),
		)
	} else {
		first = math.Atan2(sinMiddle*r.At(j, i), r.At(j, j))
	}

	var e Euler
	e.set(order[0], first)
	e.set(order[1], middle)
	e.set(order[2], last)
	return e
}

// Compose builds R_a(θa)·R_b(θb)·R_c(θc) from angles in radians.
func Compose(e Euler, order skeleton.RotationOrder) *mat.Dense {
	out := identity()
	for _, a := range order {
		var next mat.Dense
		next.Mul(out, axisRotation(a, e.Get(a)))
		out = &next
	}
	return out
}

func axisRotation(a skeleton.Axis, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	switch a {
	case skeleton.AxisX:
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, c, -s,
			0, s, c,
		})
	case skeleton.AxisY:
		return mat.NewDense(3, 3, []float64{
			c, 0, s,
			0, 1, 0,
			-s, 0, c,
		})
	}
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}
