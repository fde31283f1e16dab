package kinematics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/handmocap/internal/sensor"
)

// basisMatrix arranges the basis vectors as the columns of a 3x3 matrix.
func basisMatrix(b sensor.Basis) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		b.X.X, b.Y.X, b.Z.X,
		b.X.Y, b.Y.Y, b.Z.Y,
		b.X.Z, b.Y.Z, b.Z.Z,
	})
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// mirrorZ converts between right- and left-handed frames by negating Z.
var mirrorZ = mat.NewDense(3, 3, []float64{
	1, 0, 0,
	0, 1, 0,
	0, 0, -1,
})

// conjugate returns s·m·s.
func conjugate(m, s mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Product(s, m, s)
	return &out
}

// sinceCalibration returns b·b0ᵗ, the rotation a segment has undergone since
// the calibration pose.
func sinceCalibration(b, b0 mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(b, b0.T())
	return &out
}

// relativeRotation computes (b·b0ᵗ)·(bp·b0pᵗ)ᵗ: the joint's rotation since
// calibration with its parent's rotation since calibration removed.
func relativeRotation(b, b0, bp, b0p mat.Matrix) *mat.Dense {
	joint := sinceCalibration(b, b0)
	parent := sinceCalibration(bp, b0p)

	var out mat.Dense
	out.Mul(joint, parent.T())
	return &out
}

// nearestRotation projects m onto SO(3) using its singular value
// decomposition: R = U·Vᵗ, with the sign of U's last column flipped when the
// result would be a reflection.
func nearestRotation(m mat.Matrix) *mat.Dense {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return mat.DenseCopyOf(m)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	return &r
}

// orthonormalityError is the largest absolute entry of mᵗ·m − I.
func orthonormalityError(m mat.Matrix) float64 {
	var g mat.Dense
	g.Mul(m.T(), m)
	g.Sub(&g, identity())

	var worst float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if v := g.At(i, j); v > worst {
				worst = v
			} else if -v > worst {
				worst = -v
			}
		}
	}
	return worst
}
