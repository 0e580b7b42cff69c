package mathutil

import "math"

// DualQuat is a rigid transform as a dual quaternion, with an optional
// scale matrix carried alongside for transforms that are not rigid.
type DualQuat struct {
	Quat        Quat
	Trans       Quat
	Scale       Mat4
	ScaleWeight float64
}

// Mat4ToDQuat converts mat, applied on top of the rest frame basemat, to a
// dual quaternion. Scale and shear are split off into Scale.
func Mat4ToDQuat(basemat, mat Mat4) DualQuat {
	var dq DualQuat

	baseRS := Mat4Mul(mat, basemat)
	dscale := baseRS.Size().Sub(Vec3{1, 1, 1})

	var r Mat4
	if !mat.IsOrthonormal() || mat.Det() < 0 || dscale.LenSq() > 1e-8 {
		// extra orthogonalize to avoid flipping with stretched bones
		tmp := baseRS.Orthogonalize(1)
		baseR := QuatToMat4(Mat3ToQuat(tmp.Mat3()))
		baseR.SetTranslation(baseRS.Translation())

		baseInv := basemat.Inverse()
		r = Mat4Mul(baseR, baseInv)
		s := Mat4Mul(baseR.Inverse(), baseRS)

		dq.Scale = Mat4MulSeries(basemat, s, baseInv)
		dq.ScaleWeight = 1
	} else {
		r = mat
	}

	dq.Quat = Mat3ToQuat(r.Mat3())

	t := r.Translation()
	x, y, z, w := dq.Quat[0], dq.Quat[1], dq.Quat[2], dq.Quat[3]
	dq.Trans = Quat{
		0.5 * (t[0]*w + t[1]*z - t[2]*y),
		0.5 * (-t[0]*z + t[1]*w + t[2]*x),
		0.5 * (t[0]*y - t[1]*x + t[2]*w),
		-0.5 * (t[0]*x + t[1]*y + t[2]*z),
	}
	return dq
}

// ToMat4 converts back to a matrix, normalizing the rotation part.
func (dq DualQuat) ToMat4() Mat4 {
	l := dq.Quat.Len()
	if l != 0 {
		l = 1 / l
	}
	q := dq.Quat.Scale(l)
	r := QuatToMat4(q)

	qx, qy, qz, qw := q[0], q[1], q[2], q[3]
	tx, ty, tz, tw := dq.Trans[0], dq.Trans[1], dq.Trans[2], dq.Trans[3]
	r.SetTranslation(Vec3{
		2 * (-tw*qx + tx*qw - ty*qz + tz*qy) * l,
		2 * (-tw*qy + tx*qz + ty*qw - tz*qx) * l,
		2 * (-tw*qz - tx*qy + ty*qx + tz*qw) * l,
	})

	if dq.ScaleWeight != 0 {
		r = Mat4Mul(r, dq.Scale)
	}
	return r
}

// AddWeighted accumulates weight × src into dq, flipping src onto the same
// hemisphere so rotations blend along the short arc.
func (dq *DualQuat) AddWeighted(src DualQuat, weight float64) {
	flipped := false
	if src.Quat.Dot(dq.Quat) < 0 {
		flipped = true
		weight = -weight
	}

	dq.Quat = dq.Quat.Add(src.Quat.Scale(weight))
	dq.Trans = dq.Trans.Add(src.Trans.Scale(weight))

	if src.ScaleWeight != 0 {
		if flipped {
			weight = -weight
		}
		dq.Scale = dq.Scale.Add(src.Scale.ScaleBy(weight))
		dq.ScaleWeight += weight
	}
}

// AddWeightedPivot is AddWeighted with the scale part re-centred on pivot,
// so scaling happens around the pivot rather than the origin.
func (dq *DualQuat) AddWeightedPivot(src DualQuat, pivot Vec3, weight float64) {
	if src.ScaleWeight == 0 {
		dq.AddWeighted(src, weight)
		return
	}

	dst := src.Scale.MulPoint(pivot).Sub(pivot)
	qx, qy, qz, qw := src.Quat[0], src.Quat[1], src.Quat[2], src.Quat[3]

	src.Trans[3] -= 0.5 * (qx*dst[0] + qy*dst[1] + qz*dst[2])
	src.Trans[0] += 0.5 * (qw*dst[0] + qy*dst[2] - qz*dst[1])
	src.Trans[1] += 0.5 * (qw*dst[1] + qz*dst[0] - qx*dst[2])
	src.Trans[2] += 0.5 * (qw*dst[2] + qx*dst[1] - qy*dst[0])

	src.Scale.SetTranslation(src.Scale.Translation().Sub(dst))
	dq.AddWeighted(src, weight)
}

// Normalize divides the accumulated sum by totweight. Contributions that
// carried no scale are filled in with identity scale.
func (dq *DualQuat) Normalize(totweight float64) {
	s := 1 / totweight
	dq.Quat = dq.Quat.Scale(s)
	dq.Trans = dq.Trans.Scale(s)

	if dq.ScaleWeight != 0 {
		if add := totweight - dq.ScaleWeight; add != 0 {
			dq.Scale[0] += add
			dq.Scale[5] += add
			dq.Scale[10] += add
			dq.Scale[15] += add
		}
		dq.Scale = dq.Scale.ScaleBy(s)
		dq.ScaleWeight = 1
	}
}

// IsFinite reports whether every component is a finite number.
func (dq DualQuat) IsFinite() bool {
	for i := 0; i < 4; i++ {
		if math.IsNaN(dq.Quat[i]) || math.IsInf(dq.Quat[i], 0) ||
			math.IsNaN(dq.Trans[i]) || math.IsInf(dq.Trans[i], 0) {
			return false
		}
	}
	return true
}
