package mathutil

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func assertMat3Near(t *testing.T, want, got Mat3, eps float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], eps, "want %s got %s", spew.Sdump(want), spew.Sdump(got))
}

func assertMat4Near(t *testing.T, want, got Mat4, eps float64) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], eps, "want %s got %s", spew.Sdump(want), spew.Sdump(got))
}

var allOrders = []RotOrder{EulerXYZ, EulerXZY, EulerYXZ, EulerYZX, EulerZXY, EulerZYX}

// TestEulOToMat3_XYZMatchesAxisProduct checks XYZ applies X first, then Y, then Z.
func TestEulOToMat3_XYZMatchesAxisProduct(t *testing.T) {
	e := Vec3{0.3, -0.7, 1.1}
	want := Mat3Mul(Mat3Mul(RotZ(e[2]), RotY(e[1])), RotX(e[0]))
	assertMat3Near(t, want, EulOToMat3(e, EulerXYZ), tol)
}

// TestEulOToMat3_ZYXMatchesAxisProduct checks the reversed order.
func TestEulOToMat3_ZYXMatchesAxisProduct(t *testing.T) {
	e := Vec3{0.3, -0.7, 1.1}
	want := Mat3Mul(Mat3Mul(RotX(e[0]), RotY(e[1])), RotZ(e[2]))
	assertMat3Near(t, want, EulOToMat3(e, EulerZYX), tol)
}

// TestEulerRoundTrip_AllOrders converts to a matrix and back for every order.
func TestEulerRoundTrip_AllOrders(t *testing.T) {
	e := Vec3{0.3, -0.4, 0.5}
	for _, o := range allOrders {
		t.Run(o.String(), func(t *testing.T) {
			got := Mat3ToEulO(EulOToMat3(e, o), o)
			assert.InDeltaSlice(t, e[:], got[:], 1e-9)
		})
	}
}

// TestEulOToQuat_MatchesMatrix verifies quaternion and matrix conversions agree.
func TestEulOToQuat_MatchesMatrix(t *testing.T) {
	e := Vec3{0.9, 0.2, -1.3}
	for _, o := range allOrders {
		t.Run(o.String(), func(t *testing.T) {
			assertMat3Near(t, EulOToMat3(e, o), QuatToMat3(EulOToQuat(e, o)), 1e-9)
		})
	}
}

// TestEulerToQuat_IsXYZ keeps the legacy XYZ helper consistent with the ordered form.
func TestEulerToQuat_IsXYZ(t *testing.T) {
	e := Vec3{0.1, 0.2, 0.3}
	a := EulerToQuat(e[0], e[1], e[2])
	b := EulOToQuat(e, EulerXYZ)
	assert.InDeltaSlice(t, a[:], b[:], tol)
}

// TestRotOrder_OutOfRangeIsXYZ covers quaternion and axis-angle rotation modes.
func TestRotOrder_OutOfRangeIsXYZ(t *testing.T) {
	e := Vec3{0.4, 0.5, 0.6}
	assertMat3Near(t, EulOToMat3(e, EulerXYZ), EulOToMat3(e, 0), 0)
	assertMat3Near(t, EulOToMat3(e, EulerXYZ), EulOToMat3(e, -1), 0)
	assert.Equal(t, "XYZ", RotOrder(0).String())

	o, ok := ParseRotOrder("YZX")
	require.True(t, ok)
	assert.Equal(t, EulerYZX, o)
}

// TestCompatibleEul_WrapsWholeTurns keeps a new solution near the previous frame.
func TestCompatibleEul_WrapsWholeTurns(t *testing.T) {
	old := Vec3{6.2, 0, 0}
	got := CompatibleEul(Vec3{-0.05, 0, 0}, old)
	assert.InDelta(t, 2*math.Pi-0.05, got[0], tol)

	got = Mat3ToCompatibleEulO(RotX(-0.05), old, EulerXYZ)
	assert.InDelta(t, 2*math.Pi-0.05, got[0], 1e-9)
}

// TestRotateEulO_AppliesLocalAxis checks the extra rotation composes after the base.
func TestRotateEulO_AppliesLocalAxis(t *testing.T) {
	base := Vec3{0.2, 0, 0}
	got := RotateEulO(base, EulerXYZ, 0, 0.3)
	assert.InDelta(t, 0.5, got[0], tol)
	assert.InDelta(t, 0, got[1], tol)
}

// TestMat3ToQuat_RoundTrip covers all four branches of the conversion.
func TestMat3ToQuat_RoundTrip(t *testing.T) {
	cases := map[string]Mat3{
		"identity": Mat3Identity(),
		"x180":     RotX(math.Pi),
		"y180":     RotY(math.Pi),
		"z180":     RotZ(math.Pi),
		"mixed":    EulOToMat3(Vec3{2.5, -0.3, 1.9}, EulerXYZ),
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			q := Mat3ToQuat(m)
			assert.InDelta(t, 1, q.Len(), tol)
			assert.GreaterOrEqual(t, q.W(), 0.0)
			assertMat3Near(t, m, QuatToMat3(q), 1e-9)
		})
	}
}

// TestMat3ToQuat_IgnoresScale normalizes before converting.
func TestMat3ToQuat_IgnoresScale(t *testing.T) {
	r := RotZ(0.7)
	q := Mat3ToQuat(Mat3Mul(r, Mat3Diag(2, 3, 4)))
	assertMat3Near(t, r, QuatToMat3(q), 1e-9)
}

// TestAxisAngle_RoundTrip converts through axis-angle.
func TestAxisAngle_RoundTrip(t *testing.T) {
	axis := Vec3{1, 2, 3}.Normalize()
	m := AxisAngleToMat3(axis, 1.2)
	assertMat3Near(t, QuatToMat3(AxisAngleToQuat(axis, 1.2)), m, 1e-12)

	gotAxis, angle := Mat3ToAxisAngle(m)
	assert.InDelta(t, 1.2, angle, 1e-9)
	assert.InDeltaSlice(t, axis[:], gotAxis[:], 1e-9)

	assertMat3Near(t, Mat3Identity(), AxisAngleToMat3(Vec3{}, 1), 0)
	zeroAxis, zeroAngle := QuatToAxisAngle(QuatIdentity())
	assert.Equal(t, AxisY, zeroAxis)
	assert.Equal(t, 0.0, zeroAngle)
}

// TestQuatSlerp_Endpoints interpolates along the short arc.
func TestQuatSlerp_Endpoints(t *testing.T) {
	a := AxisAngleToQuat(AxisZ, 0)
	b := AxisAngleToQuat(AxisZ, math.Pi/2)
	mid := QuatSlerp(a, b, 0.5)
	assertMat3Near(t, RotZ(math.Pi/4), QuatToMat3(mid), 1e-9)

	// b on the far hemisphere interpolates the same way
	mid2 := QuatSlerp(a, b.Scale(-1), 0.5)
	assertMat3Near(t, RotZ(math.Pi/4), QuatToMat3(mid2), 1e-9)
}

// TestVecToQuat_PointsTrackAxis checks the positive track axes follow the vector.
func TestVecToQuat_PointsTrackAxis(t *testing.T) {
	v := Vec3{1, 2, -0.5}
	for axis := 3; axis < 6; axis++ {
		for up := 0; up < 3; up++ {
			if axis-3 == up {
				continue
			}
			m := QuatToMat3(VecToQuat(v, axis, up))
			got := m.Axis(axis - 3)
			want := v.Normalize()
			assert.InDeltaSlice(t, want[:], got[:], 1e-9, "axis %d up %d", axis, up)
		}
	}
	// the non-negated axes point away from the vector
	m := QuatToMat3(VecToQuat(v, 1, 2))
	want := v.Normalize().Neg()
	got := m.Axis(1)
	assert.InDeltaSlice(t, want[:], got[:], 1e-9)
}

// TestQuatApplyTrack_KeepsUnitLength is a smoke check over the whole table.
func TestQuatApplyTrack_KeepsUnitLength(t *testing.T) {
	q := AxisAngleToQuat(Vec3{1, 1, 0}, 0.8)
	for axis := 0; axis < 6; axis++ {
		for up := 0; up < 3; up++ {
			assert.InDelta(t, 1, QuatApplyTrack(q, axis, up).Len(), 1e-12)
		}
	}
}

// TestMat4Inverse_RoundTrip inverts an affine matrix with shear.
func TestMat4Inverse_RoundTrip(t *testing.T) {
	m := FromMat3Translation(Mat3{1, 0.2, 0, 0, 2, 0.1, 0.3, 0, 0.5}, Vec3{4, -2, 7})
	inv, ok := m.InverseOK()
	require.True(t, ok)
	assertMat4Near(t, Mat4Identity(), Mat4Mul(m, inv), 1e-12)

	_, ok = Mat4{}.InverseOK()
	assert.False(t, ok)
	assert.True(t, Mat4{}.Inverse().IsIdentity())
}

// TestLocRotSize_NegativeScale flips both rotation and scale.
func TestLocRotSize_NegativeScale(t *testing.T) {
	m := LocRotSizeToMat4(Vec3{1, 2, 3}, RotZ(0.4), Vec3{-2, -2, -2})
	loc, rot, size := m.LocRotSize()
	assert.Equal(t, Vec3{1, 2, 3}, loc)
	assert.InDeltaSlice(t, []float64{-2, -2, -2}, size[:], tol)
	assertMat3Near(t, RotZ(0.4), rot, tol)
	assertMat4Near(t, m, LocRotSizeToMat4(loc, rot, size), tol)
}

// TestOrthogonalizeStable_RemovesShear keeps the primary axis and determinant sign.
func TestOrthogonalizeStable_RemovesShear(t *testing.T) {
	m := Mat3FromAxes(Vec3{1, 0.4, 0}, Vec3{0.3, 2, 0}, Vec3{0, 0.2, -1.5})
	for axis := 0; axis < 3; axis++ {
		for _, normalize := range []bool{false, true} {
			got := m.OrthogonalizeStable(axis, normalize)
			assert.InDelta(t, 0, got.Axis(0).Dot(got.Axis(1)), 1e-9)
			assert.InDelta(t, 0, got.Axis(0).Dot(got.Axis(2)), 1e-9)
			assert.InDelta(t, 0, got.Axis(1).Dot(got.Axis(2)), 1e-9)
			assert.True(t, got.IsNegative())
			p := m.Axis(axis).Normalize()
			gp := got.Axis(axis).Normalize()
			assert.InDeltaSlice(t, p[:], gp[:], 1e-9)
			if normalize {
				assert.True(t, got.IsOrthonormal())
			}
		}
	}
}

// TestOrthogonalize_KeepsSizes rebuilds a right-handed frame with the original lengths.
func TestOrthogonalize_KeepsSizes(t *testing.T) {
	m := Mat3FromAxes(Vec3{2, 0.1, 0}, Vec3{0.5, 3, 0}, Vec3{0, 0, 4})
	for axis := 0; axis < 3; axis++ {
		got := m.Orthogonalize(axis)
		s := m.Size()
		gs := got.Size()
		assert.InDeltaSlice(t, s[:], gs[:], 1e-9)
		assert.True(t, got.Normalized().IsOrthonormal())
		assert.Greater(t, got.Det(), 0.0)
	}
}

// TestMat4Interp_Endpoints reproduces both inputs and blends translation linearly.
func TestMat4Interp_Endpoints(t *testing.T) {
	a := LocRotSizeToMat4(Vec3{0, 0, 0}, RotX(0.2), Vec3{1, 2, 1})
	b := LocRotSizeToMat4(Vec3{4, 0, -2}, RotY(1.1), Vec3{1, 1, 3})

	assertMat4Near(t, a, Mat4Interp(a, b, 0), 1e-9)
	assertMat4Near(t, b, Mat4Interp(a, b, 1), 1e-9)

	mid := Mat4Interp(a, b, 0.5).Translation()
	assert.InDeltaSlice(t, []float64{2, 0, -1}, mid[:], 1e-12)
}

// TestMat4Interp_NegativeScale handles axis flips without producing NaN.
func TestMat4Interp_NegativeScale(t *testing.T) {
	a := LocRotSizeToMat4(Vec3{}, Mat3Identity(), Vec3{-1, 1, 1})
	b := Mat4Identity()
	mid := Mat4Interp(a, b, 0.5)
	for _, v := range mid {
		assert.False(t, math.IsNaN(v))
	}
	assertMat4Near(t, a, Mat4Interp(a, b, 0), 1e-9)
}

// TestMulAlignedScale_NoShear composes scale per axis.
func TestMulAlignedScale_NoShear(t *testing.T) {
	a := LocRotSizeToMat4(Vec3{1, 0, 0}, RotZ(math.Pi/4), Vec3{2, 1, 1})
	b := LocRotSizeToMat4(Vec3{0, 1, 0}, RotZ(math.Pi/4), Vec3{1, 3, 1})

	got := Mat4MulAlignedScale(a, b)
	s := got.Size()
	assert.InDeltaSlice(t, []float64{2, 3, 1}, s[:], 1e-9)
	n, _ := got.Normalized()
	assert.True(t, n.IsOrthonormal())
	want, loc := a.MulPoint(Vec3{0, 1, 0}), got.Translation()
	assert.InDeltaSlice(t, want[:], loc[:], 1e-12)

	split := Mat4MulSplitChannels(a, b).Translation()
	assert.InDeltaSlice(t, []float64{1, 1, 0}, split[:], 1e-12)
}

// TestDualQuat_RoundTrip converts rigid and scaled matrices.
func TestDualQuat_RoundTrip(t *testing.T) {
	rigid := LocRotSizeToMat4(Vec3{1, -2, 3}, EulOToMat3(Vec3{0.3, 0.2, 0.1}, EulerXYZ), Vec3{1, 1, 1})
	dq := Mat4ToDQuat(Mat4Identity(), rigid)
	assert.Equal(t, 0.0, dq.ScaleWeight)
	assertMat4Near(t, rigid, dq.ToMat4(), 1e-9)

	scaled := LocRotSizeToMat4(Vec3{1, -2, 3}, RotZ(0.5), Vec3{2, 1, 0.5})
	base := Mat4Translation(Vec3{0, 1, 0})
	dq = Mat4ToDQuat(base, scaled)
	assert.Equal(t, 1.0, dq.ScaleWeight)
	assertMat4Near(t, scaled, dq.ToMat4(), 1e-9)
}

// TestDualQuat_WeightedSum blends two rotations about the same axis.
func TestDualQuat_WeightedSum(t *testing.T) {
	a := Mat4ToDQuat(Mat4Identity(), FromMat3Translation(RotZ(0), Vec3{}))
	b := Mat4ToDQuat(Mat4Identity(), FromMat3Translation(RotZ(math.Pi/2), Vec3{}))

	var sum DualQuat
	sum.AddWeighted(a, 0.5)
	sum.AddWeighted(b, 0.5)
	sum.Normalize(1)

	got := sum.ToMat4()
	assertMat3Near(t, RotZ(math.Pi/4), got.Mat3(), 1e-9)
	assert.True(t, sum.IsFinite())
}

// TestDualQuat_PivotKeepsPivotFixed scales around the pivot.
func TestDualQuat_PivotKeepsPivotFixed(t *testing.T) {
	pivot := Vec3{0, 2, 0}
	m := Mat4Mul(Mat4Translation(pivot), Mat4Mul(LocRotSizeToMat4(Vec3{}, Mat3Identity(), Vec3{2, 2, 2}), Mat4Translation(pivot.Neg())))

	var sum DualQuat
	sum.AddWeightedPivot(Mat4ToDQuat(Mat4Identity(), m), pivot, 1)
	sum.Normalize(1)

	got := sum.ToMat4().MulPoint(pivot)
	assert.InDeltaSlice(t, pivot[:], got[:], 1e-9)
}

// TestAngleWrap maps into the half-open principal range.
func TestAngleWrap(t *testing.T) {
	assert.InDelta(t, 0.5, AngleWrap(0.5+4*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi, AngleWrap(math.Pi), 1e-12)
	assert.InDelta(t, 30, AngleDist(350, 20), 1e-12)
}

// TestVecRollToMat3_YFollowsVector covers the regular, near -Y and exact -Y branches.
func TestVecRollToMat3_YFollowsVector(t *testing.T) {
	for _, v := range []Vec3{{0, 1, 0}, {1, 2, 3}, {0.001, -1, 0.0005}, {0, -1, 0}} {
		m := VecRollToMat3(v, 0.4)
		y := m.Axis(1)
		n := v.Normalize()
		assert.InDeltaSlice(t, n[:], y[:], 1e-6, "vec %v", v)
		assert.True(t, m.IsOrthonormal(), "vec %v", v)
		assert.InDelta(t, 1, m.Det(), 1e-9, "vec %v", v)
	}
}

// TestVecRollToMat3_RollTwistsAroundY rolls the X axis inside the XZ plane.
func TestVecRollToMat3_RollTwistsAroundY(t *testing.T) {
	m0 := VecRollToMat3(AxisY, 0)
	assertMat3Near(t, Mat3Identity(), m0, 1e-12)

	m := VecRollToMat3(AxisY, math.Pi/2)
	assertMat3Near(t, RotY(math.Pi/2), m, 1e-12)
}
