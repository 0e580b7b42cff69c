package scene

import "rig-solver/internal/mathutil"

// Lattice is a deformation cage; only its evaluated points matter here.
type Lattice struct {
	Name   string
	Points []mathutil.Vec3
	Groups map[string][]float64
}

// GroupCentroid averages the points with a positive weight in group. ok is
// false when the group is missing or empty.
func (lt *Lattice) GroupCentroid(group string) (mathutil.Vec3, bool) {
	weights, ok := lt.Groups[group]
	if !ok {
		return mathutil.Vec3{}, false
	}
	var sum mathutil.Vec3
	n := 0
	for i, p := range lt.Points {
		if i < len(weights) && weights[i] > 0 {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return sum, false
	}
	return sum.Scale(1 / float64(n)), true
}
