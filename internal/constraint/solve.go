package constraint

import "rig-solver/internal/mathutil"

// Solve runs every constraint of l on cob.Matrix in order. ctime is the
// evaluation time handed to target resolution.
//
// Each constraint sees the owner in its own space and its targets in the
// target space; the result is converted back to world space and blended
// with the matrix before the constraint by its influence.
func Solve(l List, cob *EvalContext, ctime float64) {
	if cob == nil {
		return
	}
	for i, c := range l {
		ti := c.TypeInfo()
		if ti == nil {
			continue
		}
		if c.Flag&(FlagDisable|FlagOff) != 0 {
			continue
		}
		ev, ok := ti.(Evaluator)
		if !ok {
			continue
		}
		if c.Enforce == 0 {
			continue
		}
		enf := c.Enforce
		cob.index = i

		initCustomSpace(cob, c)
		old := cob.Matrix

		cob.Matrix = ConvertSpace(cob, cob.Ob, cob.PChan, cob.Matrix, SpaceWorld, c.OwnSpace, false)

		targets := targetsForSolving(ti, c, cob, ctime)
		ev.Evaluate(c, cob, targets)

		// evaluators may have altered the records; nothing is copied back
		if tf, ok := ti.(TargetFlusher); ok {
			tf.FlushTargets(c, targets, true)
		}

		if c.Flag&FlagSpaceOnce == 0 {
			cob.Matrix = ConvertSpace(cob, cob.Ob, cob.PChan, cob.Matrix, c.OwnSpace, SpaceWorld, false)
		}

		// blend in world space
		if enf < 1 {
			cob.Matrix = mathutil.Mat4Interp(old, cob.Matrix, enf)
		}

		Logger().Debug("constraint solved", "name", c.Name, "type", c.Type.Key(), "influence", enf)
	}
}
