package constraint

import (
	"rig-solver/internal/mathutil"
	"rig-solver/internal/scene"
)

// TransformCacheData replaces the owner matrix with a baked transform read
// from a cache file.
type TransformCacheData struct {
	CacheFile  *scene.CacheFile `yaml:"-"`
	ObjectPath string           `yaml:"object_path"`

	reader     scene.CacheReader
	readerPath string
}

type transformCacheType struct{ typeBase }

func (transformCacheType) NewData() any { return &TransformCacheData{} }

func (transformCacheType) LoopIDs(c *Constraint, fn IDFunc) {
	d := c.Data.(*TransformCacheData)
	fn(c, cacheFileRef("cache_file", &d.CacheFile), true)
}

// CopyData shares the cache file but never the open reader.
func (transformCacheType) CopyData(dst, _ *Constraint) {
	d := dst.Data.(*TransformCacheData)
	d.reader = nil
	d.readerPath = ""
}

func (transformCacheType) FreeData(c *Constraint) {
	d := c.Data.(*TransformCacheData)
	d.closeReader()
}

func (d *TransformCacheData) closeReader() {
	if d.reader == nil {
		return
	}
	if err := d.reader.Close(); err != nil {
		Logger().Warn("constraint: close cache reader", "path", d.readerPath, "err", err)
	}
	d.reader = nil
	d.readerPath = ""
}

// open returns a reader for ObjectPath, reopening it when the path changed.
func (d *TransformCacheData) open() scene.CacheReader {
	if d.reader != nil && d.readerPath == d.ObjectPath {
		return d.reader
	}
	d.closeReader()
	r, err := d.CacheFile.OpenReader(d.ObjectPath)
	if err != nil {
		Logger().Warn("constraint: open cache reader", "cache_file", d.CacheFile.Name, "err", err)
		return nil
	}
	d.reader = r
	d.readerPath = d.ObjectPath
	return r
}

func (transformCacheType) Evaluate(c *Constraint, cob *EvalContext, _ []*Target) {
	d := c.Data.(*TransformCacheData)
	if d.CacheFile == nil {
		return
	}
	fps := 24.0
	if cob.Scene != nil && cob.Scene.FPS > 0 {
		fps = cob.Scene.FPS
	}
	time := d.CacheFile.TimeOffset(cob.frame(), fps)

	r := d.open()
	if r == nil {
		return
	}
	mat, ok := r.ReadMatrix(time)
	if !ok {
		return
	}
	if s := d.CacheFile.Scale; s != 0 && s != 1 {
		mat = mathutil.Mat4Mul(mat, mathutil.LocRotSizeToMat4(mathutil.Vec3{}, mathutil.Mat3Identity(), mathutil.Vec3{s, s, s}))
	}
	cob.Matrix = mat
}
