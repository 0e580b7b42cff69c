package scene

import (
	"fmt"
	"sort"

	"rig-solver/internal/mathutil"
)

// CacheSample is a baked transform at a time in seconds.
type CacheSample struct {
	Time float64
	Mat  mathutil.Mat4
}

// CacheFile is a baked transform archive, keyed by object path.
type CacheFile struct {
	Name          string
	Filepath      string
	Scale         float64
	FrameOffset   float64
	OverrideFrame bool
	Frame         float64
	IsSequence    bool

	Paths map[string][]CacheSample // sorted by time
}

func (c *CacheFile) IDName() string { return c.Name }

// CacheReader reads transforms for one object path.
type CacheReader interface {
	ReadMatrix(time float64) (mathutil.Mat4, bool)
	Close() error
}

// TimeOffset converts a scene frame to archive time.
func (c *CacheFile) TimeOffset(frame, fps float64) float64 {
	if c.OverrideFrame {
		frame = c.Frame
	}
	if c.IsSequence {
		return frame
	}
	return frame/fps - c.FrameOffset/fps
}

// OpenReader opens a reader for the samples stored under path.
func (c *CacheFile) OpenReader(path string) (CacheReader, error) {
	samples, ok := c.Paths[path]
	if !ok {
		return nil, fmt.Errorf("scene: cache file %s: no object path %q", c.Name, path)
	}
	return &tableReader{samples: samples}, nil
}

// tableReader interpolates between stored samples.
type tableReader struct {
	samples []CacheSample
}

func (r *tableReader) ReadMatrix(time float64) (mathutil.Mat4, bool) {
	n := len(r.samples)
	if r.samples == nil || n == 0 {
		return mathutil.Mat4Identity(), false
	}
	i := sort.Search(n, func(i int) bool { return r.samples[i].Time > time })
	switch {
	case i == 0:
		return r.samples[0].Mat, true
	case i == n:
		return r.samples[n-1].Mat, true
	}
	a, b := r.samples[i-1], r.samples[i]
	if b.Time == a.Time {
		return a.Mat, true
	}
	return mathutil.Mat4Interp(a.Mat, b.Mat, (time-a.Time)/(b.Time-a.Time)), true
}

func (r *tableReader) Close() error {
	r.samples = nil
	return nil
}
