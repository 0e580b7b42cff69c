// Package batch solves a frame range of a rig on a pool of workers.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rig-solver/internal/mathutil"
	"rig-solver/internal/metrics"
	"rig-solver/internal/rig"
)

// Config holds all shared resources for a batch run.
type Config struct {
	Rig     *rig.Rig
	Frames  []float64
	Workers int

	// Render, when set, turns a solved frame into an image and returns its
	// path relative to the output directory.
	Render func(f *rig.Frame) (string, error)

	Metrics  *metrics.Recorder
	Progress io.Writer // nil disables the progress line
	Interval time.Duration
}

// Result holds the outcome of solving one frame.
type Result struct {
	Frame    float64
	Success  bool
	Error    string
	Matrices map[string]mathutil.Mat4
	Applied  int
	Image    string
	Duration time.Duration
}

// Run solves every frame using a worker pool. A failing frame is recorded
// in its Result; only cancellation of ctx stops the run early.
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	total := len(cfg.Frames)
	results := make([]Result, total)
	var processed atomic.Int64

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	if cfg.Progress != nil {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						elapsed := time.Since(start).Seconds()
						rate := float64(p) / elapsed
						fmt.Fprintf(cfg.Progress, "  [%d/%d] %.1f frames/sec\n", p, total, rate)
					}
				}
			}
		}()
	}
	defer close(done)

	// Worker pool
	g, gctx := errgroup.WithContext(ctx)
	frameChan := make(chan int, workers*2)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range frameChan {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[idx] = solveFrame(gctx, cfg, cfg.Frames[idx])
				processed.Add(1)
			}
			return nil
		})
	}

	// Send work
	g.Go(func() error {
		defer close(frameChan)
		for i := range cfg.Frames {
			select {
			case frameChan <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch: %w", err)
	}
	return results, nil
}

func solveFrame(ctx context.Context, cfg Config, frame float64) Result {
	f, err := cfg.Rig.Evaluate(ctx, frame)
	if err != nil {
		cfg.Metrics.ObserveFailure()
		return Result{Frame: frame, Error: err.Error()}
	}
	cfg.Metrics.ObserveFrame(f.Duration, f.Evaluated, f.Applied)

	res := Result{
		Frame:    frame,
		Success:  true,
		Matrices: f.Matrices,
		Applied:  f.Applied,
		Duration: f.Duration,
	}
	if cfg.Render != nil {
		img, err := cfg.Render(f)
		if err != nil {
			res.Success = false
			res.Error = fmt.Sprintf("render: %v", err)
			return res
		}
		res.Image = img
	}
	return res
}

// Failed returns the unsuccessful results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}
