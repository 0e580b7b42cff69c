package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jinzhu/copier"
	"github.com/spf13/cobra"

	"rig-solver/internal/batch"
	"rig-solver/internal/config"
	"rig-solver/internal/constraint"
	"rig-solver/internal/metrics"
	"rig-solver/internal/rig"
	"rig-solver/internal/rigfile"
	"rig-solver/internal/texture"
)

// load resolves the settings and reads the rig.
func (o *options) load(cmd *cobra.Command, rigPath string) (config.Config, *rig.Rig, error) {
	cfg, err := o.settings(rigPath)
	if err != nil {
		return cfg, nil, err
	}
	if err := o.setupLogging(cmd, cfg.LogLevel); err != nil {
		return cfg, nil, err
	}
	r, err := rigfile.Load(cfg.RigFile)
	if err != nil {
		return cfg, nil, err
	}
	r.SetLogger(o.log)
	r.Writeback = cfg.Writeback
	return cfg, r, nil
}

// preview builds the frame renderer of cfg.
func (o *options) preview(cfg config.Config) (*batch.Preview, error) {
	// OutputDir, Supersample, Perspective and Labels share their names
	p := &batch.Preview{}
	if err := copier.Copy(p, &cfg); err != nil {
		return nil, fmt.Errorf("preview settings: %w", err)
	}
	p.Size = cfg.RenderSize
	p.Yaw, p.Pitch = cfg.OrbitYaw, cfg.OrbitPitch
	if cfg.Background != "" {
		idx, err := texture.BuildIndex(cfg.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		p.Plates = texture.NewCache(idx)
		o.log.Info("background plates", "path", cfg.Background, "count", idx.Len())
	}
	return p, nil
}

// solveRange primes the write-backs on the first frame, then solves every
// frame in parallel with the stacks frozen.
func (o *options) solveRange(ctx context.Context, w io.Writer, cfg config.Config, r *rig.Rig, render func(*rig.Frame) (string, error), rec *metrics.Recorder) ([]batch.Result, error) {
	frames := cfg.Frames()
	if r.Writeback && len(frames) > 0 {
		f, err := r.Evaluate(ctx, frames[0])
		if err != nil {
			return nil, err
		}
		if f.Applied > 0 {
			o.log.Info("write-backs stored", "frame", f.Number, "count", f.Applied)
		}
	}
	writeback := r.Writeback
	r.Writeback = false
	defer func() { r.Writeback = writeback }()

	return batch.Run(ctx, batch.Config{
		Rig:      r,
		Frames:   frames,
		Workers:  cfg.Workers,
		Render:   render,
		Metrics:  rec,
		Progress: w,
	})
}

// report prints the run summary; it fails when any frame failed.
func report(w io.Writer, results []batch.Result, elapsed time.Duration) error {
	failed := batch.Failed(results)
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "Done in %.2fs\n", elapsed.Seconds())
	fmt.Fprintf(w, "Solved: %d/%d\n", len(results)-len(failed), len(results))
	if len(failed) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nFailed (%d):\n", len(failed))
	for i, res := range failed {
		if i == 20 {
			fmt.Fprintf(w, "  ... %d more\n", len(failed)-i)
			break
		}
		fmt.Fprintf(w, "  frame %g: %s\n", res.Frame, res.Error)
	}
	return fmt.Errorf("%d of %d frames failed", len(failed), len(results))
}

func newSolveCmd(o *options) *cobra.Command {
	var (
		manifest string
		save     string
		render   bool
	)
	cmd := &cobra.Command{
		Use:   "solve <rig>",
		Short: "Solve a frame range and write a manifest of world matrices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, r, err := o.load(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var renderFn func(*rig.Frame) (string, error)
			if render {
				p, err := o.preview(cfg)
				if err != nil {
					return err
				}
				renderFn = p.Render
			}

			frames := cfg.Frames()
			fmt.Fprintf(out, "Rig: %s\n", cfg.RigFile)
			fmt.Fprintf(out, "Frames: %d (%d-%d), Workers: %d\n", len(frames), cfg.FrameStart, cfg.FrameEnd, cfg.Workers)
			fmt.Fprintln(out, "------------------------------------------------------------")

			start := time.Now()
			results, err := o.solveRange(cmd.Context(), out, cfg, r, renderFn, nil)
			if err != nil {
				return err
			}
			runErr := report(out, results, time.Since(start))

			if manifest == "" {
				manifest = filepath.Join(cfg.OutputDir, "manifest.json")
			}
			if err := ensureDir(filepath.Dir(manifest)); err != nil {
				return err
			}
			if err := batch.WriteManifest(manifest, batch.NewManifest(cfg.RigFile, start, results)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Manifest: %s\n", manifest)

			if save != "" {
				if err := rigfile.Save(save, r); err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved: %s\n", save)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&o.frames, "frames", "f", "", "frame range a:b or a single frame")
	cmd.Flags().StringVar(&manifest, "out", "", "manifest path (default: <output>/manifest.json)")
	cmd.Flags().StringVar(&save, "save", "", "write the rig, with stored write-backs, to this file")
	cmd.Flags().BoolVar(&render, "render", false, "also render a WebP preview of every frame")
	return cmd
}

func newRenderCmd(o *options) *cobra.Command {
	var frame int
	cmd := &cobra.Command{
		Use:   "render <rig>",
		Short: "Render WebP previews of solved frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("frame") {
				o.frames = fmt.Sprint(frame)
			}
			cfg, r, err := o.load(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := o.preview(cfg)
			if err != nil {
				return err
			}
			start := time.Now()
			results, err := o.solveRange(cmd.Context(), cmd.OutOrStdout(), cfg, r, p.Render, nil)
			if err != nil {
				return err
			}
			for _, res := range results {
				if res.Success {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", filepath.Join(cfg.OutputDir, res.Image))
				}
			}
			return report(cmd.OutOrStdout(), results, time.Since(start))
		},
	}
	cmd.Flags().IntVar(&frame, "frame", 1, "frame to render")
	cmd.Flags().StringVarP(&o.frames, "frames", "f", "", "frame range a:b")
	cmd.Flags().IntVar(&o.size, "size", 0, "output edge in pixels (default: 512)")
	return cmd
}

// stackDump is the inspect view of one object.
type stackDump struct {
	Matrix      [16]float64
	Constraints []constraintDump
	Bones       map[string][]constraintDump
}

type constraintDump struct {
	Name      string
	Type      string
	Influence float64
	Muted     bool
	OwnSpace  string
	TarSpace  string
	Data      any
}

func dumpList(l constraint.List) []constraintDump {
	out := make([]constraintDump, len(l))
	for i, c := range l {
		out[i] = constraintDump{
			Name:      c.Name,
			Type:      c.Type.Key(),
			Influence: c.Enforce,
			Muted:     c.Muted(),
			OwnSpace:  c.OwnSpace.String(),
			TarSpace:  c.TarSpace.String(),
			Data:      c.Data,
		}
	}
	return out
}

func newInspectCmd(o *options) *cobra.Command {
	var (
		frame float64
		depth int
	)
	cmd := &cobra.Command{
		Use:   "inspect <rig>",
		Short: "Dump the constraint stacks and solved matrices of one frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, r, err := o.load(cmd, args[0])
			if err != nil {
				return err
			}
			f, err := r.Evaluate(cmd.Context(), frame)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(f.Scene.Objects))
			for _, ob := range f.Scene.Objects {
				names = append(names, ob.Name)
			}
			sort.Strings(names)

			dumper := spew.ConfigState{
				Indent:                  "  ",
				MaxDepth:                depth,
				DisablePointerAddresses: true,
				DisableCapacities:       true,
				SortKeys:                true,
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frame %g: %d objects, %d write-backs\n", f.Number, len(names), f.Applied)
			for _, name := range names {
				d := stackDump{Matrix: f.Matrices[name]}
				if st := f.Stacks[name]; st != nil {
					d.Constraints = dumpList(st.Object)
					if len(st.Bones) > 0 {
						d.Bones = make(map[string][]constraintDump, len(st.Bones))
						for bone, l := range st.Bones {
							d.Bones[bone] = dumpList(l)
						}
					}
				}
				fmt.Fprintf(out, "== %s\n", name)
				dumper.Fdump(out, d)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&frame, "frame", 1, "frame to evaluate")
	cmd.Flags().IntVar(&depth, "depth", 5, "maximum nesting depth of the dump")
	return cmd
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered constraint types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, ti := range constraint.Types() {
				if ti.Type() == constraint.TypeNull {
					continue
				}
				fmt.Fprintf(out, "%-22s %-24s %s\n", ti.Type().Key(), ti.Name(), ti.StructName())
			}
			return nil
		},
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
