package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rig-solver/internal/metrics"
	"rig-solver/internal/rig"
	"rig-solver/internal/rigfile"
)

// settleDelay coalesces the burst of events an editor save produces.
const settleDelay = 200 * time.Millisecond

// serveMetrics exposes a fresh registry on addr until ctx ends.
func (o *options) serveMetrics(ctx context.Context, addr string) *metrics.Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	o.log.Info("serving metrics", "addr", addr, "path", "/metrics")
	return rec
}

func newWatchCmd(o *options) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "watch <rig>",
		Short: "Re-solve the frame range every time the rig file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, r, err := o.load(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var rec *metrics.Recorder
			if cfg.MetricsAddr != "" {
				rec = o.serveMetrics(ctx, cfg.MetricsAddr)
			}
			var renderFn func(*rig.Frame) (string, error)
			if render {
				p, err := o.preview(cfg)
				if err != nil {
					return err
				}
				renderFn = p.Render
			}

			solve := func(r *rig.Rig) {
				start := time.Now()
				results, err := o.solveRange(ctx, nil, cfg, r, renderFn, rec)
				if err != nil {
					o.log.Warn("solve interrupted", "err", err)
					return
				}
				if err := report(cmd.OutOrStdout(), results, time.Since(start)); err != nil {
					o.log.Warn("solve", "err", err)
				}
			}
			solve(r)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer watcher.Close()

			// editors replace files on save, so watch the directory
			if err := watcher.Add(filepath.Dir(cfg.RigFile)); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			o.log.Info("watching", "rig", cfg.RigFile)

			target := filepath.Clean(cfg.RigFile)
			var settle <-chan time.Time
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != target {
						continue
					}
					if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
						settle = time.After(settleDelay)
					}

				case <-settle:
					settle = nil
					next, err := rigfile.Load(cfg.RigFile)
					if err != nil {
						o.log.Warn("reload failed, keeping the previous rig", "err", err)
						continue
					}
					next.SetLogger(o.log)
					next.Writeback = cfg.Writeback
					o.log.Info("rig reloaded", "rig", cfg.RigFile)
					solve(next)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					o.log.Warn("watcher error", "err", err)

				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVarP(&o.frames, "frames", "f", "", "frame range a:b")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	cmd.Flags().BoolVar(&render, "render", false, "render WebP previews on every solve")
	return cmd
}
