// Command rigsolve loads rig documents, solves their constraint stacks over a
// frame range and renders previews of the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rig-solver/internal/config"
	"rig-solver/internal/constraint"
)

// options are the flag values shared by the subcommands.
type options struct {
	configPath  string
	logLevel    string
	workers     int
	output      string
	frames      string
	size        int
	metricsAddr string

	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "rigsolve",
		Short:         "Solve Blender-style object and bone constraint rigs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setupLogging(cmd, o.logLevel)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "run configuration (.json, .yaml or .toml)")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	pf.IntVarP(&o.workers, "workers", "w", 0, "worker goroutines (default: NumCPU)")
	pf.StringVarP(&o.output, "output", "o", "", "output directory (default: <rig dir>/renders)")

	root.AddCommand(
		newSolveCmd(o),
		newRenderCmd(o),
		newInspectCmd(o),
		newWatchCmd(o),
		newTypesCmd(),
	)
	return root
}

func (o *options) setupLogging(cmd *cobra.Command, lvl string) error {
	var level slog.Level
	if lvl == "" {
		lvl = "info"
	}
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return fmt.Errorf("log level %q: %w", lvl, err)
	}
	o.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	constraint.SetLogger(o.log)
	return nil
}

// settings merges the config file, the flags and the rig argument.
func (o *options) settings(rigPath string) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}

	flags := config.Flags{
		RigFile:     rigPath,
		OutputDir:   o.output,
		Workers:     o.workers,
		LogLevel:    strings.ToLower(o.logLevel),
		RenderSize:  o.size,
		MetricsAddr: o.metricsAddr,
	}
	if o.frames != "" {
		fr, err := config.ParseFrames(o.frames)
		if err != nil {
			return cfg, err
		}
		flags.Frames = &fr
	}
	if err := cfg.Resolve(flags); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
