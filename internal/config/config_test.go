package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Formats(t *testing.T) {
	cases := map[string]string{
		"run.json": `{"rig": "arm.yaml", "frame_start": 3, "frame_end": 9, "workers": 2}`,
		"run.yaml": "rig: arm.yaml\nframe_start: 3\nframe_end: 9\nworkers: 2\n",
		"run.toml": "rig = \"arm.yaml\"\nframe_start = 3\nframe_end = 9\nworkers = 2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, body)
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(filepath.Dir(path), "arm.yaml"), cfg.RigFile)
			assert.Equal(t, 3, cfg.FrameStart)
			assert.Equal(t, 9, cfg.FrameEnd)
			assert.Equal(t, 2, cfg.Workers)
			assert.Equal(t, 1.0, cfg.FrameStep, "unset fields keep defaults")
			assert.True(t, cfg.Writeback)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "run.ini", "rig=x"))
	assert.ErrorContains(t, err, "unsupported format")

	_, err = Load(writeFile(t, "run.json", "{"))
	assert.ErrorContains(t, err, "config: parse")
}

func TestResolve_FlagsAndDefaults(t *testing.T) {
	cfg := Default()
	cfg.RigFile = "/rigs/arm.yaml"
	frames := [2]int{10, 20}
	require.NoError(t, cfg.Resolve(Flags{Workers: 3, Frames: &frames}))

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 10, cfg.FrameStart)
	assert.Equal(t, 20, cfg.FrameEnd)
	assert.Equal(t, filepath.Join("/rigs", "renders"), cfg.OutputDir)
	assert.Equal(t, 512, cfg.RenderSize)
	assert.Equal(t, 2, cfg.Supersample)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	var empty Config
	require.NoError(t, empty.Resolve(Flags{RigFile: "r.yaml"}))
	assert.Equal(t, runtime.NumCPU(), empty.Workers)
	assert.Equal(t, 1.0, empty.FrameStep)
}

func TestResolve_ExpandsHome(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Resolve(Flags{RigFile: "~/rigs/arm.yaml"}))
	assert.NotContains(t, cfg.RigFile, "~")
	assert.True(t, filepath.IsAbs(cfg.RigFile))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Resolve(Flags{RigFile: "/r.yaml"}))
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.RigFile = ""
	bad.LogLevel = "loud"
	bad.MetricsAddr = "nope"
	err := bad.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "RigFile failed required")
	assert.ErrorContains(t, err, "LogLevel failed oneof")
	assert.ErrorContains(t, err, "MetricsAddr failed hostname_port")

	ok := cfg
	ok.MetricsAddr = ":9090"
	assert.NoError(t, ok.Validate())
}

func TestFrames(t *testing.T) {
	cfg := Config{FrameStart: 1, FrameEnd: 2, FrameStep: 0.5}
	assert.Equal(t, []float64{1, 1.5, 2}, cfg.Frames())
}

func TestParseFrames(t *testing.T) {
	r, err := ParseFrames("4:8")
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 8}, r)

	r, err = ParseFrames("7")
	require.NoError(t, err)
	assert.Equal(t, [2]int{7, 7}, r)

	_, err = ParseFrames("8:4")
	assert.Error(t, err)
	_, err = ParseFrames("x")
	assert.Error(t, err)
}
