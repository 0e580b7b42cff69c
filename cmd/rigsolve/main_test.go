package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig-solver/internal/batch"
	"rig-solver/internal/config"
	"rig-solver/internal/constraint"
	"rig-solver/internal/rigfile"
)

var testRig = filepath.Join("..", "..", "internal", "rigfile", "testdata", "arm.yaml")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestTypes(t *testing.T) {
	out, err := run(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "child_of")
	assert.Contains(t, out, "damped_track")
	assert.NotContains(t, out, "null")
}

func TestPreview_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.RenderSize = 96
	cfg.Supersample = 3
	cfg.OrbitYaw, cfg.OrbitPitch = 10, -20
	cfg.Perspective = true
	cfg.Labels = false

	p, err := (&options{}).preview(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.OutputDir, p.OutputDir)
	assert.Equal(t, 96, p.Size)
	assert.Equal(t, 3, p.Supersample)
	assert.Equal(t, 10.0, p.Yaw)
	assert.Equal(t, -20.0, p.Pitch)
	assert.True(t, p.Perspective)
	assert.False(t, p.Labels)
	assert.Nil(t, p.Plates)
}

func TestSolve_WritesManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "m.json")
	out, err := run(t, "solve", testRig, "-o", dir, "--frames", "1:11", "--out", manifest, "-w", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Solved: 11/11")

	raw, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var m batch.Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Len(t, m.Frames, 11)
	assert.NotEmpty(t, m.RunID)

	last := m.Frames[10]
	assert.Equal(t, 11.0, last.Frame)
	assert.True(t, last.Success)
	assert.InDelta(t, 5.5, last.Matrices["owner"][3], 1e-9)
	assert.InDelta(t, 10.0, last.Matrices["parent"][3], 1e-9)
}

func TestSolve_SaveKeepsWriteback(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "baked.yaml")
	_, err := run(t, "solve", testRig, "-o", dir, "--save", saved)
	require.NoError(t, err)

	r, err := rigfile.Load(saved)
	require.NoError(t, err)
	st := r.Stacks["owner"]
	require.NotNil(t, st)
	require.Len(t, st.Object, 2)
	d, ok := st.Object[0].Data.(*constraint.ChildOfData)
	require.True(t, ok)
	assert.Zero(t, d.Flag&constraint.ChildOfSetInverse, "the inverse was baked on frame 1")
	assert.InDelta(t, -5.0, d.InvMat.Translation()[2], 1e-9)
}

func TestRender_WritesPreview(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "render", testRig, "-o", dir, "--frame", "3", "--size", "32")
	require.NoError(t, err)
	assert.Contains(t, out, "frame_0003.webp")

	info, err := os.Stat(filepath.Join(dir, "frame_0003.webp"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", testRig, "--frame", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "== owner")
	assert.Contains(t, out, "child_of")
	assert.Contains(t, out, "Clamp")
}

func TestErrors(t *testing.T) {
	_, err := run(t, "solve", testRig, "--log-level", "loud")
	assert.Error(t, err)

	_, err = run(t, "solve", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "solve", testRig, "--frames", "9:2")
	assert.Error(t, err)

	_, err = run(t, "solve")
	assert.Error(t, err)
}
