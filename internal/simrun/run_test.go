package simrun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hsphere/collision/internal/particle"
	"github.com/hsphere/collision/internal/simconfig"
)

func writeFixtureInput(t *testing.T, ndims int) string {
	t.Helper()
	dir := t.TempDir()
	state := &State{
		Iter:    0,
		Time:    0,
		Lengths: make([]float64, ndims),
		Particles: []*particle.Particle{
			particle.New(ndims, 1.0, 0.5),
			particle.New(ndims, 1.0, 0.5),
		},
	}
	for d := 0; d < ndims; d++ {
		state.Lengths[d] = 20
	}
	state.Particles[0].Position[0] = 5
	state.Particles[1].Position[0] = 15
	state.Particles[0].Velocity[0] = 1
	state.Particles[1].Velocity[0] = -1

	require.NoError(t, Save(ndims, dir, state))
	// Save() writes under dir/save/iter0000000000/; the input layout is
	// read directly from a flat directory, so copy the files up one level.
	savedDir := filepath.Join(dir, "save", "iter0000000000")
	entries, err := os.ReadDir(savedDir)
	require.NoError(t, err)
	flat := filepath.Join(dir, "input")
	require.NoError(t, os.MkdirAll(flat, 0o755))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(savedDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(flat, e.Name()), data, 0o644))
	}
	return flat
}

func TestRunToCompletionTerminatesAndProducesOutput(t *testing.T) {
	ndims := 2
	inputDir := writeFixtureInput(t, ndims)
	outputRoot := t.TempDir()

	cfg := &simconfig.Config{
		NDims:                 ndims,
		InputDirectory:        inputDir,
		TMax:                  50,
		WTMax:                 30,
		SaveRate:              1000,
		LogRate:               1000,
		RestCoefPP:            1,
		RestCoefPW:            1,
		NewtonDtZeroThreshold: 1e-4,
	}

	run, err := New(cfg, outputRoot)
	require.NoError(t, err)
	require.NoError(t, run.Loop(outputRoot))

	_, err = os.Stat(filepath.Join(outputRoot, "save", "iter0000000000"))
	require.NoError(t, err, "expected the initial snapshot to be saved")
}
