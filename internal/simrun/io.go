// Package simrun is the external-interface boundary: it loads the initial
// configuration from an input directory and saves periodic snapshots plus
// append-only log tables in a fixed directory/file layout. It is the only
// package that touches internal/npyio directly.
package simrun

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hsphere/collision/internal/npyio"
	"github.com/hsphere/collision/internal/particle"
)

// State is the full on-disk simulation state: iteration count, simulated
// time, domain lengths, and every particle's density/radius/position/
// velocity.
type State struct {
	Iter      uint64
	Time      float64
	Lengths   []float64
	Particles []*particle.Particle
}

// LoadInitial reads the full input layout from dir. I/O failure on read is
// treated as fatal: there is no sensible partial-state fallback.
func LoadInitial(ndims int, dir string) (*State, error) {
	iter, err := npyio.ReadScalarU64(filepath.Join(dir, "iter.npy"))
	if err != nil {
		return nil, fmt.Errorf("loading iter: %w", err)
	}
	t, err := npyio.ReadScalarF64(filepath.Join(dir, "time.npy"))
	if err != nil {
		return nil, fmt.Errorf("loading time: %w", err)
	}
	lengths, err := npyio.ReadVectorF64(filepath.Join(dir, "lengths.npy"), ndims)
	if err != nil {
		return nil, fmt.Errorf("loading lengths: %w", err)
	}
	nparticlesU64, err := npyio.ReadScalarU64(filepath.Join(dir, "nparticles.npy"))
	if err != nil {
		return nil, fmt.Errorf("loading nparticles: %w", err)
	}
	n := int(nparticlesU64)

	densities, err := npyio.ReadVectorF64(filepath.Join(dir, "densities.npy"), n)
	if err != nil {
		return nil, fmt.Errorf("loading densities: %w", err)
	}
	radii, err := npyio.ReadVectorF64(filepath.Join(dir, "radii.npy"), n)
	if err != nil {
		return nil, fmt.Errorf("loading radii: %w", err)
	}

	positions := make([][]float64, ndims)
	velocities := make([][]float64, ndims)
	for d := 0; d < ndims; d++ {
		positions[d], err = npyio.ReadVectorF64(filepath.Join(dir, fmt.Sprintf("positions_%d.npy", d)), n)
		if err != nil {
			return nil, fmt.Errorf("loading positions_%d: %w", d, err)
		}
		velocities[d], err = npyio.ReadVectorF64(filepath.Join(dir, fmt.Sprintf("velocities_%d.npy", d)), n)
		if err != nil {
			return nil, fmt.Errorf("loading velocities_%d: %w", d, err)
		}
	}

	particles := make([]*particle.Particle, n)
	for i := 0; i < n; i++ {
		p := particle.New(ndims, densities[i], radii[i])
		p.LocalTime = t
		for d := 0; d < ndims; d++ {
			p.Position[d] = positions[d][i]
			p.Velocity[d] = velocities[d][i]
		}
		particles[i] = p
	}

	return &State{Iter: iter, Time: t, Lengths: lengths, Particles: particles}, nil
}

// makeSaveDir creates output/save/iter<10-digit k>/, ignoring an
// already-exists error so a rerun over a partially-populated output root
// still writes its snapshot.
func makeSaveDir(root string, iter uint64) (string, error) {
	dir := filepath.Join(root, "save", fmt.Sprintf("iter%010d", iter))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if !os.IsExist(err) {
			return "", err
		}
	}
	return dir, nil
}

// Save writes one snapshot directory under outputRoot/save/. Any I/O
// failure other than the save directory already existing is non-fatal: the
// caller should log it and continue rather than abort the run.
func Save(ndims int, outputRoot string, state *State) error {
	dir, err := makeSaveDir(outputRoot, state.Iter)
	if err != nil {
		return fmt.Errorf("creating save directory: %w", err)
	}

	n := len(state.Particles)
	densities := make([]float64, n)
	radii := make([]float64, n)
	positions := make([][]float64, ndims)
	velocities := make([][]float64, ndims)
	for d := 0; d < ndims; d++ {
		positions[d] = make([]float64, n)
		velocities[d] = make([]float64, n)
	}
	for i, p := range state.Particles {
		densities[i] = p.Density
		radii[i] = p.Radius
		for d := 0; d < ndims; d++ {
			positions[d][i] = p.Position[d]
			velocities[d][i] = p.Velocity[d]
		}
	}

	if err := npyio.WriteScalarU64(filepath.Join(dir, "iter.npy"), state.Iter); err != nil {
		return err
	}
	if err := npyio.WriteScalarF64(filepath.Join(dir, "time.npy"), state.Time); err != nil {
		return err
	}
	if err := npyio.WriteVectorF64(filepath.Join(dir, "lengths.npy"), state.Lengths); err != nil {
		return err
	}
	if err := npyio.WriteScalarU64(filepath.Join(dir, "nparticles.npy"), uint64(n)); err != nil {
		return err
	}
	if err := npyio.WriteVectorF64(filepath.Join(dir, "densities.npy"), densities); err != nil {
		return err
	}
	if err := npyio.WriteVectorF64(filepath.Join(dir, "radii.npy"), radii); err != nil {
		return err
	}
	for d := 0; d < ndims; d++ {
		if err := npyio.WriteVectorF64(filepath.Join(dir, fmt.Sprintf("positions_%d.npy", d)), positions[d]); err != nil {
			return err
		}
		if err := npyio.WriteVectorF64(filepath.Join(dir, fmt.Sprintf("velocities_%d.npy", d)), velocities[d]); err != nil {
			return err
		}
	}
	return nil
}
