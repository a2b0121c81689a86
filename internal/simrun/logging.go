package simrun

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hsphere/collision/internal/cellgrid"
	"github.com/hsphere/collision/internal/particle"
	"github.com/hsphere/collision/internal/simlog"
)

// StatsLogger appends four diagnostic tables under output/log/:
// nevents.dat, nparticles.dat, momenta.dat, and energy.dat. Momentum/energy
// rows record deviations from the value captured the first time each is
// logged, so a conservation violation shows up as a growing column rather
// than a raw magnitude that must be compared by hand.
type StatsLogger struct {
	dir               string
	ndims             int
	log               simlog.Logger
	haveMomentumBase  bool
	haveEnergyBase    bool
	momentum0         []float64
	energy0           float64
}

// NewStatsLogger ensures outputRoot/log exists and returns a logger
// writing into it.
func NewStatsLogger(ndims int, outputRoot string, log simlog.Logger) (*StatsLogger, error) {
	dir := filepath.Join(outputRoot, "log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	return &StatsLogger{dir: dir, ndims: ndims, log: log}, nil
}

func (s *StatsLogger) appendLine(name, line string) {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warnf("skipping log line in %s: %v", name, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		s.log.Warnf("skipping log line in %s: %v", name, err)
	}
}

// LogEventCount appends one row to nevents.dat: the total number of
// pending events across every cell's event list.
func (s *StatsLogger) LogEventCount(time float64, cells []*cellgrid.Cell) {
	n := 0
	for _, c := range cells {
		n += len(c.EventList.Events())
	}
	s.appendLine("nevents.dat", fmt.Sprintf("% .3e %16d\n", time, n))
}

// LogParticleCount appends one row to nparticles.dat: the total count of
// particle-in-cell registrations (a particle near a boundary is counted
// once per cell it overlaps).
func (s *StatsLogger) LogParticleCount(time float64, cells []*cellgrid.Cell) {
	n := 0
	for _, c := range cells {
		n += len(c.Particles)
	}
	s.appendLine("nparticles.dat", fmt.Sprintf("% .3e %16d\n", time, n))
}

// LogMomentum appends one row to momenta.dat: per-dimension total momentum
// minus the value captured the first time this is called.
func (s *StatsLogger) LogMomentum(time float64, particles []*particle.Particle) {
	momentum := make([]float64, s.ndims)
	for _, p := range particles {
		m := p.Mass(s.ndims)
		for d := 0; d < s.ndims; d++ {
			momentum[d] += m * p.Velocity[d]
		}
	}
	if !s.haveMomentumBase {
		s.momentum0 = append([]float64(nil), momentum...)
		s.haveMomentumBase = true
	}
	line := fmt.Sprintf("% .3e ", time)
	for d := 0; d < s.ndims; d++ {
		sep := byte(' ')
		if d == s.ndims-1 {
			sep = '\n'
		}
		line += fmt.Sprintf("% .3e%c", momentum[d]-s.momentum0[d], sep)
	}
	s.appendLine("momenta.dat", line)
}

// LogEnergy appends one row to energy.dat: total kinetic energy and its
// deviation from the value captured the first time this is called.
func (s *StatsLogger) LogEnergy(time float64, particles []*particle.Particle) {
	var energy float64
	for _, p := range particles {
		m := p.Mass(s.ndims)
		for d := 0; d < s.ndims; d++ {
			energy += 0.5 * m * p.Velocity[d] * p.Velocity[d]
		}
	}
	if !s.haveEnergyBase {
		s.energy0 = energy
		s.haveEnergyBase = true
	}
	s.appendLine("energy.dat", fmt.Sprintf("% .3e % .3e % .3e\n", time, energy, energy-s.energy0))
}

// LogAll appends one row to every table.
func (s *StatsLogger) LogAll(time float64, particles []*particle.Particle, cells []*cellgrid.Cell) {
	s.LogEventCount(time, cells)
	s.LogParticleCount(time, cells)
	s.LogMomentum(time, particles)
	s.LogEnergy(time, particles)
}
