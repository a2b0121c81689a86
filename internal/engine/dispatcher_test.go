package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hsphere/collision/internal/cellgrid"
	"github.com/hsphere/collision/internal/particle"
)

func defaultParams(ndims int) cellgrid.Params {
	return cellgrid.Params{NDims: ndims, TMax: 1000, RestCoefPP: 1, RestCoefPW: 1, DtZeroThreshold: 1e-4}
}

func buildSim(t *testing.T, lengths []float64, particles []*particle.Particle, params cellgrid.Params) *Simulation {
	t.Helper()
	ndims := len(lengths)
	grid := cellgrid.BuildGrid(ndims, lengths, 2.0)
	for _, p := range particles {
		grid.AssignParticle(p)
	}
	sim, err := New(ndims, particles, grid, params)
	require.NoError(t, err)
	return sim
}

func totalMomentum(ndims int, particles []*particle.Particle) []float64 {
	m := make([]float64, ndims)
	for _, p := range particles {
		mass := p.Mass(ndims)
		for d := 0; d < ndims; d++ {
			m[d] += mass * p.Velocity[d]
		}
	}
	return m
}

func totalEnergy(ndims int, particles []*particle.Particle) float64 {
	var e float64
	for _, p := range particles {
		mass := p.Mass(ndims)
		for d := 0; d < ndims; d++ {
			e += 0.5 * mass * p.Velocity[d] * p.Velocity[d]
		}
	}
	return e
}

func TestHeadOnCollisionConservesMomentumAndEnergy(t *testing.T) {
	p0 := particle.New(2, 1.0, 0.5)
	p1 := particle.New(2, 1.0, 0.5)
	p0.Position[0], p0.Position[1] = 3, 5
	p1.Position[0], p1.Position[1] = 7, 5
	p0.Velocity[0] = 1
	p1.Velocity[0] = -1

	particles := []*particle.Particle{p0, p1}
	before := totalMomentum(2, particles)
	beforeE := totalEnergy(2, particles)

	sim := buildSim(t, []float64{20, 20}, particles, defaultParams(2))
	// The particles start in different cells (x in [2,4] and [6,8]), so the
	// first two events are their inner-face crossings into the cell between
	// them at t=0.5; the collision, at t=1.5, is the third event.
	var tm float64
	for i := 0; i < 3; i++ {
		var err error
		tm, err = sim.ProcessNext()
		require.NoError(t, err)
	}
	require.Less(t, tm, PosInf)

	after := totalMomentum(2, particles)
	afterE := totalEnergy(2, particles)
	for d := range before {
		require.InDelta(t, before[d], after[d], 1e-9, "momentum not conserved in dim %d", d)
	}
	require.InDelta(t, beforeE, afterE, 1e-9, "kinetic energy not conserved for a fully elastic collision")

	// elastic head-on collision between equal masses exchanges velocities
	require.InDelta(t, -1.0, p0.Velocity[0], 1e-6)
	require.InDelta(t, 1.0, p1.Velocity[0], 1e-6)
}

func TestSingleParticleBouncesOffWall(t *testing.T) {
	p := particle.New(2, 1.0, 0.5)
	p.Position[0], p.Position[1] = 1, 5
	p.Velocity[0] = 1

	// x is a single cell (length 2, cellSize 2.0), so the only pb event a
	// rightward-moving particle can have is the domain edge at x=2, not an
	// inner cell-transfer face; one ProcessNext call is the wall bounce.
	sim := buildSim(t, []float64{2, 10}, []*particle.Particle{p}, defaultParams(2))
	tm, err := sim.ProcessNext()
	require.NoError(t, err)
	require.Less(t, tm, PosInf)
	require.Less(t, p.Velocity[0], 0.0, "velocity should reverse after bouncing off the domain edge")
	require.InDelta(t, 2-0.5, p.Position[0], 1e-6)
}

func TestCoMovingParticlesNeverCollide(t *testing.T) {
	p0 := particle.New(2, 1.0, 0.5)
	p1 := particle.New(2, 1.0, 0.5)
	p0.Position[0], p0.Position[1] = 1, 1
	p1.Position[0], p1.Position[1] = 3, 1
	p0.Velocity[0] = 1
	p1.Velocity[0] = 1

	sim := buildSim(t, []float64{1000, 1000}, []*particle.Particle{p0, p1}, defaultParams(2))
	tm, err := sim.ProcessNext()
	require.NoError(t, err)
	// both particles drift at the same velocity; the only events possible
	// are cell-face crossings and, eventually, the far domain edge.
	require.Less(t, tm, PosInf)
	for _, c := range sim.Grid.Cells {
		for _, e := range c.EventList.Events() {
			require.Nil(t, e.PP, "co-moving particles must never have a pp event scheduled")
		}
	}
}

func TestParticleTransfersBetweenCellsWithoutGoingCellless(t *testing.T) {
	p := particle.New(2, 1.0, 0.2)
	p.Position[0], p.Position[1] = 1.9, 1
	p.Velocity[0] = 1

	grid := cellgrid.BuildGrid(2, []float64{10, 10}, 2.0)
	grid.AssignParticle(p)
	params := defaultParams(2)
	sim, err := New(2, []*particle.Particle{p}, grid, params)
	require.NoError(t, err)

	startCells := len(grid.CellsOf(p))
	require.Greater(t, startCells, 0)

	for i := 0; i < 20; i++ {
		tm, err := sim.ProcessNext()
		require.NoError(t, err)
		if tm >= PosInf {
			break
		}
		require.Greater(t, len(grid.CellsOf(p)), 0, "particle must never be registered to zero cells")
	}
	require.Greater(t, p.Position[0], 2.0, "particle should have crossed into the neighbouring cell's region")
}

func TestDeterministicRepeatedRunsProduceIdenticalTrajectories(t *testing.T) {
	build := func() (*Simulation, *particle.Particle, *particle.Particle) {
		p0 := particle.New(2, 1.0, 0.5)
		p1 := particle.New(2, 1.3, 0.4)
		p0.Position[0], p0.Position[1] = 2, 4
		p1.Position[0], p1.Position[1] = 8, 6
		p0.Velocity[0], p0.Velocity[1] = 1, 0.3
		p1.Velocity[0], p1.Velocity[1] = -0.7, -0.2
		sim := buildSim(t, []float64{20, 20}, []*particle.Particle{p0, p1}, defaultParams(2))
		return sim, p0, p1
	}

	runN := func(n int) (float64, float64) {
		sim, p0, p1 := build()
		var last float64
		for i := 0; i < n; i++ {
			tm, err := sim.ProcessNext()
			require.NoError(t, err)
			if tm >= PosInf {
				break
			}
			last = tm
		}
		return last, p0.Position[0] + p1.Position[1]
	}

	t1, s1 := runN(5)
	t2, s2 := runN(5)
	require.Equal(t, t1, t2)
	require.Equal(t, s1, s2)
}

func TestProcessNextReturnsPosInfWhenNoEventsRemain(t *testing.T) {
	p := particle.New(2, 1.0, 0.1)
	p.Position[0], p.Position[1] = 5, 5
	// stationary particle, tiny tmax window already exceeded
	params := cellgrid.Params{NDims: 2, TMax: -1, RestCoefPP: 1, RestCoefPW: 1, DtZeroThreshold: 1e-4}
	sim := buildSim(t, []float64{10, 10}, []*particle.Particle{p}, params)
	tm, err := sim.ProcessNext()
	require.NoError(t, err)
	require.True(t, math.IsInf(tm, 1) || tm == PosInf)
}
