// Package engine implements the event dispatcher: the outer loop that pops
// the earliest event, mutates its participants, and invalidates/regenerates
// dependent events. It is the sole mutator of simulation state during
// steady state.
package engine

import (
	"fmt"
	"math"

	"github.com/hsphere/collision/internal/cellgrid"
	"github.com/hsphere/collision/internal/particle"
)

// PosInf marks "no event remains before TMax".
const PosInf = math.MaxFloat64

// Simulation drives the event loop over a fixed set of particles and a
// prebuilt cell grid. It carries the run's parameters explicitly instead
// of relying on any package-level state.
type Simulation struct {
	NDims     int
	Particles []*particle.Particle
	Grid      *cellgrid.Grid
	Params    cellgrid.Params
}

// New builds a Simulation over an already-populated grid (particles must
// already be assigned via Grid.AssignParticle) and schedules the initial
// event set.
func New(ndims int, particles []*particle.Particle, grid *cellgrid.Grid, params cellgrid.Params) (*Simulation, error) {
	if err := grid.InitEvents(params); err != nil {
		return nil, err
	}
	return &Simulation{
		NDims:     ndims,
		Particles: particles,
		Grid:      grid,
		Params:    params,
	}, nil
}

// ProcessNext consumes one event and returns the simulated time it advanced
// to, or PosInf if no event remains before Params.TMax.
func (s *Simulation) ProcessNext() (float64, error) {
	cell := s.Grid.Heap.Peek()
	if cell == nil {
		return PosInf, nil
	}
	event := cell.EventList.HeadEvent()
	if event.PP != nil {
		return s.processPP(cell, event)
	}
	return s.processPB(cell, event)
}

func (s *Simulation) processPP(cell *cellgrid.Cell, event *cellgrid.Event) (float64, error) {
	pp := event.PP
	time := event.Time

	copy(pp.P0.Position, pp.NewP0.Position)
	copy(pp.P0.Velocity, pp.NewP0.Velocity)
	pp.P0.LocalTime = time

	copy(pp.P1.Position, pp.NewP1.Position)
	copy(pp.P1.Velocity, pp.NewP1.Velocity)
	pp.P1.LocalTime = time

	if err := s.refreshNeighbourhood(pp.P0, time); err != nil {
		return 0, err
	}
	if err := s.refreshNeighbourhood(pp.P1, time); err != nil {
		return 0, err
	}
	return time, nil
}

func (s *Simulation) processPB(cell *cellgrid.Cell, event *cellgrid.Event) (float64, error) {
	pb := event.PB
	time := event.Time
	p := pb.P
	b := pb.B

	advanceAll(cell, time)

	switch {
	case b.IsOuter:
		cell.EventList.CancelAllInvolving(p, s.Grid.Heap)
		if err := s.Grid.Deregister(cell, p); err != nil {
			return 0, fmt.Errorf("processing outer boundary event: %w", err)
		}
		if len(s.Grid.CellsOf(p)) == 0 {
			return 0, fmt.Errorf("%w: particle belongs to no cell after deregistration", cellgrid.ErrInvariant)
		}
		return time, nil

	case b.IsEdge: // inner edge: reflecting wall
		copy(p.Position, pb.NewP.Position)
		copy(p.Velocity, pb.NewP.Velocity)
		p.LocalTime = time
		if err := s.refreshNeighbourhood(p, time); err != nil {
			return 0, err
		}
		return time, nil

	default: // inner transfer boundary: hand off to the neighbour cell
		neighbour := b.Neighbour
		advanceAll(neighbour, p.LocalTime)
		if neighbour.HasParticle(p) {
			// already registered (e.g. via a redundant plan from another
			// cell); nothing further to do but drop this stale head event.
			cell.EventList.CancelHead(s.Grid.Heap)
			return time, nil
		}
		s.Grid.Register(neighbour, p)
		if err := cellgrid.CreateEvents(neighbour, p, s.Params, s.Grid.Heap); err != nil {
			return 0, err
		}
		cell.EventList.CancelHead(s.Grid.Heap)
		return time, nil
	}
}

// refreshNeighbourhood handles every cell p is currently registered in: it
// advances every particle in that cell to t, cancels every event touching
// p, and regenerates events for p against every other particle and
// boundary of that cell.
func (s *Simulation) refreshNeighbourhood(p *particle.Particle, t float64) error {
	for _, cell := range s.Grid.CellsOf(p) {
		advanceAll(cell, t)
		if !cell.HasParticle(p) {
			return fmt.Errorf("%w: particle missing from a cell it claims to belong to", cellgrid.ErrInvariant)
		}
		cell.EventList.CancelAllInvolving(p, s.Grid.Heap)
		if err := cellgrid.CreateEvents(cell, p, s.Params, s.Grid.Heap); err != nil {
			return err
		}
	}
	return nil
}

func advanceAll(cell *cellgrid.Cell, t float64) {
	for _, p := range cell.Particles {
		p.Advance(t)
	}
}
