package cellgrid

import "github.com/hsphere/collision/internal/particle"

// Params bundles the per-run constants event prediction needs, passed
// explicitly rather than read from package-level state.
type Params struct {
	NDims           int
	TMax            float64
	RestCoefPP      float64
	RestCoefPW      float64
	DtZeroThreshold float64
}

// CreateEvents schedules every pp event between p0 and every other particle
// already in cell, and every pb event between p0 and cell's boundaries,
// inserting each into cell's event list. This is the refresh form: it
// considers all other particles, relying on the caller having already
// cancelled p0's stale events so no duplicate survives. Returns an error
// for the fatal overlap case, or when p0 and another particle in cell have
// different local times.
func CreateEvents(cell *Cell, p0 *particle.Particle, params Params, heap *Heap) error {
	return createEventsAgainst(cell, p0, cell.Particles, params, heap)
}

func createEventsAgainst(cell *Cell, p0 *particle.Particle, others []*particle.Particle, params Params, heap *Heap) error {
	if err := createPPEvents(cell, p0, others, params, heap); err != nil {
		return err
	}
	createPBEvents(cell, p0, params, heap)
	return nil
}

func createPPEvents(cell *Cell, p0 *particle.Particle, others []*particle.Particle, params Params, heap *Heap) error {
	for _, p1 := range others {
		if p0 == p1 {
			continue
		}
		result, err := particle.PredictCollision(params.NDims, p0, p1, params.TMax, params.RestCoefPP, params.DtZeroThreshold)
		if err != nil {
			return err
		}
		if result == nil {
			continue
		}
		cell.EventList.Insert(&Event{
			Time: result.Time,
			PP: &PPEvent{
				P0: p0, P1: p1,
				NewP0: result.NewP0, NewP1: result.NewP1,
			},
		}, heap)
	}
	return nil
}

func createPBEvents(cell *Cell, p0 *particle.Particle, params Params, heap *Heap) {
	for _, b := range cell.Boundaries {
		result := particle.PredictBoundary(params.NDims, p0, b.Input(), params.TMax, params.RestCoefPW, params.DtZeroThreshold)
		if result == nil {
			continue
		}
		cell.EventList.Insert(&Event{
			Time: result.Time,
			PB: &PBEvent{
				P:    p0,
				B:    b,
				NewP: result.NewP,
			},
		}, heap)
	}
}

// InitEvents schedules the initial event set for every cell in the grid.
// Each unordered particle pair within a cell is considered exactly once (by
// pairing each particle only with those after it in the cell's list), then
// the heap is built over the populated lists.
func (g *Grid) InitEvents(params Params) error {
	for _, cell := range g.Cells {
		for i, p := range cell.Particles {
			if err := createPPEvents(cell, p, cell.Particles[i+1:], params, g.Heap); err != nil {
				return err
			}
			createPBEvents(cell, p, params, g.Heap)
		}
	}
	g.Heap = NewHeap(g.Cells)
	return nil
}
