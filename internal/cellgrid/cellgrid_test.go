package cellgrid

import (
	"testing"

	"github.com/hsphere/collision/internal/particle"
)

func newTestGrid(t *testing.T) *Grid {
	t.Helper()
	return BuildGrid(2, []float64{10, 10}, 2.0)
}

func TestBuildGridCreatesExpectedCellCount(t *testing.T) {
	g := newTestGrid(t)
	if len(g.Cells) != 25 {
		t.Fatalf("expected 5x5=25 cells, got %d", len(g.Cells))
	}
}

func TestAssignParticleRegistersBidirectionally(t *testing.T) {
	g := newTestGrid(t)
	p := particle.New(2, 1.0, 0.5)
	p.Position[0], p.Position[1] = 1, 1
	g.AssignParticle(p)

	cells := g.CellsOf(p)
	if len(cells) == 0 {
		t.Fatal("expected at least one cell registration")
	}
	for _, c := range cells {
		if !c.HasParticle(p) {
			t.Errorf("cell's particle list does not contain p, but CellsOf does")
		}
	}
}

func TestAssignParticleSpansMultipleCellsNearBoundary(t *testing.T) {
	g := newTestGrid(t)
	p := particle.New(2, 1.0, 0.5)
	// face between cell rank 0 and 1 (in a dim) sits at x=2; straddle it.
	p.Position[0], p.Position[1] = 2.0, 1.0
	p.Radius = 0.5
	g.AssignParticle(p)
	if len(g.CellsOf(p)) < 2 {
		t.Fatalf("expected particle straddling a face to register in >=2 cells, got %d", len(g.CellsOf(p)))
	}
}

func TestDeregisterRemovesBothSides(t *testing.T) {
	g := newTestGrid(t)
	p := particle.New(2, 1.0, 0.5)
	p.Position[0], p.Position[1] = 1, 1
	g.AssignParticle(p)
	cells := append([]*Cell(nil), g.CellsOf(p)...)
	for _, c := range cells {
		if err := g.Deregister(c, p); err != nil {
			t.Fatalf("Deregister failed: %v", err)
		}
	}
	if len(g.CellsOf(p)) != 0 {
		t.Errorf("expected no remaining cell registrations, got %d", len(g.CellsOf(p)))
	}
	for _, c := range cells {
		if c.HasParticle(p) {
			t.Errorf("cell still reports HasParticle after deregistration")
		}
	}
}

func TestDeregisterUnregisteredParticleIsInvariantError(t *testing.T) {
	g := newTestGrid(t)
	p := particle.New(2, 1.0, 0.5)
	if err := g.Deregister(g.Cells[0], p); err == nil {
		t.Fatal("expected an invariant error deregistering an unregistered particle")
	}
}

func TestEventListInsertKeepsAscendingOrder(t *testing.T) {
	cell := newCell()
	heap := &Heap{cells: []*Cell{cell}}
	cell.heapIndex = 0
	times := []float64{5, 1, 3, 2, 4}
	for _, tm := range times {
		cell.EventList.Insert(&Event{Time: tm, PB: &PBEvent{}}, heap)
	}
	events := cell.EventList.Events()
	for i := 1; i < len(events); i++ {
		if events[i-1].Time > events[i].Time {
			t.Fatalf("event list not sorted: %v", events)
		}
	}
}

func TestCancelAllInvolvingRemovesOnlyMatchingEvents(t *testing.T) {
	cell := newCell()
	heap := &Heap{cells: []*Cell{cell}}
	cell.heapIndex = 0
	p0 := particle.New(2, 1, 0.5)
	p1 := particle.New(2, 1, 0.5)
	p2 := particle.New(2, 1, 0.5)
	cell.EventList.Insert(&Event{Time: 1, PP: &PPEvent{P0: p0, P1: p1}}, heap)
	cell.EventList.Insert(&Event{Time: 2, PP: &PPEvent{P0: p1, P1: p2}}, heap)
	cell.EventList.Insert(&Event{Time: 3, PP: &PPEvent{P0: p2, P1: p0}}, heap)

	cell.EventList.CancelAllInvolving(p1, heap)
	for _, e := range cell.EventList.Events() {
		if e.involves(p1) {
			t.Errorf("event involving p1 survived cancellation: %v", e)
		}
	}
}

func TestHeapPropertyHoldsAfterInserts(t *testing.T) {
	cells := make([]*Cell, 8)
	for i := range cells {
		cells[i] = newCell()
	}
	heap := NewHeap(cells)
	for i, tm := range []float64{5, 1, 9, 3, 7, 2, 8, 4} {
		cells[i].EventList.Insert(&Event{Time: tm, PB: &PBEvent{}}, heap)
	}
	if !heap.checkHeapProperty() {
		t.Fatal("heap property violated after a batch of inserts")
	}
	first := heap.Peek()
	if first.EventList.headTime() != 1 {
		t.Errorf("expected the smallest key at the root, got %v", first.EventList.headTime())
	}
}

func TestHeapPeekIsNilWhenAllListsEmpty(t *testing.T) {
	cells := make([]*Cell, 4)
	for i := range cells {
		cells[i] = newCell()
	}
	heap := NewHeap(cells)
	if heap.Peek() != nil {
		t.Errorf("expected nil Peek on an all-empty heap")
	}
}

func TestInitEventsSchedulesBoundaryEventForLoneParticle(t *testing.T) {
	g := newTestGrid(t)
	p0 := particle.New(2, 1.0, 0.3)
	p0.Position[0], p0.Position[1] = 1, 1
	p0.Velocity[0] = 1

	g.AssignParticle(p0)
	params := Params{NDims: 2, TMax: 1000, RestCoefPP: 1, RestCoefPW: 1, DtZeroThreshold: 1e-4}
	if err := g.InitEvents(params); err != nil {
		t.Fatalf("InitEvents: %v", err)
	}
	cell := g.CellsOf(p0)[0]
	if cell.EventList.HeadEvent() == nil {
		t.Fatal("expected a scheduled boundary event for a lone moving particle")
	}
}
