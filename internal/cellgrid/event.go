package cellgrid

import "github.com/hsphere/collision/internal/particle"

// Event carries a time and exactly one of two payloads: a particle-particle
// (PP) collision or a particle-boundary (PB) interaction. The post-event
// state of every participant is precomputed at plan time and copied onto
// the live particle when the event is processed.
type Event struct {
	Time float64
	PP   *PPEvent
	PB   *PBEvent
}

// PPEvent is a planned particle-particle collision.
type PPEvent struct {
	P0, P1       *particle.Particle
	NewP0, NewP1 *particle.Particle
}

// PBEvent is a planned particle-boundary interaction.
type PBEvent struct {
	P    *particle.Particle
	B    *Boundary
	NewP *particle.Particle
}

// involves reports whether p is a participant of this event.
func (e *Event) involves(p *particle.Particle) bool {
	if e.PP != nil {
		return e.PP.P0 == p || e.PP.P1 == p
	}
	return e.PB.P == p
}

// EventList is the per-cell, time-sorted singly linked list of predicted
// events.
type EventList struct {
	head *eventNode
	cell *Cell // owning cell, used to drive the heap on head changes
}

type eventNode struct {
	event *Event
	next  *eventNode
}

func newEventList(cell *Cell) *EventList {
	return &EventList{cell: cell}
}

// headTime returns the list's earliest event time, or +Inf if empty; this
// is the key the global heap orders cells by.
func (l *EventList) headTime() float64 {
	if l.head == nil {
		return posInf
	}
	return l.head.event.Time
}

// HeadEvent returns the earliest event, or nil if the list is empty.
func (l *EventList) HeadEvent() *Event {
	if l.head == nil {
		return nil
	}
	return l.head.event
}

// Insert places event by ascending time. If the head changes, the owning
// cell's key is pushed through the heap.
func (l *EventList) Insert(event *Event, heap *Heap) {
	oldTime := l.headTime()
	if l.head == nil || event.Time < l.head.event.Time {
		l.head = &eventNode{event: event, next: l.head}
	} else {
		node := l.head
		for node.next != nil && node.next.event.Time <= event.Time {
			node = node.next
		}
		node.next = &eventNode{event: event, next: node.next}
	}
	newTime := l.headTime()
	if newTime != oldTime {
		heap.update(l.cell, oldTime, newTime)
	}
}

// CancelAllInvolving drops every event referencing p.
func (l *EventList) CancelAllInvolving(p *particle.Particle, heap *Heap) {
	oldTime := l.headTime()
	var kept *eventNode
	var keptTail *eventNode
	for node := l.head; node != nil; node = node.next {
		if node.event.involves(p) {
			continue
		}
		n := &eventNode{event: node.event}
		if kept == nil {
			kept = n
		} else {
			keptTail.next = n
		}
		keptTail = n
	}
	l.head = kept
	newTime := l.headTime()
	if newTime != oldTime {
		heap.update(l.cell, oldTime, newTime)
	}
}

// CancelHead drops the head event.
func (l *EventList) CancelHead(heap *Heap) {
	if l.head == nil {
		return
	}
	oldTime := l.headTime()
	l.head = l.head.next
	newTime := l.headTime()
	if newTime != oldTime {
		heap.update(l.cell, oldTime, newTime)
	}
}

// Events returns the list's events in order, for testing/inspection.
func (l *EventList) Events() []*Event {
	var out []*Event
	for node := l.head; node != nil; node = node.next {
		out = append(out, node.event)
	}
	return out
}
