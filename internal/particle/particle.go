// Package particle implements the pure numerical kernel of the engine:
// ballistic integration, mass/volume, and the collision predicates used by
// the event dispatcher. Nothing in this package mutates a Cell or Event; it
// is a library consumed by the dispatcher.
package particle

import (
	"fmt"
	"math"
)

// Vector is an N-dimensional real vector. N is fixed for a whole
// simulation but is a startup parameter, not a compile-time constant, so
// vectors are plain slices rather than a fixed-arity type.
type Vector []float64

// Particle is a hard sphere: density, radius, position, velocity and the
// local time at which Position is valid.
type Particle struct {
	Density   float64
	Radius    float64
	Position  Vector
	Velocity  Vector
	LocalTime float64
}

// New allocates a particle with N-dimensional zeroed position/velocity.
func New(n int, density, radius float64) *Particle {
	return &Particle{
		Density:  density,
		Radius:   radius,
		Position: make(Vector, n),
		Velocity: make(Vector, n),
	}
}

// Clone returns a deep copy, used to stash the precomputed post-event state
// inside an event (see internal/cellgrid's Event).
func (p *Particle) Clone() *Particle {
	q := *p
	q.Position = append(Vector(nil), p.Position...)
	q.Velocity = append(Vector(nil), p.Velocity...)
	return &q
}

// Advance integrates position ballistically to tNew and updates LocalTime.
// Idempotent when tNew equals the current LocalTime.
func (p *Particle) Advance(tNew float64) {
	dt := tNew - p.LocalTime
	if dt == 0 {
		p.LocalTime = tNew
		return
	}
	for d := range p.Position {
		p.Position[d] += p.Velocity[d] * dt
	}
	p.LocalTime = tNew
}

// ballVolumeCoef is the N-ball unit volume coefficient: pi^(n/2) / Gamma(n/2+1).
func ballVolumeCoef(n int) float64 {
	return math.Pow(math.Pi, float64(n)/2) / math.Gamma(float64(n)/2+1)
}

// Volume returns the N-dimensional ball volume for the given radius.
func Volume(n int, radius float64) float64 {
	return ballVolumeCoef(n) * math.Pow(radius, float64(n))
}

// Mass returns density times volume.
func (p *Particle) Mass(n int) float64 {
	return p.Density * Volume(n, p.Radius)
}

func dot(a, b Vector) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// ErrOverlap is returned by PredictCollision when two particles already
// overlap at plan time, violating the non-overlap invariant collision
// prediction must never cross.
type ErrOverlap struct {
	C0 float64
}

func (e *ErrOverlap) Error() string {
	return fmt.Sprintf("particle overlap detected at prediction time: c = % .3e < 0", e.C0)
}

// CollisionResult holds the post-collision state of both participants,
// precomputed at plan time so processing the event later is a pure copy.
type CollisionResult struct {
	Time         float64
	NewP0, NewP1 *Particle
}

// PredictCollision predicts a particle-particle collision via a damped
// Newton iteration that never overshoots into overlap. p0 and p1 must
// share the same LocalTime. tMax bounds the search; restCoef is the pair
// restitution coefficient; dtZeroThreshold is the relative-velocity
// magnitude below which restCoef is overridden to 1, so a nearly-grazing
// or co-moving pair is not rescheduled at dt=0 forever.
//
// Returns (nil, nil) when no event is predicted (co-moving, separating,
// imaginary discriminant, or beyond tMax). Returns a non-nil error for the
// fatal overlap case (*ErrOverlap) and when p0 and p1 have different
// LocalTimes.
func PredictCollision(n int, p0, p1 *Particle, tMax, restCoef, dtZeroThreshold float64) (*CollisionResult, error) {
	if p0.LocalTime != p1.LocalTime {
		return nil, fmt.Errorf("particle local times differ: %v vs %v", p0.LocalTime, p1.LocalTime)
	}
	dpos := make(Vector, n)
	dvel := make(Vector, n)
	for d := 0; d < n; d++ {
		dpos[d] = p1.Position[d] - p0.Position[d]
		dvel[d] = p1.Velocity[d] - p0.Velocity[d]
	}
	R := p0.Radius + p1.Radius

	a := dot(dvel, dvel)
	if a == 0 {
		return nil, nil // co-moving
	}
	b := 2 * dot(dpos, dvel)
	if b >= 0 {
		return nil, nil // separating
	}
	c := dot(dpos, dpos) - R*R
	if c < 0 {
		return nil, &ErrOverlap{C0: c}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil, nil // imaginary roots
	}

	dt := 0.0
	pos0 := make(Vector, n)
	pos1 := make(Vector, n)
	copy(pos0, p0.Position)
	copy(pos1, p1.Position)
	for iter := 0; iter < 10; iter++ {
		f0 := a*dt*dt + b*dt + c
		f1 := 2*a*dt + b
		if f1 == 0 {
			break
		}
		dtTry := dt - f0/f1
		dposTry := make(Vector, n)
		dist := 0.0
		for d := 0; d < n; d++ {
			x0 := p0.Position[d] + p0.Velocity[d]*dtTry
			x1 := p1.Position[d] + p1.Velocity[d]*dtTry
			dposTry[d] = x1 - x0
		}
		dist = math.Sqrt(dot(dposTry, dposTry)) - R
		if dist < 0 {
			// tentative step would overlap; keep the last accepted dt
			break
		}
		dt = dtTry
		for d := 0; d < n; d++ {
			pos0[d] = p0.Position[d] + p0.Velocity[d]*dt
			pos1[d] = p1.Position[d] + p1.Velocity[d]*dt
		}
	}

	t := p0.LocalTime + dt
	if t > tMax {
		return nil, nil
	}

	newP0 := p0.Clone()
	newP1 := p1.Clone()
	copy(newP0.Position, pos0)
	copy(newP1.Position, pos1)
	resolveCollisionVelocities(n, newP0, newP1, restCoef, dtZeroThreshold)

	return &CollisionResult{Time: t, NewP0: newP0, NewP1: newP1}, nil
}

// resolveCollisionVelocities reflects the relative velocity about the
// contact normal, scaled by restitution, around the center-of-mass
// velocity.
func resolveCollisionVelocities(n int, p0, p1 *Particle, restCoef, dtZeroThreshold float64) {
	m0 := p0.Mass(n)
	m1 := p1.Mass(n)
	R := p0.Radius + p1.Radius

	normal := make(Vector, n)
	for d := 0; d < n; d++ {
		normal[d] = (p1.Position[d] - p0.Position[d]) / R
	}

	gvel := make(Vector, n)
	dvel := make(Vector, n)
	for d := 0; d < n; d++ {
		gvel[d] = (m0*p0.Velocity[d] + m1*p1.Velocity[d]) / (m0 + m1)
		dvel[d] = p1.Velocity[d] - p0.Velocity[d]
	}

	normDvel := math.Sqrt(dot(dvel, dvel))
	e := restCoef
	if normDvel < dtZeroThreshold {
		e = 1
	}

	factor := -(1 + e) * dot(dvel, normal)
	for d := 0; d < n; d++ {
		dvel[d] += factor * normal[d]
	}

	for d := 0; d < n; d++ {
		p0.Velocity[d] = gvel[d] - m1/(m0+m1)*dvel[d]
		p1.Velocity[d] = gvel[d] + m0/(m0+m1)*dvel[d]
	}
}

// BoundarySide is neg or pos, matching the dimension's negative/positive face.
type BoundarySide int

const (
	SideNeg BoundarySide = iota
	SidePos
)

// BoundaryPredictionInput carries the pieces of a cellgrid.Boundary that
// PredictBoundary needs, so this package stays independent of cellgrid.
type BoundaryPredictionInput struct {
	Dim      int
	Side     BoundarySide
	IsOuter  bool
	IsEdge   bool
	Position float64
}

// BoundaryResult holds the precomputed post-event particle state.
type BoundaryResult struct {
	Time float64
	NewP *Particle
}

// PredictBoundary predicts when and how p crosses boundary b.
func PredictBoundary(n int, p *Particle, b BoundaryPredictionInput, tMax, wallRestCoef, dtZeroThreshold float64) *BoundaryResult {
	offset := b.Position2Offset(p.Radius)
	pos := p.Position[b.Dim]
	vel := p.Velocity[b.Dim]

	if b.Side == SideNeg && vel >= 0 {
		return nil
	}
	if b.Side == SidePos && vel <= 0 {
		return nil
	}

	// The offset is applied so the particle must actually cross this
	// record's position: an outer record sits further out than the face
	// (the "leaving the cell" trip wire), an inner one sits short of it
	// (the "about to leave" trip wire), and which direction is "further
	// out" flips with the side.
	bnd := b.Position
	subtract := (b.Side == SideNeg && b.IsOuter) || (b.Side == SidePos && !b.IsOuter)
	if subtract {
		bnd -= offset
	} else {
		bnd += offset
	}

	dt := (bnd - pos) / vel
	if dt <= 0 {
		return nil
	}
	t := p.LocalTime + dt
	if t > tMax {
		return nil
	}

	newP := p.Clone()
	restCoef := wallRestCoef
	if math.Abs(vel) < dtZeroThreshold {
		restCoef = 1
	}
	for d := 0; d < n; d++ {
		if d == b.Dim {
			newP.Position[d] = bnd
			if b.IsEdge && !b.IsOuter {
				newP.Velocity[d] = restCoef * (-vel)
			} else {
				newP.Velocity[d] = vel
			}
		} else {
			newP.Position[d] = p.Position[d] + p.Velocity[d]*dt
			newP.Velocity[d] = p.Velocity[d]
		}
	}
	return &BoundaryResult{Time: t, NewP: newP}
}

// Position2Offset returns the effective offset for this boundary: the bare
// radius for inner boundaries, 1.01x radius for outer ones.
func (b BoundaryPredictionInput) Position2Offset(radius float64) float64 {
	if b.IsOuter {
		return 1.01 * radius
	}
	return radius
}
