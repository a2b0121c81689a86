package cellgrid

import "github.com/hsphere/collision/internal/particle"

// Boundary is an oriented face of a cell. Each physical cell face carries
// up to two Boundary records: an inner one at the exact face position and
// an outer one offset by 1.01x a particle radius, used to schedule the
// "leaving this cell" event slightly after the "reached the neighbour's
// face" event so a particle is never cellless between the two.
type Boundary struct {
	Dim       int
	Side      particle.BoundarySide
	IsOuter   bool
	IsEdge    bool
	Position  float64
	Neighbour *Cell // nil for edge boundaries; unused there
}

// Input adapts a Boundary to the particle package's prediction signature.
func (b *Boundary) Input() particle.BoundaryPredictionInput {
	return particle.BoundaryPredictionInput{
		Dim:      b.Dim,
		Side:     b.Side,
		IsOuter:  b.IsOuter,
		IsEdge:   b.IsEdge,
		Position: b.Position,
	}
}

// buildBoundaries constructs the boundary records for one cell: for each
// (dim, side) face, an inner and an outer record are created, except that
// the outer record is omitted for an edge face (domain boundary) since
// particles reflect there instead of transferring out.
func buildBoundaries(ndims int, isEdge []bool, limits []float64, neighbours []*Cell) []*Boundary {
	var bs []*Boundary
	for dim := 0; dim < ndims; dim++ {
		for _, side := range []particle.BoundarySide{particle.SideNeg, particle.SidePos} {
			idx := dim*2 + int(side)
			edge := isEdge[idx]
			pos := limits[idx]
			neighbour := neighbours[idx]
			for _, isOuter := range []bool{false, true} {
				if edge && isOuter {
					continue
				}
				bs = append(bs, &Boundary{
					Dim:       dim,
					Side:      side,
					IsOuter:   isOuter,
					IsEdge:    edge,
					Position:  pos,
					Neighbour: neighbour,
				})
			}
		}
	}
	return bs
}
