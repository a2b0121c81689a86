package cellgrid

import (
	"fmt"

	"github.com/hsphere/collision/internal/particle"
)

// Cell is a rectangular region of the domain, owning the particles
// currently overlapping it, its boundary records, and its local event list.
type Cell struct {
	Particles  []*particle.Particle
	Boundaries []*Boundary
	EventList  *EventList
	heapIndex  int
}

func newCell() *Cell {
	c := &Cell{}
	c.EventList = newEventList(c)
	return c
}

// HasParticle reports whether p is currently registered to this cell.
func (c *Cell) HasParticle(p *particle.Particle) bool {
	for _, q := range c.Particles {
		if q == p {
			return true
		}
	}
	return false
}

// AddParticle registers p to this cell. Returns false if already present;
// registering an already-registered particle is a no-op.
func (c *Cell) AddParticle(p *particle.Particle) bool {
	if c.HasParticle(p) {
		return false
	}
	c.Particles = append(c.Particles, p)
	return true
}

// RemoveParticle deregisters p from this cell. Returns an error if p was
// not registered, guarding the bidirectional cell/particle registration
// invariant.
func (c *Cell) RemoveParticle(p *particle.Particle) error {
	for i, q := range c.Particles {
		if q == p {
			c.Particles = append(c.Particles[:i], c.Particles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: particle not found in cell", ErrInvariant)
}

// ErrInvariant is the sentinel wrapped by every bidirectional-registration
// invariant violation in this package.
var ErrInvariant = fmt.Errorf("invariant violation")

// Grid is the uniform axis-aligned spatial decomposition built once at
// startup. Cell count per dimension is floor(length/cellSize), so with the
// default cellSize each cell's extent is roughly two unit radii.
type Grid struct {
	NDims  int
	NCells []int      // per-dimension cell count
	Faces  [][]float64 // per-dimension face positions, len NCells[d]+1
	Cells  []*Cell    // flattened, row-major with dim 0 varying fastest
	Heap   *Heap

	// cellsOf is each particle's back-reference set: every cell it is
	// currently registered to. Kept at the grid level since Cell lives in
	// this package and Particle must not import it.
	cellsOf map[*particle.Particle][]*Cell
}

// strides returns the row-major stride for each dimension so an N-D rank
// tuple can be flattened to (or recovered from) a 1-D index.
func strides(ncells []int) []int {
	s := make([]int, len(ncells))
	for d0 := range ncells {
		s[d0] = 1
		for d1 := 0; d1 < d0; d1++ {
			s[d0] *= ncells[d1]
		}
	}
	return s
}

func indexToRanks(index int, sizes []int) []int {
	ranks := make([]int, len(sizes))
	for d := range sizes {
		ranks[d] = index % sizes[d]
		index /= sizes[d]
	}
	return ranks
}

// BuildGrid constructs the cell grid over an axis-aligned box of the given
// per-dimension lengths. cellSize approximates the desired cell extent; at
// least one cell per dimension is always created.
func BuildGrid(ndims int, lengths []float64, cellSize float64) *Grid {
	ncells := make([]int, ndims)
	faces := make([][]float64, ndims)
	for d := 0; d < ndims; d++ {
		n := int(lengths[d] / cellSize)
		if n < 1 {
			n = 1
		}
		ncells[d] = n
		fs := make([]float64, n+1)
		for i := 0; i <= n; i++ {
			fs[i] = float64(i) * lengths[d] / float64(n)
		}
		faces[d] = fs
	}

	total := 1
	for _, n := range ncells {
		total *= n
	}

	cells := make([]*Cell, total)
	for i := range cells {
		cells[i] = newCell()
	}

	st := strides(ncells)
	for idx := 0; idx < total; idx++ {
		ranks := indexToRanks(idx, ncells)

		isEdge := make([]bool, ndims*2)
		limits := make([]float64, ndims*2)
		neighbours := make([]*Cell, ndims*2)
		for d := 0; d < ndims; d++ {
			isEdge[d*2+int(particle.SideNeg)] = ranks[d] == 0
			isEdge[d*2+int(particle.SidePos)] = ranks[d] == ncells[d]-1
			limits[d*2+int(particle.SideNeg)] = faces[d][ranks[d]]
			limits[d*2+int(particle.SidePos)] = faces[d][ranks[d]+1]

			for _, side := range []particle.BoundarySide{particle.SideNeg, particle.SidePos} {
				nranks := append([]int(nil), ranks...)
				if side == particle.SideNeg {
					if ranks[d] != 0 {
						nranks[d] = ranks[d] - 1
					}
				} else {
					if ranks[d] != ncells[d]-1 {
						nranks[d] = ranks[d] + 1
					}
				}
				nidx := 0
				for dd := 0; dd < ndims; dd++ {
					nidx += nranks[dd] * st[dd]
				}
				neighbours[d*2+int(side)] = cells[nidx]
			}
		}

		cells[idx].Boundaries = buildBoundaries(ndims, isEdge, limits, neighbours)
	}

	g := &Grid{NDims: ndims, NCells: ncells, Faces: faces, Cells: cells, cellsOf: make(map[*particle.Particle][]*Cell)}
	// The heap is (re)built once the initial particle assignment and event
	// scheduling is done, by Grid.InitEvents; a placeholder ordering here
	// would be thrown away immediately since every list starts empty.
	for i, c := range cells {
		c.heapIndex = i
	}
	g.Heap = &Heap{cells: cells}
	return g
}

// candidateRanks returns every cell rank in dimension d whose span
// overlaps [center-radius, center+radius].
func candidateRanks(radius, center float64, faces []float64) []int {
	var ranks []int
	partMin, partMax := center-radius, center+radius
	for rank := 0; rank < len(faces)-1; rank++ {
		cellMin, cellMax := faces[rank], faces[rank+1]
		if cellMin <= partMax && partMin <= cellMax {
			ranks = append(ranks, rank)
		}
	}
	return ranks
}

// AssignParticle registers p to every cell whose AABB overlaps p's
// bounding sphere, enforcing bidirectional registration on each insertion.
func (g *Grid) AssignParticle(p *particle.Particle) {
	perDim := make([][]int, g.NDims)
	for d := 0; d < g.NDims; d++ {
		perDim[d] = candidateRanks(p.Radius, p.Position[d], g.Faces[d])
	}
	nitems := make([]int, g.NDims)
	total := 1
	for d, rs := range perDim {
		nitems[d] = len(rs)
		total *= len(rs)
	}
	st := strides(g.NCells)
	for n := 0; n < total; n++ {
		ranks := indexToRanks(n, nitems)
		idx := 0
		for d := 0; d < g.NDims; d++ {
			idx += perDim[d][ranks[d]] * st[d]
		}
		g.Register(g.Cells[idx], p)
	}
}

// Register adds p to cell's particle list and cell to p's back-reference
// set, together, keeping the two in lockstep. Idempotent: a particle
// already registered to cell is left untouched.
func (g *Grid) Register(cell *Cell, p *particle.Particle) {
	if !cell.AddParticle(p) {
		return
	}
	g.cellsOf[p] = append(g.cellsOf[p], cell)
}

// Deregister removes p from cell's particle list and cell from p's
// back-reference set. Returns an error if the bidirectional invariant was
// already broken.
func (g *Grid) Deregister(cell *Cell, p *particle.Particle) error {
	if err := cell.RemoveParticle(p); err != nil {
		return err
	}
	cells := g.cellsOf[p]
	for i, c := range cells {
		if c == cell {
			g.cellsOf[p] = append(cells[:i], cells[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: cell not found in particle's back-reference set", ErrInvariant)
}

// CellsOf returns every cell currently registered to hold p.
func (g *Grid) CellsOf(p *particle.Particle) []*Cell {
	return g.cellsOf[p]
}
