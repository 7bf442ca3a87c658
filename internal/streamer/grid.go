package streamer

import "math"

// maxCellSpan is the widest footprint, in cells per axis, entered into the
// cell map. Wider footprints are kept in the oversize set instead, which
// every query returns.
const maxCellSpan = 64

// Grid is a cell-based index over the ground plane (x, y). Each slot is
// entered into every cell its activation footprint touches, so a point
// query returns every slot that might be in range of that point; the
// caller does the exact distance test.
// Accessed only from the game loop goroutine, no locks.
type Grid struct {
	cellSize float32
	cells    map[cellKey]map[int]struct{}
	rects    map[int]cellRect
	oversize map[int]struct{}
}

type cellKey struct {
	cx int32
	cy int32
}

type cellRect struct {
	minX, minY int32
	maxX, maxY int32
	oversize   bool
}

func NewGrid(cellSize float32) *Grid {
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[int]struct{}),
		rects:    make(map[int]cellRect),
		oversize: make(map[int]struct{}),
	}
}

func (g *Grid) cellCoord(v float64) float64 {
	return math.Floor(v / float64(g.cellSize))
}

func (g *Grid) toCellCoord(v float32) int32 {
	c := g.cellCoord(float64(v))
	if math.IsNaN(c) || c < math.MinInt32 || c > math.MaxInt32 {
		// never a real cell key; Query on it finds nothing but oversize slots
		return math.MinInt32
	}
	return int32(c)
}

// rect computes the cells covered by a footprint in float64 so huge or
// non-finite values never wrap the int32 conversion.
func (g *Grid) rect(x, y, reach float32) cellRect {
	if reach < 0 {
		reach = 0
	}
	minX := g.cellCoord(float64(x) - float64(reach))
	maxX := g.cellCoord(float64(x) + float64(reach))
	minY := g.cellCoord(float64(y) - float64(reach))
	maxY := g.cellCoord(float64(y) + float64(reach))
	for _, c := range [...]float64{minX, maxX, minY, maxY} {
		if math.IsNaN(c) || c <= math.MinInt32 || c >= math.MaxInt32 {
			return cellRect{oversize: true}
		}
	}
	if maxX-minX >= maxCellSpan || maxY-minY >= maxCellSpan {
		return cellRect{oversize: true}
	}
	return cellRect{minX: int32(minX), minY: int32(minY), maxX: int32(maxX), maxY: int32(maxY)}
}

// Insert places a slot whose activation footprint is the square of half
// side reach around (x, y).
func (g *Grid) Insert(slot int, x, y, reach float32) {
	r := g.rect(x, y, reach)
	g.rects[slot] = r
	if r.oversize {
		g.oversize[slot] = struct{}{}
		return
	}
	for cx := r.minX; cx <= r.maxX; cx++ {
		for cy := r.minY; cy <= r.maxY; cy++ {
			k := cellKey{cx: cx, cy: cy}
			cell := g.cells[k]
			if cell == nil {
				cell = make(map[int]struct{})
				g.cells[k] = cell
			}
			cell[slot] = struct{}{}
		}
	}
}

// Remove takes a slot out of the grid. Removing an absent slot is a no-op.
func (g *Grid) Remove(slot int) {
	r, ok := g.rects[slot]
	if !ok {
		return
	}
	delete(g.rects, slot)
	if r.oversize {
		delete(g.oversize, slot)
		return
	}
	for cx := r.minX; cx <= r.maxX; cx++ {
		for cy := r.minY; cy <= r.maxY; cy++ {
			k := cellKey{cx: cx, cy: cy}
			cell := g.cells[k]
			if cell == nil {
				continue
			}
			delete(cell, slot)
			if len(cell) == 0 {
				delete(g.cells, k)
			}
		}
	}
}

// Move updates a slot's footprint, touching the cells only when it changed.
func (g *Grid) Move(slot int, x, y, reach float32) {
	if old, ok := g.rects[slot]; ok && old == g.rect(x, y, reach) {
		return
	}
	g.Remove(slot)
	g.Insert(slot, x, y, reach)
}

// Query returns the slots whose footprint covers the cell containing (x, y),
// plus every oversize slot.
func (g *Grid) Query(x, y float32) []int {
	cell := g.cells[cellKey{cx: g.toCellCoord(x), cy: g.toCellCoord(y)}]
	result := make([]int, 0, len(cell)+len(g.oversize))
	for slot := range cell {
		result = append(result, slot)
	}
	for slot := range g.oversize {
		result = append(result, slot)
	}
	return result
}

// Len returns the number of slots in the grid.
func (g *Grid) Len() int { return len(g.rects) }

// Oversize returns the number of slots kept outside the cell map.
func (g *Grid) Oversize() int { return len(g.oversize) }
