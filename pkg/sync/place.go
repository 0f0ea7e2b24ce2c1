package sync

import "math"

// Placement works on a coarse occupancy grid. Entities reserve a
// rectangle of cells around their anchor; new entities take the
// nearest free rectangle, preferring the neighborhood of an anchor
// position when one is known (a connected, already-placed part) and
// otherwise sweeping the sheet row by row. Existing entities are
// never moved.

const (
	// placeCell is the placement grid pitch in mm, the standard
	// schematic grid doubled so parts do not sit edge to edge.
	placeCell = 2.54

	// compCells is the edge length, in cells, of the square a
	// component reserves. Six cells (15.24mm) covers a small symbol
	// body plus clearance on every side.
	compCells = 6

	// searchRings bounds the spiral search around an anchor.
	searchRings = 40
)

type cell struct{ x, y int }

// Placer tracks sheet occupancy for one fragment.
type Placer struct {
	occupied map[cell]bool
	width    int // sheet width in cells, sweep bound
	height   int // sheet height in cells, sweep bound
	margin   int
}

// NewPlacer creates a placer for a sheet of the given drawable size
// in mm.
func NewPlacer(sheetW, sheetH float64) *Placer {
	return &Placer{
		occupied: make(map[cell]bool),
		width:    int(sheetW / placeCell),
		height:   int(sheetH / placeCell),
		margin:   10,
	}
}

// OccupyPoint reserves the standard component rectangle centered on
// an existing anchor position.
func (p *Placer) OccupyPoint(x, y float64) {
	p.reserve(toCell(x, y), compCells, compCells)
}

// OccupyRect reserves an explicit rectangle, used for sheet outlines.
func (p *Placer) OccupyRect(x, y, w, h float64) {
	origin := toCell(x, y)
	cw := int(math.Ceil(w/placeCell)) + 2
	ch := int(math.Ceil(h/placeCell)) + 2
	for dx := -1; dx < cw; dx++ {
		for dy := -1; dy < ch; dy++ {
			p.occupied[cell{origin.x + dx, origin.y + dy}] = true
		}
	}
}

// PlaceNear finds the nearest free component slot to the anchor,
// spiralling outward over a bounded area. The returned position is
// reserved. ok is false when the bound was hit and the fallback slot
// beyond the occupied bounding box was used instead.
func (p *Placer) PlaceNear(x, y float64) (float64, float64, bool) {
	center := toCell(x, y)
	for ring := 1; ring <= searchRings; ring++ {
		for _, c := range ringCells(center, ring) {
			if p.freeAround(c, compCells, compCells) && p.inBounds(c) {
				p.reserve(c, compCells, compCells)
				return fromCell(c)
			}
		}
	}
	fx, fy := p.fallback()
	return fx, fy, false
}

// Place finds the first free component slot in a deterministic
// row-by-row sweep of the sheet. ok is false when the sweep area was
// exhausted and the fallback slot was used.
func (p *Placer) Place() (float64, float64, bool) {
	for yc := p.margin; yc <= p.height-p.margin; yc += compCells {
		for xc := p.margin; xc <= p.width-p.margin; xc += compCells {
			c := cell{xc, yc}
			if p.freeAround(c, compCells, compCells) {
				p.reserve(c, compCells, compCells)
				return fromCell(c)
			}
		}
	}
	fx, fy := p.fallback()
	return fx, fy, false
}

// PlaceSheet finds a free slot for a sheet outline of the given size,
// sweeping like Place. The outline's top-left corner is returned.
func (p *Placer) PlaceSheet(w, h float64) (float64, float64, bool) {
	cw := int(math.Ceil(w/placeCell)) + 2
	ch := int(math.Ceil(h/placeCell)) + 2
	for yc := p.margin; yc <= p.height-p.margin; yc += ch {
		for xc := p.margin; xc <= p.width-p.margin; xc += cw {
			if p.freeRect(cell{xc, yc}, cw, ch) {
				p.reserveRect(cell{xc, yc}, cw, ch)
				return fromCell(cell{xc, yc})
			}
		}
	}
	fx, fy := p.fallback()
	p.reserveRect(toCell(fx, fy), cw, ch)
	return fx, fy, false
}

// fallback reserves the next column beyond everything placed so far.
// Placement never fails; it may be suboptimal.
func (p *Placer) fallback() (float64, float64) {
	maxX := p.margin
	for c := range p.occupied {
		if c.x > maxX {
			maxX = c.x
		}
	}
	slot := cell{maxX + compCells, p.margin}
	for !p.freeAround(slot, compCells, compCells) {
		slot.y += compCells
	}
	p.reserve(slot, compCells, compCells)
	x, y, _ := fromCell(slot)
	return x, y
}

// freeAround checks a w-by-h cell rectangle centered on c.
func (p *Placer) freeAround(c cell, w, h int) bool {
	return p.freeRect(cell{c.x - w/2, c.y - h/2}, w, h)
}

func (p *Placer) freeRect(origin cell, w, h int) bool {
	for dx := 0; dx < w; dx++ {
		for dy := 0; dy < h; dy++ {
			if p.occupied[cell{origin.x + dx, origin.y + dy}] {
				return false
			}
		}
	}
	return true
}

func (p *Placer) reserve(c cell, w, h int) {
	p.reserveRect(cell{c.x - w/2, c.y - h/2}, w, h)
}

func (p *Placer) reserveRect(origin cell, w, h int) {
	for dx := 0; dx < w; dx++ {
		for dy := 0; dy < h; dy++ {
			p.occupied[cell{origin.x + dx, origin.y + dy}] = true
		}
	}
}

func (p *Placer) inBounds(c cell) bool {
	return c.x >= p.margin/2 && c.y >= p.margin/2 &&
		c.x <= p.width+p.margin && c.y <= p.height+p.margin
}

// ringCells enumerates the cells at Chebyshev distance ring from
// center in a fixed clockwise order starting at the top-left corner.
func ringCells(center cell, ring int) []cell {
	var out []cell
	for dx := -ring; dx <= ring; dx++ {
		out = append(out, cell{center.x + dx, center.y - ring})
	}
	for dy := -ring + 1; dy <= ring; dy++ {
		out = append(out, cell{center.x + ring, center.y + dy})
	}
	for dx := ring - 1; dx >= -ring; dx-- {
		out = append(out, cell{center.x + dx, center.y + ring})
	}
	for dy := ring - 1; dy >= -ring+1; dy-- {
		out = append(out, cell{center.x - ring, center.y + dy})
	}
	return out
}

func toCell(x, y float64) cell {
	return cell{int(math.Round(x / placeCell)), int(math.Round(y / placeCell))}
}

func fromCell(c cell) (float64, float64, bool) {
	return float64(c.x) * placeCell, float64(c.y) * placeCell, true
}
