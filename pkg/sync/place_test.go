package sync

import (
	"math"
	"testing"
)

func TestPlaceNonOverlap(t *testing.T) {
	p := NewPlacer(297, 210)

	// Seed with manually moved parts.
	existing := [][2]float64{{100, 50}, {120, 50}, {101.3, 75.2}}
	for _, e := range existing {
		p.OccupyPoint(e[0], e[1])
	}

	var placed [][2]float64
	for range 12 {
		x, y, ok := p.Place()
		if !ok {
			t.Fatal("Sweep exhausted on a mostly empty sheet")
		}
		placed = append(placed, [2]float64{x, y})
	}

	all := append(existing, placed...)
	const minSpacing = placeCell * float64(compCells) / 2
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			dx := math.Abs(all[i][0] - all[j][0])
			dy := math.Abs(all[i][1] - all[j][1])
			if dx < minSpacing && dy < minSpacing {
				t.Errorf("Overlap between %v and %v", all[i], all[j])
			}
		}
	}
}

func TestPlaceNearPrefersAnchor(t *testing.T) {
	p := NewPlacer(297, 210)
	p.OccupyPoint(100, 100)

	x, y, ok := p.PlaceNear(100, 100)
	if !ok {
		t.Fatal("Expected a slot near the anchor")
	}
	dist := math.Hypot(x-100, y-100)
	if dist > 40 {
		t.Errorf("Slot too far from anchor: (%v, %v), distance %v", x, y, dist)
	}
	if dist < placeCell*float64(compCells)-placeCell {
		t.Errorf("Slot overlaps the anchor box: (%v, %v)", x, y)
	}
}

func TestPlaceDeterministic(t *testing.T) {
	run := func() [][2]float64 {
		p := NewPlacer(297, 210)
		p.OccupyPoint(50, 50)
		var out [][2]float64
		for range 5 {
			x, y, _ := p.PlaceNear(50, 50)
			out = append(out, [2]float64{x, y})
		}
		return out
	}

	first := run()
	for range 5 {
		if got := run(); !equalPoints(got, first) {
			t.Fatalf("Placement not deterministic: %v vs %v", got, first)
		}
	}
}

func TestPlaceFallbackBeyondBoundingBox(t *testing.T) {
	p := NewPlacer(100, 100)

	// Fill the small sheet completely.
	var lastOK float64
	exhausted := false
	for range 200 {
		x, _, ok := p.Place()
		if ok {
			if x > lastOK {
				lastOK = x
			}
			continue
		}
		exhausted = true
		if x <= lastOK {
			t.Errorf("Fallback slot %v not beyond bounding box (max placed %v)", x, lastOK)
		}
		break
	}
	if !exhausted {
		t.Fatal("Expected the sweep to exhaust a 100x100 sheet")
	}
}

func TestPlaceSheetReservesOutline(t *testing.T) {
	p := NewPlacer(297, 210)
	x, y, ok := p.PlaceSheet(25.4, 15.24)
	if !ok {
		t.Fatal("Expected a sheet slot on an empty page")
	}

	// A component placed afterwards must not land inside the outline.
	cx, cy, ok := p.Place()
	if !ok {
		t.Fatal("Expected a component slot")
	}
	if cx >= x-placeCell && cx <= x+25.4+placeCell && cy >= y-placeCell && cy <= y+15.24+placeCell {
		t.Errorf("Component (%v, %v) placed inside sheet outline at (%v, %v)", cx, cy, x, y)
	}
}

func equalPoints(a, b [][2]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
