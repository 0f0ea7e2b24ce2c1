package schematic

import (
	"math"
)

// Schematic coordinates grow downward while symbol bodies are defined
// with +y up, so placing a pin means rotating its local offset by the
// instance angle, applying the mirror axis, then flipping y.

// PinWorldPosition computes the absolute position of one pin of a
// placed symbol, using the pin offsets embedded in lib_symbols. The
// pin connection point is at the far end of the pin stem.
func (s *Schematic) PinWorldPosition(sym *Symbol, pinNumber string) (float64, float64, bool) {
	for _, pin := range s.LibSymbolPins(sym.LibID()) {
		if pin.Number != pinNumber {
			continue
		}
		x, y := pinEndpoint(pin)
		wx, wy := symbolTransform(sym, x, y)
		return wx, wy, true
	}
	return 0, 0, false
}

// PinPositions returns the absolute connection point of every pin of
// a placed symbol, keyed by pin number.
func (s *Schematic) PinPositions(sym *Symbol) map[string][2]float64 {
	out := make(map[string][2]float64)
	for _, pin := range s.LibSymbolPins(sym.LibID()) {
		x, y := pinEndpoint(pin)
		wx, wy := symbolTransform(sym, x, y)
		out[pin.Number] = [2]float64{wx, wy}
	}
	return out
}

// pinEndpoint returns the pin's connection point in symbol-local
// coordinates. Library pins are anchored at the stem origin pointing
// along their own angle; the wire attaches at the anchor itself.
func pinEndpoint(pin LibPin) (float64, float64) {
	return pin.X, pin.Y
}

// symbolTransform maps a symbol-local offset to schematic
// coordinates for a placed instance.
func symbolTransform(sym *Symbol, lx, ly float64) (float64, float64) {
	sx, sy, angle := sym.Position()

	switch sym.Mirror() {
	case "x":
		ly = -ly
	case "y":
		lx = -lx
	}

	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	rx := lx*cos - ly*sin
	ry := lx*sin + ly*cos

	return round2(sx + rx), round2(sy - ry)
}

// round2 snaps to 0.01mm so positions computed through trig compare
// exactly against positions read from the document.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SamePoint reports whether two positions coincide within the
// codec's coordinate resolution.
func SamePoint(ax, ay, bx, by float64) bool {
	const eps = 0.011
	return math.Abs(ax-bx) < eps && math.Abs(ay-by) < eps
}
