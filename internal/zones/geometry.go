package zones

import "math"

const edgeEpsilon = 1e-9

// pointInPolygon is an inclusive even-odd test: points on an edge or vertex
// are inside. Polygons with fewer than three vertices contain nothing.
func pointInPolygon(x, y float64, poly []Point) bool {
	n := len(poly)
	if n < MinVertices {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := float64(poly[i].X), float64(poly[i].Y)
		xj, yj := float64(poly[j].X), float64(poly[j].Y)

		if onSegment(x, y, xi, yi, xj, yj) {
			return true
		}

		if (yi > y) != (yj > y) {
			crossX := xi + (y-yi)*(xj-xi)/(yj-yi)
			if x < crossX {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(px, py, ax, ay, bx, by float64) bool {
	cross := (bx-ax)*(py-ay) - (by-ay)*(px-ax)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return px >= math.Min(ax, bx)-edgeEpsilon && px <= math.Max(ax, bx)+edgeEpsilon &&
		py >= math.Min(ay, by)-edgeEpsilon && py <= math.Max(ay, by)+edgeEpsilon
}
