package screen

import "github.com/golang/geo/r2"

// NewViewport builds the screen rectangle [x0,y0,x1,y1] in pixels.
func NewViewport(x0, y0, x1, y1 float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x0, Y: y0}, r2.Point{X: x1, Y: y1})
}

// BoundsOf is the smallest rectangle containing every point. It is empty when
// points is empty.
func BoundsOf(points []r2.Point) r2.Rect {
	r := r2.EmptyRect()
	for _, p := range points {
		r = r.AddPoint(p)
	}
	return r
}

func Intersect(a, b r2.Rect) r2.Rect {
	return a.Intersection(b)
}

// Width of r, zero when r is empty.
func Width(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.X.Length()
}

// Height of r, zero when r is empty.
func Height(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.Y.Length()
}
