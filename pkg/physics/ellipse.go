// pkg/physics/ellipse.go
package physics

import "math"

// Ellipse is an axis-aligned ellipse centered on the origin with its major
// axis along X. The focus sits at +FocalOffset on the X axis.
type Ellipse struct {
	SemiMajor   float64
	SemiMinor   float64
	FocalOffset float64
}

// PointAt returns the point on the ellipse at the given parametric angle
// (radians). Angle zero is the periapsis side, where the focus lies.
func (e Ellipse) PointAt(theta float64) Vector2D {
	return Vector2D{
		X: e.SemiMajor * math.Cos(theta),
		Y: e.SemiMinor * math.Sin(theta),
	}
}

// Focus returns the focus the orbit is drawn around.
func (e Ellipse) Focus() Vector2D {
	return Vector2D{X: e.FocalOffset}
}

// FocusDistance returns the distance from the focus to p.
func (e Ellipse) FocusDistance(p Vector2D) float64 {
	return p.Distance(e.Focus())
}
