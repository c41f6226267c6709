package physics

// Circle is used both for ball outlines and for pockets.
type Circle struct {
	Center Vec2
	Radius float64
}

// Contains reports whether p lies inside or on the circle.
func (c Circle) Contains(p Vec2) bool {
	return p.Minus(c.Center).MagnitudeSquared() <= c.Radius*c.Radius
}

// LineSegment is a rail (or any other straight edge) between two endpoints.
type LineSegment struct {
	A Vec2 `json:"a"`
	B Vec2 `json:"b"`
}

func NewLineSegment(a, b Vec2) LineSegment {
	return LineSegment{A: a, B: b}
}

// Direction is the vector from A to B.
func (l LineSegment) Direction() Vec2 {
	return l.B.Minus(l.A)
}

// WithinBounds reports whether p lies strictly between the endpoints on
// either the x or the y axis. For axis-aligned rails this is the segment's extent.
func (l LineSegment) WithinBounds(p Vec2) bool {
	return between(p.X, l.A.X, l.B.X) || between(p.Y, l.A.Y, l.B.Y)
}

func between(v, a, b float64) bool {
	return (a < v && v < b) || (b < v && v < a)
}

// CircleCircle reports whether two circles touch or overlap. Full containment
// of one circle in the other is not reported as a collision.
func CircleCircle(a, b Circle) bool {
	d2 := b.Center.Minus(a.Center).MagnitudeSquared()
	sum := a.Radius + b.Radius
	if d2 > sum*sum {
		return false
	}
	diff := a.Radius - b.Radius
	return d2 >= diff*diff
}

// CircleLine reports whether a circle touches a segment. The centre is
// projected onto the infinite line; when the projection falls outside the
// segment the nearer endpoint is tested instead, which catches end-cap clips.
func CircleLine(c Circle, l LineSegment) bool {
	r2 := c.Radius * c.Radius
	dir := l.Direction().Normalize()
	projected := l.A.Plus(dir.Times(c.Center.Minus(l.A).Dot(dir)))
	if l.WithinBounds(projected) {
		return c.Center.Minus(projected).MagnitudeSquared() <= r2
	}
	da := l.A.Minus(c.Center).MagnitudeSquared()
	db := l.B.Minus(c.Center).MagnitudeSquared()
	if db < da {
		da = db
	}
	return da <= r2
}
