package physics

import "math"

const (
	// CueBall is the number carried by the unnumbered cue ball.
	CueBall = 0
	// EightBall is the black ball.
	EightBall = 8

	// residualStep is the time slice used to walk two balls apart when the
	// primary overlap correction leaves them touching.
	residualStep     = 0.0001
	maxResidualSteps = 1024
	separationSlack  = 1e-9
)

type impulse struct {
	force     Vec2
	remaining float64
}

// Ball is a simulated ball. Pos is the committed position for the current
// tick; NewPos is the integrated position collisions are resolved against
// before Commit.
type Ball struct {
	Number     int
	Striped    bool
	Pos        Vec2
	NewPos     Vec2
	OldPos     Vec2
	Vel        Vec2
	Radius     float64
	Mass       float64
	CanCollide bool

	settings       Settings
	normalContact  float64
	airCoefficient float64
	impulse        *impulse
	attempted      bool
	colliding      bool
	hitRail        bool
}

// NewBall creates a ball at pos. Number 0 is the cue ball; numbers above 8 are striped.
func NewBall(pos Vec2, number int, s Settings) *Ball {
	area := 2 * math.Pi * s.BallRadius * s.BallRadius
	return &Ball{
		Number:         number,
		Striped:        number > EightBall,
		Pos:            pos,
		NewPos:         pos,
		OldPos:         pos,
		Radius:         s.BallRadius,
		Mass:           s.BallMass,
		CanCollide:     true,
		settings:       s,
		normalContact:  -s.BallMass * s.Gravity,
		airCoefficient: -s.AirDensity * s.BallDrag * area / 2,
	}
}

func (b *Ball) IsCue() bool {
	return b.Number == CueBall
}

// Shape is the ball's outline at its integrated position.
func (b *Ball) Shape() Circle {
	return Circle{Center: b.NewPos, Radius: b.Radius}
}

func (b *Ball) Moving() bool {
	return !b.Vel.IsZero()
}

// Striking reports whether a cue impulse is still being applied.
func (b *Ball) Striking() bool {
	return b.impulse != nil
}

// ApplyForce starts a cue impulse of the given magnitude (N) along angle
// (radians) lasting duration seconds. A strike on a resting ball that cannot
// overcome static friction is rejected, but it is still recorded as attempted
// so the table reports a shot in progress. It returns whether the impulse was accepted.
func (b *Ball) ApplyForce(duration, magnitude, angle float64) bool {
	b.attempted = true
	if b.Vel.MagnitudeSquared() == 0 && magnitude <= b.settings.StaticFriction*-b.normalContact {
		return false
	}
	b.impulse = &impulse{force: FromAngle(angle, magnitude), remaining: duration}
	return true
}

// UpdatePhysics integrates the ball's motion over dt seconds.
func (b *Ball) UpdatePhysics(dt float64) {
	b.colliding = false
	b.hitRail = false

	if b.impulse != nil {
		if remaining := b.impulse.remaining; remaining < dt {
			b.UpdatePhysics(remaining)
			b.impulse = nil
			dt -= remaining
		} else {
			b.impulse.remaining -= dt
		}
	}

	// normalContact is negative, so friction opposes the direction of travel
	friction := b.Vel.Normalize().Times(b.settings.RollingFriction * b.normalContact)
	drag := b.Vel.Times(b.airCoefficient * b.Vel.Magnitude())
	resultant := friction.Plus(drag)
	if b.impulse != nil {
		resultant = resultant.Plus(b.impulse.force)
		if b.impulse.remaining <= 0 {
			b.impulse = nil
		}
	}

	previous := b.Vel
	b.Vel = b.Vel.Plus(resultant.Div(b.Mass).Times(dt))
	b.NewPos = b.NewPos.Plus(b.Vel.Times(dt))

	// rolling friction can never reverse a ball
	if !b.Vel.IsZero() && !previous.IsZero() && previous.Dot(b.Vel) < 0 {
		b.Vel = Vec2{}
	}
	if math.Abs(b.Vel.X) < b.settings.LimitingVelocity {
		b.Vel.X = 0
	}
	if math.Abs(b.Vel.Y) < b.settings.LimitingVelocity {
		b.Vel.Y = 0
	}
}

// Commit makes the integrated position authoritative.
func (b *Ball) Commit() {
	b.OldPos = b.Pos
	b.Pos = b.NewPos
}

// Place moves a ball without any motion history, used for racking and ball in hand.
func (b *Ball) Place(pos Vec2) {
	b.Pos, b.NewPos, b.OldPos = pos, pos, pos
	b.Vel = Vec2{}
	b.impulse = nil
}

// CollideWithLine resolves a detected contact with a rail: the ball is pushed
// out of the rail by twice its penetration and the velocity component normal
// to the rail is reflected and scaled by the table restitution.
func (b *Ball) CollideWithLine(l LineSegment) {
	dir := l.Direction().Normalize()
	perp := dir.Perpendicular()
	normalSpeed := perp.Dot(b.Vel)

	overlap := edgeOverlap(b.NewPos.Plus(perp.Times(b.Radius)), l.A, dir)
	if overlap.Dot(b.Vel) >= 0 {
		overlap = edgeOverlap(b.NewPos.Minus(perp.Times(b.Radius)), l.A, dir)
	}
	b.NewPos = b.NewPos.Plus(overlap.Times(2))
	b.Vel = b.Vel.Minus(perp.Times(normalSpeed * (1 + b.settings.TableRestitution)))
}

// edgeOverlap is the vector from a point on the ball's edge to its projection on the rail line.
func edgeOverlap(edge, origin, dir Vec2) Vec2 {
	projected := origin.Plus(dir.Times(edge.Minus(origin).Dot(dir)))
	return projected.Minus(edge)
}

// CollideWithBall resolves a detected contact between b and o. Positional
// overlap is undone in proportion to each ball's share of the total speed,
// then the normal velocity components are exchanged using the ball
// restitution while the tangential components are kept.
func (b *Ball) CollideWithBall(o *Ball) {
	selfBefore, otherBefore := b.Vel, o.Vel

	normal := b.NewPos.Minus(o.NewPos)
	factor := -1.0
	if normal.Dot(b.OldPos.Minus(o.OldPos)) > 0 {
		factor = 1
	}
	overlap := (b.Radius + o.Radius) - factor*normal.Magnitude()

	selfSpeed, otherSpeed := b.Vel.Magnitude(), o.Vel.Magnitude()
	if total := selfSpeed + otherSpeed; total != 0 {
		b.NewPos = b.NewPos.Minus(b.Vel.Normalize().Times(overlap * (selfSpeed / total) * 2))
		o.NewPos = o.NewPos.Minus(o.Vel.Normalize().Times(overlap * (otherSpeed / total) * 2))
	} else {
		b.NewPos = b.NewPos.Minus(b.NewPos.Minus(b.OldPos).Normalize().Times(overlap * 0.5))
		o.NewPos = o.NewPos.Minus(o.NewPos.Minus(o.OldPos).Normalize().Times(overlap * 0.5))
	}

	n := normal.Normalize()
	t := n.Perpendicular()
	u1, u2 := b.Vel.Dot(n), o.Vel.Dot(n)
	e := b.settings.BallRestitution

	selfNormal := n.Times(0.5 * ((1-e)*u1 + (1+e)*u2))
	b.Vel = selfNormal.Plus(t.Times(selfBefore.Dot(t)))
	o.Vel = n.Times(u1 + u2).Minus(selfNormal).Plus(t.Times(otherBefore.Dot(t)))

	// Still touching: keep integrating while both balls move. Once either has
	// stopped, back each ball out along the way it arrived, one pre-collision
	// velocity step at a time.
	for i := 0; i < maxResidualSteps && CircleCircle(b.Shape(), o.Shape()); i++ {
		if b.Vel.IsZero() || o.Vel.IsZero() {
			if selfBefore.IsZero() && otherBefore.IsZero() {
				break
			}
			b.NewPos = b.NewPos.Minus(selfBefore.Times(residualStep))
			o.NewPos = o.NewPos.Minus(otherBefore.Times(residualStep))
			continue
		}
		b.UpdatePhysics(residualStep)
		o.UpdatePhysics(residualStep)
	}
	if CircleCircle(b.Shape(), o.Shape()) {
		separate(b, o, n)
	}
}

// separate pushes two touching balls apart along the collision normal n. It
// only runs when neither ball has any motion to back out along.
func separate(b, o *Ball, n Vec2) {
	gap := b.NewPos.Minus(o.NewPos)
	if d := gap.Magnitude(); d > 0 {
		n = gap.Div(d)
	} else if n.IsZero() {
		n = Vec2{X: 1}
	}
	push := (b.Radius+o.Radius-gap.Magnitude())/2 + separationSlack
	b.NewPos = b.NewPos.Plus(n.Times(push))
	o.NewPos = o.NewPos.Minus(n.Times(push))
}

// resolveBoundingBox reflects a ball whose centre escaped the table rectangle
// back inside it. It only matters when a ball moved far enough in one tick to
// skip over a rail entirely.
func (b *Ball) resolveBoundingBox(lo, hi Vec2) bool {
	out := false
	e := b.settings.TableRestitution
	if !(lo.X < b.NewPos.X && b.NewPos.X < hi.X) {
		edge := hi.X
		if lo.X >= b.NewPos.X {
			edge = lo.X
		}
		b.NewPos.X -= 2 * (b.NewPos.X - edge)
		b.Vel.X = -e * b.Vel.X
		out = true
	}
	if !(lo.Y < b.NewPos.Y && b.NewPos.Y < hi.Y) {
		edge := hi.Y
		if lo.Y >= b.NewPos.Y {
			edge = lo.Y
		}
		b.NewPos.Y -= 2 * (b.NewPos.Y - edge)
		b.Vel.Y = -e * b.Vel.Y
		out = true
	}
	if out {
		b.NewPos.X = math.Min(math.Max(b.NewPos.X, lo.X), hi.X)
		b.NewPos.Y = math.Min(math.Max(b.NewPos.Y, lo.Y), hi.Y)
	}
	return out
}

// resolveContacts tests b against every other collidable ball and every rail,
// resolving each contact found. It returns the balls b struck.
func (b *Ball) resolveContacts(balls []*Ball, rails []LineSegment, lo, hi Vec2) []*Ball {
	var struck []*Ball
	for _, o := range balls {
		if o == b || !o.CanCollide || !CircleCircle(b.Shape(), o.Shape()) {
			continue
		}
		struck = append(struck, o)
		b.CollideWithBall(o)
		b.colliding, o.colliding = true, true
	}
	for _, rail := range rails {
		if CircleLine(b.Shape(), rail) {
			b.hitRail = true
			b.CollideWithLine(rail)
		}
	}
	if !b.hitRail {
		b.hitRail = b.resolveBoundingBox(lo, hi)
	}
	return struck
}
