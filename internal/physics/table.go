package physics

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Table owns the balls, rails and pockets of one playing surface, and the
// per-turn accumulators the rules layer judges a shot by. Update must not be
// called concurrently.
type Table struct {
	settings Settings
	lower    Vec2
	upper    Vec2
	rails    []LineSegment
	pockets  []Circle

	balls []*Ball
	sunk  []*Ball
	held  *Ball

	inMotion           bool
	previouslyInMotion bool

	hit          []int
	railContacts []int
	pocketed     []int
}

// NewTable builds an empty table from validated settings.
func NewTable(s Settings) *Table {
	r := s.PocketRadius()
	L, w := s.TableLength, s.TableWidth
	return &Table{
		settings: s,
		upper:    Vec2{X: L, Y: w},
		rails: []LineSegment{
			{A: Vec2{X: r, Y: 0}, B: Vec2{X: L/2 - r, Y: 0}},
			{A: Vec2{X: r + L/2, Y: 0}, B: Vec2{X: L - r, Y: 0}},
			{A: Vec2{X: r, Y: w}, B: Vec2{X: L/2 - r, Y: w}},
			{A: Vec2{X: r + L/2, Y: w}, B: Vec2{X: L - r, Y: w}},
			{A: Vec2{X: 0, Y: r}, B: Vec2{X: 0, Y: w - r}},
			{A: Vec2{X: L, Y: r}, B: Vec2{X: L, Y: w - r}},
		},
		pockets: []Circle{
			{Center: Vec2{X: 0, Y: 0}, Radius: r},
			{Center: Vec2{X: L / 2, Y: 0}, Radius: r},
			{Center: Vec2{X: L, Y: 0}, Radius: r},
			{Center: Vec2{X: 0, Y: w}, Radius: r},
			{Center: Vec2{X: L / 2, Y: w}, Radius: r},
			{Center: Vec2{X: L, Y: w}, Radius: r},
		},
	}
}

func (t *Table) Settings() Settings          { return t.settings }
func (t *Table) Rails() []LineSegment        { return t.rails }
func (t *Table) Pockets() []Circle           { return t.pockets }
func (t *Table) Bounds() (lower, upper Vec2) { return t.lower, t.upper }

// AddBall puts a ball into the live set.
func (t *Table) AddBall(b *Ball) {
	t.balls = append(t.balls, b)
}

// Balls returns the live balls, including a held cue ball.
func (t *Table) Balls() []*Ball {
	return t.balls
}

// Sunk returns the numbers of every non-cue ball pocketed since racking.
func (t *Table) Sunk() []int {
	out := make([]int, len(t.sunk))
	for i, b := range t.sunk {
		out[i] = b.Number
	}
	return out
}

// Ball finds a live ball by number.
func (t *Table) Ball(number int) *Ball {
	for _, b := range t.balls {
		if b.Number == number {
			return b
		}
	}
	return nil
}

func (t *Table) CueBall() *Ball   { return t.Ball(CueBall) }
func (t *Table) EightBall() *Ball { return t.Ball(EightBall) }

// Held is the ball currently in a player's hand, if any.
func (t *Table) Held() *Ball {
	return t.held
}

func (t *Table) InMotion() bool {
	return t.inMotion
}

func (t *Table) PreviouslyInMotion() bool {
	return t.previouslyInMotion
}

// Hit lists the numbered balls involved in a ball contact this turn, in
// first-contact order.
func (t *Table) Hit() []int {
	return append([]int(nil), t.hit...)
}

// RailContacts lists the numbered balls that touched a rail this turn.
func (t *Table) RailContacts() []int {
	return append([]int(nil), t.railContacts...)
}

// Pocketed lists every ball, cue ball included, pocketed this turn in order.
func (t *Table) Pocketed() []int {
	return append([]int(nil), t.pocketed...)
}

// ResetCounts clears the per-turn accumulators. Only the rules layer calls it,
// after it has judged the turn.
func (t *Table) ResetCounts() {
	t.hit = nil
	t.railContacts = nil
	t.pocketed = nil
}

// ApplyStrike hits the given ball with the cue. angle is the cue's direction
// from the ball, so the impulse acts along angle - π. Force is capped at the
// table's maximum cue force. It returns false when no such ball is live.
func (t *Table) ApplyStrike(number int, force, angle float64) bool {
	b := t.Ball(number)
	if b == nil || !b.CanCollide {
		return false
	}
	force = math.Min(math.Abs(force), t.settings.MaxCueForce)
	b.ApplyForce(t.settings.CueImpactTime, force, angle-math.Pi)
	return true
}

// TakeCueInHand lifts the cue ball off the table for ball in hand.
func (t *Table) TakeCueInHand() {
	cue := t.CueBall()
	if cue == nil {
		return
	}
	cue.Vel = Vec2{}
	cue.CanCollide = false
	t.held = cue
}

// PlaceHeld puts the held ball down at pos. It returns false when nothing is held.
func (t *Table) PlaceHeld(pos Vec2) bool {
	if t.held == nil {
		return false
	}
	t.held.Place(pos)
	t.held.CanCollide = true
	t.held = nil
	return true
}

// Update advances the table by dt seconds: integrate, resolve collisions,
// commit positions, then resolve pockets.
func (t *Table) Update(dt float64) {
	t.previouslyInMotion = t.inMotion
	t.inMotion = false
	for _, b := range t.balls {
		if b.Moving() || b.Striking() {
			b.UpdatePhysics(dt)
			t.inMotion = true
		} else if b.attempted {
			// a strike too weak to move the ball still counts as a shot
			b.attempted = false
			t.inMotion = true
		}
	}
	t.resolveCollisions()
	for _, b := range t.balls {
		if b.CanCollide {
			// a ball shoved by another after its own contacts were resolved
			b.resolveBoundingBox(t.lower, t.upper)
		}
		b.Commit()
	}
	t.resolvePockets()
}

// Settle ticks the table until it stops moving or maxTicks elapse, returning
// the number of ticks run.
func (t *Table) Settle(maxTicks int) int {
	dt := t.settings.Tick()
	ticks := 0
	for ticks < maxTicks {
		t.Update(dt)
		ticks++
		if !t.inMotion {
			break
		}
	}
	return ticks
}

func (t *Table) resolveCollisions() {
	for _, b := range t.balls {
		if b.colliding || !b.CanCollide || !b.Moving() {
			continue
		}
		struck := b.resolveContacts(t.balls, t.rails, t.lower, t.upper)
		if b.colliding {
			t.recordHit(b)
			for _, o := range struck {
				t.recordHit(o)
			}
		}
		if b.hitRail && !b.IsCue() && !contains(t.railContacts, b.Number) {
			t.railContacts = append(t.railContacts, b.Number)
		}
	}
}

func (t *Table) recordHit(b *Ball) {
	if b.IsCue() || contains(t.hit, b.Number) {
		return
	}
	t.hit = append(t.hit, b.Number)
}

func (t *Table) resolvePockets() {
	live := t.balls[:0]
	for _, b := range t.balls {
		if b.Moving() && t.inPocket(b.Pos) {
			t.pocketed = append(t.pocketed, b.Number)
			if !b.IsCue() {
				t.sunk = append(t.sunk, b)
				continue
			}
			b.Vel = Vec2{}
			b.CanCollide = false
			t.held = b
		}
		live = append(live, b)
	}
	for i := len(live); i < len(t.balls); i++ {
		t.balls[i] = nil
	}
	t.balls = live
}

func (t *Table) inPocket(p Vec2) bool {
	for _, pocket := range t.pockets {
		if pocket.Contains(p) {
			return true
		}
	}
	return false
}

func contains(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

// BallState is the serialisable view of a live ball.
type BallState struct {
	Number  int     `json:"number"`
	Striped bool    `json:"striped"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Held    bool    `json:"held,omitempty"`
}

// Snapshot returns the live balls in table order.
func (t *Table) Snapshot() []BallState {
	out := make([]BallState, 0, len(t.balls))
	for _, b := range t.balls {
		out = append(out, BallState{
			Number:  b.Number,
			Striped: b.Striped,
			X:       b.Pos.X,
			Y:       b.Pos.Y,
			Held:    b == t.held,
		})
	}
	return out
}

// Digest fingerprints the settled ball layout. Positions are rounded to the
// micrometre so peers running the same shot produce the same value.
func (t *Table) Digest() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, b := range t.balls {
		p := b.Pos.Round(6)
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(b.Number)))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.X))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Y))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
