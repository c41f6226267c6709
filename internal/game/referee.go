package game

import (
	"math/rand"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/rules"
)

// referee owns one table and one rules game and applies actions to them.
// It is shared by the offline Match and the networked Session and is not
// safe for concurrent use.
type referee struct {
	settings physics.Settings
	rng      *rand.Rand
	table    *physics.Table
	game     *rules.Game
	inFlight bool
	// ticks run since the current shot was struck
	ticks int
}

func newReferee(s physics.Settings, rng *rand.Rand, starting rules.Player) *referee {
	r := &referee{
		settings: s,
		rng:      rng,
		game:     rules.New(starting),
	}
	r.rerack()
	return r
}

func (r *referee) rerack() {
	r.table = physics.Rack(r.settings, r.rng)
	r.inFlight = false
}

func (r *referee) hit(a Action) error {
	if r.inFlight {
		return ErrShotInProgress
	}
	if err := r.game.CheckShot(a.Player); err != nil {
		return err
	}
	if r.table.Held() != nil {
		return ErrCueInHand
	}
	if !r.table.ApplyStrike(a.Ball, a.Force, a.Angle) {
		return ErrNoSuchBall
	}
	if err := r.game.RecordShot(a.Player); err != nil {
		return err
	}
	r.inFlight = true
	r.ticks = 0
	return nil
}

func (r *referee) place(a Action) error {
	if r.inFlight {
		return ErrShotInProgress
	}
	if a.Player != r.game.Turn() {
		return rules.ErrNotYourTurn
	}
	held := r.table.Held()
	if held == nil {
		return ErrNothingHeld
	}
	if !r.placeable(held, a.Pos) {
		return ErrIllegalPlacement
	}
	r.table.PlaceHeld(a.Pos)
	return nil
}

// placeable reports whether b fits at pos inside the cushions without
// touching another live ball.
func (r *referee) placeable(b *physics.Ball, pos physics.Vec2) bool {
	lo, hi := r.table.Bounds()
	if pos.X < lo.X+b.Radius || pos.X > hi.X-b.Radius ||
		pos.Y < lo.Y+b.Radius || pos.Y > hi.Y-b.Radius {
		return false
	}
	for _, o := range r.table.Balls() {
		if o == b || !o.CanCollide {
			continue
		}
		if o.Pos.Minus(pos).Magnitude() < o.Radius+b.Radius {
			return false
		}
	}
	return true
}

// step advances the table one tick and reports whether an in-flight shot
// has come to rest.
func (r *referee) step() bool {
	if !r.inFlight {
		return false
	}
	r.table.Update(r.settings.Tick())
	r.ticks++
	return !r.table.InMotion()
}

// settle runs an in-flight shot to rest, bounded by maxTicks.
func (r *referee) settle(maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		if r.step() {
			return
		}
	}
}

func (r *referee) settled() bool {
	return r.inFlight && r.ticks > 0 && !r.table.InMotion()
}

func (r *referee) events() rules.Events {
	return rules.Events{
		Hit:          r.table.Hit(),
		RailContacts: r.table.RailContacts(),
		Pocketed:     r.table.Pocketed(),
	}
}

// judge rules on the settled shot and applies the table side of the
// decision.
func (r *referee) judge() (rules.Events, rules.Decision) {
	ev := r.events()
	d := r.game.Judge(ev)
	r.inFlight = false
	switch {
	case d.ForcedRedo:
		r.rerack()
	case d.BallInHand:
		r.table.TakeCueInHand()
	}
	if d.ResetCounts {
		r.table.ResetCounts()
	}
	return ev, d
}

func (r *referee) pass(a Action) error {
	if r.inFlight {
		return ErrShotInProgress
	}
	return r.game.PassTurn(a.Player)
}

func (r *referee) keep(a Action) error {
	return r.game.Keep(a.Player)
}

func (r *referee) redo(a Action) error {
	if err := r.game.Redo(a.Player); err != nil {
		return err
	}
	r.rerack()
	return nil
}
