package rules

import "sort"

const (
	cueBall   = 0
	eightBall = 8
)

// Foul reasons reported to both players.
const (
	ReasonNoHit          = "Fouled by failure to hit any ball."
	ReasonEightFirst     = "Fouled by hitting the 8-ball first when you still have balls left to pocket."
	ReasonOpponentFirst  = "Fouled by hitting one of your opponent's balls first instead of your own."
	ReasonNoRailOrPocket = "Fouled by failure to either pocket a ball or hit a numbered ball into a rail."
	ReasonCuePocketed    = "Fouled by pocketing the cue ball."
)

// minBreakRails is how many distinct balls must reach a rail on a break that
// pockets nothing.
const minBreakRails = 4

// Events is what the table recorded during one shot, as ball numbers.
type Events struct {
	Hit          []int
	RailContacts []int
	Pocketed     []int
}

func striped(n int) bool { return n > eightBall }

// Game is the 8-ball rules state machine for one match. It is not safe for
// concurrent use; the owning session serialises every call.
type Game struct {
	turn         Player
	isBreak      bool
	isOpen       bool
	canShoot     bool
	canPass      bool
	awaitingRedo bool
	over         bool
	winner       Player

	assigned  bool
	p1Striped bool
	// remaining group balls still on the table, keyed by striped.
	remaining map[bool]map[int]struct{}

	stats [2]Stats
}

// New starts a match where starting breaks.
func New(starting Player) *Game {
	g := &Game{}
	g.Reset(starting)
	return g
}

// Reset re-racks the rules state with starting to break. Stats are kept.
func (g *Game) Reset(starting Player) {
	if !starting.Valid() {
		starting = P1
	}
	g.turn = starting
	g.isBreak = true
	g.isOpen = true
	g.canShoot = true
	g.canPass = false
	g.awaitingRedo = false
	g.over = false
	g.winner = Nobody
	g.assigned = false
	g.p1Striped = false
	g.remaining = map[bool]map[int]struct{}{false: {}, true: {}}
	for n := 1; n <= 15; n++ {
		if n != eightBall {
			g.remaining[striped(n)][n] = struct{}{}
		}
	}
}

func (g *Game) Turn() Player   { return g.turn }
func (g *Game) IsBreak() bool  { return g.isBreak }
func (g *Game) IsOpen() bool   { return g.isOpen }
func (g *Game) CanShoot() bool { return g.canShoot }
func (g *Game) CanPass() bool  { return g.canPass }
func (g *Game) Over() bool     { return g.over }
func (g *Game) Winner() Player { return g.winner }

// Stats returns a copy of p's counters.
func (g *Game) Stats(p Player) Stats {
	if !p.Valid() {
		return Stats{}
	}
	return g.stats[p.index()]
}

// Groups reports whether player 1 owns the striped balls. ok is false while
// the groups are unassigned.
func (g *Game) Groups() (p1Striped, ok bool) {
	return g.p1Striped, g.assigned
}

func (g *Game) State() State {
	switch {
	case g.over:
		return StateGameOver
	case g.awaitingRedo:
		return StateAwaitingRedo
	case g.isBreak:
		return StateBreak
	case g.isOpen:
		return StateOpen
	}
	return StateClosed
}

// Remaining lists the group balls p still has to pocket, ascending. It is
// empty while the table is unassigned.
func (g *Game) Remaining(p Player) []int {
	set := g.group(p)
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (g *Game) group(p Player) map[int]struct{} {
	if !g.assigned || !p.Valid() {
		return nil
	}
	return g.remaining[g.p1Striped == (p == P1)]
}

func (g *Game) owns(p Player, n int) bool {
	_, ok := g.group(p)[n]
	return ok
}

// CheckShot reports whether p may strike now.
func (g *Game) CheckShot(p Player) error {
	switch {
	case !p.Valid():
		return ErrBadPlayer
	case g.over:
		return ErrGameOver
	case p != g.turn:
		return ErrNotYourTurn
	case !g.canShoot:
		return ErrCannotShoot
	}
	return nil
}

// RecordShot validates and counts a strike by p.
func (g *Game) RecordShot(p Player) error {
	if err := g.CheckShot(p); err != nil {
		return err
	}
	g.stats[p.index()].ShotsMade++
	g.canPass = false
	return nil
}

// PassTurn hands the table to the opponent after a continuation.
func (g *Game) PassTurn(p Player) error {
	switch {
	case g.over:
		return ErrGameOver
	case p != g.turn:
		return ErrNotYourTurn
	case !g.canPass:
		return ErrCannotPass
	}
	g.turn = g.turn.Other()
	g.canPass = false
	g.canShoot = true
	return nil
}

// Keep accepts an illegal break and plays on from the current layout.
func (g *Game) Keep(p Player) error {
	if err := g.checkRedoChoice(p); err != nil {
		return err
	}
	g.awaitingRedo = false
	g.isBreak = false
	g.canShoot = true
	return nil
}

// Redo rejects an illegal break. The chooser breaks a fresh rack.
func (g *Game) Redo(p Player) error {
	if err := g.checkRedoChoice(p); err != nil {
		return err
	}
	g.Reset(p)
	return nil
}

func (g *Game) checkRedoChoice(p Player) error {
	switch {
	case g.over:
		return ErrGameOver
	case !g.awaitingRedo:
		return ErrNoRedoChoice
	case p != g.turn:
		return ErrNotYourTurn
	}
	return nil
}

// Forfeit ends the match in favour of the player who did not quit.
func (g *Game) Forfeit(quitter Player) (Player, error) {
	if g.over {
		return g.winner, ErrGameOver
	}
	if !quitter.Valid() {
		return Nobody, ErrBadPlayer
	}
	g.over = true
	g.winner = quitter.Other()
	g.canShoot = false
	g.canPass = false
	return g.winner, nil
}
