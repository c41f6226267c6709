package rules

import (
	"slices"

	"github.com/playpool/billiards/internal/protocol"
)

// Decision is the outcome of one settled shot.
type Decision struct {
	Shooter Player
	Foul    bool
	Reasons []string

	// ForcedRedo means the 8-ball went down on the break. The rules state
	// has already been reset and the table must be re-racked.
	ForcedRedo bool
	// RedoChoiceFor is offered keep or redo after an illegal break.
	RedoChoiceFor Player
	Victor        Player
	BallInHand    bool

	ClosedTable bool
	P1Striped   bool

	// Turn state after the decision, as announced by start_next_turn.
	Turn     Player
	CanPass  bool
	IsBreak  bool
	IsOpen   bool
	CanShoot bool

	// ResetCounts is set when the table's per-turn accumulators must be
	// cleared before the next shot.
	ResetCounts bool
}

// Outbound is a message addressed to one player, or to both when To is Nobody.
type Outbound struct {
	To      Player
	Message protocol.Message
}

// Commands renders the decision as the ordered messages clients expect.
func (d Decision) Commands() []Outbound {
	if d.ForcedRedo {
		return []Outbound{{Message: protocol.New(protocol.CmdForceRedoMessage)}}
	}
	var out []Outbound
	switch {
	case d.RedoChoiceFor.Valid():
		out = append(out, Outbound{To: d.RedoChoiceFor, Message: protocol.New(protocol.CmdRedoChoice)})
	case d.Victor.Valid():
		return append(out, Outbound{Message: protocol.New(protocol.CmdVictory, int(d.Victor))})
	case d.BallInHand:
		out = append(out, Outbound{Message: protocol.New(protocol.CmdFoul, d.Reasons)})
	}
	if d.ClosedTable {
		out = append(out, Outbound{Message: protocol.New(protocol.CmdCloseTable, d.P1Striped)})
	}
	out = append(out, Outbound{Message: NextTurn(d.CanPass, d.IsBreak, d.IsOpen, d.CanShoot)})
	return out
}

// NextTurn builds a start_next_turn message.
func NextTurn(canPass, isBreak, isOpen, canShoot bool) protocol.Message {
	return protocol.New(protocol.CmdStartNextTurn, canPass, isBreak, isOpen, canShoot)
}

// Judge applies the rules to a settled shot by the player whose turn it is.
// Checks run in a fixed order (open table, break, victory, fouls, pocketed
// bookkeeping) and their outcomes are applied in a single ordered pass.
func (g *Game) Judge(ev Events) Decision {
	d := Decision{Shooter: g.turn}
	if g.over {
		d.Victor = g.winner
		return d
	}

	closing := false
	if g.isOpen {
		var p1Striped bool
		if closing, p1Striped = g.openTableCheck(ev); closing {
			g.assigned = true
			g.p1Striped = p1Striped
		}
	}

	var (
		foul, forced bool
		reasons      []string
		victor       Player
	)
	if g.isBreak {
		foul, forced = g.breakCheck(ev)
	} else {
		victor = g.victoryCheck(ev)
		reasons = g.foulCheck(ev)
		foul = len(reasons) > 0
	}
	canContinue := g.removePocketed(ev)

	d.Foul = foul
	canShoot := true
	switch {
	case g.isBreak && foul:
		if forced {
			d.ForcedRedo = true
			g.Reset(g.turn.Other())
			d.fill(g)
			return d
		}
		d.RedoChoiceFor = g.turn.Other()
		g.awaitingRedo = true
		canShoot = false
		g.turn = g.turn.Other()
		g.canPass = false
	case victor.Valid():
		g.over = true
		g.winner = victor
		g.canShoot = false
		g.canPass = false
		d.Victor = victor
		d.fill(g)
		return d
	case foul:
		d.Reasons = reasons
		d.BallInHand = true
		g.canPass = false
		g.stats[g.turn.index()].Fouls++
		g.turn = g.turn.Other()
	case canContinue:
		g.canPass = true
	default:
		g.turn = g.turn.Other()
		g.canPass = false
	}

	if g.isBreak && !foul {
		g.isBreak = false
	}
	if closing {
		d.ClosedTable = true
		d.P1Striped = g.p1Striped
		g.isOpen = false
	}
	g.canShoot = canShoot
	d.ResetCounts = true
	d.fill(g)
	return d
}

func (d *Decision) fill(g *Game) {
	d.Turn = g.turn
	d.CanPass = g.canPass
	d.IsBreak = g.isBreak
	d.IsOpen = g.isOpen
	d.CanShoot = g.canShoot
}

// openTableCheck decides whether this shot closes the table. Striking the
// 8-ball first keeps it open whatever was pocketed; otherwise the first
// group ball pocketed gives its group to the shooter.
func (g *Game) openTableCheck(ev Events) (closing, p1Striped bool) {
	if len(ev.Hit) > 0 && ev.Hit[0] == eightBall {
		return false, false
	}
	for _, n := range ev.Pocketed {
		if n == eightBall || n == cueBall {
			continue
		}
		return true, striped(n) == (g.turn == P1)
	}
	return false, false
}

func (g *Game) breakCheck(ev Events) (foul, forced bool) {
	if len(ev.Pocketed) == 0 && distinct(ev.RailContacts) < minBreakRails {
		return true, false
	}
	for _, n := range ev.Pocketed {
		switch n {
		case eightBall:
			foul, forced = true, true
		case cueBall:
			foul = true
		}
	}
	return foul, forced
}

// victoryCheck returns the winner if the 8-ball went down. The shooter wins
// only when it was the first ball pocketed, the table was closed and their
// group was already cleared.
func (g *Game) victoryCheck(ev Events) Player {
	for i, n := range ev.Pocketed {
		if n != eightBall {
			continue
		}
		if i != 0 || g.isOpen || len(g.group(g.turn)) != 0 {
			return g.turn.Other()
		}
		return g.turn
	}
	return Nobody
}

func (g *Game) foulCheck(ev Events) []string {
	var reasons []string
	if len(ev.Hit) == 0 {
		reasons = append(reasons, ReasonNoHit)
	}
	own := g.group(g.turn)
	if !g.isOpen && len(ev.Hit) > 0 && !g.owns(g.turn, ev.Hit[0]) {
		if ev.Hit[0] == eightBall {
			if len(own) != 0 {
				reasons = append(reasons, ReasonEightFirst)
			}
		} else {
			reasons = append(reasons, ReasonOpponentFirst)
		}
	}
	if len(ev.Pocketed) == 0 && len(ev.RailContacts) == 0 {
		reasons = append(reasons, ReasonNoRailOrPocket)
	} else if len(ev.Pocketed) == 1 && ev.Pocketed[0] == cueBall {
		reasons = append(reasons, ReasonNoRailOrPocket)
	}
	if slices.Contains(ev.Pocketed, cueBall) {
		reasons = append(reasons, ReasonCuePocketed)
	}
	return reasons
}

// removePocketed drops pocketed group balls from the remaining sets, counts
// pockets for both players and reports whether the shooter may continue.
func (g *Game) removePocketed(ev Events) bool {
	canContinue := false
	shooter := g.turn
	for _, n := range ev.Pocketed {
		if n == eightBall || n == cueBall {
			continue
		}
		if g.assigned {
			s := &g.stats[shooter.index()]
			if g.owns(shooter, n) {
				canContinue = true
				s.BallPockets++
			} else if g.owns(shooter.Other(), n) {
				s.OpponentBallPockets++
			}
		}
		delete(g.remaining[striped(n)], n)
	}
	if g.isOpen && len(ev.Hit) > 0 && ev.Hit[0] == eightBall {
		return false
	}
	return canContinue
}

func distinct(numbers []int) int {
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		seen[n] = struct{}{}
	}
	return len(seen)
}
