package rules

import "fmt"

// Player identifies one of the two seats. The zero value means nobody.
type Player int

const (
	Nobody Player = 0
	P1     Player = 1
	P2     Player = 2
)

func (p Player) Other() Player {
	if p == P1 {
		return P2
	}
	return P1
}

func (p Player) Valid() bool { return p == P1 || p == P2 }

func (p Player) index() int { return int(p) - 1 }

func (p Player) String() string {
	if !p.Valid() {
		return "nobody"
	}
	return fmt.Sprintf("player %d", int(p))
}

// Stats are the per-match counters reported to the statistics store.
type Stats struct {
	ShotsMade           int `json:"shots_made" db:"shots_made"`
	BallPockets         int `json:"ball_pockets" db:"ball_pockets"`
	OpponentBallPockets int `json:"opponent_ball_pockets" db:"opponent_ball_pockets"`
	Fouls               int `json:"fouls" db:"fouls"`
}

// State is the coarse phase of a match.
type State int

const (
	StateBreak State = iota
	StateOpen
	StateClosed
	StateAwaitingRedo
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateBreak:
		return "BREAK"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateAwaitingRedo:
		return "AWAITING_REDO_DECISION"
	case StateGameOver:
		return "GAME_OVER"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
