package game

import (
	"context"
	"errors"
	"io"
	"math/rand"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/rules"
)

// defaultShotSeconds bounds how long of simulated time one shot may run.
const defaultShotSeconds = 120

// Turn is the record of one judged shot.
type Turn struct {
	Shot     Action         `json:"shot"`
	Events   rules.Events   `json:"events"`
	Decision rules.Decision `json:"decision"`
	Digest   uint64         `json:"digest"`
}

// Match plays a game from any ShotSource without a network. Shots are run
// to rest immediately instead of at wall-clock pace.
type Match struct {
	ref      *referee
	source   ShotSource
	maxTicks int
}

func NewMatch(s physics.Settings, rng *rand.Rand, starting rules.Player, source ShotSource) *Match {
	return &Match{
		ref:      newReferee(s, rng, starting),
		source:   source,
		maxTicks: s.FPS * defaultShotSeconds,
	}
}

func (m *Match) Table() *physics.Table { return m.ref.table }
func (m *Match) Game() *rules.Game     { return m.ref.game }

// Run consumes actions until the source is exhausted or the game ends and
// returns every judged turn. Actions the rules reject are skipped.
func (m *Match) Run(ctx context.Context) ([]Turn, error) {
	var turns []Turn
	for !m.ref.game.Over() {
		a, err := m.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return turns, nil
		}
		if err != nil {
			return turns, err
		}
		t, ok, err := m.Apply(a)
		if err != nil {
			continue
		}
		if ok {
			turns = append(turns, t)
		}
	}
	return turns, nil
}

// Apply performs one action. For a shot it runs the table to rest and
// returns the judged turn with ok set.
func (m *Match) Apply(a Action) (Turn, bool, error) {
	r := m.ref
	switch a.Kind {
	case ActionHit:
		if err := r.hit(a); err != nil {
			return Turn{}, false, err
		}
		r.settle(m.maxTicks)
		ev, d := r.judge()
		return Turn{Shot: a, Events: ev, Decision: d, Digest: r.table.Digest()}, true, nil
	case ActionPlace:
		return Turn{}, false, r.place(a)
	case ActionPass:
		return Turn{}, false, r.pass(a)
	case ActionKeep:
		return Turn{}, false, r.keep(a)
	case ActionRedo:
		return Turn{}, false, r.redo(a)
	case ActionQuit:
		_, err := r.game.Forfeit(a.Player)
		return Turn{}, false, err
	case ActionFinishedDrawing, ActionCue:
		return Turn{}, false, nil
	}
	return Turn{}, false, ErrUnknownAction
}
