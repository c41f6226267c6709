package rules

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/protocol"
)

// closedGame returns a game where player 1 broke legally, pocketed the given
// stripes and now owns the striped group, still at the table.
func closedGame(t *testing.T, pocketed ...int) *Game {
	t.Helper()
	g := New(P1)
	require.NoError(t, g.RecordShot(P1))
	d := g.Judge(Events{Hit: []int{1}, RailContacts: []int{1, 2}, Pocketed: pocketed})
	require.True(t, d.ClosedTable)
	require.True(t, d.P1Striped)
	require.Equal(t, P1, d.Turn)
	require.True(t, d.CanPass)
	require.Equal(t, StateClosed, g.State())
	return g
}

func TestBreakFoulOffersRedoChoice(t *testing.T) {
	g := New(P1)
	require.Equal(t, StateBreak, g.State())
	require.NoError(t, g.RecordShot(P1))

	d := g.Judge(Events{Hit: []int{3}, RailContacts: []int{3, 5, 5}})

	assert.True(t, d.Foul)
	assert.False(t, d.ForcedRedo)
	assert.Equal(t, P2, d.RedoChoiceFor)
	assert.Equal(t, P2, g.Turn())
	assert.True(t, g.IsBreak())
	assert.True(t, g.IsOpen())
	assert.False(t, g.CanShoot())
	assert.Equal(t, StateAwaitingRedo, g.State())
	assert.Zero(t, g.Stats(P1).Fouls)

	cmds := d.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, P2, cmds[0].To)
	assert.Equal(t, protocol.CmdRedoChoice, cmds[0].Message.Command)
	assert.Equal(t, NextTurn(false, true, true, false), cmds[1].Message)
}

func TestBreakRailsCountDistinctBalls(t *testing.T) {
	g := New(P1)
	d := g.Judge(Events{Hit: []int{1}, RailContacts: []int{1, 2, 3, 4}})
	assert.False(t, d.Foul)
	assert.False(t, g.IsBreak())
	assert.True(t, g.IsOpen())
	assert.Equal(t, P2, g.Turn())
}

func TestKeepAcceptsIllegalBreak(t *testing.T) {
	g := New(P1)
	g.Judge(Events{Hit: []int{1}})

	assert.ErrorIs(t, g.Keep(P1), ErrNotYourTurn)
	require.NoError(t, g.Keep(P2))
	assert.False(t, g.IsBreak())
	assert.True(t, g.CanShoot())
	assert.Equal(t, StateOpen, g.State())
	assert.ErrorIs(t, g.Keep(P2), ErrNoRedoChoice)
	assert.NoError(t, g.RecordShot(P2))
}

func TestRedoGivesChooserTheBreak(t *testing.T) {
	g := New(P1)
	require.NoError(t, g.RecordShot(P1))
	g.Judge(Events{Hit: []int{1}})

	require.NoError(t, g.Redo(P2))
	assert.Equal(t, StateBreak, g.State())
	assert.Equal(t, P2, g.Turn())
	assert.True(t, g.CanShoot())
	assert.Equal(t, 1, g.Stats(P1).ShotsMade)
}

func TestEightOnBreakForcesRedo(t *testing.T) {
	g := New(P1)
	d := g.Judge(Events{Hit: []int{2}, RailContacts: []int{2}, Pocketed: []int{9, 8}})

	assert.True(t, d.ForcedRedo)
	assert.False(t, d.ClosedTable)
	assert.Equal(t, P2, d.Turn)
	assert.Equal(t, StateBreak, g.State())
	_, assigned := g.Groups()
	assert.False(t, assigned)
	assert.Equal(t, []Outbound{{Message: protocol.New(protocol.CmdForceRedoMessage)}}, d.Commands())
}

func TestCueOnBreakIsUnforcedFoul(t *testing.T) {
	g := New(P2)
	d := g.Judge(Events{Hit: []int{1}, RailContacts: []int{1, 2, 3, 4, 5}, Pocketed: []int{0}})
	assert.True(t, d.Foul)
	assert.False(t, d.ForcedRedo)
	assert.Equal(t, P1, d.RedoChoiceFor)
}

func TestContinuationAfterOwnBall(t *testing.T) {
	g := closedGame(t, 9)
	require.NoError(t, g.RecordShot(P1))

	d := g.Judge(Events{Hit: []int{10}, Pocketed: []int{10}})

	assert.False(t, d.Foul)
	assert.True(t, d.CanPass)
	assert.Equal(t, P1, d.Turn)
	assert.Equal(t, P1, g.Turn())
	assert.Equal(t, 2, g.Stats(P1).BallPockets)
	assert.Equal(t, []Outbound{{Message: NextTurn(true, false, false, true)}}, d.Commands())

	require.NoError(t, g.PassTurn(P1))
	assert.Equal(t, P2, g.Turn())
	assert.ErrorIs(t, g.PassTurn(P2), ErrCannotPass)
}

func TestEightWithGroupLeftLoses(t *testing.T) {
	g := closedGame(t, 9, 10, 11, 12, 13)
	require.Equal(t, []int{14, 15}, g.Remaining(P1))
	require.NoError(t, g.RecordShot(P1))

	d := g.Judge(Events{Hit: []int{14}, RailContacts: []int{14}, Pocketed: []int{8}})

	assert.Equal(t, P2, d.Victor)
	assert.True(t, g.Over())
	assert.Equal(t, P2, g.Winner())
	assert.Equal(t, StateGameOver, g.State())
	assert.Equal(t, []Outbound{{Message: protocol.New(protocol.CmdVictory, 2)}}, d.Commands())
	assert.ErrorIs(t, g.RecordShot(P1), ErrGameOver)
}

func TestEightAfterClearingGroupWins(t *testing.T) {
	g := closedGame(t, 9, 10, 11, 12, 13, 14, 15)
	require.Empty(t, g.Remaining(P1))

	d := g.Judge(Events{Hit: []int{8}, Pocketed: []int{8}})
	assert.Equal(t, P1, d.Victor)
	assert.False(t, d.Foul)
}

func TestEightWithLastGroupBallLoses(t *testing.T) {
	g := closedGame(t, 9, 10, 11, 12, 13, 14)
	d := g.Judge(Events{Hit: []int{15}, Pocketed: []int{15, 8}})
	assert.Equal(t, P2, d.Victor)
}

func TestFouls(t *testing.T) {
	tests := []struct {
		name string
		ev   Events
		want []string
	}{
		{"miss", Events{}, []string{ReasonNoHit, ReasonNoRailOrPocket}},
		{"opponent first", Events{Hit: []int{3}, RailContacts: []int{3}}, []string{ReasonOpponentFirst}},
		{"eight first", Events{Hit: []int{8}, RailContacts: []int{8}}, []string{ReasonEightFirst}},
		{"no rail", Events{Hit: []int{12}}, []string{ReasonNoRailOrPocket}},
		{"scratch only", Events{Hit: []int{12}, Pocketed: []int{0}}, []string{ReasonNoRailOrPocket, ReasonCuePocketed}},
		{"scratch with own ball", Events{Hit: []int{12}, Pocketed: []int{12, 0}}, []string{ReasonCuePocketed}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := closedGame(t, 9)
			d := g.Judge(tc.ev)
			assert.True(t, d.Foul)
			assert.Equal(t, tc.want, d.Reasons)
			assert.True(t, d.BallInHand)
			assert.Equal(t, P2, d.Turn)
			assert.False(t, d.CanPass)
			assert.Equal(t, 1, g.Stats(P1).Fouls)

			cmds := d.Commands()
			require.Len(t, cmds, 2)
			assert.Equal(t, protocol.New(protocol.CmdFoul, tc.want), cmds[0].Message)
		})
	}
}

func TestOpponentBallPocketsAreCounted(t *testing.T) {
	g := closedGame(t, 9)
	d := g.Judge(Events{Hit: []int{10}, RailContacts: []int{10}, Pocketed: []int{3}})
	assert.False(t, d.Foul)
	assert.False(t, d.CanPass)
	assert.Equal(t, P2, d.Turn)
	assert.Equal(t, 1, g.Stats(P1).OpponentBallPockets)
	assert.NotContains(t, g.Remaining(P2), 3)
}

func TestEightFirstKeepsTableOpen(t *testing.T) {
	g := New(P1)
	g.Judge(Events{Hit: []int{1}, RailContacts: []int{1, 2, 3, 4}})
	require.Equal(t, StateOpen, g.State())
	require.Equal(t, P2, g.Turn())

	d := g.Judge(Events{Hit: []int{8}, RailContacts: []int{8}, Pocketed: []int{4}})
	assert.False(t, d.ClosedTable)
	assert.False(t, d.CanPass)
	assert.True(t, g.IsOpen())
	assert.Equal(t, P1, g.Turn())
	assert.NotContains(t, g.Remaining(P1), 4)
}

func TestOpenTableClosesForPlayerTwo(t *testing.T) {
	g := New(P1)
	g.Judge(Events{Hit: []int{1}, RailContacts: []int{1, 2, 3, 4}})

	d := g.Judge(Events{Hit: []int{5}, Pocketed: []int{5}})
	assert.True(t, d.ClosedTable)
	assert.True(t, d.P1Striped, "player 2 took spots")
	assert.True(t, d.CanPass)
	assert.Equal(t, P2, d.Turn)
	cmds := d.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, protocol.New(protocol.CmdCloseTable, true), cmds[0].Message)
}

func TestShotPermissions(t *testing.T) {
	g := New(P1)
	assert.ErrorIs(t, g.RecordShot(P2), ErrNotYourTurn)
	assert.ErrorIs(t, g.RecordShot(Nobody), ErrBadPlayer)
	assert.ErrorIs(t, g.Keep(P1), ErrNoRedoChoice)
	assert.ErrorIs(t, g.PassTurn(P1), ErrCannotPass)
}

func TestForfeit(t *testing.T) {
	g := New(P1)
	winner, err := g.Forfeit(P1)
	require.NoError(t, err)
	assert.Equal(t, P2, winner)
	assert.Equal(t, StateGameOver, g.State())

	_, err = g.Forfeit(P2)
	assert.ErrorIs(t, err, ErrGameOver)
}

func randomEvents(rng *rand.Rand) Events {
	pick := func(max int, withCue bool) []int {
		var out []int
		for i := rng.Intn(max + 1); i > 0; i-- {
			lo := 1
			if withCue {
				lo = 0
			}
			n := lo + rng.Intn(16-lo)
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
		return out
	}
	ev := Events{Hit: pick(3, false), RailContacts: pick(6, false)}
	if rng.Intn(3) == 0 {
		ev.Pocketed = pick(2, true)
	}
	return ev
}

func TestRandomMatchesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for match := 0; match < 200; match++ {
		g := New(P1)
		closures := 0
		for shot := 0; shot < 300 && !g.Over(); shot++ {
			if g.State() == StateAwaitingRedo {
				if rng.Intn(2) == 0 {
					require.NoError(t, g.Keep(g.Turn()))
				} else {
					require.NoError(t, g.Redo(g.Turn()))
					closures = 0
				}
				continue
			}
			require.NoError(t, g.RecordShot(g.Turn()))
			ev := randomEvents(rng)
			d := g.Judge(ev)

			if d.Victor.Valid() {
				require.Contains(t, ev.Pocketed, 8, "victory without the 8-ball")
			}
			if d.ForcedRedo {
				closures = 0
				continue
			}
			if d.ClosedTable {
				closures++
			}
			require.LessOrEqual(t, closures, 1, "table closed twice in one rack")
			require.True(t, d.Turn.Valid())
		}
	}
}
