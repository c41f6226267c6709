package game

import (
	"context"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

func newMatch(actions ...Action) *Match {
	return NewMatch(physics.DefaultSettings(), rand.New(rand.NewSource(3)), rules.P1, NewReplaySource(actions))
}

func TestMatchBreakKeepsBallCount(t *testing.T) {
	m := newMatch()
	turn, ok, err := m.Apply(Action{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 1000, Angle: math.Pi})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, rules.P1, turn.Decision.Shooter)
	assert.NotEmpty(t, turn.Events.Hit)
	assert.Equal(t, m.Table().Digest(), turn.Digest)
	assert.False(t, m.Table().InMotion())
	assert.Len(t, m.Table().Balls(), 16-len(m.Table().Sunk()))
	assert.Empty(t, m.Table().Hit(), "accumulators are reset after judging")
	assert.Equal(t, 1, m.Game().Stats(rules.P1).ShotsMade)
}

func TestMatchReplayIsDeterministic(t *testing.T) {
	script := []Action{
		{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 800, Angle: math.Pi + 0.01},
	}
	a, err := newMatch(script...).Run(context.Background())
	require.NoError(t, err)
	b, err := newMatch(script...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Digest, b[0].Digest)
	assert.Equal(t, a[0].Events, b[0].Events)
}

func TestMatchWeakBreakThenKeep(t *testing.T) {
	m := newMatch(
		Action{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 0.01, Angle: math.Pi},
		Action{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 500, Angle: math.Pi},
		Action{Kind: ActionKeep, Player: rules.P2},
	)
	turns, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, turns, 1, "the out-of-turn shot is skipped")
	d := turns[0].Decision
	assert.True(t, d.Foul)
	assert.Equal(t, rules.P2, d.RedoChoiceFor)
	assert.Equal(t, rules.StateOpen, m.Game().State())
	assert.Equal(t, rules.P2, m.Game().Turn())
}

func TestMatchRedoReracks(t *testing.T) {
	m := newMatch(Action{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 0.01, Angle: math.Pi})
	_, err := m.Run(context.Background())
	require.NoError(t, err)
	before := m.Table()

	_, _, err = m.Apply(Action{Kind: ActionRedo, Player: rules.P2})
	require.NoError(t, err)
	assert.NotSame(t, before, m.Table())
	assert.Equal(t, rules.StateBreak, m.Game().State())
	assert.Equal(t, rules.P2, m.Game().Turn())
}

func TestMatchQuitEndsGame(t *testing.T) {
	m := newMatch(
		Action{Kind: ActionQuit, Player: rules.P2},
		Action{Kind: ActionHit, Player: rules.P1, Ball: 0, Force: 500, Angle: math.Pi},
	)
	turns, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.True(t, m.Game().Over())
	assert.Equal(t, rules.P1, m.Game().Winner())
}

func TestRefereePlacement(t *testing.T) {
	m := newMatch()
	_, _, err := m.Apply(Action{Kind: ActionPlace, Player: rules.P1, Pos: physics.Vec2{X: 1, Y: 0.5}})
	assert.ErrorIs(t, err, ErrNothingHeld)

	m.Table().TakeCueInHand()
	_, _, err = m.Apply(Action{Kind: ActionHit, Player: rules.P1, Force: 100})
	assert.ErrorIs(t, err, ErrCueInHand)

	_, _, err = m.Apply(Action{Kind: ActionPlace, Player: rules.P1, Pos: physics.Vec2{X: -1, Y: 0.5}})
	assert.ErrorIs(t, err, ErrIllegalPlacement)
	apex := physics.RackOrigin(m.Table().Settings())
	_, _, err = m.Apply(Action{Kind: ActionPlace, Player: rules.P1, Pos: apex})
	assert.ErrorIs(t, err, ErrIllegalPlacement)
	_, _, err = m.Apply(Action{Kind: ActionPlace, Player: rules.P2, Pos: physics.Vec2{X: 0.5, Y: 0.5}})
	assert.ErrorIs(t, err, rules.ErrNotYourTurn)

	_, _, err = m.Apply(Action{Kind: ActionPlace, Player: rules.P1, Pos: physics.Vec2{X: 0.5, Y: 0.5}})
	require.NoError(t, err)
	assert.Nil(t, m.Table().Held())
	assert.Equal(t, physics.Vec2{X: 0.5, Y: 0.5}, m.Table().CueBall().Pos)
}

func TestReplaySource(t *testing.T) {
	src := NewReplaySource([]Action{{Kind: ActionPass}})
	a, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionPass, a.Kind)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewReplaySource(nil).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActionFromMessage(t *testing.T) {
	a, err := ActionFromMessage(rules.P2, protocol.New(protocol.CmdHitBall, nil, 120.0, 1.5))
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: ActionHit, Player: rules.P2, Ball: 0, Force: 120, Angle: 1.5}, a)

	a, err = ActionFromMessage(rules.P1, protocol.New(protocol.CmdPlaceBall, []any{0.4, 0.6}))
	require.NoError(t, err)
	assert.Equal(t, physics.Vec2{X: 0.4, Y: 0.6}, a.Pos)

	a, err = ActionFromMessage(rules.P1, protocol.New(protocol.CmdUpdateServerCuePosition, 0.1, 0.02))
	require.NoError(t, err)
	assert.Equal(t, 0.1, a.CueAngle)
	assert.Equal(t, 0.02, a.CueOffset)

	a, err = ActionFromMessage(rules.P1, protocol.New(protocol.CmdUpdateServerCuePosition, []any{0.3, 0.04}))
	require.NoError(t, err)
	assert.Equal(t, 0.3, a.CueAngle)
	assert.Equal(t, 0.04, a.CueOffset)

	_, err = ActionFromMessage(rules.P1, protocol.New(protocol.CmdVictory, 1))
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = ActionFromMessage(rules.P1, protocol.New(protocol.CmdHitBall, 0, "hard", 1.0))
	assert.ErrorIs(t, err, protocol.ErrArgType)
}
