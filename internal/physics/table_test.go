package physics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableGeometry(t *testing.T) {
	s := DefaultSettings()
	table := NewTable(s)

	require.Len(t, table.Rails(), 6)
	require.Len(t, table.Pockets(), 6)
	for _, p := range table.Pockets() {
		assert.InDelta(t, s.BallRadius*s.HoleFactor, p.Radius, 1e-12)
	}
	lower, upper := table.Bounds()
	assert.Equal(t, Vec2{}, lower)
	assert.Equal(t, NewVec2(s.TableLength, s.TableWidth), upper)
}

func TestRackLayout(t *testing.T) {
	s := DefaultSettings()
	table := Rack(s, rand.New(rand.NewSource(1)))

	balls := table.Balls()
	require.Len(t, balls, 16)

	seen := map[int]bool{}
	for _, b := range balls {
		assert.False(t, seen[b.Number], "duplicate ball %d", b.Number)
		seen[b.Number] = true
		assert.Equal(t, b.Number > 8, b.Striped)
	}
	for n := 0; n <= 15; n++ {
		assert.True(t, seen[n], "missing ball %d", n)
	}

	// 8-ball sits in the middle of the third row
	origin := RackOrigin(s)
	eight := table.EightBall()
	require.NotNil(t, eight)
	assert.InDelta(t, origin.X+4*s.BallRadius, eight.Pos.X, 1e-12)
	assert.InDelta(t, origin.Y, eight.Pos.Y, 1e-12)

	cue := table.CueBall()
	require.NotNil(t, cue)
	assert.InDelta(t, s.TableLength/3, cue.Pos.X, 1e-12)

	for i, a := range balls {
		for _, b := range balls[i+1:] {
			assert.False(t, CircleCircle(a.Shape(), b.Shape()), "balls %d and %d overlap", a.Number, b.Number)
		}
	}
}

func TestRackIsDeterministicForSeed(t *testing.T) {
	s := DefaultSettings()
	a := Rack(s, rand.New(rand.NewSource(42)))
	b := Rack(s, rand.New(rand.NewSource(42)))
	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, a.Digest(), b.Digest())
}

func TestBreakShotKeepsBallsOnTable(t *testing.T) {
	s := DefaultSettings()
	table := Rack(s, rand.New(rand.NewSource(3)))
	require.True(t, table.ApplyStrike(CueBall, 900, math.Pi))

	total := len(table.Balls())
	lower, upper := table.Bounds()
	ticks := 0
	for ; ticks < 240*60; ticks++ {
		table.Update(s.Tick())
		require.Equal(t, total, len(table.Balls())+len(table.Sunk()), "ball count changed at tick %d", ticks)
		for _, b := range table.Balls() {
			require.True(t, b.Pos.X >= lower.X && b.Pos.X <= upper.X && b.Pos.Y >= lower.Y && b.Pos.Y <= upper.Y,
				"ball %d escaped to %+v at tick %d", b.Number, b.Pos, ticks)
		}
		if !table.InMotion() {
			break
		}
	}
	assert.False(t, table.InMotion(), "table never settled")
	assert.NotEmpty(t, table.Hit())
	assert.NotContains(t, table.Hit(), CueBall)
	assert.NotContains(t, table.RailContacts(), CueBall)
}

func TestWeakStrikeCountsAsShot(t *testing.T) {
	s := DefaultSettings()
	table := NewTable(s)
	cue := NewBall(NewVec2(1, 0.6), CueBall, s)
	table.AddBall(cue)

	require.True(t, table.ApplyStrike(CueBall, 0.3, 0))
	table.Update(s.Tick())
	assert.True(t, table.InMotion())
	assert.Equal(t, NewVec2(1, 0.6), cue.Pos)

	table.Update(s.Tick())
	assert.False(t, table.InMotion())
	assert.True(t, table.PreviouslyInMotion())
}

func TestCueBallPocketedBecomesHeld(t *testing.T) {
	s := DefaultSettings()
	table := NewTable(s)
	cue := NewBall(NewVec2(0.2, 0.2), CueBall, s)
	cue.Vel = NewVec2(-1, -1)
	table.AddBall(cue)

	table.Settle(240 * 5)

	assert.Equal(t, []int{CueBall}, table.Pocketed())
	assert.Same(t, cue, table.Held())
	assert.False(t, cue.CanCollide)
	assert.True(t, cue.Vel.IsZero())
	assert.Len(t, table.Balls(), 1)
	assert.Empty(t, table.Sunk())

	require.True(t, table.PlaceHeld(NewVec2(0.8, 0.6)))
	assert.Nil(t, table.Held())
	assert.True(t, cue.CanCollide)
	assert.Equal(t, NewVec2(0.8, 0.6), cue.Pos)
	assert.False(t, table.PlaceHeld(NewVec2(0.8, 0.6)))
}

func TestObjectBallPocketedLeavesTable(t *testing.T) {
	s := DefaultSettings()
	table := NewTable(s)
	ball := NewBall(NewVec2(s.TableLength-0.2, s.TableWidth-0.2), 11, s)
	ball.Vel = NewVec2(1, 1)
	table.AddBall(ball)

	table.Settle(240 * 5)

	assert.Equal(t, []int{11}, table.Pocketed())
	assert.Empty(t, table.Balls())
	assert.Equal(t, []int{11}, table.Sunk())
	assert.Nil(t, table.Held())
}

func TestHitAndRailAccumulators(t *testing.T) {
	s := DefaultSettings()
	table := NewTable(s)
	cue := NewBall(NewVec2(0.6, 0.655), CueBall, s)
	target := NewBall(NewVec2(1.0, 0.655), 5, s)
	table.AddBall(cue)
	table.AddBall(target)

	require.True(t, table.ApplyStrike(CueBall, 400, math.Pi))
	table.Settle(240 * 30)

	assert.Equal(t, []int{5}, table.Hit())
	assert.Contains(t, table.RailContacts(), 5)
	assert.NotContains(t, table.RailContacts(), CueBall)

	table.ResetCounts()
	assert.Empty(t, table.Hit())
	assert.Empty(t, table.RailContacts())
	assert.Empty(t, table.Pocketed())
}

func TestTakeCueInHand(t *testing.T) {
	s := DefaultSettings()
	table := Rack(s, rand.New(rand.NewSource(9)))
	cue := table.CueBall()
	cue.Vel = NewVec2(0.3, 0)

	table.TakeCueInHand()
	assert.Same(t, cue, table.Held())
	assert.False(t, cue.CanCollide)
	assert.True(t, cue.Vel.IsZero())
	assert.False(t, table.ApplyStrike(CueBall, 100, 0))
}

func TestDigestChangesWithLayout(t *testing.T) {
	s := DefaultSettings()
	table := Rack(s, rand.New(rand.NewSource(5)))
	before := table.Digest()
	table.ApplyStrike(CueBall, 200, math.Pi)
	table.Settle(240 * 60)
	assert.NotEqual(t, before, table.Digest())
}
