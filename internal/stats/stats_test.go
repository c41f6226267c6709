package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/models"
	"github.com/playpool/billiards/internal/rules"
)

func TestMaxWinStreak(t *testing.T) {
	cases := []struct {
		results []bool
		want    int
	}{
		{nil, 0},
		{[]bool{false, false}, 0},
		{[]bool{true}, 1},
		{[]bool{true, true, false, true, true, true, false}, 3},
		{[]bool{false, true, true, true, true}, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MaxWinStreak(c.results), "%v", c.results)
	}
}

func TestFinalize(t *testing.T) {
	st := models.UserStats{GamesPlayed: 4, Victories: 3, CompetitivePlayed: 2, CompetitiveWon: 1}
	Finalize(&st, []bool{true, false, true, true})
	assert.InDelta(t, 0.75, st.WinRate, 1e-9)
	assert.InDelta(t, 0.5, st.CompetitiveWinRate, 1e-9)
	assert.Equal(t, 2, st.MaxWinStreak)

	var empty models.UserStats
	Finalize(&empty, nil)
	assert.Zero(t, empty.WinRate)
	assert.Zero(t, empty.CompetitiveWinRate)
}

func TestLeaderboardQuery(t *testing.T) {
	for _, c := range Categories() {
		q, err := LeaderboardQuery(c)
		require.NoError(t, err, c)
		assert.Contains(t, q, "LIMIT $1")
	}
	q, err := LeaderboardQuery(CategoryWinRate)
	require.NoError(t, err)
	assert.Contains(t, q, "HAVING COUNT(*) > 10")

	_, err = LeaderboardQuery("games_played; DROP TABLE users")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestGameUsers(t *testing.T) {
	res := game.MatchResult{
		SessionID: "s1",
		Winner:    rules.P2,
		Players: [2]game.PlayerResult{
			{UserID: 10, Stats: rules.Stats{ShotsMade: 7, Fouls: 1}},
			{UserID: 11, Stats: rules.Stats{ShotsMade: 9, BallPockets: 7}},
		},
	}
	rows := gameUsers(res)
	require.Len(t, rows, 2)
	assert.Equal(t, models.GameUser{GameID: "s1", UserID: 10, Seat: 1, ShotsMade: 7, Fouls: 1}, rows[0])
	assert.Equal(t, models.GameUser{GameID: "s1", UserID: 11, Seat: 2, Won: true, ShotsMade: 9, BallPockets: 7}, rows[1])

	res.Players[0].UserID = 0
	rows = gameUsers(res)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(11), rows[0].UserID)

	res.Players[0].UserID = 11
	assert.Len(t, gameUsers(res), 1, "one account seated twice is stored once")
}

func TestLastGameQuery(t *testing.T) {
	assert.Contains(t, lastGameQuery, "WHERE gu.user_id = $1")
	assert.Contains(t, lastGameQuery, "ORDER BY g.finished_at DESC")
	assert.Contains(t, lastGameQuery, "LIMIT 1")
}

func TestUserStatsLastGameJSON(t *testing.T) {
	raw, err := json.Marshal(models.UserStats{UserID: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "last_game")

	raw, err = json.Marshal(models.UserStats{UserID: 1, GamesPlayed: 1, LastGame: &models.LastGame{GameID: "g1", Opponent: "bob", Won: true, Fouls: 2}})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	last, ok := out["last_game"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bob", last["opponent"])
	assert.Equal(t, true, last["won"])
	assert.Equal(t, 2.0, last["fouls"])
}
