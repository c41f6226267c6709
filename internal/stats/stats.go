// Package stats records finished matches in Postgres and answers the
// leaderboard and per-user statistics queries.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/models"
)

var (
	ErrUnknownCategory = errors.New("unknown leaderboard category")
	ErrUserNotFound    = errors.New("user not found")
)

// Leaderboard categories.
const (
	CategoryGamesPlayed       = "games_played"
	CategoryVictories         = "victories"
	CategoryWinRate           = "win_rate"
	CategoryCompetitivePlayed = "competitive_played"
)

const (
	DefaultLeaderboardSize = 5
	maxLeaderboardSize     = 100
	// players need more than this many games to appear on the win rate board
	winRateMinGames = 10
)

var categoryValue = map[string]string{
	CategoryGamesPlayed:       "COUNT(*)::float8",
	CategoryVictories:         "(COUNT(*) FILTER (WHERE gu.won))::float8",
	CategoryWinRate:           "AVG(CASE WHEN gu.won THEN 1.0 ELSE 0.0 END)::float8",
	CategoryCompetitivePlayed: "(COUNT(*) FILTER (WHERE g.competitive))::float8",
}

// Categories lists the leaderboard categories in display order.
func Categories() []string {
	return []string{CategoryGamesPlayed, CategoryVictories, CategoryWinRate, CategoryCompetitivePlayed}
}

// Store is the Postgres-backed match recorder.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// RecordMatch stores a finished match and each registered seat's statistics
// in one transaction. Seats without an account are not recorded.
func (s *Store) RecordMatch(ctx context.Context, res game.MatchResult) error {
	seats := gameUsers(res)
	if len(seats) == 0 {
		logger.Log.Debugw("[STATS] skipping match without registered players", "session", res.SessionID)
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	winner := sql.NullInt64{Int64: res.WinnerID(), Valid: res.WinnerID() != 0}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO games (id, winner_id, competitive, forfeit, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		res.SessionID, winner, res.Competitive, res.Forfeit, res.StartedAt, res.FinishedAt); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for _, gu := range seats {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO game_users (game_id, user_id, seat, won, shots_made, ball_pockets, opponent_ball_pockets, fouls)
			 VALUES (:game_id, :user_id, :seat, :won, :shots_made, :ball_pockets, :opponent_ball_pockets, :fouls)`,
			gu); err != nil {
			return fmt.Errorf("insert game user %d: %w", gu.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Log.Infow("[STATS] match recorded", "session", res.SessionID, "winner", res.WinnerID(), "competitive", res.Competitive)
	return nil
}

// gameUsers converts the registered seats of a result into rows.
func gameUsers(res game.MatchResult) []models.GameUser {
	var rows []models.GameUser
	for i, p := range res.Players {
		if p.UserID <= 0 {
			continue
		}
		if i == 1 && p.UserID == res.Players[0].UserID {
			continue
		}
		rows = append(rows, models.GameUser{
			GameID:              res.SessionID,
			UserID:              p.UserID,
			Seat:                i + 1,
			Won:                 int(res.Winner) == i+1,
			ShotsMade:           p.Stats.ShotsMade,
			BallPockets:         p.Stats.BallPockets,
			OpponentBallPockets: p.Stats.OpponentBallPockets,
			Fouls:               p.Stats.Fouls,
		})
	}
	return rows
}

// LeaderboardQuery builds the SQL for a category. The category is checked
// against a fixed list before it reaches the query text.
func LeaderboardQuery(category string) (string, error) {
	value, ok := categoryValue[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	having := ""
	if category == CategoryWinRate {
		having = fmt.Sprintf("HAVING COUNT(*) > %d", winRateMinGames)
	}
	return fmt.Sprintf(`SELECT u.id AS user_id, u.username, %s AS value
		FROM users u
		JOIN game_users gu ON gu.user_id = u.id
		JOIN games g ON g.id = gu.game_id
		GROUP BY u.id, u.username
		%s
		ORDER BY value DESC, u.username ASC
		LIMIT $1`, value, having), nil
}

// Leaderboard returns the top players in a category.
func (s *Store) Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error) {
	query, err := LeaderboardQuery(category)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	var entries []models.LeaderboardEntry
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", category, err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

const userStatsQuery = `SELECT u.id AS user_id, u.username,
	COUNT(gu.game_id) AS games_played,
	COUNT(gu.game_id) FILTER (WHERE gu.won) AS victories,
	COUNT(gu.game_id) FILTER (WHERE g.competitive) AS competitive_played,
	COUNT(gu.game_id) FILTER (WHERE g.competitive AND gu.won) AS competitive_won,
	COALESCE(SUM(gu.shots_made), 0) AS shots_made,
	COALESCE(SUM(gu.ball_pockets), 0) AS ball_pockets,
	COALESCE(SUM(gu.opponent_ball_pockets), 0) AS opponent_ball_pockets,
	COALESCE(SUM(gu.fouls), 0) AS fouls,
	COALESCE(SUM(EXTRACT(EPOCH FROM g.finished_at - g.started_at)), 0)::float8 AS seconds_played
FROM users u
LEFT JOIN game_users gu ON gu.user_id = u.id
LEFT JOIN games g ON g.id = gu.game_id
WHERE u.id = $1
GROUP BY u.id, u.username`

// lastGameQuery loads a user's latest match. The opponent is empty when the
// other seat was a guest.
const lastGameQuery = `SELECT g.id AS game_id,
	COALESCE(o.username, '') AS opponent,
	g.competitive, g.forfeit, gu.won,
	EXTRACT(EPOCH FROM g.finished_at - g.started_at)::float8 AS seconds_played,
	gu.shots_made, gu.ball_pockets, gu.opponent_ball_pockets, gu.fouls,
	g.finished_at
FROM game_users gu
JOIN games g ON g.id = gu.game_id
LEFT JOIN game_users ogu ON ogu.game_id = g.id AND ogu.user_id <> gu.user_id
LEFT JOIN users o ON o.id = ogu.user_id
WHERE gu.user_id = $1
ORDER BY g.finished_at DESC
LIMIT 1`

// UserStats aggregates a user's history, including their longest run of
// consecutive wins and their last game.
func (s *Store) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	var st models.UserStats
	err := s.db.GetContext(ctx, &st, userStatsQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user stats %d: %w", userID, err)
	}

	var results []bool
	if err := s.db.SelectContext(ctx, &results,
		`SELECT gu.won FROM game_users gu JOIN games g ON g.id = gu.game_id
		 WHERE gu.user_id = $1 ORDER BY g.finished_at`, userID); err != nil {
		return nil, fmt.Errorf("user results %d: %w", userID, err)
	}
	Finalize(&st, results)

	if st.GamesPlayed > 0 {
		var last models.LastGame
		if err := s.db.GetContext(ctx, &last, lastGameQuery, userID); err != nil {
			return nil, fmt.Errorf("last game %d: %w", userID, err)
		}
		st.LastGame = &last
	}
	return &st, nil
}

// Finalize fills the derived fields of st from its counters and the user's
// results in the order they were played.
func Finalize(st *models.UserStats, results []bool) {
	st.WinRate = ratio(st.Victories, st.GamesPlayed)
	st.CompetitiveWinRate = ratio(st.CompetitiveWon, st.CompetitivePlayed)
	st.MaxWinStreak = MaxWinStreak(results)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// MaxWinStreak is the longest run of consecutive wins.
func MaxWinStreak(results []bool) int {
	best, run := 0, 0
	for _, won := range results {
		if !won {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}
