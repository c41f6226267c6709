package models

import (
	"database/sql"
	"time"
)

// User is a registered player account
type User struct {
	ID           int64        `db:"id" json:"id"`
	Username     string       `db:"username" json:"username"`
	PasswordHash string       `db:"password_hash" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	LastLoginAt  sql.NullTime `db:"last_login_at" json:"-"`
}

// Game is one finished match
type Game struct {
	ID          string        `db:"id" json:"id"`
	WinnerID    sql.NullInt64 `db:"winner_id" json:"-"`
	Competitive bool          `db:"competitive" json:"competitive"`
	Forfeit     bool          `db:"forfeit" json:"forfeit"`
	StartedAt   time.Time     `db:"started_at" json:"started_at"`
	FinishedAt  time.Time     `db:"finished_at" json:"finished_at"`
}

// GameUser is one seat of a finished match with its per-game statistics
type GameUser struct {
	GameID              string `db:"game_id" json:"game_id"`
	UserID              int64  `db:"user_id" json:"user_id"`
	Seat                int    `db:"seat" json:"seat"`
	Won                 bool   `db:"won" json:"won"`
	ShotsMade           int    `db:"shots_made" json:"shots_made"`
	BallPockets         int    `db:"ball_pockets" json:"ball_pockets"`
	OpponentBallPockets int    `db:"opponent_ball_pockets" json:"opponent_ball_pockets"`
	Fouls               int    `db:"fouls" json:"fouls"`
}

// UserStats aggregates a user's match history
type UserStats struct {
	UserID              int64   `db:"user_id" json:"user_id"`
	Username            string  `db:"username" json:"username"`
	GamesPlayed         int     `db:"games_played" json:"games_played"`
	Victories           int     `db:"victories" json:"victories"`
	CompetitivePlayed   int     `db:"competitive_played" json:"competitive_played"`
	CompetitiveWon      int     `db:"competitive_won" json:"-"`
	ShotsMade           int     `db:"shots_made" json:"shots_made"`
	BallPockets         int     `db:"ball_pockets" json:"ball_pockets"`
	OpponentBallPockets int     `db:"opponent_ball_pockets" json:"opponent_ball_pockets"`
	Fouls               int     `db:"fouls" json:"fouls"`
	SecondsPlayed       float64 `db:"seconds_played" json:"seconds_played"`

	WinRate            float64   `db:"-" json:"win_rate"`
	CompetitiveWinRate float64   `db:"-" json:"competitive_win_rate"`
	MaxWinStreak       int       `db:"-" json:"max_win_streak"`
	LastGame           *LastGame `db:"-" json:"last_game,omitempty"`
}

// LastGame is a user's most recently finished match from their seat
type LastGame struct {
	GameID              string    `db:"game_id" json:"game_id"`
	Opponent            string    `db:"opponent" json:"opponent"`
	Competitive         bool      `db:"competitive" json:"competitive"`
	Forfeit             bool      `db:"forfeit" json:"forfeit"`
	Won                 bool      `db:"won" json:"won"`
	SecondsPlayed       float64   `db:"seconds_played" json:"seconds_played"`
	ShotsMade           int       `db:"shots_made" json:"shots_made"`
	BallPockets         int       `db:"ball_pockets" json:"ball_pockets"`
	OpponentBallPockets int       `db:"opponent_ball_pockets" json:"opponent_ball_pockets"`
	Fouls               int       `db:"fouls" json:"fouls"`
	FinishedAt          time.Time `db:"finished_at" json:"finished_at"`
}

// LeaderboardEntry is one ranked row of a leaderboard
type LeaderboardEntry struct {
	Rank     int     `db:"-" json:"rank"`
	UserID   int64   `db:"user_id" json:"user_id"`
	Username string  `db:"username" json:"username"`
	Value    float64 `db:"value" json:"value"`
}
