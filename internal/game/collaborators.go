package game

import (
	"context"
	"time"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/rules"
)

// PlayerResult is one seat's outcome of a finished match.
type PlayerResult struct {
	UserID int64       `json:"user_id"`
	Name   string      `json:"name"`
	Stats  rules.Stats `json:"stats"`
}

// MatchResult is handed to the Recorder once a session ends.
type MatchResult struct {
	SessionID   string          `json:"session_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Competitive bool            `json:"competitive"`
	Winner      rules.Player    `json:"winner"`
	Forfeit     bool            `json:"forfeit"`
	Players     [2]PlayerResult `json:"players"`
}

// WinnerID is the user id of the winning seat, or 0 when nobody won.
func (r MatchResult) WinnerID() int64 {
	if !r.Winner.Valid() {
		return 0
	}
	return r.Players[int(r.Winner)-1].UserID
}

// ShotReport is the per-shot summary published after each judgement.
type ShotReport struct {
	SessionID string         `json:"session_id"`
	Shooter   rules.Player   `json:"shooter"`
	Events    rules.Events   `json:"events"`
	Decision  rules.Decision `json:"decision"`
	Digest    uint64         `json:"digest"`
}

// Snapshot is the live view of a session kept for spectators and the API.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	Status    SessionStatus       `json:"status"`
	State     string              `json:"state"`
	Turn      rules.Player        `json:"turn"`
	Players   [2]string           `json:"players"`
	Balls     []physics.BallState `json:"balls"`
	Digest    uint64              `json:"digest"`
	StartedAt time.Time           `json:"started_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Recorder persists finished matches.
type Recorder interface {
	RecordMatch(ctx context.Context, result MatchResult) error
}

// Publisher streams live match telemetry.
type Publisher interface {
	PublishShot(ctx context.Context, report ShotReport) error
	PublishEnd(ctx context.Context, result MatchResult) error
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}
