package handlers

import (
	"context"
	"io"

	"github.com/playpool/billiards/internal/accounts"
	"github.com/playpool/billiards/internal/config"
	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/models"
	"github.com/playpool/billiards/internal/redis"
)

// Users is the account store.
type Users interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
}

// Tokens issues and checks session tokens.
type Tokens interface {
	Issue(userID int64, username string) (string, error)
	Verify(token string) (*accounts.Claims, error)
}

// Stats answers statistics queries.
type Stats interface {
	Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error)
	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)
}

// Sessions lists the matches running in this process.
type Sessions interface {
	List() []game.Snapshot
	Waiting() int
}

// Lobbies lists the lobbies open on this process.
type Lobbies interface {
	Lobbies(limit int) []game.LobbyInfo
}

// Snapshots reads the shared view of matches, which may be running on any
// server process.
type Snapshots interface {
	GetSnapshot(ctx context.Context, sessionID string) (game.Snapshot, error)
	ListSessions(ctx context.Context) ([]game.Snapshot, error)
	Subscribe(ctx context.Context, sessionID string) <-chan redis.Event
}

// GameServer runs a game connection over an arbitrary stream.
type GameServer interface {
	Serve(ctx context.Context, stream io.ReadWriteCloser) error
}

// Deps are the handler collaborators. Snapshots may be nil when Redis is not
// configured.
type Deps struct {
	Config    *config.Config
	Users     Users
	Tokens    Tokens
	Stats     Stats
	Sessions  Sessions
	Lobbies   Lobbies
	Snapshots Snapshots
	Games     GameServer
}
