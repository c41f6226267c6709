package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/logger"
)

const (
	// EventsChannel carries every match event as JSON.
	EventsChannel = "match_events"
	sessionIndex  = "sessions:live"
	snapshotKey   = "session:%s"
)

var ErrNotFound = errors.New("session snapshot not found")

// Event types published on EventsChannel.
const (
	EventShot = "shot"
	EventEnd  = "end"
)

// Event is one message on EventsChannel.
type Event struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at"`
	Shot      *game.ShotReport  `json:"shot,omitempty"`
	Result    *game.MatchResult `json:"result,omitempty"`
}

// Publisher streams match telemetry to Redis and keeps a snapshot of every
// live session under a TTL so the HTTP API can list them.
type Publisher struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPublisher(rdb *redis.Client, ttl time.Duration) *Publisher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Publisher{rdb: rdb, ttl: ttl}
}

func SnapshotKey(sessionID string) string {
	return fmt.Sprintf(snapshotKey, sessionID)
}

func (p *Publisher) PublishShot(ctx context.Context, report game.ShotReport) error {
	return p.publish(ctx, Event{Type: EventShot, SessionID: report.SessionID, At: time.Now(), Shot: &report})
}

// PublishEnd announces a finished match and drops it from the live index.
func (p *Publisher) PublishEnd(ctx context.Context, result game.MatchResult) error {
	if err := p.publish(ctx, Event{Type: EventEnd, SessionID: result.SessionID, At: time.Now(), Result: &result}); err != nil {
		return err
	}
	return p.rdb.ZRem(ctx, sessionIndex, result.SessionID).Err()
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// SaveSnapshot stores the session view with SETEX and indexes it by update
// time.
func (p *Publisher) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := p.rdb.TxPipeline()
	pipe.SetEx(ctx, SnapshotKey(snap.SessionID), payload, p.ttl)
	pipe.ZAdd(ctx, sessionIndex, redis.Z{Score: float64(snap.UpdatedAt.Unix()), Member: snap.SessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

func (p *Publisher) GetSnapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	raw, err := p.rdb.Get(ctx, SnapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("get snapshot %s: %w", sessionID, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

// ListSessions returns the snapshots of every indexed session, most recently
// updated first. Index entries whose snapshot has expired are removed.
func (p *Publisher) ListSessions(ctx context.Context) ([]game.Snapshot, error) {
	ids, err := p.rdb.ZRevRange(ctx, sessionIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SnapshotKey(id)
	}
	values, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	snaps, stale := decodeSnapshots(ids, values)
	if len(stale) > 0 {
		members := make([]interface{}, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		if err := p.rdb.ZRem(ctx, sessionIndex, members...).Err(); err != nil {
			logger.Log.Warnw("[REDIS] failed to prune session index", "error", err)
		}
	}
	return snaps, nil
}

// decodeSnapshots pairs MGET values with their ids. Missing or unreadable
// values are returned as stale ids.
func decodeSnapshots(ids []string, values []interface{}) (snaps []game.Snapshot, stale []string) {
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var snap game.Snapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			logger.Log.Warnw("[REDIS] unreadable snapshot", "session", ids[i], "error", err)
			stale = append(stale, ids[i])
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, stale
}

// Subscribe streams the events of one session, or of every session when
// sessionID is empty, until ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	out := make(chan Event, 64)
	pubsub := p.rdb.Subscribe(ctx, EventsChannel)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := DecodeEvent(msg.Payload)
				if err != nil {
					logger.Log.Warnw("[REDIS] invalid event payload", "error", err)
					continue
				}
				if sessionID != "" && ev.SessionID != sessionID {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Type == "" || ev.SessionID == "" {
		return Event{}, fmt.Errorf("event missing type or session")
	}
	return ev, nil
}
