package game

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/playpool/billiards/internal/logger"
)

// Manager pairs ready players into sessions, keeps the lobbies players open
// for each other, and tracks the live sessions.
type Manager struct {
	base     Options
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	queue    []*Player
	sessions map[string]*Session
	byPeer   map[string]string // peer ID -> session ID
	lobbies  map[string]*lobby
	hosting  map[string]string // peer ID -> lobby ID
	closed   bool
	wg       sync.WaitGroup
}

// NewManager creates a manager whose sessions start from base.
func NewManager(base Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		base:     base,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		byPeer:   make(map[string]string),
		lobbies:  make(map[string]*lobby),
		hosting:  make(map[string]string),
	}
}

// Enqueue adds a player to the matchmaking queue. If an opponent is already
// waiting the two are seated at once and the new session is returned.
func (m *Manager) Enqueue(p *Player) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLobbiesLocked()
	if err := m.seatableLocked(p); err != nil {
		return nil, err
	}
	m.queue = append(m.queue, p)
	logger.Log.Infow("[MATCHMAKER] player queued", "peer", p.Peer.ID(), "name", p.Name, "waiting", len(m.queue))
	return m.matchLocked(), nil
}

// Leave removes a waiting player from the queue and closes any lobby they
// host, e.g. on logout. It reports whether the player was waiting.
func (m *Manager) Leave(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.hosting[peerID]; ok {
		m.closeLobbyLocked(m.lobbies[id])
		return true
	}
	for i, q := range m.queue {
		if q.Peer.ID() == peerID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// SessionFor returns the session a connection is seated at.
func (m *Manager) SessionFor(peerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.byPeer[peerID]]
	return s, ok
}

// List snapshots every live session, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// matchLocked seats the two oldest compatible players. m.mu must be held.
func (m *Manager) matchLocked() *Session {
	m.pruneLocked()
	for i := 0; i < len(m.queue); i++ {
		for j := i + 1; j < len(m.queue); j++ {
			a, b := m.queue[i], m.queue[j]
			if a.UserID != 0 && a.UserID == b.UserID {
				continue
			}
			m.queue = append(m.queue[:j], m.queue[j+1:]...)
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return m.startLocked(a, b, m.base)
		}
	}
	return nil
}

// pruneLocked drops queued players whose connection has gone.
func (m *Manager) pruneLocked() {
	live := m.queue[:0]
	for _, q := range m.queue {
		select {
		case <-q.Peer.Broken():
			logger.Log.Infow("[MATCHMAKER] dropping disconnected player", "peer", q.Peer.ID())
		default:
			live = append(live, q)
		}
	}
	for i := len(live); i < len(m.queue); i++ {
		m.queue[i] = nil
	}
	m.queue = live
}

func (m *Manager) startLocked(a, b *Player, opts Options) *Session {
	s := NewSession(a, b, opts)
	m.sessions[s.ID()] = s
	m.byPeer[a.Peer.ID()] = s.ID()
	m.byPeer[b.Peer.ID()] = s.ID()
	logger.Log.Infow("[MATCHMAKER] match created", "session", s.ID(), "player1", a.Name, "player2", b.Name)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Warnw("[MATCHMAKER] session ended with error", "session", s.ID(), "error", err)
		}
		m.mu.Lock()
		delete(m.sessions, s.ID())
		if m.byPeer[a.Peer.ID()] == s.ID() {
			delete(m.byPeer, a.Peer.ID())
		}
		if m.byPeer[b.Peer.ID()] == s.ID() {
			delete(m.byPeer, b.Peer.ID())
		}
		m.mu.Unlock()
	}()
	return s
}

// Shutdown cancels every live session and waits for them to finish or ctx
// to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	clear(m.lobbies)
	clear(m.hosting)
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
