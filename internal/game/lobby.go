package game

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playpool/billiards/internal/accounts"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

const (
	maxLobbyName = 64
	// reservedLobbyName is what server-run competitive tables are called;
	// user lobbies by that name are marked so they cannot pass as one.
	reservedLobbyName = "competitive game"
)

// LobbyOptions describe a lobby a player opens. A nil Settings uses the
// manager's table.
type LobbyOptions struct {
	Name     string
	Password string
	Settings *physics.Settings
}

// LobbyInfo is the public view of an open lobby.
type LobbyInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Host        string    `json:"host"`
	Players     int       `json:"players"`
	Locked      bool      `json:"locked"`
	Competitive bool      `json:"competitive"`
	CreatedAt   time.Time `json:"created_at"`
}

// lobby is a host waiting at a table of their own for a second player.
type lobby struct {
	id        string
	name      string
	hash      string
	host      *Player
	opts      Options
	createdAt time.Time
}

func (l *lobby) info() LobbyInfo {
	return LobbyInfo{
		ID:          l.id,
		Name:        l.name,
		Host:        l.host.Name,
		Players:     1,
		Locked:      l.hash != "",
		Competitive: !l.opts.Private && l.opts.Settings.Competitive(physics.DefaultSettings()),
		CreatedAt:   l.createdAt,
	}
}

func lobbyName(name, host string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = host + "'s game"
	}
	if len(name) > maxLobbyName {
		return "", ErrLobbyName
	}
	if strings.EqualFold(name, reservedLobbyName) {
		name += " (user created)"
	}
	return name, nil
}

// CreateLobby opens a lobby hosted by p. The host waits there until someone
// joins; a password, if given, is stored only as a bcrypt hash.
func (m *Manager) CreateLobby(host *Player, o LobbyOptions) (LobbyInfo, error) {
	name, err := lobbyName(o.Name, host.Name)
	if err != nil {
		return LobbyInfo{}, err
	}
	opts := m.base
	if o.Settings != nil {
		if err := o.Settings.Validate(); err != nil {
			return LobbyInfo{}, err
		}
		opts.Settings = *o.Settings
		opts.Starting = rules.Nobody
	}
	var hash string
	if o.Password != "" {
		if hash, err = accounts.HashPassword(o.Password); err != nil {
			return LobbyInfo{}, fmt.Errorf("lobby password: %w", err)
		}
		opts.Private = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.seatableLocked(host); err != nil {
		return LobbyInfo{}, err
	}
	l := &lobby{
		id:        uuid.NewString(),
		name:      name,
		hash:      hash,
		host:      host,
		opts:      opts,
		createdAt: time.Now(),
	}
	m.lobbies[l.id] = l
	m.hosting[host.Peer.ID()] = l.id
	info := l.info()
	// Queued under the lock so the host hears of the lobby before any game
	// it starts.
	notify(host, protocol.New(protocol.CmdLobbyCreated, info))
	logger.Log.Infow("[MATCHMAKER] lobby created", "lobby", l.id, "name", l.name, "host", host.Name, "locked", hash != "")
	return info, nil
}

// Lobbies lists open lobbies, oldest first. A positive limit caps the list.
func (m *Manager) Lobbies(limit int) []LobbyInfo {
	m.mu.Lock()
	m.pruneLobbiesLocked()
	out := make([]LobbyInfo, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		out = append(out, l.info())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// JoinLobby seats p opposite the host of lobby id. The host breaks unless
// the lobby's settings say otherwise.
func (m *Manager) JoinLobby(p *Player, id, password string) (*Session, error) {
	m.mu.Lock()
	l, err := m.joinableLocked(p, id)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if l.hash != "" {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if !accounts.CheckPassword(l.hash, password) {
			return nil, ErrWrongPassword
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.joinableLocked(p, id)
	if err != nil {
		return nil, err
	}
	if current != l {
		return nil, ErrLobbyNotFound
	}
	m.closeLobbyLocked(l)
	notify(p, protocol.New(protocol.CmdJoinSuccess, l.id))
	logger.Log.Infow("[MATCHMAKER] lobby joined", "lobby", l.id, "host", l.host.Name, "guest", p.Name)
	return m.startLocked(l.host, p, l.opts), nil
}

func notify(p *Player, m protocol.Message) {
	if err := p.Peer.Send(m); err != nil {
		logger.Log.Debugw("[MATCHMAKER] notify failed", "peer", p.Peer.ID(), "command", m.Command, "error", err)
	}
}

func (m *Manager) joinableLocked(p *Player, id string) (*lobby, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}
	m.pruneLobbiesLocked()
	l, ok := m.lobbies[id]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	if l.host.Peer.ID() == p.Peer.ID() || (p.UserID != 0 && p.UserID == l.host.UserID) {
		return nil, ErrOwnLobby
	}
	if err := m.seatableLocked(p); err != nil {
		return nil, err
	}
	return l, nil
}

// seatableLocked rejects players who are already queued, hosting or seated.
func (m *Manager) seatableLocked(p *Player) error {
	if m.closed {
		return ErrManagerClosed
	}
	id := p.Peer.ID()
	if _, playing := m.byPeer[id]; playing {
		return ErrAlreadyPlaying
	}
	if _, hosting := m.hosting[id]; hosting {
		return ErrAlreadyHosting
	}
	for _, q := range m.queue {
		if q.Peer.ID() == id {
			return ErrAlreadyQueued
		}
	}
	return nil
}

func (m *Manager) closeLobbyLocked(l *lobby) {
	delete(m.lobbies, l.id)
	if m.hosting[l.host.Peer.ID()] == l.id {
		delete(m.hosting, l.host.Peer.ID())
	}
}

// pruneLobbiesLocked closes lobbies whose host has disconnected.
func (m *Manager) pruneLobbiesLocked() {
	for _, l := range m.lobbies {
		select {
		case <-l.host.Peer.Broken():
			logger.Log.Infow("[MATCHMAKER] closing lobby of disconnected host", "lobby", l.id, "peer", l.host.Peer.ID())
			m.closeLobbyLocked(l)
		default:
		}
	}
}
