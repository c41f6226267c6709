package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

func TestLobbyCreateListJoin(t *testing.T) {
	m := newTestManager(t)
	host, guest := newFakePeer("host"), newFakePeer("guest")

	info, err := m.CreateLobby(NewPlayer(host, 1, "alice"), LobbyOptions{Name: "friendly"})
	require.NoError(t, err)
	assert.Equal(t, "friendly", info.Name)
	assert.Equal(t, "alice", info.Host)
	assert.False(t, info.Locked)
	assert.True(t, info.Competitive)
	created := host.waitFor(t, protocol.CmdLobbyCreated)
	assert.Equal(t, info, created.Args[0])

	_, err = m.CreateLobby(NewPlayer(host, 1, "alice"), LobbyOptions{})
	assert.ErrorIs(t, err, ErrAlreadyHosting)
	_, err = m.Enqueue(NewPlayer(host, 1, "alice"))
	assert.ErrorIs(t, err, ErrAlreadyHosting)

	lobbies := m.Lobbies(0)
	require.Len(t, lobbies, 1)
	assert.Equal(t, info.ID, lobbies[0].ID)

	s, err := m.JoinLobby(NewPlayer(guest, 2, "bob"), info.ID, "")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, m.Lobbies(0))
	assert.True(t, s.competitive)

	first := guest.waitFor(t, protocol.CmdJoinSuccess, protocol.CmdLoadSettings, protocol.CmdCreateGame)
	assert.Equal(t, protocol.CmdJoinSuccess, first.Command)
	assert.Equal(t, []any{info.ID}, first.Args)

	create := host.waitFor(t, protocol.CmdCreateGame)
	assert.Equal(t, 1, create.Args[1], "the host takes the first seat")
	guest.waitFor(t, protocol.CmdCreateGame)

	got, ok := m.SessionFor("guest")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestLobbyPassword(t *testing.T) {
	m := newTestManager(t)
	host, guest := newFakePeer("host"), newFakePeer("guest")

	info, err := m.CreateLobby(NewPlayer(host, 1, "alice"), LobbyOptions{Name: "secret", Password: "hunter22"})
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.False(t, info.Competitive, "locked lobbies are never competitive")

	bob := NewPlayer(guest, 2, "bob")
	_, err = m.JoinLobby(bob, info.ID, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
	_, err = m.JoinLobby(bob, info.ID, "hunter2")
	assert.ErrorIs(t, err, ErrWrongPassword)
	require.Len(t, m.Lobbies(0), 1, "a failed join leaves the lobby open")

	s, err := m.JoinLobby(bob, info.ID, "hunter22")
	require.NoError(t, err)
	assert.False(t, s.competitive)
}

func TestLobbySettings(t *testing.T) {
	m := newTestManager(t)

	bad := physics.DefaultSettings()
	bad.BallRadius = 0
	_, err := m.CreateLobby(NewPlayer(newFakePeer("x"), 0, "x"), LobbyOptions{Settings: &bad})
	assert.ErrorIs(t, err, physics.ErrInvalidSettings)
	assert.Empty(t, m.Lobbies(0))

	custom := physics.DefaultSettings()
	custom.MaxCueForce = 600
	custom.StartingPlayer = 2
	host, guest := newFakePeer("host"), newFakePeer("guest")
	info, err := m.CreateLobby(NewPlayer(host, 1, "alice"), LobbyOptions{Settings: &custom})
	require.NoError(t, err)
	assert.False(t, info.Competitive)
	assert.Equal(t, "alice's game", info.Name)

	s, err := m.JoinLobby(NewPlayer(guest, 2, "bob"), info.ID, "")
	require.NoError(t, err)
	assert.Equal(t, rules.P2, s.Snapshot().Turn)
	loaded := host.waitFor(t, protocol.CmdLoadSettings)
	assert.Equal(t, custom, loaded.Args[0])
}

func TestLobbyNames(t *testing.T) {
	m := newTestManager(t)
	info, err := m.CreateLobby(NewPlayer(newFakePeer("a"), 1, "alice"), LobbyOptions{Name: "Competitive Game"})
	require.NoError(t, err)
	assert.Equal(t, "Competitive Game (user created)", info.Name)

	long := make([]byte, maxLobbyName+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = m.CreateLobby(NewPlayer(newFakePeer("b"), 2, "bob"), LobbyOptions{Name: string(long)})
	assert.ErrorIs(t, err, ErrLobbyName)
}

func TestLobbyJoinRules(t *testing.T) {
	m := newTestManager(t)
	host := newFakePeer("host")
	info, err := m.CreateLobby(NewPlayer(host, 1, "alice"), LobbyOptions{})
	require.NoError(t, err)

	_, err = m.JoinLobby(NewPlayer(host, 1, "alice"), info.ID, "")
	assert.ErrorIs(t, err, ErrOwnLobby)
	_, err = m.JoinLobby(NewPlayer(newFakePeer("alt"), 1, "alice"), info.ID, "")
	assert.ErrorIs(t, err, ErrOwnLobby, "same account on another connection")

	queued := newFakePeer("queued")
	_, err = m.Enqueue(NewPlayer(queued, 3, "carol"))
	require.NoError(t, err)
	_, err = m.JoinLobby(NewPlayer(queued, 3, "carol"), info.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = m.JoinLobby(NewPlayer(newFakePeer("d"), 4, "dave"), "nope", "")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestLobbyClosesWithHost(t *testing.T) {
	m := newTestManager(t)

	gone := newFakePeer("gone")
	_, err := m.CreateLobby(NewPlayer(gone, 1, "alice"), LobbyOptions{})
	require.NoError(t, err)
	gone.Break()
	assert.Empty(t, m.Lobbies(0))

	left := newFakePeer("left")
	info, err := m.CreateLobby(NewPlayer(left, 2, "bob"), LobbyOptions{})
	require.NoError(t, err)
	assert.True(t, m.Leave("left"))
	_, err = m.JoinLobby(NewPlayer(newFakePeer("c"), 3, "carol"), info.ID, "")
	assert.ErrorIs(t, err, ErrLobbyNotFound)

	_, err = m.Enqueue(NewPlayer(left, 2, "bob"))
	assert.NoError(t, err, "leaving a lobby frees the host to queue")
}

func TestLobbiesLimit(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateLobby(NewPlayer(newFakePeer(id), 0, id), LobbyOptions{Name: id})
		require.NoError(t, err)
	}
	assert.Len(t, m.Lobbies(0), 3)
	assert.Len(t, m.Lobbies(2), 2)
}
