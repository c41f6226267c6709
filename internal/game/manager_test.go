package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(Options{Settings: physics.DefaultSettings(), Starting: rules.P1, Seed: 1, Unpaced: true, CueInterval: 10 * time.Millisecond})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func TestManagerPairsTwoPlayers(t *testing.T) {
	m := newTestManager(t)
	a, b := newFakePeer("a"), newFakePeer("b")

	s, err := m.Enqueue(NewPlayer(a, 1, "alice"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, 1, m.Waiting())

	_, err = m.Enqueue(NewPlayer(a, 1, "alice"))
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	s, err = m.Enqueue(NewPlayer(b, 2, "bob"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 0, m.Waiting())

	got, ok := m.SessionFor("a")
	require.True(t, ok)
	assert.Same(t, s, got)
	got, ok = m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err = m.Enqueue(NewPlayer(b, 2, "bob"))
	assert.ErrorIs(t, err, ErrAlreadyPlaying)

	a.waitFor(t, protocol.CmdCreateGame)
	b.waitFor(t, protocol.CmdCreateGame)
	require.Len(t, m.List(), 1)
	assert.Equal(t, s.ID(), m.List()[0].SessionID)
}

func TestManagerSkipsSameUser(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Enqueue(NewPlayer(newFakePeer("a1"), 7, "carol"))
	require.NoError(t, err)
	require.Nil(t, s)
	s, err = m.Enqueue(NewPlayer(newFakePeer("a2"), 7, "carol"))
	require.NoError(t, err)
	assert.Nil(t, s, "two connections of one account never play each other")
	assert.Equal(t, 2, m.Waiting())

	s, err = m.Enqueue(NewPlayer(newFakePeer("d"), 8, "dave"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, m.Waiting())
	_, ok := m.SessionFor("a1")
	assert.True(t, ok, "the oldest compatible pair is seated")
}

func TestManagerDropsBrokenPeers(t *testing.T) {
	m := newTestManager(t)
	gone := newFakePeer("gone")
	_, err := m.Enqueue(NewPlayer(gone, 1, "x"))
	require.NoError(t, err)
	gone.Break()

	s, err := m.Enqueue(NewPlayer(newFakePeer("y"), 2, "y"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, 1, m.Waiting())

	assert.True(t, m.Leave("y"))
	assert.False(t, m.Leave("y"))
	assert.Equal(t, 0, m.Waiting())
}

func TestManagerForgetsFinishedSession(t *testing.T) {
	m := newTestManager(t)
	a, b := newFakePeer("a"), newFakePeer("b")
	_, err := m.Enqueue(NewPlayer(a, 1, "a"))
	require.NoError(t, err)
	s, err := m.Enqueue(NewPlayer(b, 2, "b"))
	require.NoError(t, err)
	require.NotNil(t, s)

	a.waitFor(t, protocol.CmdCreateGame)
	a.deliver(t, protocol.CmdQuit)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	require.Eventually(t, func() bool {
		_, ok := m.Get(s.ID())
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := m.SessionFor("b")
	assert.False(t, ok)
	assert.Equal(t, StatusCompleted, s.Status())
}

func TestManagerWorkerPairsQueued(t *testing.T) {
	m := newTestManager(t)
	// Queue directly so Enqueue does not pair them first.
	m.mu.Lock()
	m.queue = append(m.queue, NewPlayer(newFakePeer("p"), 0, "p"), NewPlayer(newFakePeer("q"), 0, "q"))
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartMatchmakerWorker(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return m.Waiting() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, ok := m.SessionFor("p")
	assert.True(t, ok)
}

func TestManagerShutdown(t *testing.T) {
	m := newTestManager(t)
	a, b := newFakePeer("a"), newFakePeer("b")
	_, err := m.Enqueue(NewPlayer(a, 1, "a"))
	require.NoError(t, err)
	s, err := m.Enqueue(NewPlayer(b, 2, "b"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	<-s.Done()
	assert.Equal(t, StatusCancelled, s.Status())

	_, err = m.Enqueue(NewPlayer(newFakePeer("c"), 3, "c"))
	assert.ErrorIs(t, err, ErrManagerClosed)
}
