package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playpool/billiards/internal/channel"
	"github.com/playpool/billiards/internal/protocol"
)

// fakePeer records what a session sends and lets a test play the client.
type fakePeer struct {
	id       string
	mu       sync.Mutex
	handlers map[protocol.Command]channel.Handler
	sent     chan protocol.Message
	broken   chan struct{}
	once     sync.Once
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{
		id:       id,
		handlers: make(map[protocol.Command]channel.Handler),
		sent:     make(chan protocol.Message, 1024),
		broken:   make(chan struct{}),
	}
}

func (f *fakePeer) ID() string { return f.id }

func (f *fakePeer) Send(m protocol.Message) error {
	select {
	case <-f.broken:
		return channel.ErrClosed
	default:
	}
	f.sent <- m
	return nil
}

func (f *fakePeer) Handle(cmd protocol.Command, fn channel.Handler) {
	f.mu.Lock()
	f.handlers[cmd] = fn
	f.mu.Unlock()
}

func (f *fakePeer) Broken() <-chan struct{} { return f.broken }

func (f *fakePeer) Break() { f.once.Do(func() { close(f.broken) }) }

// deliver plays a message from the client into the registered handler.
func (f *fakePeer) deliver(t *testing.T, cmd protocol.Command, args ...any) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[cmd]
	f.mu.Unlock()
	require.NotNil(t, h, "no handler for %s", cmd)
	require.NoError(t, h(protocol.New(cmd, args...)))
}

// waitFor drains sent messages until one of cmds arrives.
func (f *fakePeer) waitFor(t *testing.T, cmds ...protocol.Command) protocol.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m := <-f.sent:
			for _, c := range cmds {
				if m.Command == c {
					return m
				}
			}
		case <-timeout:
			t.Fatalf("%s never received any of %v", f.id, cmds)
			return protocol.Message{}
		}
	}
}

// quiet asserts no message with cmd arrives within d.
func (f *fakePeer) quiet(t *testing.T, cmd protocol.Command, d time.Duration) {
	t.Helper()
	timeout := time.After(d)
	for {
		select {
		case m := <-f.sent:
			require.NotEqual(t, cmd, m.Command, "unexpected %s to %s", cmd, f.id)
		case <-timeout:
			return
		}
	}
}
