package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/protocol"
)

var (
	// ErrBroken means the peer stopped acknowledging or the stream failed.
	ErrBroken = errors.New("channel broken")
	// ErrClosed is returned when sending on a channel that is no longer in use.
	ErrClosed = errors.New("channel closed")
)

// Handler processes one inbound message. Errors are logged, never fatal.
type Handler func(protocol.Message) error

// Channel is an ordered, acknowledgment-gated command stream over a raw byte
// stream. Every significant message must be acknowledged with a "received"
// before the next one goes out; advisory messages are written as soon as they
// are sent and are never acknowledged.
type Channel struct {
	id     string
	stream io.ReadWriteCloser
	opts   Options
	log    *zap.SugaredLogger

	in   *Queue[*protocol.Message]
	out  *Queue[*protocol.Message]
	wire *Queue[[]byte]

	handlersMu sync.RWMutex
	handlers   map[protocol.Command]Handler

	inUse    atomic.Bool
	awaiting atomic.Bool
	// seq numbers significant frames; only the sender goroutine writes it.
	seq      uint64
	awaitSeq atomic.Uint64

	once   sync.Once
	broken chan struct{}
	errMu  sync.Mutex
	err    error
}

func New(stream io.ReadWriteCloser, opts Options) *Channel {
	opts = opts.withDefaults()
	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logger.Log
	}
	c := &Channel{
		id:       id,
		stream:   stream,
		opts:     opts,
		log:      log.With("channel_id", id),
		in:       NewQueue[*protocol.Message](),
		out:      NewQueue[*protocol.Message](),
		wire:     NewQueue[[]byte](),
		handlers: make(map[protocol.Command]Handler),
		broken:   make(chan struct{}),
	}
	c.inUse.Store(true)
	return c
}

func (c *Channel) ID() string { return c.id }

// InUse is false once the channel has been closed or declared broken.
func (c *Channel) InUse() bool { return c.inUse.Load() }

// Awaiting reports whether a significant message is still unacknowledged.
func (c *Channel) Awaiting() bool { return c.awaiting.Load() }

// Broken is closed when the channel stops, gracefully or not.
func (c *Channel) Broken() <-chan struct{} { return c.broken }

// Err returns the terminal error, or nil after a graceful Close.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Pending returns how many real messages are queued in each direction.
func (c *Channel) Pending() (in, out int) {
	return countMessages(c.in), countMessages(c.out)
}

func countMessages(q *Queue[*protocol.Message]) int {
	n := 0
	for _, m := range q.Snapshot() {
		if m != nil {
			n++
		}
	}
	return n
}

// Handle registers fn for cmd, replacing any previous handler.
func (c *Channel) Handle(cmd protocol.Command, fn Handler) {
	c.handlersMu.Lock()
	c.handlers[cmd] = fn
	c.handlersMu.Unlock()
}

func (c *Channel) handler(cmd protocol.Command) Handler {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers[cmd]
}

// Send queues a significant message, or writes an advisory one immediately.
func (c *Channel) Send(m protocol.Message) error {
	if !c.InUse() {
		return ErrClosed
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Command.Advisory() {
		frame, err := protocol.Encode(m)
		if err != nil {
			return err
		}
		c.wire.Push(frame)
		return nil
	}
	c.out.Push(&m)
	return nil
}

// Run starts the receiver, processor, sender and writer and blocks until they
// all exit. Cancelling ctx closes the channel.
func (c *Channel) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(c.receive)
	g.Go(c.process)
	g.Go(c.send)
	g.Go(c.writeLoop)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			c.Close()
		case <-c.broken:
		}
		return nil
	})
	return g.Wait()
}

// Close stops the channel without recording an error.
func (c *Channel) Close() {
	c.terminate(nil)
}

func (c *Channel) fail(err error) {
	if !errors.Is(err, ErrBroken) {
		err = fmt.Errorf("%w: %w", ErrBroken, err)
	}
	c.terminate(err)
}

func (c *Channel) terminate(err error) {
	c.once.Do(func() {
		c.inUse.Store(false)
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		c.in.Clear()
		c.out.Clear()
		c.wire.Clear()
		c.in.Push(nil)
		c.out.Push(nil)
		c.wire.Push(nil)
		c.awaiting.Store(false)

		close(c.broken)
		if cerr := c.stream.Close(); cerr != nil {
			c.log.Debugw("[CHANNEL] close stream", "error", cerr)
		}
		if err != nil {
			c.log.Warnw("[CHANNEL] broken", "error", err)
		} else {
			c.log.Debug("[CHANNEL] closed")
		}
	})
}

// writeLoop is the only goroutine writing to the stream. Frames are written
// whole, in chunks of at most ChunkSize bytes.
func (c *Channel) writeLoop() error {
	for {
		frame := c.wire.Pop()
		if frame == nil || !c.InUse() {
			return nil
		}
		for len(frame) > 0 {
			n := min(len(frame), c.opts.ChunkSize)
			if _, err := c.stream.Write(frame[:n]); err != nil {
				if !c.InUse() {
					return nil
				}
				c.fail(err)
				return c.Err()
			}
			frame = frame[n:]
		}
	}
}

var ackFrame = mustEncode(protocol.New(protocol.CmdReceived))

// ackFor acknowledges a frame, echoing its sequence number when it has one.
func ackFor(m protocol.Message) []byte {
	if m.Seq == 0 {
		return ackFrame
	}
	return mustEncode(protocol.Message{Command: protocol.CmdReceived, Seq: m.Seq})
}

func mustEncode(m protocol.Message) []byte {
	frame, err := protocol.Encode(m)
	if err != nil {
		panic(err)
	}
	return frame
}

func (c *Channel) receive() error {
	splitter := protocol.Splitter{Max: c.opts.MaxFrame}
	buf := make([]byte, c.opts.ChunkSize)
	for {
		n, err := c.stream.Read(buf)
		if n > 0 {
			frames, ferr := splitter.Feed(buf[:n])
			for _, frame := range frames {
				c.receiveFrame(frame)
			}
			if ferr != nil {
				c.fail(ferr)
				return c.Err()
			}
		}
		if err != nil {
			if !c.InUse() {
				return nil
			}
			c.fail(err)
			return c.Err()
		}
	}
}

// receiveFrame handles one frame. Acknowledgments go straight to the writer
// rather than the outbound queue, so they are never held back behind our own
// unacknowledged send. Frames that fail to decode are still acknowledged
// unless they name an advisory command.
//
// An acknowledgment carrying a sequence number only releases the frame with
// that number, so a late duplicate for a resent frame cannot release its
// successor. Unnumbered acknowledgments release whatever is awaiting.
func (c *Channel) receiveFrame(frame []byte) {
	m, err := protocol.Decode(frame)
	if m.Command == protocol.CmdReceived {
		if m.Seq != 0 && m.Seq != c.awaitSeq.Load() {
			c.log.Debugw("[CHANNEL] ignoring stale acknowledgment", "seq", m.Seq)
			return
		}
		c.awaiting.Store(false)
		return
	}
	if m.Command.Significant() {
		c.wire.Push(ackFor(m))
	}
	if err != nil {
		c.log.Warnw("[CHANNEL] dropping frame", "error", err, "frame", string(frame))
		return
	}
	c.in.Push(&m)
}

func (c *Channel) process() error {
	for {
		m := c.in.Pop()
		if m == nil || !c.InUse() {
			return nil
		}
		h := c.handler(m.Command)
		if h == nil {
			c.log.Warnw("[CHANNEL] no handler", "command", m.Command)
			continue
		}
		if err := h(*m); err != nil {
			c.log.Warnw("[CHANNEL] handler failed", "command", m.Command, "error", err)
		}
	}
}

func (c *Channel) send() error {
	for {
		m := c.out.Pop()
		if m == nil || !c.InUse() {
			return nil
		}
		c.seq++
		m.Seq = c.seq
		frame, err := protocol.Encode(*m)
		if err != nil {
			c.log.Errorw("[CHANNEL] encode", "command", m.Command, "error", err)
			continue
		}
		c.awaitSeq.Store(m.Seq)
		c.awaiting.Store(true)
		c.wire.Push(frame)
		if err := c.awaitAck(frame); err != nil {
			return err
		}
	}
}

// awaitAck polls for the acknowledgment of frame, resending it verbatim each
// time the timeout passes. After MaxResends unanswered resends the channel
// is broken.
func (c *Channel) awaitAck(frame []byte) error {
	ticker := time.NewTicker(c.opts.AckPoll)
	defer ticker.Stop()
	for resends := 0; ; resends++ {
		deadline := time.Now().Add(c.opts.AckTimeout)
		for c.awaiting.Load() && time.Now().Before(deadline) {
			select {
			case <-c.broken:
				return c.Err()
			case <-ticker.C:
			}
		}
		if !c.InUse() {
			return c.Err()
		}
		if !c.awaiting.Load() {
			return nil
		}
		if resends == c.opts.MaxResends {
			c.fail(fmt.Errorf("%w: no acknowledgment after %d resends", ErrBroken, resends))
			return c.Err()
		}
		c.log.Debugw("[CHANNEL] resending", "attempt", resends+1)
		c.wire.Push(frame)
	}
}
