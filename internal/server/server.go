// Package server accepts game connections and turns each into a reliable
// channel whose connection-level commands feed the matchmaker.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/playpool/billiards/internal/accounts"
	"github.com/playpool/billiards/internal/channel"
	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/logger"
)

var ErrServerClosed = errors.New("server closed")

// Verifier checks a session token from the ready command.
type Verifier interface {
	Verify(token string) (*accounts.Claims, error)
}

// Matchmaker seats ready players and runs the lobbies. *game.Manager
// satisfies it.
type Matchmaker interface {
	Enqueue(p *game.Player) (*game.Session, error)
	Leave(peerID string) bool
	CreateLobby(host *game.Player, o game.LobbyOptions) (game.LobbyInfo, error)
	Lobbies(limit int) []game.LobbyInfo
	JoinLobby(p *game.Player, id, password string) (*game.Session, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Tokens  Verifier
	Matches Matchmaker
	Channel channel.Options
	// AllowGuests lets a ready without a token join under a generated name.
	AllowGuests bool
}

// Server owns every live connection. It has no package-level state; several
// can run in one process.
type Server struct {
	addr string
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*conn
	closed   bool
	wg       sync.WaitGroup
	ready    chan struct{}
}

func New(addr string, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*conn),
		ready:  make(chan struct{}),
	}
}

// ListenAndServe accepts TCP connections on the server address until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections from ln. It takes ownership of ln.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	close(s.ready)
	s.mu.Unlock()
	logger.Log.Infow("[SERVER] accepting game connections", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.ctx.Done():
		}
		return ln.Close()
	})
	g.Go(func() error {
		for {
			nc, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil || s.ctx.Err() != nil {
					return nil
				}
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					continue
				}
				return fmt.Errorf("accept: %w", err)
			}
			if tcp, ok := nc.(*net.TCPConn); ok {
				tcp.SetNoDelay(true)
			}
			go func() {
				if err := s.Serve(gctx, nc); err != nil && !errors.Is(err, ErrServerClosed) {
					logger.Log.Debugw("[SERVER] connection ended", "remote", nc.RemoteAddr().String(), "error", err)
				}
			}()
		}
	})
	err := g.Wait()
	if s.ctx.Err() != nil {
		return ErrServerClosed
	}
	return err
}

// Addr is the bound listener address once serving has started.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Serve runs one connection, from any transport, until it closes. It blocks.
func (s *Server) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	ch := channel.New(stream, s.deps.Channel)
	c := &conn{srv: s, ch: ch}
	c.register()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ch.Close()
		stream.Close()
		return ErrServerClosed
	}
	s.conns[ch.ID()] = c
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	logger.Log.Infow("[SERVER] connection opened", "channel_id", ch.ID())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err := ch.Run(ctx)
	if err == nil {
		err = ch.Err()
	}

	s.mu.Lock()
	delete(s.conns, ch.ID())
	s.mu.Unlock()
	c.logout()
	logger.Log.Infow("[SERVER] connection closed", "channel_id", ch.ID(), "error", err)
	return err
}

// Connections is the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, closes every connection and waits for their
// goroutines or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range conns {
		c.ch.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Log.Info("[SERVER] shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func guestName() string {
	return "guest-" + uuid.NewString()[:8]
}
