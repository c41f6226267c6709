package server

import (
	"errors"
	"sync"

	"github.com/playpool/billiards/internal/channel"
	"github.com/playpool/billiards/internal/game"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
)

var (
	errAuthRequired = errors.New("authentication required")
	errBadToken     = errors.New("invalid token")
)

// identity is who a connection has logged in as. Guests have no user ID.
type identity struct {
	userID int64
	name   string
}

// conn is the connection-level state of one client: who it is and whether it
// wants cue telemetry.
type conn struct {
	srv *Server
	ch  *channel.Channel

	mu         sync.Mutex
	who        *identity
	player     *game.Player
	receiveCue *bool
}

func (c *conn) register() {
	c.ch.Handle(protocol.CmdLogin, c.onLogin)
	c.ch.Handle(protocol.CmdReady, c.onReady)
	c.ch.Handle(protocol.CmdCreateLobby, c.onCreateLobby)
	c.ch.Handle(protocol.CmdRetrieveLobbies, c.onRetrieveLobbies)
	c.ch.Handle(protocol.CmdJoinLobby, c.onJoinLobby)
	c.ch.Handle(protocol.CmdReceiveCueData, c.onReceiveCueData)
	c.ch.Handle(protocol.CmdLogout, func(protocol.Message) error {
		c.logout()
		return nil
	})
	c.ch.Handle(protocol.CmdDisconnect, func(protocol.Message) error {
		c.ch.Close()
		return nil
	})
}

// onLogin authenticates the connection ahead of creating or joining a lobby.
// Logging in again leaves any queue or lobby the old identity was waiting in.
func (c *conn) onLogin(m protocol.Message) error {
	userID, name, err := c.identify(m)
	if err != nil {
		c.reject(err)
		return err
	}
	c.logout()
	c.mu.Lock()
	c.who = &identity{userID: userID, name: name}
	c.mu.Unlock()
	return c.ch.Send(protocol.New(protocol.CmdLoginSuccess, name))
}

// onReady authenticates the client and puts it in the matchmaking queue. A
// ready without a token reuses an earlier login.
func (c *conn) onReady(m protocol.Message) error {
	c.mu.Lock()
	known := c.who != nil
	c.mu.Unlock()
	if !known || (len(m.Args) > 0 && m.Args[0] != nil) {
		userID, name, err := c.identify(m)
		if err != nil {
			c.reject(err)
			return err
		}
		c.mu.Lock()
		if c.who == nil {
			c.who = &identity{userID: userID, name: name}
		}
		c.mu.Unlock()
	}

	p, err := c.seat()
	if err != nil {
		c.reject(err)
		return err
	}
	s, err := c.srv.deps.Matches.Enqueue(p)
	if err != nil {
		c.reject(err)
		return err
	}
	if s != nil {
		logger.Log.Infow("[SERVER] player seated", "channel_id", c.ch.ID(), "session", s.ID())
	}
	return nil
}

// seat returns the connection's player, creating it from the current
// identity on first use.
func (c *conn) seat() (*game.Player, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.who == nil {
		return nil, errAuthRequired
	}
	if c.player == nil {
		c.player = game.NewPlayer(c.ch, c.who.userID, c.who.name)
		if c.receiveCue != nil {
			c.player.SetReceiveCue(*c.receiveCue)
		}
	}
	return c.player, nil
}

// lobbyPlayer is the player behind a lobby command. Without a login only
// guests are let in.
func (c *conn) lobbyPlayer() (*game.Player, error) {
	c.mu.Lock()
	if c.who == nil {
		if !c.srv.deps.AllowGuests {
			c.mu.Unlock()
			return nil, errAuthRequired
		}
		c.who = &identity{name: guestName()}
	}
	c.mu.Unlock()
	return c.seat()
}

// onCreateLobby opens a lobby from (settings|null, name?, password?).
// Settings fields the client leaves out keep their standard values.
func (c *conn) onCreateLobby(m protocol.Message) error {
	p, err := c.lobbyPlayer()
	if err != nil {
		c.reject(err)
		return err
	}
	opts, err := lobbyOptions(m)
	if err != nil {
		c.reject(err)
		return err
	}
	if _, err := c.srv.deps.Matches.CreateLobby(p, opts); err != nil {
		c.reject(err)
		return err
	}
	return nil
}

func lobbyOptions(m protocol.Message) (game.LobbyOptions, error) {
	var opts game.LobbyOptions
	if m.Args[0] != nil {
		settings := physics.DefaultSettings()
		if err := m.Object(0, &settings); err != nil {
			return opts, err
		}
		opts.Settings = &settings
	}
	var err error
	if opts.Name, err = m.OptionalString(1); err != nil {
		return opts, err
	}
	if opts.Password, err = m.OptionalString(2); err != nil {
		return opts, err
	}
	return opts, nil
}

// onRetrieveLobbies answers with the open lobbies, capped by an optional
// limit where 0 means all of them.
func (c *conn) onRetrieveLobbies(m protocol.Message) error {
	limit := 0
	if len(m.Args) > 0 {
		n, err := m.Int(0)
		if err != nil {
			c.reject(err)
			return err
		}
		limit = n
	}
	return c.ch.Send(protocol.New(protocol.CmdReceiveLobbies, c.srv.deps.Matches.Lobbies(limit)))
}

// onJoinLobby joins (id, password?). A locked lobby joined without a
// password asks the client for one instead of failing.
func (c *conn) onJoinLobby(m protocol.Message) error {
	p, err := c.lobbyPlayer()
	if err != nil {
		c.reject(err)
		return err
	}
	id, err := m.String(0)
	if err != nil {
		c.reject(err)
		return err
	}
	password, err := m.OptionalString(1)
	if err != nil {
		c.reject(err)
		return err
	}
	s, err := c.srv.deps.Matches.JoinLobby(p, id, password)
	if errors.Is(err, game.ErrPasswordRequired) {
		return c.ch.Send(protocol.New(protocol.CmdRequestLobbyPassword, id))
	}
	if err != nil {
		c.reject(err)
		return err
	}
	logger.Log.Infow("[SERVER] player joined lobby", "channel_id", c.ch.ID(), "lobby", id, "session", s.ID())
	return nil
}

func (c *conn) identify(m protocol.Message) (int64, string, error) {
	if len(m.Args) == 0 || m.Args[0] == nil {
		if !c.srv.deps.AllowGuests {
			return 0, "", errAuthRequired
		}
		return 0, guestName(), nil
	}
	token, err := m.String(0)
	if err != nil {
		return 0, "", err
	}
	if token == "" && c.srv.deps.AllowGuests {
		return 0, guestName(), nil
	}
	if c.srv.deps.Tokens == nil {
		return 0, "", errAuthRequired
	}
	claims, err := c.srv.deps.Tokens.Verify(token)
	if err != nil {
		return 0, "", errBadToken
	}
	return claims.UserID, claims.Username, nil
}

func (c *conn) onReceiveCueData(m protocol.Message) error {
	v, err := m.Bool(0)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiveCue = &v
	if c.player != nil {
		c.player.SetReceiveCue(v)
	}
	return nil
}

// logout forgets the client's identity and takes it out of the queue or the
// lobby it hosts. A seated client stays seated; quitting a match is the
// session's quit command.
func (c *conn) logout() {
	c.mu.Lock()
	p := c.player
	c.player, c.who = nil, nil
	c.mu.Unlock()
	if p != nil && c.srv.deps.Matches.Leave(c.ch.ID()) {
		logger.Log.Infow("[SERVER] player stopped waiting", "channel_id", c.ch.ID())
	}
}

func (c *conn) reject(err error) {
	if sendErr := c.ch.Send(protocol.New(protocol.CmdError, err.Error())); sendErr != nil && !errors.Is(sendErr, channel.ErrClosed) {
		logger.Log.Warnw("[SERVER] failed to report error", "channel_id", c.ch.ID(), "error", sendErr)
	}
}
