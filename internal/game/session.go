package game

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playpool/billiards/internal/channel"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

const (
	DefaultCueInterval = time.Second / 30
	quitMessage        = "Your opponent has quit the game. Congratulations, you win!"
	collaboratorWait   = 5 * time.Second
	preferencePoll     = 50 * time.Millisecond
)

// Peer is one player's connection as a session sees it. *channel.Channel
// satisfies it.
type Peer interface {
	ID() string
	Send(protocol.Message) error
	Handle(protocol.Command, channel.Handler)
	Broken() <-chan struct{}
}

// Player is an authenticated user waiting for or seated at a session.
type Player struct {
	Peer   Peer
	UserID int64
	Name   string

	receiveCue atomic.Bool
	cueKnown   atomic.Bool
}

func NewPlayer(peer Peer, userID int64, name string) *Player {
	p := &Player{Peer: peer, UserID: userID, Name: name}
	p.receiveCue.Store(true)
	return p
}

// SetReceiveCue records whether the client wants the opponent's cue telemetry.
func (p *Player) SetReceiveCue(v bool) {
	p.receiveCue.Store(v)
	p.cueKnown.Store(true)
}

func (p *Player) ReceivesCue() bool { return p.receiveCue.Load() }

func (p *Player) cuePreferenceKnown() bool { return p.cueKnown.Load() }

// Options configures a session.
type Options struct {
	Settings physics.Settings
	// Starting breaks the first rack. When unset the settings' starting
	// player is used, and failing that one is drawn from Seed.
	Starting rules.Player
	// Seed for the rack shuffle; zero picks one from the clock.
	Seed        int64
	CueInterval time.Duration
	// ReadyWait is how long to wait for both cue preferences before starting.
	ReadyWait time.Duration
	// Unpaced runs each shot to rest at once instead of at the table's
	// frame rate.
	Unpaced bool
	// Private sessions, such as password-locked lobbies, never count as
	// competitive.
	Private   bool
	Recorder  Recorder
	Publisher Publisher
}

// Session is the authoritative match between two players. All table and
// rules mutation happens on the goroutine running Run; peer handlers only
// queue actions for it.
type Session struct {
	id          string
	opts        Options
	players     [2]*Player
	ref         *referee
	competitive bool
	maxTicks    int
	actions     chan Action
	done        chan struct{}
	io          *outbox
	log         *zap.SugaredLogger

	pending     map[rules.Player]bool
	sendCueData bool
	cue         *[2]float64
	sentCue     *[2]float64

	mu         sync.RWMutex
	status     SessionStatus
	winner     rules.Player
	startedAt  time.Time
	finishedAt time.Time
	snapshot   Snapshot
}

func NewSession(p1, p2 *Player, opts Options) *Session {
	if opts.CueInterval <= 0 {
		opts.CueInterval = DefaultCueInterval
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	if !opts.Starting.Valid() {
		opts.Starting = rules.Player(opts.Settings.StartingPlayer)
	}
	if !opts.Starting.Valid() {
		opts.Starting = rules.Player(rng.Intn(2) + 1)
	}
	id := uuid.NewString()
	log := logger.Log.With("session_id", id)
	s := &Session{
		id:          id,
		opts:        opts,
		players:     [2]*Player{p1, p2},
		ref:         newReferee(opts.Settings, rng, opts.Starting),
		competitive: !opts.Private && opts.Settings.Competitive(physics.DefaultSettings()),
		maxTicks:    opts.Settings.FPS * defaultShotSeconds,
		actions:     make(chan Action, 64),
		done:        make(chan struct{}),
		io:          newOutbox(log),
		log:         log,
		sendCueData: true,
		status:      StatusWaiting,
	}
	s.snapshot = s.buildSnapshot()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Winner() rules.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.winner
}

// Snapshot returns the state as of the last start, decision or end.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Balls = append([]physics.BallState(nil), snap.Balls...)
	return snap
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) player(p rules.Player) *Player {
	return s.players[int(p)-1]
}

// Run plays the match until it ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	go s.io.run()
	defer s.io.drain()
	for i, p := range s.players {
		seat := rules.Player(i + 1)
		for _, cmd := range SessionCommands() {
			p.Peer.Handle(cmd, s.handler(seat))
		}
	}
	if err := s.awaitPreferences(ctx); err != nil {
		s.finish(rules.Nobody, StatusCancelled, false)
		return err
	}
	s.start()

	var pace *time.Ticker
	if !s.opts.Unpaced {
		pace = time.NewTicker(s.opts.Settings.TickDuration())
		defer pace.Stop()
	}
	cueTicker := time.NewTicker(s.opts.CueInterval)
	defer cueTicker.Stop()

	for {
		if s.opts.Unpaced && s.ref.inFlight {
			s.ref.settle(s.maxTicks)
		}
		s.maybeJudge()
		if s.finished() {
			return nil
		}

		var tick <-chan time.Time
		if pace != nil && s.ref.inFlight && !s.ref.settled() {
			tick = pace.C
		}
		select {
		case <-ctx.Done():
			s.finish(rules.Nobody, StatusCancelled, false)
			return ctx.Err()
		case <-s.players[0].Peer.Broken():
			s.forfeit(rules.P1)
		case <-s.players[1].Peer.Broken():
			s.forfeit(rules.P2)
		case a := <-s.actions:
			s.apply(a)
		case <-tick:
			s.ref.step()
		case <-cueTicker.C:
			s.sendCue()
		}
	}
}

func (s *Session) handler(seat rules.Player) channel.Handler {
	return func(m protocol.Message) error {
		a, err := ActionFromMessage(seat, m)
		if err != nil {
			return err
		}
		select {
		case s.actions <- a:
			return nil
		case <-s.done:
			return ErrSessionOver
		}
	}
}

func (s *Session) awaitPreferences(ctx context.Context) error {
	if s.opts.ReadyWait <= 0 {
		return nil
	}
	deadline := time.NewTimer(s.opts.ReadyWait)
	defer deadline.Stop()
	poll := time.NewTicker(preferencePoll)
	defer poll.Stop()
	for !(s.players[0].cuePreferenceKnown() && s.players[1].cuePreferenceKnown()) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-poll.C:
		}
	}
	return nil
}

func (s *Session) start() {
	s.mu.Lock()
	s.status = StatusInProgress
	s.startedAt = time.Now()
	s.mu.Unlock()

	p1, p2 := s.players[0].ReceivesCue(), s.players[1].ReceivesCue()
	off := protocol.New(protocol.CmdChangeCueDataRequired, false)
	switch {
	case !p1 && !p2:
		s.sendCueData = false
		s.broadcast(off)
	case !p1:
		s.send(rules.P2, off)
	case !p2:
		s.send(rules.P1, off)
	}

	s.createGame()
	s.log.Infow("[SESSION] started",
		"player1", s.players[0].Name, "player2", s.players[1].Name,
		"competitive", s.competitive)
}

// createGame tells both clients to load the settings and rack the balls
// exactly as the server did.
func (s *Session) createGame() {
	s.broadcast(protocol.New(protocol.CmdLoadSettings, s.opts.Settings))
	balls := s.ref.table.Snapshot()
	for i := range s.players {
		s.send(rules.Player(i+1), protocol.New(protocol.CmdCreateGame, balls, i+1))
	}
	s.pending = nil
	s.cue, s.sentCue = nil, nil
	s.refreshSnapshot()
}

func (s *Session) apply(a Action) {
	var err error
	switch a.Kind {
	case ActionHit:
		if err = s.ref.hit(a); err == nil {
			s.pending = map[rules.Player]bool{rules.P1: true, rules.P2: true}
			s.sendExcept(a.Player, protocol.New(protocol.CmdHitBall, a.Ball, a.Force, a.Angle))
		}
	case ActionPlace:
		if err = s.ref.place(a); err == nil {
			s.broadcast(protocol.New(protocol.CmdPlaceBall, []float64{a.Pos.X, a.Pos.Y}))
		}
	case ActionPass:
		if err = s.ref.pass(a); err == nil {
			g := s.ref.game
			s.broadcast(protocol.New(protocol.CmdPassTurn))
			s.broadcast(rules.NextTurn(false, g.IsBreak(), g.IsOpen(), true))
		}
	case ActionKeep:
		if err = s.ref.keep(a); err == nil {
			s.broadcast(protocol.New(protocol.CmdKeep))
		}
	case ActionRedo:
		if err = s.ref.redo(a); err == nil {
			s.createGame()
		}
	case ActionFinishedDrawing:
		delete(s.pending, a.Player)
	case ActionCue:
		if a.Player == s.ref.game.Turn() {
			s.cue = &[2]float64{a.CueAngle, a.CueOffset}
		}
	case ActionQuit:
		s.forfeit(a.Player)
	}
	if err != nil {
		s.log.Infow("[SESSION] rejected action", "player", int(a.Player), "kind", a.Kind, "error", err)
		s.send(a.Player, protocol.New(protocol.CmdError, err.Error()))
	}
}

// maybeJudge rules on the current shot once the table is still and both
// clients have finished replaying it.
func (s *Session) maybeJudge() {
	if !s.ref.settled() || len(s.pending) > 0 {
		return
	}
	shooter := s.ref.game.Turn()
	ev, d := s.ref.judge()
	for _, out := range d.Commands() {
		if out.To == rules.Nobody {
			s.broadcast(out.Message)
		} else {
			s.send(out.To, out.Message)
		}
	}
	if d.ForcedRedo {
		s.createGame()
	}
	s.log.Debugw("[SESSION] shot judged",
		"shooter", int(shooter), "foul", d.Foul, "next", int(d.Turn), "victor", int(d.Victor))

	if pub := s.opts.Publisher; pub != nil {
		report := ShotReport{SessionID: s.id, Shooter: shooter, Events: ev, Decision: d, Digest: s.ref.table.Digest()}
		s.io.offer("publish shot", func(ctx context.Context) {
			if err := pub.PublishShot(ctx, report); err != nil {
				s.log.Warnw("[SESSION] publish shot", "error", err)
			}
		})
	}
	s.refreshSnapshot()
	if d.Victor.Valid() {
		s.finish(d.Victor, StatusCompleted, false)
	}
}

func (s *Session) sendCue() {
	if !s.sendCueData || s.cue == nil || s.ref.inFlight || s.ref.table.InMotion() {
		return
	}
	if s.sentCue != nil && *s.sentCue == *s.cue {
		return
	}
	v := *s.cue
	s.sentCue = &v
	watcher := s.ref.game.Turn().Other()
	if !s.player(watcher).ReceivesCue() {
		return
	}
	s.send(watcher, protocol.New(protocol.CmdUpdateCuePosition, []float64{v[0], v[1]}))
}

func (s *Session) forfeit(quitter rules.Player) {
	if s.finished() {
		return
	}
	winner, err := s.ref.game.Forfeit(quitter)
	if err != nil {
		return
	}
	s.send(winner, protocol.New(protocol.CmdEndGame, quitMessage))
	s.log.Infow("[SESSION] forfeit", "quitter", int(quitter))
	s.finish(winner, StatusCompleted, true)
}

func (s *Session) finished() bool {
	st := s.Status()
	return st == StatusCompleted || st == StatusCancelled
}

func (s *Session) finish(winner rules.Player, status SessionStatus, forfeit bool) {
	s.mu.Lock()
	if s.status == StatusCompleted || s.status == StatusCancelled {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.winner = winner
	s.finishedAt = time.Now()
	s.mu.Unlock()

	s.refreshSnapshot()
	s.log.Infow("[SESSION] finished", "status", status, "winner", int(winner))
	if status != StatusCompleted {
		return
	}
	result := s.result()
	result.Forfeit = forfeit
	if rec := s.opts.Recorder; rec != nil {
		s.io.push(func(ctx context.Context) {
			if err := rec.RecordMatch(ctx, result); err != nil {
				s.log.Errorw("[SESSION] record match", "error", err)
			}
		})
	}
	if pub := s.opts.Publisher; pub != nil {
		s.io.push(func(ctx context.Context) {
			if err := pub.PublishEnd(ctx, result); err != nil {
				s.log.Warnw("[SESSION] publish end", "error", err)
			}
		})
	}
}

// result summarises the match for the statistics store.
func (s *Session) result() MatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := MatchResult{
		SessionID:   s.id,
		StartedAt:   s.startedAt,
		FinishedAt:  s.finishedAt,
		Competitive: s.competitive,
		Winner:      s.winner,
	}
	for i, p := range s.players {
		r.Players[i] = PlayerResult{
			UserID: p.UserID,
			Name:   p.Name,
			Stats:  s.ref.game.Stats(rules.Player(i + 1)),
		}
	}
	return r
}

func (s *Session) buildSnapshot() Snapshot {
	return Snapshot{
		SessionID: s.id,
		Status:    s.status,
		State:     s.ref.game.State().String(),
		Turn:      s.ref.game.Turn(),
		Players:   [2]string{s.players[0].Name, s.players[1].Name},
		Balls:     s.ref.table.Snapshot(),
		Digest:    s.ref.table.Digest(),
		StartedAt: s.startedAt,
		UpdatedAt: time.Now(),
	}
}

func (s *Session) refreshSnapshot() {
	s.mu.Lock()
	s.snapshot = s.buildSnapshot()
	snap := s.snapshot
	s.mu.Unlock()

	pub := s.opts.Publisher
	if pub == nil {
		return
	}
	s.io.offer("save snapshot", func(ctx context.Context) {
		if err := pub.SaveSnapshot(ctx, snap); err != nil {
			s.log.Warnw("[SESSION] save snapshot", "error", err)
		}
	})
}

func (s *Session) send(p rules.Player, m protocol.Message) {
	if err := s.player(p).Peer.Send(m); err != nil {
		s.log.Debugw("[SESSION] send failed", "player", int(p), "command", m.Command, "error", err)
	}
}

func (s *Session) broadcast(m protocol.Message) {
	s.send(rules.P1, m)
	s.send(rules.P2, m)
}

func (s *Session) sendExcept(p rules.Player, m protocol.Message) {
	s.send(p.Other(), m)
}
