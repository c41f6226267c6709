package game

import (
	"context"
	"fmt"
	"io"

	"github.com/playpool/billiards/internal/physics"
	"github.com/playpool/billiards/internal/protocol"
	"github.com/playpool/billiards/internal/rules"
)

// ActionKind names something a player asks the session to do.
type ActionKind string

const (
	ActionHit             ActionKind = "HIT"
	ActionPlace           ActionKind = "PLACE"
	ActionPass            ActionKind = "PASS"
	ActionRedo            ActionKind = "REDO"
	ActionKeep            ActionKind = "KEEP"
	ActionFinishedDrawing ActionKind = "FINISHED_DRAWING"
	ActionCue             ActionKind = "CUE"
	ActionQuit            ActionKind = "QUIT"
)

// Action is one player input. Only the fields relevant to Kind are set.
type Action struct {
	Kind   ActionKind   `json:"kind"`
	Player rules.Player `json:"player"`

	Ball  int     `json:"ball,omitempty"`
	Force float64 `json:"force,omitempty"`
	Angle float64 `json:"angle,omitempty"`

	Pos physics.Vec2 `json:"pos,omitempty"`

	CueAngle  float64 `json:"cue_angle,omitempty"`
	CueOffset float64 `json:"cue_offset,omitempty"`
}

var actionCommands = map[protocol.Command]ActionKind{
	protocol.CmdHitBall:                 ActionHit,
	protocol.CmdPlaceBall:               ActionPlace,
	protocol.CmdPassTurn:                ActionPass,
	protocol.CmdRedo:                    ActionRedo,
	protocol.CmdKeep:                    ActionKeep,
	protocol.CmdFinishedDrawing:         ActionFinishedDrawing,
	protocol.CmdUpdateServerCuePosition: ActionCue,
	protocol.CmdQuit:                    ActionQuit,
}

// SessionCommands are the commands a session registers on each peer.
func SessionCommands() []protocol.Command {
	return []protocol.Command{
		protocol.CmdHitBall,
		protocol.CmdPlaceBall,
		protocol.CmdPassTurn,
		protocol.CmdRedo,
		protocol.CmdKeep,
		protocol.CmdFinishedDrawing,
		protocol.CmdUpdateServerCuePosition,
		protocol.CmdQuit,
	}
}

// ActionFromMessage converts a message received from player p.
func ActionFromMessage(p rules.Player, m protocol.Message) (Action, error) {
	kind, ok := actionCommands[m.Command]
	if !ok {
		return Action{}, fmt.Errorf("%w: %s", ErrUnknownAction, m.Command)
	}
	a := Action{Kind: kind, Player: p}
	var err error
	switch kind {
	case ActionHit:
		if a.Ball, err = m.Int(0); err != nil {
			return Action{}, err
		}
		if a.Force, err = m.Float(1); err != nil {
			return Action{}, err
		}
		if a.Angle, err = m.Float(2); err != nil {
			return Action{}, err
		}
	case ActionPlace:
		if a.Pos.X, a.Pos.Y, err = m.Pair(0); err != nil {
			return Action{}, err
		}
	case ActionCue:
		if len(m.Args) == 2 {
			if a.CueAngle, err = m.Float(0); err != nil {
				return Action{}, err
			}
			if a.CueOffset, err = m.Float(1); err != nil {
				return Action{}, err
			}
		} else if a.CueAngle, a.CueOffset, err = m.Pair(0); err != nil {
			return Action{}, err
		}
	}
	return a, nil
}

// ShotSource supplies player actions to a match, whether they come from live
// input, a network peer or a recording.
type ShotSource interface {
	Next(ctx context.Context) (Action, error)
}

// ReplaySource plays back a recorded list of actions, then returns io.EOF.
type ReplaySource struct {
	actions []Action
	next    int
}

func NewReplaySource(actions []Action) *ReplaySource {
	return &ReplaySource{actions: actions}
}

func (r *ReplaySource) Next(ctx context.Context) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	if r.next >= len(r.actions) {
		return Action{}, io.EOF
	}
	a := r.actions[r.next]
	r.next++
	return a, nil
}
