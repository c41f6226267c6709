package protocol

import "sort"

// Command names a message. The set is closed: anything not listed here is
// rejected at decode time.
type Command string

// Connection-level commands.
const (
	CmdReceived       Command = "received"
	CmdLogout         Command = "logout"
	CmdReady          Command = "ready"
	CmdReceiveCueData Command = "receive_cue_data"
	CmdDisconnect     Command = "disconnect"
	CmdError          Command = "error"
	CmdLogin          Command = "login"
	CmdLoginSuccess   Command = "login_success"
)

// Lobby commands. A client opens a lobby with its own settings, name and
// optional password, or browses and joins one.
const (
	CmdCreateLobby          Command = "create_lobby"
	CmdLobbyCreated         Command = "lobby_created"
	CmdRetrieveLobbies      Command = "retrieve_lobbies"
	CmdReceiveLobbies       Command = "receive_lobbies"
	CmdJoinLobby            Command = "join_lobby"
	CmdJoinSuccess          Command = "join_success"
	CmdRequestLobbyPassword Command = "request_lobby_password"
)

// Gameplay commands sent by clients (and relayed by the server).
const (
	CmdHitBall                 Command = "hit_ball"
	CmdPlaceBall               Command = "place_ball"
	CmdPassTurn                Command = "pass_turn"
	CmdRedo                    Command = "redo"
	CmdKeep                    Command = "keep"
	CmdFinishedDrawing         Command = "finished_drawing"
	CmdUpdateServerCuePosition Command = "update_server_cue_position"
	CmdQuit                    Command = "quit"
)

// Outcome commands sent by the server.
const (
	CmdStartNextTurn         Command = "start_next_turn"
	CmdCloseTable            Command = "close_table"
	CmdVictory               Command = "victory"
	CmdFoul                  Command = "foul"
	CmdRedoChoice            Command = "redo_choice"
	CmdForceRedoMessage      Command = "force_redo_message"
	CmdCreateGame            Command = "create_game"
	CmdLoadSettings          Command = "load_settings"
	CmdEndGame               Command = "end_game"
	CmdUpdateCuePosition     Command = "update_cue_position"
	CmdChangeCueDataRequired Command = "change_cue_data_required"
)

type commandSpec struct {
	minArgs  int
	maxArgs  int
	advisory bool
}

var registry = map[Command]commandSpec{
	CmdReceived:       {advisory: true},
	CmdLogout:         {},
	CmdReady:          {maxArgs: 1},
	CmdReceiveCueData: {minArgs: 1, maxArgs: 1},
	CmdDisconnect:     {advisory: true},
	CmdError:          {minArgs: 1, maxArgs: 1},
	CmdLogin:          {minArgs: 1, maxArgs: 1},
	CmdLoginSuccess:   {minArgs: 1, maxArgs: 1},

	CmdCreateLobby:          {minArgs: 1, maxArgs: 3},
	CmdLobbyCreated:         {minArgs: 1, maxArgs: 1},
	CmdRetrieveLobbies:      {maxArgs: 1},
	CmdReceiveLobbies:       {minArgs: 1, maxArgs: 1},
	CmdJoinLobby:            {minArgs: 1, maxArgs: 2},
	CmdJoinSuccess:          {minArgs: 1, maxArgs: 1},
	CmdRequestLobbyPassword: {minArgs: 1, maxArgs: 1},

	CmdHitBall:                 {minArgs: 3, maxArgs: 3},
	CmdPlaceBall:               {minArgs: 1, maxArgs: 1},
	CmdPassTurn:                {},
	CmdRedo:                    {},
	CmdKeep:                    {},
	CmdFinishedDrawing:         {},
	CmdUpdateServerCuePosition: {minArgs: 1, maxArgs: 2, advisory: true},
	CmdQuit:                    {},

	CmdStartNextTurn:         {minArgs: 4, maxArgs: 4},
	CmdCloseTable:            {minArgs: 1, maxArgs: 1},
	CmdVictory:               {minArgs: 1, maxArgs: 1},
	CmdFoul:                  {minArgs: 1, maxArgs: 1},
	CmdRedoChoice:            {},
	CmdForceRedoMessage:      {},
	CmdCreateGame:            {minArgs: 2, maxArgs: 2},
	CmdLoadSettings:          {minArgs: 1, maxArgs: 1},
	CmdEndGame:               {minArgs: 1, maxArgs: 1},
	CmdUpdateCuePosition:     {minArgs: 1, maxArgs: 2, advisory: true},
	CmdChangeCueDataRequired: {minArgs: 1, maxArgs: 1},
}

// Known reports whether c is part of the protocol.
func (c Command) Known() bool {
	_, ok := registry[c]
	return ok
}

// Advisory commands are fire-and-forget: they are never acknowledged and never
// gate the sender.
func (c Command) Advisory() bool {
	return registry[c].advisory
}

// Significant commands must be acknowledged before the next one is sent.
// Unknown commands count as significant.
func (c Command) Significant() bool {
	return !c.Advisory()
}

// Arity returns the accepted argument count range.
func (c Command) Arity() (min, max int) {
	s := registry[c]
	return s.minArgs, s.maxArgs
}

// Commands lists every known command, sorted.
func Commands() []Command {
	out := make([]Command, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
