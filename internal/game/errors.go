package game

import "errors"

var (
	ErrShotInProgress   = errors.New("a shot is already in progress")
	ErrCueInHand        = errors.New("cue ball must be placed before shooting")
	ErrNothingHeld      = errors.New("no ball in hand")
	ErrIllegalPlacement = errors.New("ball cannot be placed there")
	ErrNoSuchBall       = errors.New("no such ball on the table")
	ErrUnknownAction    = errors.New("unknown action")
	ErrAlreadyQueued    = errors.New("player already in queue")
	ErrAlreadyPlaying   = errors.New("player already in a game")
	ErrManagerClosed    = errors.New("manager is shut down")
	ErrAlreadyHosting   = errors.New("player already hosts a lobby")
	ErrLobbyNotFound    = errors.New("the requested lobby either cannot be found or no longer exists")
	ErrOwnLobby         = errors.New("cannot join your own lobby")
	ErrPasswordRequired = errors.New("lobby password required")
	ErrWrongPassword    = errors.New("the entered lobby password is incorrect")
	ErrLobbyName        = errors.New("lobby name must be at most 64 characters")
)

var ErrSessionOver = errors.New("session is over")
