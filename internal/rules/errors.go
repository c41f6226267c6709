package rules

import "errors"

var (
	ErrGameOver     = errors.New("game is over")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrCannotShoot  = errors.New("shooting is not allowed right now")
	ErrNoRedoChoice = errors.New("no redo decision is pending")
	ErrCannotPass   = errors.New("turn cannot be passed")
	ErrBadPlayer    = errors.New("player must be 1 or 2")
)
