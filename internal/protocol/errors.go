package protocol

import "errors"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArity          = errors.New("wrong number of arguments")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrArgType        = errors.New("argument has wrong type")
	ErrFrameTooLarge  = errors.New("frame too large")
)
