package channel

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultChunkSize  = 1024
	DefaultAckPoll    = 50 * time.Millisecond
	DefaultAckTimeout = 5 * time.Second
	DefaultMaxResends = 3
	DefaultMaxFrame   = 64 * 1024
)

// NoResends configures a channel that breaks on the first acknowledgment
// timeout. A zero MaxResends means the default.
const NoResends = -1

// Options tunes the acknowledgment gate and write chunking. Zero fields fall
// back to the defaults.
type Options struct {
	ChunkSize  int
	AckPoll    time.Duration
	AckTimeout time.Duration
	MaxResends int
	// MaxFrame bounds an inbound frame, sentinel excluded. A peer that
	// exceeds it breaks the channel.
	MaxFrame int
	Logger   *zap.SugaredLogger
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:  DefaultChunkSize,
		AckPoll:    DefaultAckPoll,
		AckTimeout: DefaultAckTimeout,
		MaxResends: DefaultMaxResends,
		MaxFrame:   DefaultMaxFrame,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.AckPoll <= 0 {
		o.AckPoll = d.AckPoll
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = d.AckTimeout
	}
	switch {
	case o.MaxResends == 0:
		o.MaxResends = d.MaxResends
	case o.MaxResends < 0:
		o.MaxResends = 0
	}
	if o.MaxFrame <= 0 {
		o.MaxFrame = d.MaxFrame
	}
	return o
}
