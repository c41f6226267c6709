package protocol

import (
	"bytes"
	"fmt"
)

// Splitter reassembles frames from a byte stream. A frame may arrive across
// several reads and one read may carry several frames.
type Splitter struct {
	// Max bounds a frame in bytes; zero means unbounded.
	Max int
	buf []byte
}

// Feed appends p and returns every frame completed by it, without sentinels.
// Empty frames are skipped. Once a frame, complete or not, grows past Max,
// Feed returns ErrFrameTooLarge and discards everything buffered; frames
// completed before the oversized one are still returned.
func (s *Splitter) Feed(p []byte) ([][]byte, error) {
	s.buf = append(s.buf, p...)
	var frames [][]byte
	for {
		i := bytes.IndexByte(s.buf, Sentinel)
		if i < 0 {
			break
		}
		if s.Max > 0 && i > s.Max {
			return frames, s.overflow(i)
		}
		if i > 0 {
			frame := make([]byte, i)
			copy(frame, s.buf[:i])
			frames = append(frames, frame)
		}
		s.buf = s.buf[i+1:]
	}
	if s.Max > 0 && len(s.buf) > s.Max {
		return frames, s.overflow(len(s.buf))
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return frames, nil
}

func (s *Splitter) overflow(n int) error {
	s.buf = nil
	return fmt.Errorf("%w: %d bytes without a terminator, limit %d", ErrFrameTooLarge, n, s.Max)
}

// Pending is the number of buffered bytes not yet terminated by a sentinel.
func (s *Splitter) Pending() int {
	return len(s.buf)
}
