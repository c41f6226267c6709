package ws

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// NewUpgrader builds an upgrader. A nil check allows every origin.
func NewUpgrader(check func(r *http.Request) bool) *websocket.Upgrader {
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     check,
	}
}

// Stream exposes a websocket connection as a byte stream. Each Write is sent
// as one text message and Read returns message payloads back to back, so a
// framing layer on top sees the same bytes it would over TCP.
//
// Write must not be called concurrently; Read and Close may run alongside it.
type Stream struct {
	conn *websocket.Conn
	id   string

	mu     sync.Mutex
	reader io.Reader

	once   sync.Once
	closed chan struct{}
}

// NewStream wraps conn and starts its keepalive pings.
func NewStream(conn *websocket.Conn) *Stream {
	s := &Stream{
		conn:   conn,
		id:     conn.RemoteAddr().String(),
		closed: make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.keepalive()
	return s
}

// RemoteAddr names the peer for logs.
func (s *Stream) RemoteAddr() string { return s.id }

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.reader == nil {
			kind, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
				continue
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, bytes.Clone(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame and tears the connection down. It is safe to call
// more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
