package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playpool/billiards/internal/logger"
)

// Watch writes every value from events to conn as JSON until events closes,
// ctx ends or the client goes away. It owns conn and closes it on return.
func Watch[T any](ctx context.Context, conn *websocket.Conn, events <-chan T) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	// Spectators only listen; reading keeps pongs and close frames flowing.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"))
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Log.Debugw("[WS] spectator write failed", "remote", conn.RemoteAddr().String(), "error", err)
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
