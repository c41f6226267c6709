package game

import (
	"context"
	"time"

	"github.com/playpool/billiards/internal/logger"
)

// StartMatchmakerWorker periodically drops disconnected players from the
// queue and pairs any that are still waiting.
func (m *Manager) StartMatchmakerWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.Infof("[MATCHMAKER] Starting matchmaker worker (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[MATCHMAKER] Worker stopped")
			return
		case <-ticker.C:
			m.processMatchmaking()
		}
	}
}

func (m *Manager) processMatchmaking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for m.matchLocked() != nil {
	}
}
