package server

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
)

const leaderboardPushInterval = 15 * time.Second

// LeaderboardFeed streams the daily leaderboard over a websocket. The
// client receives a frame immediately on connect and then on a fixed
// interval until it disconnects.
func (s *Server) LeaderboardFeed(conn *websocket.Conn) {
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			// Reads only serve close detection; inbound payloads are ignored.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.pushLeaderboard(conn); err != nil {
		return
	}

	ticker := time.NewTicker(leaderboardPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := s.pushLeaderboard(conn); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushLeaderboard(conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, summary, err := s.orchestrator.Leaderboard(ctx, "daily", s.defaultLimit)
	if err != nil {
		obslog.L().Warn("leaderboard_feed_error", zap.Error(err))
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(buildLeaderboardResponse(entries, summary, "daily"))
}
