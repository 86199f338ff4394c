package server

import (
	"context"
	"net/http"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// streamMessage is one frame pushed to stream clients.
type streamMessage struct {
	Type     string             `json:"type"`
	Snapshot *campaign.Snapshot `json:"snapshot,omitempty"`
}

// handleStream pushes a snapshot after every orchestrator step until the
// client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		logging.Get(logging.CategoryServer).Warn("stream set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	// Reader: only needed to process control frames and notice closure.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates := s.cluster.Subscribe(ctx)
	logging.ServerDebug("Stream client connected from %s", r.RemoteAddr)

	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "cluster closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(streamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
