package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The firehose is a public read-only stream; cross-origin dashboards are
	// expected consumers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type initMessage struct {
	Type      string `json:"type"`
	Listeners int    `json:"listeners"`
}

// HandleFirehoseWS streams index events (documents entering or leaving the
// index) to the client as they happen. The first frame is an init message,
// everything after is one event per frame. Slow clients miss events rather
// than slowing down indexing.
func (s *Server) HandleFirehoseWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusNotImplemented, "Firehose unavailable", "This server runs without a realtime hub")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("firehose upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("firehose close: %v", err)
		}
	}()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	if err := conn.WriteJSON(initMessage{Type: "init", Listeners: s.hub.Size()}); err != nil {
		return
	}

	// Reader goroutine: we never expect client frames, but reading is what
	// surfaces closes and answers pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
