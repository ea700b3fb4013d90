package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and streams every C6 broadcast
// for the event's room until the client disconnects. Guests have no
// write path here: this is a read-only feed, votes still go through
// handleVote.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.coordinator.Hub().Subscribe(eventID)
	defer s.coordinator.Hub().Unsubscribe(eventID, sub.ID)

	closed := make(chan struct{})
	go s.pumpPongs(conn, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pumpPongs drains incoming frames so the connection's read deadline keeps
// advancing on pong receipt, and signals closed once the peer goes away;
// guests never send application messages over this feed.
func (s *Server) pumpPongs(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
