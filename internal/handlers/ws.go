package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LivePredict upgrades to a websocket. Every text frame is a
// {"image": "data:image/..."} request and gets one JSON reply: a
// prediction or {"error": ...}. Frames are answered in order.
func (h *Handler) LivePredict(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.maxBody)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	h.logger.Debugw("websocket client connected", "remote", r.RemoteAddr)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnw("websocket read error", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var reply any
		result, err := h.predictDataURI(msg)
		if err != nil {
			_, text := h.failure(r, err)
			reply = errorResponse{Error: text}
		} else {
			h.record(r.Context(), "ws", result)
			reply = result
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				h.logger.Warnw("websocket write error", "error", err)
			}
			return
		}
	}
}
