package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedBuffer     = 64
	feedWriteWait  = 5 * time.Second
	feedPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// EventsHandler handles GET /events: a websocket stream of engine events as
// JSON text frames. ?user=ID limits the stream to one user's events.
func (h *HandlerProvider) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event feed disabled")
		return
	}

	filter := r.URL.Query().Get("user")

	// Subscribe before the handshake completes so the client sees every
	// event published after its dial returns.
	evs, cancel := h.hub.Subscribe(feedBuffer)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	//nolint:errcheck
	defer conn.Close()

	// Reader: only control frames are expected; any error means the peer left.
	gone := make(chan struct{})

	go func() {
		defer close(gone)

		for {
			_, _, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	slog.Debug("feed subscriber connected", "remote", r.RemoteAddr, "user", filter)

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
			if err != nil {
				return
			}
		case e, ok := <-evs:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))

				return
			}

			if filter != "" && e.User != filter && e.From != filter {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))

			err = conn.WriteJSON(e)
			if err != nil {
				return
			}
		}
	}
}
