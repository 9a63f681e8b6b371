package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"jamesfarrell.me/video-mcq/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// API keys are checked by the middleware, origins are not
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// Watch streams status changes of a video over a websocket until it reaches
// completed or error. Hub events arrive immediately; the store is re-read on
// an interval so changes made by another process are seen too.
func (h *VideoHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	video, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	var (
		updates <-chan events.StatusEvent
		cancel  = func() {}
	)
	if h.hub != nil {
		updates, cancel = h.hub.Subscribe(id)
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "video_id", id, "error", err)
		return
	}
	defer conn.Close()

	// the client only ever closes; reading notices it
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	last := events.StatusEvent{VideoID: id, Status: video.Status, Error: video.Error, At: video.UpdatedAt}
	if err := h.send(conn, last); err != nil || last.Status.Terminal() {
		h.closeWatch(conn)
		return
	}

	for {
		var next events.StatusEvent
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			next = ev
		case <-ticker.C:
			v, err := h.store.GetVideo(ctx, id)
			if err != nil {
				// deleted while watched
				h.closeWatch(conn)
				return
			}
			next = events.StatusEvent{VideoID: id, Status: v.Status, Error: v.Error, At: v.UpdatedAt}
		}

		if next.Status == last.Status && next.Error == last.Error {
			continue
		}
		last = next
		if err := h.send(conn, next); err != nil {
			return
		}
		if next.Status.Terminal() {
			h.closeWatch(conn)
			return
		}
	}
}

func (h *VideoHandler) send(conn *websocket.Conn, ev events.StatusEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func (h *VideoHandler) closeWatch(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
