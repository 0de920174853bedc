package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/events"
)

// SnapshotEvent is the first frame of every watch stream.
const SnapshotEvent events.Type = "order.snapshot"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var errWatchDisabled = errors.New("live updates are disabled")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// watchOrder streams status changes of one order over a websocket until the
// order reaches a terminal status or the client goes away.
func (h *Handler) watchOrder(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		fail(w, r, apperr.Precondition("watch order", errWatchDisabled))
		return
	}
	id := chi.URLParam(r, "id")

	// Subscribe before the snapshot so no transition slips in between.
	sub := h.hub.Subscribe(id)
	defer sub.Close()

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		zctx.From(r.Context()).Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	lg := zctx.From(r.Context()).With(zap.String("order_id", id))
	if err := send(conn, snapshot(o)); err != nil {
		lg.Debug("Watch write failed", zap.Error(err))
		return
	}
	if o.Status.Terminal() {
		closeStream(conn)
		return
	}

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := send(conn, ev); err != nil {
				lg.Debug("Watch write failed", zap.Error(err))
				return
			}
			if order.Status(ev.Status).Terminal() {
				closeStream(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func snapshot(o *order.Order) events.Event {
	ev := events.Event{
		ID:           o.ID + ":" + string(o.Status),
		Type:         SnapshotEvent,
		OrderID:      o.ID,
		Status:       string(o.Status),
		Amount:       o.Total.IntPart(),
		CustomerName: o.CustomerName,
		At:           o.UpdatedAt,
	}
	if o.Payment != nil {
		ev.Method = string(o.Payment.Method)
	}
	if o.Cancellation != nil {
		ev.Reason = o.Cancellation.Reason
	}
	return ev
}

func send(conn *websocket.Conn, ev events.Event) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	ev.Encode(e)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, e.Bytes())
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "order finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, and closes gone when the connection ends.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
