package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"namiokai/libs/diff"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// allow all origins, as the REST routes do
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage is what the debt socket pushes: a view or the error that ended it.
type wsMessage struct {
	View  *DebtView `json:"view,omitempty"`
	Error string    `json:"error,omitempty"`
}

// watchSpaceDebts pushes the space's debt view for the requested period offset
// every time it changes by at least a cent.
func (h *handlers) watchSpaceDebts(c *gin.Context) {
	offset, _, err := intQuery(c, "offset", 0)
	if err != nil {
		badRequest(c, err)
		return
	}
	spaceID := c.Param("spaceId")
	space, err := h.svc.Spaces.GetSpace(c.Request.Context(), spaceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	p := h.svc.selection().AtOffset(offset)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()
	debtSubscribers.Inc()
	defer debtSubscribers.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the client sends nothing; reading only notices it going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	loader := userLoader(c)
	differ := diff.GetCustomDiffer()
	views := h.svc.Debts.Watch(ctx, h.svc.Spaces.StreamSpace(ctx, spaceID), p)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	var last *DebtView
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case snap, ok := <-views:
			if !ok {
				return
			}
			if snap.Err != nil {
				h.writeWS(conn, wsMessage{Error: snap.Err.Error()})
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "debt feed ended"),
					time.Now().Add(wsWriteTimeout))
				return
			}

			current, debts := spaceFromSnapshot(snap.Value, space)
			var names map[string]string
			if loader != nil {
				names = loader.DisplayNames(ctx, uids(debts))
			}
			view := newDebtView(current, p, debts, names)
			if last != nil {
				changed, err := diff.Changed(differ, *last, view)
				if err != nil {
					slog.Debug("diffing debt views", "space", spaceID, "error", err)
				}
				if !changed {
					continue
				}
			}
			if err := h.writeWS(conn, wsMessage{View: &view}); err != nil {
				return
			}
			last = &view
		}
	}
}

func (h *handlers) writeWS(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("websocket write", "error", err)
		return err
	}
	return nil
}
