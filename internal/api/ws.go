package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const (
	wsReadLimit    = 4 * 1024 * 1024
	wsWriteTimeout = 10 * time.Second
)

func isWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(reply types.Reply) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// messagesWS serves the message envelope over a WebSocket. Each message is
// handled on its own goroutine so a long scan does not block toggles or URL
// checks. Scans started on one connection share a key, so a new scan
// abandons the previous one.
func (a *App) messagesWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "websocket upgrade required"})
		return
	}
	up := websocket.Upgrader{
		// Auth middleware already applied; extension origins vary per install.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	connID := "ws-" + uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &wsConn{conn: conn}
	a.logger.Debug("ws: connected", "conn", connID)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			a.logger.Debug("ws: closed", "conn", connID, "error", err)
			cancel()
			a.scanner.Cancel(connID)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.send(types.Reply{Error: "invalid json"})
			continue
		}
		if msg.Page != nil && strings.TrimSpace(msg.Page.Key) == "" {
			msg.Page.Key = connID
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := a.dispatch(ctx, msg, func(rep types.Reply) { _ = c.send(rep) })
			_ = c.send(reply)
		}()
	}
}
