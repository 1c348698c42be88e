package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // editors connect from localhost
	},
}

// wsIncoming is a message from the client. Type is "run" or "cancel".
type wsIncoming struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	runRequest
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Content    string `json:"content,omitempty"`
	Kind       string `json:"kind,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// wsConn serialises writes to one connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logrus.Entry
}

func (c *wsConn) send(msg wsOutgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("websocket marshal")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.WithError(err).Debug("websocket write")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	wc := &wsConn{conn: conn, log: s.log.WithField("conn", connID)}

	// Runs outlive the upgrade request's context, so they hang off their own.
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wc.log.WithError(err).Debug("websocket read")
			}
			return
		}

		if msg.ID == "" {
			wc.send(wsOutgoing{Type: "error", Content: "id is required", Kind: "request"})
			continue
		}
		key := connID + ":" + msg.ID

		switch msg.Type {
		case "run":
			req, err := msg.toRunner()
			if err != nil {
				wc.send(wsOutgoing{Type: "error", ID: msg.ID, Content: err.Error(), Kind: "request"})
				continue
			}
			runCtx, done, err := s.tracker.Start(ctx, key)
			if err != nil {
				wc.send(wsOutgoing{Type: "error", ID: msg.ID, Content: err.Error(), Kind: "request"})
				continue
			}

			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				defer done()

				res, err := s.runner.Run(runCtx, req)
				if err != nil {
					body := runErrorBody(err)
					content := body.Error
					if runCtx.Err() != nil && body.Kind != "runtime" {
						content = "interrupted"
					}
					wc.send(wsOutgoing{Type: "error", ID: id, Content: content, Kind: body.Kind, ExitCode: body.ExitCode})
					return
				}
				wc.send(wsOutgoing{
					Type:       "result",
					ID:         id,
					Content:    res.Output,
					RunID:      res.RunID,
					DurationMS: res.DurationMS,
				})
			}(msg.ID)

		case "cancel":
			if !s.tracker.Cancel(key) {
				wc.send(wsOutgoing{Type: "error", ID: msg.ID, Content: "no such run", Kind: "request"})
			}

		default:
			wc.send(wsOutgoing{Type: "error", ID: msg.ID, Content: "invalid message type", Kind: "request"})
		}
	}
}
