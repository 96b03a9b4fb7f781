package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"showtracker/pkg/logger"
	"showtracker/pkg/search"
)

const statsInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchStarted struct {
	SessionID  string   `json:"session_id"`
	Query      string   `json:"query"`
	Normalized string   `json:"normalized"`
	Backends   []string `json:"backends"`
}

func message(typ string, v any) WSMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode websocket payload", "type", typ, "err", err)
		payload = nil
	}
	return WSMessage{Type: typ, Payload: payload}
}

func errorMessage(msg string) WSMessage {
	return message("search_error", map[string]string{"message": msg})
}

// wsObserver forwards one client's search notifications as websocket
// messages of type "progress", "error" and "done".
type wsObserver struct {
	client *Client
}

func (o wsObserver) ProgressChanged(p search.Progress) {
	o.client.push(message(string(search.EventProgress), p))
}

func (o wsObserver) Error(f search.Failure) {
	o.client.push(message(string(search.EventError), f))
}

func (o wsObserver) Done(c search.Completion) {
	o.client.push(message(string(search.EventDone), c))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WS upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	_, factory, searcher, _, _ := s.snapshot()
	client := &Client{
		conn:     conn,
		send:     make(chan WSMessage, 256),
		done:     make(chan struct{}),
		searcher: factory(search.WithObserver(search.LogObserver{})),
	}
	s.AddClient(client)
	defer s.RemoveClient(client)

	logger.Debug("WS Client connected", "remote", r.RemoteAddr)

	// Initial state is queued before the loops start
	go func() {
		client.push(message("backends", backendsOf(searcher)))
		client.push(message("stats", s.collectStats()))
		s.sendLogHistory(client)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Read loop (Client -> Server)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("WS read error", "err", err)
				}
				return
			}

			switch msg.Type {
			case "search":
				s.handleSearchWS(ctx, client, msg.Payload)
			case "cancel":
				client.searcher.CancelAsync()
				client.push(message("cancelled", struct{}{}))
			case "get_backends":
				client.push(message("backends", backendsOf(client.searcher)))
			case "get_stats":
				client.push(message("stats", s.collectStats()))
			default:
				logger.Debug("WS unknown message", "type", msg.Type)
			}
		}
	}()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	// Write loop (Server -> Client)
	for {
		select {
		case <-readDone:
			return
		case <-client.done:
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			s.sendStats(client)
		case msg := <-client.send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleSearchWS(ctx context.Context, client *Client, payload json.RawMessage) {
	var req searchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		client.push(errorMessage("invalid search request"))
		return
	}

	observer := wsObserver{client: client}
	sess, err := client.searcher.SearchAsync(ctx, req.Query, observer)
	if err != nil {
		client.push(errorMessage(err.Error()))
		return
	}
	// Zero backends finish inside SearchAsync, so "done" may precede this
	client.push(message("search_started", searchStarted{
		SessionID:  sess.ID,
		Query:      sess.Query,
		Normalized: sess.Normalized,
		Backends:   sess.Remaining(),
	}))
}

func (s *Server) sendStats(client *Client) {
	select {
	case client.send <- message("stats", s.collectStats()):
	default:
	}
}

func (s *Server) sendLogHistory(client *Client) {
	// Fetch history from global logger
	history := logger.GetHistory()
	select {
	case client.send <- message("log_history", history):
	default:
	}
}
