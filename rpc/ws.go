package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams the audit log over a websocket. A cursor query
// parameter replays stored entries from that sequence before switching to the
// live feed.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := r.Context()

	// Subscribe before the replay so no entry emitted in between is lost;
	// duplicates are filtered by sequence below.
	live, cancel := s.node.SubscribeEvents(0)
	defer cancel()

	next := cursor
	for _, entry := range s.node.Events(cursor, 0) {
		if err := writeWSEvent(ctx, conn, entry); err != nil {
			return
		}
		next = entry.Sequence + 1
	}

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-live:
			if !ok {
				return
			}
			if entry.Sequence < next {
				continue
			}
			if err := writeWSEvent(ctx, conn, entry); err != nil {
				return
			}
			next = entry.Sequence + 1
		}
	}
}

func writeWSEvent(ctx context.Context, conn *websocket.Conn, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
