package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"dealvault/core"
	"dealvault/native/deal"
)

func readWSEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) core.AuditEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var entry core.AuditEvent
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return entry
}

func TestEventsWSReplaysFromCursor(t *testing.T) {
	env := newTestEnv(t)
	id := env.createNativeDeal(t, 100)
	if err := env.node.DealDepositNative(id, env.buyer, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/events?cursor=1"

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Sequence 0 (deal.created) sits below the cursor and must not replay.
	replayed := readWSEvent(ctx, t, conn)
	if replayed.Sequence != 1 || replayed.Event.Type != deal.EventTypeDealFunded {
		t.Fatalf("unexpected replayed entry %+v", replayed)
	}

	// Let the handler finish the replay and park on the live feed before
	// producing a new entry.
	time.Sleep(100 * time.Millisecond)
	if err := env.node.DealConfirmShipment(id, env.seller); err != nil {
		t.Fatalf("shipment: %v", err)
	}

	live := readWSEvent(ctx, t, conn)
	if live.Sequence != 2 || live.Event.Type != deal.EventTypeDealShipped {
		t.Fatalf("unexpected live entry %+v", live)
	}
}

func TestEventsWSRejectsBadCursor(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/events?cursor=later")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
