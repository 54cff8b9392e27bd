package rpc

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestArbiterAddRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	candidate := newTestAccount(t)
	payload := map[string]string{
		"caller":  env.bech32(env.buyer),
		"address": env.bech32(candidate),
	}
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, payload)}}
	rec := httptest.NewRecorder()
	env.server.handleArbiterAdd(rec, env.newRequest(), req)
	_, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr == nil || rpcErr.Code != codeDealForbidden {
		t.Fatalf("expected forbidden, got %+v", rpcErr)
	}
}

func TestArbiterAddRemoveAndQuery(t *testing.T) {
	env := newTestEnv(t)
	candidate := newTestAccount(t)

	add := &RPCRequest{ID: 2, Params: []json.RawMessage{marshalParam(t, map[string]string{
		"caller":  env.bech32(env.owner),
		"address": env.bech32(candidate),
	})}}
	rec := httptest.NewRecorder()
	env.server.handleArbiterAdd(rec, env.newRequest(), add)
	if _, rpcErr := decodeRPCResponse(t, rec); rpcErr != nil {
		t.Fatalf("add: %+v", rpcErr)
	}

	query := &RPCRequest{ID: 3, Params: []json.RawMessage{marshalParam(t, map[string]string{
		"address": env.bech32(candidate),
	})}}
	rec = httptest.NewRecorder()
	env.server.handleArbiterIsApproved(rec, env.newRequest(), query)
	result, rpcErr := decodeRPCResponse(t, rec)
	if rpcErr != nil {
		t.Fatalf("query: %+v", rpcErr)
	}
	var out map[string]bool
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["approved"] {
		t.Fatalf("expected approved after add")
	}

	// Duplicate add conflicts.
	rec = httptest.NewRecorder()
	env.server.handleArbiterAdd(rec, env.newRequest(), add)
	if _, rpcErr := decodeRPCResponse(t, rec); rpcErr == nil || rpcErr.Code != codeDealConflict {
		t.Fatalf("expected conflict on duplicate add, got %+v", rpcErr)
	}

	remove := &RPCRequest{ID: 4, Params: []json.RawMessage{marshalParam(t, map[string]string{
		"caller":  env.bech32(env.owner),
		"address": env.bech32(candidate),
	})}}
	rec = httptest.NewRecorder()
	env.server.handleArbiterRemove(rec, env.newRequest(), remove)
	if _, rpcErr := decodeRPCResponse(t, rec); rpcErr != nil {
		t.Fatalf("remove: %+v", rpcErr)
	}

	rec = httptest.NewRecorder()
	env.server.handleArbiterIsApproved(rec, env.newRequest(), query)
	result, rpcErr = decodeRPCResponse(t, rec)
	if rpcErr != nil {
		t.Fatalf("query after remove: %+v", rpcErr)
	}
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["approved"] {
		t.Fatalf("expected not approved after remove")
	}

	// Removing again is a not-found.
	rec = httptest.NewRecorder()
	env.server.handleArbiterRemove(rec, env.newRequest(), remove)
	if _, rpcErr := decodeRPCResponse(t, rec); rpcErr == nil || rpcErr.Code != codeDealNotFound {
		t.Fatalf("expected not found on second remove, got %+v", rpcErr)
	}
}
