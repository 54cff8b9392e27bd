package rpc

import (
	"net/http"
)

type eventsListParams struct {
	After uint64 `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

const maxEventsPerPage = 500

// handleEventsList returns a slice of the append-only audit log starting at
// the given sequence number.
func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params eventsListParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	limit := params.Limit
	if limit <= 0 || limit > maxEventsPerPage {
		limit = maxEventsPerPage
	}
	entries := s.node.Events(params.After, limit)
	writeResult(w, req.ID, entries)
}
