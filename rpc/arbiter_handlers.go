package rpc

import (
	"net/http"
)

type arbiterMutateParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type arbiterQueryParams struct {
	Address string `json:"address"`
}

func (s *Server) handleArbiterAdd(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleArbiterMutation(w, req, s.node.ArbiterAdd)
}

func (s *Server) handleArbiterRemove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleArbiterMutation(w, req, s.node.ArbiterRemove)
}

func (s *Server) handleArbiterMutation(w http.ResponseWriter, req *RPCRequest, fn func([20]byte, [20]byte) error) {
	var params arbiterMutateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(caller, addr); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleArbiterIsApproved(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbiterQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	approved, err := s.node.ArbiterIsApproved(addr)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": approved})
}
