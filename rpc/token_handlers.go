package rpc

import (
	"net/http"
)

type tokenRegisterParams struct {
	Caller   string `json:"caller"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

type tokenMintParams struct {
	Token  string `json:"token"`
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenApproveParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenBalanceParams struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
}

type tokenAllowanceParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type bankBalanceParams struct {
	Address string `json:"address"`
}

func (s *Server) handleTokenRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := s.node.TokenRegister(caller, params.Symbol, params.Name, params.Decimals)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"token": formatAccount(addr)})
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenMintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAddr, err := parseAccount(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseAccount(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenMint(tokenAddr, caller, to, amount); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenApproveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAddr, err := parseAccount(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAccount(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	spender, err := parseAccount(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TokenApprove(tokenAddr, owner, spender, amount); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAddr, err := parseAccount(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAccount(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.TokenBalanceOf(tokenAddr, owner)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenAllowanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	tokenAddr, err := parseAccount(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAccount(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	spender, err := parseAccount(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	allowance, err := s.node.TokenAllowance(tokenAddr, owner, spender)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"allowance": allowance.String()})
}

func (s *Server) handleBankGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bankBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr[:])
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": params.Address,
		"balance": account.Normalize().Balance.String(),
	})
}
