package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"dealvault/crypto"
	"dealvault/native/arbiter"
	"dealvault/native/deal"
	"dealvault/native/token"
	"dealvault/observability"
)

const (
	codeDealInvalidParams  = -32021
	codeDealNotFound       = -32022
	codeDealForbidden      = -32023
	codeDealConflict       = -32024
	codeDealInternal       = -32025
	codeDealTransferFailed = -32026
)

type dealCreateParams struct {
	Buyer   string `json:"buyer"`
	Seller  string `json:"seller"`
	Arbiter string `json:"arbiter"`
	Token   string `json:"token,omitempty"`
	Amount  string `json:"amount"`
}

type dealDepositNativeParams struct {
	ID    uint64 `json:"id"`
	From  string `json:"from"`
	Value string `json:"value"`
}

type dealActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type dealDepositTokenParams struct {
	ID   uint64 `json:"id"`
	From string `json:"from"`
}

type dealDisputeParams struct {
	ID                  uint64 `json:"id"`
	Caller              string `json:"caller"`
	Reason              string `json:"reason"`
	CancellationRequest bool   `json:"cancellationRequest,omitempty"`
}

type dealResolveParams struct {
	ID            uint64 `json:"id"`
	Caller        string `json:"caller"`
	RefundToBuyer bool   `json:"refundToBuyer"`
}

type dealIDParams struct {
	ID uint64 `json:"id"`
}

type dealCreateResult struct {
	ID uint64 `json:"id"`
}

type dealJSON struct {
	ID                    uint64  `json:"id"`
	Buyer                 string  `json:"buyer"`
	Seller                string  `json:"seller"`
	Arbiter               string  `json:"arbiter"`
	Token                 *string `json:"token,omitempty"`
	Amount                string  `json:"amount"`
	Status                string  `json:"status"`
	DisputeReason         string  `json:"disputeReason,omitempty"`
	DisputedBy            *string `json:"disputedBy,omitempty"`
	CancellationRequested bool    `json:"cancellationRequested,omitempty"`
	CreatedAt             int64   `json:"createdAt"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAccount(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	return crypto.ParseAccount(trimmed)
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseAssetRef(tokenField string) (deal.AssetRef, error) {
	trimmed := strings.TrimSpace(tokenField)
	if trimmed == "" || strings.EqualFold(trimmed, "native") {
		return deal.NativeAsset(), nil
	}
	addr, err := parseAccount(trimmed)
	if err != nil {
		return deal.AssetRef{}, err
	}
	return deal.TokenAsset(addr), nil
}

func (s *Server) handleDealCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAccount(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAccount(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	arb, err := parseAccount(params.Arbiter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAssetRef(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.node.DealCreate(buyer, seller, arb, asset, amount)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dealCreateResult{ID: created.ID})
}

func (s *Server) handleDealDepositNative(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealDepositNativeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAccount(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parsePositiveBigInt(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DealDepositNative(params.ID, from, value); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDealDepositToken(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealDepositTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAccount(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DealDepositToken(params.ID, from); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDealConfirmShipment(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleDealTransition(w, r, req, s.node.DealConfirmShipment)
}

func (s *Server) handleDealConfirmReceipt(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleDealTransition(w, r, req, s.node.DealConfirmReceipt)
}

func (s *Server) handleDealCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleDealTransition(w, r, req, s.node.DealCancel)
}

func (s *Server) handleDealTransition(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(uint64, [20]byte) error) {
	var params dealActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(params.ID, caller); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDealRaiseDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealDisputeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DealRaiseDispute(params.ID, caller, params.Reason, params.CancellationRequest); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDealResolveDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealResolveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DealResolveDispute(params.ID, caller, params.RefundToBuyer); err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDealGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params dealIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDealInvalidParams, "invalid_params", err.Error())
		return
	}
	d, err := s.node.DealGet(params.ID)
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDealJSON(d))
}

func (s *Server) handleDealNextID(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	next, err := s.node.DealNextID()
	if err != nil {
		writeDealError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"nextId": next})
}

func formatAccount(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.DealVaultPrefix, addr[:]).String()
}

func formatDealJSON(d *deal.Deal) dealJSON {
	amount := "0"
	if d.Amount != nil {
		amount = d.Amount.String()
	}
	out := dealJSON{
		ID:                    d.ID,
		Buyer:                 formatAccount(d.Buyer),
		Seller:                formatAccount(d.Seller),
		Arbiter:               formatAccount(d.Arbiter),
		Amount:                amount,
		Status:                d.Status.String(),
		DisputeReason:         d.DisputeReason,
		CancellationRequested: d.CancellationRequested,
		CreatedAt:             d.CreatedAt,
	}
	if !d.Asset.IsNative() {
		tokenAddr := formatAccount(d.Asset.Token)
		out.Token = &tokenAddr
	}
	if d.DisputedBy != ([20]byte{}) {
		disputedBy := formatAccount(d.DisputedBy)
		out.DisputedBy = &disputedBy
	}
	return out
}

// writeDealError maps ledger error kinds onto JSON-RPC codes and HTTP
// statuses so callers can tell wrong state, wrong role and bad arguments
// apart.
func writeDealError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeDealInternal
	message := "internal_error"
	switch {
	case errors.Is(err, deal.ErrNotFound), errors.Is(err, arbiter.ErrNotApproved), errors.Is(err, token.ErrUnknownToken):
		status = http.StatusNotFound
		code = codeDealNotFound
		message = "not_found"
	case errors.Is(err, deal.ErrUnauthorized), errors.Is(err, arbiter.ErrNotOwner), errors.Is(err, token.ErrNotMintAuthority):
		status = http.StatusForbidden
		code = codeDealForbidden
		message = "forbidden"
	case errors.Is(err, deal.ErrInvalidState), errors.Is(err, arbiter.ErrAlreadyApproved), errors.Is(err, token.ErrAlreadyRegistered):
		status = http.StatusConflict
		code = codeDealConflict
		message = "conflict"
	case errors.Is(err, deal.ErrTransferFailed), errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusConflict
		code = codeDealTransferFailed
		message = "transfer_failed"
	case errors.Is(err, deal.ErrInvalidArgument), errors.Is(err, arbiter.ErrInvalidAddress), errors.Is(err, token.ErrInvalidAmount):
		status = http.StatusBadRequest
		code = codeDealInvalidParams
		message = "invalid_params"
	}
	observability.RPCMetrics().RecordError("deal", fmt.Sprintf("%d", code))
	writeError(w, status, id, code, message, err.Error())
}
