package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var dealRPCCall = callRPC

func runDealCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, dealUsage())
		return 1
	}

	switch args[0] {
	case "create":
		return runDealCreate(args[1:], stdout, stderr)
	case "get":
		return runDealGet(args[1:], stdout, stderr)
	case "deposit":
		return runDealDeposit(args[1:], stdout, stderr)
	case "ship":
		return runDealTransition("deal_confirmShipment", args[1:], stdout, stderr)
	case "receive":
		return runDealTransition("deal_confirmReceipt", args[1:], stdout, stderr)
	case "cancel":
		return runDealTransition("deal_cancel", args[1:], stdout, stderr)
	case "dispute":
		return runDealDispute(args[1:], stdout, stderr)
	case "resolve":
		return runDealResolve(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown deal subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, dealUsage())
		return 1
	}
}

func runDealCreate(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("deal create", stderr)
	var (
		buyer     string
		seller    string
		arbiter   string
		token     string
		amountStr string
	)
	fs.StringVar(&buyer, "buyer", "", "buyer bech32 address")
	fs.StringVar(&seller, "seller", "", "seller bech32 address")
	fs.StringVar(&arbiter, "arbiter", "", "approved arbiter bech32 address")
	fs.StringVar(&token, "token", "", "optional token contract hex address (native when empty)")
	fs.StringVar(&amountStr, "amount", "", "escrow amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if buyer == "" {
		return printDealError(stderr, "--buyer is required")
	}
	if seller == "" {
		return printDealError(stderr, "--seller is required")
	}
	if arbiter == "" {
		return printDealError(stderr, "--arbiter is required")
	}
	if amountStr == "" {
		return printDealError(stderr, "--amount is required")
	}
	if !isDigits(amountStr) || strings.TrimLeft(amountStr, "0") == "" {
		return printDealError(stderr, "--amount must be a positive integer")
	}

	params := map[string]interface{}{
		"buyer":   buyer,
		"seller":  seller,
		"arbiter": arbiter,
		"amount":  amountStr,
	}
	if strings.TrimSpace(token) != "" {
		params["token"] = token
	}
	return finishDealCall("deal_create", params, stdout, stderr)
}

func runDealGet(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("deal get", stderr)
	var idStr string
	fs.StringVar(&idStr, "id", "", "deal identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	id, err := parseDealID(idStr)
	if err != nil {
		return printDealError(stderr, err.Error())
	}
	return finishDealCall("deal_get", map[string]interface{}{"id": id}, stdout, stderr)
}

func runDealDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("deal deposit", stderr)
	var (
		idStr    string
		from     string
		valueStr string
		useToken bool
	)
	fs.StringVar(&idStr, "id", "", "deal identifier")
	fs.StringVar(&from, "from", "", "buyer address funding the deal")
	fs.StringVar(&valueStr, "value", "", "native value to deposit (must match the deal amount)")
	fs.BoolVar(&useToken, "token", false, "pull the deal's token amount via an existing allowance")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	id, err := parseDealID(idStr)
	if err != nil {
		return printDealError(stderr, err.Error())
	}
	if from == "" {
		return printDealError(stderr, "--from is required")
	}
	if useToken {
		if valueStr != "" {
			return printDealError(stderr, "--value does not apply to token deposits")
		}
		params := map[string]interface{}{"id": id, "caller": from}
		return finishDealCall("deal_depositToken", params, stdout, stderr)
	}
	if valueStr == "" {
		return printDealError(stderr, "--value is required for native deposits")
	}
	if !isDigits(valueStr) || strings.TrimLeft(valueStr, "0") == "" {
		return printDealError(stderr, "--value must be a positive integer")
	}
	params := map[string]interface{}{"id": id, "from": from, "value": valueStr}
	return finishDealCall("deal_depositNative", params, stdout, stderr)
}

func runDealDispute(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("deal dispute", stderr)
	var (
		idStr   string
		caller  string
		reason  string
		cancels bool
	)
	fs.StringVar(&idStr, "id", "", "deal identifier")
	fs.StringVar(&caller, "caller", "", "buyer or seller address")
	fs.StringVar(&reason, "reason", "", "dispute reason")
	fs.BoolVar(&cancels, "cancellation", false, "flag the dispute as a cancellation request")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	id, err := parseDealID(idStr)
	if err != nil {
		return printDealError(stderr, err.Error())
	}
	if caller == "" {
		return printDealError(stderr, "--caller is required")
	}
	params := map[string]interface{}{"id": id, "caller": caller}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		params["reason"] = trimmed
	}
	if cancels {
		params["cancellationRequest"] = true
	}
	return finishDealCall("deal_raiseDispute", params, stdout, stderr)
}

func runDealResolve(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("deal resolve", stderr)
	var (
		idStr   string
		caller  string
		outcome string
	)
	fs.StringVar(&idStr, "id", "", "deal identifier")
	fs.StringVar(&caller, "caller", "", "arbiter address")
	fs.StringVar(&outcome, "outcome", "", "resolution outcome (release or refund)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	id, err := parseDealID(idStr)
	if err != nil {
		return printDealError(stderr, err.Error())
	}
	if caller == "" {
		return printDealError(stderr, "--caller is required")
	}
	normalized := strings.ToLower(strings.TrimSpace(outcome))
	if normalized != "release" && normalized != "refund" {
		return printDealError(stderr, "--outcome must be release or refund")
	}
	params := map[string]interface{}{
		"id":            id,
		"caller":        caller,
		"refundToBuyer": normalized == "refund",
	}
	return finishDealCall("deal_resolveDispute", params, stdout, stderr)
}

func runDealTransition(method string, args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet(method, stderr)
	var (
		idStr  string
		caller string
	)
	fs.StringVar(&idStr, "id", "", "deal identifier")
	fs.StringVar(&caller, "caller", "", "actor address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	id, err := parseDealID(idStr)
	if err != nil {
		return printDealError(stderr, err.Error())
	}
	if caller == "" {
		return printDealError(stderr, "--caller is required")
	}
	params := map[string]interface{}{"id": id, "caller": caller}
	return finishDealCall(method, params, stdout, stderr)
}

func finishDealCall(method string, params map[string]interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := dealRPCCall(method, params)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func newDealFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, dealUsage())
	}
	return fs
}

func printDealError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if _, err := w.Write(result); err == nil {
		if result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}

func dealUsage() string {
	return strings.TrimSpace(`Usage:
  dv-cli deal <command> [flags]

Commands:
  create  Open a new escrow deal
  get     Fetch deal details by id
  deposit Fund a deal from the buyer account
  ship    Seller confirms shipment
  receive Buyer confirms receipt and releases funds
  dispute Flag a deal for arbitration
  resolve Resolve a disputed deal as the arbiter
  cancel  Cancel an unfunded deal
`)
}

func parseDealID(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--id is required")
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--id must be a non-negative integer")
	}
	return id, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func callRPC(method string, params interface{}) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}
