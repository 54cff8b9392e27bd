package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"dealvault/crypto"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("DV_RPC_TOKEN")

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8545"
}

func main() {
	args := os.Args[1:]
	if len(args) > 1 && args[0] == "--rpc" {
		rpcEndpoint = args[1]
		args = args[2:]
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		generateKey()
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "deal":
		os.Exit(runDealCommand(args[1:], os.Stdout, os.Stderr))
	case "arbiter":
		os.Exit(runArbiterCommand(args[1:], os.Stdout, os.Stderr))
	case "events":
		listEvents(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: dv-cli [--rpc <url>] <command>")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                      Create a new account key and print its address")
	fmt.Println("  balance <address>                 Show the native balance of an address")
	fmt.Println("  deal <subcommand>                 Manage escrow deals (see 'deal help')")
	fmt.Println("  arbiter <subcommand>              Manage the arbiter registry")
	fmt.Println("  events [after]                    Print the audit event log")
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
	fmt.Printf("PrivateKey: %s\n", hex.EncodeToString(key.Bytes()))
}

func getBalance(address string) {
	result, err := rpcCall("bank_getBalance", map[string]interface{}{"address": address})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func listEvents(args []string) {
	params := map[string]interface{}{}
	if len(args) > 0 {
		params["after"] = strings.TrimSpace(args[0])
	}
	result, err := rpcCall("events_list", params)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

func rpcCall(method string, params interface{}) (json.RawMessage, error) {
	result, rpcErr, err := callRPC(method, params)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		if len(rpcErr.Data) > 0 {
			return nil, fmt.Errorf("%s: %s", rpcErr.Message, string(rpcErr.Data))
		}
		return nil, fmt.Errorf("%s", rpcErr.Message)
	}
	return result, nil
}

func doRPCRequest(body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	return client.Do(httpReq)
}
