package main

import (
	"fmt"
	"io"
	"strings"
)

func runArbiterCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, arbiterUsage())
		return 1
	}

	switch args[0] {
	case "add":
		return runArbiterMutation("arbiter_add", args[1:], stdout, stderr)
	case "remove":
		return runArbiterMutation("arbiter_remove", args[1:], stdout, stderr)
	case "check":
		return runArbiterCheck(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown arbiter subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, arbiterUsage())
		return 1
	}
}

func runArbiterMutation(method string, args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet(method, stderr)
	var (
		caller  string
		address string
	)
	fs.StringVar(&caller, "caller", "", "registry owner address")
	fs.StringVar(&address, "address", "", "arbiter bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if caller == "" {
		return printDealError(stderr, "--caller is required")
	}
	if address == "" {
		return printDealError(stderr, "--address is required")
	}
	params := map[string]interface{}{"caller": caller, "address": address}
	return finishDealCall(method, params, stdout, stderr)
}

func runArbiterCheck(args []string, stdout, stderr io.Writer) int {
	fs := newDealFlagSet("arbiter check", stderr)
	var address string
	fs.StringVar(&address, "address", "", "arbiter bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if address == "" {
		return printDealError(stderr, "--address is required")
	}
	params := map[string]interface{}{"address": address}
	return finishDealCall("arbiter_isApproved", params, stdout, stderr)
}

func arbiterUsage() string {
	return strings.TrimSpace(`Usage:
  dv-cli arbiter <command> [flags]

Commands:
  add     Approve an arbiter (owner only)
  remove  Revoke an arbiter's approval (owner only)
  check   Report whether an address is currently approved
`)
}
