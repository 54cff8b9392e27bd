package token

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"dealvault/core/events"
	"dealvault/core/types"
)

var (
	errNilState = errors.New("token ledger: state not configured")

	// ErrUnknownToken is returned when no token contract is registered at
	// the given address.
	ErrUnknownToken = errors.New("token: unknown token")
	// ErrAlreadyRegistered is returned when registering over an existing
	// token address.
	ErrAlreadyRegistered = errors.New("token: address already registered")
	// ErrInsufficientBalance is returned when a transfer exceeds the owner's
	// balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when a transfer-from exceeds the
	// spender's allowance.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrNotMintAuthority is returned when minting is attempted by an
	// address other than the token's mint authority.
	ErrNotMintAuthority = errors.New("token: caller is not the mint authority")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")
)

const (
	EventTypeTokenRegistered  = "token.registered"
	EventTypeTokenMinted      = "token.minted"
	EventTypeTokenApproved    = "token.approved"
	EventTypeTokenTransferred = "token.transferred"
)

// Metadata describes a registered fungible token contract.
type Metadata struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority [20]byte
}

// Clone returns a copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// ledgerState is the slice of ledger state the token module depends on.
type ledgerState interface {
	TokenPutMetadata(addr [20]byte, meta *Metadata) error
	TokenGetMetadata(addr [20]byte) (*Metadata, bool, error)
	TokenGetBalance(token, owner [20]byte) (*big.Int, error)
	TokenSetBalance(token, owner [20]byte, amount *big.Int) error
	TokenGetAllowance(token, owner, spender [20]byte) (*big.Int, error)
	TokenSetAllowance(token, owner, spender [20]byte, amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Ledger implements transferable-balance semantics for registered tokens:
// transfer, transfer-from, balance and allowance queries. The deal engine
// consumes it as an opaque asset resource and never assumes success.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger creates a token ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(eventType string, attrs map[string]string) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: &types.Event{Type: eventType, Attributes: attrs}})
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

func (l *Ledger) metadata(token [20]byte) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	meta, ok, err := l.state.TokenGetMetadata(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, hex.EncodeToString(token[:]))
	}
	return meta, nil
}

// Register records a new token contract at the given address.
func (l *Ledger) Register(addr [20]byte, meta *Metadata) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("%w: zero token address", ErrUnknownToken)
	}
	if meta == nil || strings.TrimSpace(meta.Symbol) == "" {
		return fmt.Errorf("token: symbol required")
	}
	if _, ok, err := l.state.TokenGetMetadata(addr); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, hex.EncodeToString(addr[:]))
	}
	normalized := meta.Clone()
	normalized.Symbol = strings.ToUpper(strings.TrimSpace(normalized.Symbol))
	if err := l.state.TokenPutMetadata(addr, normalized); err != nil {
		return err
	}
	l.emit(EventTypeTokenRegistered, map[string]string{
		"token":  hex.EncodeToString(addr[:]),
		"symbol": normalized.Symbol,
	})
	return nil
}

// Metadata returns the registered metadata for a token address.
func (l *Ledger) Metadata(token [20]byte) (*Metadata, error) {
	meta, err := l.metadata(token)
	if err != nil {
		return nil, err
	}
	return meta.Clone(), nil
}

// Mint credits freshly issued balance to an account. Only the token's mint
// authority may call it.
func (l *Ledger) Mint(token, caller, to [20]byte, amount *big.Int) error {
	meta, err := l.metadata(token)
	if err != nil {
		return err
	}
	if caller != meta.MintAuthority {
		return ErrNotMintAuthority
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.state.TokenGetBalance(token, to)
	if err != nil {
		return err
	}
	if err := l.state.TokenSetBalance(token, to, new(big.Int).Add(balance, amt)); err != nil {
		return err
	}
	l.emit(EventTypeTokenMinted, map[string]string{
		"token":  hex.EncodeToString(token[:]),
		"to":     hex.EncodeToString(to[:]),
		"amount": amt.String(),
	})
	return nil
}

// Approve grants a spender permission to pull up to amount from the owner.
func (l *Ledger) Approve(token, owner, spender [20]byte, amount *big.Int) error {
	if _, err := l.metadata(token); err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if err := l.state.TokenSetAllowance(token, owner, spender, amt); err != nil {
		return err
	}
	l.emit(EventTypeTokenApproved, map[string]string{
		"token":   hex.EncodeToString(token[:]),
		"owner":   hex.EncodeToString(owner[:]),
		"spender": hex.EncodeToString(spender[:]),
		"amount":  amt.String(),
	})
	return nil
}

// Transfer moves balance from the caller to the recipient.
func (l *Ledger) Transfer(token, from, to [20]byte, amount *big.Int) error {
	if _, err := l.metadata(token); err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if err := l.move(token, from, to, amt); err != nil {
		return err
	}
	l.emit(EventTypeTokenTransferred, map[string]string{
		"token":  hex.EncodeToString(token[:]),
		"from":   hex.EncodeToString(from[:]),
		"to":     hex.EncodeToString(to[:]),
		"amount": amt.String(),
	})
	return nil
}

// TransferFrom moves balance from the owner to the recipient on the strength
// of a prior allowance granted to the spender. The allowance is reduced by
// the transferred amount.
func (l *Ledger) TransferFrom(token, spender, owner, to [20]byte, amount *big.Int) error {
	if _, err := l.metadata(token); err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	allowance, err := l.state.TokenGetAllowance(token, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(token, owner, to, amt); err != nil {
		return err
	}
	if err := l.state.TokenSetAllowance(token, owner, spender, new(big.Int).Sub(allowance, amt)); err != nil {
		return err
	}
	l.emit(EventTypeTokenTransferred, map[string]string{
		"token":   hex.EncodeToString(token[:]),
		"from":    hex.EncodeToString(owner[:]),
		"to":      hex.EncodeToString(to[:]),
		"spender": hex.EncodeToString(spender[:]),
		"amount":  amt.String(),
	})
	return nil
}

// BalanceOf returns the owner's balance for the token.
func (l *Ledger) BalanceOf(token, owner [20]byte) (*big.Int, error) {
	if _, err := l.metadata(token); err != nil {
		return nil, err
	}
	return l.state.TokenGetBalance(token, owner)
}

// Allowance returns what the spender may still pull from the owner.
func (l *Ledger) Allowance(token, owner, spender [20]byte) (*big.Int, error) {
	if _, err := l.metadata(token); err != nil {
		return nil, err
	}
	return l.state.TokenGetAllowance(token, owner, spender)
}

func (l *Ledger) move(token, from, to [20]byte, amt *big.Int) error {
	fromBal, err := l.state.TokenGetBalance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		// A self-transfer must not double-count: the credit below would
		// overwrite the debit with a stale balance snapshot.
		return nil
	}
	toBal, err := l.state.TokenGetBalance(token, to)
	if err != nil {
		return err
	}
	if err := l.state.TokenSetBalance(token, from, new(big.Int).Sub(fromBal, amt)); err != nil {
		return err
	}
	return l.state.TokenSetBalance(token, to, new(big.Int).Add(toBal, amt))
}
