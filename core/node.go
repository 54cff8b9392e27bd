package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"dealvault/core/events"
	"dealvault/core/state"
	"dealvault/core/types"
	"dealvault/native/arbiter"
	"dealvault/native/deal"
	"dealvault/native/token"
	"dealvault/observability"
	"dealvault/storage"
)

var genesisAppliedKey = []byte("genesis/applied")

// Genesis describes the initial ledger contents: the registry owner, the
// bootstrap arbiter set and any prefunded native balances.
type Genesis struct {
	Owner    [20]byte
	Arbiters [][20]byte
	Alloc    map[[20]byte]*big.Int
}

// AuditEvent is one entry of the append-only event log external observers
// subscribe to. Sequence numbers increase monotonically and are never reused.
type AuditEvent struct {
	Sequence uint64      `json:"sequence"`
	Event    types.Event `json:"event"`
}

// Node is the central controller. It owns the database, serialises every
// state-mutating operation behind a single mutex and maintains the audit log.
// External callers only ever trigger transitions through its methods; nothing
// else writes deal records or moves custodied funds.
type Node struct {
	db      storage.Database
	state   *state.Manager
	owner   [20]byte
	stateMu sync.Mutex

	eventMu  sync.RWMutex
	eventLog []AuditEvent
	subs     map[uint64]chan AuditEvent
	nextSub  uint64
}

// NewNode opens the ledger on the given database, applying the genesis
// contents on first start.
func NewNode(db storage.Database, genesis Genesis) (*Node, error) {
	if genesis.Owner == ([20]byte{}) {
		return nil, errors.New("node: genesis owner required")
	}
	n := &Node{
		db:    db,
		state: state.NewManager(db),
		owner: genesis.Owner,
		subs:  make(map[uint64]chan AuditEvent),
	}
	applied, err := db.Has(genesisAppliedKey)
	if err != nil {
		return nil, err
	}
	if !applied {
		if err := n.applyGenesis(genesis); err != nil {
			return nil, err
		}
		if err := db.Put(genesisAppliedKey, []byte{1}); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Node) applyGenesis(genesis Genesis) error {
	registry := arbiter.NewRegistry(n.owner)
	registry.SetState(n.state)
	if err := registry.Bootstrap(genesis.Arbiters); err != nil {
		return err
	}
	for addr, balance := range genesis.Alloc {
		if balance == nil || balance.Sign() < 0 {
			return fmt.Errorf("node: invalid genesis balance for %x", addr)
		}
		account, err := n.state.GetAccount(addr[:])
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Set(balance)
		if err := n.state.PutAccount(addr[:], account); err != nil {
			return err
		}
	}
	return nil
}

// Owner returns the registry owner address.
func (n *Node) Owner() [20]byte { return n.owner }

// --- Event log ---

type eventWithPayload interface {
	Event() *types.Event
}

type nodeEventSink struct {
	node *Node
}

func (s nodeEventSink) Emit(evt events.Event) {
	if s.node == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	s.node.appendEvent(*event)
}

func (n *Node) appendEvent(evt types.Event) {
	observability.Events().RecordEvent(evt.Type)
	n.eventMu.Lock()
	entry := AuditEvent{Sequence: uint64(len(n.eventLog)), Event: evt.Clone()}
	n.eventLog = append(n.eventLog, entry)
	for _, ch := range n.subs {
		select {
		case ch <- entry:
		default:
			// Slow subscribers miss live entries; they can re-read the log.
		}
	}
	n.eventMu.Unlock()
}

// Events returns log entries with sequence >= after, capped at limit when
// limit is positive.
func (n *Node) Events(after uint64, limit int) []AuditEvent {
	n.eventMu.RLock()
	defer n.eventMu.RUnlock()
	if after > uint64(len(n.eventLog)) {
		return nil
	}
	entries := n.eventLog[after:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]AuditEvent, len(entries))
	copy(out, entries)
	return out
}

// SubscribeEvents registers a live event feed. The returned cancel function
// must be called to release the subscription.
func (n *Node) SubscribeEvents(buffer int) (<-chan AuditEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan AuditEvent, buffer)
	n.eventMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.eventMu.Unlock()
	cancel := func() {
		n.eventMu.Lock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
		n.eventMu.Unlock()
	}
	return ch, cancel
}

// --- Engine construction ---

func (n *Node) newDealEngine() *deal.Engine {
	engine := deal.NewEngine()
	engine.SetState(n.state)
	engine.SetEmitter(nodeEventSink{node: n})
	return engine
}

func (n *Node) newRegistry() *arbiter.Registry {
	registry := arbiter.NewRegistry(n.owner)
	registry.SetState(n.state)
	registry.SetEmitter(nodeEventSink{node: n})
	return registry
}

func (n *Node) newTokenLedger() *token.Ledger {
	ledger := token.NewLedger()
	ledger.SetState(n.state)
	ledger.SetEmitter(nodeEventSink{node: n})
	return ledger
}

// --- Deal operations ---

func (n *Node) DealCreate(buyer, seller, arb [20]byte, asset deal.AssetRef, amount *big.Int) (*deal.Deal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().Create(buyer, seller, arb, asset, amount)
}

func (n *Node) DealDepositNative(id uint64, from [20]byte, value *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().DepositNative(id, from, value)
}

func (n *Node) DealDepositToken(id uint64, from [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().DepositToken(id, from)
}

func (n *Node) DealConfirmShipment(id uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().ConfirmShipment(id, caller)
}

func (n *Node) DealConfirmReceipt(id uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().ConfirmReceipt(id, caller)
}

func (n *Node) DealRaiseDispute(id uint64, caller [20]byte, reason string, cancellationRequest bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().RaiseDispute(id, caller, reason, cancellationRequest)
}

func (n *Node) DealResolveDispute(id uint64, caller [20]byte, refundToBuyer bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().ResolveDispute(id, caller, refundToBuyer)
}

func (n *Node) DealCancel(id uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newDealEngine().Cancel(id, caller)
}

func (n *Node) DealGet(id uint64) (*deal.Deal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	d, ok := n.state.DealGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: deal %d", deal.ErrNotFound, id)
	}
	return d, nil
}

func (n *Node) DealNextID() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.DealNextID()
}

// --- Arbiter registry operations ---

func (n *Node) ArbiterAdd(caller, addr [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newRegistry().Add(caller, addr)
}

func (n *Node) ArbiterRemove(caller, addr [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newRegistry().Remove(caller, addr)
}

func (n *Node) ArbiterIsApproved(addr [20]byte) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newRegistry().IsApproved(addr)
}

// --- Token operations ---

// TokenRegister deploys a new token contract record. The contract address is
// derived from the symbol and the registering caller, who becomes the mint
// authority.
func (n *Node) TokenRegister(caller [20]byte, symbol, name string, decimals uint8) ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("token/"+symbol+"/"), caller[:])[:20])
	meta := &token.Metadata{
		Symbol:        symbol,
		Name:          name,
		Decimals:      decimals,
		MintAuthority: caller,
	}
	if err := n.newTokenLedger().Register(addr, meta); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

func (n *Node) TokenMint(tokenAddr, caller, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newTokenLedger().Mint(tokenAddr, caller, to, amount)
}

func (n *Node) TokenApprove(tokenAddr, owner, spender [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newTokenLedger().Approve(tokenAddr, owner, spender, amount)
}

func (n *Node) TokenBalanceOf(tokenAddr, owner [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newTokenLedger().BalanceOf(tokenAddr, owner)
}

func (n *Node) TokenAllowance(tokenAddr, owner, spender [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newTokenLedger().Allowance(tokenAddr, owner, spender)
}

// --- Bank queries ---

func (n *Node) GetAccount(addr []byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.GetAccount(addr)
}

// VaultAddress returns the custody account held by the ledger itself.
func (n *Node) VaultAddress() ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.VaultAddress()
}
