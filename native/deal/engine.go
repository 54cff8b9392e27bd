package deal

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"dealvault/core/events"
	"dealvault/core/types"
)

var errNilState = errors.New("deal engine: state not configured")

// engineState is the slice of ledger state the engine depends on. The
// concrete implementation lives in core/state; tests supply an in-memory
// double.
type engineState interface {
	DealPut(*Deal) error
	DealGet(id uint64) (*Deal, bool)
	DealNextID() (uint64, error)
	DealAllocateID() (uint64, error)
	ArbiterEverApproved(addr [20]byte) (bool, error)
	VaultAddress() ([20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	TokenTransfer(token, from, to [20]byte, amount *big.Int) error
	TokenTransferFrom(token, spender, owner, to [20]byte, amount *big.Int) error
	TokenBalanceOf(token, owner [20]byte) (*big.Int, error)
	TokenAllowance(token, owner, spender [20]byte) (*big.Int, error)
}

type dealEvent struct {
	evt *types.Event
}

func (e dealEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dealEvent) Event() *types.Event { return e.evt }

// Engine wires the deal state machine with external state and event emitters.
// All mutating operations assume single-writer execution; the owning node
// serialises calls behind its state mutex.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a deal engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dealEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadDeal(id uint64) (*Deal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, ok := e.state.DealGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: deal %d", ErrNotFound, id)
	}
	return d, nil
}

func (e *Engine) storeDeal(d *Deal) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.DealPut(d)
}

// transferNative moves native balance between two accounts held in state.
func (e *Engine) transferNative(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer amount", ErrInvalidArgument)
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	toAcc = toAcc.Normalize()
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: insufficient native balance", ErrTransferFailed)
	}
	if from == to {
		// Debiting and crediting the same account through two snapshots
		// would let the second write resurrect the debited funds.
		return nil
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// Create initialises and persists a new deal. The caller becomes the buyer.
// The arbiter must have been approved by the registry at some point before
// creation; its resolution authority is fixed from here on regardless of
// later registry edits.
func (e *Engine) Create(buyer, seller, arbiter [20]byte, asset AssetRef, amount *big.Int) (*Deal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if buyer == ([20]byte{}) {
		return nil, fmt.Errorf("%w: buyer address required", ErrInvalidArgument)
	}
	if seller == ([20]byte{}) {
		return nil, fmt.Errorf("%w: seller address required", ErrInvalidArgument)
	}
	if arbiter == ([20]byte{}) {
		return nil, fmt.Errorf("%w: arbiter address required", ErrInvalidArgument)
	}
	if !asset.Valid() {
		return nil, fmt.Errorf("%w: malformed asset reference", ErrInvalidArgument)
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	known, err := e.state.ArbiterEverApproved(arbiter)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, fmt.Errorf("%w: arbiter not registered", ErrInvalidArgument)
	}
	id, err := e.state.DealAllocateID()
	if err != nil {
		return nil, err
	}
	d := &Deal{
		ID:        id,
		Buyer:     buyer,
		Seller:    seller,
		Arbiter:   arbiter,
		Asset:     asset,
		Amount:    amt,
		Status:    StatusAwaitingPayment,
		CreatedAt: e.now(),
	}
	if err := e.storeDeal(d); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(d))
	return d.Clone(), nil
}

// DepositNative places the attached native value in ledger custody. The value
// must match the deal amount exactly; overpay and underpay are both rejected
// before any balance moves.
func (e *Engine) DepositNative(id uint64, from [20]byte, value *big.Int) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if d.Status != StatusAwaitingPayment {
		return fmt.Errorf("%w: cannot deposit in status %s", ErrInvalidState, d.Status)
	}
	if from != d.Buyer {
		return fmt.Errorf("%w: only the buyer may deposit", ErrUnauthorized)
	}
	if !d.Asset.IsNative() {
		return fmt.Errorf("%w: deal is token-denominated", ErrInvalidArgument)
	}
	if value == nil || value.Cmp(d.Amount) != 0 {
		return fmt.Errorf("%w: deposit value must equal deal amount", ErrInvalidArgument)
	}
	vault, err := e.state.VaultAddress()
	if err != nil {
		return err
	}
	if err := e.transferNative(d.Buyer, vault, d.Amount); err != nil {
		return err
	}
	d.Status = StatusAwaitingDelivery
	if err := e.storeDeal(d); err != nil {
		return err
	}
	e.emit(NewFundedEvent(d))
	return nil
}

// DepositToken pulls the deal amount from the buyer into ledger custody via
// the token's transfer-from. The buyer must have granted the vault a
// sufficient allowance beforehand; failures from the token are surfaced
// unchanged with no state change and no retry.
func (e *Engine) DepositToken(id uint64, from [20]byte) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if d.Status != StatusAwaitingPayment {
		return fmt.Errorf("%w: cannot deposit in status %s", ErrInvalidState, d.Status)
	}
	if from != d.Buyer {
		return fmt.Errorf("%w: only the buyer may deposit", ErrUnauthorized)
	}
	if d.Asset.IsNative() {
		return fmt.Errorf("%w: deal is native-denominated", ErrInvalidArgument)
	}
	vault, err := e.state.VaultAddress()
	if err != nil {
		return err
	}
	if err := e.state.TokenTransferFrom(d.Asset.Token, vault, d.Buyer, vault, d.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	d.Status = StatusAwaitingDelivery
	if err := e.storeDeal(d); err != nil {
		return err
	}
	e.emit(NewFundedEvent(d))
	return nil
}

// ConfirmShipment records that the seller has shipped the item.
func (e *Engine) ConfirmShipment(id uint64, caller [20]byte) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if caller != d.Seller {
		return fmt.Errorf("%w: only the seller may confirm shipment", ErrUnauthorized)
	}
	if d.Status != StatusAwaitingDelivery {
		return fmt.Errorf("%w: cannot confirm shipment in status %s", ErrInvalidState, d.Status)
	}
	d.Status = StatusShipped
	if err := e.storeDeal(d); err != nil {
		return err
	}
	e.emit(NewShippedEvent(d))
	return nil
}

// ConfirmReceipt releases custody to the seller once the buyer confirms the
// shipped item arrived.
func (e *Engine) ConfirmReceipt(id uint64, caller [20]byte) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if caller != d.Buyer {
		return fmt.Errorf("%w: only the buyer may confirm receipt", ErrUnauthorized)
	}
	if d.Status != StatusShipped {
		return fmt.Errorf("%w: cannot confirm receipt in status %s", ErrInvalidState, d.Status)
	}
	return e.settle(d, d.Seller, StatusCompleted, NewCompletedEvent)
}

// RaiseDispute moves a funded deal into arbitration. Either party may raise
// it from AwaitingDelivery or Shipped. The cancellation-request flag is
// advisory metadata for the arbiter and never alters the resolution outcome.
func (e *Engine) RaiseDispute(id uint64, caller [20]byte, reason string, cancellationRequest bool) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if d.Status != StatusAwaitingDelivery && d.Status != StatusShipped {
		return fmt.Errorf("%w: cannot dispute in status %s", ErrInvalidState, d.Status)
	}
	if caller != d.Buyer && caller != d.Seller {
		return fmt.Errorf("%w: only buyer or seller may dispute", ErrUnauthorized)
	}
	d.Status = StatusDisputed
	d.DisputeReason = reason
	d.DisputedBy = caller
	d.CancellationRequested = cancellationRequest
	if err := e.storeDeal(d); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(d))
	return nil
}

// ResolveDispute settles a disputed deal. Only the arbiter stored on the deal
// itself may resolve it; registry membership alone does not grant authority.
// The outcome is binary: full refund to the buyer or full release to the
// seller.
func (e *Engine) ResolveDispute(id uint64, caller [20]byte, refundToBuyer bool) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if d.Status != StatusDisputed {
		return fmt.Errorf("%w: cannot resolve in status %s", ErrInvalidState, d.Status)
	}
	if caller != d.Arbiter {
		return fmt.Errorf("%w: only the assigned arbiter may resolve", ErrUnauthorized)
	}
	if refundToBuyer {
		if err := e.settle(d, d.Buyer, StatusRefunded, NewRefundedEvent); err != nil {
			return err
		}
	} else {
		if err := e.settle(d, d.Seller, StatusCompleted, NewCompletedEvent); err != nil {
			return err
		}
	}
	e.emit(NewResolvedEvent(d, refundToBuyer))
	return nil
}

// Cancel voids a deal before any deposit. No funds are held yet, so nothing
// moves.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	d, err := e.loadDeal(id)
	if err != nil {
		return err
	}
	if d.Status != StatusAwaitingPayment {
		return fmt.Errorf("%w: cannot cancel in status %s", ErrInvalidState, d.Status)
	}
	if caller != d.Buyer && caller != d.Seller {
		return fmt.Errorf("%w: only buyer or seller may cancel", ErrUnauthorized)
	}
	d.Status = StatusCancelled
	if err := e.storeDeal(d); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(d))
	return nil
}

// Get returns a copy of the deal record.
func (e *Engine) Get(id uint64) (*Deal, error) {
	return e.loadDeal(id)
}

// NextID returns the identifier the next created deal will receive.
func (e *Engine) NextID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.DealNextID()
}

// settle moves a deal into its terminal status and pays out custody. Custody
// sufficiency is verified up front and the new status is persisted before the
// transfer runs, so a reentrant call observes the terminal state and is
// rejected by the precondition checks. Funds for a deal therefore move out
// exactly once.
func (e *Engine) settle(d *Deal, recipient [20]byte, status Status, eventFn func(*Deal) *types.Event) error {
	vault, err := e.state.VaultAddress()
	if err != nil {
		return err
	}
	amount := cloneBigInt(d.Amount)
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	if d.Asset.IsNative() {
		vaultAcc, err := e.state.GetAccount(vault[:])
		if err != nil {
			return err
		}
		if vaultAcc.Normalize().Balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: custody balance below deal amount", ErrTransferFailed)
		}
	} else {
		held, err := e.state.TokenBalanceOf(d.Asset.Token, vault)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if held.Cmp(amount) < 0 {
			return fmt.Errorf("%w: custody balance below deal amount", ErrTransferFailed)
		}
	}
	d.Status = status
	if err := e.storeDeal(d); err != nil {
		return err
	}
	if d.Asset.IsNative() {
		if err := e.transferNative(vault, recipient, amount); err != nil {
			return err
		}
	} else {
		if err := e.state.TokenTransfer(d.Asset.Token, vault, recipient, amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	e.emit(eventFn(d))
	return nil
}
