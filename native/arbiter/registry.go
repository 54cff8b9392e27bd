package arbiter

import (
	"encoding/hex"
	"errors"
	"fmt"

	"dealvault/core/events"
	"dealvault/core/types"
)

var (
	errNilState = errors.New("arbiter registry: state not configured")

	// ErrNotOwner is returned when a registry mutation is attempted by an
	// address other than the configured owner.
	ErrNotOwner = errors.New("arbiter: caller is not the registry owner")
	// ErrAlreadyApproved is returned when adding an address that is already
	// in the approved set.
	ErrAlreadyApproved = errors.New("arbiter: address already approved")
	// ErrNotApproved is returned when removing an address that is not in the
	// approved set.
	ErrNotApproved = errors.New("arbiter: address not approved")
	// ErrInvalidAddress is returned for the zero address.
	ErrInvalidAddress = errors.New("arbiter: invalid address")
)

const (
	EventTypeArbiterAdded   = "arbiter.added"
	EventTypeArbiterRemoved = "arbiter.removed"
)

// registryState is the slice of ledger state the registry depends on. Removal
// clears current approval but never the historical record: in-flight deals
// keep their resolution authority no matter how the registry is edited later.
type registryState interface {
	ArbiterApprove(addr [20]byte) error
	ArbiterRemove(addr [20]byte) error
	ArbiterIsApproved(addr [20]byte) (bool, error)
	ArbiterEverApproved(addr [20]byte) (bool, error)
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry gates which addresses may be assigned as dispute mediators on new
// deals. Approval is checked only at deal-creation time.
type Registry struct {
	state   registryState
	emitter events.Emitter
	owner   [20]byte
}

// NewRegistry creates a registry gated by the given owner address with a
// no-op emitter.
func NewRegistry(owner [20]byte) *Registry {
	return &Registry{owner: owner, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Owner returns the address allowed to mutate the registry.
func (r *Registry) Owner() [20]byte { return r.owner }

func (r *Registry) emit(eventType string, addr [20]byte) {
	if r == nil || r.emitter == nil {
		return
	}
	evt := &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"arbiter": hex.EncodeToString(addr[:]),
		},
	}
	r.emitter.Emit(registryEvent{evt: evt})
}

// Bootstrap seeds the approved set at initialisation time. It is idempotent
// and bypasses the owner gate; it must only be called during genesis.
func (r *Registry) Bootstrap(addrs [][20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	for _, addr := range addrs {
		if addr == ([20]byte{}) {
			return fmt.Errorf("%w: zero address in bootstrap set", ErrInvalidAddress)
		}
		if err := r.state.ArbiterApprove(addr); err != nil {
			return err
		}
	}
	return nil
}

// Add approves a new arbiter address. Only the owner may call it.
func (r *Registry) Add(caller, addr [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if caller != r.owner {
		return ErrNotOwner
	}
	if addr == ([20]byte{}) {
		return ErrInvalidAddress
	}
	approved, err := r.state.ArbiterIsApproved(addr)
	if err != nil {
		return err
	}
	if approved {
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, hex.EncodeToString(addr[:]))
	}
	if err := r.state.ArbiterApprove(addr); err != nil {
		return err
	}
	r.emit(EventTypeArbiterAdded, addr)
	return nil
}

// Remove revokes a currently approved arbiter address. Only the owner may
// call it. Deals already assigned to the address remain resolvable.
func (r *Registry) Remove(caller, addr [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if caller != r.owner {
		return ErrNotOwner
	}
	approved, err := r.state.ArbiterIsApproved(addr)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("%w: %s", ErrNotApproved, hex.EncodeToString(addr[:]))
	}
	if err := r.state.ArbiterRemove(addr); err != nil {
		return err
	}
	r.emit(EventTypeArbiterRemoved, addr)
	return nil
}

// IsApproved reports current membership in the approved set. It is a pure
// lookup callable by anyone.
func (r *Registry) IsApproved(addr [20]byte) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	return r.state.ArbiterIsApproved(addr)
}
