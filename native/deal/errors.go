package deal

import "errors"

// Every precondition violation maps onto exactly one of these sentinels so
// callers can tell wrong state, wrong role and bad arguments apart with
// errors.Is.
var (
	// ErrUnauthorized is returned when the caller does not hold the role a
	// transition requires (buyer, seller or the deal's assigned arbiter).
	ErrUnauthorized = errors.New("deal: caller not authorized")
	// ErrInvalidState is returned when the requested transition is not valid
	// from the deal's current status.
	ErrInvalidState = errors.New("deal: operation not valid in current state")
	// ErrInvalidArgument is returned for zero addresses, zero amounts,
	// malformed asset references, value mismatches and unregistered arbiters.
	ErrInvalidArgument = errors.New("deal: invalid argument")
	// ErrNotFound is returned when no deal exists under the given identifier.
	ErrNotFound = errors.New("deal: not found")
	// ErrTransferFailed is returned when the underlying asset movement could
	// not be performed (insufficient balance or allowance).
	ErrTransferFailed = errors.New("deal: asset transfer failed")
)
