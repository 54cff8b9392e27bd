package deal

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states supported by the deal ledger.
type Status uint8

const (
	StatusAwaitingPayment Status = iota
	StatusAwaitingDelivery
	StatusShipped
	StatusDisputed
	StatusCompleted
	StatusRefunded
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusCancelled
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name used in events and RPC output.
func (s Status) String() string {
	switch s {
	case StatusAwaitingPayment:
		return "awaiting_payment"
	case StatusAwaitingDelivery:
		return "awaiting_delivery"
	case StatusShipped:
		return "shipped"
	case StatusDisputed:
		return "disputed"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AssetKind discriminates native-currency custody from token custody.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// AssetRef identifies the asset a deal is denominated in: either the native
// currency marker or the address of a registered fungible token.
type AssetRef struct {
	Kind  AssetKind
	Token [20]byte
}

// NativeAsset returns the reference for native-currency custody.
func NativeAsset() AssetRef {
	return AssetRef{Kind: AssetNative}
}

// TokenAsset returns the reference for custody denominated in the token at
// the given address.
func TokenAsset(token [20]byte) AssetRef {
	return AssetRef{Kind: AssetToken, Token: token}
}

// IsNative reports whether the reference names the native currency.
func (a AssetRef) IsNative() bool {
	return a.Kind == AssetNative
}

// Valid reports whether the reference is well formed: native references carry
// no token address, token references carry a non-zero one.
func (a AssetRef) Valid() bool {
	switch a.Kind {
	case AssetNative:
		return a.Token == ([20]byte{})
	case AssetToken:
		return a.Token != ([20]byte{})
	default:
		return false
	}
}

// Deal captures the parties, terms and runtime status of a single escrow
// agreement. Identifiers are sequential zero-based integers allocated by the
// ledger and never reused. Buyer, seller, arbiter, asset and amount are
// immutable after creation.
type Deal struct {
	ID                    uint64
	Buyer                 [20]byte
	Seller                [20]byte
	Arbiter               [20]byte
	Asset                 AssetRef
	Amount                *big.Int
	Status                Status
	DisputeReason         string
	DisputedBy            [20]byte
	CancellationRequested bool
	CreatedAt             int64
}

// Clone returns a deep copy of the deal so callers can safely mutate the copy
// without affecting the stored instance.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeDeal validates and normalises the supplied deal record, returning a
// cloned instance with a non-nil amount. The function does not mutate the
// original value.
func SanitizeDeal(d *Deal) (*Deal, error) {
	if d == nil {
		return nil, fmt.Errorf("nil deal")
	}
	clone := d.Clone()
	if clone.Amount == nil {
		clone.Amount = big.NewInt(0)
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("deal amount must be non-negative")
	}
	if !clone.Asset.Valid() {
		return nil, fmt.Errorf("malformed asset reference")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid deal status: %d", clone.Status)
	}
	return clone, nil
}
