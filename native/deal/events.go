package deal

import (
	"encoding/hex"
	"strconv"

	"dealvault/core/types"
)

const (
	EventTypeDealCreated   = "deal.created"
	EventTypeDealFunded    = "deal.funded"
	EventTypeDealShipped   = "deal.shipped"
	EventTypeDealCompleted = "deal.completed"
	EventTypeDealDisputed  = "deal.disputed"
	EventTypeDealResolved  = "deal.resolved"
	EventTypeDealRefunded  = "deal.refunded"
	EventTypeDealCancelled = "deal.cancelled"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// deal.
func NewCreatedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealCreated, d) }

// NewFundedEvent returns the canonical event payload emitted when the buyer
// places the deal amount in custody.
func NewFundedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealFunded, d) }

// NewShippedEvent returns the canonical event payload emitted when the seller
// signals shipment.
func NewShippedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealShipped, d) }

// NewCompletedEvent returns the canonical event payload for a payout to the
// seller, whether by receipt confirmation or arbiter release.
func NewCompletedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealCompleted, d) }

// NewDisputedEvent returns the canonical event payload emitted when a party
// raises a dispute.
func NewDisputedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealDisputed, d) }

// NewResolvedEvent returns the canonical event payload emitted when the
// assigned arbiter settles a dispute. The outcome attribute carries the
// resolution direction.
func NewResolvedEvent(d *Deal, refundToBuyer bool) *types.Event {
	evt := newDealEvent(EventTypeDealResolved, d)
	if refundToBuyer {
		evt.Attributes["outcome"] = "refund"
	} else {
		evt.Attributes["outcome"] = "release"
	}
	return evt
}

// NewRefundedEvent returns the canonical event payload for a refund to the
// buyer.
func NewRefundedEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealRefunded, d) }

// NewCancelledEvent returns the canonical event payload emitted when a deal is
// cancelled before any deposit.
func NewCancelledEvent(d *Deal) *types.Event { return newDealEvent(EventTypeDealCancelled, d) }

func newDealEvent(eventType string, d *Deal) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeDeal(d)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["arbiter"] = hex.EncodeToString(sanitized.Arbiter[:])
	if sanitized.Asset.IsNative() {
		attrs["asset"] = "native"
	} else {
		attrs["asset"] = hex.EncodeToString(sanitized.Asset.Token[:])
	}
	attrs["amount"] = sanitized.Amount.String()
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if sanitized.DisputeReason != "" {
		attrs["reason"] = sanitized.DisputeReason
	}
	if sanitized.DisputedBy != ([20]byte{}) {
		attrs["disputedBy"] = hex.EncodeToString(sanitized.DisputedBy[:])
		attrs["cancellationRequested"] = strconv.FormatBool(sanitized.CancellationRequested)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
