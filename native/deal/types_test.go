package deal

import (
	"math/big"
	"testing"
)

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusAwaitingPayment:  false,
		StatusAwaitingDelivery: false,
		StatusShipped:          false,
		StatusDisputed:         false,
		StatusCompleted:        true,
		StatusRefunded:         true,
		StatusCancelled:        true,
	}
	for status, want := range terminal {
		if status.Terminal() != want {
			t.Fatalf("status %s terminal = %v, want %v", status, status.Terminal(), want)
		}
	}
}

func TestStatusString(t *testing.T) {
	if StatusAwaitingPayment.String() != "awaiting_payment" {
		t.Fatalf("unexpected name %q", StatusAwaitingPayment.String())
	}
	if Status(99).String() != "unknown" {
		t.Fatalf("out-of-range status should render as unknown")
	}
	if Status(99).Valid() {
		t.Fatalf("out-of-range status should be invalid")
	}
}

func TestAssetRefValidity(t *testing.T) {
	if !NativeAsset().Valid() {
		t.Fatalf("native asset should be valid")
	}
	token := newTestAddress(0x07)
	if !TokenAsset(token).Valid() {
		t.Fatalf("token asset should be valid")
	}
	if (AssetRef{Kind: AssetToken}).Valid() {
		t.Fatalf("token asset without address should be invalid")
	}
	if (AssetRef{Kind: AssetNative, Token: token}).Valid() {
		t.Fatalf("native asset with token address should be invalid")
	}
	if (AssetRef{Kind: AssetKind(9)}).Valid() {
		t.Fatalf("unknown asset kind should be invalid")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &Deal{ID: 3, Amount: big.NewInt(42), Status: StatusShipped}
	clone := original.Clone()
	clone.Amount.SetInt64(7)
	clone.Status = StatusDisputed
	if original.Amount.Int64() != 42 {
		t.Fatalf("clone shares amount with original")
	}
	if original.Status != StatusShipped {
		t.Fatalf("clone shares status with original")
	}
}

func TestSanitizeDeal(t *testing.T) {
	sanitized, err := SanitizeDeal(&Deal{ID: 1, Asset: NativeAsset()})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Amount == nil || sanitized.Amount.Sign() != 0 {
		t.Fatalf("expected normalised zero amount")
	}

	if _, err := SanitizeDeal(nil); err == nil {
		t.Fatalf("expected error for nil deal")
	}
	if _, err := SanitizeDeal(&Deal{Amount: big.NewInt(-1), Asset: NativeAsset()}); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := SanitizeDeal(&Deal{Asset: AssetRef{Kind: AssetToken}}); err == nil {
		t.Fatalf("expected error for malformed asset")
	}
	if _, err := SanitizeDeal(&Deal{Asset: NativeAsset(), Status: Status(99)}); err == nil {
		t.Fatalf("expected error for invalid status")
	}
}
