package state

import (
	"math/big"
	"testing"

	"dealvault/native/deal"
	"dealvault/native/token"
	"dealvault/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestDealRoundTrip(t *testing.T) {
	manager := newTestManager()
	original := &deal.Deal{
		ID:                    4,
		Buyer:                 testAddr(0x01),
		Seller:                testAddr(0x02),
		Arbiter:               testAddr(0x03),
		Asset:                 deal.TokenAsset(testAddr(0x77)),
		Amount:                big.NewInt(12345),
		Status:                deal.StatusDisputed,
		DisputeReason:         "seller unresponsive",
		DisputedBy:            testAddr(0x01),
		CancellationRequested: true,
		CreatedAt:             1_700_000_123,
	}
	if err := manager.DealPut(original); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok := manager.DealGet(4)
	if !ok {
		t.Fatalf("deal not found after put")
	}
	if loaded.ID != original.ID || loaded.Buyer != original.Buyer || loaded.Seller != original.Seller {
		t.Fatalf("parties not preserved")
	}
	if loaded.Asset != original.Asset {
		t.Fatalf("asset not preserved: %+v", loaded.Asset)
	}
	if loaded.Amount.Cmp(original.Amount) != 0 {
		t.Fatalf("amount not preserved: %s", loaded.Amount)
	}
	if loaded.Status != deal.StatusDisputed {
		t.Fatalf("status not preserved: %s", loaded.Status)
	}
	if loaded.DisputeReason != original.DisputeReason || loaded.DisputedBy != original.DisputedBy {
		t.Fatalf("dispute metadata not preserved")
	}
	if !loaded.CancellationRequested {
		t.Fatalf("cancellation flag not preserved")
	}
	if loaded.CreatedAt != original.CreatedAt {
		t.Fatalf("timestamp not preserved: %d", loaded.CreatedAt)
	}
}

func TestDealGetMissing(t *testing.T) {
	manager := newTestManager()
	if _, ok := manager.DealGet(9); ok {
		t.Fatalf("expected miss for unknown deal")
	}
}

func TestDealIDAllocation(t *testing.T) {
	manager := newTestManager()
	next, err := manager.DealNextID()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != 0 {
		t.Fatalf("expected fresh counter at 0, got %d", next)
	}
	for want := uint64(0); want < 3; want++ {
		id, err := manager.DealAllocateID()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	next, err = manager.DealNextID()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != 3 {
		t.Fatalf("counter not advanced, got %d", next)
	}
}

func TestAccountDefaultsEmpty(t *testing.T) {
	manager := newTestManager()
	addr := testAddr(0x05)
	acc, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Balance == nil || acc.Balance.Sign() != 0 {
		t.Fatalf("expected zero balance for fresh account")
	}
	acc.Balance = big.NewInt(777)
	acc.Nonce = 2
	if err := manager.PutAccount(addr[:], acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if loaded.Balance.Cmp(big.NewInt(777)) != 0 || loaded.Nonce != 2 {
		t.Fatalf("account not preserved: %+v", loaded)
	}
}

func TestArbiterApprovalHistory(t *testing.T) {
	manager := newTestManager()
	addr := testAddr(0x06)

	approved, err := manager.ArbiterIsApproved(addr)
	if err != nil {
		t.Fatalf("isApproved: %v", err)
	}
	if approved {
		t.Fatalf("fresh address should not be approved")
	}
	if err := manager.ArbiterApprove(addr); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved, _ = manager.ArbiterIsApproved(addr); !approved {
		t.Fatalf("approval not recorded")
	}
	if err := manager.ArbiterRemove(addr); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if approved, _ = manager.ArbiterIsApproved(addr); approved {
		t.Fatalf("removal not recorded")
	}
	ever, err := manager.ArbiterEverApproved(addr)
	if err != nil {
		t.Fatalf("everApproved: %v", err)
	}
	if !ever {
		t.Fatalf("historical approval lost on removal")
	}
}

func TestTokenMetadataRoundTrip(t *testing.T) {
	manager := newTestManager()
	addr := testAddr(0x10)
	meta := &token.Metadata{Symbol: "DVT", Name: "DealVault Token", Decimals: 6, MintAuthority: testAddr(0x01)}
	if err := manager.TokenPutMetadata(addr, meta); err != nil {
		t.Fatalf("put metadata: %v", err)
	}
	loaded, ok, err := manager.TokenGetMetadata(addr)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if !ok {
		t.Fatalf("metadata not found")
	}
	if loaded.Symbol != meta.Symbol || loaded.Name != meta.Name || loaded.Decimals != meta.Decimals {
		t.Fatalf("metadata not preserved: %+v", loaded)
	}
	if loaded.MintAuthority != meta.MintAuthority {
		t.Fatalf("mint authority not preserved")
	}
	if _, ok, _ := manager.TokenGetMetadata(testAddr(0x11)); ok {
		t.Fatalf("expected miss for unregistered token")
	}
}

func TestTokenBalancesAndAllowances(t *testing.T) {
	manager := newTestManager()
	tokenAddr := testAddr(0x10)
	owner := testAddr(0x02)
	spender := testAddr(0x03)

	bal, err := manager.TokenGetBalance(tokenAddr, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero default balance")
	}
	if err := manager.TokenSetBalance(tokenAddr, owner, big.NewInt(900)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if bal, _ = manager.TokenGetBalance(tokenAddr, owner); bal.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("balance not preserved: %s", bal)
	}
	if err := manager.TokenSetAllowance(tokenAddr, owner, spender, big.NewInt(50)); err != nil {
		t.Fatalf("set allowance: %v", err)
	}
	allowance, err := manager.TokenGetAllowance(tokenAddr, owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("allowance not preserved: %s", allowance)
	}
}

func TestTokenFacadeTransfers(t *testing.T) {
	manager := newTestManager()
	tokenAddr := testAddr(0x10)
	owner := testAddr(0x02)
	recipient := testAddr(0x04)
	authority := testAddr(0x01)
	meta := &token.Metadata{Symbol: "DVT", Name: "DealVault Token", Decimals: 18, MintAuthority: authority}
	if err := manager.TokenPutMetadata(tokenAddr, meta); err != nil {
		t.Fatalf("put metadata: %v", err)
	}
	if err := manager.TokenSetBalance(tokenAddr, owner, big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if err := manager.TokenTransfer(tokenAddr, owner, recipient, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	bal, err := manager.TokenBalanceOf(tokenAddr, recipient)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if bal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("transfer not applied: %s", bal)
	}

	spender := testAddr(0x03)
	if err := manager.TokenSetAllowance(tokenAddr, owner, spender, big.NewInt(30)); err != nil {
		t.Fatalf("seed allowance: %v", err)
	}
	if err := manager.TokenTransferFrom(tokenAddr, spender, owner, recipient, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	remaining, err := manager.TokenAllowance(tokenAddr, owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("allowance not consumed: %s", remaining)
	}
}

func TestVaultAddressStable(t *testing.T) {
	first := newTestManager()
	second := newTestManager()
	a, err := first.VaultAddress()
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	b, err := second.VaultAddress()
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if a != b {
		t.Fatalf("vault address must be deterministic")
	}
	if a == ([20]byte{}) {
		t.Fatalf("vault address must be non-zero")
	}
}
