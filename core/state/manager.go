package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"dealvault/core/types"
	"dealvault/native/deal"
	"dealvault/native/token"
	"dealvault/storage"
)

var (
	dealPrefix           = []byte("deal/")
	dealNextIDKey        = ethcrypto.Keccak256([]byte("deal/next-id"))
	accountPrefix        = []byte("account/")
	arbiterApprovedPref  = []byte("arbiter/approved/")
	arbiterEverPref      = []byte("arbiter/ever/")
	tokenMetaPrefix      = []byte("token/meta/")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
)

// vaultAddress is the module account that custodies escrowed funds. It is
// derived from a fixed label so no key material exists for it; only ledger
// transitions can move its balances.
var vaultAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("dealvault/custody-vault"))[:20])
	return addr
}()

// Manager reads and writes ledger state records on top of a generic key-value
// database. Records are RLP-encoded under keccak-hashed prefixed keys.
type Manager struct {
	db     storage.Database
	tokens *token.Ledger
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	m := &Manager{db: db}
	ledger := token.NewLedger()
	ledger.SetState(m)
	m.tokens = ledger
	return m
}

func compositeKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte(nil), prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// --- Deals ---

// dealRecord is the RLP wire form of a deal. RLP has no signed integers, so
// the creation timestamp is stored as uint64.
type dealRecord struct {
	ID                    uint64
	Buyer                 [20]byte
	Seller                [20]byte
	Arbiter               [20]byte
	AssetKind             uint8
	AssetToken            [20]byte
	Amount                *big.Int
	Status                uint8
	DisputeReason         string
	DisputedBy            [20]byte
	CancellationRequested bool
	CreatedAt             uint64
}

func dealKey(id uint64) []byte {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	return compositeKey(dealPrefix, idBytes[:])
}

// DealPut validates and persists a deal record.
func (m *Manager) DealPut(d *deal.Deal) error {
	sanitized, err := deal.SanitizeDeal(d)
	if err != nil {
		return err
	}
	record := dealRecord{
		ID:                    sanitized.ID,
		Buyer:                 sanitized.Buyer,
		Seller:                sanitized.Seller,
		Arbiter:               sanitized.Arbiter,
		AssetKind:             uint8(sanitized.Asset.Kind),
		AssetToken:            sanitized.Asset.Token,
		Amount:                sanitized.Amount,
		Status:                uint8(sanitized.Status),
		DisputeReason:         sanitized.DisputeReason,
		DisputedBy:            sanitized.DisputedBy,
		CancellationRequested: sanitized.CancellationRequested,
		CreatedAt:             uint64(sanitized.CreatedAt),
	}
	data, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.db.Put(dealKey(sanitized.ID), data)
}

// DealGet loads a deal record by identifier.
func (m *Manager) DealGet(id uint64) (*deal.Deal, bool) {
	data, ok, err := m.get(dealKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var record dealRecord
	if err := rlp.DecodeBytes(data, &record); err != nil {
		return nil, false
	}
	d := &deal.Deal{
		ID:      record.ID,
		Buyer:   record.Buyer,
		Seller:  record.Seller,
		Arbiter: record.Arbiter,
		Asset: deal.AssetRef{
			Kind:  deal.AssetKind(record.AssetKind),
			Token: record.AssetToken,
		},
		Amount:                record.Amount,
		Status:                deal.Status(record.Status),
		DisputeReason:         record.DisputeReason,
		DisputedBy:            record.DisputedBy,
		CancellationRequested: record.CancellationRequested,
		CreatedAt:             int64(record.CreatedAt),
	}
	return d, true
}

// DealNextID returns the identifier the next created deal will receive.
func (m *Manager) DealNextID() (uint64, error) {
	data, ok, err := m.get(dealNextIDKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var next uint64
	if err := rlp.DecodeBytes(data, &next); err != nil {
		return 0, err
	}
	return next, nil
}

// DealAllocateID reserves and returns the next sequential deal identifier.
// Identifiers start at zero and are never reused.
func (m *Manager) DealAllocateID() (uint64, error) {
	next, err := m.DealNextID()
	if err != nil {
		return 0, err
	}
	data, err := rlp.EncodeToBytes(next + 1)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(dealNextIDKey, data); err != nil {
		return 0, err
	}
	return next, nil
}

// VaultAddress returns the module account that custodies escrowed funds.
func (m *Manager) VaultAddress() ([20]byte, error) {
	return vaultAddress, nil
}

// --- Accounts ---

func accountKey(addr []byte) []byte {
	return compositeKey(accountPrefix, addr)
}

// GetAccount loads the account at the given address, returning a fresh empty
// account when none is stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, ok, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, err
	}
	return account.Normalize(), nil
}

// PutAccount persists the account at the given address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	data, err := rlp.EncodeToBytes(account.Normalize())
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), data)
}

// --- Arbiter registry ---

// ArbiterApprove adds the address to the approved set and to the permanent
// ever-approved record.
func (m *Manager) ArbiterApprove(addr [20]byte) error {
	if err := m.db.Put(compositeKey(arbiterApprovedPref, addr[:]), []byte{1}); err != nil {
		return err
	}
	return m.db.Put(compositeKey(arbiterEverPref, addr[:]), []byte{1})
}

// ArbiterRemove drops the address from the approved set. The ever-approved
// record is left intact so in-flight deals stay resolvable.
func (m *Manager) ArbiterRemove(addr [20]byte) error {
	return m.db.Delete(compositeKey(arbiterApprovedPref, addr[:]))
}

// ArbiterIsApproved reports current membership in the approved set.
func (m *Manager) ArbiterIsApproved(addr [20]byte) (bool, error) {
	return m.db.Has(compositeKey(arbiterApprovedPref, addr[:]))
}

// ArbiterEverApproved reports whether the address was ever approved.
func (m *Manager) ArbiterEverApproved(addr [20]byte) (bool, error) {
	return m.db.Has(compositeKey(arbiterEverPref, addr[:]))
}

// --- Token contracts ---

type tokenMetaRecord struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority [20]byte
}

// TokenPutMetadata persists the metadata of a registered token contract.
func (m *Manager) TokenPutMetadata(addr [20]byte, meta *token.Metadata) error {
	if meta == nil {
		return fmt.Errorf("nil token metadata")
	}
	record := tokenMetaRecord{
		Symbol:        meta.Symbol,
		Name:          meta.Name,
		Decimals:      meta.Decimals,
		MintAuthority: meta.MintAuthority,
	}
	data, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.db.Put(compositeKey(tokenMetaPrefix, addr[:]), data)
}

// TokenGetMetadata loads the metadata of a registered token contract.
func (m *Manager) TokenGetMetadata(addr [20]byte) (*token.Metadata, bool, error) {
	data, ok, err := m.get(compositeKey(tokenMetaPrefix, addr[:]))
	if err != nil || !ok {
		return nil, false, err
	}
	var record tokenMetaRecord
	if err := rlp.DecodeBytes(data, &record); err != nil {
		return nil, false, err
	}
	return &token.Metadata{
		Symbol:        record.Symbol,
		Name:          record.Name,
		Decimals:      record.Decimals,
		MintAuthority: record.MintAuthority,
	}, true, nil
}

// TokenGetBalance returns the owner's balance for the token, zero when unset.
func (m *Manager) TokenGetBalance(tokenAddr, owner [20]byte) (*big.Int, error) {
	data, ok, err := m.get(compositeKey(tokenBalancePrefix, tokenAddr[:], owner[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// TokenSetBalance persists the owner's balance for the token.
func (m *Manager) TokenSetBalance(tokenAddr, owner [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid token balance")
	}
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(compositeKey(tokenBalancePrefix, tokenAddr[:], owner[:]), data)
}

// TokenGetAllowance returns what the spender may pull from the owner.
func (m *Manager) TokenGetAllowance(tokenAddr, owner, spender [20]byte) (*big.Int, error) {
	data, ok, err := m.get(compositeKey(tokenAllowancePrefix, tokenAddr[:], owner[:], spender[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	allowance := new(big.Int)
	if err := rlp.DecodeBytes(data, allowance); err != nil {
		return nil, err
	}
	return allowance, nil
}

// TokenSetAllowance persists the spender's allowance from the owner.
func (m *Manager) TokenSetAllowance(tokenAddr, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid token allowance")
	}
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(compositeKey(tokenAllowancePrefix, tokenAddr[:], owner[:], spender[:]), data)
}

// --- Asset resource facade consumed by the deal engine ---

// TokenTransfer moves token balance between two accounts.
func (m *Manager) TokenTransfer(tokenAddr, from, to [20]byte, amount *big.Int) error {
	return m.tokens.Transfer(tokenAddr, from, to, amount)
}

// TokenTransferFrom pulls token balance from the owner on the strength of an
// allowance granted to the spender.
func (m *Manager) TokenTransferFrom(tokenAddr, spender, owner, to [20]byte, amount *big.Int) error {
	return m.tokens.TransferFrom(tokenAddr, spender, owner, to, amount)
}

// TokenBalanceOf returns the owner's balance for the token.
func (m *Manager) TokenBalanceOf(tokenAddr, owner [20]byte) (*big.Int, error) {
	return m.tokens.BalanceOf(tokenAddr, owner)
}

// TokenAllowance returns what the spender may still pull from the owner.
func (m *Manager) TokenAllowance(tokenAddr, owner, spender [20]byte) (*big.Int, error) {
	return m.tokens.Allowance(tokenAddr, owner, spender)
}
