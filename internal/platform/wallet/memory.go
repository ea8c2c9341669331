package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lokapasar/sambatan/internal/domain"
)

type holdState string

const (
	holdStateHeld     holdState = "held"
	holdStateReleased holdState = "released"
	holdStateRefunded holdState = "refunded"
)

type hold struct {
	txID    string
	account string
	amount  int64
	state   holdState
	// result of the first release/refund, replayed on repeat calls.
	release  domain.WalletRelease
	refundTx string
}

// Memory is an in-process wallet with the same idempotency contract as
// the wallet service. It backs tests and local runs. Available plus
// held per account is conserved by every operation except the fee
// split, which moves the fee to the platform account.
type Memory struct {
	mu        sync.Mutex
	available map[string]int64
	held      map[string]int64
	holds     map[string]*hold
	byIdemKey map[string]string
	nextTx    int64

	// PlatformAccount accumulates fees withheld on release.
	PlatformAccount string
}

// NewMemory creates an empty in-process wallet.
func NewMemory() *Memory {
	return &Memory{
		available:       make(map[string]int64),
		held:            make(map[string]int64),
		holds:           make(map[string]*hold),
		byIdemKey:       make(map[string]string),
		PlatformAccount: "platform",
	}
}

// Credit adds funds to an account's available balance, creating the
// account if needed.
func (m *Memory) Credit(account string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[account] += amount
}

// Balance returns the available and held balances of an account.
func (m *Memory) Balance(account string) (available, held int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[account], m.held[account]
}

// HoldFunds moves amount from available to held. Replaying an
// idempotency key returns the original transaction without moving
// funds.
func (m *Memory) HoldFunds(_ context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if txID, ok := m.byIdemKey[idempotencyKey]; ok {
		return txID, nil
	}
	if _, ok := m.available[account]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account)
	}
	if m.available[account] < amount {
		return "", fmt.Errorf("%w: account %s has %d, needs %d",
			domain.ErrInsufficientFunds, account, m.available[account], amount)
	}

	m.nextTx++
	txID := fmt.Sprintf("hold-%d", m.nextTx)

	m.available[account] -= amount
	m.held[account] += amount
	m.holds[txID] = &hold{txID: txID, account: account, amount: amount, state: holdStateHeld}
	m.byIdemKey[idempotencyKey] = txID
	return txID, nil
}

// ReleaseHeldFunds moves the hold to the seller minus the platform fee,
// rounded half away from zero. A repeat call replays the original
// split.
func (m *Memory) ReleaseHeldFunds(_ context.Context, txID, sellerAccount string, feeRate float64) (domain.WalletRelease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holds[txID]
	if !ok {
		return domain.WalletRelease{}, fmt.Errorf("%w: hold %s", domain.ErrNotFound, txID)
	}
	switch h.state {
	case holdStateReleased:
		return h.release, nil
	case holdStateRefunded:
		return domain.WalletRelease{}, fmt.Errorf("%w: hold %s already refunded", domain.ErrAlreadyExists, txID)
	}

	fee := decimal.NewFromInt(h.amount).
		Mul(decimal.NewFromFloat(feeRate)).
		Round(0).
		IntPart()
	net := h.amount - fee

	m.held[h.account] -= h.amount
	m.available[sellerAccount] += net
	m.available[m.PlatformAccount] += fee

	m.nextTx++
	h.state = holdStateReleased
	h.release = domain.WalletRelease{
		Net:  net,
		Fee:  fee,
		TxID: fmt.Sprintf("release-%d", m.nextTx),
	}
	return h.release, nil
}

// RefundHeldFunds returns the full held amount to the buyer. A repeat
// call replays the original refund transaction.
func (m *Memory) RefundHeldFunds(_ context.Context, txID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holds[txID]
	if !ok {
		return "", fmt.Errorf("%w: hold %s", domain.ErrNotFound, txID)
	}
	switch h.state {
	case holdStateRefunded:
		return h.refundTx, nil
	case holdStateReleased:
		return "", fmt.Errorf("%w: hold %s already released", domain.ErrAlreadyExists, txID)
	}

	m.held[h.account] -= h.amount
	m.available[h.account] += h.amount

	m.nextTx++
	h.state = holdStateRefunded
	h.refundTx = fmt.Sprintf("refund-%d", m.nextTx)
	return h.refundTx, nil
}

// Compile-time interface check.
var _ domain.WalletClient = (*Memory)(nil)
