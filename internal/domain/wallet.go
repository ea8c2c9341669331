package domain

import "context"

// WalletRelease is the result of releasing a hold to the seller.
type WalletRelease struct {
	// Net is the amount credited to the seller in rupiah.
	Net int64
	// Fee is the platform fee withheld in rupiah.
	Fee int64
	// TxID references the wallet transaction that executed the release.
	TxID string
}

// WalletClient is the external wallet collaborator. The engine never
// touches account balances directly; every movement goes through these
// three calls, each idempotent on a stable key so retries are safe.
type WalletClient interface {
	// HoldFunds moves amount from the account's available balance to its
	// held balance, tagged with idempotencyKey. A repeated call with the
	// same key returns the original hold transaction ID without moving
	// funds again. Returns ErrInsufficientFunds when the available
	// balance is short and ErrAccountNotFound for unknown accounts.
	HoldFunds(ctx context.Context, account string, amount int64, idempotencyKey string) (txID string, err error)

	// ReleaseHeldFunds transfers the held amount minus the platform fee
	// to the seller's available balance. feeRate is a fraction (0.03 for
	// 3%); the fee is rounded half away from zero. Idempotent per hold.
	ReleaseHeldFunds(ctx context.Context, txID, sellerAccount string, feeRate float64) (WalletRelease, error)

	// RefundHeldFunds returns the full held amount to the buyer's
	// available balance. Idempotent per hold.
	RefundHeldFunds(ctx context.Context, txID string) (refundTxID string, err error)
}
