package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
)

func TestMemoryHoldFunds(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()
	w.Credit("buyer", 1000)

	txID, err := w.HoldFunds(ctx, "buyer", 600, "key-1")
	require.NoError(t, err)
	require.NotEmpty(t, txID)

	available, held := w.Balance("buyer")
	assert.Equal(t, int64(400), available)
	assert.Equal(t, int64(600), held)

	t.Run("replay returns the original hold", func(t *testing.T) {
		again, err := w.HoldFunds(ctx, "buyer", 600, "key-1")
		require.NoError(t, err)
		assert.Equal(t, txID, again)

		available, held := w.Balance("buyer")
		assert.Equal(t, int64(400), available)
		assert.Equal(t, int64(600), held)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := w.HoldFunds(ctx, "buyer", 500, "key-2")
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := w.HoldFunds(ctx, "nobody", 100, "key-3")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestMemoryReleaseHeldFunds(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()
	w.Credit("buyer", 1_000_000)

	txID, err := w.HoldFunds(ctx, "buyer", 1_000_000, "key-1")
	require.NoError(t, err)

	release, err := w.ReleaseHeldFunds(ctx, txID, "seller", 0.03)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), release.Fee)
	assert.Equal(t, int64(970_000), release.Net)
	require.NotEmpty(t, release.TxID)

	sellerAvailable, _ := w.Balance("seller")
	assert.Equal(t, int64(970_000), sellerAvailable)
	platformAvailable, _ := w.Balance(w.PlatformAccount)
	assert.Equal(t, int64(30_000), platformAvailable)
	buyerAvailable, buyerHeld := w.Balance("buyer")
	assert.Zero(t, buyerAvailable)
	assert.Zero(t, buyerHeld)

	t.Run("replay returns the original split", func(t *testing.T) {
		again, err := w.ReleaseHeldFunds(ctx, txID, "seller", 0.03)
		require.NoError(t, err)
		assert.Equal(t, release, again)

		sellerAvailable, _ := w.Balance("seller")
		assert.Equal(t, int64(970_000), sellerAvailable)
	})

	t.Run("refund after release is rejected", func(t *testing.T) {
		_, err := w.RefundHeldFunds(ctx, txID)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("unknown hold", func(t *testing.T) {
		_, err := w.ReleaseHeldFunds(ctx, "hold-999", "seller", 0.03)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryReleaseFeeRounding(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		amount  int64
		feeRate float64
		fee     int64
	}{
		{1_000_000, 0.03, 30_000},
		{50, 0.03, 2},  // 1.5 rounds half away from zero
		{49, 0.03, 1},  // 1.47 rounds down
		{100, 0.025, 3}, // 2.5 rounds half away from zero
		{100, 0, 0},
	}

	for _, tc := range cases {
		w := NewMemory()
		w.Credit("buyer", tc.amount)
		txID, err := w.HoldFunds(ctx, "buyer", tc.amount, "key")
		require.NoError(t, err)

		release, err := w.ReleaseHeldFunds(ctx, txID, "seller", tc.feeRate)
		require.NoError(t, err)
		assert.Equal(t, tc.fee, release.Fee, "amount=%d rate=%g", tc.amount, tc.feeRate)
		assert.Equal(t, tc.amount-tc.fee, release.Net)
	}
}

func TestMemoryRefundHeldFunds(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()
	w.Credit("buyer", 500)

	txID, err := w.HoldFunds(ctx, "buyer", 500, "key-1")
	require.NoError(t, err)

	refundTx, err := w.RefundHeldFunds(ctx, txID)
	require.NoError(t, err)
	require.NotEmpty(t, refundTx)

	available, held := w.Balance("buyer")
	assert.Equal(t, int64(500), available)
	assert.Zero(t, held)

	t.Run("replay returns the original refund", func(t *testing.T) {
		again, err := w.RefundHeldFunds(ctx, txID)
		require.NoError(t, err)
		assert.Equal(t, refundTx, again)

		available, _ := w.Balance("buyer")
		assert.Equal(t, int64(500), available)
	})

	t.Run("release after refund is rejected", func(t *testing.T) {
		_, err := w.ReleaseHeldFunds(ctx, txID, "seller", 0.03)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

// Money is conserved end to end: everything the buyers put in comes out
// as seller net, platform fee, or buyer refund.
func TestMemoryConservation(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()

	const perBuyer = int64(125_000)
	buyers := []string{"b1", "b2", "b3", "b4"}
	for _, b := range buyers {
		w.Credit(b, perBuyer)
	}

	var holds []string
	for _, b := range buyers {
		txID, err := w.HoldFunds(ctx, b, perBuyer, "join-"+b)
		require.NoError(t, err)
		holds = append(holds, txID)
	}

	// Release two to the seller, refund the other two.
	for _, txID := range holds[:2] {
		_, err := w.ReleaseHeldFunds(ctx, txID, "seller", 0.03)
		require.NoError(t, err)
	}
	for _, txID := range holds[2:] {
		_, err := w.RefundHeldFunds(ctx, txID)
		require.NoError(t, err)
	}

	var total int64
	for _, account := range append(buyers, "seller", w.PlatformAccount) {
		available, held := w.Balance(account)
		assert.Zero(t, held, "no funds remain held for %s", account)
		total += available
	}
	assert.Equal(t, perBuyer*int64(len(buyers)), total)
}
