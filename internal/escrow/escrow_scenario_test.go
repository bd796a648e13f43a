package escrow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxzoid/settlementcore/internal/bridge"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// TestLockThenReleaseSettlesFeeFromPayer drives the happy-buy scenario: a
// 100-unit buy order at merchant A with a 2.5 protocol fee ends with A down
// 102.5 (100 locked + 2.5 fee), U up 100, and the fee visible as its own
// ledger row — never netted out of the recipient's credit.
func TestLockThenReleaseSettlesFeeFromPayer(t *testing.T) {
	db, balances := newFakeDB(t,
		map[string]decimal.Decimal{"user-u": decimal.Zero},
		map[string]decimal.Decimal{"merchant-a": decimal.NewFromInt(10000)},
	)
	e := &Escrow{Bridge: bridge.NewMock(), PlatformWalletAddress: "0xplatform"}

	order := &orderstate.Order{
		ID:                "order-1",
		SellerMerchantID:  "merchant-a",
		UserID:            "user-u",
		Type:              orderstate.TypeBuy,
		CryptoAmount:      decimal.NewFromInt(100),
		ProtocolFeeAmount: decimal.NewFromFloat(2.5),
	}

	lockTx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, e.LockEffects("")(context.Background(), lockTx, order))
	require.NoError(t, lockTx.Commit())

	assert.True(t, balances.merchants["merchant-a"].Equal(decimal.NewFromInt(9900)), "merchant A after lock: %s", balances.merchants["merchant-a"])
	assert.Equal(t, orderstate.PartyMerchant, order.EscrowDebitedEntityType)
	assert.Equal(t, "merchant-a", order.EscrowDebitedEntityID)
	assert.NotEmpty(t, order.EscrowTxHash)

	releaseTx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, e.ReleaseEffects()(context.Background(), releaseTx, order))
	require.NoError(t, releaseTx.Commit())

	assert.True(t, balances.merchants["merchant-a"].Equal(decimal.NewFromFloat(9897.5)), "merchant A after release: %s", balances.merchants["merchant-a"])
	assert.True(t, balances.users["user-u"].Equal(decimal.NewFromInt(100)), "user U after release: %s", balances.users["user-u"])
	assert.NotEmpty(t, order.ReleaseTxHash)

	var releaseEntry, feeEntry *fakeLedgerEntry
	for i := range balances.entries {
		switch balances.entries[i].kind {
		case "ESCROW_RELEASE":
			releaseEntry = &balances.entries[i]
		case "FEE":
			feeEntry = &balances.entries[i]
		}
	}
	require.NotNil(t, releaseEntry, "expected an ESCROW_RELEASE ledger entry")
	assert.True(t, releaseEntry.amount.Equal(decimal.NewFromInt(100)), "release entry should carry the full crypto amount, got %s", releaseEntry.amount)

	require.NotNil(t, feeEntry, "expected a FEE ledger entry")
	assert.Equal(t, "merchant-a", feeEntry.accountID)
	assert.True(t, feeEntry.amount.Equal(decimal.NewFromFloat(-2.5)), "fee entry should be -2.5, got %s", feeEntry.amount)
}
