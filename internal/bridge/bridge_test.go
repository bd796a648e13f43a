package bridge

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockMintTxProducesWellFormedHash(t *testing.T) {
	m := NewMock()
	hash, err := m.MintTx(context.Background(), "order-1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, len(hash) > 10)
	assert.Equal(t, "0x", hash[:2])
}

func TestMockMintTxHashesAreUnique(t *testing.T) {
	m := NewMock()
	h1, err := m.MintTx(context.Background(), "order-1", decimal.NewFromInt(10))
	require.NoError(t, err)
	h2, err := m.MintTx(context.Background(), "order-1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestMockVerifyIncomingTxAcceptsWellFormedHash(t *testing.T) {
	m := NewMock()
	err := m.VerifyIncomingTx(context.Background(), "0xabcdef0123456789", "0xdest", decimal.NewFromInt(5))
	assert.NoError(t, err)
}

func TestMockVerifyIncomingTxRejectsMalformedHash(t *testing.T) {
	m := NewMock()
	err := m.VerifyIncomingTx(context.Background(), "not-a-hash", "0xdest", decimal.NewFromInt(5))
	assert.Error(t, err)
}

func TestEVMMintTxIsUnsupported(t *testing.T) {
	e := NewEVM("https://rpc.example", "0xtoken", 18)
	_, err := e.MintTx(context.Background(), "order-1", decimal.NewFromInt(1))
	assert.Error(t, err, "a real-chain bridge cannot mint a platform-initiated transfer without a signer")
}

func TestToChainUnitsScalesByDecimals(t *testing.T) {
	got := toChainUnits(decimal.NewFromFloat(1.5), 18)
	assert.Equal(t, "1500000000000000000", got.String())
}

func TestToChainUnitsZeroDecimals(t *testing.T) {
	got := toChainUnits(decimal.NewFromInt(42), 0)
	assert.Equal(t, "42", got.String())
}
