package strategy

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/token"
)

const (
	lendingAdapterAddr = token.Address("strategies/lending-test")
	custodyAddr        = token.Address("pool/custody")
)

func newLendingAdapterFixture(t *testing.T) (*token.Token, *market.SimLendingMarket, *LendingAdapter) {
	t.Helper()
	asset := token.New("asset/usdc", "USDC", 6)
	mkt := market.NewSimLendingMarket("markets/lending", asset)
	adapter, err := NewLendingAdapter(lendingAdapterAddr, asset, mkt)
	require.NoError(t, err)
	return asset, mkt, adapter
}

func TestNewLendingAdapterValidation(t *testing.T) {
	asset := token.New("asset/usdc", "USDC", 6)
	mkt := market.NewSimLendingMarket("markets/lending", asset)

	_, err := NewLendingAdapter("", asset, mkt)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLendingAdapter("strategies/x", nil, mkt)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLendingAdapter("strategies/x", asset, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// The market has no reserve for a different asset.
	other := token.New("asset/dai", "DAI", 18)
	_, err = NewLendingAdapter("strategies/x", other, mkt)
	assert.Error(t, err)
}

func TestLendingAdapterConnectLifecycle(t *testing.T) {
	asset, _, adapter := newLendingAdapterFixture(t)

	t.Run("calls before connect are refused", func(t *testing.T) {
		assert.ErrorIs(t, adapter.Deposit(sdkmath.NewInt(1)), ErrNotConnected)
		assert.ErrorIs(t, adapter.Withdraw(sdkmath.NewInt(1)), ErrNotConnected)
		assert.ErrorIs(t, adapter.Disconnect(false), ErrNotConnected)
		assert.True(t, adapter.TotalAssets().IsZero())
		assert.True(t, adapter.MaxDeposit(custodyAddr).IsZero())
		assert.True(t, adapter.MaxWithdraw(custodyAddr).IsZero())
	})

	t.Run("connect requires a custodian", func(t *testing.T) {
		err := adapter.Connect(ConnectConfig{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("connect authorizes the market over the adapter account", func(t *testing.T) {
		require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
		assert.Equal(t, token.MaxUint256, asset.Allowance(adapter.Address(), "markets/lending"))
	})

	t.Run("second connect is refused", func(t *testing.T) {
		assert.ErrorIs(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}), ErrAlreadyConnected)
	})

	t.Run("clean disconnect with no position", func(t *testing.T) {
		require.NoError(t, adapter.Disconnect(false))
		assert.True(t, asset.Allowance(adapter.Address(), "markets/lending").IsZero())
	})
}

func TestLendingAdapterDepositWithdraw(t *testing.T) {
	asset, _, adapter := newLendingAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))

	// The pool transfers funds to the adapter account before calling Deposit.
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(1000)))

	t.Run("deposit supplies the market", func(t *testing.T) {
		require.NoError(t, adapter.Deposit(sdkmath.NewInt(1000)))
		assert.True(t, asset.BalanceOf(adapter.Address()).IsZero())
		assert.Equal(t, sdkmath.NewInt(1000), adapter.TotalAssets())
		assert.Equal(t, sdkmath.NewInt(1000), adapter.MaxWithdraw(custodyAddr))
	})

	t.Run("deposit capacity is unlimited", func(t *testing.T) {
		assert.Equal(t, token.MaxUint256, adapter.MaxDeposit(custodyAddr))
	})

	t.Run("withdraw forwards to the custodian", func(t *testing.T) {
		require.NoError(t, adapter.Withdraw(sdkmath.NewInt(400)))
		assert.Equal(t, sdkmath.NewInt(400), asset.BalanceOf(custodyAddr))
		assert.Equal(t, sdkmath.NewInt(600), adapter.TotalAssets())
		assert.True(t, asset.BalanceOf(adapter.Address()).IsZero())
	})

	t.Run("withdraw beyond the position is refused", func(t *testing.T) {
		assert.ErrorIs(t, adapter.Withdraw(sdkmath.NewInt(601)), ErrInsufficientPosition)
	})

	t.Run("zero amounts are refused", func(t *testing.T) {
		assert.ErrorIs(t, adapter.Deposit(sdkmath.ZeroInt()), ErrZeroAmount)
		assert.ErrorIs(t, adapter.Withdraw(sdkmath.ZeroInt()), ErrZeroAmount)
	})
}

func TestLendingAdapterForcedDisconnectStrandsPosition(t *testing.T) {
	asset, mkt, adapter := newLendingAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(500)))
	require.NoError(t, adapter.Deposit(sdkmath.NewInt(500)))

	t.Run("plain disconnect refuses while assets are outstanding", func(t *testing.T) {
		err := adapter.Disconnect(false)
		assert.ErrorIs(t, err, ErrHasOutstandingAssets)
		assert.Equal(t, sdkmath.NewInt(500), adapter.TotalAssets())
	})

	t.Run("forced disconnect succeeds and strands the position", func(t *testing.T) {
		require.NoError(t, adapter.Disconnect(true))
		assert.True(t, adapter.TotalAssets().IsZero())
		assert.True(t, adapter.MaxWithdraw(custodyAddr).IsZero())

		// The receipt balance still exists in the market, just unreachable
		// through the adapter.
		reserve, err := mkt.ReserveData(asset.Address())
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(500), reserve.ReceiptToken.BalanceOf(adapter.Address()))
	})
}

func TestLendingAdapterYieldGrowsPosition(t *testing.T) {
	asset, mkt, adapter := newLendingAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(1000)))
	require.NoError(t, adapter.Deposit(sdkmath.NewInt(1000)))

	require.NoError(t, mkt.AccrueYield(adapter.Address(), sdkmath.NewInt(75)))
	assert.Equal(t, sdkmath.NewInt(1075), adapter.TotalAssets())

	require.NoError(t, adapter.Withdraw(sdkmath.NewInt(1075)))
	assert.Equal(t, sdkmath.NewInt(1075), asset.BalanceOf(custodyAddr))
}
