package strategy

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/token"
)

const vaultAdapterAddr = token.Address("strategies/vault-test")

func newVaultAdapterFixture(t *testing.T) (*token.Token, *market.SimVaultMarket, *VaultAdapter) {
	t.Helper()
	asset := token.New("asset/usdc", "USDC", 6)
	mkt := market.NewSimVaultMarket("markets/vault", asset)
	adapter, err := NewVaultAdapter(vaultAdapterAddr, asset, mkt)
	require.NoError(t, err)
	return asset, mkt, adapter
}

func TestNewVaultAdapterValidation(t *testing.T) {
	asset := token.New("asset/usdc", "USDC", 6)
	mkt := market.NewSimVaultMarket("markets/vault", asset)

	_, err := NewVaultAdapter("", asset, mkt)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewVaultAdapter("strategies/x", nil, mkt)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewVaultAdapter("strategies/x", asset, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Run("market over a different asset is refused", func(t *testing.T) {
		other := token.New("asset/dai", "DAI", 18)
		_, err := NewVaultAdapter("strategies/x", other, mkt)
		assert.ErrorIs(t, err, ErrAssetMismatch)
	})
}

func TestVaultAdapterDepositWithdraw(t *testing.T) {
	asset, mkt, adapter := newVaultAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(1000)))

	t.Run("deposit converts the balance into market shares", func(t *testing.T) {
		require.NoError(t, adapter.Deposit(sdkmath.NewInt(1000)))
		assert.True(t, asset.BalanceOf(adapter.Address()).IsZero())
		assert.Equal(t, sdkmath.NewInt(1000), mkt.BalanceOf(adapter.Address()))
		assert.Equal(t, sdkmath.NewInt(1000), adapter.TotalAssets())
	})

	t.Run("position is valued through the exchange rate", func(t *testing.T) {
		require.NoError(t, mkt.AccrueYield(sdkmath.NewInt(200)))
		assert.Equal(t, sdkmath.NewInt(1200), adapter.TotalAssets())
		assert.Equal(t, sdkmath.NewInt(1200), adapter.MaxWithdraw(custodyAddr))
	})

	t.Run("withdraw pays the custodian directly", func(t *testing.T) {
		require.NoError(t, adapter.Withdraw(sdkmath.NewInt(600)))
		assert.Equal(t, sdkmath.NewInt(600), asset.BalanceOf(custodyAddr))
		assert.Equal(t, sdkmath.NewInt(600), adapter.TotalAssets())
	})

	t.Run("withdraw beyond the redeemable value is refused", func(t *testing.T) {
		assert.ErrorIs(t, adapter.Withdraw(sdkmath.NewInt(601)), ErrInsufficientPosition)
	})

	t.Run("deposit capacity tracks the caller's transferable balance", func(t *testing.T) {
		require.NoError(t, asset.Mint(custodyAddr, sdkmath.NewInt(50)))
		assert.Equal(t, asset.BalanceOf(custodyAddr), adapter.MaxDeposit(custodyAddr))
	})
}

func TestVaultAdapterForcedDisconnectStrandsShares(t *testing.T) {
	asset, mkt, adapter := newVaultAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(800)))
	require.NoError(t, adapter.Deposit(sdkmath.NewInt(800)))

	err := adapter.Disconnect(false)
	assert.ErrorIs(t, err, ErrHasOutstandingAssets)

	require.NoError(t, adapter.Disconnect(true))
	assert.True(t, adapter.TotalAssets().IsZero())
	// The market shares survive the disconnect.
	assert.Equal(t, sdkmath.NewInt(800), mkt.BalanceOf(adapter.Address()))

	t.Run("reconnect makes the stranded position reachable again", func(t *testing.T) {
		require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
		assert.Equal(t, sdkmath.NewInt(800), adapter.TotalAssets())
	})
}

func TestVaultAdapterHaltedMarketPropagates(t *testing.T) {
	asset, mkt, adapter := newVaultAdapterFixture(t)
	require.NoError(t, adapter.Connect(ConnectConfig{Custodian: custodyAddr}))
	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(100)))
	require.NoError(t, adapter.Deposit(sdkmath.NewInt(100)))

	mkt.Halt()
	assert.ErrorIs(t, adapter.Withdraw(sdkmath.NewInt(50)), market.ErrMarketHalted)

	require.NoError(t, asset.Mint(adapter.Address(), sdkmath.NewInt(10)))
	assert.ErrorIs(t, adapter.Deposit(sdkmath.NewInt(10)), market.ErrMarketHalted)
}
