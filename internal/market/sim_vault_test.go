package market

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratavault/svm/internal/token"
)

func newVaultFixture(t *testing.T, depositor token.Address, funding int64) (*token.Token, *SimVaultMarket) {
	t.Helper()
	asset := token.New("asset/usdc", "USDC", 6)
	mkt := NewSimVaultMarket("markets/vault", asset)
	require.NoError(t, asset.Mint(depositor, sdkmath.NewInt(funding)))
	require.NoError(t, asset.Approve(depositor, mkt.Address(), token.MaxUint256))
	return asset, mkt
}

func TestSimVaultDepositAtParAndWithYield(t *testing.T) {
	depositor := token.Address("depositor")
	_, mkt := newVaultFixture(t, depositor, 2000)

	t.Run("empty vault mints 1:1", func(t *testing.T) {
		minted, err := mkt.Deposit(sdkmath.NewInt(1000), depositor)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1000), minted)
		assert.Equal(t, sdkmath.NewInt(1000), mkt.BalanceOf(depositor))
		assert.Equal(t, sdkmath.NewInt(1000), mkt.TotalAssets())
	})

	t.Run("yield raises the exchange rate for later deposits", func(t *testing.T) {
		require.NoError(t, mkt.AccrueYield(sdkmath.NewInt(100)))
		assert.Equal(t, sdkmath.NewInt(1100), mkt.TotalAssets())

		// 550 assets at rate 1100/1000 buys 500 shares, rounded down.
		minted, err := mkt.Deposit(sdkmath.NewInt(550), depositor)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(500), minted)
		assert.Equal(t, sdkmath.NewInt(1500), mkt.BalanceOf(depositor))
	})

	t.Run("preview redeem values shares at the current rate", func(t *testing.T) {
		// 1500 shares over 1650 assets: 100 shares are worth 110 assets.
		assert.Equal(t, sdkmath.NewInt(110), mkt.PreviewRedeem(sdkmath.NewInt(100)))
	})

	t.Run("preview withdraw rounds the share cost up", func(t *testing.T) {
		// 100 assets cost ceil(100*1500/1650) = ceil(90.9..) = 91 shares.
		assert.Equal(t, sdkmath.NewInt(91), mkt.PreviewWithdraw(sdkmath.NewInt(100)))
	})
}

func TestSimVaultWithdrawAndRedeem(t *testing.T) {
	depositor := token.Address("depositor")
	asset, mkt := newVaultFixture(t, depositor, 1000)

	_, err := mkt.Deposit(sdkmath.NewInt(1000), depositor)
	require.NoError(t, err)
	require.NoError(t, mkt.AccrueYield(sdkmath.NewInt(500)))

	t.Run("withdraw pays exact assets and burns rounded-up shares", func(t *testing.T) {
		// Rate is 1500/1000; 300 assets cost exactly 200 shares.
		burned, err := mkt.Withdraw(sdkmath.NewInt(300), depositor, depositor)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(200), burned)
		assert.Equal(t, sdkmath.NewInt(300), asset.BalanceOf(depositor))
		assert.Equal(t, sdkmath.NewInt(800), mkt.BalanceOf(depositor))
	})

	t.Run("redeem burns exact shares and pays their value", func(t *testing.T) {
		// Rate still 1200/800 = 1.5.
		paid, err := mkt.Redeem(sdkmath.NewInt(100), depositor, depositor)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(150), paid)
		assert.Equal(t, sdkmath.NewInt(700), mkt.BalanceOf(depositor))
	})

	t.Run("withdraw beyond the owner's shares fails", func(t *testing.T) {
		_, err := mkt.Withdraw(sdkmath.NewInt(2000), depositor, depositor)
		assert.ErrorIs(t, err, ErrInsufficientShares)
	})

	t.Run("redeem beyond the owner's shares fails", func(t *testing.T) {
		_, err := mkt.Redeem(sdkmath.NewInt(701), depositor, depositor)
		assert.ErrorIs(t, err, ErrInsufficientShares)
	})
}

func TestSimVaultHalt(t *testing.T) {
	depositor := token.Address("depositor")
	_, mkt := newVaultFixture(t, depositor, 1000)

	mkt.Halt()
	_, err := mkt.Deposit(sdkmath.NewInt(10), depositor)
	assert.ErrorIs(t, err, ErrMarketHalted)
	_, err = mkt.Withdraw(sdkmath.NewInt(10), depositor, depositor)
	assert.ErrorIs(t, err, ErrMarketHalted)
	_, err = mkt.Redeem(sdkmath.NewInt(10), depositor, depositor)
	assert.ErrorIs(t, err, ErrMarketHalted)

	mkt.Resume()
	_, err = mkt.Deposit(sdkmath.NewInt(10), depositor)
	assert.NoError(t, err)
}
