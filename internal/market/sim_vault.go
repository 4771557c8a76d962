package market

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/token"
)

// SimVaultMarket is an in-memory aggregator vault with a real exchange rate.
// Deposited capital is tracked by market shares valued at
// totalAssets/totalShares; AccrueYield moves the rate away from 1:1 so that
// the share-conversion paths in callers are exercised with realistic rates.
// Share minting rounds down and withdrawal share burning rounds up, both in
// favor of the market's remaining holders.
type SimVaultMarket struct {
	addr   token.Address
	asset  *token.Token
	shares *token.Token
	halted bool
}

// NewSimVaultMarket creates an empty vault market over one asset.
func NewSimVaultMarket(addr token.Address, asset *token.Token) *SimVaultMarket {
	shares := token.New(
		token.Address(string(addr)+"/shares"),
		"v"+asset.Symbol(),
		asset.Decimals(),
	)
	return &SimVaultMarket{
		addr:   addr,
		asset:  asset,
		shares: shares,
	}
}

// Address returns the market's custody account.
func (m *SimVaultMarket) Address() token.Address {
	return m.addr
}

// Asset returns the underlying asset identity.
func (m *SimVaultMarket) Asset() token.Address {
	return m.asset.Address()
}

// BalanceOf returns the market shares held by who.
func (m *SimVaultMarket) BalanceOf(who token.Address) sdkmath.Int {
	return m.shares.BalanceOf(who)
}

// TotalAssets is the vault's managed capital, including accrued yield.
func (m *SimVaultMarket) TotalAssets() sdkmath.Int {
	return m.asset.BalanceOf(m.addr)
}

// Deposit pulls assets from receiver and mints shares at the current rate.
func (m *SimVaultMarket) Deposit(assets sdkmath.Int, receiver token.Address) (sdkmath.Int, error) {
	if m.halted {
		return sdkmath.ZeroInt(), ErrMarketHalted
	}
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	// Rate is fixed before the inbound transfer changes totalAssets.
	minted := m.convertToShares(assets)
	if err := m.asset.TransferFrom(m.addr, receiver, m.addr, assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := m.shares.Mint(receiver, minted); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return minted, nil
}

// Withdraw redeems exactly assets to receiver, burning owner's shares rounded
// up at the current rate.
func (m *SimVaultMarket) Withdraw(assets sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error) {
	if m.halted {
		return sdkmath.ZeroInt(), ErrMarketHalted
	}
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	burned := m.PreviewWithdraw(assets)
	if m.shares.BalanceOf(owner).LT(burned) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: owner %s holds %s shares, needs %s",
			ErrInsufficientShares, owner, m.shares.BalanceOf(owner).String(), burned.String())
	}
	if m.asset.BalanceOf(m.addr).LT(assets) {
		return sdkmath.ZeroInt(), ErrInsufficientLiquidity
	}

	if err := m.shares.Burn(owner, burned); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := m.asset.Transfer(m.addr, receiver, assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return burned, nil
}

// Redeem burns exactly shares from owner and pays out their current value.
func (m *SimVaultMarket) Redeem(shares sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error) {
	if m.halted {
		return sdkmath.ZeroInt(), ErrMarketHalted
	}
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if m.shares.BalanceOf(owner).LT(shares) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: owner %s holds %s shares, redeeming %s",
			ErrInsufficientShares, owner, m.shares.BalanceOf(owner).String(), shares.String())
	}

	assets := m.PreviewRedeem(shares)
	if err := m.shares.Burn(owner, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if assets.IsPositive() {
		if err := m.asset.Transfer(m.addr, receiver, assets); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return assets, nil
}

// PreviewRedeem values shares at the current rate, rounding down.
func (m *SimVaultMarket) PreviewRedeem(shares sdkmath.Int) sdkmath.Int {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt()
	}
	supply := m.shares.TotalSupply()
	if supply.IsZero() {
		return sdkmath.ZeroInt()
	}
	return shares.Mul(m.TotalAssets()).Quo(supply)
}

// PreviewWithdraw computes the shares needed to withdraw assets, rounding up.
func (m *SimVaultMarket) PreviewWithdraw(assets sdkmath.Int) sdkmath.Int {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt()
	}
	supply := m.shares.TotalSupply()
	total := m.TotalAssets()
	if supply.IsZero() || total.IsZero() {
		return assets
	}
	return assets.Mul(supply).Add(total).Sub(sdkmath.OneInt()).Quo(total)
}

// convertToShares prices a deposit at the current rate, rounding down. An
// empty vault mints 1:1.
func (m *SimVaultMarket) convertToShares(assets sdkmath.Int) sdkmath.Int {
	supply := m.shares.TotalSupply()
	total := m.TotalAssets()
	if supply.IsZero() || total.IsZero() {
		return assets
	}
	return assets.Mul(supply).Quo(total)
}

// AccrueYield simulates earned yield: new underlying is minted into the
// vault's custody, raising the exchange rate for all share holders.
func (m *SimVaultMarket) AccrueYield(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	return m.asset.Mint(m.addr, amount)
}

// Halt makes every deposit/withdraw/redeem fail with ErrMarketHalted.
func (m *SimVaultMarket) Halt() {
	m.halted = true
}

// Resume clears a halt.
func (m *SimVaultMarket) Resume() {
	m.halted = false
}
