/*
This file defines the external-market interfaces consumed by the strategy
adapters. Each interface mirrors the wrapped protocol's own call surface; the
adapters translate the pool's generic deposit/withdraw calls into these.
Market errors are propagated verbatim to the pool caller.
*/

package market

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/token"
)

// Error definitions shared by the reference market implementations.
var (
	ErrAssetMismatch         = errors.New("asset does not match market reserve")
	ErrMarketHalted          = errors.New("market is halted")
	ErrInsufficientLiquidity = errors.New("market has insufficient liquidity")
	ErrInsufficientShares    = errors.New("insufficient market shares")
	ErrZeroAmount            = errors.New("amount is zero")
)

// ReserveData describes a lending market's reserve for one asset. The receipt
// token is resolved once, at adapter construction.
type ReserveData struct {
	ReceiptToken *token.Token
}

// LendingMarket is the lending-pool style external market: supplied capital is
// tracked by a receipt token pegged 1:1 to the underlying asset.
type LendingMarket interface {
	// Address is the market's own custody account, and the spender identity
	// that suppliers pre-authorize.
	Address() token.Address

	// Supply pulls amount of asset from onBehalfOf into the market and mints
	// the same amount of receipt tokens to onBehalfOf.
	Supply(asset token.Address, amount sdkmath.Int, onBehalfOf token.Address, referral uint16) error

	// Withdraw burns receipt tokens held by to and returns the withdrawn
	// amount of the underlying asset to that account.
	Withdraw(asset token.Address, amount sdkmath.Int, to token.Address) (sdkmath.Int, error)

	// ReserveData resolves the reserve bookkeeping for an asset.
	ReserveData(asset token.Address) (ReserveData, error)
}

// VaultMarket is the aggregator-vault style external market: deposited capital
// is tracked by market shares that convert through an exchange rate which
// moves as the market accrues yield.
type VaultMarket interface {
	// Address is the market's custody account and approval target.
	Address() token.Address

	// Asset returns the identity of the vault's underlying asset.
	Asset() token.Address

	// Deposit pulls assets from receiver and mints shares to receiver,
	// returning the shares minted.
	Deposit(assets sdkmath.Int, receiver token.Address) (sdkmath.Int, error)

	// Withdraw redeems exactly assets to receiver, burning the owner's shares.
	// Returns the shares burned.
	Withdraw(assets sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error)

	// Redeem burns exactly shares from owner and sends the proceeds to
	// receiver. Returns the assets paid out.
	Redeem(shares sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error)

	// PreviewRedeem values shares at the current exchange rate.
	PreviewRedeem(shares sdkmath.Int) sdkmath.Int

	// PreviewWithdraw computes the shares needed to withdraw assets.
	PreviewWithdraw(assets sdkmath.Int) sdkmath.Int

	// BalanceOf returns the market shares held by who.
	BalanceOf(who token.Address) sdkmath.Int
}
