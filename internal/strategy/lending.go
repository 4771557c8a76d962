package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/token"
)

var lendingLogger = logger.GetForComponent("lending_adapter")

// LendingAdapter wraps a lending-pool style market. The market issues a
// receipt token pegged 1:1 to the underlying asset, so the adapter's claim is
// simply its receipt-token balance; no rate conversion happens at read time.
//
// Capacity policy for this market type: deposits are unlimited, withdrawals
// are capped by the current receipt balance.
type LendingAdapter struct {
	addr      token.Address
	asset     *token.Token
	market    market.LendingMarket
	receipt   *token.Token
	custodian token.Address
	connected bool
}

// NewLendingAdapter binds an adapter to one lending market and one asset. The
// receipt-token identity is resolved from the market's reserve data once,
// here, and never again.
func NewLendingAdapter(addr token.Address, asset *token.Token, mkt market.LendingMarket) (*LendingAdapter, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: adapter address is empty", ErrInvalidConfig)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: asset ledger is nil", ErrInvalidConfig)
	}
	if mkt == nil {
		return nil, fmt.Errorf("%w: lending market is nil", ErrInvalidConfig)
	}

	reserve, err := mkt.ReserveData(asset.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reserve data: %w", err)
	}
	if reserve.ReceiptToken == nil {
		return nil, fmt.Errorf("%w: reserve has no receipt token", ErrInvalidConfig)
	}

	return &LendingAdapter{
		addr:    addr,
		asset:   asset,
		market:  mkt,
		receipt: reserve.ReceiptToken,
	}, nil
}

// Address returns the adapter's custody account.
func (a *LendingAdapter) Address() token.Address {
	return a.addr
}

// Asset returns the underlying asset identity.
func (a *LendingAdapter) Asset() token.Address {
	return a.asset.Address()
}

// Connect records the custodian and pre-authorizes the market to pull the
// adapter's asset balance on supply.
func (a *LendingAdapter) Connect(cfg ConnectConfig) error {
	if a.connected {
		return ErrAlreadyConnected
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := a.asset.Approve(a.addr, a.market.Address(), token.MaxUint256); err != nil {
		return fmt.Errorf("failed to authorize market: %w", err)
	}

	a.custodian = cfg.Custodian
	a.connected = true
	lendingLogger.Info().
		Str("adapter", string(a.addr)).
		Str("custodian", string(cfg.Custodian)).
		Msg("Lending adapter connected")
	return nil
}

// Disconnect clears the connected state. Without force it refuses while the
// receipt balance is non-zero; with force it always succeeds, stranding any
// remaining position in the market.
func (a *LendingAdapter) Disconnect(force bool) error {
	if !a.connected {
		return ErrNotConnected
	}
	if !force && a.TotalAssets().IsPositive() {
		return fmt.Errorf("%w: %s still supplied", ErrHasOutstandingAssets, a.TotalAssets().String())
	}

	if force && a.TotalAssets().IsPositive() {
		lendingLogger.Warn().
			Str("adapter", string(a.addr)).
			Str("stranded", a.receipt.BalanceOf(a.addr).String()).
			Msg("Forced disconnect with outstanding position; assets remain in the market")
	}

	// Best effort: the market may be the reason we are force-disconnecting.
	if err := a.asset.Approve(a.addr, a.market.Address(), sdkmath.ZeroInt()); err != nil {
		lendingLogger.Error().Err(err).Str("adapter", string(a.addr)).Msg("Failed to revoke market authorization")
	}

	a.connected = false
	a.custodian = ""
	return nil
}

// Deposit supplies amount, already held at the adapter's account, into the
// market on the adapter's behalf.
func (a *LendingAdapter) Deposit(amount sdkmath.Int) error {
	if !a.connected {
		return ErrNotConnected
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	if err := a.market.Supply(a.asset.Address(), amount, a.addr, 0); err != nil {
		return fmt.Errorf("market supply failed: %w", err)
	}
	return nil
}

// Withdraw redeems amount from the market and forwards it to the custodian.
func (a *LendingAdapter) Withdraw(amount sdkmath.Int) error {
	if !a.connected {
		return ErrNotConnected
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	if a.receipt.BalanceOf(a.addr).LT(amount) {
		return fmt.Errorf("%w: receipt balance %s, requested %s",
			ErrInsufficientPosition, a.receipt.BalanceOf(a.addr).String(), amount.String())
	}

	withdrawn, err := a.market.Withdraw(a.asset.Address(), amount, a.addr)
	if err != nil {
		return fmt.Errorf("market withdraw failed: %w", err)
	}
	if err := a.asset.Transfer(a.addr, a.custodian, withdrawn); err != nil {
		// Funds landed on the adapter account but could not be forwarded.
		// Undo the redemption so the operation has no effect.
		if supplyErr := a.market.Supply(a.asset.Address(), withdrawn, a.addr, 0); supplyErr != nil {
			lendingLogger.Error().Err(supplyErr).
				Str("adapter", string(a.addr)).
				Msg("Failed to re-supply after forwarding failure; funds parked on adapter account")
			return errors.Join(err, supplyErr)
		}
		return err
	}
	return nil
}

// TotalAssets is the receipt balance: the receipt token is asset-denominated
// 1:1, so no conversion is needed.
func (a *LendingAdapter) TotalAssets() sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return a.receipt.BalanceOf(a.addr)
}

// MaxDeposit reports unlimited capacity; lending reserves accept arbitrary
// supply.
func (a *LendingAdapter) MaxDeposit(caller token.Address) sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return token.MaxUint256
}

// MaxWithdraw is the current receipt balance.
func (a *LendingAdapter) MaxWithdraw(caller token.Address) sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return a.receipt.BalanceOf(a.addr)
}
