package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/token"
)

var vaultAdapterLogger = logger.GetForComponent("vault_adapter")

// VaultAdapter wraps an aggregator-vault style market. The adapter's claim is
// a share count that must be valued through the market's exchange rate at
// read time; it is never assumed 1:1.
//
// Capacity policy for this market type: deposits are capped by the caller's
// currently transferable asset balance, withdrawals by the current redeemable
// value of the adapter's shares.
type VaultAdapter struct {
	addr      token.Address
	asset     *token.Token
	market    market.VaultMarket
	custodian token.Address
	connected bool
}

// NewVaultAdapter binds an adapter to one vault market and one asset. The
// market's underlying asset must match or the adapter refuses to exist.
func NewVaultAdapter(addr token.Address, asset *token.Token, mkt market.VaultMarket) (*VaultAdapter, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: adapter address is empty", ErrInvalidConfig)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: asset ledger is nil", ErrInvalidConfig)
	}
	if mkt == nil {
		return nil, fmt.Errorf("%w: vault market is nil", ErrInvalidConfig)
	}
	if mkt.Asset() != asset.Address() {
		return nil, fmt.Errorf("%w: market asset %s, adapter asset %s",
			ErrAssetMismatch, mkt.Asset(), asset.Address())
	}

	return &VaultAdapter{
		addr:   addr,
		asset:  asset,
		market: mkt,
	}, nil
}

// Address returns the adapter's custody account.
func (a *VaultAdapter) Address() token.Address {
	return a.addr
}

// Asset returns the underlying asset identity.
func (a *VaultAdapter) Asset() token.Address {
	return a.asset.Address()
}

// Connect records the custodian and pre-authorizes the market to pull the
// adapter's asset balance on deposit.
func (a *VaultAdapter) Connect(cfg ConnectConfig) error {
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
	vaultAdapterLogger.Info().
		Str("adapter", string(a.addr)).
		Str("custodian", string(cfg.Custodian)).
		Msg("Vault adapter connected")
	return nil
}

// Disconnect clears the connected state. Without force it refuses while the
// redeemable position is non-zero; with force it always succeeds, stranding
// the shares in the market.
func (a *VaultAdapter) Disconnect(force bool) error {
	if !a.connected {
		return ErrNotConnected
	}
	if !force && a.TotalAssets().IsPositive() {
		return fmt.Errorf("%w: %s still redeemable", ErrHasOutstandingAssets, a.TotalAssets().String())
	}

	if force && a.market.BalanceOf(a.addr).IsPositive() {
		vaultAdapterLogger.Warn().
			Str("adapter", string(a.addr)).
			Str("stranded_shares", a.market.BalanceOf(a.addr).String()).
			Msg("Forced disconnect with outstanding position; shares remain in the market")
	}

	if err := a.asset.Approve(a.addr, a.market.Address(), sdkmath.ZeroInt()); err != nil {
		vaultAdapterLogger.Error().Err(err).Str("adapter", string(a.addr)).Msg("Failed to revoke market authorization")
	}

	a.connected = false
	a.custodian = ""
	return nil
}

// Deposit places amount, already held at the adapter's account, into the
// market for market shares.
func (a *VaultAdapter) Deposit(amount sdkmath.Int) error {
	if !a.connected {
		return ErrNotConnected
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	if _, err := a.market.Deposit(amount, a.addr); err != nil {
		return fmt.Errorf("market deposit failed: %w", err)
	}
	return nil
}

// Withdraw redeems exactly amount from the market, paid straight to the
// custodian. The market burns whatever shares that costs at its current rate.
func (a *VaultAdapter) Withdraw(amount sdkmath.Int) error {
	if !a.connected {
		return ErrNotConnected
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	if a.TotalAssets().LT(amount) {
		return fmt.Errorf("%w: redeemable %s, requested %s",
			ErrInsufficientPosition, a.TotalAssets().String(), amount.String())
	}

	if _, err := a.market.Withdraw(amount, a.custodian, a.addr); err != nil {
		return fmt.Errorf("market withdraw failed: %w", err)
	}
	return nil
}

// TotalAssets values the adapter's share balance through the market's own
// redemption preview.
func (a *VaultAdapter) TotalAssets() sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return a.market.PreviewRedeem(a.market.BalanceOf(a.addr))
}

// MaxDeposit is the caller's currently transferable asset balance.
func (a *VaultAdapter) MaxDeposit(caller token.Address) sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return a.asset.BalanceOf(caller)
}

// MaxWithdraw is the current redeemable value of the adapter's shares.
func (a *VaultAdapter) MaxWithdraw(caller token.Address) sdkmath.Int {
	if !a.connected {
		return sdkmath.ZeroInt()
	}
	return a.TotalAssets()
}
