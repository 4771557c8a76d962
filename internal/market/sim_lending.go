package market

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/token"
)

// SimLendingMarket is an in-memory lending market with a single reserve. It
// mints a 1:1 receipt token against supplied liquidity, the way lending pools
// issue interest-bearing receipt tokens. Used by the operator binary and the
// test suite as the reference LendingMarket implementation.
type SimLendingMarket struct {
	addr    token.Address
	asset   *token.Token
	receipt *token.Token
	halted  bool
}

// NewSimLendingMarket creates a lending market for one asset reserve. The
// receipt token ledger is created alongside it.
func NewSimLendingMarket(addr token.Address, asset *token.Token) *SimLendingMarket {
	receipt := token.New(
		token.Address(string(addr)+"/receipt"),
		"r"+asset.Symbol(),
		asset.Decimals(),
	)
	return &SimLendingMarket{
		addr:    addr,
		asset:   asset,
		receipt: receipt,
	}
}

// Address returns the market's custody account.
func (m *SimLendingMarket) Address() token.Address {
	return m.addr
}

// Supply pulls amount from onBehalfOf and mints receipt tokens 1:1.
func (m *SimLendingMarket) Supply(asset token.Address, amount sdkmath.Int, onBehalfOf token.Address, referral uint16) error {
	if m.halted {
		return ErrMarketHalted
	}
	if asset != m.asset.Address() {
		return fmt.Errorf("%w: got %s, reserve is %s", ErrAssetMismatch, asset, m.asset.Address())
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}

	// The supplier pre-authorized this market as a spender.
	if err := m.asset.TransferFrom(m.addr, onBehalfOf, m.addr, amount); err != nil {
		return err
	}
	if err := m.receipt.Mint(onBehalfOf, amount); err != nil {
		return err
	}
	return nil
}

// Withdraw burns receipt tokens held by to and pays out the underlying 1:1.
func (m *SimLendingMarket) Withdraw(asset token.Address, amount sdkmath.Int, to token.Address) (sdkmath.Int, error) {
	if m.halted {
		return sdkmath.ZeroInt(), ErrMarketHalted
	}
	if asset != m.asset.Address() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: got %s, reserve is %s", ErrAssetMismatch, asset, m.asset.Address())
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if m.receipt.BalanceOf(to).LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: receipt balance %s, requested %s",
			ErrInsufficientShares, m.receipt.BalanceOf(to).String(), amount.String())
	}
	if m.asset.BalanceOf(m.addr).LT(amount) {
		return sdkmath.ZeroInt(), ErrInsufficientLiquidity
	}

	if err := m.receipt.Burn(to, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := m.asset.Transfer(m.addr, to, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

// ReserveData resolves the reserve for an asset. Only the configured reserve
// exists.
func (m *SimLendingMarket) ReserveData(asset token.Address) (ReserveData, error) {
	if asset != m.asset.Address() {
		return ReserveData{}, fmt.Errorf("%w: no reserve for %s", ErrAssetMismatch, asset)
	}
	return ReserveData{ReceiptToken: m.receipt}, nil
}

// AccrueYield simulates interest: new underlying is minted into the reserve
// and credited to the supplier's receipt balance, keeping the 1:1 peg.
func (m *SimLendingMarket) AccrueYield(supplier token.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	if err := m.asset.Mint(m.addr, amount); err != nil {
		return err
	}
	return m.receipt.Mint(supplier, amount)
}

// Halt makes every supply/withdraw fail with ErrMarketHalted, simulating an
// unresponsive external market.
func (m *SimLendingMarket) Halt() {
	m.halted = true
}

// Resume clears a halt.
func (m *SimLendingMarket) Resume() {
	m.halted = false
}
