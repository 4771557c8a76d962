/*
This file defines the capability set every strategy adapter must implement.
An adapter wraps exactly one external yield-bearing market and one asset,
translating the pool's generic deposit/withdraw calls into that market's own
call surface. The pool transfers the asset to the adapter's account
immediately before calling Deposit, so adapters never pull funds themselves.

Every failing adapter call is atomic: no partial state mutation. Adapters do
not retry; retry policy belongs to whatever orchestrates the pool.
*/

package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/stratavault/svm/internal/token"
)

// Error definitions for the adapter state machine.
var (
	ErrAlreadyConnected     = errors.New("adapter is already connected")
	ErrNotConnected         = errors.New("adapter is not connected")
	ErrZeroAmount           = errors.New("amount is zero")
	ErrInsufficientPosition = errors.New("adapter position is insufficient")
	ErrHasOutstandingAssets = errors.New("adapter still manages assets")
	ErrInvalidConfig        = errors.New("adapter configuration is invalid")
	ErrAssetMismatch        = errors.New("market asset does not match adapter asset")
)

// ConnectConfig carries the one-time setup for an adapter.
type ConnectConfig struct {
	// Custodian is the pool custody account that withdrawn funds are
	// returned to.
	Custodian token.Address
}

// Validate checks the config before any state transition happens.
func (c ConnectConfig) Validate() error {
	if c.Custodian == "" {
		return fmt.Errorf("%w: custodian address is empty", ErrInvalidConfig)
	}
	return nil
}

// Strategy is the uniform capability set over all adapter variants.
type Strategy interface {
	// Address is the adapter's own custody account; the pool transfers funds
	// here before calling Deposit.
	Address() token.Address

	// Connect performs one-time setup and transitions the adapter into a
	// servable state. Fails with ErrAlreadyConnected on a second call.
	Connect(cfg ConnectConfig) error

	// Disconnect transitions out of the servable state. Unless force is set,
	// it fails with ErrHasOutstandingAssets while the adapter still manages a
	// non-zero position. A forced disconnect never blocks and never attempts
	// fund recovery: assets already placed with the external market remain
	// there, reachable only by re-connecting or out-of-band recovery.
	Disconnect(force bool) error

	// Deposit places amount, already held at the adapter's account, into the
	// external market.
	Deposit(amount sdkmath.Int) error

	// Withdraw redeems amount from the external market and returns it to the
	// custodian configured at Connect.
	Withdraw(amount sdkmath.Int) error

	// TotalAssets reports how many asset units the adapter could return right
	// now. Zero when not connected or holding no position.
	TotalAssets() sdkmath.Int

	// MaxDeposit reports how many asset units the adapter can currently
	// accept on behalf of caller. The policy is market-specific.
	MaxDeposit(caller token.Address) sdkmath.Int

	// MaxWithdraw reports how many asset units the adapter can currently
	// return. The policy is market-specific.
	MaxWithdraw(caller token.Address) sdkmath.Int

	// Asset returns the underlying asset identity as understood by the
	// wrapped market.
	Asset() token.Address
}
