/*
This file implements the in-memory fungible-asset ledger used for both the
pool's underlying asset and the pool's own share token. It mirrors standard
fungible-token semantics: balances, owner->spender allowances, and mint/burn
for the entities that create supply (markets and tests).
*/

package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTransferFailed        = errors.New("transfer failed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAddress        = errors.New("address is invalid")
	ErrInvalidAmount         = errors.New("amount is invalid")
)

// Address identifies an account on the ledger.
type Address string

// MaxUint256 is the sentinel for an unlimited amount. An allowance set to
// MaxUint256 is never decremented on spend.
var MaxUint256 = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

// Token is a thread-safe fungible-token ledger. The ledger itself has an
// Address so that components can compare token identities.
type Token struct {
	mu          sync.RWMutex
	addr        Address
	symbol      string
	decimals    int
	totalSupply sdkmath.Int
	balances    map[Address]sdkmath.Int
	allowances  map[Address]map[Address]sdkmath.Int
}

// New creates an empty ledger for one fungible token.
func New(addr Address, symbol string, decimals int) *Token {
	return &Token{
		addr:        addr,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: sdkmath.ZeroInt(),
		balances:    make(map[Address]sdkmath.Int),
		allowances:  make(map[Address]map[Address]sdkmath.Int),
	}
}

// Address returns the ledger's own identity.
func (t *Token) Address() Address {
	return t.addr
}

// Symbol returns the token symbol.
func (t *Token) Symbol() string {
	return t.symbol
}

// Decimals returns the token precision.
func (t *Token) Decimals() int {
	return t.decimals
}

// TotalSupply returns the total minted supply.
func (t *Token) TotalSupply() sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply
}

// BalanceOf returns the balance held by who. Unknown accounts hold zero.
func (t *Token) BalanceOf(who Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bal, ok := t.balances[who]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Allowance returns the amount spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if byOwner, ok := t.allowances[owner]; ok {
		if allowed, ok := byOwner[spender]; ok {
			return allowed
		}
	}
	return sdkmath.ZeroInt()
}

// Approve sets spender's allowance over owner's balance to exactly amount.
func (t *Token) Approve(owner, spender Address, amount sdkmath.Int) error {
	if err := validateAddress(owner); err != nil {
		return err
	}
	if err := validateAddress(spender); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[Address]sdkmath.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = amount
	return nil
}

// Transfer moves amount from one account to another. Fails with
// ErrTransferFailed when the source balance is insufficient.
func (t *Token) Transfer(from, to Address, amount sdkmath.Int) error {
	if err := validateAddress(from); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	if err := validateAddress(to); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	if err := validateAmount(amount); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from one account to another on behalf of spender,
// consuming spender's allowance over the source account. An unlimited
// allowance (MaxUint256) is not decremented.
func (t *Token) TransferFrom(spender, from, to Address, amount sdkmath.Int) error {
	if err := validateAddress(spender); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	if err := validateAddress(from); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	if err := validateAddress(to); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	if err := validateAmount(amount); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if spender != from {
		allowed := sdkmath.ZeroInt()
		if byOwner, ok := t.allowances[from]; ok {
			if a, ok := byOwner[spender]; ok {
				allowed = a
			}
		}
		if allowed.LT(amount) {
			return errors.Join(ErrTransferFailed, fmt.Errorf("%w: spender %s allowed %s, need %s",
				ErrInsufficientAllowance, spender, allowed.String(), amount.String()))
		}
		if !allowed.Equal(MaxUint256) {
			t.allowances[from][spender] = allowed.Sub(amount)
		}
	}

	if err := t.move(from, to, amount); err != nil {
		// Undo the allowance spend so a failed transfer has no effect.
		if spender != from {
			if allowed, ok := t.allowances[from][spender]; ok && !allowed.Equal(MaxUint256) {
				t.allowances[from][spender] = allowed.Add(amount)
			}
		}
		return err
	}
	return nil
}

// Mint creates amount new units and credits them to the receiver.
func (t *Token) Mint(to Address, amount sdkmath.Int) error {
	if err := validateAddress(to); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.credit(to, amount)
	t.totalSupply = t.totalSupply.Add(amount)
	return nil
}

// Burn destroys amount units held by the source account.
func (t *Token) Burn(from Address, amount sdkmath.Int) error {
	if err := validateAddress(from); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.totalSupply = t.totalSupply.Sub(amount)
	return nil
}

// move transfers balance between accounts. Caller must hold the write lock.
func (t *Token) move(from, to Address, amount sdkmath.Int) error {
	if err := t.debit(from, amount); err != nil {
		return errors.Join(ErrTransferFailed, err)
	}
	t.credit(to, amount)
	return nil
}

// debit removes amount from the account. Caller must hold the write lock.
func (t *Token) debit(from Address, amount sdkmath.Int) error {
	bal, ok := t.balances[from]
	if !ok {
		bal = sdkmath.ZeroInt()
	}
	if bal.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s, need %s",
			ErrInsufficientBalance, from, bal.String(), amount.String())
	}
	t.balances[from] = bal.Sub(amount)
	return nil
}

// credit adds amount to the account. Caller must hold the write lock.
func (t *Token) credit(to Address, amount sdkmath.Int) {
	bal, ok := t.balances[to]
	if !ok {
		bal = sdkmath.ZeroInt()
	}
	t.balances[to] = bal.Add(amount)
}

func validateAddress(addr Address) error {
	if addr == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	return nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return fmt.Errorf("%w: amount is nil", ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount is negative", ErrInvalidAmount)
	}
	return nil
}
