/*
This file implements the vault core: the pool that accepts one fungible
asset, issues proportional shares against it, and routes the capital into
registered strategy adapters.

The exchange rate for both mint and burn is totalAssets/totalShares, where
totalAssets is the idle custody balance plus the sum of every active
adapter's reported position. Share minting rounds down and share burning
rounds up, both biasing the pool in favor of existing holders.

Concurrency: one RWMutex scoped to the whole pool. Every mutating operation
holds the write lock end to end, so totalAssets always observes a consistent
snapshot across the idle balance and every adapter. Read-only queries take
the read lock and may interleave with each other but never with a mutation.
*/

package pool

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/registry"
	"github.com/stratavault/svm/internal/strategy"
	"github.com/stratavault/svm/internal/token"
)

// Error definitions for pool accounting and authority checks.
var (
	ErrZeroAmount            = errors.New("amount is zero")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity across strategies")
	ErrUnauthorized          = errors.New("caller is not the pool operator")
	ErrAssetMismatch         = errors.New("adapter asset does not match pool asset")
	ErrZeroTotalAssets       = errors.New("total assets is zero with shares outstanding")
	ErrInvalidConfig         = errors.New("pool configuration is invalid")
)

// Config holds the dependencies for constructing a pool.
type Config struct {
	// Asset is the single accepted fungible token. Immutable afterwards.
	Asset *token.Token
	// Custody is the pool's own account holding the idle balance.
	Custody token.Address
	// Operator is the controlling authority allowed to add/remove strategies
	// and trigger rebalancing.
	Operator token.Address
	// ShareSymbol names the pool's share token.
	ShareSymbol string
	// Placement decides where deposits are deployed. Defaults to FirstActive.
	Placement PlacementPolicy
}

// Pool is the vault core. It owns the strategy registry, custodies the idle
// asset balance, and mints/burns shares on deposit/withdraw.
type Pool struct {
	mu        sync.RWMutex
	log       zerolog.Logger
	asset     *token.Token
	custody   token.Address
	operator  token.Address
	shares    *token.Token
	registry  *registry.Registry
	placement PlacementPolicy
}

// New creates a pool with an empty registry and zero shares outstanding.
func New(cfg Config) (*Pool, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("pool configuration validation failed: %w", err)
	}

	placement := cfg.Placement
	if placement == nil {
		placement = FirstActive{}
	}

	p := &Pool{
		log:       logger.GetForComponent("pool_core"),
		asset:     cfg.Asset,
		custody:   cfg.Custody,
		operator:  cfg.Operator,
		shares:    token.New(cfg.Custody+"/shares", cfg.ShareSymbol, cfg.Asset.Decimals()),
		placement: placement,
	}

	reg, err := registry.New(p)
	if err != nil {
		return nil, err
	}
	p.registry = reg

	p.log.Info().
		Str("asset", string(cfg.Asset.Address())).
		Str("custody", string(cfg.Custody)).
		Str("operator", string(cfg.Operator)).
		Str("placement", placement.Name()).
		Msg("Pool created")
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Asset == nil {
		return fmt.Errorf("%w: asset ledger is nil", ErrInvalidConfig)
	}
	if cfg.Custody == "" {
		return fmt.Errorf("%w: custody address is empty", ErrInvalidConfig)
	}
	if cfg.Operator == "" {
		return fmt.Errorf("%w: operator address is empty", ErrInvalidConfig)
	}
	if cfg.ShareSymbol == "" {
		return fmt.Errorf("%w: share symbol is empty", ErrInvalidConfig)
	}
	return nil
}

// Asset returns the identity of the accepted token.
func (p *Pool) Asset() token.Address {
	return p.asset.Address()
}

// Custody returns the pool's custody account.
func (p *Pool) Custody() token.Address {
	return p.custody
}

// Grant implements registry.Authorizer: unlimited asset pre-authorization
// from custody to an adapter.
func (p *Pool) Grant(spender token.Address) error {
	return p.asset.Approve(p.custody, spender, token.MaxUint256)
}

// Revoke implements registry.Authorizer.
func (p *Pool) Revoke(spender token.Address) error {
	return p.asset.Approve(p.custody, spender, sdkmath.ZeroInt())
}

// Deposit pulls amount of asset from the caller, deploys it per the
// placement policy, and mints shares to the receiver. Fails with
// ErrNoActiveStrategy when the policy finds no target: un-deployable
// deposits are rejected rather than left idle, keeping the idle balance
// meaningful only as a withdrawal buffer.
func (p *Pool) Deposit(caller token.Address, amount sdkmath.Int, receiver token.Address) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if caller == "" || receiver == "" {
		return sdkmath.ZeroInt(), errors.Join(token.ErrTransferFailed, token.ErrInvalidAddress)
	}

	totalShares := p.shares.TotalSupply()
	totalAssets := p.totalAssetsLocked()

	var minted sdkmath.Int
	if totalShares.IsZero() {
		minted = amount
	} else {
		if totalAssets.IsZero() {
			// All pool value was stranded behind forced disconnects; the
			// exchange rate is undefined and minting would dilute blindly.
			return sdkmath.ZeroInt(), ErrZeroTotalAssets
		}
		minted = amount.Mul(totalShares).Quo(totalAssets)
	}

	allocs, err := p.placement.Place(p.strategyViews(), amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := p.asset.TransferFrom(p.custody, caller, p.custody, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := p.deploy(allocs); err != nil {
		// deploy already unwound its own movements; return the inbound pull.
		if refundErr := p.asset.Transfer(p.custody, caller, amount); refundErr != nil {
			p.log.Error().Err(refundErr).Msg("Failed to refund caller after deploy failure")
			return sdkmath.ZeroInt(), errors.Join(err, refundErr)
		}
		return sdkmath.ZeroInt(), err
	}

	if err := p.shares.Mint(receiver, minted); err != nil {
		return sdkmath.ZeroInt(), err
	}

	p.log.Info().
		Str("caller", string(caller)).
		Str("receiver", string(receiver)).
		Str("assets", amount.String()).
		Str("shares", minted.String()).
		Msg("Deposit complete")
	return minted, nil
}

// deploy moves allocated amounts from custody into adapters. On any adapter
// failure it compensates every movement made so far and reports the failure.
func (p *Pool) deploy(allocs []Allocation) error {
	done := make([]Allocation, 0, len(allocs))
	for _, alloc := range allocs {
		entry, err := p.registry.Get(alloc.Index)
		if err != nil {
			p.unwindDeploy(done)
			return err
		}
		adapter := entry.Adapter
		if err := p.asset.Transfer(p.custody, adapter.Address(), alloc.Amount); err != nil {
			p.unwindDeploy(done)
			return err
		}
		if err := adapter.Deposit(alloc.Amount); err != nil {
			if backErr := p.asset.Transfer(adapter.Address(), p.custody, alloc.Amount); backErr != nil {
				p.log.Error().Err(backErr).Int("index", alloc.Index).Msg("Failed to recover funds from adapter account")
			}
			p.unwindDeploy(done)
			return err
		}
		done = append(done, alloc)
	}
	return nil
}

// unwindDeploy pulls already-deployed allocations back into custody. Best
// effort: a compensation failure is logged, not masked.
func (p *Pool) unwindDeploy(done []Allocation) {
	for i := len(done) - 1; i >= 0; i-- {
		entry, err := p.registry.Get(done[i].Index)
		if err != nil {
			p.log.Error().Err(err).Int("index", done[i].Index).Msg("Failed to resolve adapter during deploy unwind")
			continue
		}
		if err := entry.Adapter.Withdraw(done[i].Amount); err != nil {
			p.log.Error().Err(err).Int("index", done[i].Index).Msg("Failed to unwind adapter deposit")
		}
	}
}

// Withdraw burns the owner's shares and pays amount of asset to the
// receiver, pulling any custody shortfall from active strategies in index
// order. When the caller is not the owner, the caller's share allowance over
// the owner is spent.
func (p *Pool) Withdraw(caller token.Address, amount sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if caller == "" || receiver == "" || owner == "" {
		return sdkmath.ZeroInt(), errors.Join(token.ErrTransferFailed, token.ErrInvalidAddress)
	}

	totalShares := p.shares.TotalSupply()
	totalAssets := p.totalAssetsLocked()
	if totalShares.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no shares outstanding", ErrInsufficientShares)
	}
	if totalAssets.LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pool holds %s, requested %s",
			ErrInsufficientLiquidity, totalAssets.String(), amount.String())
	}

	// ceil(amount * totalShares / totalAssets), in favor of remaining holders.
	burned := amount.Mul(totalShares).Add(totalAssets).Sub(sdkmath.OneInt()).Quo(totalAssets)

	if p.shares.BalanceOf(owner).LT(burned) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: owner %s holds %s, needs %s",
			ErrInsufficientShares, owner, p.shares.BalanceOf(owner).String(), burned.String())
	}
	if caller != owner {
		if p.shares.Allowance(owner, caller).LT(burned) {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: caller %s allowance %s, needs %s",
				ErrInsufficientShares, caller, p.shares.Allowance(owner, caller).String(), burned.String())
		}
	}

	// Check the whole pull is serviceable before moving anything.
	idle := p.asset.BalanceOf(p.custody)
	if idle.LT(amount) {
		shortfall := amount.Sub(idle)
		available := sdkmath.ZeroInt()
		for _, entry := range p.registry.Entries() {
			if entry.Active {
				available = available.Add(entry.Adapter.MaxWithdraw(p.custody))
			}
		}
		if available.LT(shortfall) {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: idle %s + withdrawable %s < requested %s",
				ErrInsufficientLiquidity, idle.String(), available.String(), amount.String())
		}
		if err := p.pullFromStrategies(shortfall); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	if caller != owner {
		allowed := p.shares.Allowance(owner, caller)
		if !allowed.Equal(token.MaxUint256) {
			if err := p.shares.Approve(owner, caller, allowed.Sub(burned)); err != nil {
				return sdkmath.ZeroInt(), err
			}
		}
	}
	if err := p.shares.Burn(owner, burned); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := p.asset.Transfer(p.custody, receiver, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	p.log.Info().
		Str("caller", string(caller)).
		Str("owner", string(owner)).
		Str("receiver", string(receiver)).
		Str("assets", amount.String()).
		Str("shares", burned.String()).
		Msg("Withdraw complete")
	return burned, nil
}

// pullFromStrategies withdraws shortfall into custody from active entries in
// index order, each contributing up to its own MaxWithdraw. On an adapter
// failure mid-pull, amounts already pulled are re-deposited so the failed
// operation leaves no state change.
func (p *Pool) pullFromStrategies(shortfall sdkmath.Int) error {
	type pulled struct {
		index  int
		amount sdkmath.Int
	}
	var history []pulled

	entries := p.registry.Entries()
	remaining := shortfall
	for i, entry := range entries {
		if remaining.IsZero() {
			break
		}
		if !entry.Active {
			continue
		}
		take := entry.Adapter.MaxWithdraw(p.custody)
		if take.GT(remaining) {
			take = remaining
		}
		if !take.IsPositive() {
			continue
		}
		if err := entry.Adapter.Withdraw(take); err != nil {
			// Compensate in reverse order; external-market errors propagate.
			for j := len(history) - 1; j >= 0; j-- {
				h := history[j]
				adapter := entries[h.index].Adapter
				if tErr := p.asset.Transfer(p.custody, adapter.Address(), h.amount); tErr != nil {
					p.log.Error().Err(tErr).Int("index", h.index).Msg("Failed to return funds during pull compensation")
					continue
				}
				if dErr := adapter.Deposit(h.amount); dErr != nil {
					p.log.Error().Err(dErr).Int("index", h.index).Msg("Failed to re-deposit during pull compensation")
				}
			}
			return err
		}
		history = append(history, pulled{index: i, amount: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return fmt.Errorf("%w: %s uncovered after strategy pull", ErrInsufficientLiquidity, remaining.String())
	}
	return nil
}

// Rebalance moves amount of already-deployed capital from the strategy at
// fromIndex to the one at toIndex. Share accounting is untouched. If the
// target deposit fails, the withdrawn capital is re-deposited into the
// source; only if that compensation also fails do the funds stay parked in
// custody, and the joined error says so.
func (p *Pool) Rebalance(caller token.Address, fromIndex, toIndex int, amount sdkmath.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.operator {
		return ErrUnauthorized
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}

	source, err := p.registry.Get(fromIndex)
	if err != nil {
		return err
	}
	target, err := p.registry.Get(toIndex)
	if err != nil {
		return err
	}
	if !source.Active {
		return fmt.Errorf("%w: source index %d", registry.ErrInactiveStrategy, fromIndex)
	}
	if !target.Active {
		return fmt.Errorf("%w: target index %d", registry.ErrInactiveStrategy, toIndex)
	}

	if err := source.Adapter.Withdraw(amount); err != nil {
		return err
	}
	if err := p.asset.Transfer(p.custody, target.Adapter.Address(), amount); err != nil {
		p.compensateRebalance(source, fromIndex, amount)
		return err
	}
	if err := target.Adapter.Deposit(amount); err != nil {
		if backErr := p.asset.Transfer(target.Adapter.Address(), p.custody, amount); backErr != nil {
			p.log.Error().Err(backErr).Int("index", toIndex).Msg("Failed to recover funds from target adapter account")
			return errors.Join(err, backErr)
		}
		p.compensateRebalance(source, fromIndex, amount)
		return err
	}

	p.log.Info().
		Int("from", fromIndex).
		Int("to", toIndex).
		Str("assets", amount.String()).
		Msg("Rebalance complete")
	return nil
}

// compensateRebalance puts withdrawn capital back into the source strategy.
// A failure here leaves the funds in custody and is logged loudly.
func (p *Pool) compensateRebalance(source registry.Entry, fromIndex int, amount sdkmath.Int) {
	if err := p.asset.Transfer(p.custody, source.Adapter.Address(), amount); err != nil {
		p.log.Error().Err(err).Int("index", fromIndex).Msg("Rebalance compensation transfer failed; funds parked in custody")
		return
	}
	if err := source.Adapter.Deposit(amount); err != nil {
		if backErr := p.asset.Transfer(source.Adapter.Address(), p.custody, amount); backErr != nil {
			p.log.Error().Err(backErr).Int("index", fromIndex).Msg("Failed to recover compensation funds from source adapter")
			return
		}
		p.log.Error().Err(err).Int("index", fromIndex).Msg("Rebalance compensation deposit failed; funds parked in custody")
	}
}

// AddStrategy registers an adapter: operator only, and the adapter's asset
// must match the pool's.
func (p *Pool) AddStrategy(caller token.Address, adapter strategy.Strategy, cfg strategy.ConnectConfig) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.operator {
		return 0, ErrUnauthorized
	}
	if adapter == nil {
		return 0, registry.ErrNilAdapter
	}
	if adapter.Asset() != p.asset.Address() {
		return 0, fmt.Errorf("%w: adapter %s, pool %s", ErrAssetMismatch, adapter.Asset(), p.asset.Address())
	}
	return p.registry.Add(adapter, cfg)
}

// RemoveStrategy deactivates the entry at index. With force set, an adapter
// still holding assets is disconnected anyway and its position is stranded,
// excluded from TotalAssets from then on.
func (p *Pool) RemoveStrategy(caller token.Address, index int, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.operator {
		return ErrUnauthorized
	}
	return p.registry.Deactivate(index, force)
}

// TotalAssets is the idle custody balance plus every active adapter's
// reported position. Inactive adapters are excluded even if they still hold
// stranded assets.
func (p *Pool) TotalAssets() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalAssetsLocked()
}

func (p *Pool) totalAssetsLocked() sdkmath.Int {
	total := p.asset.BalanceOf(p.custody)
	for _, entry := range p.registry.Entries() {
		if entry.Active {
			total = total.Add(entry.Adapter.TotalAssets())
		}
	}
	return total
}

// IdleBalance is the asset amount held directly in custody, not yet deployed.
func (p *Pool) IdleBalance() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.asset.BalanceOf(p.custody)
}

// NumStrategies returns the number of entries ever added.
func (p *Pool) NumStrategies() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry.Count()
}

// Strategies returns a read-only view of the registry in index order.
func (p *Pool) Strategies() []StrategyView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strategyViews()
}

func (p *Pool) strategyViews() []StrategyView {
	entries := p.registry.Entries()
	views := make([]StrategyView, len(entries))
	for i, entry := range entries {
		views[i] = StrategyView{
			Index:       i,
			Active:      entry.Active,
			TotalAssets: entry.Adapter.TotalAssets(),
			MaxDeposit:  entry.Adapter.MaxDeposit(p.custody),
		}
	}
	return views
}

// TotalShares returns the outstanding share supply.
func (p *Pool) TotalShares() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.TotalSupply()
}

// ShareBalanceOf returns the shares held by who.
func (p *Pool) ShareBalanceOf(who token.Address) sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.BalanceOf(who)
}

// ShareAllowance returns spender's share allowance over owner.
func (p *Pool) ShareAllowance(owner, spender token.Address) sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shares.Allowance(owner, spender)
}

// TransferShares moves shares between holders; shares are themselves a
// fungible accounting unit.
func (p *Pool) TransferShares(from, to token.Address, amount sdkmath.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.Transfer(from, to, amount)
}

// ApproveShares sets spender's share allowance over owner.
func (p *Pool) ApproveShares(owner, spender token.Address, amount sdkmath.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.Approve(owner, spender, amount)
}
