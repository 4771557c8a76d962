package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/pool"
	"github.com/stratavault/svm/internal/strategy"
	"github.com/stratavault/svm/internal/token"
	"github.com/stratavault/svm/internal/types"
)

// Recorder persists operation receipts and pool snapshots. The accounting
// core never touches persistence; only the engine records.
type Recorder interface {
	SaveOperationReceipt(receipt types.OperationReceipt) (int64, error)
	SavePoolSnapshot(snapshot types.PoolSnapshot) (int64, error)
}

// AdapterFactory builds a fresh strategy adapter bound to one registered
// external market.
type AdapterFactory func() (strategy.Strategy, error)

// Engine drives the pool on behalf of operators and users: it executes pool
// operations, stamps each with a unique operation id, and records a receipt
// whether the operation succeeded or failed.
type Engine struct {
	logger   zerolog.Logger
	pool     *pool.Pool
	recorder Recorder
	markets  map[string]AdapterFactory

	mu         sync.Mutex
	pendingOps []string
}

// Config holds the configuration for creating a new Engine instance
type Config struct {
	Pool     *pool.Pool
	Recorder Recorder
}

// New creates a new Engine instance with dependency injection
func New(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	e := &Engine{
		logger:   logger.GetForComponent("engine_core"),
		pool:     cfg.Pool,
		recorder: cfg.Recorder,
		markets:  make(map[string]AdapterFactory),
	}

	e.logger.Info().Msg("Engine instance created successfully with dependency injection")
	return e, nil
}

// validateEngineConfig validates the Engine configuration
func validateEngineConfig(cfg Config) error {
	if cfg.Pool == nil {
		return fmt.Errorf("pool cannot be nil")
	}
	if cfg.Recorder == nil {
		return fmt.Errorf("recorder cannot be nil")
	}
	return nil
}

// RegisterMarket makes an external market available for strategy creation
// under a stable name.
func (e *Engine) RegisterMarket(name string, factory AdapterFactory) error {
	if name == "" {
		return fmt.Errorf("market name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("adapter factory cannot be nil")
	}
	if _, exists := e.markets[name]; exists {
		return fmt.Errorf("market %q already registered", name)
	}
	e.markets[name] = factory
	e.logger.Info().Str("market", name).Msg("Market registered")
	return nil
}

// Markets lists the registered market names in stable order.
func (e *Engine) Markets() []string {
	names := make([]string, 0, len(e.markets))
	for name := range e.markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pool exposes the underlying pool for read-only queries.
func (e *Engine) Pool() *pool.Pool {
	return e.pool
}

// Deposit executes a pool deposit and records the outcome.
func (e *Engine) Deposit(caller token.Address, amount sdkmath.Int, receiver token.Address) (sdkmath.Int, error) {
	opID := uuid.New().String()
	minted, err := e.pool.Deposit(caller, amount, receiver)

	e.record(types.OperationReceipt{
		OpID:         opID,
		Type:         types.OpDeposit,
		Caller:       string(caller),
		Receiver:     string(receiver),
		AmountAssets: amount,
		AmountShares: minted,
		FromIndex:    -1,
		ToIndex:      -1,
		Success:      err == nil,
		Message:      errMessage(err),
		Timestamp:    time.Now(),
	})
	return minted, err
}

// Withdraw executes a pool withdrawal and records the outcome.
func (e *Engine) Withdraw(caller token.Address, amount sdkmath.Int, receiver, owner token.Address) (sdkmath.Int, error) {
	opID := uuid.New().String()
	burned, err := e.pool.Withdraw(caller, amount, receiver, owner)

	e.record(types.OperationReceipt{
		OpID:         opID,
		Type:         types.OpWithdraw,
		Caller:       string(caller),
		Receiver:     string(receiver),
		Owner:        string(owner),
		AmountAssets: amount,
		AmountShares: burned,
		FromIndex:    -1,
		ToIndex:      -1,
		Success:      err == nil,
		Message:      errMessage(err),
		Timestamp:    time.Now(),
	})
	return burned, err
}

// Rebalance moves deployed capital between strategies and records the
// outcome.
func (e *Engine) Rebalance(caller token.Address, fromIndex, toIndex int, amount sdkmath.Int) error {
	opID := uuid.New().String()
	err := e.pool.Rebalance(caller, fromIndex, toIndex, amount)

	e.record(types.OperationReceipt{
		OpID:         opID,
		Type:         types.OpRebalance,
		Caller:       string(caller),
		AmountAssets: amount,
		FromIndex:    fromIndex,
		ToIndex:      toIndex,
		Success:      err == nil,
		Message:      errMessage(err),
		Timestamp:    time.Now(),
	})
	return err
}

// AddStrategy builds an adapter for a registered market and registers it with
// the pool.
func (e *Engine) AddStrategy(caller token.Address, marketName string) (int, error) {
	opID := uuid.New().String()

	index := -1
	factory, ok := e.markets[marketName]
	var err error
	if !ok {
		err = fmt.Errorf("unknown market %q", marketName)
	} else {
		var adapter strategy.Strategy
		adapter, err = factory()
		if err == nil {
			index, err = e.pool.AddStrategy(caller, adapter, strategy.ConnectConfig{
				Custodian: e.pool.Custody(),
			})
		}
	}

	e.record(types.OperationReceipt{
		OpID:      opID,
		Type:      types.OpAddStrategy,
		Caller:    string(caller),
		Message:   addStrategyMessage(marketName, err),
		FromIndex: -1,
		ToIndex:   index,
		Success:   err == nil,
		Timestamp: time.Now(),
	})
	return index, err
}

// RemoveStrategy deactivates a strategy and records the outcome.
func (e *Engine) RemoveStrategy(caller token.Address, index int, force bool) error {
	opID := uuid.New().String()
	err := e.pool.RemoveStrategy(caller, index, force)

	e.record(types.OperationReceipt{
		OpID:      opID,
		Type:      types.OpRemoveStrategy,
		Caller:    string(caller),
		FromIndex: index,
		ToIndex:   -1,
		Forced:    force,
		Success:   err == nil,
		Message:   errMessage(err),
		Timestamp: time.Now(),
	})
	return err
}

// Snapshot captures and persists the pool's current accounting state,
// attaching the operation ids recorded since the previous snapshot.
func (e *Engine) Snapshot() (types.PoolSnapshot, error) {
	views := e.pool.Strategies()
	positions := make([]types.StrategyPosition, len(views))
	for i, v := range views {
		positions[i] = types.StrategyPosition{
			Index:       v.Index,
			Active:      v.Active,
			TotalAssets: v.TotalAssets,
		}
	}

	e.mu.Lock()
	opIDs := e.pendingOps
	e.pendingOps = nil
	e.mu.Unlock()

	snapshot := types.PoolSnapshot{
		Timestamp:   time.Now(),
		TotalAssets: e.pool.TotalAssets(),
		TotalShares: e.pool.TotalShares(),
		IdleBalance: e.pool.IdleBalance(),
		Positions:   positions,
		OpIDs:       opIDs,
	}

	if _, err := e.recorder.SavePoolSnapshot(snapshot); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist pool snapshot")
		return snapshot, err
	}
	return snapshot, nil
}

// RunSnapshotLoop periodically persists pool snapshots until the context is
// cancelled.
func (e *Engine) RunSnapshotLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().
		Dur("interval", interval).
		Msg("Starting snapshot loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Take the first snapshot immediately
	if _, err := e.Snapshot(); err != nil {
		e.logger.Error().Err(err).Msg("Initial snapshot failed")
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Snapshot loop stopped due to context cancellation")
			return
		case <-ticker.C:
			if _, err := e.Snapshot(); err != nil {
				e.logger.Error().Err(err).Msg("Snapshot failed")
			}
		}
	}
}

// record persists a receipt. A persistence failure is logged, never allowed
// to fail or roll back the accounting operation it describes.
func (e *Engine) record(receipt types.OperationReceipt) {
	e.mu.Lock()
	e.pendingOps = append(e.pendingOps, receipt.OpID)
	e.mu.Unlock()

	if _, err := e.recorder.SaveOperationReceipt(receipt); err != nil {
		e.logger.Error().Err(err).
			Str("op_id", receipt.OpID).
			Str("op_type", string(receipt.Type)).
			Msg("Failed to persist operation receipt")
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func addStrategyMessage(marketName string, err error) string {
	if err != nil {
		return fmt.Sprintf("market=%s: %s", marketName, err.Error())
	}
	return fmt.Sprintf("market=%s", marketName)
}
