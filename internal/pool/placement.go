package pool

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for deposit placement.
var (
	ErrNoActiveStrategy = errors.New("no active strategy to deploy into")
	ErrUnknownPolicy    = errors.New("unknown placement policy")
)

// StrategyView is the read-only slice of registry state a placement policy
// decides over.
type StrategyView struct {
	Index       int
	Active      bool
	TotalAssets sdkmath.Int
	MaxDeposit  sdkmath.Int
}

// Allocation is one placement decision: deposit Amount into the entry at
// Index.
type Allocation struct {
	Index  int
	Amount sdkmath.Int
}

// PlacementPolicy decides where an incoming deposit goes. Policies only
// choose; the accounting core moves the funds, so new policies never touch
// share accounting.
type PlacementPolicy interface {
	Name() string
	Place(views []StrategyView, amount sdkmath.Int) ([]Allocation, error)
}

// NewPlacementPolicy resolves a policy by its configured name.
func NewPlacementPolicy(name string) (PlacementPolicy, error) {
	switch name {
	case "", "first-active":
		return FirstActive{}, nil
	case "proportional":
		return Proportional{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// FirstActive routes the entire deposit into the first active entry found by
// index scan. Deterministic and low-overhead; the default policy.
type FirstActive struct{}

// Name implements PlacementPolicy.
func (FirstActive) Name() string { return "first-active" }

// Place implements PlacementPolicy.
func (FirstActive) Place(views []StrategyView, amount sdkmath.Int) ([]Allocation, error) {
	for _, v := range views {
		if v.Active {
			return []Allocation{{Index: v.Index, Amount: amount}}, nil
		}
	}
	return nil, ErrNoActiveStrategy
}

// Proportional splits the deposit across active entries pro-rata to their
// current managed assets, with the rounding remainder going to the largest
// entry. When every active entry is empty it behaves like FirstActive.
type Proportional struct{}

// Name implements PlacementPolicy.
func (Proportional) Name() string { return "proportional" }

// Place implements PlacementPolicy.
func (Proportional) Place(views []StrategyView, amount sdkmath.Int) ([]Allocation, error) {
	total := sdkmath.ZeroInt()
	largest := -1
	for _, v := range views {
		if !v.Active {
			continue
		}
		total = total.Add(v.TotalAssets)
		if largest < 0 || v.TotalAssets.GT(views[largest].TotalAssets) {
			largest = v.Index
		}
	}
	if largest < 0 {
		return nil, ErrNoActiveStrategy
	}
	if total.IsZero() {
		return FirstActive{}.Place(views, amount)
	}

	allocs := make([]Allocation, 0, len(views))
	assigned := sdkmath.ZeroInt()
	for _, v := range views {
		if !v.Active {
			continue
		}
		part := amount.Mul(v.TotalAssets).Quo(total)
		if v.Index == largest {
			// Placeholder; the remainder is folded in below.
			part = sdkmath.ZeroInt()
		}
		if part.IsPositive() {
			allocs = append(allocs, Allocation{Index: v.Index, Amount: part})
			assigned = assigned.Add(part)
		}
	}
	remainder := amount.Sub(assigned)
	if remainder.IsPositive() {
		allocs = append(allocs, Allocation{Index: largest, Amount: remainder})
	}
	return allocs, nil
}

// ExplicitTarget routes every deposit into one operator-chosen entry, failing
// if that entry is missing or inactive.
type ExplicitTarget struct {
	Index int
}

// Name implements PlacementPolicy.
func (p ExplicitTarget) Name() string { return fmt.Sprintf("explicit-target(%d)", p.Index) }

// Place implements PlacementPolicy.
func (p ExplicitTarget) Place(views []StrategyView, amount sdkmath.Int) ([]Allocation, error) {
	for _, v := range views {
		if v.Index == p.Index {
			if !v.Active {
				return nil, fmt.Errorf("%w: target index %d is inactive", ErrNoActiveStrategy, p.Index)
			}
			return []Allocation{{Index: p.Index, Amount: amount}}, nil
		}
	}
	return nil, fmt.Errorf("%w: target index %d not registered", ErrNoActiveStrategy, p.Index)
}
