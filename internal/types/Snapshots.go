/*

This file contains the types for pool snapshots: the accounting state of the
pool and every registered strategy at one instant.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// StrategyPosition is one registry entry's state inside a snapshot.
type StrategyPosition struct {
	Index       int         `json:"index"`
	Active      bool        `json:"active"`
	TotalAssets sdkmath.Int `json:"total_assets"`
}

// PoolSnapshot captures the pool's accounting state at one instant. The
// invariant TotalAssets == IdleBalance + sum of active positions holds for
// every snapshot taken under the pool lock.
type PoolSnapshot struct {
	SnapshotID  int64              `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	Timestamp   time.Time          `json:"timestamp"`
	TotalAssets sdkmath.Int        `json:"total_assets"`
	TotalShares sdkmath.Int        `json:"total_shares"`
	IdleBalance sdkmath.Int        `json:"idle_balance"`
	Positions   []StrategyPosition `json:"positions"`
	OpIDs       []string           `json:"op_ids,omitempty"` // Operations since the previous snapshot
}
