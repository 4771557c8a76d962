/*

This file contains the types recording what the pool actually did: one
receipt per operation, used for audit and for the operator dashboard.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationType defines the pool operations that produce receipts.
type OperationType string

const (
	OpDeposit        OperationType = "DEPOSIT"
	OpWithdraw       OperationType = "WITHDRAW"
	OpRebalance      OperationType = "REBALANCE"
	OpAddStrategy    OperationType = "ADD_STRATEGY"
	OpRemoveStrategy OperationType = "REMOVE_STRATEGY"
)

// OperationReceipt records a single pool operation and its outcome.
type OperationReceipt struct {
	ReceiptID    int64         `json:"receipt_id,omitempty"` // Auto-incremented by DB
	OpID         string        `json:"op_id"`                // UUID stamped by the engine
	Type         OperationType `json:"type"`
	Caller       string        `json:"caller,omitempty"`
	Receiver     string        `json:"receiver,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	AmountAssets sdkmath.Int   `json:"amount_assets,omitempty"`
	AmountShares sdkmath.Int   `json:"amount_shares,omitempty"`
	FromIndex    int           `json:"from_index"` // -1 when not applicable
	ToIndex      int           `json:"to_index"`   // -1 when not applicable
	Forced       bool          `json:"forced,omitempty"`
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
