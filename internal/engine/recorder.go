package engine

import (
	"github.com/stratavault/svm/internal/state"
	"github.com/stratavault/svm/internal/types"
)

// PostgresRecorder persists receipts and snapshots through the state package.
type PostgresRecorder struct{}

// SaveOperationReceipt implements Recorder.
func (PostgresRecorder) SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	return state.SaveOperationReceipt(receipt)
}

// SavePoolSnapshot implements Recorder.
func (PostgresRecorder) SavePoolSnapshot(snapshot types.PoolSnapshot) (int64, error) {
	return state.SavePoolSnapshot(snapshot)
}
