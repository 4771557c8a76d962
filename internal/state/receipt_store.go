// ./internal/state/receipt_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stratavault/svm/internal/types"
)

// SaveOperationReceipt saves one operation receipt to the database.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts (
			op_id, op_timestamp, op_type, caller, receiver, owner_account,
			amount_assets, amount_shares, from_index, to_index, forced, success, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING receipt_id;
	`

	amountAssets := "0"
	if !receipt.AmountAssets.IsNil() {
		amountAssets = receipt.AmountAssets.String()
	}
	amountShares := "0"
	if !receipt.AmountShares.IsNil() {
		amountShares = receipt.AmountShares.String()
	}

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.OpID, receipt.Timestamp, string(receipt.Type),
		receipt.Caller, receipt.Receiver, receipt.Owner,
		amountAssets, amountShares,
		receipt.FromIndex, receipt.ToIndex, receipt.Forced,
		receipt.Success, receipt.Message,
	).Scan(&receiptID)

	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("op_id", receipt.OpID).
		Str("op_type", string(receipt.Type)).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved to database")

	return receiptID, nil
}

// GetRecentReceipts returns the most recent operation receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT receipt_id, op_id, op_timestamp, op_type, caller, receiver, owner_account,
			amount_assets, amount_shares, from_index, to_index, forced, success, message
		FROM operation_receipts
		ORDER BY op_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var (
			r            types.OperationReceipt
			opType       string
			amountAssets string
			amountShares string
		)
		if err := rows.Scan(&r.ReceiptID, &r.OpID, &r.Timestamp, &opType,
			&r.Caller, &r.Receiver, &r.Owner,
			&amountAssets, &amountShares,
			&r.FromIndex, &r.ToIndex, &r.Forced, &r.Success, &r.Message); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt row: %w", err)
		}
		r.Type = types.OperationType(opType)
		if r.AmountAssets, err = parseNumeric(amountAssets); err != nil {
			return nil, err
		}
		if r.AmountShares, err = parseNumeric(amountShares); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation receipt rows: %w", err)
	}

	return receipts, nil
}
