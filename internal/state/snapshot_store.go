// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/stratavault/svm/internal/types"
)

// SavePoolSnapshot saves a pool accounting snapshot to the database.
func SavePoolSnapshot(snapshot types.PoolSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	positionsJSON, err := json.Marshal(snapshot.Positions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal positions: %w", err)
	}

	query := `
		INSERT INTO pool_snapshots (
			snapshot_timestamp, total_assets, total_shares, idle_balance, positions, op_ids
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Timestamp,
		snapshot.TotalAssets.String(),
		snapshot.TotalShares.String(),
		snapshot.IdleBalance.String(),
		positionsJSON,
		pq.Array(snapshot.OpIDs),
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save pool snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("total_assets", snapshot.TotalAssets.String()).
		Str("total_shares", snapshot.TotalShares.String()).
		Msg("Pool snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the most recent pool snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, total_assets, total_shares, idle_balance, positions, op_ids
		FROM pool_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.PoolSnapshot
	for rows.Next() {
		var (
			s             types.PoolSnapshot
			totalAssets   string
			totalShares   string
			idleBalance   string
			positionsJSON []byte
		)
		if err := rows.Scan(&s.SnapshotID, &s.Timestamp, &totalAssets, &totalShares, &idleBalance,
			&positionsJSON, pq.Array(&s.OpIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan pool snapshot row: %w", err)
		}
		if s.TotalAssets, err = parseNumeric(totalAssets); err != nil {
			return nil, err
		}
		if s.TotalShares, err = parseNumeric(totalShares); err != nil {
			return nil, err
		}
		if s.IdleBalance, err = parseNumeric(idleBalance); err != nil {
			return nil, err
		}
		if len(positionsJSON) > 0 {
			if err := json.Unmarshal(positionsJSON, &s.Positions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
			}
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool snapshot rows: %w", err)
	}

	return snapshots, nil
}

// parseNumeric converts a NUMERIC(78, 0) column value into an Int.
func parseNumeric(value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid numeric column value: %q", value)
	}
	return parsed, nil
}
