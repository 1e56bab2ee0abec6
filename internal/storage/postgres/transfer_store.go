package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/observability"
	"wallet-tax-engine/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// InsertBulk adds transfers atomically. Already stored transfers are left untouched.
func (s *TransferStore) InsertBulk(ctx context.Context, transfers []*domain.Transfer) (err error) {
	if len(transfers) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "insert_transfers", time.Since(start).Seconds(), err) }()

	for _, t := range transfers {
		if t == nil || t.TxHash == "" || t.WalletAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wallet_transfers (
			wallet_address, chain_id, tx_hash, log_index, token_address, token_symbol,
			decimals, raw_amount, from_address, to_address, block_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (wallet_address, chain_id, tx_hash, log_index, token_address) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, raw := range transfers {
		t := raw.Normalized()
		batch.Queue(query,
			t.WalletAddress,
			t.ChainID,
			strings.ToLower(t.TxHash),
			t.LogIndex,
			t.TokenAddress,
			t.TokenSymbol,
			t.Decimals,
			t.RawAmount,
			t.FromAddress,
			t.ToAddress,
			t.BlockTimestamp.UTC(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert transfers in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByWallet retrieves transfers for a wallet within r, ordered by (timestamp, tx hash, log index).
func (s *TransferStore) GetByWallet(ctx context.Context, wallet, chainID string, r domain.DateRange) (_ []*domain.Transfer, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "get_transfers", time.Since(start).Seconds(), err) }()

	query := `
		SELECT wallet_address, chain_id, tx_hash, log_index, token_address, token_symbol,
			decimals, raw_amount, from_address, to_address, block_timestamp
		FROM wallet_transfers
		WHERE wallet_address = $1 AND chain_id = $2
			AND ($3::timestamptz IS NULL OR block_timestamp >= $3)
			AND ($4::timestamptz IS NULL OR block_timestamp <= $4)
		ORDER BY block_timestamp ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(wallet), chainID, nullableTime(r.Start), nullableTime(r.End))
	if err != nil {
		return nil, fmt.Errorf("get transfers by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// scanTransfers scans multiple rows into a slice of Transfer.
func scanTransfers(rows pgx.Rows) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer

	for rows.Next() {
		var t domain.Transfer

		err := rows.Scan(
			&t.WalletAddress,
			&t.ChainID,
			&t.TxHash,
			&t.LogIndex,
			&t.TokenAddress,
			&t.TokenSymbol,
			&t.Decimals,
			&t.RawAmount,
			&t.FromAddress,
			&t.ToAddress,
			&t.BlockTimestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		t.BlockTimestamp = t.BlockTimestamp.UTC()

		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}

// nullableTime maps a zero bound to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
