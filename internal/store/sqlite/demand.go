package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

const batchCols = "local_id, remote_id, batch_date, closed, created_at, updated_at, dirty, state"

func scanBatch(row rowScanner) (domain.DemandBatch, error) {
	var b domain.DemandBatch
	err := row.Scan(&b.LocalID, &b.RemoteID, &b.Date, &b.Closed,
		&b.CreatedAt, &b.UpdatedAt, &b.Dirty, &b.State)
	if err != nil {
		return domain.DemandBatch{}, err
	}
	b.Date = b.Date.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func loadDemandEntries(ctx context.Context, q querier, batchRemoteID string) ([]domain.DemandEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT remote_id, batch_id, client_id, product_id, quantity, deleted
		FROM demand_entries
		WHERE batch_id = ?
		ORDER BY id
	`, batchRemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	entries := make([]domain.DemandEntry, 0, 16)
	for rows.Next() {
		var entry domain.DemandEntry
		if err := rows.Scan(&entry.RemoteID, &entry.BatchID, &entry.ClientID,
			&entry.ProductID, &entry.Quantity, &entry.Deleted); err != nil {
			return nil, wrapDriverErr(err)
		}
		entries = append(entries, entry)
	}
	return entries, wrapDriverErr(rows.Err())
}

func (s *Store) GetOrCreateBatchForDate(ctx context.Context, date time.Time) (*domain.DemandBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	batch, err := getOrCreateBatchTx(ctx, tx, date)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	return batch, nil
}

func getOrCreateBatchTx(ctx context.Context, tx *sql.Tx, date time.Time) (*domain.DemandBatch, error) {
	day := domain.DateOnly(date)

	row := tx.QueryRowContext(ctx, `
		SELECT `+batchCols+` FROM demand_batches
		WHERE batch_date = ? AND state = 'active'
	`, day)
	batch, err := scanBatch(row)
	if err == nil {
		batch.Entries, err = loadDemandEntries(ctx, tx, batch.RemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		return &batch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapDriverErr(err)
	}

	now := time.Now().UTC()
	batch = domain.DemandBatch{Date: day}
	batch.RemoteID = domain.NewUUID()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	batch.Dirty = true
	batch.State = domain.RowActive
	err = tx.QueryRowContext(ctx, `
		INSERT INTO demand_batches (remote_id, batch_date, closed, created_at, updated_at, dirty, state)
		VALUES (?,?,0,?,?,1,'active')
		RETURNING local_id
	`, batch.RemoteID, batch.Date, batch.CreatedAt, batch.UpdatedAt).Scan(&batch.LocalID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	return &batch, nil
}

func (s *Store) GetBatchByRemoteID(ctx context.Context, remoteID string) (*domain.DemandBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+batchCols+` FROM demand_batches WHERE remote_id = ?`, remoteID)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	batch.Entries, err = loadDemandEntries(ctx, s.db, batch.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	return &batch, nil
}

func (s *Store) ListBatches(ctx context.Context, limit int) ([]domain.DemandBatch, error) {
	if limit < 1 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+batchCols+`
		FROM demand_batches
		WHERE state = 'active'
		ORDER BY batch_date DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	batches := make([]domain.DemandBatch, 0, limit)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverErr(err)
	}

	for i := range batches {
		batches[i].Entries, err = loadDemandEntries(ctx, s.db, batches[i].RemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
	}
	return batches, nil
}

func (s *Store) AddDemandEntry(ctx context.Context, entry domain.DemandEntry, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	if entry.Quantity < 1 || entry.BatchID == "" || entry.ClientID == "" || entry.ProductID == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+batchCols+` FROM demand_batches WHERE remote_id = ? AND state = 'active'`, entry.BatchID)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	if batch.Closed && !allowClosed {
		return nil, store.ErrBatchClosed
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM products WHERE remote_id = ?`, entry.ProductID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}

	if entry.RemoteID == "" {
		entry.RemoteID = domain.NewUUID()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO demand_entries (remote_id, batch_id, client_id, product_id, quantity, deleted)
		VALUES (?,?,?,?,?,0)
	`, entry.RemoteID, entry.BatchID, entry.ClientID, entry.ProductID, entry.Quantity); err != nil {
		return nil, wrapDriverErr(err)
	}
	if adjustStock {
		if _, err := adjustStockTx(ctx, tx, entry.ProductID, entry.Quantity, time.Now().UTC()); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	return finishBatchMutation(ctx, tx, &batch)
}

func (s *Store) UpdateDemandEntry(ctx context.Context, entryRemoteID string, quantity int, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	batch, productID, oldQty, err := batchForEntryTx(ctx, tx, entryRemoteID, allowClosed)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE demand_entries SET quantity = ? WHERE remote_id = ?`, quantity, entryRemoteID); err != nil {
		return nil, wrapDriverErr(err)
	}
	if adjustStock {
		if delta := quantity - oldQty; delta != 0 {
			// Same transaction as the entry edit: a failed compensation
			// rolls back the quantity change too.
			if _, err := adjustStockTx(ctx, tx, productID, delta, time.Now().UTC()); err != nil {
				return nil, wrapDriverErr(err)
			}
		}
	}

	return finishBatchMutation(ctx, tx, batch)
}

func (s *Store) RemoveDemandEntry(ctx context.Context, entryRemoteID string, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	batch, productID, oldQty, err := batchForEntryTx(ctx, tx, entryRemoteID, allowClosed)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE demand_entries SET deleted = 1 WHERE remote_id = ?`, entryRemoteID); err != nil {
		return nil, wrapDriverErr(err)
	}
	if adjustStock {
		if _, err := adjustStockTx(ctx, tx, productID, -oldQty, time.Now().UTC()); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	return finishBatchMutation(ctx, tx, batch)
}

// batchForEntryTx resolves a live entry to its active batch and applies
// the closed-batch guard. The entry's product and quantity come back
// alongside so callers can compensate stock in the same transaction.
func batchForEntryTx(ctx context.Context, tx *sql.Tx, entryRemoteID string, allowClosed bool) (*domain.DemandBatch, string, int, error) {
	var (
		batchID   string
		productID string
		oldQty    int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT batch_id, product_id, quantity FROM demand_entries WHERE remote_id = ? AND deleted = 0`,
		entryRemoteID).Scan(&batchID, &productID, &oldQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", 0, store.ErrNotFound
		}
		return nil, "", 0, wrapDriverErr(err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+batchCols+` FROM demand_batches WHERE remote_id = ? AND state = 'active'`, batchID)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", 0, store.ErrNotFound
		}
		return nil, "", 0, wrapDriverErr(err)
	}
	if batch.Closed && !allowClosed {
		return nil, "", 0, store.ErrBatchClosed
	}
	return &batch, productID, oldQty, nil
}

// finishBatchMutation stamps the parent batch dirty, reloads its
// entries and commits.
func finishBatchMutation(ctx context.Context, tx *sql.Tx, batch *domain.DemandBatch) (*domain.DemandBatch, error) {
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE demand_batches SET dirty = 1, updated_at = ? WHERE local_id = ?
	`, now, batch.LocalID); err != nil {
		return nil, wrapDriverErr(err)
	}
	batch.UpdatedAt = now
	batch.Dirty = true

	entries, err := loadDemandEntries(ctx, tx, batch.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	batch.Entries = entries

	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	return batch, nil
}

func (s *Store) CloseBatch(ctx context.Context, batchRemoteID string, opts domain.CloseBatchOptions) (*domain.DemandBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+batchCols+` FROM demand_batches WHERE remote_id = ?`, batchRemoteID)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	batch.Entries, err = loadDemandEntries(ctx, tx, batch.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if batch.Closed {
		// Idempotent: closing twice never double-applies stock.
		closed := batch
		return &closed, nil
	}

	now := time.Now().UTC()
	if opts.DeductStock {
		perProduct := make(map[string]int)
		for _, entry := range batch.Entries {
			if entry.Deleted {
				continue
			}
			perProduct[entry.ProductID] += entry.Quantity
		}
		for productID, qty := range perProduct {
			// Closing the day's purchase order replenishes stock.
			if _, err := adjustStockTx(ctx, tx, productID, qty, now); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, wrapDriverErr(err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE demand_batches SET closed = 1, dirty = 1, updated_at = ? WHERE local_id = ?
	`, now, batch.LocalID); err != nil {
		return nil, wrapDriverErr(err)
	}
	batch.Closed = true
	batch.UpdatedAt = now
	batch.Dirty = true

	if opts.CreateNextDay {
		if _, err := getOrCreateBatchTx(ctx, tx, batch.Date.Add(24*time.Hour)); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	closed := batch
	return &closed, nil
}
