package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

func entityTable(entity domain.EntityType) (string, bool) {
	switch entity {
	case domain.EntityClients:
		return "clients", true
	case domain.EntityProducts:
		return "products", true
	case domain.EntityBills:
		return "bills", true
	case domain.EntityDemandBatches:
		return "demand_batches", true
	case domain.EntityLedger:
		return "ledger_entries", true
	}
	return "", false
}

// Dirty listers return rows awaiting upload, tombstones included.

func (s *Store) DirtyClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientCols+` FROM clients WHERE dirty = 1 ORDER BY local_id`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	out := make([]domain.Client, 0, 16)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out = append(out, client)
	}
	return out, wrapDriverErr(rows.Err())
}

func (s *Store) DirtyProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productCols+` FROM products WHERE dirty = 1 ORDER BY local_id`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0, 16)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out = append(out, product)
	}
	return out, wrapDriverErr(rows.Err())
}

func (s *Store) DirtyBills(ctx context.Context) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billCols+` FROM bills WHERE dirty = 1 ORDER BY local_id`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	out := make([]domain.Bill, 0, 16)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out = append(out, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverErr(err)
	}

	for i := range out {
		items, err := loadBillItems(ctx, s.db, out[i].RemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *Store) DirtyBatches(ctx context.Context) ([]domain.DemandBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchCols+` FROM demand_batches WHERE dirty = 1 ORDER BY local_id`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	out := make([]domain.DemandBatch, 0, 16)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out = append(out, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverErr(err)
	}

	for i := range out {
		entries, err := loadDemandEntries(ctx, s.db, out[i].RemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out[i].Entries = entries
	}
	return out, nil
}

func (s *Store) DirtyLedger(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerCols+` FROM ledger_entries WHERE dirty = 1 ORDER BY local_id`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0, 16)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		out = append(out, entry)
	}
	return out, wrapDriverErr(rows.Err())
}

// Reconcile applies a remote row verbatim: the incoming UpdatedAt is
// preserved and dirty is cleared, so a reconciled row does not bounce
// back to the mirror on the next push.

func (s *Store) ReconcileClient(ctx context.Context, client domain.Client) error {
	if client.RemoteID == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (remote_id, name, phone, address, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,0,'active')
		ON CONFLICT (remote_id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = 0,
			state = 'active'
	`, client.RemoteID, client.Name, client.Phone, client.Address, client.CreatedAt, client.UpdatedAt)
	return wrapDriverErr(err)
}

func (s *Store) ReconcileProduct(ctx context.Context, product domain.Product) error {
	if product.RemoteID == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (remote_id, name, unit_grams, price_paise, cost_paise, stock, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?,0,'active')
		ON CONFLICT (remote_id) DO UPDATE SET
			name = excluded.name,
			unit_grams = excluded.unit_grams,
			price_paise = excluded.price_paise,
			cost_paise = excluded.cost_paise,
			stock = excluded.stock,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = 0,
			state = 'active'
	`, product.RemoteID, product.Name, product.UnitGrams, product.PricePaise, product.CostPaise,
		product.Stock, product.CreatedAt, product.UpdatedAt)
	return wrapDriverErr(err)
}

func (s *Store) ReconcileBill(ctx context.Context, bill domain.Bill) error {
	if bill.RemoteID == "" {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (remote_id, client_id, total_paise, paid_paise, bill_date, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,0,'active')
		ON CONFLICT (remote_id) DO UPDATE SET
			client_id = excluded.client_id,
			total_paise = excluded.total_paise,
			paid_paise = excluded.paid_paise,
			bill_date = excluded.bill_date,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = 0,
			state = 'active'
	`, bill.RemoteID, bill.ClientID, bill.TotalPaise, bill.PaidPaise, bill.Date, bill.CreatedAt, bill.UpdatedAt)
	if err != nil {
		return wrapDriverErr(err)
	}

	// Items are replaced wholesale: the document is the unit of sync.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bill_items WHERE bill_id = ?`, bill.RemoteID); err != nil {
		return wrapDriverErr(err)
	}
	for _, item := range bill.Items {
		if item.RemoteID == "" {
			item.RemoteID = domain.NewUUID()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (remote_id, bill_id, product_id, quantity, price_paise)
			VALUES (?,?,?,?,?)
		`, item.RemoteID, bill.RemoteID, item.ProductID, item.Quantity, item.PricePaise)
		if err != nil {
			return wrapDriverErr(err)
		}
	}
	return wrapDriverErr(tx.Commit())
}

func (s *Store) ReconcileBatch(ctx context.Context, batch domain.DemandBatch) error {
	if batch.RemoteID == "" {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO demand_batches (remote_id, batch_date, closed, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,0,'active')
		ON CONFLICT (remote_id) DO UPDATE SET
			batch_date = excluded.batch_date,
			closed = excluded.closed,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = 0,
			state = 'active'
	`, batch.RemoteID, batch.Date, batch.Closed, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return wrapDriverErr(err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM demand_entries WHERE batch_id = ?`, batch.RemoteID); err != nil {
		return wrapDriverErr(err)
	}
	for _, entry := range batch.Entries {
		if entry.RemoteID == "" {
			entry.RemoteID = domain.NewUUID()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO demand_entries (remote_id, batch_id, client_id, product_id, quantity, deleted)
			VALUES (?,?,?,?,?,?)
		`, entry.RemoteID, batch.RemoteID, entry.ClientID, entry.ProductID, entry.Quantity, entry.Deleted)
		if err != nil {
			return wrapDriverErr(err)
		}
	}
	return wrapDriverErr(tx.Commit())
}

func (s *Store) ReconcileLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.RemoteID == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (remote_id, client_id, bill_id, entry_type, amount_paise, entry_date, note, payment_method, reference_number, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,0,'active')
		ON CONFLICT (remote_id) DO UPDATE SET
			client_id = excluded.client_id,
			bill_id = excluded.bill_id,
			entry_type = excluded.entry_type,
			amount_paise = excluded.amount_paise,
			entry_date = excluded.entry_date,
			note = excluded.note,
			payment_method = excluded.payment_method,
			reference_number = excluded.reference_number,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = 0,
			state = 'active'
	`, entry.RemoteID, entry.ClientID, entry.BillID, entry.Type, entry.AmountPaise,
		entry.Date, entry.Note, entry.PaymentMethod, entry.ReferenceNumber,
		entry.CreatedAt, entry.UpdatedAt)
	return wrapDriverErr(err)
}

func (s *Store) MarkSynced(ctx context.Context, entity domain.EntityType, localID int64) error {
	table, ok := entityTable(entity)
	if !ok {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET dirty = 0 WHERE local_id = ?`, localID)
	if err != nil {
		return wrapDriverErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapDriverErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PurgeTombstone(ctx context.Context, entity domain.EntityType, localID int64) error {
	table, ok := entityTable(entity)
	if !ok {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var remoteID string
	err = tx.QueryRowContext(ctx,
		`SELECT remote_id FROM `+table+` WHERE local_id = ? AND state = 'tombstoned'`, localID).Scan(&remoteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return wrapDriverErr(err)
	}

	switch entity {
	case domain.EntityBills:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bill_items WHERE bill_id = ?`, remoteID); err != nil {
			return wrapDriverErr(err)
		}
	case domain.EntityDemandBatches:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM demand_entries WHERE batch_id = ?`, remoteID); err != nil {
			return wrapDriverErr(err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE local_id = ?`, localID); err != nil {
		return wrapDriverErr(err)
	}
	return wrapDriverErr(tx.Commit())
}

// MarkAllDirty queues every row for re-upload without touching
// UpdatedAt, so a force upload never wins conflicts it should lose.
func (s *Store) MarkAllDirty(ctx context.Context, entity domain.EntityType) (int, error) {
	table, ok := entityTable(entity)
	if !ok {
		return 0, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET dirty = 1`)
	if err != nil {
		return 0, wrapDriverErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDriverErr(err)
	}
	return int(affected), nil
}

func (s *Store) SyncCounts(ctx context.Context, entity domain.EntityType) (int, int, error) {
	table, ok := entityTable(entity)
	if !ok {
		return 0, 0, store.ErrInvalidInput
	}
	var total, unsynced int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(dirty), 0) FROM `+table).Scan(&total, &unsynced)
	if err != nil {
		return 0, 0, wrapDriverErr(err)
	}
	return total, unsynced, nil
}

func (s *Store) SyncCursor(ctx context.Context, entity domain.EntityType) (time.Time, error) {
	var cursor time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE entity = ?`, string(entity)).Scan(&cursor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, wrapDriverErr(err)
	}
	return cursor.UTC(), nil
}

func (s *Store) SetSyncCursor(ctx context.Context, entity domain.EntityType, cursor time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (entity, cursor) VALUES (?,?)
		ON CONFLICT (entity) DO UPDATE SET cursor = excluded.cursor
	`, string(entity), cursor.UTC())
	return wrapDriverErr(err)
}
