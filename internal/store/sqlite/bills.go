package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

const billCols = "local_id, remote_id, client_id, total_paise, paid_paise, bill_date, created_at, updated_at, dirty, state"

func scanBill(row rowScanner) (domain.Bill, error) {
	var b domain.Bill
	err := row.Scan(&b.LocalID, &b.RemoteID, &b.ClientID, &b.TotalPaise, &b.PaidPaise,
		&b.Date, &b.CreatedAt, &b.UpdatedAt, &b.Dirty, &b.State)
	if err != nil {
		return domain.Bill{}, err
	}
	b.Date = b.Date.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadBillItems(ctx context.Context, q querier, billRemoteID string) ([]domain.BillItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT remote_id, bill_id, product_id, quantity, price_paise
		FROM bill_items
		WHERE bill_id = ?
		ORDER BY id
	`, billRemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	items := make([]domain.BillItem, 0, 8)
	for rows.Next() {
		var item domain.BillItem
		if err := rows.Scan(&item.RemoteID, &item.BillID, &item.ProductID, &item.Quantity, &item.PricePaise); err != nil {
			return nil, wrapDriverErr(err)
		}
		items = append(items, item)
	}
	return items, wrapDriverErr(rows.Err())
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	if bill.ClientID == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if bill.Date.IsZero() {
		bill.Date = now
	}

	var clientState string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM clients WHERE remote_id = ?`, bill.ClientID).Scan(&clientState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	if clientState != string(domain.RowActive) {
		return nil, store.ErrNotFound
	}

	// Validate every line before writing anything: no partial bills.
	total := int64(0)
	for i := range bill.Items {
		item := &bill.Items[i]
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		var pricePaise int64
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT price_paise, stock FROM products
			WHERE remote_id = ? AND state = 'active'
		`, item.ProductID).Scan(&pricePaise, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, wrapDriverErr(err)
		}
		if item.Quantity > stock {
			return nil, store.ErrInsufficientStock
		}
		if item.PricePaise < 1 {
			item.PricePaise = pricePaise
		}
		total += int64(item.Quantity) * item.PricePaise
	}

	if bill.RemoteID == "" {
		bill.RemoteID = domain.NewUUID()
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	bill.UpdatedAt = now
	bill.Dirty = true
	bill.State = domain.RowActive
	bill.TotalPaise = total

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bills (remote_id, client_id, total_paise, paid_paise, bill_date, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?,?)
		RETURNING local_id
	`, bill.RemoteID, bill.ClientID, bill.TotalPaise, bill.PaidPaise, bill.Date,
		bill.CreatedAt, bill.UpdatedAt, bill.Dirty, bill.State).Scan(&bill.LocalID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		if item.RemoteID == "" {
			item.RemoteID = domain.NewUUID()
		}
		item.BillID = bill.RemoteID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (remote_id, bill_id, product_id, quantity, price_paise)
			VALUES (?,?,?,?,?)
		`, item.RemoteID, item.BillID, item.ProductID, item.Quantity, item.PricePaise)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		if _, err := adjustStockTx(ctx, tx, item.ProductID, -item.Quantity, now); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	if err := appendLedgerTx(ctx, tx, domain.LedgerEntry{
		ClientID:    bill.ClientID,
		BillID:      bill.RemoteID,
		Type:        domain.LedgerBill,
		AmountPaise: bill.TotalPaise,
		Date:        bill.Date,
	}, now); err != nil {
		return nil, wrapDriverErr(err)
	}
	if bill.PaidPaise > 0 {
		if err := appendLedgerTx(ctx, tx, domain.LedgerEntry{
			ClientID:    bill.ClientID,
			BillID:      bill.RemoteID,
			Type:        domain.LedgerPayment,
			AmountPaise: bill.PaidPaise,
			Date:        bill.Date,
			Note:        "paid with bill",
		}, now); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	created := bill
	return &created, nil
}

func (s *Store) GetBillByRemoteID(ctx context.Context, remoteID string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+billCols+` FROM bills WHERE remote_id = ?`, remoteID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	bill.Items, err = loadBillItems(ctx, s.db, bill.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	return &bill, nil
}

func (s *Store) ListBillsByClient(ctx context.Context, clientRemoteID string) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+billCols+`
		FROM bills
		WHERE client_id = ? AND state = 'active'
		ORDER BY bill_date, local_id
	`, clientRemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 16)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverErr(err)
	}

	for i := range bills {
		bills[i].Items, err = loadBillItems(ctx, s.db, bills[i].RemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
	}
	return bills, nil
}

func (s *Store) UpdateBillItemQuantity(ctx context.Context, itemRemoteID string, quantity int) (*domain.Bill, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var item domain.BillItem
	err = tx.QueryRowContext(ctx, `
		SELECT remote_id, bill_id, product_id, quantity, price_paise
		FROM bill_items WHERE remote_id = ?
	`, itemRemoteID).Scan(&item.RemoteID, &item.BillID, &item.ProductID, &item.Quantity, &item.PricePaise)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+billCols+` FROM bills WHERE remote_id = ? AND state = 'active'`, item.BillID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}

	now := time.Now().UTC()
	delta := quantity - item.Quantity
	if delta != 0 {
		if _, err := adjustStockTx(ctx, tx, item.ProductID, -delta, now); err != nil {
			return nil, wrapDriverErr(err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE bill_items SET quantity = ? WHERE remote_id = ?`, quantity, itemRemoteID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}

		totalDelta := int64(delta) * item.PricePaise
		bill.TotalPaise += totalDelta
		bill.UpdatedAt = now
		bill.Dirty = true
		_, err = tx.ExecContext(ctx, `
			UPDATE bills SET total_paise = ?, dirty = 1, updated_at = ? WHERE local_id = ?
		`, bill.TotalPaise, now, bill.LocalID)
		if err != nil {
			return nil, wrapDriverErr(err)
		}

		// Append-only correction: the original bill entry stays put.
		if err := appendLedgerTx(ctx, tx, domain.LedgerEntry{
			ClientID:    bill.ClientID,
			BillID:      bill.RemoteID,
			Type:        domain.LedgerAdjustment,
			AmountPaise: -totalDelta,
			Date:        now,
			Note:        "bill item quantity correction",
		}, now); err != nil {
			return nil, wrapDriverErr(err)
		}
	}

	bill.Items, err = loadBillItems(ctx, tx, bill.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	return &bill, nil
}

func (s *Store) DeleteBillItem(ctx context.Context, itemRemoteID string) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var item domain.BillItem
	err = tx.QueryRowContext(ctx, `
		SELECT remote_id, bill_id, product_id, quantity, price_paise
		FROM bill_items WHERE remote_id = ?
	`, itemRemoteID).Scan(&item.RemoteID, &item.BillID, &item.ProductID, &item.Quantity, &item.PricePaise)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+billCols+` FROM bills WHERE remote_id = ? AND state = 'active'`, item.BillID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}

	now := time.Now().UTC()
	if _, err := adjustStockTx(ctx, tx, item.ProductID, item.Quantity, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, wrapDriverErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bill_items WHERE remote_id = ?`, itemRemoteID); err != nil {
		return nil, wrapDriverErr(err)
	}

	removed := int64(item.Quantity) * item.PricePaise
	bill.TotalPaise -= removed
	bill.UpdatedAt = now
	bill.Dirty = true
	_, err = tx.ExecContext(ctx, `
		UPDATE bills SET total_paise = ?, dirty = 1, updated_at = ? WHERE local_id = ?
	`, bill.TotalPaise, now, bill.LocalID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}

	if err := appendLedgerTx(ctx, tx, domain.LedgerEntry{
		ClientID:    bill.ClientID,
		BillID:      bill.RemoteID,
		Type:        domain.LedgerAdjustment,
		AmountPaise: removed,
		Date:        now,
		Note:        "bill item removed",
	}, now); err != nil {
		return nil, wrapDriverErr(err)
	}

	bill.Items, err = loadBillItems(ctx, tx, bill.RemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	return &bill, nil
}

func (s *Store) DeleteBill(ctx context.Context, remoteID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+billCols+` FROM bills WHERE remote_id = ? AND state = 'active'`, remoteID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return wrapDriverErr(err)
	}
	items, err := loadBillItems(ctx, tx, bill.RemoteID)
	if err != nil {
		return wrapDriverErr(err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		if _, err := adjustStockTx(ctx, tx, item.ProductID, item.Quantity, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return wrapDriverErr(err)
		}
	}

	if bill.TotalPaise != 0 {
		if err := appendLedgerTx(ctx, tx, domain.LedgerEntry{
			ClientID:    bill.ClientID,
			BillID:      bill.RemoteID,
			Type:        domain.LedgerAdjustment,
			AmountPaise: bill.TotalPaise,
			Date:        now,
			Note:        "bill deleted",
		}, now); err != nil {
			return wrapDriverErr(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bills SET state = 'tombstoned', dirty = 1, updated_at = ? WHERE local_id = ?
	`, now, bill.LocalID)
	if err != nil {
		return wrapDriverErr(err)
	}
	return wrapDriverErr(tx.Commit())
}

// Ledger.

const ledgerCols = "local_id, remote_id, client_id, bill_id, entry_type, amount_paise, entry_date, note, payment_method, reference_number, created_at, updated_at, dirty, state"

func scanLedgerEntry(row rowScanner) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.LocalID, &e.RemoteID, &e.ClientID, &e.BillID, &e.Type, &e.AmountPaise,
		&e.Date, &e.Note, &e.PaymentMethod, &e.ReferenceNumber,
		&e.CreatedAt, &e.UpdatedAt, &e.Dirty, &e.State)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendLedgerTx(ctx context.Context, ex execer, entry domain.LedgerEntry, now time.Time) error {
	if entry.RemoteID == "" {
		entry.RemoteID = domain.NewUUID()
	}
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	_, err := ex.ExecContext(ctx, `
		INSERT INTO ledger_entries (remote_id, client_id, bill_id, entry_type, amount_paise, entry_date, note, payment_method, reference_number, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,1,'active')
	`, entry.RemoteID, entry.ClientID, entry.BillID, entry.Type, entry.AmountPaise,
		entry.Date, entry.Note, entry.PaymentMethod, entry.ReferenceNumber,
		entry.CreatedAt, entry.UpdatedAt)
	return wrapDriverErr(err)
}

func (s *Store) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.ClientID == "" || entry.AmountPaise == 0 {
		return nil, store.ErrInvalidInput
	}
	switch entry.Type {
	case domain.LedgerBill, domain.LedgerPayment, domain.LedgerCredit:
		if entry.AmountPaise < 0 {
			return nil, store.ErrInvalidInput
		}
	case domain.LedgerAdjustment:
		// Adjustments are signed.
	default:
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	if entry.RemoteID == "" {
		entry.RemoteID = domain.NewUUID()
	}
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.Dirty = true
	entry.State = domain.RowActive

	if err := appendLedgerTx(ctx, s.db, entry, now); err != nil {
		return nil, wrapDriverErr(err)
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT local_id FROM ledger_entries WHERE remote_id = ?`, entry.RemoteID).Scan(&entry.LocalID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	saved := entry
	return &saved, nil
}

func (s *Store) ListLedgerByClient(ctx context.Context, clientRemoteID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerCols+`
		FROM ledger_entries
		WHERE client_id = ? AND state = 'active'
		ORDER BY entry_date, local_id
	`, clientRemoteID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 32)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		entries = append(entries, entry)
	}
	return entries, wrapDriverErr(rows.Err())
}
