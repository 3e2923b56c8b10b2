// Package sqlite implements the local authoritative store on a single
// SQLite database file. WAL mode plus a single write connection keeps
// every business operation a serialized transaction, which is what the
// billing and batch invariants lean on.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies pragmas and
// schema. Idempotent, safe to call on every start.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", store.ErrStorage, path, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent sync and billing activity.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connect %s: %v", store.ErrStorage, path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", store.ErrStorage, pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", store.ErrStorage, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return wrapDriverErr(s.db.Close())
}

// wrapDriverErr converts a raw database/sql failure into the package's
// error vocabulary. Sentinels pass through untouched so callers keep
// branching on them; everything else becomes a store.ErrStorage.
func wrapDriverErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrBatchClosed),
		errors.Is(err, store.ErrStorage):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: %v", store.ErrStorage, err)
}

const clientCols = "local_id, remote_id, name, phone, address, created_at, updated_at, dirty, state"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.LocalID, &c.RemoteID, &c.Name, &c.Phone, &c.Address,
		&c.CreatedAt, &c.UpdatedAt, &c.Dirty, &c.State)
	if err != nil {
		return domain.Client{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// Clients.

func (s *Store) SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	if client.RemoteID == "" {
		client.RemoteID = domain.NewUUID()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now
	client.Dirty = true
	if client.State == "" {
		client.State = domain.RowActive
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (remote_id, name, phone, address, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (remote_id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty,
			state = excluded.state
		RETURNING local_id
	`, client.RemoteID, client.Name, client.Phone, client.Address,
		client.CreatedAt, client.UpdatedAt, client.Dirty, client.State).Scan(&client.LocalID)
	if err != nil {
		return nil, wrapDriverErr(err)
	}

	saved := client
	return &saved, nil
}

func (s *Store) GetClientByRemoteID(ctx context.Context, remoteID string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientCols+` FROM clients WHERE remote_id = ?`, remoteID)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	return &client, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientCols+`
		FROM clients
		WHERE state = 'active'
		ORDER BY name, local_id
	`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		clients = append(clients, client)
	}
	return clients, wrapDriverErr(rows.Err())
}

func (s *Store) DeleteClient(ctx context.Context, remoteID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET state = 'tombstoned', dirty = 1, updated_at = ?
		WHERE remote_id = ? AND state = 'active'
	`, time.Now().UTC(), remoteID)
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

// Products.

const productCols = "local_id, remote_id, name, unit_grams, price_paise, cost_paise, stock, created_at, updated_at, dirty, state"

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.LocalID, &p.RemoteID, &p.Name, &p.UnitGrams, &p.PricePaise,
		&p.CostPaise, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &p.Dirty, &p.State)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PricePaise < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	if product.RemoteID == "" {
		product.RemoteID = domain.NewUUID()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	product.Dirty = true
	if product.State == "" {
		product.State = domain.RowActive
	}

	// On update the stored stock wins: stock only moves through billing
	// and batch operations, never through a product edit.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (remote_id, name, unit_grams, price_paise, cost_paise, stock, created_at, updated_at, dirty, state)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (remote_id) DO UPDATE SET
			name = excluded.name,
			unit_grams = excluded.unit_grams,
			price_paise = excluded.price_paise,
			cost_paise = excluded.cost_paise,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty,
			state = excluded.state
		RETURNING local_id, stock
	`, product.RemoteID, product.Name, product.UnitGrams, product.PricePaise, product.CostPaise,
		product.Stock, product.CreatedAt, product.UpdatedAt, product.Dirty, product.State).
		Scan(&product.LocalID, &product.Stock)
	if err != nil {
		return nil, wrapDriverErr(err)
	}

	saved := product
	return &saved, nil
}

func (s *Store) GetProductByRemoteID(ctx context.Context, remoteID string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE remote_id = ?`, remoteID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapDriverErr(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productCols+`
		FROM products
		WHERE state = 'active'
		ORDER BY name, local_id
	`)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, wrapDriverErr(err)
		}
		products = append(products, product)
	}
	return products, wrapDriverErr(rows.Err())
}

func (s *Store) DeleteProduct(ctx context.Context, remoteID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET state = 'tombstoned', dirty = 1, updated_at = ?
		WHERE remote_id = ? AND state = 'active'
	`, time.Now().UTC(), remoteID)
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

func (s *Store) AdjustStock(ctx context.Context, productRemoteID string, delta int) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	product, err := adjustStockTx(ctx, tx, productRemoteID, delta, time.Now().UTC())
	if err != nil {
		return nil, wrapDriverErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapDriverErr(err)
	}
	return product, nil
}

func adjustStockTx(ctx context.Context, tx *sql.Tx, productRemoteID string, delta int, now time.Time) (*domain.Product, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE remote_id = ? AND state = 'active'`, productRemoteID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if product.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	product.Stock += delta
	product.UpdatedAt = now
	product.Dirty = true
	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, dirty = 1, updated_at = ?
		WHERE local_id = ?
	`, product.Stock, now, product.LocalID)
	if err != nil {
		return nil, err
	}
	return &product, nil
}
