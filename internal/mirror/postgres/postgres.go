// Package postgres backs the mirror with a Postgres document table. One
// table holds every collection; payloads are stored as JSONB so the
// schema never needs migrating when an entity grows a field.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/mirror"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_documents (
    collection TEXT        NOT NULL,
    remote_id  TEXT        NOT NULL,
    payload    JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, remote_id)
);

CREATE INDEX IF NOT EXISTS idx_sync_documents_changed
    ON sync_documents (collection, updated_at);
`

type Mirror struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Mirror, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", mirror.ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	return m.db.Close()
}

func (m *Mirror) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := m.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", mirror.ErrUnavailable, err)
	}
	return nil
}

func (m *Mirror) Upsert(ctx context.Context, collection string, doc mirror.Document) error {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO sync_documents (collection, remote_id, payload, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (collection, remote_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, collection, doc.RemoteID, payload, doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", mirror.ErrUnavailable, collection, doc.RemoteID, err)
	}
	return nil
}

func (m *Mirror) Delete(ctx context.Context, collection, remoteID string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM sync_documents WHERE collection = $1 AND remote_id = $2
	`, collection, remoteID)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", mirror.ErrUnavailable, collection, remoteID, err)
	}
	return nil
}

func (m *Mirror) ChangedSince(ctx context.Context, collection string, since time.Time) ([]mirror.Document, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT remote_id, payload, updated_at
		FROM sync_documents
		WHERE collection = $1 AND updated_at > $2
		ORDER BY updated_at
	`, collection, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: changed since %s: %v", mirror.ErrUnavailable, collection, err)
	}
	defer rows.Close()

	docs := make([]mirror.Document, 0, 64)
	for rows.Next() {
		var doc mirror.Document
		var payload []byte
		if err := rows.Scan(&doc.RemoteID, &payload, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &doc.Payload); err != nil {
			return nil, err
		}
		doc.UpdatedAt = doc.UpdatedAt.UTC()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
