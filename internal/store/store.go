package store

import (
	"context"
	"errors"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrBatchClosed       = errors.New("demand batch is closed")

	// ErrStorage wraps driver-level failures. The enclosing transaction is
	// rolled back; callers never observe a partial commit.
	ErrStorage = errors.New("storage failure")
)

// Repository is the local authoritative store. Every local-origin mutation
// stamps UpdatedAt and marks the row dirty; Reconcile* methods apply
// remote-origin rows verbatim and clear the dirty flag. Multi-row business
// operations (bill create/edit/delete, batch close) are atomic: on any
// failure nothing is committed.
type Repository interface {
	// Clients.
	SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClientByRemoteID(ctx context.Context, remoteID string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	DeleteClient(ctx context.Context, remoteID string) error

	// Products. Stock is never written directly by callers: it moves only
	// through CreateBill/UpdateBillItemQuantity/DeleteBillItem/DeleteBill,
	// CloseBatch, and explicit AdjustStock compensations.
	SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByRemoteID(ctx context.Context, remoteID string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, remoteID string) error
	AdjustStock(ctx context.Context, productRemoteID string, delta int) (*domain.Product, error)

	// Bills. CreateBill validates stock for every item, inserts the bill and
	// its items, decrements stock and appends the bill ledger entry in one
	// transaction. Edits keep stock, bill total and ledger consistent via
	// append-only adjustment entries.
	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	GetBillByRemoteID(ctx context.Context, remoteID string) (*domain.Bill, error)
	ListBillsByClient(ctx context.Context, clientRemoteID string) ([]domain.Bill, error)
	UpdateBillItemQuantity(ctx context.Context, itemRemoteID string, quantity int) (*domain.Bill, error)
	DeleteBillItem(ctx context.Context, itemRemoteID string) (*domain.Bill, error)
	DeleteBill(ctx context.Context, remoteID string) error

	// Ledger (append-only).
	AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedgerByClient(ctx context.Context, clientRemoteID string) ([]domain.LedgerEntry, error)

	// Demand batches. With adjustStock set the entry edit and the
	// compensating stock move commit in the same transaction; a failed
	// compensation (insufficient stock, vanished product) rolls back the
	// entry change too.
	GetOrCreateBatchForDate(ctx context.Context, date time.Time) (*domain.DemandBatch, error)
	GetBatchByRemoteID(ctx context.Context, remoteID string) (*domain.DemandBatch, error)
	ListBatches(ctx context.Context, limit int) ([]domain.DemandBatch, error)
	AddDemandEntry(ctx context.Context, entry domain.DemandEntry, allowClosed, adjustStock bool) (*domain.DemandBatch, error)
	UpdateDemandEntry(ctx context.Context, entryRemoteID string, quantity int, allowClosed, adjustStock bool) (*domain.DemandBatch, error)
	RemoveDemandEntry(ctx context.Context, entryRemoteID string, allowClosed, adjustStock bool) (*domain.DemandBatch, error)
	CloseBatch(ctx context.Context, batchRemoteID string, opts domain.CloseBatchOptions) (*domain.DemandBatch, error)

	// Sync support.
	DirtyClients(ctx context.Context) ([]domain.Client, error)
	DirtyProducts(ctx context.Context) ([]domain.Product, error)
	DirtyBills(ctx context.Context) ([]domain.Bill, error)
	DirtyBatches(ctx context.Context) ([]domain.DemandBatch, error)
	DirtyLedger(ctx context.Context) ([]domain.LedgerEntry, error)

	ReconcileClient(ctx context.Context, client domain.Client) error
	ReconcileProduct(ctx context.Context, product domain.Product) error
	ReconcileBill(ctx context.Context, bill domain.Bill) error
	ReconcileBatch(ctx context.Context, batch domain.DemandBatch) error
	ReconcileLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error

	// MarkSynced clears the dirty flag without touching UpdatedAt.
	MarkSynced(ctx context.Context, entity domain.EntityType, localID int64) error
	// PurgeTombstone physically removes a tombstoned row once the remote
	// delete has been acknowledged.
	PurgeTombstone(ctx context.Context, entity domain.EntityType, localID int64) error
	// MarkAllDirty flags every row for re-upload without advancing UpdatedAt.
	MarkAllDirty(ctx context.Context, entity domain.EntityType) (int, error)

	SyncCounts(ctx context.Context, entity domain.EntityType) (total int, unsynced int, err error)
	SyncCursor(ctx context.Context, entity domain.EntityType) (time.Time, error)
	SetSyncCursor(ctx context.Context, entity domain.EntityType, cursor time.Time) error
}
