package domain

import (
	"time"

	"github.com/google/uuid"
)

// RowState tracks the soft-delete lifecycle of a synced row. A tombstoned
// row is kept locally until the remote delete is acknowledged, then purged.
type RowState string

const (
	RowActive     RowState = "active"
	RowTombstoned RowState = "tombstoned"
)

type EntityType string

const (
	EntityClients       EntityType = "clients"
	EntityProducts      EntityType = "products"
	EntityBills         EntityType = "bills"
	EntityDemandBatches EntityType = "demand_batches"
	EntityLedger        EntityType = "ledger"
)

// SyncOrder is the dependency order for full synchronization: entities with
// no foreign keys first, then their dependents, ledger last.
var SyncOrder = []EntityType{
	EntityClients,
	EntityProducts,
	EntityBills,
	EntityDemandBatches,
	EntityLedger,
}

// SyncMeta is the envelope every synchronized entity carries. LocalID is the
// store-assigned primary key and never leaves the local store / sync
// boundary; RemoteID is the stable join key with the remote mirror.
type SyncMeta struct {
	LocalID   int64     `json:"local_id"`
	RemoteID  string    `json:"remote_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Dirty     bool      `json:"dirty"`
	State     RowState  `json:"state"`
}

func NewSyncMeta(now time.Time) SyncMeta {
	return SyncMeta{
		RemoteID:  uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
		State:     RowActive,
	}
}

type Client struct {
	SyncMeta
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Product struct {
	SyncMeta
	Name       string `json:"name"`
	UnitGrams  int    `json:"unit_grams"`
	PricePaise int64  `json:"price_paise"`
	CostPaise  int64  `json:"cost_paise,omitempty"`
	Stock      int    `json:"stock"`
}

type Bill struct {
	SyncMeta
	ClientID   string     `json:"client_id"` // client remoteId
	TotalPaise int64      `json:"total_paise"`
	PaidPaise  int64      `json:"paid_paise"`
	Date       time.Time  `json:"date"`
	Items      []BillItem `json:"items"`
}

// BillItem rows carry their own remoteId so a single line can be targeted by
// edits from any device, but they sync embedded in the owning bill document.
type BillItem struct {
	RemoteID   string `json:"remote_id"`
	BillID     string `json:"bill_id"`    // bill remoteId
	ProductID  string `json:"product_id"` // product remoteId
	Quantity   int    `json:"quantity"`
	PricePaise int64  `json:"price_paise"` // unit price at time of sale
}

type LedgerType string

const (
	LedgerBill       LedgerType = "bill"
	LedgerPayment    LedgerType = "payment"
	LedgerCredit     LedgerType = "credit"
	LedgerAdjustment LedgerType = "adjustment"
)

// LedgerEntry is append-only: after creation only sync metadata changes.
// Balance convention: bill entries add to what the client owes, every other
// type subtracts. Bill-total corrections are therefore appended as
// adjustment entries with amount = -(total delta).
type LedgerEntry struct {
	SyncMeta
	ClientID        string     `json:"client_id"`
	BillID          string     `json:"bill_id,omitempty"`
	Type            LedgerType `json:"type"`
	AmountPaise     int64      `json:"amount_paise"`
	Date            time.Time  `json:"date"`
	Note            string     `json:"note,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
}

type DemandBatch struct {
	SyncMeta
	Date    time.Time     `json:"date"` // calendar date, midnight UTC
	Closed  bool          `json:"closed"`
	Entries []DemandEntry `json:"entries"`
}

type DemandEntry struct {
	RemoteID  string `json:"remote_id"`
	BatchID   string `json:"batch_id"`
	ClientID  string `json:"client_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Deleted   bool   `json:"deleted"`
}

// RunningBalance pairs a ledger entry with the cumulative balance after it.
type RunningBalance struct {
	Entry        LedgerEntry `json:"entry"`
	BalancePaise int64       `json:"balance_paise"`
}

type CloseBatchOptions struct {
	DeductStock   bool `json:"deduct_stock"`
	CreateNextDay bool `json:"create_next_day"`
}

type PaymentRequest struct {
	ClientID        string `json:"client_id"`
	AmountPaise     int64  `json:"amount_paise"`
	Note            string `json:"note,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
}

type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TypeStatus struct {
	Total         int     `json:"total"`
	Unsynced      int     `json:"unsynced"`
	SyncedPercent float64 `json:"synced_percent"`
}

type SyncStatus struct {
	PerType         map[EntityType]TypeStatus `json:"per_type"`
	HasConnection   bool                      `json:"has_connection"`
	IsAuthenticated bool                      `json:"is_authenticated"`
}

// DateOnly truncates to the calendar day in UTC; demand batches are keyed by it.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NewUUID() string {
	return uuid.NewString()
}
