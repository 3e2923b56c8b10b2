package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seedStore(t *testing.T, s *Store) (domain.Client, domain.Product) {
	t.Helper()
	ctx := context.Background()
	client, err := s.SaveClient(ctx, domain.Client{Name: "Verma Dairy Booth", Phone: "9800000004"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	product, err := s.SaveProduct(ctx, domain.Product{Name: "Buffalo Milk 1L", UnitGrams: 1000, PricePaise: 10, Stock: 10})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	return *client, *product
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	ctx := context.Background()
	if _, err := s.SaveClient(ctx, domain.Client{Name: "Verma Dairy Booth"}); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("expected ErrStorage on a closed database, got %v", err)
	}
	if _, err := s.ListProducts(ctx); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("expected ErrStorage from list, got %v", err)
	}
	if err := s.SetSyncCursor(ctx, domain.EntityClients, time.Now()); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("expected ErrStorage from cursor write, got %v", err)
	}
}

func TestSaveClientUpsertKeepsLocalID(t *testing.T) {
	s := openTestStore(t)
	client, _ := seedStore(t, s)
	ctx := context.Background()

	client.Name = "Verma Dairy Booth (Sector 4)"
	updated, err := s.SaveClient(ctx, client)
	if err != nil {
		t.Fatalf("update client: %v", err)
	}
	if updated.LocalID != client.LocalID {
		t.Fatalf("upsert must keep local id %d, got %d", client.LocalID, updated.LocalID)
	}
	if !updated.Dirty {
		t.Fatalf("edited row must be dirty")
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != client.Name {
		t.Fatalf("expected single renamed client, got %+v", clients)
	}
}

func TestSaveProductUpdateKeepsStock(t *testing.T) {
	s := openTestStore(t)
	_, product := seedStore(t, s)
	ctx := context.Background()

	product.PricePaise = 12
	product.Stock = 500
	updated, err := s.SaveProduct(ctx, product)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Stock != 10 {
		t.Fatalf("product edit must keep stored stock, got %d", updated.Stock)
	}
	if updated.PricePaise != 12 {
		t.Fatalf("expected price 12, got %d", updated.PricePaise)
	}
}

func TestCreateBillTransaction(t *testing.T) {
	s := openTestStore(t)
	client, product := seedStore(t, s)
	ctx := context.Background()

	bill, err := s.CreateBill(ctx, domain.Bill{
		ClientID:  client.RemoteID,
		PaidPaise: 15,
		Items:     []domain.BillItem{{ProductID: product.RemoteID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.TotalPaise != 40 || len(bill.Items) != 1 {
		t.Fatalf("unexpected bill %+v", bill)
	}

	got, err := s.GetProductByRemoteID(ctx, product.RemoteID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 6 {
		t.Fatalf("expected stock 6 after billing 4, got %d", got.Stock)
	}

	entries, err := s.ListLedgerByClient(ctx, client.RemoteID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected bill entry plus paid-with-bill payment, got %d", len(entries))
	}
	balance := int64(0)
	for _, e := range entries {
		if e.Type == domain.LedgerBill {
			balance += e.AmountPaise
		} else {
			balance -= e.AmountPaise
		}
	}
	if balance != 25 {
		t.Fatalf("expected balance 25, got %d", balance)
	}
}

func TestCreateBillInsufficientStockRollsBack(t *testing.T) {
	s := openTestStore(t)
	client, product := seedStore(t, s)
	ctx := context.Background()

	_, err := s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items:    []domain.BillItem{{ProductID: product.RemoteID, Quantity: 11}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 10 {
		t.Fatalf("rollback must leave stock at 10, got %d", got.Stock)
	}
	bills, _ := s.ListBillsByClient(ctx, client.RemoteID)
	if len(bills) != 0 {
		t.Fatalf("rollback must leave no bills, got %d", len(bills))
	}
	entries, _ := s.ListLedgerByClient(ctx, client.RemoteID)
	if len(entries) != 0 {
		t.Fatalf("rollback must leave no ledger entries, got %d", len(entries))
	}
}

func TestDeleteBillRestoresAndTombstones(t *testing.T) {
	s := openTestStore(t)
	client, product := seedStore(t, s)
	ctx := context.Background()

	bill, err := s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items:    []domain.BillItem{{ProductID: product.RemoteID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := s.DeleteBill(ctx, bill.RemoteID); err != nil {
		t.Fatalf("delete bill: %v", err)
	}

	got, _ := s.GetBillByRemoteID(ctx, bill.RemoteID)
	if got.State != domain.RowTombstoned {
		t.Fatalf("expected tombstoned bill, got %s", got.State)
	}
	product2, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if product2.Stock != 10 {
		t.Fatalf("expected stock restored, got %d", product2.Stock)
	}
}

func TestBatchLifecycle(t *testing.T) {
	s := openTestStore(t)
	client, product := seedStore(t, s)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	batch, err := s.GetOrCreateBatchForDate(ctx, day)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	again, _ := s.GetOrCreateBatchForDate(ctx, day.Add(10*time.Hour))
	if again.RemoteID != batch.RemoteID {
		t.Fatalf("same day must resolve to one batch")
	}

	withEntry, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 20,
	}, false, false)
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if len(withEntry.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(withEntry.Entries))
	}

	closed, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true, CreateNextDay: true})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.Closed {
		t.Fatalf("expected closed batch")
	}
	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 30 {
		t.Fatalf("expected stock 30 after 20 incoming, got %d", got.Stock)
	}

	// Idempotent: a retry moves nothing.
	if _, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("second close: %v", err)
	}
	got, _ = s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 30 {
		t.Fatalf("second close must not move stock, got %d", got.Stock)
	}

	next, err := s.GetOrCreateBatchForDate(ctx, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("next day: %v", err)
	}
	if next.Closed || next.RemoteID == batch.RemoteID {
		t.Fatalf("expected fresh open batch for the next day")
	}

	if _, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 1,
	}, false, false); !errors.Is(err, store.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed, got %v", err)
	}
}

func TestClosedEntryRemovalIsAtomic(t *testing.T) {
	s := openTestStore(t)
	client, product := seedStore(t, s)
	ctx := context.Background()

	batch, err := s.GetOrCreateBatchForDate(ctx, time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	withEntry, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 20,
	}, false, false)
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	entryID := withEntry.Entries[0].RemoteID

	if _, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("close: %v", err)
	}
	// 30 on the shelf; sell most of it so the compensation cannot fit.
	if _, err := s.AdjustStock(ctx, product.RemoteID, -25); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	if _, err := s.RemoveDemandEntry(ctx, entryID, true, true); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// One transaction: the entry delete must roll back with the stock move.
	reloaded, err := s.GetBatchByRemoteID(ctx, batch.RemoteID)
	if err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if len(reloaded.Entries) != 1 || reloaded.Entries[0].Deleted {
		t.Fatalf("entry must survive a failed removal: %+v", reloaded.Entries)
	}
	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 5 {
		t.Fatalf("stock must be untouched after a failed removal, got %d", got.Stock)
	}

	// The delta path commits both sides together.
	if _, err := s.UpdateDemandEntry(ctx, entryID, 18, true, true); err != nil {
		t.Fatalf("amend: %v", err)
	}
	got, _ = s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 3 {
		t.Fatalf("expected stock 3 after amending 20 to 18, got %d", got.Stock)
	}
}

func TestDirtyReconcileAndCursor(t *testing.T) {
	s := openTestStore(t)
	client, _ := seedStore(t, s)
	ctx := context.Background()

	dirty, err := s.DirtyClients(ctx)
	if err != nil {
		t.Fatalf("dirty clients: %v", err)
	}
	if len(dirty) != 1 {
		t.Fatalf("expected 1 dirty client, got %d", len(dirty))
	}

	if err := s.MarkSynced(ctx, domain.EntityClients, client.LocalID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	total, unsynced, err := s.SyncCounts(ctx, domain.EntityClients)
	if err != nil || total != 1 || unsynced != 0 {
		t.Fatalf("expected 1/0, got %d/%d err %v", total, unsynced, err)
	}

	remote := client
	remote.Name = "Verma Dairy Booth (Remote Edit)"
	remote.UpdatedAt = time.Now().UTC().Add(time.Minute)
	if err := s.ReconcileClient(ctx, remote); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	got, _ := s.GetClientByRemoteID(ctx, client.RemoteID)
	if got.Dirty || got.Name != remote.Name || got.LocalID != client.LocalID {
		t.Fatalf("reconcile mismatch: %+v", got)
	}

	want := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	if err := s.SetSyncCursor(ctx, domain.EntityClients, want); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	cursor, err := s.SyncCursor(ctx, domain.EntityClients)
	if err != nil || !cursor.Equal(want) {
		t.Fatalf("expected cursor %v, got %v err %v", want, cursor, err)
	}
}

func TestTombstonePurge(t *testing.T) {
	s := openTestStore(t)
	client, _ := seedStore(t, s)
	ctx := context.Background()

	if err := s.DeleteClient(ctx, client.RemoteID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if err := s.PurgeTombstone(ctx, domain.EntityClients, client.LocalID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := s.GetClientByRemoteID(ctx, client.RemoteID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected purged row gone, got %v", err)
	}

	// Purging an active row must refuse.
	other, err := s.SaveClient(ctx, domain.Client{Name: "Active Client"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	if err := s.PurgeTombstone(ctx, domain.EntityClients, other.LocalID); err == nil {
		t.Fatalf("purging an active row must fail")
	}
}
