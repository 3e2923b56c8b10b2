package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

func seed(t *testing.T) (*Store, domain.Client, domain.Product) {
	t.Helper()
	s := New()
	ctx := context.Background()

	client, err := s.SaveClient(ctx, domain.Client{Name: "Ravi Tea Stall", Phone: "9800000001"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	product, err := s.SaveProduct(ctx, domain.Product{Name: "Toned Milk 500ml", UnitGrams: 500, PricePaise: 10, Stock: 10})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	return s, *client, *product
}

func balance(t *testing.T, s *Store, clientID string) int64 {
	t.Helper()
	entries, err := s.ListLedgerByClient(context.Background(), clientID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	total := int64(0)
	for _, e := range entries {
		if e.Type == domain.LedgerBill {
			total += e.AmountPaise
		} else {
			total -= e.AmountPaise
		}
	}
	return total
}

func TestCreateBillMovesStockAndLedgerTogether(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	bill, err := s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items:    []domain.BillItem{{ProductID: product.RemoteID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.TotalPaise != 40 {
		t.Fatalf("expected total 40, got %d", bill.TotalPaise)
	}

	got, err := s.GetProductByRemoteID(ctx, product.RemoteID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 6 {
		t.Fatalf("expected stock 6 after billing 4 of 10, got %d", got.Stock)
	}
	if b := balance(t, s, client.RemoteID); b != 40 {
		t.Fatalf("expected balance 40 after bill, got %d", b)
	}
}

func TestCreateBillInsufficientStockLeavesNothingBehind(t *testing.T) {
	s, client, product := seed(t)
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
		t.Fatalf("stock must be untouched after rejected bill, got %d", got.Stock)
	}
	bills, _ := s.ListBillsByClient(ctx, client.RemoteID)
	if len(bills) != 0 {
		t.Fatalf("expected no bills after rejection, got %d", len(bills))
	}
	if b := balance(t, s, client.RemoteID); b != 0 {
		t.Fatalf("expected empty ledger after rejection, balance %d", b)
	}
}

func TestCreateBillMultiItemAllOrNothing(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	scarce, err := s.SaveProduct(ctx, domain.Product{Name: "Paneer 200g", PricePaise: 80, Stock: 1})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}

	_, err = s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items: []domain.BillItem{
			{ProductID: product.RemoteID, Quantity: 2},
			{ProductID: scarce.RemoteID, Quantity: 3},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 10 {
		t.Fatalf("first line must not be applied when second fails, stock %d", got.Stock)
	}
}

func TestUpdateBillItemQuantityAppendsAdjustment(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	bill, err := s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items:    []domain.BillItem{{ProductID: product.RemoteID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	updated, err := s.UpdateBillItemQuantity(ctx, bill.Items[0].RemoteID, 6)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if updated.TotalPaise != 60 {
		t.Fatalf("expected total 60 after growing to 6 units, got %d", updated.TotalPaise)
	}

	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 4 {
		t.Fatalf("expected stock 4 after two more units sold, got %d", got.Stock)
	}
	// Bill entry stays 40; the adjustment of -20 brings the balance to 60.
	if b := balance(t, s, client.RemoteID); b != 60 {
		t.Fatalf("expected balance 60, got %d", b)
	}

	entries, _ := s.ListLedgerByClient(ctx, client.RemoteID)
	last := entries[len(entries)-1]
	if last.Type != domain.LedgerAdjustment || last.AmountPaise != -20 {
		t.Fatalf("expected adjustment of -20, got %s %d", last.Type, last.AmountPaise)
	}
}

func TestDeleteBillItemRestoresStockAndBalance(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	bill, err := s.CreateBill(ctx, domain.Bill{
		ClientID: client.RemoteID,
		Items:    []domain.BillItem{{ProductID: product.RemoteID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	updated, err := s.DeleteBillItem(ctx, bill.Items[0].RemoteID)
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if updated.TotalPaise != 0 || len(updated.Items) != 0 {
		t.Fatalf("expected empty bill, got total %d items %d", updated.TotalPaise, len(updated.Items))
	}

	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got.Stock)
	}
	if b := balance(t, s, client.RemoteID); b != 0 {
		t.Fatalf("expected balance back to 0, got %d", b)
	}
}

func TestDeleteBillTombstonesAndReverses(t *testing.T) {
	s, client, product := seed(t)
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
	if !got.Dirty {
		t.Fatalf("tombstoned bill must be dirty for sync")
	}
	product2, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if product2.Stock != 10 {
		t.Fatalf("expected stock restored, got %d", product2.Stock)
	}
	if b := balance(t, s, client.RemoteID); b != 0 {
		t.Fatalf("expected balance 0 after reversal, got %d", b)
	}
}

func TestProductEditNeverTouchesStock(t *testing.T) {
	s, _, product := seed(t)
	ctx := context.Background()

	product.PricePaise = 12
	product.Stock = 999
	saved, err := s.SaveProduct(ctx, product)
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	if saved.Stock != 10 {
		t.Fatalf("product edit must keep stored stock, got %d", saved.Stock)
	}
	if saved.PricePaise != 12 {
		t.Fatalf("expected price updated to 12, got %d", saved.PricePaise)
	}
}

func TestBatchCloseIsIdempotent(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	batch, err := s.GetOrCreateBatchForDate(ctx, time.Now())
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if _, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 20,
	}, false, false); err != nil {
		t.Fatalf("add entry: %v", err)
	}

	closed, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true})
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if !closed.Closed {
		t.Fatalf("expected closed batch")
	}
	got, _ := s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 30 {
		t.Fatalf("expected stock 30 after 20 incoming, got %d", got.Stock)
	}

	// Second close must not move stock again.
	if _, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("second close: %v", err)
	}
	got, _ = s.GetProductByRemoteID(ctx, product.RemoteID)
	if got.Stock != 30 {
		t.Fatalf("idempotent close must not reapply stock, got %d", got.Stock)
	}
}

func TestClosedBatchRejectsNormalEdits(t *testing.T) {
	s, client, product := seed(t)
	ctx := context.Background()

	batch, _ := s.GetOrCreateBatchForDate(ctx, time.Now())
	withEntry, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 5,
	}, false, false)
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{}); err != nil {
		t.Fatalf("close: %v", err)
	}

	entryID := withEntry.Entries[0].RemoteID
	if _, err := s.AddDemandEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 1,
	}, false, false); !errors.Is(err, store.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed on add, got %v", err)
	}
	if _, err := s.UpdateDemandEntry(ctx, entryID, 9, false, false); !errors.Is(err, store.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed on update, got %v", err)
	}
	if _, err := s.RemoveDemandEntry(ctx, entryID, false, false); !errors.Is(err, store.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed on remove, got %v", err)
	}

	// The explicit amendment path still works.
	if _, err := s.UpdateDemandEntry(ctx, entryID, 9, true, false); err != nil {
		t.Fatalf("allowClosed update failed: %v", err)
	}
}

func TestCloseBatchRollsOverNextDay(t *testing.T) {
	s, _, _ := seed(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	batch, _ := s.GetOrCreateBatchForDate(ctx, day)
	if _, err := s.CloseBatch(ctx, batch.RemoteID, domain.CloseBatchOptions{CreateNextDay: true}); err != nil {
		t.Fatalf("close: %v", err)
	}

	next, err := s.GetOrCreateBatchForDate(ctx, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("next day batch: %v", err)
	}
	if next.Closed {
		t.Fatalf("rolled-over batch must be open")
	}
	if !next.Date.Equal(domain.DateOnly(day.Add(24 * time.Hour))) {
		t.Fatalf("unexpected next-day date %v", next.Date)
	}
}

func TestGetOrCreateBatchSameDaySameBatch(t *testing.T) {
	s, _, _ := seed(t)
	ctx := context.Background()

	morning := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 31, 19, 30, 0, 0, time.UTC)

	a, _ := s.GetOrCreateBatchForDate(ctx, morning)
	b, _ := s.GetOrCreateBatchForDate(ctx, evening)
	if a.RemoteID != b.RemoteID {
		t.Fatalf("same calendar day must map to one batch")
	}
}

func TestTombstoneLifecycle(t *testing.T) {
	s, client, _ := seed(t)
	ctx := context.Background()

	if err := s.DeleteClient(ctx, client.RemoteID); err != nil {
		t.Fatalf("delete client: %v", err)
	}

	clients, _ := s.ListClients(ctx)
	if len(clients) != 0 {
		t.Fatalf("tombstoned client must not list, got %d", len(clients))
	}

	dirty, _ := s.DirtyClients(ctx)
	found := false
	for _, c := range dirty {
		if c.RemoteID == client.RemoteID && c.State == domain.RowTombstoned {
			found = true
			if err := s.PurgeTombstone(ctx, domain.EntityClients, c.LocalID); err != nil {
				t.Fatalf("purge: %v", err)
			}
		}
	}
	if !found {
		t.Fatalf("tombstone must appear in dirty rows for upload")
	}

	if _, err := s.GetClientByRemoteID(ctx, client.RemoteID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected purged client gone, got %v", err)
	}
}

func TestMarkAllDirtyPreservesUpdatedAt(t *testing.T) {
	s, client, _ := seed(t)
	ctx := context.Background()

	if err := s.MarkSynced(ctx, domain.EntityClients, client.LocalID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	before, _ := s.GetClientByRemoteID(ctx, client.RemoteID)

	count, err := s.MarkAllDirty(ctx, domain.EntityClients)
	if err != nil {
		t.Fatalf("mark all dirty: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row marked, got %d", count)
	}

	after, _ := s.GetClientByRemoteID(ctx, client.RemoteID)
	if !after.Dirty {
		t.Fatalf("row must be dirty")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("force-marking must not bump UpdatedAt")
	}
}

func TestSyncCountsAndCursor(t *testing.T) {
	s, client, _ := seed(t)
	ctx := context.Background()

	total, unsynced, err := s.SyncCounts(ctx, domain.EntityClients)
	if err != nil {
		t.Fatalf("sync counts: %v", err)
	}
	if total != 1 || unsynced != 1 {
		t.Fatalf("expected 1/1, got %d/%d", total, unsynced)
	}

	if err := s.MarkSynced(ctx, domain.EntityClients, client.LocalID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	_, unsynced, _ = s.SyncCounts(ctx, domain.EntityClients)
	if unsynced != 0 {
		t.Fatalf("expected 0 unsynced, got %d", unsynced)
	}

	cursor, err := s.SyncCursor(ctx, domain.EntityClients)
	if err != nil || !cursor.IsZero() {
		t.Fatalf("expected zero cursor, got %v err %v", cursor, err)
	}
	want := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if err := s.SetSyncCursor(ctx, domain.EntityClients, want); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	cursor, _ = s.SyncCursor(ctx, domain.EntityClients)
	if !cursor.Equal(want) {
		t.Fatalf("expected cursor %v, got %v", want, cursor)
	}
}

func TestReconcileClearsDirtyAndKeepsLocalID(t *testing.T) {
	s, client, _ := seed(t)
	ctx := context.Background()

	remote := client
	remote.Name = "Ravi Tea Stall (Main Road)"
	remote.UpdatedAt = time.Now().UTC().Add(time.Minute)
	if err := s.ReconcileClient(ctx, remote); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got, _ := s.GetClientByRemoteID(ctx, client.RemoteID)
	if got.Dirty {
		t.Fatalf("reconciled row must not be dirty")
	}
	if got.LocalID != client.LocalID {
		t.Fatalf("reconcile must keep local id %d, got %d", client.LocalID, got.LocalID)
	}
	if got.Name != remote.Name {
		t.Fatalf("expected remote name applied, got %q", got.Name)
	}
}
