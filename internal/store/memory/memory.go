package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

// Store is an in-process Repository used by unit tests and as a dev
// fallback when no database path is configured. The single mutex makes
// every operation atomic with respect to every other, which matches the
// serialized-transaction contract of the SQLite store.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	clients map[int64]domain.Client
	prods   map[int64]domain.Product
	bills   map[int64]domain.Bill
	ledger  map[int64]domain.LedgerEntry
	batches map[int64]domain.DemandBatch
	cursors map[domain.EntityType]time.Time
}

func New() *Store {
	return &Store{
		clients: make(map[int64]domain.Client),
		prods:   make(map[int64]domain.Product),
		bills:   make(map[int64]domain.Bill),
		ledger:  make(map[int64]domain.LedgerEntry),
		batches: make(map[int64]domain.DemandBatch),
		cursors: make(map[domain.EntityType]time.Time),
	}
}

func (s *Store) nextLocalID() int64 {
	s.nextID++
	return s.nextID
}

// stamp fills envelope defaults and marks a local-origin mutation.
func stamp(meta *domain.SyncMeta, now time.Time) {
	if meta.RemoteID == "" {
		meta.RemoteID = domain.NewUUID()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.State == "" {
		meta.State = domain.RowActive
	}
	meta.UpdatedAt = now
	meta.Dirty = true
}

// Clients.

func (s *Store) SaveClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client.LocalID == 0 && client.RemoteID != "" {
		if existing := s.findClientByRemote(client.RemoteID); existing != nil {
			client.LocalID = existing.LocalID
		}
	}
	if client.LocalID == 0 {
		client.LocalID = s.nextLocalID()
	} else if _, ok := s.clients[client.LocalID]; !ok {
		return nil, store.ErrNotFound
	}
	stamp(&client.SyncMeta, time.Now().UTC())
	s.clients[client.LocalID] = client
	saved := client
	return &saved, nil
}

func (s *Store) GetClientByRemoteID(_ context.Context, remoteID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client := s.findClientByRemote(remoteID)
	if client == nil {
		return nil, store.ErrNotFound
	}
	return client, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.State != domain.RowActive {
			continue
		}
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		if a.Name == b.Name {
			return int(a.LocalID - b.LocalID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) DeleteClient(_ context.Context, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := s.findClientByRemote(remoteID)
	if client == nil || client.State != domain.RowActive {
		return store.ErrNotFound
	}
	stamp(&client.SyncMeta, time.Now().UTC())
	client.State = domain.RowTombstoned
	s.clients[client.LocalID] = *client
	return nil
}

// Products.

func (s *Store) SaveProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PricePaise < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.LocalID == 0 && product.RemoteID != "" {
		if existing := s.findProductByRemote(product.RemoteID); existing != nil {
			product.LocalID = existing.LocalID
		}
	}
	if product.LocalID == 0 {
		product.LocalID = s.nextLocalID()
	} else if existing, ok := s.prods[product.LocalID]; ok {
		// Stock moves only through billing and batch operations.
		product.Stock = existing.Stock
	} else {
		return nil, store.ErrNotFound
	}
	stamp(&product.SyncMeta, time.Now().UTC())
	s.prods[product.LocalID] = product
	saved := product
	return &saved, nil
}

func (s *Store) GetProductByRemoteID(_ context.Context, remoteID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product := s.findProductByRemote(remoteID)
	if product == nil {
		return nil, store.ErrNotFound
	}
	return product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.prods))
	for _, p := range s.prods {
		if p.State != domain.RowActive {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return int(a.LocalID - b.LocalID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) DeleteProduct(_ context.Context, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := s.findProductByRemote(remoteID)
	if product == nil || product.State != domain.RowActive {
		return store.ErrNotFound
	}
	stamp(&product.SyncMeta, time.Now().UTC())
	product.State = domain.RowTombstoned
	s.prods[product.LocalID] = *product
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productRemoteID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := s.findProductByRemote(productRemoteID)
	if product == nil || product.State != domain.RowActive {
		return nil, store.ErrNotFound
	}
	if product.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	product.Stock += delta
	stamp(&product.SyncMeta, time.Now().UTC())
	s.prods[product.LocalID] = *product
	adjusted := *product
	return &adjusted, nil
}

// Bills.

func (s *Store) CreateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	if bill.ClientID == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client := s.findClientByRemote(bill.ClientID)
	if client == nil || client.State != domain.RowActive {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	if bill.Date.IsZero() {
		bill.Date = now
	}

	// Validate everything before touching any row: no partial bills.
	type deduction struct {
		localID int64
		qty     int
	}
	deductions := make([]deduction, 0, len(bill.Items))
	total := int64(0)
	for i := range bill.Items {
		item := &bill.Items[i]
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		product := s.findProductByRemote(item.ProductID)
		if product == nil || product.State != domain.RowActive {
			return nil, store.ErrNotFound
		}
		if item.Quantity > product.Stock {
			return nil, store.ErrInsufficientStock
		}
		if item.PricePaise < 1 {
			item.PricePaise = product.PricePaise
		}
		deductions = append(deductions, deduction{localID: product.LocalID, qty: item.Quantity})
		total += int64(item.Quantity) * item.PricePaise
	}

	bill.LocalID = s.nextLocalID()
	stamp(&bill.SyncMeta, now)
	bill.TotalPaise = total
	for i := range bill.Items {
		if bill.Items[i].RemoteID == "" {
			bill.Items[i].RemoteID = domain.NewUUID()
		}
		bill.Items[i].BillID = bill.RemoteID
	}

	for _, d := range deductions {
		product := s.prods[d.localID]
		product.Stock -= d.qty
		stamp(&product.SyncMeta, now)
		s.prods[d.localID] = product
	}

	s.appendLedgerLocked(domain.LedgerEntry{
		ClientID:    bill.ClientID,
		BillID:      bill.RemoteID,
		Type:        domain.LedgerBill,
		AmountPaise: bill.TotalPaise,
		Date:        bill.Date,
	}, now)
	if bill.PaidPaise > 0 {
		s.appendLedgerLocked(domain.LedgerEntry{
			ClientID:    bill.ClientID,
			BillID:      bill.RemoteID,
			Type:        domain.LedgerPayment,
			AmountPaise: bill.PaidPaise,
			Date:        bill.Date,
			Note:        "paid with bill",
		}, now)
	}

	s.bills[bill.LocalID] = cloneBill(bill)
	saved := cloneBill(bill)
	return &saved, nil
}

func (s *Store) GetBillByRemoteID(_ context.Context, remoteID string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill := s.findBillByRemote(remoteID)
	if bill == nil {
		return nil, store.ErrNotFound
	}
	return bill, nil
}

func (s *Store) ListBillsByClient(_ context.Context, clientRemoteID string) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, 16)
	for _, b := range s.bills {
		if b.State != domain.RowActive || b.ClientID != clientRemoteID {
			continue
		}
		bills = append(bills, cloneBill(b))
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int {
		if a.Date.Equal(b.Date) {
			return int(a.LocalID - b.LocalID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return bills, nil
}

func (s *Store) UpdateBillItemQuantity(_ context.Context, itemRemoteID string, quantity int) (*domain.Bill, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bill, idx := s.findBillItemLocked(itemRemoteID)
	if bill == nil {
		return nil, store.ErrNotFound
	}
	item := bill.Items[idx]
	delta := quantity - item.Quantity
	if delta == 0 {
		saved := cloneBill(*bill)
		return &saved, nil
	}

	product := s.findProductByRemote(item.ProductID)
	if product == nil {
		return nil, store.ErrNotFound
	}
	if delta > 0 && delta > product.Stock {
		return nil, store.ErrInsufficientStock
	}

	now := time.Now().UTC()
	product.Stock -= delta
	stamp(&product.SyncMeta, now)
	s.prods[product.LocalID] = *product

	totalDelta := int64(delta) * item.PricePaise
	bill.Items[idx].Quantity = quantity
	bill.TotalPaise += totalDelta
	stamp(&bill.SyncMeta, now)
	s.bills[bill.LocalID] = cloneBill(*bill)

	// Append-only correction: the original bill entry is never mutated.
	s.appendLedgerLocked(domain.LedgerEntry{
		ClientID:    bill.ClientID,
		BillID:      bill.RemoteID,
		Type:        domain.LedgerAdjustment,
		AmountPaise: -totalDelta,
		Date:        now,
		Note:        "bill item quantity correction",
	}, now)

	saved := cloneBill(*bill)
	return &saved, nil
}

func (s *Store) DeleteBillItem(_ context.Context, itemRemoteID string) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, idx := s.findBillItemLocked(itemRemoteID)
	if bill == nil {
		return nil, store.ErrNotFound
	}
	item := bill.Items[idx]

	now := time.Now().UTC()
	if product := s.findProductByRemote(item.ProductID); product != nil {
		product.Stock += item.Quantity
		stamp(&product.SyncMeta, now)
		s.prods[product.LocalID] = *product
	}

	removed := int64(item.Quantity) * item.PricePaise
	bill.Items = slices.Delete(bill.Items, idx, idx+1)
	bill.TotalPaise -= removed
	stamp(&bill.SyncMeta, now)
	s.bills[bill.LocalID] = cloneBill(*bill)

	s.appendLedgerLocked(domain.LedgerEntry{
		ClientID:    bill.ClientID,
		BillID:      bill.RemoteID,
		Type:        domain.LedgerAdjustment,
		AmountPaise: removed,
		Date:        now,
		Note:        "bill item removed",
	}, now)

	saved := cloneBill(*bill)
	return &saved, nil
}

func (s *Store) DeleteBill(_ context.Context, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill := s.findBillByRemote(remoteID)
	if bill == nil || bill.State != domain.RowActive {
		return store.ErrNotFound
	}

	now := time.Now().UTC()
	for _, item := range bill.Items {
		if product := s.findProductByRemote(item.ProductID); product != nil {
			product.Stock += item.Quantity
			stamp(&product.SyncMeta, now)
			s.prods[product.LocalID] = *product
		}
	}
	if bill.TotalPaise != 0 {
		s.appendLedgerLocked(domain.LedgerEntry{
			ClientID:    bill.ClientID,
			BillID:      bill.RemoteID,
			Type:        domain.LedgerAdjustment,
			AmountPaise: bill.TotalPaise,
			Date:        now,
			Note:        "bill deleted",
		}, now)
	}

	stamp(&bill.SyncMeta, now)
	bill.State = domain.RowTombstoned
	s.bills[bill.LocalID] = cloneBill(*bill)
	return nil
}

// Ledger.

func (s *Store) AppendLedgerEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if entry.Date.IsZero() {
		entry.Date = now
	}
	saved := s.appendLedgerLocked(entry, now)
	return &saved, nil
}

func (s *Store) appendLedgerLocked(entry domain.LedgerEntry, now time.Time) domain.LedgerEntry {
	entry.LocalID = s.nextLocalID()
	stamp(&entry.SyncMeta, now)
	if entry.Date.IsZero() {
		entry.Date = now
	}
	s.ledger[entry.LocalID] = entry
	return entry
}

func (s *Store) ListLedgerByClient(_ context.Context, clientRemoteID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LedgerEntry, 0, 32)
	for _, e := range s.ledger {
		if e.State != domain.RowActive || e.ClientID != clientRemoteID {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b domain.LedgerEntry) int {
		if a.Date.Equal(b.Date) {
			return int(a.LocalID - b.LocalID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return entries, nil
}

// Demand batches.

func (s *Store) GetOrCreateBatchForDate(_ context.Context, date time.Time) (*domain.DemandBatch, error) {
	day := domain.DateOnly(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateBatchLocked(day)
}

func (s *Store) getOrCreateBatchLocked(day time.Time) (*domain.DemandBatch, error) {
	for _, b := range s.batches {
		if b.State == domain.RowActive && b.Date.Equal(day) {
			found := cloneBatch(b)
			return &found, nil
		}
	}
	batch := domain.DemandBatch{Date: day}
	batch.LocalID = s.nextLocalID()
	stamp(&batch.SyncMeta, time.Now().UTC())
	s.batches[batch.LocalID] = cloneBatch(batch)
	created := cloneBatch(batch)
	return &created, nil
}

func (s *Store) GetBatchByRemoteID(_ context.Context, remoteID string) (*domain.DemandBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.findBatchByRemote(remoteID)
	if batch == nil {
		return nil, store.ErrNotFound
	}
	found := cloneBatch(*batch)
	return &found, nil
}

func (s *Store) ListBatches(_ context.Context, limit int) ([]domain.DemandBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 30
	}
	batches := make([]domain.DemandBatch, 0, len(s.batches))
	for _, b := range s.batches {
		if b.State != domain.RowActive {
			continue
		}
		batches = append(batches, cloneBatch(b))
	}
	slices.SortFunc(batches, func(a, b domain.DemandBatch) int {
		if a.Date.Equal(b.Date) {
			return int(b.LocalID - a.LocalID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	if len(batches) > limit {
		batches = batches[:limit]
	}
	return batches, nil
}

func (s *Store) AddDemandEntry(_ context.Context, entry domain.DemandEntry, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	if entry.Quantity < 1 || entry.BatchID == "" || entry.ClientID == "" || entry.ProductID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.findBatchByRemote(entry.BatchID)
	if batch == nil {
		return nil, store.ErrNotFound
	}
	if batch.Closed && !allowClosed {
		return nil, store.ErrBatchClosed
	}
	product := s.findProductByRemote(entry.ProductID)
	if product == nil {
		return nil, store.ErrNotFound
	}
	if entry.RemoteID == "" {
		entry.RemoteID = domain.NewUUID()
	}

	now := time.Now().UTC()
	if adjustStock {
		product.Stock += entry.Quantity
		stamp(&product.SyncMeta, now)
		s.prods[product.LocalID] = *product
	}
	batch.Entries = append(batch.Entries, entry)
	stamp(&batch.SyncMeta, now)
	s.batches[batch.LocalID] = cloneBatch(*batch)
	saved := cloneBatch(*batch)
	return &saved, nil
}

func (s *Store) UpdateDemandEntry(_ context.Context, entryRemoteID string, quantity int, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch, idx := s.findDemandEntryLocked(entryRemoteID)
	if batch == nil {
		return nil, store.ErrNotFound
	}
	if batch.Closed && !allowClosed {
		return nil, store.ErrBatchClosed
	}

	now := time.Now().UTC()
	if adjustStock {
		// Validate before touching anything: a failed compensation must
		// leave the entry untouched.
		if delta := quantity - batch.Entries[idx].Quantity; delta != 0 {
			product := s.findProductByRemote(batch.Entries[idx].ProductID)
			if product == nil {
				return nil, store.ErrNotFound
			}
			if product.Stock+delta < 0 {
				return nil, store.ErrInsufficientStock
			}
			product.Stock += delta
			stamp(&product.SyncMeta, now)
			s.prods[product.LocalID] = *product
		}
	}
	batch.Entries[idx].Quantity = quantity
	stamp(&batch.SyncMeta, now)
	s.batches[batch.LocalID] = cloneBatch(*batch)
	saved := cloneBatch(*batch)
	return &saved, nil
}

func (s *Store) RemoveDemandEntry(_ context.Context, entryRemoteID string, allowClosed, adjustStock bool) (*domain.DemandBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, idx := s.findDemandEntryLocked(entryRemoteID)
	if batch == nil {
		return nil, store.ErrNotFound
	}
	if batch.Closed && !allowClosed {
		return nil, store.ErrBatchClosed
	}

	now := time.Now().UTC()
	if adjustStock {
		product := s.findProductByRemote(batch.Entries[idx].ProductID)
		if product == nil {
			return nil, store.ErrNotFound
		}
		if product.Stock < batch.Entries[idx].Quantity {
			return nil, store.ErrInsufficientStock
		}
		product.Stock -= batch.Entries[idx].Quantity
		stamp(&product.SyncMeta, now)
		s.prods[product.LocalID] = *product
	}
	batch.Entries[idx].Deleted = true
	stamp(&batch.SyncMeta, now)
	s.batches[batch.LocalID] = cloneBatch(*batch)
	saved := cloneBatch(*batch)
	return &saved, nil
}

func (s *Store) CloseBatch(_ context.Context, batchRemoteID string, opts domain.CloseBatchOptions) (*domain.DemandBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.findBatchByRemote(batchRemoteID)
	if batch == nil {
		return nil, store.ErrNotFound
	}
	if batch.Closed {
		// Idempotent: closing twice never double-applies stock.
		closed := cloneBatch(*batch)
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
			product := s.findProductByRemote(productID)
			if product == nil {
				continue
			}
			// Incoming goods: closing the day's purchase order replenishes stock.
			product.Stock += qty
			stamp(&product.SyncMeta, now)
			s.prods[product.LocalID] = *product
		}
	}

	stamp(&batch.SyncMeta, now)
	batch.Closed = true
	s.batches[batch.LocalID] = cloneBatch(*batch)

	if opts.CreateNextDay {
		if _, err := s.getOrCreateBatchLocked(batch.Date.Add(24 * time.Hour)); err != nil {
			return nil, err
		}
	}

	closed := cloneBatch(*batch)
	return &closed, nil
}

// Sync support.

func (s *Store) DirtyClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Client, 0, 8)
	for _, c := range s.clients {
		if c.Dirty {
			out = append(out, c)
		}
	}
	sortByLocalID(out, func(c domain.Client) int64 { return c.LocalID })
	return out, nil
}

func (s *Store) DirtyProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, 8)
	for _, p := range s.prods {
		if p.Dirty {
			out = append(out, p)
		}
	}
	sortByLocalID(out, func(p domain.Product) int64 { return p.LocalID })
	return out, nil
}

func (s *Store) DirtyBills(_ context.Context) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bill, 0, 8)
	for _, b := range s.bills {
		if b.Dirty {
			out = append(out, cloneBill(b))
		}
	}
	sortByLocalID(out, func(b domain.Bill) int64 { return b.LocalID })
	return out, nil
}

func (s *Store) DirtyBatches(_ context.Context) ([]domain.DemandBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DemandBatch, 0, 8)
	for _, b := range s.batches {
		if b.Dirty {
			out = append(out, cloneBatch(b))
		}
	}
	sortByLocalID(out, func(b domain.DemandBatch) int64 { return b.LocalID })
	return out, nil
}

func (s *Store) DirtyLedger(_ context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LedgerEntry, 0, 8)
	for _, e := range s.ledger {
		if e.Dirty {
			out = append(out, e)
		}
	}
	sortByLocalID(out, func(e domain.LedgerEntry) int64 { return e.LocalID })
	return out, nil
}

func (s *Store) ReconcileClient(_ context.Context, client domain.Client) error {
	if client.RemoteID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findClientByRemote(client.RemoteID); existing != nil {
		client.LocalID = existing.LocalID
	} else {
		client.LocalID = s.nextLocalID()
	}
	client.Dirty = false
	client.State = domain.RowActive
	s.clients[client.LocalID] = client
	return nil
}

func (s *Store) ReconcileProduct(_ context.Context, product domain.Product) error {
	if product.RemoteID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findProductByRemote(product.RemoteID); existing != nil {
		product.LocalID = existing.LocalID
	} else {
		product.LocalID = s.nextLocalID()
	}
	product.Dirty = false
	product.State = domain.RowActive
	s.prods[product.LocalID] = product
	return nil
}

func (s *Store) ReconcileBill(_ context.Context, bill domain.Bill) error {
	if bill.RemoteID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findBillByRemote(bill.RemoteID); existing != nil {
		bill.LocalID = existing.LocalID
	} else {
		bill.LocalID = s.nextLocalID()
	}
	bill.Dirty = false
	bill.State = domain.RowActive
	s.bills[bill.LocalID] = cloneBill(bill)
	return nil
}

func (s *Store) ReconcileBatch(_ context.Context, batch domain.DemandBatch) error {
	if batch.RemoteID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findBatchByRemote(batch.RemoteID); existing != nil {
		batch.LocalID = existing.LocalID
	} else {
		batch.LocalID = s.nextLocalID()
	}
	batch.Dirty = false
	batch.State = domain.RowActive
	s.batches[batch.LocalID] = cloneBatch(batch)
	return nil
}

func (s *Store) ReconcileLedgerEntry(_ context.Context, entry domain.LedgerEntry) error {
	if entry.RemoteID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for id, e := range s.ledger {
		if e.RemoteID == entry.RemoteID {
			entry.LocalID = id
			found = true
			break
		}
	}
	if !found {
		entry.LocalID = s.nextLocalID()
	}
	entry.Dirty = false
	entry.State = domain.RowActive
	s.ledger[entry.LocalID] = entry
	return nil
}

func (s *Store) MarkSynced(_ context.Context, entity domain.EntityType, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch entity {
	case domain.EntityClients:
		if c, ok := s.clients[localID]; ok {
			c.Dirty = false
			s.clients[localID] = c
			return nil
		}
	case domain.EntityProducts:
		if p, ok := s.prods[localID]; ok {
			p.Dirty = false
			s.prods[localID] = p
			return nil
		}
	case domain.EntityBills:
		if b, ok := s.bills[localID]; ok {
			b.Dirty = false
			s.bills[localID] = b
			return nil
		}
	case domain.EntityDemandBatches:
		if b, ok := s.batches[localID]; ok {
			b.Dirty = false
			s.batches[localID] = b
			return nil
		}
	case domain.EntityLedger:
		if e, ok := s.ledger[localID]; ok {
			e.Dirty = false
			s.ledger[localID] = e
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) PurgeTombstone(_ context.Context, entity domain.EntityType, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch entity {
	case domain.EntityClients:
		if c, ok := s.clients[localID]; ok && c.State == domain.RowTombstoned {
			delete(s.clients, localID)
			return nil
		}
	case domain.EntityProducts:
		if p, ok := s.prods[localID]; ok && p.State == domain.RowTombstoned {
			delete(s.prods, localID)
			return nil
		}
	case domain.EntityBills:
		if b, ok := s.bills[localID]; ok && b.State == domain.RowTombstoned {
			delete(s.bills, localID)
			return nil
		}
	case domain.EntityDemandBatches:
		if b, ok := s.batches[localID]; ok && b.State == domain.RowTombstoned {
			delete(s.batches, localID)
			return nil
		}
	case domain.EntityLedger:
		if e, ok := s.ledger[localID]; ok && e.State == domain.RowTombstoned {
			delete(s.ledger, localID)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) MarkAllDirty(_ context.Context, entity domain.EntityType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	switch entity {
	case domain.EntityClients:
		for id, c := range s.clients {
			c.Dirty = true
			s.clients[id] = c
			count++
		}
	case domain.EntityProducts:
		for id, p := range s.prods {
			p.Dirty = true
			s.prods[id] = p
			count++
		}
	case domain.EntityBills:
		for id, b := range s.bills {
			b.Dirty = true
			s.bills[id] = b
			count++
		}
	case domain.EntityDemandBatches:
		for id, b := range s.batches {
			b.Dirty = true
			s.batches[id] = b
			count++
		}
	case domain.EntityLedger:
		for id, e := range s.ledger {
			e.Dirty = true
			s.ledger[id] = e
			count++
		}
	default:
		return 0, store.ErrInvalidInput
	}
	return count, nil
}

func (s *Store) SyncCounts(_ context.Context, entity domain.EntityType) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, unsynced := 0, 0
	count := func(dirty bool) {
		total++
		if dirty {
			unsynced++
		}
	}
	switch entity {
	case domain.EntityClients:
		for _, c := range s.clients {
			count(c.Dirty)
		}
	case domain.EntityProducts:
		for _, p := range s.prods {
			count(p.Dirty)
		}
	case domain.EntityBills:
		for _, b := range s.bills {
			count(b.Dirty)
		}
	case domain.EntityDemandBatches:
		for _, b := range s.batches {
			count(b.Dirty)
		}
	case domain.EntityLedger:
		for _, e := range s.ledger {
			count(e.Dirty)
		}
	default:
		return 0, 0, store.ErrInvalidInput
	}
	return total, unsynced, nil
}

func (s *Store) SyncCursor(_ context.Context, entity domain.EntityType) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[entity], nil
}

func (s *Store) SetSyncCursor(_ context.Context, entity domain.EntityType, cursor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[entity] = cursor
	return nil
}

// Internal lookups. Callers hold the lock.

func (s *Store) findClientByRemote(remoteID string) *domain.Client {
	for _, c := range s.clients {
		if c.RemoteID == remoteID {
			found := c
			return &found
		}
	}
	return nil
}

func (s *Store) findProductByRemote(remoteID string) *domain.Product {
	for _, p := range s.prods {
		if p.RemoteID == remoteID {
			found := p
			return &found
		}
	}
	return nil
}

func (s *Store) findBillByRemote(remoteID string) *domain.Bill {
	for _, b := range s.bills {
		if b.RemoteID == remoteID {
			found := cloneBill(b)
			return &found
		}
	}
	return nil
}

func (s *Store) findBatchByRemote(remoteID string) *domain.DemandBatch {
	for _, b := range s.batches {
		if b.RemoteID == remoteID {
			found := cloneBatch(b)
			return &found
		}
	}
	return nil
}

func (s *Store) findBillItemLocked(itemRemoteID string) (*domain.Bill, int) {
	for _, b := range s.bills {
		if b.State != domain.RowActive {
			continue
		}
		for i, item := range b.Items {
			if item.RemoteID == itemRemoteID {
				bill := cloneBill(b)
				return &bill, i
			}
		}
	}
	return nil, -1
}

func (s *Store) findDemandEntryLocked(entryRemoteID string) (*domain.DemandBatch, int) {
	for _, b := range s.batches {
		if b.State != domain.RowActive {
			continue
		}
		for i, entry := range b.Entries {
			if entry.RemoteID == entryRemoteID && !entry.Deleted {
				batch := cloneBatch(b)
				return &batch, i
			}
		}
	}
	return nil, -1
}

func sortByLocalID[T any](items []T, id func(T) int64) {
	slices.SortFunc(items, func(a, b T) int {
		return int(id(a) - id(b))
	})
}

func cloneBill(src domain.Bill) domain.Bill {
	dup := src
	items := make([]domain.BillItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneBatch(src domain.DemandBatch) domain.DemandBatch {
	dup := src
	entries := make([]domain.DemandEntry, len(src.Entries))
	copy(entries, src.Entries)
	dup.Entries = entries
	return dup
}
