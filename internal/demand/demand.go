// Package demand manages the daily demand batch: the rolled-up
// purchase order the shop places with its suppliers each morning.
// While a batch is open entries move freely; closing it optionally
// replenishes stock and rolls an empty batch for the next day. Edits
// after close go through explicit amendment calls that compensate
// stock, never through the normal paths.
package demand

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

type Service struct {
	repo store.Repository
	logg *logrus.Logger
}

func New(repo store.Repository, logg *logrus.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// BatchForDate returns the batch for the calendar day, creating an
// open one if none exists.
func (s *Service) BatchForDate(ctx context.Context, date time.Time) (*domain.DemandBatch, error) {
	return s.repo.GetOrCreateBatchForDate(ctx, date)
}

func (s *Service) Batch(ctx context.Context, remoteID string) (*domain.DemandBatch, error) {
	if remoteID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetBatchByRemoteID(ctx, remoteID)
}

func (s *Service) RecentBatches(ctx context.Context, limit int) ([]domain.DemandBatch, error) {
	return s.repo.ListBatches(ctx, limit)
}

// AddEntry appends a client demand line to an open batch.
func (s *Service) AddEntry(ctx context.Context, entry domain.DemandEntry) (*domain.DemandBatch, error) {
	return s.repo.AddDemandEntry(ctx, entry, false, false)
}

// UpdateEntry changes the quantity of a line in an open batch.
func (s *Service) UpdateEntry(ctx context.Context, entryRemoteID string, quantity int) (*domain.DemandBatch, error) {
	return s.repo.UpdateDemandEntry(ctx, entryRemoteID, quantity, false, false)
}

// RemoveEntry soft-deletes a line in an open batch. The row survives
// for sync; totals skip it.
func (s *Service) RemoveEntry(ctx context.Context, entryRemoteID string) (*domain.DemandBatch, error) {
	return s.repo.RemoveDemandEntry(ctx, entryRemoteID, false, false)
}

// Close finalizes the batch. With DeductStock set the aggregated
// quantities are added to product stock as incoming goods; with
// CreateNextDay set an open batch for the following day is created.
// Closing an already-closed batch is a no-op and never moves stock
// twice.
func (s *Service) Close(ctx context.Context, batchRemoteID string, opts domain.CloseBatchOptions) (*domain.DemandBatch, error) {
	if batchRemoteID == "" {
		return nil, store.ErrInvalidInput
	}
	batch, err := s.repo.CloseBatch(ctx, batchRemoteID, opts)
	if err != nil {
		return nil, err
	}

	s.logg.WithFields(logrus.Fields{
		"batch":        batch.RemoteID,
		"date":         batch.Date.Format("2006-01-02"),
		"entries":      len(batch.Entries),
		"deduct_stock": opts.DeductStock,
	}).Info("demand batch closed")
	return batch, nil
}

// Totals aggregates live entry quantities per product, the numbers the
// supplier order is placed from.
func (s *Service) Totals(ctx context.Context, batchRemoteID string) (map[string]int, error) {
	batch, err := s.Batch(ctx, batchRemoteID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int)
	for _, entry := range batch.Entries {
		if entry.Deleted {
			continue
		}
		totals[entry.ProductID] += entry.Quantity
	}
	return totals, nil
}

// ClientTotals aggregates a batch per client and product, the shape of
// the morning order sheet: for each client, how much of each product to
// pack.
func (s *Service) ClientTotals(ctx context.Context, batchRemoteID string) (map[string]map[string]int, error) {
	batch, err := s.Batch(ctx, batchRemoteID)
	if err != nil {
		return nil, err
	}
	sheet := make(map[string]map[string]int)
	for _, entry := range batch.Entries {
		if entry.Deleted {
			continue
		}
		if sheet[entry.ClientID] == nil {
			sheet[entry.ClientID] = make(map[string]int)
		}
		sheet[entry.ClientID][entry.ProductID] += entry.Quantity
	}
	return sheet, nil
}

// AmendClosedEntry corrects a line after close. When adjustStock is set
// the stock applied at close is compensated by the quantity delta in
// the same repository transaction, so the shelf count still matches
// what actually arrived and a refused compensation leaves the line
// untouched.
func (s *Service) AmendClosedEntry(ctx context.Context, batchRemoteID, entryRemoteID string, quantity int, adjustStock bool) (*domain.DemandBatch, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	batch, err := s.Batch(ctx, batchRemoteID)
	if err != nil {
		return nil, err
	}
	if !batch.Closed {
		return s.UpdateEntry(ctx, entryRemoteID, quantity)
	}
	return s.repo.UpdateDemandEntry(ctx, entryRemoteID, quantity, true, adjustStock)
}

// AddEntryToClosed appends a late line to a closed batch, optionally
// counting it into stock as extra incoming goods.
func (s *Service) AddEntryToClosed(ctx context.Context, entry domain.DemandEntry, adjustStock bool) (*domain.DemandBatch, error) {
	batch, err := s.Batch(ctx, entry.BatchID)
	if err != nil {
		return nil, err
	}
	return s.repo.AddDemandEntry(ctx, entry, true, adjustStock && batch.Closed)
}

// RemoveClosedEntry drops a line after close, optionally taking its
// quantity back out of stock atomically with the delete.
func (s *Service) RemoveClosedEntry(ctx context.Context, batchRemoteID, entryRemoteID string, adjustStock bool) (*domain.DemandBatch, error) {
	batch, err := s.Batch(ctx, batchRemoteID)
	if err != nil {
		return nil, err
	}
	if !batch.Closed {
		return s.RemoveEntry(ctx, entryRemoteID)
	}
	return s.repo.RemoveDemandEntry(ctx, entryRemoteID, true, adjustStock)
}
