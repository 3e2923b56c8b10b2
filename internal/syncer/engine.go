// Package syncer moves rows between the local store and the remote
// mirror. Push sends dirty rows and clears their flag; pull applies
// remote changes past the per-type cursor. Conflicts resolve by
// last-writer-wins on UpdatedAt, and a failure in one entity type never
// blocks the others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/auth"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/mirror"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

// BalanceInvalidator drops a client's cached balance. Pulled ledger and
// bill documents change what a client owes, so the engine flushes the
// cache the same way local billing writes do.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, clientID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) {}

type Engine struct {
	repo     store.Repository
	remote   mirror.Mirror
	gate     auth.Gate
	balances BalanceInvalidator
	logg     *logrus.Logger

	// One sync at a time. A second caller waits rather than interleaving
	// cursor updates with the first.
	mu sync.Mutex
}

func New(repo store.Repository, remote mirror.Mirror, gate auth.Gate, balances BalanceInvalidator, logg *logrus.Logger) *Engine {
	if gate == nil {
		gate = auth.StaticGate{Open: true}
	}
	if balances == nil {
		balances = noopInvalidator{}
	}
	return &Engine{repo: repo, remote: remote, gate: gate, balances: balances, logg: logg}
}

// plan wires one entity type through the generic push/pull machinery.
type plan[T any] struct {
	entity    domain.EntityType
	dirty     func(context.Context) ([]T, error)
	meta      func(T) domain.SyncMeta
	encode    func(T) mirror.Document
	decode    func(mirror.Document) (T, error)
	reconcile func(context.Context, T) error
	// localMeta reports the local row's envelope for conflict checks.
	localMeta func(context.Context, string) (*domain.SyncMeta, error)
}

// SyncAll pushes and pulls every entity type in dependency order, so a
// bill never lands on a device before the client it references. Each
// type gets its own result; one failing type does not stop the rest.
func (e *Engine) SyncAll(ctx context.Context) map[domain.EntityType]domain.SyncResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make(map[domain.EntityType]domain.SyncResult, len(domain.SyncOrder))
	if blocked, result := e.preflight(ctx); blocked {
		for _, entity := range domain.SyncOrder {
			results[entity] = result
		}
		return results
	}

	for _, entity := range domain.SyncOrder {
		results[entity] = e.syncEntity(ctx, entity)
	}
	return results
}

// SyncType syncs a single entity type. Referential consistency is the
// caller's problem here; SyncAll is the safe default.
func (e *Engine) SyncType(ctx context.Context, entity domain.EntityType) domain.SyncResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if blocked, result := e.preflight(ctx); blocked {
		return result
	}
	return e.syncEntity(ctx, entity)
}

func (e *Engine) preflight(ctx context.Context) (bool, domain.SyncResult) {
	if !e.gate.Allowed(ctx) {
		reason := e.gate.Reason()
		e.logg.WithField("reason", reason).Warn("sync blocked")
		return true, domain.SyncResult{Success: false, Message: "sync locked: " + reason}
	}
	if err := e.remote.Ping(ctx); err != nil {
		e.logg.WithField("err", err).Warn("mirror unreachable, staying local")
		return true, domain.SyncResult{Success: false, Message: "mirror unreachable"}
	}
	return false, domain.SyncResult{}
}

func (e *Engine) syncEntity(ctx context.Context, entity domain.EntityType) domain.SyncResult {
	switch entity {
	case domain.EntityClients:
		return runSync(ctx, e, e.clientPlan())
	case domain.EntityProducts:
		return runSync(ctx, e, e.productPlan())
	case domain.EntityBills:
		return runSync(ctx, e, e.billPlan())
	case domain.EntityDemandBatches:
		return runSync(ctx, e, e.batchPlan())
	case domain.EntityLedger:
		return runSync(ctx, e, e.ledgerPlan())
	}
	return domain.SyncResult{Success: false, Message: fmt.Sprintf("unknown entity type %q", entity)}
}

func runSync[T any](ctx context.Context, e *Engine, p plan[T]) domain.SyncResult {
	pushed, pushErrs := pushType(ctx, e, p)
	pulled, pullErrs := pullType(ctx, e, p)

	failures := pushErrs + pullErrs
	message := fmt.Sprintf("pushed %d, pulled %d", pushed, pulled)
	if failures > 0 {
		message = fmt.Sprintf("%s, %d failures", message, failures)
	}

	e.logg.WithFields(logrus.Fields{
		"entity":   p.entity,
		"pushed":   pushed,
		"pulled":   pulled,
		"failures": failures,
	}).Info("sync pass finished")
	return domain.SyncResult{Success: failures == 0, Message: message}
}

// pushType uploads dirty rows. Tombstones become remote deletes and are
// purged locally once acknowledged. Any failure leaves the row dirty
// for the next pass.
func pushType[T any](ctx context.Context, e *Engine, p plan[T]) (pushed, failures int) {
	rows, err := p.dirty(ctx)
	if err != nil {
		e.logg.WithFields(logrus.Fields{"entity": p.entity, "err": err}).Error("listing dirty rows failed")
		return 0, 1
	}

	for _, row := range rows {
		meta := p.meta(row)
		if meta.State == domain.RowTombstoned {
			if err := e.remote.Delete(ctx, string(p.entity), meta.RemoteID); err != nil {
				e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": meta.RemoteID, "err": err}).
					Warn("tombstone push failed")
				failures++
				continue
			}
			if err := e.repo.PurgeTombstone(ctx, p.entity, meta.LocalID); err != nil {
				e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": meta.RemoteID, "err": err}).
					Error("tombstone purge failed")
				failures++
				continue
			}
			pushed++
			continue
		}

		if err := e.remote.Upsert(ctx, string(p.entity), p.encode(row)); err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": meta.RemoteID, "err": err}).
				Warn("push failed, row stays dirty")
			failures++
			continue
		}
		if err := e.repo.MarkSynced(ctx, p.entity, meta.LocalID); err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": meta.RemoteID, "err": err}).
				Error("marking row synced failed")
			failures++
			continue
		}
		pushed++
	}
	return pushed, failures
}

// pullType applies remote changes past the cursor. A dirty local row
// with an equal or newer UpdatedAt wins and is left alone to push
// later; otherwise the remote version is reconciled verbatim. Malformed
// documents are logged and skipped so one bad row cannot wedge the
// type.
func pullType[T any](ctx context.Context, e *Engine, p plan[T]) (pulled, failures int) {
	cursor, err := e.repo.SyncCursor(ctx, p.entity)
	if err != nil {
		e.logg.WithFields(logrus.Fields{"entity": p.entity, "err": err}).Error("reading sync cursor failed")
		return 0, 1
	}
	docs, err := e.remote.ChangedSince(ctx, string(p.entity), cursor)
	if err != nil {
		e.logg.WithFields(logrus.Fields{"entity": p.entity, "err": err}).Warn("pulling changes failed")
		return 0, 1
	}

	// The cursor advances only up to the last document handled before
	// the first failure, so a transiently failing document is re-pulled
	// on the next pass instead of being lost until its next remote edit.
	next := cursor
	blocked := false
	advance := func(stamp time.Time) {
		if !blocked && stamp.After(next) {
			next = stamp
		}
	}
	for _, doc := range docs {
		local, err := p.localMeta(ctx, doc.RemoteID)
		if err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": doc.RemoteID, "err": err}).
				Error("local lookup failed")
			failures++
			blocked = true
			continue
		}
		if local != nil && local.Dirty && !local.UpdatedAt.Before(doc.UpdatedAt) {
			// Local edit is as new or newer: keep it, it pushes next pass.
			e.logg.WithFields(logrus.Fields{
				"entity":    p.entity,
				"remote_id": doc.RemoteID,
				"local":     local.UpdatedAt.Format(time.RFC3339Nano),
				"remote":    doc.UpdatedAt.Format(time.RFC3339Nano),
			}).Warn("conflict: local version wins")
			advance(doc.UpdatedAt)
			continue
		}
		if local != nil && local.Dirty {
			e.logg.WithFields(logrus.Fields{
				"entity":    p.entity,
				"remote_id": doc.RemoteID,
				"local":     local.UpdatedAt.Format(time.RFC3339Nano),
				"remote":    doc.UpdatedAt.Format(time.RFC3339Nano),
			}).Warn("conflict: remote version wins, local edit discarded")
		}

		row, err := p.decode(doc)
		if err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": doc.RemoteID, "err": err}).
				Warn("skipping malformed document")
			failures++
			blocked = true
			continue
		}
		if err := p.reconcile(ctx, row); err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "remote_id": doc.RemoteID, "err": err}).
				Error("reconcile failed")
			failures++
			blocked = true
			continue
		}
		pulled++
		advance(doc.UpdatedAt)
	}

	if next.After(cursor) {
		if err := e.repo.SetSyncCursor(ctx, p.entity, next); err != nil {
			e.logg.WithFields(logrus.Fields{"entity": p.entity, "err": err}).Error("advancing sync cursor failed")
			failures++
		}
	}
	return pulled, failures
}

// Status reports per-type sync progress plus connectivity and session
// state, without moving any data.
func (e *Engine) Status(ctx context.Context) (*domain.SyncStatus, error) {
	status := &domain.SyncStatus{
		PerType: make(map[domain.EntityType]domain.TypeStatus, len(domain.SyncOrder)),
	}
	for _, entity := range domain.SyncOrder {
		total, unsynced, err := e.repo.SyncCounts(ctx, entity)
		if err != nil {
			return nil, err
		}
		percent := 100.0
		if total > 0 {
			percent = float64(total-unsynced) / float64(total) * 100
		}
		status.PerType[entity] = domain.TypeStatus{
			Total:         total,
			Unsynced:      unsynced,
			SyncedPercent: percent,
		}
	}
	status.HasConnection = e.remote.Ping(ctx) == nil
	status.IsAuthenticated = e.gate.Allowed(ctx)
	return status, nil
}

// ForceUploadAll queues every row for re-upload and runs a full sync.
// UpdatedAt stamps are left untouched, so re-uploaded rows still lose
// conflicts to genuinely newer remote versions.
func (e *Engine) ForceUploadAll(ctx context.Context) (int, map[domain.EntityType]domain.SyncResult, error) {
	marked := 0
	for _, entity := range domain.SyncOrder {
		count, err := e.repo.MarkAllDirty(ctx, entity)
		if err != nil {
			return marked, nil, err
		}
		marked += count
	}
	e.logg.WithField("rows", marked).Info("force upload: all rows queued")
	return marked, e.SyncAll(ctx), nil
}

// Per-entity plans.

func (e *Engine) clientPlan() plan[domain.Client] {
	return plan[domain.Client]{
		entity:    domain.EntityClients,
		dirty:     e.repo.DirtyClients,
		meta:      func(c domain.Client) domain.SyncMeta { return c.SyncMeta },
		encode:    encodeClient,
		decode:    decodeClient,
		reconcile: e.repo.ReconcileClient,
		localMeta: func(ctx context.Context, remoteID string) (*domain.SyncMeta, error) {
			client, err := e.repo.GetClientByRemoteID(ctx, remoteID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return &client.SyncMeta, nil
		},
	}
}

func (e *Engine) productPlan() plan[domain.Product] {
	return plan[domain.Product]{
		entity:    domain.EntityProducts,
		dirty:     e.repo.DirtyProducts,
		meta:      func(p domain.Product) domain.SyncMeta { return p.SyncMeta },
		encode:    encodeProduct,
		decode:    decodeProduct,
		reconcile: e.repo.ReconcileProduct,
		localMeta: func(ctx context.Context, remoteID string) (*domain.SyncMeta, error) {
			product, err := e.repo.GetProductByRemoteID(ctx, remoteID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return &product.SyncMeta, nil
		},
	}
}

func (e *Engine) billPlan() plan[domain.Bill] {
	return plan[domain.Bill]{
		entity:    domain.EntityBills,
		dirty:     e.repo.DirtyBills,
		meta:      func(b domain.Bill) domain.SyncMeta { return b.SyncMeta },
		encode: encodeBill,
		decode: decodeBill,
		reconcile: func(ctx context.Context, bill domain.Bill) error {
			if err := e.repo.ReconcileBill(ctx, bill); err != nil {
				return err
			}
			e.balances.Invalidate(ctx, bill.ClientID)
			return nil
		},
		localMeta: func(ctx context.Context, remoteID string) (*domain.SyncMeta, error) {
			bill, err := e.repo.GetBillByRemoteID(ctx, remoteID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return &bill.SyncMeta, nil
		},
	}
}

func (e *Engine) batchPlan() plan[domain.DemandBatch] {
	return plan[domain.DemandBatch]{
		entity:    domain.EntityDemandBatches,
		dirty:     e.repo.DirtyBatches,
		meta:      func(b domain.DemandBatch) domain.SyncMeta { return b.SyncMeta },
		encode:    encodeBatch,
		decode:    decodeBatch,
		reconcile: e.repo.ReconcileBatch,
		localMeta: func(ctx context.Context, remoteID string) (*domain.SyncMeta, error) {
			batch, err := e.repo.GetBatchByRemoteID(ctx, remoteID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return &batch.SyncMeta, nil
		},
	}
}

func (e *Engine) ledgerPlan() plan[domain.LedgerEntry] {
	return plan[domain.LedgerEntry]{
		entity:    domain.EntityLedger,
		dirty:     e.repo.DirtyLedger,
		meta:      func(l domain.LedgerEntry) domain.SyncMeta { return l.SyncMeta },
		encode: encodeLedgerEntry,
		decode: decodeLedgerEntry,
		// A pulled entry changes the client's balance, so the cached
		// value has to go.
		reconcile: func(ctx context.Context, entry domain.LedgerEntry) error {
			if err := e.repo.ReconcileLedgerEntry(ctx, entry); err != nil {
				return err
			}
			e.balances.Invalidate(ctx, entry.ClientID)
			return nil
		},
		// Ledger entries are append-only and never edited, so the only
		// conflict that matters is an unpushed local row, which the mirror
		// cannot return. Dirty rows are checked anyway for safety.
		localMeta: func(ctx context.Context, remoteID string) (*domain.SyncMeta, error) {
			entries, err := e.repo.DirtyLedger(ctx)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				if entry.RemoteID == remoteID {
					meta := entry.SyncMeta
					return &meta, nil
				}
			}
			return nil, nil
		},
	}
}
