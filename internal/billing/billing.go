// Package billing is the service layer for bills, payments and
// credits. Validation and orchestration live here; the atomic
// stock-and-ledger semantics live in the store so a crash can never
// leave a bill half applied.
package billing

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/ledger"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

type Service struct {
	repo     store.Repository
	balances *ledger.Calculator
	logg     *logrus.Logger
}

func New(repo store.Repository, balances *ledger.Calculator, logg *logrus.Logger) *Service {
	return &Service{repo: repo, balances: balances, logg: logg}
}

// CreateBill validates the request and applies the sale atomically:
// stock is checked and decremented, the bill recorded, and a ledger
// entry appended, all in one transaction.
func (s *Service) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	if bill.ClientID == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if bill.PaidPaise < 0 {
		return nil, store.ErrInvalidInput
	}
	for _, item := range bill.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
	}

	created, err := s.repo.CreateBill(ctx, bill)
	if err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, created.ClientID)

	s.logg.WithFields(logrus.Fields{
		"bill":        created.RemoteID,
		"client":      created.ClientID,
		"total_paise": created.TotalPaise,
		"items":       len(created.Items),
	}).Info("bill created")
	return created, nil
}

func (s *Service) GetBill(ctx context.Context, remoteID string) (*domain.Bill, error) {
	if remoteID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetBillByRemoteID(ctx, remoteID)
}

func (s *Service) ListBillsByClient(ctx context.Context, clientRemoteID string) ([]domain.Bill, error) {
	if clientRemoteID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListBillsByClient(ctx, clientRemoteID)
}

// UpdateItemQuantity corrects a line on an existing bill. Stock and the
// bill total move by the difference, and the ledger gains a signed
// adjustment entry so history stays append-only.
func (s *Service) UpdateItemQuantity(ctx context.Context, itemRemoteID string, quantity int) (*domain.Bill, error) {
	if itemRemoteID == "" || quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	bill, err := s.repo.UpdateBillItemQuantity(ctx, itemRemoteID, quantity)
	if err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, bill.ClientID)
	return bill, nil
}

// DeleteItem removes a line from a bill, restoring its stock and
// reducing the client's balance by the line amount.
func (s *Service) DeleteItem(ctx context.Context, itemRemoteID string) (*domain.Bill, error) {
	if itemRemoteID == "" {
		return nil, store.ErrInvalidInput
	}
	bill, err := s.repo.DeleteBillItem(ctx, itemRemoteID)
	if err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, bill.ClientID)
	return bill, nil
}

// DeleteBill reverses a whole bill: stock comes back, the balance drops
// by the remaining total, and the bill row is tombstoned for sync.
func (s *Service) DeleteBill(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return store.ErrInvalidInput
	}
	bill, err := s.repo.GetBillByRemoteID(ctx, remoteID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBill(ctx, remoteID); err != nil {
		return err
	}
	s.balances.Invalidate(ctx, bill.ClientID)

	s.logg.WithFields(logrus.Fields{"bill": remoteID, "client": bill.ClientID}).Info("bill deleted")
	return nil
}

// RecordPayment appends a payment entry reducing what the client owes.
// Overpayment is allowed; the balance simply goes negative (the shop
// owes the client).
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (*domain.LedgerEntry, error) {
	if req.ClientID == "" || req.AmountPaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.repo.GetClientByRemoteID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	entry, err := s.repo.AppendLedgerEntry(ctx, domain.LedgerEntry{
		ClientID:        req.ClientID,
		Type:            domain.LedgerPayment,
		AmountPaise:     req.AmountPaise,
		Note:            strings.TrimSpace(req.Note),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
	})
	if err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, req.ClientID)

	s.logg.WithFields(logrus.Fields{
		"client":       req.ClientID,
		"amount_paise": req.AmountPaise,
		"method":       req.PaymentMethod,
	}).Info("payment recorded")
	return entry, nil
}

// RecordCredit grants a goodwill credit, e.g. for returned or spoiled
// goods, reducing the balance without any cash changing hands.
func (s *Service) RecordCredit(ctx context.Context, clientID string, amountPaise int64, note string) (*domain.LedgerEntry, error) {
	if clientID == "" || amountPaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.repo.GetClientByRemoteID(ctx, clientID); err != nil {
		return nil, err
	}

	entry, err := s.repo.AppendLedgerEntry(ctx, domain.LedgerEntry{
		ClientID:    clientID,
		Type:        domain.LedgerCredit,
		AmountPaise: amountPaise,
		Note:        strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, clientID)
	return entry, nil
}
