// Package catalog is the service layer for clients and products: the
// master data every bill and demand entry refers to.
package catalog

import (
	"context"
	"strings"

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

// Clients.

func (s *Service) SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	client.Phone = strings.TrimSpace(client.Phone)
	if client.Name == "" {
		return nil, store.ErrInvalidInput
	}
	saved, err := s.repo.SaveClient(ctx, client)
	if err != nil {
		return nil, err
	}
	s.logg.WithFields(logrus.Fields{"client": saved.RemoteID, "name": saved.Name}).Info("client saved")
	return saved, nil
}

func (s *Service) Client(ctx context.Context, remoteID string) (*domain.Client, error) {
	if remoteID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetClientByRemoteID(ctx, remoteID)
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

// DeleteClient tombstones the client. History referring to it stays
// intact; the row disappears from listings and is removed from the
// mirror on the next sync.
func (s *Service) DeleteClient(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteClient(ctx, remoteID)
}

// Products.

func (s *Service) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PricePaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.UnitGrams < 0 || product.CostPaise < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	saved, err := s.repo.SaveProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logg.WithFields(logrus.Fields{"product": saved.RemoteID, "name": saved.Name}).Info("product saved")
	return saved, nil
}

func (s *Service) Product(ctx context.Context, remoteID string) (*domain.Product, error) {
	if remoteID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductByRemoteID(ctx, remoteID)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) DeleteProduct(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteProduct(ctx, remoteID)
}

// AdjustStock applies a manual stock correction, e.g. after a physical
// count. Billing and batch close move stock on their own; this is only
// for corrections.
func (s *Service) AdjustStock(ctx context.Context, productRemoteID string, delta int) (*domain.Product, error) {
	if productRemoteID == "" || delta == 0 {
		return nil, store.ErrInvalidInput
	}
	product, err := s.repo.AdjustStock(ctx, productRemoteID, delta)
	if err != nil {
		return nil, err
	}
	s.logg.WithFields(logrus.Fields{
		"product": product.RemoteID,
		"delta":   delta,
		"stock":   product.Stock,
	}).Info("stock adjusted")
	return product, nil
}
