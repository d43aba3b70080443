package services

import (
	"context"
	"fmt"
	"io"

	"sierraspos/internal/domain"
	"sierraspos/internal/media"
	"sierraspos/internal/repos"
	"sierraspos/internal/validate"
)

type CatalogService struct {
	Prods *repos.ProductRepo
	Media *media.Store
}

func NewCatalogService(prods *repos.ProductRepo, m *media.Store) *CatalogService {
	return &CatalogService{Prods: prods, Media: m}
}

func (s *CatalogService) List(ctx context.Context, onlyActive bool) ([]domain.Product, error) {
	return s.Prods.List(ctx, onlyActive)
}

func (s *CatalogService) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.Prods.Categories(ctx)
}

func cleanProduct(p domain.Product) (domain.Product, error) {
	var ok bool
	if p.Name, ok = validate.Name(p.Name); !ok {
		return p, fmt.Errorf("product name: %w", domain.ErrInvalidInput)
	}
	if p.Price < 0 || p.Cost < 0 {
		return p, fmt.Errorf("price and cost cannot be negative: %w", domain.ErrInvalidInput)
	}
	if p.Category == "" {
		p.Category = "General"
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p, err := cleanProduct(p)
	if err != nil {
		return p, err
	}
	id, err := s.Prods.Create(ctx, p)
	if err != nil {
		return p, err
	}
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	p, err := cleanProduct(p)
	if err != nil {
		return p, err
	}
	if err := s.Prods.Update(ctx, p); err != nil {
		return p, err
	}
	return s.Prods.Get(ctx, p.ID)
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	return s.Prods.Delete(ctx, id)
}

// SetPhoto stores an uploaded image and points the product at it.
func (s *CatalogService) SetPhoto(ctx context.Context, id int64, filename string, r io.Reader) (string, error) {
	if _, err := s.Prods.Get(ctx, id); err != nil {
		return "", err
	}
	url, err := s.Media.SaveImage(fmt.Sprintf("product-%d", id), filename, r)
	if err != nil {
		return "", err
	}
	return url, s.Prods.SetPhoto(ctx, id, url)
}
