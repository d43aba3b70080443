package services

import (
	"context"

	"sierraspos/internal/domain"
	"sierraspos/internal/repos"
)

const lowStockAt = 5

// Availability is the stock state shown next to a product at the register.
type Availability struct {
	ProductID int64  `json:"productId"`
	Status    string `json:"status"`
	Qty       int64  `json:"qty"`
}

type InventoryService struct {
	Prods *repos.ProductRepo
}

func NewInventoryService(prods *repos.ProductRepo) *InventoryService {
	return &InventoryService{Prods: prods}
}

// StockStatus converts qty to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
// Negative stock (oversold) reads as OUT_OF_STOCK.
func StockStatus(qty int64) string {
	switch {
	case qty >= lowStockAt:
		return "IN_STOCK"
	case qty > 0:
		return "LOW_STOCK"
	}
	return "OUT_OF_STOCK"
}

func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64) (Availability, error) {
	qty, err := s.Prods.Stock(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{ProductID: productID, Status: StockStatus(qty), Qty: qty}, nil
}

// LowStock lists active products that need restocking.
func (s *InventoryService) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.Prods.LowStock(ctx, lowStockAt-1)
}
