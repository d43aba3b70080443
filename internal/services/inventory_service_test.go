package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierraspos/internal/domain"
	"sierraspos/internal/services"
)

func TestStockStatus(t *testing.T) {
	assert.Equal(t, "IN_STOCK", services.StockStatus(6))
	assert.Equal(t, "IN_STOCK", services.StockStatus(5))
	assert.Equal(t, "LOW_STOCK", services.StockStatus(1))
	assert.Equal(t, "OUT_OF_STOCK", services.StockStatus(0))
	assert.Equal(t, "OUT_OF_STOCK", services.StockStatus(-3))
}

func TestInventoryService_CheckAvailability(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewInventoryService(store.Products)
	plenty := addProduct(t, store, "Bebida", 800, 6)
	few := addProduct(t, store, "Completo", 1500, 2)

	a, err := svc.CheckAvailability(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_STOCK", a.Status)
	assert.Equal(t, int64(6), a.Qty)

	_, err = svc.CheckAvailability(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, few.ID, low[0].ID)
}
