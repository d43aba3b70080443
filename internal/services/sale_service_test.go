package services_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierraspos/internal/domain"
	"sierraspos/internal/metrics"
	"sierraspos/internal/services"
)

func line(productID, qty, price int64, numbers ...int) domain.SaleLine {
	return domain.SaleLine{ProductID: productID, Quantity: qty, UnitPrice: price, Numbers: numbers}
}

func TestCheckoutCreditThenRefund(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	n := &recordingNotifier{}
	svc := services.NewSaleService(store, n, metrics.New())
	fam := addFamily(t, store, "Familia F", "f@example.com")
	prodA := addProduct(t, store, "A", 1000, 10)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Total: 2000, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(prodA.ID, 2, 1000)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.BalanceAfter)
	assert.Equal(t, int64(2000), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(8), stockOf(t, store, prodA.ID))

	sale, err := svc.GetSale(ctx, res.SaleID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleOK, sale.Status)
	assert.Equal(t, int64(2000), sale.BalanceAfter)
	assert.Equal(t, "Familia F", sale.FamilyName)
	assert.Equal(t, "f@example.com", sale.FamilyEmail)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, "A", sale.Lines[0].Name)
	assert.Equal(t, "Bingo", sale.Lines[0].Category)
	require.Len(t, n.receipts, 1)

	require.NoError(t, svc.Refund(ctx, res.SaleID, admin))
	sale, err = svc.GetSale(ctx, res.SaleID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleRefunded, sale.Status)
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(10), stockOf(t, store, prodA.ID))
	require.Len(t, n.cancellations, 1)

	err = svc.Refund(ctx, res.SaleID, admin)
	require.ErrorIs(t, err, domain.ErrAlreadyRefunded)
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(10), stockOf(t, store, prodA.ID))
	assert.Len(t, n.cancellations, 1)
}

func TestDuplicateNumberInCartTouchesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 500, 4)

	_, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(p.ID, 1, 500, 15), line(p.ID, 1, 500, 15)},
	})
	var dup *domain.DuplicateClaimError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 15, dup.Number)

	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(4), stockOf(t, store, p.ID))
	sales, err := store.Sales.ListRecent(ctx, 10, "")
	require.NoError(t, err)
	assert.Empty(t, sales)
	claimed, err := store.Reservations.IsClaimed(ctx, 15)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimedNumberNamesOwningSale(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 500, 10)

	first, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash,
		Lines: []domain.SaleLine{line(p.ID, 2, 500, 3, 4)},
	})
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(p.ID, 2, 500, 5, 4)},
	})
	var claimed *domain.NumberClaimedError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, 4, claimed.Number)
	assert.Equal(t, first.SaleID, claimed.SaleID)

	// rejected checkout left no trace
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(8), stockOf(t, store, p.ID))
	ok5, err := store.Reservations.IsClaimed(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok5)
}

func TestCashSaleKeepsBalanceSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 700, 10)

	_, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(p.ID, 1, 700)},
	})
	require.NoError(t, err)

	cash, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash,
		Lines: []domain.SaleLine{line(p.ID, 3, 700)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), cash.BalanceAfter)
	assert.Equal(t, int64(700), balanceOf(t, store, fam.ID))

	// refunding a cash sale leaves the balance alone
	require.NoError(t, svc.Refund(ctx, cash.SaleID, admin))
	assert.Equal(t, int64(700), balanceOf(t, store, fam.ID))
}

func TestSnapshotIsNeverRecomputed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 1000, 10)

	first, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 1, 1000)},
	})
	require.NoError(t, err)
	second, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 2, 1000)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), second.BalanceAfter)

	require.NoError(t, svc.Refund(ctx, first.SaleID, admin))
	assert.Equal(t, int64(2000), balanceOf(t, store, fam.ID))

	s1, err := svc.GetSale(ctx, first.SaleID)
	require.NoError(t, err)
	s2, err := svc.GetSale(ctx, second.SaleID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s1.BalanceAfter)
	assert.Equal(t, int64(3000), s2.BalanceAfter)
}

func TestRefundReleasesNumbers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	other := addFamily(t, store, "G", "")
	p := addProduct(t, store, "Cartón", 1000, 10)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(p.ID, 2, 1000, 7, 42)},
	})
	require.NoError(t, err)
	held, err := store.Reservations.BySale(ctx, res.SaleID)
	require.NoError(t, err)
	assert.Len(t, held, 2)

	require.NoError(t, svc.Refund(ctx, res.SaleID, admin))
	held, err = store.Reservations.BySale(ctx, res.SaleID)
	require.NoError(t, err)
	assert.Empty(t, held)

	again, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Beto", FamilyID: other.ID, Method: domain.PayCash,
		Lines: []domain.SaleLine{line(p.ID, 1, 1000, 7), line(p.ID, 1, 1000, 42)},
	})
	require.NoError(t, err)
	owner, ok, err := store.Reservations.ClaimedBy(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, again.SaleID, owner)
}

func TestRefundRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 1000, 10)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 1, 1000)},
	})
	require.NoError(t, err)

	err = svc.Refund(ctx, res.SaleID, domain.Caller{UserID: 2, Name: "Ana", Role: domain.RoleSeller})
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, int64(1000), balanceOf(t, store, fam.ID))

	require.ErrorIs(t, svc.Refund(ctx, 999, admin), domain.ErrNotFound)
}

func TestStockMayGoNegative(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 100, 1)

	_, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 3, 100)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), stockOf(t, store, p.ID))
}

func TestRefundSurvivesDeletedProduct(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 100, 5)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 1, 100)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Products.Delete(ctx, p.ID))

	require.NoError(t, svc.Refund(ctx, res.SaleID, admin))
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
}

func TestRefundSurvivesDeletedFamily(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "Gone", "")
	p := addProduct(t, store, "Cartón gratis", 0, 10)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 1, 0, 31)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Families.Delete(ctx, fam.ID))

	require.NoError(t, svc.Refund(ctx, res.SaleID, admin))
	assert.Equal(t, int64(10), stockOf(t, store, p.ID))
	claimed, err := store.Reservations.IsClaimed(ctx, 31)
	require.NoError(t, err)
	assert.False(t, claimed)

	sale, err := svc.GetSale(ctx, res.SaleID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleRefunded, sale.Status)
}

func TestInvalidCart(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 100, 5)

	cases := map[string]services.CheckoutRequest{
		"empty cart":      {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash},
		"no family":       {Seller: "Ana", Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 1, 100)}},
		"bad method":      {Seller: "Ana", FamilyID: fam.ID, Method: "cheque", Lines: []domain.SaleLine{line(p.ID, 1, 100)}},
		"zero quantity":   {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 0, 100)}},
		"total mismatch":  {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash, Total: 5, Lines: []domain.SaleLine{line(p.ID, 1, 100)}},
		"negative number": {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 1, 100, -1)}},
		"no seller":       {FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 1, 100)}},
		"huge quantity":   {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 1<<62+1, 4)}},
		"huge price":      {Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Lines: []domain.SaleLine{line(p.ID, 3, 1<<62)}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Checkout(ctx, req)
			var bad *domain.InvalidCartError
			require.ErrorAs(t, err, &bad)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.NotEmpty(t, bad.Problems)
		})
	}
	assert.Equal(t, int64(5), stockOf(t, store, p.ID))
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
}

// Quantities whose product would wrap int64 never reach the ledgers.
func TestOverflowingCartIsRejected(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "Overflow", "")
	p := addProduct(t, store, "Cartón", 4, 9)

	for i := 0; i < 2; i++ {
		_, err := svc.Checkout(ctx, services.CheckoutRequest{
			Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit, Total: 4,
			Lines: []domain.SaleLine{line(p.ID, 1<<62+1, 4)},
		})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	}
	assert.Equal(t, int64(0), balanceOf(t, store, fam.ID))
	assert.Equal(t, int64(9), stockOf(t, store, p.ID))

	// the largest allowed line still adds up exactly
	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCredit,
		Lines: []domain.SaleLine{line(p.ID, 100_000, 1_000_000_000)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000_000_000), res.BalanceAfter)
}

func TestConcurrentCheckoutsRaceForOneNumber(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	p := addProduct(t, store, "Cartón", 1000, 100)

	const workers = 8
	fams := make([]domain.Family, workers)
	for i := range fams {
		fams[i] = addFamily(t, store, "Familia "+string(rune('A'+i)), "")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(f domain.Family) {
			defer wg.Done()
			_, err := svc.Checkout(ctx, services.CheckoutRequest{
				Seller: "Ana", FamilyID: f.ID, Method: domain.PayCredit,
				Lines: []domain.SaleLine{line(p.ID, 1, 1000, 77)},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrNumberClaimed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fams[i])
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, int64(99), stockOf(t, store, p.ID))

	var total int64
	for _, f := range fams {
		total += balanceOf(t, store, f.ID)
	}
	assert.Equal(t, int64(1000), total)
}

// Balance equals the sum of ok credit sales for any mix of checkouts and refunds.
func TestBalanceConsistencyOverRandomHistory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fams := []domain.Family{addFamily(t, store, "A", ""), addFamily(t, store, "B", "")}
	p := addProduct(t, store, "Cartón", 250, 1000)

	rng := rand.New(rand.NewSource(42))
	var saleIDs []int64
	for i := 0; i < 60; i++ {
		if len(saleIDs) > 0 && rng.Intn(3) == 0 {
			id := saleIDs[rng.Intn(len(saleIDs))]
			err := svc.Refund(ctx, id, admin)
			if err != nil {
				require.ErrorIs(t, err, domain.ErrAlreadyRefunded)
			}
			continue
		}
		method := domain.PayCash
		if rng.Intn(2) == 0 {
			method = domain.PayCredit
		}
		res, err := svc.Checkout(ctx, services.CheckoutRequest{
			Seller: "Ana", FamilyID: fams[rng.Intn(2)].ID, Method: method,
			Lines: []domain.SaleLine{line(p.ID, int64(1+rng.Intn(4)), 250)},
		})
		require.NoError(t, err)
		saleIDs = append(saleIDs, res.SaleID)
	}

	sales, err := store.Sales.ListRecent(ctx, 500, "")
	require.NoError(t, err)
	want := map[int64]int64{}
	var sold int64
	for _, s := range sales {
		if s.Status != domain.SaleOK {
			continue
		}
		if s.Method == domain.PayCredit {
			want[s.FamilyID] += s.Total
		}
		sold += s.Lines[0].Quantity
	}
	for _, f := range fams {
		assert.Equal(t, want[f.ID], balanceOf(t, store, f.ID), "family %s", f.Name)
	}
	assert.Equal(t, 1000-sold, stockOf(t, store, p.ID))
}

func TestListSalesBySeller(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewSaleService(store, nil, nil)
	fam := addFamily(t, store, "F", "")
	p := addProduct(t, store, "Cartón", 100, 10)

	for _, seller := range []string{"Ana", "Beto", "Ana"} {
		_, err := svc.Checkout(ctx, services.CheckoutRequest{
			Seller: seller, FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 1, 100)},
		})
		require.NoError(t, err)
	}

	mine, err := svc.ListSales(ctx, domain.Caller{Name: "Ana", Role: domain.RoleSeller}, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.ListSales(ctx, admin, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := svc.ListSales(ctx, domain.Caller{Role: domain.RoleSeller}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResendReceipt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	n := &recordingNotifier{}
	svc := services.NewSaleService(store, n, nil)
	fam := addFamily(t, store, "F", "f@example.com")
	p := addProduct(t, store, "Cartón", 100, 10)

	res, err := svc.Checkout(ctx, services.CheckoutRequest{
		Seller: "Ana", FamilyID: fam.ID, Method: domain.PayCash, Lines: []domain.SaleLine{line(p.ID, 1, 100)},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResendReceipt(ctx, res.SaleID))
	assert.Equal(t, []int64{res.SaleID}, n.resent)

	n.resendErr = errors.New("smtp down")
	require.Error(t, svc.ResendReceipt(ctx, res.SaleID))
	require.ErrorIs(t, svc.ResendReceipt(ctx, 999), domain.ErrNotFound)
}
