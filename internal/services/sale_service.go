package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/metrics"
	"sierraspos/internal/repos"
)

// SaleNotifier is the post-commit side of checkout and refund.
type SaleNotifier interface {
	Receipt(ctx context.Context, s domain.Sale)
	ResendReceipt(ctx context.Context, s domain.Sale) error
	Cancellation(ctx context.Context, s domain.Sale, by string)
}

type CheckoutRequest struct {
	Seller   string               `json:"-"`
	FamilyID int64                `json:"familyId"`
	Total    int64                `json:"total"`
	Method   domain.PaymentMethod `json:"method"`
	Lines    []domain.SaleLine    `json:"lines"`
}

type CheckoutResult struct {
	SaleID       int64 `json:"saleId"`
	BalanceAfter int64 `json:"balanceAfter"`
}

// SaleService coordinates checkout and refund over the ledgers. Each call
// runs as one transaction; mail goes out only after commit.
type SaleService struct {
	Store   *repos.Store
	Notify  SaleNotifier
	Metrics *metrics.Metrics
}

func NewSaleService(store *repos.Store, n SaleNotifier, m *metrics.Metrics) *SaleService {
	return &SaleService{Store: store, Notify: n, Metrics: m}
}

// Per-line bounds keep every subtotal and the cart total well inside int64.
const (
	maxLines     = 500
	maxQuantity  = 100_000
	maxUnitPrice = 1_000_000_000
)

// validateCart checks the request shape and fills a zero total from the lines.
func validateCart(req *CheckoutRequest) error {
	var problems []string
	if strings.TrimSpace(req.Seller) == "" {
		problems = append(problems, "seller is required")
	}
	if req.FamilyID <= 0 {
		problems = append(problems, "family is required")
	}
	if !req.Method.Valid() {
		problems = append(problems, fmt.Sprintf("unknown payment method %q", req.Method))
	}
	if len(req.Lines) == 0 {
		problems = append(problems, "cart is empty")
	}
	if len(req.Lines) > maxLines {
		problems = append(problems, fmt.Sprintf("cart has more than %d lines", maxLines))
	}
	var sum int64
	for i, l := range req.Lines {
		if l.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: product is required", i+1))
		}
		if l.Quantity < 1 || l.Quantity > maxQuantity {
			problems = append(problems, fmt.Sprintf("line %d: quantity must be between 1 and %d", i+1, maxQuantity))
		}
		if l.UnitPrice < 0 || l.UnitPrice > maxUnitPrice {
			problems = append(problems, fmt.Sprintf("line %d: price must be between 0 and %d", i+1, maxUnitPrice))
		}
		for _, n := range l.Numbers {
			if n < 1 {
				problems = append(problems, fmt.Sprintf("line %d: invalid number %d", i+1, n))
			}
		}
		sum += l.Subtotal()
	}
	if len(problems) > 0 {
		return &domain.InvalidCartError{Problems: problems}
	}
	if req.Total == 0 {
		req.Total = sum
	} else if req.Total != sum {
		problems = append(problems, fmt.Sprintf("total %d does not match lines (%d)", req.Total, sum))
	}
	if len(problems) > 0 {
		return &domain.InvalidCartError{Problems: problems}
	}
	return nil
}

// claimedNumbers flattens the cart numbers in order, rejecting repeats.
func claimedNumbers(lines []domain.SaleLine) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, l := range lines {
		for _, n := range l.Numbers {
			if seen[n] {
				return nil, &domain.DuplicateClaimError{Number: n}
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// Checkout commits a sale: balance, stock, sale record and number claims
// move together or not at all.
func (s *SaleService) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	var res CheckoutResult
	if err := validateCart(&req); err != nil {
		return res, err
	}
	numbers, err := claimedNumbers(req.Lines)
	if err != nil {
		s.rejected("duplicate")
		return res, err
	}

	start := time.Now()
	err = s.Store.InTx(ctx, func(tx *repos.Tx) error {
		for _, n := range numbers {
			owner, taken, err := tx.Reservations.ClaimedBy(ctx, n)
			if err != nil {
				return err
			}
			if taken {
				return &domain.NumberClaimedError{Number: n, SaleID: owner}
			}
		}

		fam, err := tx.Families.Get(ctx, req.FamilyID)
		if err != nil {
			return err
		}
		balanceAfter := fam.Balance
		if req.Method == domain.PayCredit {
			if balanceAfter, err = tx.Families.ApplyDelta(ctx, fam.ID, req.Total); err != nil {
				return err
			}
		}

		lines := make([]domain.SaleLine, len(req.Lines))
		for i, l := range req.Lines {
			p, err := tx.Products.Get(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if l.Name == "" {
				l.Name = p.Name
			}
			if l.Category == "" {
				l.Category = p.Category
			}
			if err := tx.Products.AdjustStock(ctx, p.ID, -l.Quantity); err != nil {
				return err
			}
			lines[i] = l
		}

		saleID, err := tx.Sales.Create(ctx, domain.Sale{
			Seller:       req.Seller,
			FamilyID:     fam.ID,
			FamilyName:   fam.Name,
			FamilyEmail:  fam.Email,
			BalanceAfter: balanceAfter,
			Total:        req.Total,
			Method:       req.Method,
			Lines:        lines,
		})
		if err != nil {
			return err
		}

		for _, n := range numbers {
			if err := tx.Reservations.Claim(ctx, n, saleID); err != nil {
				var cc *domain.ClaimConflictError
				if errors.As(err, &cc) {
					owner, _, _ := tx.Reservations.ClaimedBy(ctx, n)
					return &domain.NumberClaimedError{Number: n, SaleID: owner}
				}
				return err
			}
		}
		res = CheckoutResult{SaleID: saleID, BalanceAfter: balanceAfter}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNumberClaimed) {
			s.rejected("claimed")
		}
		return CheckoutResult{}, err
	}

	if s.Metrics != nil {
		s.Metrics.CheckoutTiming.Observe(time.Since(start).Seconds())
		s.Metrics.Sales.WithLabelValues(string(req.Method)).Inc()
		s.Metrics.SalesAmount.WithLabelValues(string(req.Method)).Add(float64(req.Total))
	}
	applog.Audit(nil, "sale.checkout", map[string]any{
		"sale_id": res.SaleID, "family_id": req.FamilyID, "total": req.Total,
		"method": string(req.Method), "seller": req.Seller, "numbers": len(numbers),
	})

	if s.Notify != nil {
		sale, err := s.Store.Sales.Get(ctx, res.SaleID)
		if err != nil {
			applog.Error(nil, "sale.receipt", err, map[string]any{"sale_id": res.SaleID})
		} else {
			s.Notify.Receipt(ctx, sale)
		}
	}
	return res, nil
}

// Refund reverses a sale. Only administrators may refund.
func (s *SaleService) Refund(ctx context.Context, saleID int64, caller domain.Caller) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("refund requires admin: %w", domain.ErrForbidden)
	}

	var sale domain.Sale
	err := s.Store.InTx(ctx, func(tx *repos.Tx) error {
		var err error
		if sale, err = tx.Sales.Get(ctx, saleID); err != nil {
			return err
		}
		if sale.Status == domain.SaleRefunded {
			return fmt.Errorf("sale %d: %w", saleID, domain.ErrAlreadyRefunded)
		}
		if err := tx.Sales.MarkRefunded(ctx, saleID); err != nil {
			return err
		}

		// Stock correction is advisory; one bad line does not block the refund.
		for _, l := range sale.Lines {
			if err := tx.Products.AdjustStock(ctx, l.ProductID, l.Quantity); err != nil {
				applog.Error(nil, "sale.refund.stock", err, map[string]any{
					"sale_id": saleID, "product_id": l.ProductID, "qty": l.Quantity,
				})
			}
		}

		// A family deleted after a zero-total credit sale has nothing to reverse.
		if sale.Method == domain.PayCredit {
			_, err := tx.Families.ApplyDelta(ctx, sale.FamilyID, -sale.Total)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				applog.Error(nil, "sale.refund.balance", err, map[string]any{
					"sale_id": saleID, "family_id": sale.FamilyID, "total": sale.Total,
				})
			case err != nil:
				return err
			}
		}
		return tx.Reservations.ReleaseAll(ctx, saleID)
	})
	if err != nil {
		return err
	}

	sale.Status = domain.SaleRefunded
	if s.Metrics != nil {
		s.Metrics.Refunds.WithLabelValues(string(sale.Method)).Inc()
	}
	applog.Audit(nil, "sale.refund", map[string]any{
		"sale_id": saleID, "family_id": sale.FamilyID, "total": sale.Total,
		"method": string(sale.Method), "by": caller.Name,
	})
	if s.Notify != nil {
		s.Notify.Cancellation(ctx, sale, caller.Name)
	}
	return nil
}

// ResetDatabase clears the sales ledger together with families and products.
func (s *SaleService) ResetDatabase(ctx context.Context, caller domain.Caller) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("reset requires admin: %w", domain.ErrForbidden)
	}
	if err := s.Store.ResetLedger(ctx); err != nil {
		return err
	}
	applog.Audit(nil, "database.reset", map[string]any{"by": caller.Name})
	return nil
}

func (s *SaleService) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	return s.Store.Sales.Get(ctx, id)
}

// ListSales returns the newest sales. Sellers only see their own.
func (s *SaleService) ListSales(ctx context.Context, caller domain.Caller, limit int) ([]domain.Sale, error) {
	seller := ""
	if !caller.IsAdmin() {
		if caller.Name == "" {
			return []domain.Sale{}, nil
		}
		seller = caller.Name
	}
	return s.Store.Sales.ListRecent(ctx, limit, seller)
}

// ResendReceipt mails a copy of the receipt and reports delivery errors.
func (s *SaleService) ResendReceipt(ctx context.Context, id int64) error {
	sale, err := s.Store.Sales.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Notify == nil {
		return nil
	}
	return s.Notify.ResendReceipt(ctx, sale)
}

func (s *SaleService) rejected(reason string) {
	if s.Metrics != nil {
		s.Metrics.ClaimRejected.WithLabelValues(reason).Inc()
	}
}
