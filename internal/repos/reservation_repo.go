package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sierraspos/internal/domain"
)

// ReservationRepo is the ledger of claimed numbers. A number belongs to at
// most one sale at any instant; the primary key on number enforces it.
type ReservationRepo struct{ q sqlx.ExtContext }

func NewReservationRepo(q sqlx.ExtContext) *ReservationRepo { return &ReservationRepo{q: q} }

func (r *ReservationRepo) IsClaimed(ctx context.Context, number int) (bool, error) {
	_, ok, err := r.ClaimedBy(ctx, number)
	return ok, err
}

// ClaimedBy returns the sale owning number, if any.
func (r *ReservationRepo) ClaimedBy(ctx context.Context, number int) (int64, bool, error) {
	var saleID int64
	err := sqlx.GetContext(ctx, r.q, &saleID, `SELECT sale_id FROM reservations WHERE number = ?`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return saleID, true, nil
}

// Claim assigns number to saleID. A taken number fails with *domain.ClaimConflictError.
func (r *ReservationRepo) Claim(ctx context.Context, number int, saleID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reservations(number, sale_id, claimed_at)
		VALUES(?, ?, CURRENT_TIMESTAMP)
	`, number, saleID)
	if isUniqueViolation(err) {
		return &domain.ClaimConflictError{Number: number}
	}
	return err
}

// ReleaseAll frees every number owned by saleID. Releasing twice is a no-op.
func (r *ReservationRepo) ReleaseAll(ctx context.Context, saleID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM reservations WHERE sale_id = ?`, saleID)
	return err
}

// BySale lists the numbers held by one sale.
func (r *ReservationRepo) BySale(ctx context.Context, saleID int64) ([]domain.Reservation, error) {
	out := []domain.Reservation{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT number, sale_id, claimed_at FROM reservations
		WHERE sale_id = ? ORDER BY number`, saleID)
	return out, err
}

// List returns every claimed number, lowest first.
func (r *ReservationRepo) List(ctx context.Context) ([]domain.Reservation, error) {
	out := []domain.Reservation{}
	err := sqlx.SelectContext(ctx, r.q, &out, `SELECT number, sale_id, claimed_at FROM reservations ORDER BY number`)
	return out, err
}
