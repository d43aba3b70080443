package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"sierraspos/internal/domain"
)

// FamilyRepo is the account ledger: family records and their running balance.
type FamilyRepo struct{ q sqlx.ExtContext }

func NewFamilyRepo(q sqlx.ExtContext) *FamilyRepo { return &FamilyRepo{q: q} }

const familyCols = `id, name, email, phone, balance`

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *FamilyRepo) List(ctx context.Context) ([]domain.Family, error) {
	out := []domain.Family{}
	err := sqlx.SelectContext(ctx, r.q, &out, `SELECT `+familyCols+` FROM families ORDER BY name_key`)
	return out, err
}

// ListDebtors returns families that owe money and can be reached by email.
func (r *FamilyRepo) ListDebtors(ctx context.Context) ([]domain.Family, error) {
	out := []domain.Family{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT `+familyCols+` FROM families
		WHERE balance > 0 AND email != ''
		ORDER BY balance DESC`)
	return out, err
}

func (r *FamilyRepo) Get(ctx context.Context, id int64) (domain.Family, error) {
	var f domain.Family
	err := sqlx.GetContext(ctx, r.q, &f, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return f, domain.NotFound("family", id)
	}
	return f, err
}

// Create inserts a family with a zero balance.
func (r *FamilyRepo) Create(ctx context.Context, f domain.Family) (int64, error) {
	if err := r.checkName(ctx, f.Name, 0); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO families(name, name_key, email, phone, balance)
		VALUES(?, ?, ?, ?, 0)
	`, strings.TrimSpace(f.Name), nameKey(f.Name), f.Email, f.Phone)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("family name %q: %w", f.Name, domain.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update edits contact data only; the balance belongs to the sale engine.
func (r *FamilyRepo) Update(ctx context.Context, f domain.Family) error {
	if err := r.checkName(ctx, f.Name, f.ID); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE families SET name = ?, name_key = ?, email = ?, phone = ?
		WHERE id = ?
	`, strings.TrimSpace(f.Name), nameKey(f.Name), f.Email, f.Phone, f.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("family name %q: %w", f.Name, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("family", f.ID)
	}
	return nil
}

// Delete removes a settled family. A nonzero balance fails with ErrPrecondition.
func (r *FamilyRepo) Delete(ctx context.Context, id int64) error {
	bal, err := r.Balance(ctx, id)
	if err != nil {
		return err
	}
	if bal != 0 {
		return fmt.Errorf("family %d has balance %d: %w", id, bal, domain.ErrPrecondition)
	}
	_, err = r.q.ExecContext(ctx, `DELETE FROM families WHERE id = ? AND balance = 0`, id)
	return err
}

func (r *FamilyRepo) checkName(ctx context.Context, name string, selfID int64) error {
	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, `SELECT id FROM families WHERE name_key = ?`, nameKey(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if id != selfID {
		return fmt.Errorf("family name %q: %w", name, domain.ErrConflict)
	}
	return nil
}

// Balance returns the family's current balance.
func (r *FamilyRepo) Balance(ctx context.Context, id int64) (int64, error) {
	var bal int64
	err := sqlx.GetContext(ctx, r.q, &bal, `SELECT balance FROM families WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("family", id)
	}
	return bal, err
}

// ApplyDelta adds delta to the balance and returns the new value.
func (r *FamilyRepo) ApplyDelta(ctx context.Context, id, delta int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE families SET balance = balance + ? WHERE id = ?`, delta, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, domain.NotFound("family", id)
	}
	return r.Balance(ctx, id)
}

// TotalDebt sums every positive balance.
func (r *FamilyRepo) TotalDebt(ctx context.Context) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, r.q, &total, `SELECT COALESCE(SUM(balance),0) FROM families WHERE balance > 0`)
	return total, err
}
