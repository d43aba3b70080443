package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"sierraspos/internal/domain"
)

// SaleRepo is the append-mostly store of sale records.
type SaleRepo struct{ q sqlx.ExtContext }

func NewSaleRepo(q sqlx.ExtContext) *SaleRepo { return &SaleRepo{q: q} }

const saleCols = `id, created_at, seller, family_id, family_name, family_email,
	balance_after, total, payment_method, detail_json, status`

// Create inserts a new sale with status ok and returns its id.
func (r *SaleRepo) Create(ctx context.Context, s domain.Sale) (int64, error) {
	lines := s.Lines
	if lines == nil {
		lines = []domain.SaleLine{}
	}
	detail, err := json.Marshal(lines)
	if err != nil {
		return 0, fmt.Errorf("encode sale detail: %w", err)
	}
	res, err := r.q.ExecContext(ctx, `
	  INSERT INTO sales
	    (seller, family_id, family_name, family_email, balance_after, total, payment_method, detail_json, status)
	  VALUES
	    (?,      ?,         ?,           ?,            ?,             ?,     ?,              ?,           'ok')
	`, s.Seller, s.FamilyID, s.FamilyName, s.FamilyEmail, s.BalanceAfter, s.Total, s.Method, string(detail))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SaleRepo) Get(ctx context.Context, id int64) (domain.Sale, error) {
	var s domain.Sale
	err := sqlx.GetContext(ctx, r.q, &s, `SELECT `+saleCols+` FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, domain.NotFound("sale", id)
	}
	if err != nil {
		return s, err
	}
	return s, decodeLines(&s)
}

// MarkRefunded flips status ok -> refunded. Any other current status fails
// with ErrAlreadyRefunded.
func (r *SaleRepo) MarkRefunded(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE sales SET status = 'refunded' WHERE id = ? AND status = 'ok'`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var status string
	err = sqlx.GetContext(ctx, r.q, &status, `SELECT status FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("sale", id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("sale %d: %w", id, domain.ErrAlreadyRefunded)
}

// ListRecent returns the newest sales first. A non-empty seller restricts the
// result to that seller's sales.
func (r *SaleRepo) ListRecent(ctx context.Context, limit int, seller string) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 500
	}
	where := ``
	args := []any{}
	if seller != "" {
		where = `WHERE seller = ?`
		args = append(args, seller)
	}
	args = append(args, limit)
	return r.query(ctx, `SELECT `+saleCols+` FROM sales `+where+` ORDER BY id DESC LIMIT ?`, args...)
}

// ListRange returns ok sales created in [from, to], newest first.
// Bounds use the stored "YYYY-MM-DD HH:MM:SS" format.
func (r *SaleRepo) ListRange(ctx context.Context, from, to string) ([]domain.Sale, error) {
	return r.query(ctx, `
		SELECT `+saleCols+` FROM sales
		WHERE status = 'ok' AND created_at BETWEEN ? AND ?
		ORDER BY id DESC`, from, to)
}

func (r *SaleRepo) query(ctx context.Context, q string, args ...any) ([]domain.Sale, error) {
	out := []domain.Sale{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, err
	}
	for i := range out {
		if err := decodeLines(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeLines(s *domain.Sale) error {
	s.Lines = []domain.SaleLine{}
	if s.DetailJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.DetailJSON), &s.Lines); err != nil {
		return fmt.Errorf("decode detail of sale %d: %w", s.ID, err)
	}
	return nil
}
