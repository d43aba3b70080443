package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sierraspos/internal/domain"
)

// ProductRepo is the catalog and the inventory store.
type ProductRepo struct{ q sqlx.ExtContext }

func NewProductRepo(q sqlx.ExtContext) *ProductRepo { return &ProductRepo{q: q} }

const productCols = `id, name, photo, category, price, cost, stock, active, sort_order`

func (r *ProductRepo) List(ctx context.Context, onlyActive bool) ([]domain.Product, error) {
	where := ``
	if onlyActive {
		where = `WHERE active = 1`
	}
	out := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
	  SELECT `+productCols+`
	  FROM products `+where+`
	  ORDER BY sort_order, LOWER(name)`)
	return out, err
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.q, &p, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.NotFound("product", id)
	}
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
	  INSERT INTO products(name, photo, category, price, cost, stock, active, sort_order)
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Photo, p.Category, p.Price, p.Cost, p.Stock, p.Active, p.SortOrder)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update overwrites the editable fields. An empty Photo keeps the stored one.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.q.ExecContext(ctx, `
	  UPDATE products
	  SET name = ?, category = ?, price = ?, cost = ?, stock = ?, active = ?, sort_order = ?,
	      photo = CASE WHEN ? = '' THEN photo ELSE ? END
	  WHERE id = ?
	`, p.Name, p.Category, p.Price, p.Cost, p.Stock, p.Active, p.SortOrder, p.Photo, p.Photo, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepo) SetPhoto(ctx context.Context, id int64, path string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE products SET photo = ? WHERE id = ?`, path, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

// AdjustStock adds delta (negative on sale, positive on refund) to the stock.
// The result may go below zero.
func (r *ProductRepo) AdjustStock(ctx context.Context, productID, delta int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE products SET stock = stock + ? WHERE id = ?`, delta, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", productID)
	}
	return nil
}

// Stock returns the current stock for a product.
func (r *ProductRepo) Stock(ctx context.Context, productID int64) (int64, error) {
	var qty int64
	err := sqlx.GetContext(ctx, r.q, &qty, `SELECT stock FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("product", productID)
	}
	return qty, err
}

// Categories lists the distinct categories of active products.
func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	out := []string{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
	  SELECT DISTINCT category FROM products
	  WHERE active = 1 AND category != ''
	  ORDER BY category`)
	return out, err
}

// LowStock lists active products whose stock is at or below threshold.
func (r *ProductRepo) LowStock(ctx context.Context, threshold int64) ([]domain.Product, error) {
	out := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
	  SELECT `+productCols+`
	  FROM products
	  WHERE active = 1 AND stock <= ?
	  ORDER BY stock, LOWER(name)`, threshold)
	return out, err
}
