package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Known setting keys.
const (
	SettingMenuOrder            = "menu_order"
	SettingAppLogo              = "app_logo"
	SettingAppFavicon           = "app_favicon"
	SettingShowBalanceInReceipt = "show_balance_in_receipt"
	SettingBccEmails            = "bcc_emails"
	SettingOrgName              = "org_name"
	SettingPaymentInfo          = "payment_info"
)

type SettingsRepo struct{ db *sqlx.DB }

func NewSettingsRepo(db *sqlx.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get returns the value for key, or "" when unset.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.GetContext(ctx, &v, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (r *SettingsRepo) All(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings ORDER BY key`); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Bool reads a flag stored as "1"/"true"/"yes"/"on".
func (r *SettingsRepo) Bool(ctx context.Context, key string) bool {
	v, err := r.Get(ctx, key)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// List reads a comma separated value, dropping blanks.
func (r *SettingsRepo) List(ctx context.Context, key string) []string {
	v, err := r.Get(ctx, key)
	if err != nil || v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
