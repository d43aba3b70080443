package repos

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite database, creates the schema and seeds default settings.
//
// The pool is pinned to a single connection: SQLite allows one writer at a time
// and every checkout/refund unit of work must be serialized against the others.
// It also keeps ":memory:" databases shared across calls.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedSettings(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'seller' CHECK (role IN ('admin','seller')),
  name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));

CREATE TABLE IF NOT EXISTS sessions(
  token TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Families (customer accounts)
CREATE TABLE IF NOT EXISTS families(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  name_key TEXT NOT NULL,            -- lower-cased name, unicode aware
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  balance INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_families_name_key ON families(name_key);

-- Products
CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  photo TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL DEFAULT 0 CHECK (price >= 0),
  cost INTEGER NOT NULL DEFAULT 0,
  stock INTEGER NOT NULL DEFAULT 0,  -- no floor: overselling is reconciled later
  active INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0
);

-- Sales (immutable except status)
CREATE TABLE IF NOT EXISTS sales(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  seller TEXT NOT NULL,
  family_id INTEGER NOT NULL,
  family_name TEXT NOT NULL DEFAULT '',
  family_email TEXT NOT NULL DEFAULT '',
  balance_after INTEGER NOT NULL,
  total INTEGER NOT NULL,
  payment_method TEXT NOT NULL CHECK (payment_method IN ('cash','credit')),
  detail_json TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ok' CHECK (status IN ('ok','refunded'))
);
CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at);
CREATE INDEX IF NOT EXISTS idx_sales_seller     ON sales(seller);
CREATE INDEX IF NOT EXISTS idx_sales_family     ON sales(family_id);

-- Reservations: one row per claimed number, globally unique
CREATE TABLE IF NOT EXISTS reservations(
  number INTEGER PRIMARY KEY,
  sale_id INTEGER NOT NULL REFERENCES sales(id),
  claimed_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reservations_sale ON reservations(sale_id);

-- Settings
CREATE TABLE IF NOT EXISTS settings(
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	return err
}

var defaultSettings = map[string]string{
	SettingMenuOrder:            `["pos","ventas","familias","productos","usuarios","stats","config"]`,
	SettingAppLogo:              "",
	SettingAppFavicon:           "",
	SettingShowBalanceInReceipt: "1",
	SettingBccEmails:            "",
	SettingOrgName:              "Sierras de Bellavista",
	SettingPaymentInfo:          "",
}

func seedSettings(db *sqlx.DB) error {
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()
	for k, v := range defaultSettings {
		if _, err := tx.Exec(`INSERT INTO settings(key,value) VALUES(?,?) ON CONFLICT(key) DO NOTHING`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SeedAdmin creates the bootstrap administrator when no user with that name exists.
func SeedAdmin(ctx context.Context, db *sqlx.DB, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE LOWER(username)=LOWER(?)`, username); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	log.Printf("[seed] creating administrator %q", username)
	_, err = db.ExecContext(ctx, `
		INSERT INTO users(username,password_hash,role,name,email)
		VALUES(?,?,'admin','Administrador',?)
	`, username, string(h), email)
	return err
}

// Store bundles the repositories over the shared connection and opens
// units of work that see the same repositories bound to one transaction.
type Store struct {
	DB           *sqlx.DB
	Families     *FamilyRepo
	Products     *ProductRepo
	Sales        *SaleRepo
	Reservations *ReservationRepo
	Users        *UserRepo
	Settings     *SettingsRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:           db,
		Families:     NewFamilyRepo(db),
		Products:     NewProductRepo(db),
		Sales:        NewSaleRepo(db),
		Reservations: NewReservationRepo(db),
		Users:        NewUserRepo(db),
		Settings:     NewSettingsRepo(db),
	}
}

// Tx holds the ledger repositories bound to a single database transaction.
type Tx struct {
	Families     *FamilyRepo
	Products     *ProductRepo
	Sales        *SaleRepo
	Reservations *ReservationRepo
}

// InTx runs fn inside one transaction. A non-nil error from fn rolls
// everything back; otherwise the transaction is committed.
// fn must only use the repositories handed to it.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{
		Families:     NewFamilyRepo(tx),
		Products:     NewProductRepo(tx),
		Sales:        NewSaleRepo(tx),
		Reservations: NewReservationRepo(tx),
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ResetLedger wipes sales, reservations, families and products and restarts
// their ids. Users, sessions and settings are kept.
func (s *Store) ResetLedger(ctx context.Context) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM reservations`,
		`DELETE FROM sales`,
		`DELETE FROM families`,
		`DELETE FROM products`,
		`DELETE FROM sqlite_sequence WHERE name IN ('sales','families','products')`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
