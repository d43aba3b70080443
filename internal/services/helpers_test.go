package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sierraspos/internal/domain"
	"sierraspos/internal/repos"
)

// admin is never a row in the users table, so self-delete guards do not fire.
var admin = domain.Caller{UserID: 1 << 40, Name: "Admin", Role: domain.RoleAdmin}

func newStore(t *testing.T) *repos.Store {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repos.NewStore(db)
}

func addFamily(t *testing.T, s *repos.Store, name, email string) domain.Family {
	t.Helper()
	id, err := s.Families.Create(context.Background(), domain.Family{Name: name, Email: email})
	require.NoError(t, err)
	f, err := s.Families.Get(context.Background(), id)
	require.NoError(t, err)
	return f
}

func addProduct(t *testing.T, s *repos.Store, name string, price, stock int64) domain.Product {
	t.Helper()
	id, err := s.Products.Create(context.Background(), domain.Product{Name: name, Category: "Bingo", Price: price, Stock: stock, Active: true})
	require.NoError(t, err)
	p, err := s.Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, s *repos.Store, id int64) int64 {
	t.Helper()
	q, err := s.Products.Stock(context.Background(), id)
	require.NoError(t, err)
	return q
}

func balanceOf(t *testing.T, s *repos.Store, id int64) int64 {
	t.Helper()
	b, err := s.Families.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

// recordingNotifier captures the post-commit notifications.
type recordingNotifier struct {
	mu            sync.Mutex
	receipts      []domain.Sale
	cancellations []domain.Sale
	resent        []int64
	welcomed      []domain.Family
	credentials   []string
	resendErr     error
}

func (r *recordingNotifier) Receipt(_ context.Context, s domain.Sale) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, s)
}

func (r *recordingNotifier) ResendReceipt(_ context.Context, s domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resent = append(r.resent, s.ID)
	return r.resendErr
}

func (r *recordingNotifier) Cancellation(_ context.Context, s domain.Sale, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations = append(r.cancellations, s)
}

func (r *recordingNotifier) Welcome(_ context.Context, f domain.Family, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomed = append(r.welcomed, f)
}

func (r *recordingNotifier) Credentials(_ context.Context, u domain.User, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credentials = append(r.credentials, u.Username)
}
