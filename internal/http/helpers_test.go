package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/require"

	"sierraspos/internal/config"
	"sierraspos/internal/domain"
	"sierraspos/internal/http/handlers"
	"sierraspos/internal/metrics"
	"sierraspos/internal/notify"
	"sierraspos/internal/repos"
)

const (
	adminUser = "admin"
	adminPass = "Admin1234"
)

type fakeMailer struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (f *fakeMailer) Send(_ context.Context, m notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeMailer) sent() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.msgs...)
}

type testEnv struct {
	app   *fiber.App
	store *repos.Store
	mail  *fakeMailer
	disp  *notify.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, repos.SeedAdmin(context.Background(), db, adminUser, adminPass, "admin@example.com"))

	store := repos.NewStore(db)
	mail := &fakeMailer{}
	renderer, err := notify.NewHTMLRenderer()
	require.NoError(t, err)
	disp := notify.NewDispatcher(mail)
	n := notify.NewNotifier(renderer, disp, store.Settings, time.UTC)
	m := metrics.New()
	disp.OnResult = func(k notify.Kind, err error) { m.MailResult(string(k), err) }

	cfg := config.Config{DBDSN: ":memory:", MediaDir: t.TempDir()}
	deps := handlers.NewDeps(store, cfg, n, m, time.UTC)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	app.Use(m.Middleware())
	handlers.Register(app, deps)

	t.Cleanup(func() {
		disp.Wait()
		_ = db.Close()
	})
	return &testEnv{app: app, store: store, mail: mail, disp: disp}
}

// call sends a JSON request and returns the response with its body read.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, body := e.call(t, "POST", "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.login(t, adminUser, adminPass)
}

// sellerToken creates a seller through the API and logs in as them.
func (e *testEnv) sellerToken(t *testing.T, admin, username, name string) string {
	t.Helper()
	resp, body := e.call(t, "POST", "/api/users", admin, map[string]string{
		"username": username, "password": "Seller123", "role": "seller", "name": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return e.login(t, username, "Seller123")
}

func (e *testEnv) seedFamily(t *testing.T, name, email string) domain.Family {
	t.Helper()
	id, err := e.store.Families.Create(context.Background(), domain.Family{Name: name, Email: email})
	require.NoError(t, err)
	f, err := e.store.Families.Get(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (e *testEnv) seedProduct(t *testing.T, name string, price, stock int64) domain.Product {
	t.Helper()
	id, err := e.store.Products.Create(context.Background(), domain.Product{
		Name: name, Category: "Bingo", Price: price, Stock: stock, Active: true,
	})
	require.NoError(t, err)
	p, err := e.store.Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedBuf{b: &buf, mu: &mu})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	mu.Lock()
	raw := buf.String()
	mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
