package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	sqliteSession "github.com/connectbox/console/internal/repositories/session/sqlite"
	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/common/apperror"
	"github.com/connectbox/console/pkg/common/keys"
	srepo "github.com/connectbox/console/pkg/repositories/session"
)

func newAppliance(t *testing.T, moodle string) *apiclient.Client {
	t.Helper()
	good := apiclient.BasicToken("admin", "connectbox")
	reply := func(w http.ResponseWriter, result any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "result": result})
	}
	r := chi.NewRouter()
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("Authorization") != good {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, req)
			})
		})
		r.Get("/ui-config", func(w http.ResponseWriter, r *http.Request) { reply(w, map[string]any{}) })
		r.Get("/ismoodle", func(w http.ResponseWriter, r *http.Request) { reply(w, []string{moodle}) })
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL + "/admin/api/")
}

type fixture struct {
	api    *apiclient.Client
	store  *sqliteSession.SQLiteRepo
	signer *keys.Signer
}

func newFixture(t *testing.T, moodle string) *fixture {
	t.Helper()
	store, err := sqliteSession.NewSQLiteRepo(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Disconnect)
	signer, err := keys.Load("", "test")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return &fixture{api: newAppliance(t, moodle), store: store, signer: signer}
}

func (f *fixture) manager() *Manager {
	return NewManager(f.api, f.store, f.signer, time.Hour)
}

func requestWith(cookie string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/admin/console/health", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
	return r
}

func TestLoginResolveDestroy(t *testing.T) {
	f := newFixture(t, "1")
	m := f.manager()
	ctx := context.Background()

	s, cookie, err := m.Login(ctx, "connectbox")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token != apiclient.BasicToken("admin", "connectbox") {
		t.Fatalf("token = %q", s.Token)
	}
	if _, err := s.LMS(); err != nil {
		t.Fatalf("LMS: %v", err)
	}

	got, err := m.Resolve(ctx, requestWith(cookie))
	if err != nil || got != s {
		t.Fatalf("Resolve = %p %v, want %p", got, err, s)
	}

	// A new process finds the session in the store.
	restarted := f.manager()
	again, err := restarted.Resolve(ctx, requestWith(cookie))
	if err != nil || again.ID != s.ID || again.Token != s.Token {
		t.Fatalf("Resolve after restart = %+v %v", again, err)
	}
	if _, err := again.LMS(); err != nil {
		t.Fatalf("LMS after restart: %v", err)
	}

	if err := m.Destroy(ctx, s.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m.Resolve(ctx, requestWith(cookie)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Resolve after destroy err = %v", err)
	}
	if err := m.Destroy(ctx, s.ID); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
}

func TestStoredCredentialIsSealed(t *testing.T) {
	f := newFixture(t, "1")
	m := f.manager()
	ctx := context.Background()

	s, _, err := m.Login(ctx, "connectbox")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	rec, err := f.store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if rec.Token == s.Token || strings.Contains(rec.Token, "YWRtaW46Y29ubmVjdGJveA") {
		t.Fatalf("stored token = %q", rec.Token)
	}

	// A record whose credential does not open is no session.
	now := time.Now()
	bad := &srepo.Record{ID: "bad", Token: "Basic YWRtaW46eA==", LMS: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := f.store.Create(ctx, bad); err != nil {
		t.Fatalf("Create: %v", err)
	}
	cookie, err := f.signer.Sign("bad", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve(ctx, requestWith(cookie)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Resolve err = %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	m := newFixture(t, "1").manager()
	_, _, err := m.Login(context.Background(), "nope")
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Code != http.StatusUnauthorized || ae.Errors[0] != "Invalid password" {
		t.Fatalf("err = %#v", err)
	}
}

func TestSessionWithoutLMS(t *testing.T) {
	m := newFixture(t, "0").manager()
	s, _, err := m.Login(context.Background(), "connectbox")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.LMS(); !errors.Is(err, ErrNoLMS) {
		t.Fatalf("LMS err = %v", err)
	}
}

func TestResolveRejectsBadCookies(t *testing.T) {
	f := newFixture(t, "1")
	m := f.manager()
	ctx := context.Background()

	if _, err := m.Resolve(ctx, httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("no cookie err = %v", err)
	}
	if _, err := m.Resolve(ctx, requestWith("garbage")); !errors.Is(err, ErrNoSession) {
		t.Fatalf("garbage err = %v", err)
	}
	// Signed, but never stored.
	orphan, err := f.signer.Sign("unknown", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve(ctx, requestWith(orphan)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("orphan err = %v", err)
	}
}

func TestPurgeDropsExpired(t *testing.T) {
	f := newFixture(t, "0")
	m := f.manager()
	ctx := context.Background()
	clock := time.Now()
	m.now = func() time.Time { return clock }

	s, _, err := m.Login(ctx, "connectbox")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	clock = clock.Add(2 * time.Hour)
	if _, err := m.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	m.mu.Lock()
	_, live := m.live[s.ID]
	m.mu.Unlock()
	if live {
		t.Fatal("expired session still live")
	}
}

func TestCookies(t *testing.T) {
	m := NewManager(nil, nil, nil, time.Hour, WithSecureCookie(true))
	w := httptest.NewRecorder()
	m.SetCookie(w, "v")
	m.ClearCookie(w)
	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %v", cookies)
	}
	if c := cookies[0]; c.Value != "v" || c.MaxAge != 3600 || !c.HttpOnly || !c.Secure || c.Path != "/admin/" {
		t.Fatalf("set cookie = %+v", c)
	}
	if c := cookies[1]; c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("clear cookie = %+v", c)
	}
}
