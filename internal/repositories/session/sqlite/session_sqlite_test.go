package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	srepo "github.com/connectbox/console/pkg/repositories/session"
)

func newRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepo: %v", err)
	}
	t.Cleanup(repo.Disconnect)
	return repo
}

func TestCreateGetDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now()
	rec := &srepo.Record{ID: "s1", Token: "Basic abc", LMS: true, ExpiresAt: now.Add(time.Hour)}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != "Basic abc" || !got.LMS || got.ExpiresAt.UnixMilli() != rec.ExpiresAt.UnixMilli() {
		t.Fatalf("got %+v", got)
	}
	if err := repo.Create(ctx, &srepo.Record{ID: "s1", ExpiresAt: now.Add(time.Hour)}); err == nil {
		t.Fatal("duplicate id accepted")
	}
	if err := repo.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "s1"); !errors.Is(err, srepo.ErrNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
	if err := repo.Create(ctx, &srepo.Record{}); err == nil {
		t.Fatal("empty id accepted")
	}
}

func TestExpiry(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	clock := time.Now()
	repo.now = func() time.Time { return clock }

	if err := repo.Create(ctx, &srepo.Record{ID: "old", Token: "t", ExpiresAt: clock.Add(time.Minute)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock = clock.Add(30 * time.Second)
	if _, err := repo.Get(ctx, "old"); err != nil {
		t.Fatalf("live session: %v", err)
	}
	clock = clock.Add(time.Minute)
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, srepo.ErrNotFound) {
		t.Fatalf("expired err = %v", err)
	}
	n, err := repo.PurgeExpired(ctx, clock)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d %v", n, err)
	}
}
