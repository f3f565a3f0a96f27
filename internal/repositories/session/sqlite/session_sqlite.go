package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"

	srepo "github.com/connectbox/console/pkg/repositories/session"
)

// SQLiteRepo keeps admin sessions in a single SQLite file. Times are stored
// as unix milliseconds.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open session db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "session db pragma")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "session db schema")
	}
	return &SQLiteRepo{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS admin_sessions (
    id TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    lms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires_at ON admin_sessions(expires_at);
`)
	return err
}

func (r *SQLiteRepo) Disconnect() { _ = r.db.Close() }

func (r *SQLiteRepo) Health() error { return r.db.Ping() }

var _ srepo.Repository = (*SQLiteRepo)(nil)

func (r *SQLiteRepo) Create(ctx context.Context, rec *srepo.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("empty session id")
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Expired rows go whenever a new session starts.
	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, r.now().UnixMilli()); err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, token, lms, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Token, boolInt(rec.LMS), created.UnixMilli(), rec.ExpiresAt.UnixMilli())
	if err != nil {
		return pkgerrors.Wrapf(err, "insert session %s", rec.ID)
	}
	return tx.Commit()
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (*srepo.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, token, lms, created_at, expires_at FROM admin_sessions WHERE id = ?`, id)
	var (
		rec              srepo.Record
		lms              int
		created, expires int64
	)
	if err := row.Scan(&rec.ID, &rec.Token, &lms, &created, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, srepo.ErrNotFound
		}
		return nil, err
	}
	rec.LMS = lms != 0
	rec.CreatedAt = time.UnixMilli(created)
	rec.ExpiresAt = time.UnixMilli(expires)
	if rec.Expired(r.now()) {
		return nil, srepo.ErrNotFound
	}
	return &rec, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
