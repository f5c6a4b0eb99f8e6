package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/dynatos/pos-terminal/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists the signed-in operator between terminal restarts. It keeps
// an in-memory snapshot that Load refreshes and Clear drops.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.RWMutex
	current *record
}

type record struct {
	session domain.Session
	token   string
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces any persisted session.
func (s *Store) Save(ctx context.Context, sess domain.Session, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, display_name, role, token, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			role = excluded.role,
			token = excluded.token,
			saved_at = excluded.saved_at`,
		sess.UserID, sess.DisplayName, string(sess.Role), token, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	s.current = &record{session: sess, token: token}
	s.mu.Unlock()
	return nil
}

// Load re-reads the persisted session. It never fails: a missing, unreadable
// or expired session is reported as absent.
func (s *Store) Load(ctx context.Context) (domain.Session, bool) {
	rec, err := s.read(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("session load failed: %v", err)
		}
		rec = nil
	}
	if rec != nil && tokenExpired(rec.token, s.now()) {
		log.Printf("persisted session for user %d has an expired token", rec.session.UserID)
		rec = nil
	}

	s.mu.Lock()
	s.current = rec
	s.mu.Unlock()

	if rec == nil {
		return domain.Session{}, false
	}
	return rec.session, true
}

func (s *Store) read(ctx context.Context) (*record, error) {
	var (
		rec  record
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, role, token FROM session WHERE id = 1`).
		Scan(&rec.session.UserID, &rec.session.DisplayName, &role, &rec.token)
	if err != nil {
		return nil, err
	}
	if rec.token == "" {
		return nil, errors.New("persisted session has no token")
	}
	rec.session.Role = domain.ParseRole(role)
	return &rec, nil
}

// Current returns the snapshot taken by the last Load or Save. A session
// whose token has expired since then is reported as absent.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || tokenExpired(s.current.token, s.now()) {
		return domain.Session{}, false
	}
	return s.current.session, true
}

// Token implements api.TokenSource.
func (s *Store) Token(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.token
}

// Clear drops every persisted trace of the session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque (non-JWT) tokens never expire client-side.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !exp.After(now)
}
