package enrollments

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Clock supplies timestamps for created/modified columns.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store holds users and program enrollments in SQLite.
//
// Writes always go to the primary database. Reads go to the read replica
// when one is configured, otherwise to the primary.
type Store struct {
	db      *sql.DB
	replica *sql.DB
	clock   Clock
	logger  *slog.Logger

	replicaPath string
}

// Option configures a Store.
type Option func(*Store)

// WithReadReplica serves reads from a read-only connection to path.
func WithReadReplica(path string) Option {
	return func(s *Store) {
		s.replicaPath = path
	}
}

// WithClock overrides the timestamp source (for tests).
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens the enrollment database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{clock: systemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	s.db = db

	if s.replicaPath != "" {
		replica, err := sql.Open("sqlite3", "file:"+s.replicaPath+"?mode=ro&_busy_timeout=5000")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open read replica: %w", err)
		}
		if err := replica.Ping(); err != nil {
			replica.Close()
			db.Close()
			return nil, fmt.Errorf("failed to connect to read replica: %w", err)
		}
		s.replica = replica
		s.logger.Debug("enrollments read replica configured", "path", s.replicaPath)
	}
	return s, nil
}

// Close closes the primary and replica connections.
func (s *Store) Close() error {
	var errs []error
	if s.replica != nil {
		errs = append(errs, s.replica.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// reader returns the connection used for read-only queries.
func (s *Store) reader() *sql.DB {
	if s.replica != nil {
		return s.replica
	}
	return s.db
}

// UsesReplica reports whether reads go to a read replica.
func (s *Store) UsesReplica() bool {
	return s.replica != nil
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

// constraintError maps SQLite constraint failures to package errors.
// Uniqueness violations wrap dup.
func constraintError(err, dup error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", dup, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: referenced row does not exist: %w", ErrInvalidEnrollment, err)
	case sqlite3.ErrConstraintCheck:
		return fmt.Errorf("%w: %w", ErrInvalidEnrollment, err)
	}
	return err
}
