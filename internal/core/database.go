// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/jpillora/backoff"

	"github.com/carterperez-dev/creator-outreach/internal/config"
)

const (
	pgUniqueViolation = "23505"
	connectAttempts   = 5
)

type Database struct {
	DB *sqlx.DB
}

// NewDatabase retries the first ping with backoff so the worker and API
// can start alongside Postgres instead of racing it.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(jitter(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: db}
	b := &backoff.Backoff{Min: 250 * time.Millisecond, Max: 4 * time.Second, Factor: 2, Jitter: true}

	for attempt := 1; ; attempt++ {
		err = d.Ping(ctx)
		if err == nil {
			return d, nil
		}
		if attempt == connectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(b.Duration()):
			continue
		}
		break
	}

	_ = db.Close() //nolint:errcheck // connection never came up
	return nil, fmt.Errorf("connect to database: %w", err)
}

func (d *Database) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, so a repository built
// on it can run inside or outside a transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// InTx commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck // re-panicking
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// jitter spreads connection recycling so a pool opened at once does not
// reconnect at once.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	//nolint:gosec // pool timing, not security
	return base + time.Duration(rand.Int64N(int64(base/7)+1))
}
