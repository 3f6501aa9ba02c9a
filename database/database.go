package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"sweepsapp/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrInvalidState = errors.New("record is not in a state that allows this")
)

//go:embed schema.sql
var schemaSQL string

var (
	globalPool *pgxpool.Pool
	dbOnce     sync.Once
	dbMux      sync.Mutex
	isClosed   bool
)

// Database wraps the pgx pool; every store method hangs off it.
type Database struct {
	pool *pgxpool.Pool
}

// NewDatabase returns a Database on the global pool. ConnectPostgres must run first.
func NewDatabase() (*Database, error) {
	if globalPool == nil {
		return nil, errors.New("database not initialized, call ConnectPostgres first")
	}
	return &Database{pool: globalPool}, nil
}

func NewDatabaseWithPool(pool *pgxpool.Pool) *Database {
	return &Database{pool: pool}
}

// ConnectPostgres initializes the global pool once.
func ConnectPostgres(cfg *config.Config) error {
	var connErr error
	dbOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
		if err != nil {
			connErr = fmt.Errorf("failed to parse DSN: %w", err)
			return
		}

		pg := cfg.Production.Postgres
		poolConfig.MaxConns = pg.MaxConns
		poolConfig.MinConns = pg.MinConns
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute
		poolConfig.HealthCheckPeriod = 1 * time.Minute
		poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = "10000"
		poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

		logrus.Infof("Initializing database pool with %d max connections", poolConfig.MaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			connErr = fmt.Errorf("failed to create connection pool: %w", err)
			return
		}
		if err := pool.Ping(ctx); err != nil {
			connErr = fmt.Errorf("failed to ping database: %w", err)
			pool.Close()
			return
		}
		globalPool = pool

		stats := pool.Stat()
		logrus.WithFields(logrus.Fields{
			"max":   poolConfig.MaxConns,
			"total": stats.TotalConns(),
			"idle":  stats.IdleConns(),
		}).Info("PostgreSQL pool ready")
	})
	return connErr
}

func GetPool() *pgxpool.Pool {
	return globalPool
}

// Close DB pool
func Close() {
	dbMux.Lock()
	defer dbMux.Unlock()

	if !isClosed && globalPool != nil {
		globalPool.Close()
		isClosed = true
		logrus.Info("PostgreSQL pool closed")
	}
}

func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (db *Database) Migrate(ctx context.Context) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction on an acquired connection and commits
// when fn returns nil.
func (db *Database) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
