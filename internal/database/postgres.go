package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PgRelayRepository struct {
	conn *sql.DB
}

func NewPgRelayRepository(ctx context.Context, dsn string) (*PgRelayRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PgRelayRepository{conn: db}, nil
}

func (db *PgRelayRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgRelayRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
