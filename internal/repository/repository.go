// Package repository provides sqlx-backed persistence for alerts,
// notification preferences and the business records the scanner inspects.
//
// The same queries run against SQLite (desktop, tests) and PostgreSQL
// (multi-terminal deployments). Queries are written with ? placeholders and
// passed through Rebind; booleans and timestamps are always bound as
// parameters so both dialects see identical values.
//
// Import Path: sphincs.io/sphincs/internal/repository
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

// Dialect is the SQL flavour behind a *sqlx.DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectOf derives the dialect from the sqlx driver name.
func DialectOf(db *sqlx.DB) Dialect {
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		return DialectPostgres
	}
	return DialectSQLite
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
