// Package db opens the SQLite or PostgreSQL database that backs the
// workspace registry.
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/config"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite3 = "sqlite3"
	DriverPGX     = "pgx"
)

// Pool provides separate read and write database connections.
//
// For SQLite the writer is a single connection and the reader a small
// read-only pool. For PostgreSQL both return the same *sqlx.DB.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Open opens the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*Pool, error) {
	switch cfg.Driver {
	case "", "sqlite":
		w, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		r, err := OpenSQLiteReader(cfg.Path)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		return NewPool(sqlx.NewDb(w, DriverSQLite3), sqlx.NewDb(r, DriverSQLite3)), nil
	case "postgres":
		conn, err := OpenPostgres(cfg.DSN, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		x := sqlx.NewDb(conn, DriverPGX)
		return NewPool(x, x), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Writer returns the connection used for INSERT, UPDATE and DELETE.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the connection used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// IsPostgres reports whether the pool talks to PostgreSQL.
func (p *Pool) IsPostgres() bool { return p.writer.DriverName() == DriverPGX }

// Close closes both the writer and reader pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	// Avoid double-close when both pools share the same *sqlx.DB (Postgres).
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
