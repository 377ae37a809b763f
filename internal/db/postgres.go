package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	// postgresApplicationName shows up in pg_stat_activity.
	postgresApplicationName = "claude-monitor-daemon"

	defaultPostgresMaxConns = 4
	defaultPostgresMinConns = 1
	postgresConnectTimeout  = 10 * time.Second
	postgresMaxIdleTime     = 5 * time.Minute
)

// OpenPostgres connects to a shared registry database, letting several
// daemons see the same workspaces. maxConns and minConns fall back to small
// defaults; the daemon issues few queries.
func OpenPostgres(dsn string, maxConns, minConns int) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = postgresApplicationName
	}
	conn := stdlib.OpenDB(*connCfg)

	if maxConns <= 0 {
		maxConns = defaultPostgresMaxConns
	}
	if minConns <= 0 {
		minConns = defaultPostgresMinConns
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(min(minConns, maxConns))
	conn.SetConnMaxIdleTime(postgresMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to workspace registry at %s:%d: %w", connCfg.Host, connCfg.Port, err)
	}
	return conn, nil
}
