package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// The registry sees a handful of writes per workspace and is read on every
// list_workspaces, so one writer and a few readers are plenty.
const (
	sqliteBusyTimeout = 5 * time.Second
	sqliteReaderConns = 2

	// The database sits in the daemon's data dir next to nothing else the
	// user should need to touch.
	dataDirMode = 0o700
	dbFileMode  = 0o600
)

// OpenSQLite opens the registry file for writing, creating the data dir and
// file on first run. All writes go through one connection.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	path, err := prepareSQLiteFile(dbPath)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(DriverSQLite3, sqliteDSN(path, "rwc", url.Values{
		"_journal_mode": {"WAL"},
		"_synchronous":  {"NORMAL"},
	}))
	if err != nil {
		return nil, fmt.Errorf("open workspace registry %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	return conn, nil
}

// OpenSQLiteReader opens a read-only pool on the file OpenSQLite created.
// WAL mode lets it read while the writer commits.
func OpenSQLiteReader(dbPath string) (*sql.DB, error) {
	path := absPath(dbPath)
	conn, err := sql.Open(DriverSQLite3, sqliteDSN(path, "ro", nil))
	if err != nil {
		return nil, fmt.Errorf("open workspace registry %s read-only: %w", path, err)
	}
	conn.SetMaxOpenConns(sqliteReaderConns)
	conn.SetMaxIdleConns(sqliteReaderConns)
	return conn, nil
}

func sqliteDSN(path, mode string, extra url.Values) string {
	q := url.Values{}
	q.Set("_mode", mode)
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.Itoa(int(sqliteBusyTimeout/time.Millisecond)))
	for key, values := range extra {
		q[key] = values
	}
	return "file:" + path + "?" + q.Encode()
}

// prepareSQLiteFile resolves dbPath and makes sure it and its directory
// exist with owner-only permissions.
func prepareSQLiteFile(dbPath string) (string, error) {
	if dbPath == "" {
		return "", fmt.Errorf("workspace registry path is empty")
	}
	path := absPath(dbPath)
	if err := os.MkdirAll(filepath.Dir(path), dataDirMode); err != nil {
		return "", fmt.Errorf("create data dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, dbFileMode)
	if err != nil {
		return "", fmt.Errorf("create workspace registry %s: %w", path, err)
	}
	return path, f.Close()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
