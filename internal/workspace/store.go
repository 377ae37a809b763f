package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/db"
)

// Repository is the workspace registry.
type Repository interface {
	Add(ctx context.Context, path string, claudeBin *string) (*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context) ([]*Entry, error)
	Remove(ctx context.Context, id string) error
	UpdateClaudeBin(ctx context.Context, id string, claudeBin *string) (*Entry, error)
	ArchiveThread(ctx context.Context, workspaceID, threadID string) error
	ArchivedThreadIDs(ctx context.Context, workspaceID string) (map[string]bool, error)
}

// Store implements Repository on SQLite or PostgreSQL.
type Store struct {
	db *sqlx.DB // writer
	ro *sqlx.DB // reader
}

var _ Repository = (*Store)(nil)

// NewStore creates a Store over pool and initializes its schema.
func NewStore(pool *db.Pool) (*Store, error) {
	s := &Store{db: pool.Writer(), ro: pool.Reader()}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			claude_bin TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS archived_threads (
			workspace_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			archived_at TIMESTAMP NOT NULL,
			PRIMARY KEY (workspace_id, thread_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archived_threads_workspace_id ON archived_threads(workspace_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// workspaceName is the last path element, or "Workspace" for a root path.
func workspaceName(path string) string {
	name := filepath.Base(filepath.Clean(path))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "Workspace"
	}
	return name
}

func normalizeBin(bin *string) *string {
	if bin == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*bin)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Add registers a workspace rooted at path.
func (s *Store) Add(ctx context.Context, path string, claudeBin *string) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		ID:        uuid.New().String(),
		Name:      workspaceName(path),
		Path:      path,
		ClaudeBin: normalizeBin(claudeBin),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO workspaces (id, name, path, claude_bin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Name, entry.Path, entry.ClaudeBin, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return nil, apperrors.Internal("failed to save workspace", err)
	}
	return entry, nil
}

// Get returns the workspace with id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	entry := &Entry{}
	err := s.ro.GetContext(ctx, entry, s.ro.Rebind(`
		SELECT id, name, path, claude_bin, created_at, updated_at
		FROM workspaces WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("workspace not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load workspace", err)
	}
	return entry, nil
}

// List returns every workspace ordered by name.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	err := s.ro.SelectContext(ctx, &entries, `
		SELECT id, name, path, claude_bin, created_at, updated_at
		FROM workspaces ORDER BY name, created_at
	`)
	if err != nil {
		return nil, apperrors.Internal("failed to list workspaces", err)
	}
	return entries, nil
}

// Remove deletes the workspace and its archive flags.
func (s *Store) Remove(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to remove workspace", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM workspaces WHERE id = ?`), id)
	if err != nil {
		return apperrors.Internal("failed to remove workspace", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("workspace not found")
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM archived_threads WHERE workspace_id = ?`), id); err != nil {
		return apperrors.Internal("failed to remove workspace", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("failed to remove workspace", err)
	}
	return nil
}

// UpdateClaudeBin sets or clears the workspace's binary override.
func (s *Store) UpdateClaudeBin(ctx context.Context, id string, claudeBin *string) (*Entry, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE workspaces SET claude_bin = ?, updated_at = ? WHERE id = ?
	`), normalizeBin(claudeBin), time.Now().UTC(), id)
	if err != nil {
		return nil, apperrors.Internal("failed to update workspace", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, apperrors.NotFound("workspace not found")
	}
	return s.Get(ctx, id)
}

// ArchiveThread hides a thread from listings. Archiving twice is a no-op.
func (s *Store) ArchiveThread(ctx context.Context, workspaceID, threadID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO archived_threads (workspace_id, thread_id, archived_at)
		VALUES (?, ?, ?)
		ON CONFLICT (workspace_id, thread_id) DO NOTHING
	`), workspaceID, threadID, time.Now().UTC())
	if err != nil {
		return apperrors.Internal("failed to archive thread", err)
	}
	return nil
}

// ArchivedThreadIDs returns the set of archived thread ids of a workspace.
func (s *Store) ArchivedThreadIDs(ctx context.Context, workspaceID string) (map[string]bool, error) {
	var ids []string
	err := s.ro.SelectContext(ctx, &ids, s.ro.Rebind(`
		SELECT thread_id FROM archived_threads WHERE workspace_id = ?
	`), workspaceID)
	if err != nil {
		return nil, apperrors.Internal("failed to load archived threads", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
