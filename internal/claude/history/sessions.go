package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

const (
	sessionsIndexFile = "sessions-index.json"
	sessionFileExt    = ".jsonl"
)

// SessionEntry describes one session, from the CLI's sessions index or from
// a scan of the project directory.
type SessionEntry struct {
	SessionID    string  `json:"sessionId"`
	FullPath     string  `json:"fullPath,omitempty"`
	FileMtime    *int64  `json:"fileMtime,omitempty"`
	FirstPrompt  *string `json:"firstPrompt,omitempty"`
	MessageCount *int64  `json:"messageCount,omitempty"`
	Created      *string `json:"created,omitempty"`
	Modified     *string `json:"modified,omitempty"`
	GitBranch    *string `json:"gitBranch,omitempty"`
	ProjectPath  *string `json:"projectPath,omitempty"`
	IsSidechain  *bool   `json:"isSidechain,omitempty"`
}

// SortKey orders sessions newest first: the index's modified time, else the
// file mtime.
func (e SessionEntry) SortKey() int64 {
	if ms, ok := ParseTimestamp(e.Modified); ok {
		return ms
	}
	if e.FileMtime != nil {
		return *e.FileMtime
	}
	return 0
}

// Sidechain reports whether the index flagged the session as a sidechain.
func (e SessionEntry) Sidechain() bool {
	return e.IsSidechain != nil && *e.IsSidechain
}

// Reader resolves and reads session logs below one claude home.
type Reader struct {
	home   string
	logger *logger.Logger
}

// NewReader creates a Reader. An empty home resolves the default.
func NewReader(home string, log *logger.Logger) *Reader {
	if strings.TrimSpace(home) == "" {
		home = ResolveClaudeHome()
	}
	return &Reader{
		home:   home,
		logger: log.WithFields(zap.String("component", "session-history")),
	}
}

// Home returns the claude home directory in use.
func (r *Reader) Home() string {
	return r.home
}

// ProjectDir returns the directory holding a workspace's session logs, or ""
// when no home is known.
func (r *Reader) ProjectDir(workspacePath string) string {
	if r.home == "" {
		return ""
	}
	return filepath.Join(r.home, "projects", EncodeProjectPath(workspacePath))
}

func (r *Reader) indexPath(workspacePath string) string {
	dir := r.ProjectDir(workspacePath)
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, sessionsIndexFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// ResolveSessionPath finds a session's log: the index's fullPath first, then
// <project>/<id>.jsonl. Returns "" when neither exists.
func (r *Reader) ResolveSessionPath(workspacePath, sessionID string) string {
	for _, entry := range r.readIndex(workspacePath) {
		if entry.SessionID == sessionID && entry.FullPath != "" {
			return entry.FullPath
		}
	}
	dir := r.ProjectDir(workspacePath)
	if dir == "" {
		return ""
	}
	candidate := filepath.Join(dir, sessionID+sessionFileExt)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// SessionExists reports whether the CLI has a log for the session, meaning
// it can be resumed.
func (r *Reader) SessionExists(workspacePath, sessionID string) bool {
	return r.ResolveSessionPath(workspacePath, sessionID) != ""
}

// LoadSessions merges the sessions index with a scan of the project
// directory. Index values win; scanned values fill the gaps.
func (r *Reader) LoadSessions(workspacePath string) []SessionEntry {
	indexed := r.readIndex(workspacePath)
	scanned := r.scanProject(workspacePath)
	if len(indexed) == 0 {
		return scanned
	}

	merged := make(map[string]*SessionEntry, len(indexed)+len(scanned))
	order := make([]string, 0, len(indexed)+len(scanned))
	for i := range indexed {
		entry := indexed[i]
		if _, ok := merged[entry.SessionID]; !ok {
			order = append(order, entry.SessionID)
		}
		merged[entry.SessionID] = &entry
	}
	for i := range scanned {
		found := scanned[i]
		existing, ok := merged[found.SessionID]
		if !ok {
			merged[found.SessionID] = &found
			order = append(order, found.SessionID)
			continue
		}
		if existing.FileMtime == nil || (found.FileMtime != nil && *found.FileMtime > *existing.FileMtime) {
			existing.FileMtime = found.FileMtime
		}
		if existing.FirstPrompt == nil {
			existing.FirstPrompt = found.FirstPrompt
		}
		if existing.MessageCount == nil {
			existing.MessageCount = found.MessageCount
		}
		if existing.GitBranch == nil {
			existing.GitBranch = found.GitBranch
		}
		if existing.ProjectPath == nil {
			existing.ProjectPath = found.ProjectPath
		}
	}

	out := make([]SessionEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	r.logger.Debug("loaded sessions",
		zap.String("workspace_path", workspacePath),
		zap.Int("indexed", len(indexed)),
		zap.Int("scanned", len(scanned)),
		zap.Int("total", len(out)))
	return out
}

// readIndex parses sessions-index.json, which is either {"entries": [...]},
// {"sessions": [...]} or a bare array. Undecodable entries are skipped.
func (r *Reader) readIndex(workspacePath string) []SessionEntry {
	path := r.indexPath(workspacePath)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("failed to read sessions index", zap.String("path", path), zap.Error(err))
		return nil
	}

	var raw []json.RawMessage
	var wrapped struct {
		Entries  []json.RawMessage `json:"entries"`
		Sessions []json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		raw = wrapped.Entries
		if raw == nil {
			raw = wrapped.Sessions
		}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		r.logger.Warn("failed to parse sessions index", zap.String("path", path), zap.Error(err))
		return nil
	}

	entries := make([]SessionEntry, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var entry SessionEntry
		if err := json.Unmarshal(item, &entry); err != nil || entry.SessionID == "" {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	if skipped > 0 {
		r.logger.Debug("skipped sessions index entries",
			zap.String("path", path),
			zap.Int("skipped", skipped),
			zap.Int("total", len(raw)))
	}
	return entries
}

func (r *Reader) scanProject(workspacePath string) []SessionEntry {
	files := listLogFiles(r.ProjectDir(workspacePath))
	entries := make([]SessionEntry, 0, len(files))
	for _, file := range files {
		meta := r.scanMetadata(file.path)
		mtime := file.mtime
		projectPath := workspacePath
		sidechain := false
		entries = append(entries, SessionEntry{
			SessionID:    file.id,
			FileMtime:    &mtime,
			FirstPrompt:  meta.firstPrompt,
			MessageCount: meta.messageCount,
			GitBranch:    meta.gitBranch,
			ProjectPath:  &projectPath,
			IsSidechain:  &sidechain,
		})
	}
	return entries
}

type logFile struct {
	id    string
	path  string
	mtime int64
}

// listLogFiles returns every <id>.jsonl directly inside dir.
func listLogFiles(dir string) []logFile {
	if dir == "" {
		return nil
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []logFile
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || filepath.Ext(name) != sessionFileExt {
			continue
		}
		id := strings.TrimSuffix(name, sessionFileExt)
		if id == "" {
			continue
		}
		var mtime int64
		if info, err := dirEntry.Info(); err == nil {
			mtime = info.ModTime().UnixMilli()
		}
		files = append(files, logFile{id: id, path: filepath.Join(dir, name), mtime: mtime})
	}
	return files
}

type sessionMetadata struct {
	firstPrompt  *string
	messageCount *int64
	gitBranch    *string
}

func (r *Reader) scanMetadata(path string) sessionMetadata {
	var meta sessionMetadata
	var count int64
	err := forEachLine(path, func(line claudecode.Line) {
		kind := line.Type()
		if kind == claudecode.MessageTypeUser || kind == claudecode.MessageTypeAssistant {
			count++
		}
		if meta.gitBranch == nil {
			if branch, ok := line["gitBranch"].(string); ok {
				meta.gitBranch = &branch
			}
		}
		if meta.firstPrompt == nil && kind == claudecode.MessageTypeUser {
			if text := claudecode.MessageText(line.Message()); text != "" {
				meta.firstPrompt = &text
			}
		}
	})
	if err != nil {
		r.logger.Warn("failed to read session log", zap.String("path", path), zap.Error(err))
	}
	if count > 0 {
		meta.messageCount = &count
	}
	return meta
}

// forEachLine calls fn for every decodable JSON object line of a log file.
// Blank and malformed lines are skipped.
func forEachLine(path string, fn func(claudecode.Line)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		data, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
			if line, perr := claudecode.ParseLine(trimmed); perr == nil {
				fn(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ParseTimestamp parses an RFC 3339 timestamp into Unix milliseconds.
func ParseTimestamp(value *string) (int64, bool) {
	if value == nil {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, *value)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// valueMillis reads a log timestamp: RFC 3339 strings, or epoch numbers in
// seconds or milliseconds.
func valueMillis(v any) (int64, bool) {
	switch value := v.(type) {
	case string:
		return ParseTimestamp(&value)
	case float64:
		raw := int64(value)
		if float64(raw) != value {
			return 0, false
		}
		if raw < 1_000_000_000_000 {
			raw *= 1000
		}
		return raw, true
	}
	return 0, false
}
