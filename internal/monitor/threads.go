package monitor

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/history"
)

// Thread listing bounds.
const (
	defaultThreadLimit = 20
	maxThreadLimit     = 50
)

// NewThread is a thread that has no session log yet.
type NewThread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Cwd       string `json:"cwd"`
}

// StartThreadResult is returned by StartThread.
type StartThreadResult struct {
	Thread NewThread `json:"thread"`
}

// ResumeThreadResult is returned by ResumeThread.
type ResumeThreadResult struct {
	Thread *history.Thread `json:"thread"`
}

// ThreadPage is one page of ListThreads.
type ThreadPage struct {
	Data       []history.ThreadSummary `json:"data"`
	NextCursor *string                 `json:"nextCursor"`
}

// SearchResult lists the threads matching a search.
type SearchResult struct {
	Data []history.ThreadSummary `json:"data"`
}

// ForkThreadResult names the session created by ForkThread.
type ForkThreadResult struct {
	ThreadID string `json:"threadId"`
}

// StartThread allocates a thread id. No process starts until the first message.
func (s *Service) StartThread(_ context.Context, workspaceID string) (*StartThreadResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	return &StartThreadResult{Thread: NewThread{
		ID:        s.newID(),
		CreatedAt: now,
		UpdatedAt: now,
		Cwd:       ws.Path(),
	}}, nil
}

// ResumeThread replays a thread's session log.
func (s *Service) ResumeThread(_ context.Context, workspaceID, threadID string) (*ResumeThreadResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	thread, err := s.history.BuildThread(ws.Path(), threadID)
	if err != nil {
		return nil, err
	}
	return &ResumeThreadResult{Thread: thread}, nil
}

// ListThreads pages through the workspace's sessions, newest first. The
// cursor is the offset of the next page. Subagent threads follow their parent
// and do not count against the limit.
func (s *Service) ListThreads(ctx context.Context, workspaceID, cursor string, limit *int) (*ThreadPage, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	archived, err := s.store.ArchivedThreadIDs(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	entries := s.history.LoadSessions(ws.Path())
	visible := make([]history.SessionEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Sidechain() || archived[entry.SessionID] {
			continue
		}
		visible = append(visible, entry)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].SortKey() > visible[j].SortKey()
	})

	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		offset = 0
	}
	pageSize := defaultThreadLimit
	if limit != nil {
		pageSize = min(max(*limit, 1), maxThreadLimit)
	}
	start := min(offset, len(visible))
	end := min(start+pageSize, len(visible))

	page := &ThreadPage{Data: make([]history.ThreadSummary, 0, end-start)}
	if end < len(visible) {
		next := strconv.Itoa(end)
		page.NextCursor = &next
	}
	for _, entry := range visible[start:end] {
		summary := history.Summarize(entry, ws.Path())
		page.Data = append(page.Data, summary)
		page.Data = append(page.Data, s.history.ListSubagentThreads(ws.Path(), summary.ID, summary.Cwd)...)
	}
	return page, nil
}

// SearchThreads finds the workspace's unarchived threads whose session id
// or first prompt contains query, ignoring case. Results are newest first
// and unpaged.
func (s *Service) SearchThreads(ctx context.Context, workspaceID, query string) (*SearchResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	archived, err := s.store.ArchivedThreadIDs(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var matching []history.SessionEntry
	for _, entry := range s.history.LoadSessions(ws.Path()) {
		if entry.Sidechain() || archived[entry.SessionID] {
			continue
		}
		if matchesThread(entry, needle) {
			matching = append(matching, entry)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].SortKey() > matching[j].SortKey()
	})

	result := &SearchResult{Data: make([]history.ThreadSummary, 0, len(matching))}
	for _, entry := range matching {
		result.Data = append(result.Data, history.Summarize(entry, ws.Path()))
	}
	s.logger.Debug("thread search",
		zap.String("workspace_id", workspaceID),
		zap.String("query", query),
		zap.Int("matched", len(result.Data)),
		zap.Int("archived", len(archived)))
	return result, nil
}

func matchesThread(entry history.SessionEntry, needle string) bool {
	if strings.Contains(strings.ToLower(entry.SessionID), needle) {
		return true
	}
	return entry.FirstPrompt != nil && strings.Contains(strings.ToLower(*entry.FirstPrompt), needle)
}

// ArchiveThread hides a thread from ListThreads.
func (s *Service) ArchiveThread(ctx context.Context, workspaceID, threadID string) (*OK, error) {
	if err := s.store.ArchiveThread(ctx, workspaceID, threadID); err != nil {
		return nil, err
	}
	return &OK{OK: true}, nil
}

// ForkThread copies a thread's log up to messageID into a new thread.
func (s *Service) ForkThread(_ context.Context, workspaceID, threadID, messageID string) (*ForkThreadResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	newID, err := s.history.ForkSession(ws.Path(), threadID, messageID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("thread forked",
		zap.String("workspace_id", workspaceID),
		zap.String("thread_id", threadID),
		zap.String("fork_id", newID))
	return &ForkThreadResult{ThreadID: newID}, nil
}
