// Package workspace persists the registry of project directories the
// monitor can open sessions in, and the threads archived per workspace.
package workspace

import "time"

// Entry is a registered workspace.
type Entry struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path" db:"path"`
	ClaudeBin *string   `json:"claudeBin" db:"claude_bin"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Bin returns the workspace's claude binary override, or "".
func (e *Entry) Bin() string {
	if e.ClaudeBin == nil {
		return ""
	}
	return *e.ClaudeBin
}

// Info is an Entry as reported to clients.
type Info struct {
	Entry
	Connected bool `json:"connected"`
}
