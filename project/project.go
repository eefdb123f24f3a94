// Package project defines the project data model and its persistent store.
package project

import (
	"time"

	"github.com/uplinkd/git-uplink/id"
)

// ID identifies a project. Identifiers of other entity kinds do not
// type-check where an ID is expected.
type ID = id.ID[Project]

// Project is a local repository registered for replication to the uplink
// server. The store owns the persisted form; the sync engine only reads
// projects and requests partial updates.
type Project struct {
	ID       ID     `json:"id"`
	RepoPath string `json:"repo_path"`

	// CodeGitURL is the per-project remote on the uplink server. Empty
	// means the project has no remote configured and is skipped by sync.
	CodeGitURL string `json:"code_git_url,omitempty"`

	SyncEnabled bool `json:"sync_enabled"`

	// PushState is the last checkpoint acknowledged as pushed, or nil
	// before the first successful batch.
	PushState *PushState `json:"push_state,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushState records the last commit confirmed pushed to the uplink server
// and when it was recorded. It is replaced atomically as a whole; partial
// writes are never visible.
type PushState struct {
	// LastPushedCommit is the commit id in hex text form.
	LastPushedCommit string    `json:"last_pushed_commit"`
	Timestamp        time.Time `json:"timestamp"`
}

// UpdateRequest is a partial update of a project. Only non-nil fields are
// applied; everything else keeps its stored value.
type UpdateRequest struct {
	ID ID

	RepoPath    *string
	CodeGitURL  *string
	SyncEnabled *bool
	PushState   *PushState
}
