package codeindex

import "time"

// Repository is the registry's record for one tracked working tree.
//
// The repository id is derived from the VCS remote URL when one is
// available, else from the canonicalized working-tree path, encoded as a
// short hex fingerprint (see the registry package's IdentityFor).
type Repository struct {
	ID   string `json:"id"`
	Root string `json:"root"`
	// RemoteURL is empty when the working tree has no configured remote.
	RemoteURL string `json:"remote_url,omitempty"`
	// CurrentCommit and CurrentBranch reflect the VCS HEAD observed at the
	// last sync. LastIndexedCommit is the commit storage was last brought
	// up to date with; it may lag CurrentCommit between a commit advance
	// and the next sync.
	CurrentCommit     string `json:"current_commit,omitempty"`
	CurrentBranch     string `json:"current_branch,omitempty"`
	LastIndexedCommit string `json:"last_indexed_commit,omitempty"`
	// IndexLocation is the directory under the index root holding this
	// repository's snapshots.
	IndexLocation string `json:"index_location"`
	AutoSync      bool   `json:"auto_sync"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
