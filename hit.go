package codeindex

// SymbolHit is one result of lookup_symbol.
type SymbolHit struct {
	RepoID    string     `json:"repo_id,omitempty"`
	RelPath   string     `json:"rel_path"`
	Kind      SymbolKind `json:"kind"`
	Line      int        `json:"line"`
	Signature string     `json:"signature"`
	Language  string     `json:"language"`
	// exact records whether the match was an exact name match (true) or a
	// prefix match (false); used only to order results, never serialized.
	exact bool
}

// Exact reports whether this hit matched the query name exactly.
func (h SymbolHit) Exact() bool { return h.exact }

// WithExact returns a copy of h with the exact flag set. Storage
// implementations use this to build ordered result sets without exporting
// the field itself.
func (h SymbolHit) WithExact(exact bool) SymbolHit {
	h.exact = exact
	return h
}

// CodeHit is one result of search_code, either plugin-derived or produced by
// the direct full-text bypass.
type CodeHit struct {
	RepoID   string  `json:"repo_id,omitempty"`
	RelPath  string  `json:"rel_path"`
	Snippet  string  `json:"snippet"`
	Language string  `json:"language"`
	Score    float64 `json:"score"`
	// Source records which resolution stage produced the hit: "plugin",
	// "fulltext", or "semantic". Informational only, useful for tests
	// asserting the dispatcher's merge policy.
	Source string `json:"source"`
}

// Key returns the (repo_id, rel_path) identity search_code and the
// coordinator deduplicate hits by. CodeHit carries no line number, so hits
// at different lines of the same file share one key and only the first of
// them is kept.
func (h CodeHit) Key() string { return h.RepoID + "\x00" + h.RelPath }

// ComponentHealth is one entry of status()'s index_health array: one line
// per subsystem, never a stack trace.
type ComponentHealth struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// StatusReport is the dispatcher's status() result.
type StatusReport struct {
	Repos             []Repository      `json:"repos"`
	StorageOK         bool              `json:"storage_ok"`
	PluginsLoaded     []string          `json:"plugins_loaded"`
	SemanticAvailable bool              `json:"semantic_available"`
	IndexHealth       []ComponentHealth `json:"index_health"`
}
