package codeindex

// ReferenceKind enumerates the cross-reference edges plugins may report.
type ReferenceKind string

const (
	ReferenceCall    ReferenceKind = "call"
	ReferenceImport  ReferenceKind = "import"
	ReferenceInherit ReferenceKind = "inherit"
	ReferenceMention ReferenceKind = "mention"
)

// Reference is one edge in the (possibly cyclic) cross-file reference graph.
//
// References are optional: only plugins that support cross-reference
// extraction populate them. Storage stores edges as plain (symbol_id,
// file_id, line) tuples with no ownership implied; traversal is
// query-driven and the storage engine never recurses into plugin code to
// produce it.
type Reference struct {
	ID       int64         `json:"id"`
	SymbolID int64         `json:"symbol_id"`
	FileID   int64         `json:"file_id"`
	Line     int           `json:"line"`
	Col      int           `json:"col"`
	Kind     ReferenceKind `json:"kind"`
}
