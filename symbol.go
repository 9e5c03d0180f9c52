package codeindex

// SymbolKind enumerates the structural kinds a plugin may report. Ordering
// here also fixes lookup_symbol's kind-priority tiebreak: class, function,
// method, other.
type SymbolKind string

const (
	SymbolClass    SymbolKind = "class"
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolVariable SymbolKind = "variable"
	SymbolModule   SymbolKind = "module"
	SymbolType     SymbolKind = "type"
	SymbolMacro    SymbolKind = "macro"
	SymbolOther    SymbolKind = "other"
)

// kindPriority orders kinds for lookup_symbol's deterministic tiebreak:
// class, function, method, then everything else in the order listed.
var kindPriority = map[SymbolKind]int{
	SymbolClass:    0,
	SymbolFunction: 1,
	SymbolMethod:   2,
	SymbolVariable: 3,
	SymbolModule:   4,
	SymbolType:     5,
	SymbolMacro:    6,
	SymbolOther:    7,
}

// KindPriority returns the tiebreak rank for k; unrecognized kinds sort last.
func KindPriority(k SymbolKind) int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority)
}

// Symbol is one structural definition extracted by a language plugin.
//
// Identity is (file_id, kind, qualified-name, start-line). Symbols are
// purged and reinserted whenever their file is re-indexed, so a Symbol's
// lifetime never outlives the file-indexing transaction that produced it.
type Symbol struct {
	ID             int64      `json:"id"`
	FileID         int64      `json:"file_id"`
	Kind           SymbolKind `json:"kind"`
	Name           string     `json:"name"`
	QualifiedName  string     `json:"qualified_name"`
	Signature      string     `json:"signature"`
	Documentation  string     `json:"documentation,omitempty"`
	StartLine      int        `json:"start_line"`
	StartCol       int        `json:"start_col"`
	EndLine        int        `json:"end_line"`
	EndCol         int        `json:"end_col"`
	Language       string     `json:"language"`
}
