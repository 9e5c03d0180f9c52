// Package plugin defines the contract language plugins implement to
// extract structural information — symbols, references, imports — from
// source file content.
//
// A plugin is pure with respect to storage: it returns data, the indexer
// writes it. Plugins are polymorphic over the capability set a given
// language supports; the Plugin interface itself is the superset, and
// plugins that can't produce one piece (references, say) just return it
// empty.
package plugin

import "github.com/codeindex/codeindex"

// Extraction is everything a Plugin's Index method can produce for one
// file. It is deterministic for the same input: the same bytes at the
// same rel_path always produce the same Extraction.
type Extraction struct {
	Symbols    []codeindex.Symbol
	References []codeindex.Reference
	Imports    []string
}

// Plugin is the contract every language plugin implements.
type Plugin interface {
	// Supports reports whether this plugin claims relPath, typically by
	// extension but potentially by shebang or other content sniffing.
	Supports(relPath string) bool
	// Language returns the tag this plugin stamps onto files and symbols
	// it produces, e.g. "go", "python".
	Language() string
	// Index extracts structure from content. It must not retain content
	// past the call, and must be safe to call concurrently with itself.
	Index(relPath string, content []byte) (Extraction, error)
	// ExtractSnippet returns the text spanning [startLine, endLine] of
	// content. Implementations may default to a raw line-range slice.
	ExtractSnippet(content []byte, startLine, endLine int) string
}

// Variant classifies how a Plugin derives its Extraction. The plugin
// manager does not read it; its LRU accounting uses
// pluginmgr.Descriptor.EstimateBytes.
type Variant string

const (
	// VariantGrammar plugins parse with a real grammar (e.g. go/parser).
	VariantGrammar Variant = "grammar"
	// VariantRegex plugins extract structure with regular expressions.
	VariantRegex Variant = "regex"
	// VariantGeneric is the text-only fallback used when no specialized
	// plugin claims a file.
	VariantGeneric Variant = "generic"
)

// Described is implemented by plugins that can report their Variant. It is
// not part of the core Plugin contract, and the plugin manager does not
// consult it.
type Described interface {
	Variant() Variant
}
