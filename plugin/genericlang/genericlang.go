// Package genericlang implements the text-only fallback plugin used when
// no specialized plugin claims a file: it produces no symbols, only the
// raw content for full-text indexing.
package genericlang

import (
	"bytes"

	"github.com/codeindex/codeindex/plugin"
)

// Plugin is the generic, always-claims-everything fallback.
type Plugin struct{}

// New returns a ready generic Plugin.
func New() *Plugin { return &Plugin{} }

// Supports always returns true: this plugin is the catch-all, consulted
// only after every specialized plugin has declined a file.
func (*Plugin) Supports(string) bool { return true }

// Language returns "text".
func (*Plugin) Language() string { return "text" }

// Variant reports this plugin as generic.
func (*Plugin) Variant() plugin.Variant { return plugin.VariantGeneric }

// Index returns an empty Extraction; the generic plugin contributes no
// structure, only full-text content (written by the indexer directly from
// the file bytes, not through this method).
func (*Plugin) Index(string, []byte) (plugin.Extraction, error) {
	return plugin.Extraction{}, nil
}

// ExtractSnippet returns the raw lines [startLine, endLine] of content.
func (*Plugin) ExtractSnippet(content []byte, startLine, endLine int) string {
	lines := bytes.Split(content, []byte("\n"))
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine || startLine > len(lines) {
		return ""
	}
	return string(bytes.Join(lines[startLine-1:endLine], []byte("\n")))
}
