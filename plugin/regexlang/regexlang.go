// Package regexlang implements regex-driven structural extraction for
// languages without a convenient Go grammar library: each language is
// described declaratively as a set of named capture patterns mapped onto
// symbol kinds.
package regexlang

import (
	"bytes"
	"regexp"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/plugin"
)

// Rule maps one regular expression's first capture group onto a SymbolKind.
// Pattern must have exactly one capture group: the symbol name.
type Rule struct {
	Kind    codeindex.SymbolKind
	Pattern *regexp.Regexp
}

// Spec describes one regex-driven language plugin.
type Spec struct {
	Lang       string
	Extensions []string
	Rules      []Rule
}

// Plugin is a regexlang instance built from a Spec.
type Plugin struct {
	spec Spec
	ext  map[string]struct{}
}

// New builds a Plugin from spec.
func New(spec Spec) *Plugin {
	ext := make(map[string]struct{}, len(spec.Extensions))
	for _, e := range spec.Extensions {
		ext[e] = struct{}{}
	}
	return &Plugin{spec: spec, ext: ext}
}

// Supports reports whether relPath's extension is one of spec.Extensions.
func (p *Plugin) Supports(relPath string) bool {
	_, ok := p.ext[extOf(relPath)]
	return ok
}

// Language returns the configured language tag.
func (p *Plugin) Language() string { return p.spec.Lang }

// Variant reports this plugin as regex-driven.
func (p *Plugin) Variant() plugin.Variant { return plugin.VariantRegex }

// Index runs every configured rule line by line and returns the matched
// symbols. regexlang never produces references or imports: languages that
// need those should use a grammar-driven plugin instead.
func (p *Plugin) Index(_ string, content []byte) (plugin.Extraction, error) {
	var out plugin.Extraction
	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		for _, rule := range p.spec.Rules {
			m := rule.Pattern.FindSubmatch(line)
			if m == nil || len(m) < 2 {
				continue
			}
			name := string(m[1])
			out.Symbols = append(out.Symbols, codeindex.Symbol{
				Kind:          rule.Kind,
				Name:          name,
				QualifiedName: name,
				Signature:     string(bytes.TrimSpace(line)),
				StartLine:     i + 1,
				EndLine:       i + 1,
				Language:      p.spec.Lang,
			})
		}
	}
	return out, nil
}

// ExtractSnippet returns the raw lines [startLine, endLine] of content.
func (p *Plugin) ExtractSnippet(content []byte, startLine, endLine int) string {
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

func extOf(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		switch relPath[i] {
		case '.':
			return relPath[i:]
		case '/':
			return ""
		}
	}
	return ""
}

// Python is the built-in regex spec covering common Python def/class
// declarations, used when no grammar-driven Python plugin is loaded.
var Python = Spec{
	Lang:       "python",
	Extensions: []string{".py"},
	Rules: []Rule{
		{Kind: codeindex.SymbolClass, Pattern: regexp.MustCompile(`^\s*class\s+(\w+)`)},
		{Kind: codeindex.SymbolFunction, Pattern: regexp.MustCompile(`^\s*def\s+(\w+)`)},
	},
}

// JavaScript is the built-in regex spec covering common JS/TS function and
// class declarations.
var JavaScript = Spec{
	Lang:       "javascript",
	Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
	Rules: []Rule{
		{Kind: codeindex.SymbolClass, Pattern: regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)},
		{Kind: codeindex.SymbolFunction, Pattern: regexp.MustCompile(`^\s*(?:export\s+)?function\s+(\w+)`)},
		{Kind: codeindex.SymbolFunction, Pattern: regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`)},
	},
}
