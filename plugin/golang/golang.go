// Package golang implements a grammar-driven structural extraction plugin
// for Go source, built on go/parser and go/ast.
package golang

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/plugin"
)

// Plugin extracts symbols, imports, and call references from Go source.
type Plugin struct{}

// New returns a ready golang Plugin.
func New() *Plugin { return &Plugin{} }

// Supports claims ".go" files, excluding generated protobuf/mock files is
// left to the indexer's own skip rules, not this plugin.
func (*Plugin) Supports(relPath string) bool {
	return strings.HasSuffix(relPath, ".go")
}

// Language returns "go".
func (*Plugin) Language() string { return "go" }

// Variant reports this plugin as grammar-driven.
func (*Plugin) Variant() plugin.Variant { return plugin.VariantGrammar }

// Index parses content with go/parser and walks the resulting AST,
// extracting package-level declarations, imports, and call expressions.
// A parse failure is returned as an error; the caller falls back to
// full-text-only indexing for the file, per the plugin failure contract.
func (p *Plugin) Index(relPath string, content []byte) (plugin.Extraction, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return plugin.Extraction{}, fmt.Errorf("golang: parse %s: %w", relPath, err)
	}

	var out plugin.Extraction
	pkg := file.Name.Name

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		out.Imports = append(out.Imports, path)
		out.References = append(out.References, codeindex.Reference{
			Kind: codeindex.ReferenceImport,
			Line: fset.Position(imp.Pos()).Line,
			Col:  fset.Position(imp.Pos()).Column,
		})
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			out.Symbols = append(out.Symbols, funcSymbol(fset, pkg, d))
		case *ast.GenDecl:
			out.Symbols = append(out.Symbols, genDeclSymbols(fset, pkg, d)...)
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := callName(call)
		if name == "" {
			return true
		}
		pos := fset.Position(call.Pos())
		out.References = append(out.References, codeindex.Reference{
			Kind: codeindex.ReferenceCall,
			Line: pos.Line,
			Col:  pos.Column,
		})
		return true
	})

	return out, nil
}

func funcSymbol(fset *token.FileSet, pkg string, d *ast.FuncDecl) codeindex.Symbol {
	kind := codeindex.SymbolFunction
	qualified := pkg + "." + d.Name.Name
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = codeindex.SymbolMethod
		qualified = pkg + "." + receiverType(d.Recv.List[0].Type) + "." + d.Name.Name
	}
	start := fset.Position(d.Pos())
	end := fset.Position(d.End())
	return codeindex.Symbol{
		Kind:          kind,
		Name:          d.Name.Name,
		QualifiedName: qualified,
		Signature:     signatureOf(d),
		Documentation: docText(d.Doc),
		StartLine:     start.Line,
		StartCol:      start.Column,
		EndLine:       end.Line,
		EndCol:        end.Column,
		Language:      "go",
	}
}

func genDeclSymbols(fset *token.FileSet, pkg string, d *ast.GenDecl) []codeindex.Symbol {
	var out []codeindex.Symbol
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			kind := codeindex.SymbolType
			if _, ok := s.Type.(*ast.InterfaceType); ok {
				kind = codeindex.SymbolType
			}
			if _, ok := s.Type.(*ast.StructType); ok {
				kind = codeindex.SymbolClass
			}
			start := fset.Position(s.Pos())
			end := fset.Position(s.End())
			out = append(out, codeindex.Symbol{
				Kind:          kind,
				Name:          s.Name.Name,
				QualifiedName: pkg + "." + s.Name.Name,
				Documentation: docText(d.Doc),
				StartLine:     start.Line,
				StartCol:      start.Column,
				EndLine:       end.Line,
				EndCol:        end.Column,
				Language:      "go",
			})
		case *ast.ValueSpec:
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				start := fset.Position(name.Pos())
				out = append(out, codeindex.Symbol{
					Kind:          codeindex.SymbolVariable,
					Name:          name.Name,
					QualifiedName: pkg + "." + name.Name,
					StartLine:     start.Line,
					StartCol:      start.Column,
					EndLine:       start.Line,
					Language:      "go",
				})
			}
		}
	}
	return out
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "?"
	}
}

func callName(call *ast.CallExpr) string {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name
	case *ast.SelectorExpr:
		if ident, ok := fn.X.(*ast.Ident); ok {
			return ident.Name + "." + fn.Sel.Name
		}
		return fn.Sel.Name
	default:
		return ""
	}
}

func signatureOf(d *ast.FuncDecl) string {
	var b strings.Builder
	b.WriteString("func ")
	if d.Recv != nil && len(d.Recv.List) > 0 {
		b.WriteString("(...) ")
	}
	b.WriteString(d.Name.Name)
	b.WriteString("(...)")
	return b.String()
}

func docText(g *ast.CommentGroup) string {
	if g == nil {
		return ""
	}
	return strings.TrimSpace(g.Text())
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
