package golang

import (
	"testing"

	"github.com/codeindex/codeindex"
)

const sample = `package sample

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}

type Greeter struct{}

func (g *Greeter) Greet() string {
	return Greet("world")
}
`

func TestIndex(t *testing.T) {
	p := New()
	ext, err := p.Index("sample.go", []byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(ext.Imports) != 1 || ext.Imports[0] != "fmt" {
		t.Errorf("got imports %v, want [fmt]", ext.Imports)
	}

	var foundFunc, foundMethod, foundType bool
	for _, sym := range ext.Symbols {
		switch {
		case sym.Name == "Greet" && sym.Kind == codeindex.SymbolFunction:
			foundFunc = true
		case sym.Name == "Greet" && sym.Kind == codeindex.SymbolMethod:
			foundMethod = true
		case sym.Name == "Greeter" && sym.Kind == codeindex.SymbolClass:
			foundType = true
		}
	}
	if !foundFunc {
		t.Error("missing top-level Greet function symbol")
	}
	if !foundMethod {
		t.Error("missing Greeter.Greet method symbol")
	}
	if !foundType {
		t.Error("missing Greeter type symbol")
	}
}

func TestIndexParseError(t *testing.T) {
	p := New()
	if _, err := p.Index("broken.go", []byte("package sample\nfunc ( {")); err == nil {
		t.Error("expected parse error")
	}
}

func TestSupports(t *testing.T) {
	p := New()
	if !p.Supports("a/b.go") {
		t.Error("should support .go files")
	}
	if p.Supports("a/b.py") {
		t.Error("should not support .py files")
	}
}
