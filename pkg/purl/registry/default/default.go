// Package defaults builds a purl.Registry wired with every in-tree
// language plugin's generator and parser explicitly, as an alternative to
// relying on purl.Default, the process-wide registry each plugin package
// mutates from its own init(). Callers that want a purl.Registry without
// the side effect of blank-importing every plugin package (a unit test
// exercising purl resolution in isolation, or a tool that only cares
// about one language) construct one here instead.
package defaults

import (
	"github.com/codeindex/codeindex/pkg/purl"
	"github.com/codeindex/codeindex/plugin/golang"
)

// New constructs a registry pre-registered with every built-in language
// plugin's purl generator and parser. Callers must explicitly invoke this
// to obtain a wired registry; it never touches purl.Default.
func New() *purl.Registry {
	r := purl.NewRegistry()
	r.RegisterLanguage("go", golang.GeneratePurl)
	r.RegisterPurlType(golang.PurlType, purl.NoneNamespace, golang.ParsePurl)
	return r
}
