package golang

import (
	"context"
	"strings"

	"github.com/package-url/packageurl-go"

	pluginregistry "github.com/codeindex/codeindex/internal/pluginregistry"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/pkg/purl"
)

func init() {
	pluginregistry.Register[plugin.Plugin]("go", &pluginregistry.Description[plugin.Plugin]{
		New: func(_ context.Context, _ func(any) error) (plugin.Plugin, error) {
			return New(), nil
		},
		Default: true,
	})
	purl.Default.RegisterLanguage("go", GeneratePurl)
	purl.Default.RegisterPurlType(PurlType, purl.NoneNamespace, ParsePurl)
}

// PurlType is the packageurl-go "type" segment this plugin generates and
// parses, "pkg:golang/...".
const PurlType = "golang"

// GeneratePurl renders a Go import path as a "pkg:golang/..." purl. The
// module host (e.g. "github.com") becomes the namespace and the remaining
// path segments the name, matching how the Go module proxy addresses
// packages. Exported so a caller assembling its own purl.Registry (rather
// than relying on this package's init() side effect against the global
// purl.Default) can wire the same generator explicitly.
func GeneratePurl(_ context.Context, importPath string) (packageurl.PackageURL, error) {
	parts := strings.SplitN(importPath, "/", 2)
	if len(parts) == 1 {
		return packageurl.PackageURL{Type: PurlType, Name: parts[0]}, nil
	}
	return packageurl.PackageURL{
		Type:      PurlType,
		Namespace: parts[0],
		Name:      parts[1],
	}, nil
}

// ParsePurl recovers the import path GeneratePurl encoded into p.
func ParsePurl(_ context.Context, p packageurl.PackageURL) ([]string, error) {
	if p.Namespace == "" || p.Namespace == purl.NoneNamespace {
		return []string{p.Name}, nil
	}
	return []string{p.Namespace + "/" + p.Name}, nil
}
