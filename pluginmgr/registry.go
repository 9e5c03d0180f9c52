package pluginmgr

import (
	"context"
	"fmt"

	pluginregistry "github.com/codeindex/codeindex/internal/pluginregistry"
	"github.com/codeindex/codeindex/plugin"
)

// knownExtensions maps a registered plugin name to the file extensions it
// claims, so PluginFor can pick candidates without constructing every
// plugin. Extensions here mirror each plugin's own Supports method; a
// plugin not listed is treated as a catch-all fallback (like "generic").
var knownExtensions = map[string][]string{
	"go":         {".go"},
	"python":     {".py"},
	"javascript": {".js", ".jsx", ".ts", ".tsx"},
}

// NewFromRegistry builds a Manager from every plugin registered into
// internal/pluginregistry under the plugin.Plugin type, the process-wide
// registry that each plugin package populates via its own init(). This is
// the constructor cmd/repoindexd uses; tests that need a hand-built,
// minimal set of descriptors should keep using New directly.
func NewFromRegistry(opts *Options) (*Manager, error) {
	names := pluginregistry.Names[plugin.Plugin]()
	descs := make([]Descriptor, 0, len(names))
	for _, name := range names {
		name := name
		desc, err := pluginregistry.Get[plugin.Plugin](name)
		if err != nil {
			return nil, fmt.Errorf("pluginmgr: lookup %s: %w", name, err)
		}
		descs = append(descs, Descriptor{
			Name: name,
			New: func(ctx context.Context) (plugin.Plugin, error) {
				return desc.New(ctx, func(any) error { return nil })
			},
			Extensions:        knownExtensions[name],
			PreferredLanguage: name,
		})
	}
	return New(descs, opts)
}
