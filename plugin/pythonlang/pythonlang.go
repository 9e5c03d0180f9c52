// Package pythonlang provides the Python language plugin. Python has no
// convenient pure-Go grammar library in this corpus, so extraction is
// regex-driven: the package is a thin, self-registering wrapper around
// regexlang.Python.
package pythonlang

import (
	"context"

	pluginregistry "github.com/codeindex/codeindex/internal/pluginregistry"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/plugin/regexlang"
)

// New returns a ready Python plugin.
func New() *regexlang.Plugin { return regexlang.New(regexlang.Python) }

func init() {
	pluginregistry.Register[plugin.Plugin]("python", &pluginregistry.Description[plugin.Plugin]{
		New: func(_ context.Context, _ func(any) error) (plugin.Plugin, error) {
			return New(), nil
		},
	})
}
