// Package javascriptlang provides the JavaScript/TypeScript language
// plugin, a thin self-registering wrapper around regexlang.JavaScript.
package javascriptlang

import (
	"context"

	pluginregistry "github.com/codeindex/codeindex/internal/pluginregistry"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/plugin/regexlang"
)

// New returns a ready JavaScript/TypeScript plugin.
func New() *regexlang.Plugin { return regexlang.New(regexlang.JavaScript) }

func init() {
	pluginregistry.Register[plugin.Plugin]("javascript", &pluginregistry.Description[plugin.Plugin]{
		New: func(_ context.Context, _ func(any) error) (plugin.Plugin, error) {
			return New(), nil
		},
	})
}
