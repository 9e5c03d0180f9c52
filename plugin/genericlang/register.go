package genericlang

import (
	"context"

	pluginregistry "github.com/codeindex/codeindex/internal/pluginregistry"
	"github.com/codeindex/codeindex/plugin"
)

func init() {
	pluginregistry.Register[plugin.Plugin]("generic", &pluginregistry.Description[plugin.Plugin]{
		New: func(_ context.Context, _ func(any) error) (plugin.Plugin, error) {
			return New(), nil
		},
		Default: true,
	})
}
