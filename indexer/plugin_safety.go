package indexer

import (
	"fmt"

	"github.com/codeindex/codeindex/plugin"
)

// pluginExtraction is plugin.Extraction under a local name so the rest of
// this package doesn't need to import plugin just for the type.
type pluginExtraction = plugin.Extraction

// safeIndex calls p.Index, converting a panic into an error so a single
// misbehaving plugin never takes down a worker goroutine mid-batch: a
// plugin that panics on one file is logged and that file still gets
// indexed with full-text only.
func safeIndex(p plugin.Plugin, relPath string, content []byte) (ex plugin.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked on %s: %v", p.Language(), relPath, r)
		}
	}()
	return p.Index(relPath, content)
}
