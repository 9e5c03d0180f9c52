// Package pluginmgr owns the lifecycle of language plugin instances:
// timeout-guarded construction, memory-bounded LRU eviction, and removing
// a plugin from the active set for the process lifetime once its
// construction has failed.
package pluginmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/internal/singleflight"
	"github.com/codeindex/codeindex/plugin"
)

const (
	defaultConstructTimeout   = 5 * time.Second
	defaultMemoryCeilingBytes = 1 << 30
)

// Descriptor names a constructible plugin: how to build it and a rough
// estimate of the memory it holds once constructed, used for LRU
// accounting. Grammar-driven plugins typically cost more than regex or
// generic ones.
type Descriptor struct {
	Name          string
	New           func(ctx context.Context) (plugin.Plugin, error)
	EstimateBytes int64
	// Extensions lists the file extensions (including the leading dot)
	// this plugin claims, used by PluginFor to pick candidates without
	// constructing every plugin just to call Supports. A nil/empty slice
	// marks a catch-all fallback (the generic text plugin), consulted
	// only after every plugin with a non-empty Extensions list declines.
	Extensions []string
	// PreferredLanguage, when set, is boosted to the front of PluginFor's
	// candidate order whenever the caller's priority hint matches it
	// (e.g. the primary language of the current repository).
	PreferredLanguage string
}

// Options configures a Manager.
type Options struct {
	// MemoryCeilingBytes bounds the total EstimateBytes of live plugin
	// instances. Once exceeded, the least-recently-used instance is
	// evicted and its resources released.
	MemoryCeilingBytes int64
	// ConstructTimeout bounds a single plugin construction call.
	ConstructTimeout time.Duration
}

type entry struct {
	p    plugin.Plugin
	size int64
}

// Manager loads language plugins on demand, evicting by LRU once the
// configured memory ceiling is exceeded, and permanently disabling any
// plugin whose construction fails.
type Manager struct {
	opts *Options

	mu    sync.Mutex
	cache *lru.Cache[string, *entry]
	total int64

	descs  map[string]Descriptor
	failed map[string]struct{}

	// sf deduplicates concurrent Get calls for the same plugin and keeps
	// the (potentially slow) desc.New construction call outside mu, so a
	// slow plugin never blocks a Get for a different, already-cached one.
	sf singleflight.Group[string, plugin.Plugin]

	metrics struct {
		constructions prometheus.Counter
		evictions     prometheus.Counter
		failures      prometheus.Counter
	}
}

// New builds a Manager over descs.
func New(descs []Descriptor, opts *Options) (*Manager, error) {
	if opts.ConstructTimeout <= 0 {
		opts.ConstructTimeout = defaultConstructTimeout
	}
	if opts.MemoryCeilingBytes <= 0 {
		opts.MemoryCeilingBytes = defaultMemoryCeilingBytes
	}
	m := &Manager{
		opts:   opts,
		descs:  make(map[string]Descriptor, len(descs)),
		failed: make(map[string]struct{}),
	}
	for _, d := range descs {
		m.descs[d.Name] = d
	}
	// A count bound of len(descs) covers the count dimension; the byte
	// ceiling is enforced separately on top of it in Get.
	count := len(descs)
	if count == 0 {
		count = 1
	}
	cache, err := lru.NewWithEvict[string, *entry](count, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("pluginmgr: build cache: %w", err)
	}
	m.cache = cache

	m.metrics.constructions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeindex", Subsystem: "pluginmgr", Name: "constructions_total",
		Help: "Total plugin instances constructed.",
	})
	m.metrics.evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeindex", Subsystem: "pluginmgr", Name: "evictions_total",
		Help: "Total plugin instances evicted for memory pressure.",
	})
	m.metrics.failures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeindex", Subsystem: "pluginmgr", Name: "construction_failures_total",
		Help: "Total plugin constructions that failed and were permanently disabled.",
	})
	return m, nil
}

func (m *Manager) onEvict(name string, e *entry) {
	m.total -= e.size
	m.metrics.evictions.Inc()
	if closer, ok := e.p.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// Get returns the named plugin, constructing it if it isn't already
// loaded. A plugin whose construction previously failed is never retried
// for the remainder of the process's lifetime.
//
// Only cache and failed-map bookkeeping happens under mu; the potentially
// slow desc.New call runs outside the lock, deduplicated across
// concurrent callers for the same name by sf, so one plugin's slow or
// stuck construction never blocks a Get for a different plugin, including
// one already cached.
func (m *Manager) Get(ctx context.Context, name string) (plugin.Plugin, error) {
	m.mu.Lock()
	if _, dead := m.failed[name]; dead {
		m.mu.Unlock()
		return nil, &codeindex.Error{Op: "pluginmgr.Get", Kind: codeindex.ErrUnavailable, Message: "plugin permanently disabled: " + name}
	}
	if e, ok := m.cache.Get(name); ok {
		m.mu.Unlock()
		return e.p, nil
	}
	desc, ok := m.descs[name]
	m.mu.Unlock()
	if !ok {
		return nil, &codeindex.Error{Op: "pluginmgr.Get", Kind: codeindex.ErrNotFound, Message: name}
	}

	ch := m.sf.DoChan(name, func() (plugin.Plugin, error) {
		return m.construct(ctx, name, desc)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// construct runs desc.New and records the result, called at most once per
// name at a time via sf. It re-checks the cache and failed map first: by
// the time sf schedules this call, another Get may already have finished
// constructing or disabling name while this one waited.
func (m *Manager) construct(ctx context.Context, name string, desc Descriptor) (plugin.Plugin, error) {
	m.mu.Lock()
	if _, dead := m.failed[name]; dead {
		m.mu.Unlock()
		return nil, &codeindex.Error{Op: "pluginmgr.Get", Kind: codeindex.ErrUnavailable, Message: "plugin permanently disabled: " + name}
	}
	if e, ok := m.cache.Get(name); ok {
		m.mu.Unlock()
		return e.p, nil
	}
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.opts.ConstructTimeout)
	defer cancel()
	p, err := desc.New(cctx)
	if err != nil {
		m.mu.Lock()
		m.failed[name] = struct{}{}
		m.mu.Unlock()
		m.metrics.failures.Inc()
		zlog.Warn(ctx).Err(err).Str("plugin", name).Msg("plugin construction failed; disabling for process lifetime")
		kind := codeindex.ErrUnavailable
		if cctx.Err() == context.DeadlineExceeded {
			kind = codeindex.ErrTimeout
		}
		return nil, &codeindex.Error{Op: "pluginmgr.Get", Kind: kind, Inner: err, Message: name}
	}

	m.metrics.constructions.Inc()
	size := desc.EstimateBytes
	if size <= 0 {
		size = 1 << 20
	}
	m.mu.Lock()
	m.cache.Add(name, &entry{p: p, size: size})
	m.total += size
	for m.opts.MemoryCeilingBytes > 0 && m.total > m.opts.MemoryCeilingBytes && m.cache.Len() > 1 {
		m.cache.RemoveOldest()
	}
	m.mu.Unlock()
	return p, nil
}

// Loaded reports the names of every plugin currently constructed and live.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Keys()
}

// Disabled reports the names of every plugin whose construction has
// permanently failed.
func (m *Manager) Disabled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.failed))
	for name := range m.failed {
		out = append(out, name)
	}
	return out
}

// PluginFor picks the plugin that should index relPath, preferring a
// plugin whose PreferredLanguage matches priorityLanguage (e.g. the
// repository's declared primary language) when more than one plugin
// claims the same extension, then falling back to the first
// non-fallback match, then to a catch-all plugin (one with no declared
// Extensions). Descriptors are held in a map, so the order among plugins
// of the same tier is not defined. It reports false if no
// plugin claims relPath's extension and no catch-all is registered, or
// if the only candidates have permanently failed construction.
func (m *Manager) PluginFor(ctx context.Context, relPath, priorityLanguage string) (plugin.Plugin, bool) {
	ext := extOf(relPath)

	m.mu.Lock()
	var preferred, plain, fallback []string
	for name, d := range m.descs {
		if _, dead := m.failed[name]; dead {
			continue
		}
		switch {
		case len(d.Extensions) == 0:
			fallback = append(fallback, name)
		case extsContain(d.Extensions, ext):
			if priorityLanguage != "" && d.PreferredLanguage == priorityLanguage {
				preferred = append(preferred, name)
			} else {
				plain = append(plain, name)
			}
		}
	}
	m.mu.Unlock()

	for _, candidates := range [][]string{preferred, plain, fallback} {
		for _, name := range candidates {
			p, err := m.Get(ctx, name)
			if err != nil {
				continue
			}
			return p, true
		}
	}
	return nil, false
}

func extOf(relPath string) string {
	i := strings.LastIndexByte(relPath, '.')
	if i < 0 {
		return ""
	}
	return relPath[i:]
}

func extsContain(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// Warm eagerly constructs the plugin registered for each of languages,
// by matching Descriptor.PreferredLanguage, so the first real indexing
// request for that language doesn't pay construction latency. Errors
// from individual plugins are collected and returned together; Warm
// still attempts every language even after an earlier one fails.
func (m *Manager) Warm(ctx context.Context, languages []string) error {
	m.mu.Lock()
	names := make(map[string]string, len(languages))
	for _, d := range m.descs {
		for _, lang := range languages {
			if d.PreferredLanguage == lang {
				names[lang] = d.Name
			}
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, lang := range languages {
		name, ok := names[lang]
		if !ok {
			continue
		}
		if _, err := m.Get(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("pluginmgr: warm %s (%s): %w", lang, name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Stats summarizes the Manager's current state.
type Stats struct {
	Loaded       int
	Disabled     int
	MemoryBytes  int64
	CeilingBytes int64
}

// Stats reports the Manager's current load, in a form suitable for a
// status/health report.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Loaded:       m.cache.Len(),
		Disabled:     len(m.failed),
		MemoryBytes:  m.total,
		CeilingBytes: m.opts.MemoryCeilingBytes,
	}
}
