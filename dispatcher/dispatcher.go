// Package dispatcher routes lookup_symbol, search_code, and status
// queries: it orchestrates the plugin manager's candidate hits, the
// storage engine's direct full-text bypass, and the optional semantic
// back end, and it is the only place those three sources are merged.
//
// The resolution algorithm and its state diagram are grounded on the
// teacher's libvuln top-level facade (a small set of public methods
// backed by internal controllers) and pkg/omnimatcher's "try each
// candidate source, take the first/best success" merge loop, generalized
// here to "collect plugin hits, always run full-text, then merge."
package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/internal/cache"
	"github.com/codeindex/codeindex/pkg/tracing"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/storage"
)

const defaultQueryDeadline = 10 * time.Second

// SemanticOpts narrows a SemanticBackend.Search call the same way SearchOpts
// narrows Dispatcher.SearchCode.
type SemanticOpts struct {
	Language  string
	RepoScope []string
	Limit     int
}

// SemanticBackend is the external collaborator for vector/semantic search,
// described here only through the interface the dispatcher calls against;
// its implementation (embedding provider, vector store) is out of scope.
type SemanticBackend interface {
	// Healthy reports whether the back end is currently reachable. A
	// failing or slow Healthy check must not block search_code past the
	// query deadline; callers invoke it with a short sub-deadline.
	Healthy(ctx context.Context) bool
	// Search runs a semantic query. A non-nil error is always treated as
	// a silent downgrade by the dispatcher, never surfaced to the caller.
	Search(ctx context.Context, query string, opts SemanticOpts) ([]codeindex.CodeHit, error)
}

// Options configures a Dispatcher.
type Options struct {
	// QueryDeadline bounds the whole of a single SearchCode or
	// LookupSymbol call. Zero selects 10s.
	QueryDeadline time.Duration
}

func (o *Options) setDefaults() {
	if o.QueryDeadline <= 0 {
		o.QueryDeadline = defaultQueryDeadline
	}
}

// Dispatcher answers the three query primitives against every repository
// registered in reg, or a caller-supplied subset. It owns no index data
// itself; it opens (and lazily keeps open) a storage.Store per repo_id it
// is asked to query.
type Dispatcher struct {
	reg      *registry.Registry
	plugins  *pluginmgr.Manager
	semantic SemanticBackend
	opts     Options

	// stores caches one *storage.Store per repo_id for as long as some
	// in-flight query still references it; once nothing does, the Go
	// runtime-finalizer attached in storeFor closes the underlying
	// database handle. This mirrors the teacher's internal/cache.Live
	// lazy, construct-on-miss shape, generalized from "weakly cache a
	// constructed value" to "weakly cache an open database handle"; it
	// has no hard memory ceiling because an open Store is cheap (one
	// connection) compared to a constructed plugin, which is why
	// pluginmgr needs the harder hashicorp/golang-lru ceiling and this
	// doesn't.
	stores cache.Live[string, storage.Store]

	metrics struct {
		queries  *prometheus.CounterVec
		timeouts prometheus.Counter
		latency  *prometheus.HistogramVec
	}
}

// New builds a Dispatcher. semantic may be nil to disable the semantic
// resolution path entirely (search_code always falls through to plugin +
// full-text in that case).
func New(reg *registry.Registry, plugins *pluginmgr.Manager, semantic SemanticBackend, opts Options) *Dispatcher {
	opts.setDefaults()
	d := &Dispatcher{reg: reg, plugins: plugins, semantic: semantic, opts: opts}
	d.metrics.queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeindex", Subsystem: "dispatcher", Name: "queries_total",
		Help: "Total dispatcher queries by operation and outcome.",
	}, []string{"op", "outcome"})
	d.metrics.timeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeindex", Subsystem: "dispatcher", Name: "query_timeouts_total",
		Help: "Total queries that hit the overall query deadline and returned partial results.",
	})
	d.metrics.latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeindex", Subsystem: "dispatcher", Name: "query_latency_seconds",
		Help:    "Dispatcher query latency by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	return d
}

// storeFor lazily opens (or returns the cached open handle for) repoID's
// storage.Store. The finalizer is best-effort cleanup for the weak cache;
// Dispatcher.Close drops every strong reference this call graph might
// still be holding so the finalizers have a chance to run promptly, but
// callers that need deterministic closing should prefer opening a Store
// directly rather than going through a Dispatcher.
func (d *Dispatcher) storeFor(ctx context.Context, repoID string) (*storage.Store, error) {
	return d.stores.Get(ctx, repoID, func(ctx context.Context, repoID string) (*storage.Store, error) {
		repo, err := d.reg.Lookup(ctx, repoID)
		if err != nil {
			return nil, err
		}
		s, err := storage.OpenInRoot(ctx, repo.IndexLocation)
		if err != nil {
			return nil, err
		}
		runtime.SetFinalizer(s, func(s *storage.Store) { s.Close() })
		return s, nil
	})
}

// RepoScope resolves an explicit list of repo ids, or every registered
// repository when scope is empty. Exported so the coordinator package can
// resolve the same scope before fanning queries out across it.
func (d *Dispatcher) RepoScope(ctx context.Context, scope []string) ([]codeindex.Repository, error) {
	return d.repoScope(ctx, scope)
}

// repoScope is RepoScope's unexported implementation.
func (d *Dispatcher) repoScope(ctx context.Context, scope []string) ([]codeindex.Repository, error) {
	if len(scope) > 0 {
		out := make([]codeindex.Repository, 0, len(scope))
		for _, id := range scope {
			repo, err := d.reg.Lookup(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, repo)
		}
		return out, nil
	}
	return d.reg.List(ctx)
}

// Close drops this Dispatcher's store cache. It does not block on any
// finalizer; it only releases the Dispatcher's own references.
func (d *Dispatcher) Close() {
	d.stores.Clear()
}

// Status implements status(): it always succeeds if the process is live,
// enumerating each subsystem's readiness rather than returning a
// top-level error.
func (d *Dispatcher) Status(ctx context.Context) (codeindex.StatusReport, error) {
	ctx, done := tracing.Start(ctx, "dispatcher", "Status")
	var err error
	defer done(&err)

	report := codeindex.StatusReport{
		PluginsLoaded: d.plugins.Loaded(),
	}

	repos, listErr := d.reg.List(ctx)
	if listErr != nil {
		report.IndexHealth = append(report.IndexHealth, codeindex.ComponentHealth{
			Name: "registry", OK: false, Detail: listErr.Error(),
		})
		return report, nil
	}
	report.Repos = repos
	report.StorageOK = true

	for _, repo := range repos {
		store, serr := d.storeFor(ctx, repo.ID)
		if serr != nil {
			report.StorageOK = false
			report.IndexHealth = append(report.IndexHealth, codeindex.ComponentHealth{
				Name: repo.ID, OK: false, Detail: serr.Error(),
			})
			continue
		}
		stats, serr := store.Stats(ctx, repo.ID)
		if serr != nil {
			report.StorageOK = false
			report.IndexHealth = append(report.IndexHealth, codeindex.ComponentHealth{
				Name: repo.ID, OK: false, Detail: serr.Error(),
			})
			continue
		}
		report.IndexHealth = append(report.IndexHealth, codeindex.ComponentHealth{
			Name: repo.ID, OK: true,
			Detail: fmt.Sprintf("files=%d symbols=%d", stats.FileCount, stats.SymbolCount),
		})
	}

	if d.semantic != nil {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		report.SemanticAvailable = d.semantic.Healthy(sctx)
		cancel()
	}

	return report, nil
}
