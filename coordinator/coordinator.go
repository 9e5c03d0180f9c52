// Package coordinator is the multi-repo search coordinator: when a query's
// scope spans more than one registered repository, it opens each
// repository's storage concurrently under a bounded fan-out, runs the
// dispatcher's single-repo resolution against each, and aggregates the
// results with a per-repository top-k followed by a global top-k that
// round-robins across repositories so one large or noisy repository can't
// swamp the result set.
//
// The bounded fan-out is grounded on the teacher's
// indexer/controller/layerindexer.go, which bounds concurrent layer-content
// fetches with a golang.org/x/sync/semaphore.Weighted under an errgroup;
// the dedupe-and-aggregate shape is grounded on indexer/ecosystem.go's
// EcosystemsToScanners, which fans out across ecosystems and dedupes
// scanners by name, generalized here to dedupe/aggregate hits by
// (repo_id, rel_path) across repositories.
package coordinator

import (
	"context"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/internal/wart"
)

const defaultConcurrency = 10

// Options configures a Coordinator.
type Options struct {
	// Concurrency bounds how many repositories are queried at once. Zero
	// selects 10.
	Concurrency int
	// PerRepoLimit bounds how many hits are kept from any single
	// repository before the global merge. Zero selects the caller's
	// overall Limit.
	PerRepoLimit int
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}

// Coordinator fans a query out across every repository in its dispatcher's
// registry, or a caller-supplied subset.
type Coordinator struct {
	d    *dispatcher.Dispatcher
	opts Options
}

// New builds a Coordinator over d.
func New(d *dispatcher.Dispatcher, opts Options) *Coordinator {
	return &Coordinator{d: d, opts: opts}
}

// repoHits is one repository's contribution to a fanned-out query, kept
// together so the round-robin merge can pull from each repository's queue
// in turn.
type repoHits struct {
	repoID string
	hits   []*codeindex.CodeHit
}

// SearchCode fans search_code out across opts.RepoScope (or every
// registered repository) and merges the results: each repository's hits
// are capped to Options.PerRepoLimit and sorted by score, then the global
// result is built by round-robining one hit at a time from each
// repository's queue, in repository order, until every queue is empty or
// opts.Limit is reached. A single slow or unreachable repository degrades
// that repository's contribution to Partial rather than failing the
// whole call.
func (c *Coordinator) SearchCode(ctx context.Context, query string, opts dispatcher.SearchOpts) (dispatcher.SearchResult, error) {
	repos, err := c.d.RepoScope(ctx, opts.RepoScope)
	if err != nil {
		return dispatcher.SearchResult{}, err
	}

	perRepoLimit := c.opts.PerRepoLimit
	if perRepoLimit <= 0 {
		perRepoLimit = opts.Limit
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(c.opts.concurrency()))

	results := make([]repoHits, len(repos))
	var partial atomic.Bool

	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				partial.Store(true)
				return nil
			}
			defer sem.Release(1)

			scoped := opts
			scoped.RepoScope = []string{repo.ID}
			scoped.Limit = perRepoLimit

			res, err := c.d.SearchCode(gctx, query, scoped)
			if err != nil {
				zlog.Warn(gctx).Err(err).Str("repo_id", repo.ID).Msg("coordinator: repo query failed")
				partial.Store(true)
				return nil
			}
			if res.Partial {
				partial.Store(true)
			}
			sortHitsByScore(res.Hits)
			results[i] = repoHits{repoID: repo.ID, hits: wart.CollectPointer(slices.Values(res.Hits))}
			return nil
		})
	}
	// errgroup.Group.Go's functions above never return a non-nil error
	// (repo-level failures and a canceled semaphore wait are absorbed into
	// partial), so Wait returns nil; cancellation is reported through
	// ctx.Err() below.
	if err := g.Wait(); err != nil {
		partial.Store(true)
	}

	merged := roundRobinMerge(results, opts.EffectiveLimit())
	return dispatcher.SearchResult{Hits: merged, Partial: partial.Load() || ctx.Err() != nil}, nil
}

func sortHitsByScore(hits []codeindex.CodeHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// roundRobinMerge interleaves each repository's hit queue one element at a
// time, in repository order, so the global top-k is never dominated by
// whichever single repository happened to produce the most matches.
func roundRobinMerge(perRepo []repoHits, limit int) []codeindex.CodeHit {
	total := 0
	for _, r := range perRepo {
		total += len(r.hits)
	}
	if limit <= 0 || limit > total {
		limit = total
	}

	out := make([]codeindex.CodeHit, 0, limit)
	seen := make(map[string]struct{}, limit)
	idx := make([]int, len(perRepo))
	for len(out) < limit {
		progressed := false
		for i := range perRepo {
			if idx[i] >= len(perRepo[i].hits) {
				continue
			}
			h := perRepo[i].hits[idx[i]]
			idx[i]++
			progressed = true
			if _, dup := seen[h.Key()]; dup {
				continue
			}
			seen[h.Key()] = struct{}{}
			out = append(out, *h)
			if len(out) >= limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

