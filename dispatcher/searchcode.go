package dispatcher

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/pkg/tracing"
	"github.com/codeindex/codeindex/storage"
)

// SearchOpts narrows a SearchCode call.
type SearchOpts struct {
	Language  string
	RepoScope []string
	Semantic  bool
	Limit     int
}

func (o SearchOpts) limit() int {
	return o.EffectiveLimit()
}

// EffectiveLimit reports the result limit that will actually be applied:
// opts.Limit if positive, otherwise the default of 20. Exported so the
// coordinator package can size its per-repo queries the same way a direct
// Dispatcher.SearchCode call would.
func (o SearchOpts) EffectiveLimit() int {
	if o.Limit <= 0 {
		return 20
	}
	return o.Limit
}

// symbolLike matches queries that look like an identifier or dotted/
// qualified identifier rather than prose, so the plugin-derived symbol
// index is worth consulting alongside the full-text bypass.
var symbolLike = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:[.:][A-Za-z_][A-Za-z0-9_]*)*$`)

// SearchResult is the result of a SearchCode call: the merged hits plus
// whether the query deadline cut the search short.
type SearchResult struct {
	Hits    []codeindex.CodeHit
	Partial bool
}

// SearchCode implements search_code's resolution algorithm: delegate to the
// semantic back end when requested and healthy; otherwise collect
// plugin-derived symbol hits for symbol-like queries, always run the
// storage engine's direct full-text bypass, and merge the two, preferring
// plugin hits first for symbol-like queries and full-text results
// otherwise, deduplicated by CodeHit.Key() and truncated to opts.Limit.
// The whole call is bounded by d.opts.QueryDeadline; a sub-operation that
// doesn't finish in time is abandoned and whatever was already collected
// is returned with Partial set.
func (d *Dispatcher) SearchCode(ctx context.Context, query string, opts SearchOpts) (SearchResult, error) {
	deadline := time.Now().Add(d.opts.QueryDeadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	ctx, done := tracing.Start(ctx, "dispatcher", "SearchCode")
	queryID := uuid.NewString()
	ctx = zlog.ContextWithValues(ctx, "component", "dispatcher.SearchCode", "query", query, "query_id", queryID)

	start := time.Now()
	var err error
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		d.metrics.queries.WithLabelValues("search_code", outcome).Inc()
		d.metrics.latency.WithLabelValues("search_code").Observe(time.Since(start).Seconds())
		done(&err)
	}()

	result := SearchResult{}

	if opts.Semantic && d.semantic != nil {
		hctx, hcancel := context.WithTimeout(ctx, 2*time.Second)
		healthy := d.semantic.Healthy(hctx)
		hcancel()
		if healthy {
			hits, serr := d.semantic.Search(ctx, query, SemanticOpts{
				Language: opts.Language, RepoScope: opts.RepoScope, Limit: opts.limit(),
			})
			if serr == nil {
				for i := range hits {
					hits[i].Source = "semantic"
				}
				result.Hits = truncate(hits, opts.limit())
				return result, nil
			}
			zlog.Debug(ctx).Err(serr).Msg("semantic search failed; falling back")
		}
	}

	repos, rerr := d.repoScope(ctx, opts.RepoScope)
	if rerr != nil {
		err = rerr
		return result, err
	}

	var pluginHits, fulltextHits []codeindex.CodeHit
	trySymbol := symbolLike.MatchString(query)

	for _, repo := range repos {
		if ctx.Err() != nil {
			result.Partial = true
			d.metrics.timeouts.Inc()
			break
		}
		store, serr := d.storeFor(ctx, repo.ID)
		if serr != nil {
			zlog.Warn(ctx).Err(serr).Str("repo_id", repo.ID).Msg("search_code: store unavailable")
			continue
		}

		if trySymbol {
			if hits, herr := searchPluginSymbols(ctx, store, query, repo.ID, opts); herr == nil {
				pluginHits = append(pluginHits, hits...)
			} else if ctx.Err() != nil {
				result.Partial = true
			}
		}

		if ctx.Err() != nil {
			result.Partial = true
			break
		}

		rows, ferr := store.SearchFulltext(ctx, query, storage.FulltextOpts{
			Limit: opts.limit(), RepoFilter: []string{repo.ID}, LanguageFilter: opts.Language,
		})
		if ferr != nil {
			if ctx.Err() != nil {
				result.Partial = true
			}
			zlog.Warn(ctx).Err(ferr).Str("repo_id", repo.ID).Msg("search_code: full-text error")
			continue
		}
		for _, r := range rows {
			fulltextHits = append(fulltextHits, codeindex.CodeHit{
				RepoID: r.RepoID, RelPath: r.RelPath, Snippet: r.Snippet,
				Language: r.Language, Score: r.Score, Source: "fulltext",
			})
		}
	}

	result.Hits = mergeHits(pluginHits, fulltextHits, trySymbol, opts.limit())
	if ctx.Err() != nil {
		result.Partial = true
	}
	return result, nil
}

// searchPluginSymbols asks the storage engine's symbol table (the durable
// record of what the language plugins extracted at index time) for
// matches on query, and reshapes them into CodeHits whose snippet is the
// symbol's stored signature.
func searchPluginSymbols(ctx context.Context, store *storage.Store, query, repoID string, opts SearchOpts) ([]codeindex.CodeHit, error) {
	syms, err := store.LookupSymbol(ctx, query, storage.SymbolOpts{RepoFilter: []string{repoID}})
	if err != nil {
		return nil, err
	}
	out := make([]codeindex.CodeHit, 0, len(syms))
	for _, s := range syms {
		out = append(out, codeindex.CodeHit{
			RepoID: s.RepoID, RelPath: s.RelPath, Snippet: s.Signature,
			Language: s.Language, Score: priorityScore(s), Source: "plugin",
		})
	}
	return out, nil
}

func priorityScore(s codeindex.SymbolHit) float64 {
	if s.Exact() {
		return 1.0
	}
	return 0.5
}

// mergeHits combines plugin-derived and full-text hits, deduplicating by
// CodeHit.Key() and preferring whichever source the query favors to win
// ties: plugin hits for symbol-like queries, full-text hits otherwise.
func mergeHits(plugin, fulltext []codeindex.CodeHit, preferPlugin bool, limit int) []codeindex.CodeHit {
	first, second := fulltext, plugin
	if preferPlugin {
		first, second = plugin, fulltext
	}

	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]codeindex.CodeHit, 0, len(first)+len(second))
	for _, h := range first {
		if _, ok := seen[h.Key()]; ok {
			continue
		}
		seen[h.Key()] = struct{}{}
		out = append(out, h)
	}
	for _, h := range second {
		if _, ok := seen[h.Key()]; ok {
			continue
		}
		seen[h.Key()] = struct{}{}
		out = append(out, h)
	}
	return truncate(out, limit)
}

func truncate(hits []codeindex.CodeHit, limit int) []codeindex.CodeHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
