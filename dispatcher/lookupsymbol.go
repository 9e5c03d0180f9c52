package dispatcher

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/pkg/tracing"
	"github.com/codeindex/codeindex/storage"
)

// LookupOpts narrows a LookupSymbol call.
type LookupOpts struct {
	KindFilter codeindex.SymbolKind
	RepoScope  []string
	Limit      int
}

func (o LookupOpts) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// LookupSymbol implements lookup_symbol: exact and prefix name match
// against every in-scope repository's storage engine, merged and
// truncated to opts.Limit. Results are byte-identical across repeated
// calls on an unchanged snapshot because storage.LookupSymbol's ordering
// is itself deterministic.
func (d *Dispatcher) LookupSymbol(ctx context.Context, name string, opts LookupOpts) ([]codeindex.SymbolHit, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.QueryDeadline)
	defer cancel()
	ctx, done := tracing.Start(ctx, "dispatcher", "LookupSymbol")
	queryID := uuid.NewString()
	ctx = zlog.ContextWithValues(ctx, "component", "dispatcher.LookupSymbol", "name", name, "query_id", queryID)

	var err error
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		d.metrics.queries.WithLabelValues("lookup_symbol", outcome).Inc()
		done(&err)
	}()

	repos, rerr := d.repoScope(ctx, opts.RepoScope)
	if rerr != nil {
		err = rerr
		return nil, err
	}

	var out []codeindex.SymbolHit
	succeeded := 0
	for _, repo := range repos {
		if ctx.Err() != nil {
			break
		}
		store, serr := d.storeFor(ctx, repo.ID)
		if serr != nil {
			zlog.Warn(ctx).Err(serr).Str("repo_id", repo.ID).Msg("lookup_symbol: store unavailable")
			err = serr
			continue
		}
		hits, serr := store.LookupSymbol(ctx, name, storage.SymbolOpts{
			KindFilter: opts.KindFilter,
			RepoFilter: []string{repo.ID},
		})
		if serr != nil {
			zlog.Warn(ctx).Err(serr).Str("repo_id", repo.ID).Msg("lookup_symbol: storage error")
			err = serr
			continue
		}
		succeeded++
		for i := range hits {
			hits[i].RepoID = repo.ID
		}
		out = append(out, hits...)
	}
	// A per-repo storage error doesn't abort the whole call; it's only
	// surfaced as the returned error if every repo in scope failed.
	if succeeded > 0 {
		err = nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Exact() != out[j].Exact() {
			return out[i].Exact()
		}
		pi, pj := codeindex.KindPriority(out[i].Kind), codeindex.KindPriority(out[j].Kind)
		if pi != pj {
			return pi < pj
		}
		return out[i].RelPath < out[j].RelPath
	})
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out, err
}
