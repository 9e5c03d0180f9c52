package watcher

import (
	"context"

	"github.com/quay/zlog"
	"github.com/robfig/cron/v3"
)

// cronResync wraps a *cron.Cron scheduling a single job: a full resync
// trigger on w's schedule, independent of filesystem events and head
// polling. Only constructed when Options.CronSchedule is set.
type cronResync struct {
	c *cron.Cron
}

func newCronResync(ctx context.Context, w *Watcher) (*cronResync, error) {
	c := cron.New()
	_, err := c.AddFunc(w.opts.CronSchedule, func() {
		zlog.Info(ctx).Str("repo_id", w.repoID).Msg("cron-triggered resync")
		w.trigger(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &cronResync{c: c}, nil
}

func (r *cronResync) Start() { r.c.Start() }

// Stop blocks until the running or pending job (if any) completes.
func (r *cronResync) Stop() { <-r.c.Stop().Done() }
