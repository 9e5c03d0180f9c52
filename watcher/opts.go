package watcher

import "time"

const (
	defaultDebounceWindow = 500 * time.Millisecond
	defaultPollInterval   = 5 * time.Second
)

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long the watched tree must be quiet (no relevant
	// event on any path) before pending events trigger a sync request. Zero
	// selects 500ms.
	DebounceWindow time.Duration
	// PollInterval is how often the VCS head is checked for commit
	// advances that didn't arrive as filesystem events (e.g. a checkout
	// or pull that touched no working-tree files the watcher saw, or ran
	// while the watcher was briefly behind). Zero selects 5s.
	PollInterval time.Duration
	// ExcludeDirs lists directory names (matched against any path
	// component) whose churn is never watched, e.g. "node_modules",
	// ".git", "vendor", "dist".
	ExcludeDirs []string
	// TriggerRatePerSecond caps how often trigger may fire a sync
	// request, smoothing out a burst of filesystem churn (a branch
	// checkout touching thousands of files) into a steady rate instead
	// of one request per debounce window. Zero disables rate limiting.
	TriggerRatePerSecond float64
	// TriggerBurst is the rate limiter's burst size. Zero selects 1 when
	// TriggerRatePerSecond is set.
	TriggerBurst int
	// CronSchedule, if set, is a standard five-field cron expression
	// (robfig/cron/v3 syntax) for a full resync independent of both
	// filesystem events and head polling, e.g. a nightly rebuild that
	// catches drift the incremental paths might have missed.
	CronSchedule string
}

func (o *Options) setDefaults() {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaultDebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if len(o.ExcludeDirs) == 0 {
		o.ExcludeDirs = []string{".git", "node_modules", "vendor", "dist", "build", "target", "__pycache__"}
	}
	if o.TriggerRatePerSecond > 0 && o.TriggerBurst <= 0 {
		o.TriggerBurst = 1
	}
}
