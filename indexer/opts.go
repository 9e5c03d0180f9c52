package indexer

import "time"

// Options configures an Indexer, mirroring the teacher's per-subsystem
// Options-struct convention (indexer.Options, libindex.Opts).
type Options struct {
	// BatchSize is how many files are grouped per worker dispatch round.
	BatchSize int
	// WorkerCount bounds the fan-out worker pool. Zero selects
	// min(runtime.NumCPU(), 8).
	WorkerCount int
	// MaxFileBytes is the full-text-skip threshold; files larger are
	// recorded with codeindex.LanguageBinaryOrOversized and no content.
	MaxFileBytes int64
	// ProgressInterval is how often FullIndex reports progress. Zero
	// selects 2s.
	ProgressInterval time.Duration
	// PriorityLanguage hints the plugin manager toward a repository's
	// primary language when more than one plugin claims a path.
	PriorityLanguage string
}

const (
	defaultBatchSize        = 100
	defaultMaxWorkers       = 8
	defaultMaxFileBytes     = 10 << 20
	defaultProgressInterval = 2 * time.Second
)

func (o *Options) setDefaults(cores int) {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = cores
		if o.WorkerCount > defaultMaxWorkers {
			o.WorkerCount = defaultMaxWorkers
		}
		if o.WorkerCount < 1 {
			o.WorkerCount = 1
		}
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = defaultMaxFileBytes
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = defaultProgressInterval
	}
}
