package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/indexer"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/syncmanager"
	"github.com/codeindex/codeindex/watcher"
)

// Config is the daemon's on-disk configuration, loaded once at startup.
// YAML rather than JSON or flags-only, matching how the retrieval pack's
// config-heavy repos prefer a human-edited file for anything with this
// many knobs.
type Config struct {
	RegistryDocumentPath string `yaml:"registry_document_path"`
	IndexRoot            string `yaml:"index_root"`
	HTTPAddr             string `yaml:"http_addr"`

	// ArtifactStoreURL, if set, is a postgres:// connection string for a
	// storage.PostgresMirror used as the sync manager's ArtifactStore.
	// Empty disables the restore-from-artifact path entirely.
	ArtifactStoreURL string `yaml:"artifact_store_url"`

	PluginMemoryCeilingBytes int64         `yaml:"plugin_memory_ceiling_bytes"`
	PluginConstructTimeout   time.Duration `yaml:"plugin_construct_timeout"`

	QueryDeadline time.Duration `yaml:"query_deadline"`

	// TracingSampleAll, when true, samples every span instead of none. The
	// daemon installs a TracerProvider either way so pkg/tracing's spans
	// always have somewhere to go; this only controls the sampler.
	TracingSampleAll bool `yaml:"tracing_sample_all"`

	Indexer indexer.Options `yaml:"indexer"`
	Watch   WatchConfig     `yaml:"watch"`
}

// WatchConfig mirrors watcher.Options, spelled out separately so the YAML
// shape doesn't have to track watcher's internal field layout.
type WatchConfig struct {
	DebounceWindow       time.Duration `yaml:"debounce_window"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ExcludeDirs          []string      `yaml:"exclude_dirs"`
	TriggerRatePerSecond float64       `yaml:"trigger_rate_per_second"`
	TriggerBurst         int           `yaml:"trigger_burst"`
	CronSchedule         string        `yaml:"cron_schedule"`
}

func (w WatchConfig) toOptions() watcher.Options {
	return watcher.Options{
		DebounceWindow:       w.DebounceWindow,
		PollInterval:         w.PollInterval,
		ExcludeDirs:          w.ExcludeDirs,
		TriggerRatePerSecond: w.TriggerRatePerSecond,
		TriggerBurst:         w.TriggerBurst,
		CronSchedule:         w.CronSchedule,
	}
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("repoindexd: read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("repoindexd: parse config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.RegistryDocumentPath == "" {
		c.RegistryDocumentPath = "/var/lib/repoindexd/registry.json"
	}
	if c.IndexRoot == "" {
		c.IndexRoot = "/var/lib/repoindexd/index"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
}

func (c Config) registryOptions() registry.Options {
	return registry.Options{
		DocumentPath: c.RegistryDocumentPath,
		IndexRoot:    c.IndexRoot,
	}
}

func (c Config) pluginOptions() *pluginmgr.Options {
	return &pluginmgr.Options{
		MemoryCeilingBytes: c.PluginMemoryCeilingBytes,
		ConstructTimeout:   c.PluginConstructTimeout,
	}
}

func (c Config) syncOptions() syncmanager.Options {
	return syncmanager.Options{Indexer: c.Indexer}
}

func (c Config) dispatcherOptions() dispatcher.Options {
	return dispatcher.Options{QueryDeadline: c.QueryDeadline}
}
