// Command repoindexd is the long-running daemon form of the repository
// index and query engine: it loads the repository registry, brings up a
// plugin manager, a Git-aware sync manager, and a dispatcher, starts a
// watcher for every registered repository with AutoSync set, and serves a
// liveness endpoint. It is a library host, not an RPC server: there is no
// wire protocol here, only the wiring a query service would sit in front
// of.
//
// Modeled on the teacher's cmd/cctool: a flag.FlagSet, a cancelable root
// context tied to SIGTERM/SIGINT, and a cleanup WaitGroup drained before
// exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/storage"
	"github.com/codeindex/codeindex/syncmanager"
	"github.com/codeindex/codeindex/watcher"

	_ "github.com/codeindex/codeindex/plugin/genericlang"
	_ "github.com/codeindex/codeindex/plugin/golang"
	_ "github.com/codeindex/codeindex/plugin/javascriptlang"
	_ "github.com/codeindex/codeindex/plugin/pythonlang"
)

var cleanup sync.WaitGroup

const defaultShutdownGrace = 10 * time.Second

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()
	ctx, done := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		<-ch
		done()
	}()

	fs := flag.NewFlagSet("repoindexd", flag.ExitOnError)
	configPath := fs.String("config", "/etc/repoindexd/config.yaml", "path to the daemon's YAML configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Print(err)
		exit = 1
	}
	cleanup.Wait()
}

func run(ctx context.Context, cfg Config) error {
	tp, err := startTracing(ctx, cfg.TracingSampleAll)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
		defer cancel()
		tp.Shutdown(shutdownCtx)
	}()

	regOpts := cfg.registryOptions()
	reg, err := registry.New(ctx, &regOpts)
	if err != nil {
		return fmt.Errorf("repoindexd: open registry: %w", err)
	}

	plugins, err := pluginmgr.NewFromRegistry(cfg.pluginOptions())
	if err != nil {
		return fmt.Errorf("repoindexd: build plugin manager: %w", err)
	}
	defer plugins.Shutdown()

	var artifacts syncmanager.ArtifactStore
	if cfg.ArtifactStoreURL != "" {
		mirror, err := storage.NewPostgresMirror(ctx, cfg.ArtifactStoreURL)
		if err != nil {
			return fmt.Errorf("repoindexd: connect artifact store: %w", err)
		}
		defer mirror.Close()
		artifacts = mirror
	}

	syncer := syncmanager.New(reg, plugins, artifacts, cfg.syncOptions())
	disp := dispatcher.New(reg, plugins, nil, cfg.dispatcherOptions())
	defer disp.Close()

	watchers, err := startWatchers(ctx, reg, syncer, cfg.Watch)
	if err != nil {
		return fmt.Errorf("repoindexd: start watchers: %w", err)
	}
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthzHandler(disp))
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	cleanup.Add(1)
	go func() {
		defer cleanup.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zlog.Info(ctx).Str("addr", cfg.HTTPAddr).Int("watched_repos", len(watchers)).Msg("repoindexd starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("repoindexd: serve: %w", err)
	}
	return nil
}

// startWatchers starts one watcher per registered repository with AutoSync
// set, each feeding sync requests back through syncer. A failure starting
// any single repo's watcher is logged and skipped rather than aborting the
// whole daemon: one repository with a stale or missing working tree
// shouldn't keep every other repository from being watched.
func startWatchers(ctx context.Context, reg *registry.Registry, syncer *syncmanager.Manager, wc WatchConfig) ([]*watcher.Watcher, error) {
	repos, err := reg.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registered repositories: %w", err)
	}
	opts := wc.toOptions()
	var watchers []*watcher.Watcher
	for _, repo := range repos {
		if !repo.AutoSync {
			continue
		}
		w := watcher.New(repo.ID, repo.Root, syncer, opts)
		if err := w.Start(ctx); err != nil {
			zlog.Warn(ctx).Err(err).Str("repo_id", repo.ID).Str("root", repo.Root).Msg("failed to start watcher; repository will not auto-sync")
			continue
		}
		watchers = append(watchers, w)
	}
	return watchers, nil
}
