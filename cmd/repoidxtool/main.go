// Command repoidxtool is the one-shot counterpart to repoindexd: register a
// repository and run its first full index, trigger a sync by hand, or run
// a single lookup_symbol/search_code/status query against the registry
// repoindexd also reads, all without a running daemon.
//
// Modeled on the teacher's cmd/cctool: a subcmd dispatch table keyed by
// the first positional argument, flag.FlagSet per invocation, and a
// cancelable root context tied to SIGTERM/SIGINT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codeindex/codeindex/coordinator"
	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/syncmanager"

	_ "github.com/codeindex/codeindex/plugin/genericlang"
	_ "github.com/codeindex/codeindex/plugin/golang"
	_ "github.com/codeindex/codeindex/plugin/javascriptlang"
	_ "github.com/codeindex/codeindex/plugin/pythonlang"
)

type commonConfig struct {
	registryPath string
	indexRoot    string
}

type subcmd func(context.Context, *commonConfig, []string) error

func main() {
	ctx, done := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		<-ch
		done()
	}()

	var cfg commonConfig
	fs := flag.NewFlagSet("repoidxtool", flag.ExitOnError)
	fs.StringVar(&cfg.registryPath, "registry", defaultRegistryPath(), "path to the registry document")
	fs.StringVar(&cfg.indexRoot, "index-root", defaultIndexRoot(), "directory under which per-repo index snapshots live")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nSubcommands\n\n")
		fmt.Fprintln(out, "register <path> [remote-url]\n\tregister a working tree and run its first full index")
		fmt.Fprintln(out, "sync <repo-id>\n\trun a sync pass (incremental or full) for an already-registered repo")
		fmt.Fprintln(out, "search <query>\n\trun search_code, optionally across --repo=id1,id2")
		fmt.Fprintln(out, "lookup <name>\n\trun lookup_symbol, optionally across --repo=id1,id2")
		fmt.Fprintln(out, "status\n\treport per-repo and per-component health")
		fmt.Fprintln(out)
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	var cmd subcmd
	switch n := fs.Arg(0); n {
	case "register":
		cmd = Register
	case "sync":
		cmd = Sync
	case "search":
		cmd = Search
	case "lookup":
		cmd = Lookup
	case "status":
		cmd = Status
	case "":
		fs.Usage()
		os.Exit(99)
	default:
		fs.Usage()
		fmt.Fprintf(os.Stderr, "\nunknown subcommand %q\n", n)
		os.Exit(99)
	}

	if err := cmd(ctx, &cfg, fs.Args()[1:]); err != nil {
		log.Fatal(err)
	}
}

func defaultRegistryPath() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + "/.local/state/repoindexd/registry.json"
	}
	return "registry.json"
}

func defaultIndexRoot() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + "/.local/state/repoindexd/index"
	}
	return "index"
}

func openRegistry(ctx context.Context, cfg *commonConfig) (*registry.Registry, error) {
	return registry.New(ctx, &registry.Options{
		DocumentPath: cfg.registryPath,
		IndexRoot:    cfg.indexRoot,
	})
}

func openPlugins() (*pluginmgr.Manager, error) {
	return pluginmgr.NewFromRegistry(&pluginmgr.Options{})
}

// Register adds args[0] (and optional remote URL args[1]) to the registry
// and runs its first sync, which for a brand-new repo is always a full
// index.
func Register(ctx context.Context, cfg *commonConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("register: usage: register <path> [remote-url]")
	}
	path := args[0]
	var remote string
	if len(args) > 1 {
		remote = args[1]
	}

	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	plugins, err := openPlugins()
	if err != nil {
		return err
	}
	defer plugins.Shutdown()

	repoID, err := reg.Register(ctx, path, remote)
	if err != nil {
		return err
	}

	syncer := syncmanager.New(reg, plugins, nil, syncmanager.Options{})
	result, err := syncer.Sync(ctx, repoID)
	if err != nil {
		return fmt.Errorf("register: initial index of %s: %w", repoID, err)
	}
	return printJSON(result)
}

// Sync runs a sync pass for an already-registered repo_id.
func Sync(ctx context.Context, cfg *commonConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("sync: usage: sync <repo-id>")
	}
	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	plugins, err := openPlugins()
	if err != nil {
		return err
	}
	defer plugins.Shutdown()

	syncer := syncmanager.New(reg, plugins, nil, syncmanager.Options{})
	result, err := syncer.Sync(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(result)
}

// Search runs search_code through the coordinator, which fans the query
// out across every repo in scope (explicit --repo or the whole registry)
// and merges the results; a single-repo scope is a fan-out of one.
func Search(ctx context.Context, cfg *commonConfig, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	repoFlag := fs.String("repo", "", "comma-separated repo_id scope; empty searches every registered repo")
	lang := fs.String("lang", "", "restrict to a single language")
	limit := fs.Int("limit", 20, "maximum hits returned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("search: usage: search [flags] <query>")
	}
	query := strings.Join(fs.Args(), " ")

	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	plugins, err := openPlugins()
	if err != nil {
		return err
	}
	defer plugins.Shutdown()

	disp := dispatcher.New(reg, plugins, nil, dispatcher.Options{})
	defer disp.Close()
	coord := coordinator.New(disp, coordinator.Options{})

	opts := dispatcher.SearchOpts{Language: *lang, RepoScope: splitCSV(*repoFlag), Limit: *limit}
	result, err := coord.SearchCode(ctx, query, opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// Lookup runs lookup_symbol against the dispatcher directly: symbol lookup
// is always a merge-then-sort over its resolved repo scope, with no
// cross-repo top-k tradeoff for the coordinator to add value over.
func Lookup(ctx context.Context, cfg *commonConfig, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	repoFlag := fs.String("repo", "", "comma-separated repo_id scope; empty searches every registered repo")
	limit := fs.Int("limit", 10, "maximum hits returned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("lookup: usage: lookup [flags] <name>")
	}

	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	plugins, err := openPlugins()
	if err != nil {
		return err
	}
	defer plugins.Shutdown()

	disp := dispatcher.New(reg, plugins, nil, dispatcher.Options{})
	defer disp.Close()

	opts := dispatcher.LookupOpts{RepoScope: splitCSV(*repoFlag), Limit: *limit}
	hits, err := disp.LookupSymbol(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	return printJSON(hits)
}

// Status reports per-repo and per-component health via the dispatcher's
// status() operation.
func Status(ctx context.Context, cfg *commonConfig, args []string) error {
	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	plugins, err := openPlugins()
	if err != nil {
		return err
	}
	defer plugins.Shutdown()

	disp := dispatcher.New(reg, plugins, nil, dispatcher.Options{})
	defer disp.Close()

	report, err := disp.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
