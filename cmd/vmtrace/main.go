// vmtrace runs the reference class hierarchies with dispatch tracing and
// inspects the recorded traces and metadata snapshots.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/virtualmethods/config"
	"github.com/chazu/virtualmethods/examples/hierarchy"
	"github.com/chazu/virtualmethods/trace"
	"github.com/chazu/virtualmethods/vm"
	"github.com/chazu/virtualmethods/vm/snapshot"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: vmtrace <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  demo      Run the reference hierarchies, record traces, write a snapshot\n")
	fmt.Fprintf(os.Stderr, "  summary   Print redirect statistics from a trace database\n")
	fmt.Fprintf(os.Stderr, "  dump      Print a dispatch snapshot\n")
	fmt.Fprintf(os.Stderr, "  diff      Compare two dispatch snapshots\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  vmtrace demo -config .               # Use ./virtualmethods.toml\n")
	fmt.Fprintf(os.Stderr, "  vmtrace summary -db trace.db         # Latest session\n")
	fmt.Fprintf(os.Stderr, "  vmtrace dump -snapshot dispatch.cbor\n")
	fmt.Fprintf(os.Stderr, "  vmtrace diff -old before.cbor -new after.cbor\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "demo":
		err = runDemo(args)
	case "summary":
		err = runSummary(args)
	case "dump":
		err = runDump(args)
	case "diff":
		err = runDiff(args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads virtualmethods.toml from dir, or searches upward from the
// working directory when dir is empty. Without a file the defaults apply.
func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	c, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = config.Default()
	}
	return c, nil
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing virtualmethods.toml (default: search upward)")
	dbPath := fs.String("db", "", "Trace database (overrides [trace] database)")
	snapPath := fs.String("snapshot", "", "Snapshot output (overrides [snapshot] output)")
	verbose := fs.Bool("v", false, "Log each redirection")
	fs.Parse(args)

	cfg, err := loadConfig(*configDir)
	if err != nil {
		return err
	}
	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, cfg.LogPath())

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	rec := trace.NewRecorder(cfg.Trace.Buffer)
	tracers := []vm.Tracer{rec}
	var store *trace.Store
	if cfg.Trace.Enabled || *dbPath != "" {
		path := *dbPath
		if path == "" {
			path = cfg.TraceDatabasePath()
		}
		store, err = trace.Open(path, "")
		if err != nil {
			return err
		}
		defer store.Close()
		tracers = append(tracers, store)
	}
	opts = append(opts, vm.WithTracer(trace.Tee(tracers...)))

	v := vm.NewVM(opts...)
	chains := make([]hierarchy.Chain, 0, 2)
	for _, define := range []func(*vm.VM) (hierarchy.Chain, error){hierarchy.DefineNonVirtual, hierarchy.DefineVirtual} {
		ch, err := define(v)
		if err != nil {
			return err
		}
		chains = append(chains, ch)
	}

	failed := 0
	for _, ch := range chains {
		fmt.Printf("%s <- %s <- %s (%s)\n", ch.Base.Name, ch.Middle.Name, ch.Leaf.Name, ch.Base.Policy())
		for _, s := range hierarchy.Scenarios(ch) {
			got, err := s.Run(v.Context(), ch)
			status := "ok"
			switch {
			case err != nil:
				status = "error: " + err.Error()
				failed++
			case !got.Equal(s.Want):
				status = "MISMATCH, want " + strings.Join(s.Want, " ")
				failed++
			}
			fmt.Printf("  %-13s %s  [%s]\n", s.Name, strings.Join(got, " "), status)
		}
	}

	fmt.Printf("\n%d events, %d redirected", rec.Len(), len(rec.Redirects()))
	if cache := v.Cache(); cache != nil {
		stats := cache.Stats()
		fmt.Printf(", cache %d hits / %d misses", stats.Hits, stats.Misses)
	}
	fmt.Println()

	if store != nil {
		if err := store.Flush(); err != nil {
			return err
		}
		fmt.Printf("trace session %s written to %s\n", store.Session(), store.Path())
	}

	out := *snapPath
	if out == "" {
		out = cfg.SnapshotPath()
	}
	if out != "" {
		if err := snapshot.WriteFile(out, snapshot.Capture(v)); err != nil {
			return err
		}
		fmt.Printf("snapshot written to %s\n", out)
	}

	if failed > 0 {
		return fmt.Errorf("%d scenarios failed", failed)
	}
	return nil
}

func runSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	dbPath := fs.String("db", "", "Trace database")
	session := fs.String("session", "", "Session ID (default: most recent)")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("summary requires -db")
	}
	if _, err := os.Stat(*dbPath); err != nil {
		return err
	}
	commonlog.Configure(0, nil)

	store, err := trace.Open(*dbPath, "")
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}
	id := *session
	if id == "" {
		fmt.Println("Sessions:")
		for _, s := range sessions {
			fmt.Printf("  %s  %d events\n", s.ID, s.Events)
		}
		id = sessions[len(sessions)-1].ID
		fmt.Println()
	}

	rows, err := store.Summary(id)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s:\n", id)
	var total, redirected int
	for _, r := range rows {
		fmt.Printf("  %-7s %-8s %-16s %d\n", r.Shape, r.Binding, r.Name, r.Count)
		total += r.Count
		if r.Binding == vm.BindingStatic {
			redirected += r.Count
		}
	}
	fmt.Printf("%d events, %d redirected to the calling class\n", total, redirected)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	path := fs.String("snapshot", "", "Snapshot file")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("dump requires -snapshot")
	}
	s, err := snapshot.ReadFile(*path)
	if err != nil {
		return err
	}
	return s.WriteText(os.Stdout)
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	oldPath := fs.String("old", "", "Earlier snapshot")
	newPath := fs.String("new", "", "Later snapshot")
	fs.Parse(args)

	if *oldPath == "" || *newPath == "" {
		return fmt.Errorf("diff requires -old and -new")
	}
	prev, err := snapshot.ReadFile(*oldPath)
	if err != nil {
		return err
	}
	next, err := snapshot.ReadFile(*newPath)
	if err != nil {
		return err
	}
	lines := snapshot.Diff(prev, next)
	if len(lines) == 0 {
		fmt.Println("no differences")
		return nil
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}
