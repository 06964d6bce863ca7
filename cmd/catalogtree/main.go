// Command catalogtree prints, filters and rearranges a GIS catalog snapshot,
// or browses it in a terminal UI with keyboard drag and drop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Tailormap/tailormap-viewer-sub000/internal/datasource"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/config"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/ui"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/version"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/watcher"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	data       string
	configPath string
	filter     string
	crs        string
	move       string
	to         string
	position   string
	save       bool
	tui        bool
	watch      bool
	all        bool
	ids        bool
	lazy       bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("catalogtree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.data, "data", "", "Catalog snapshot (.json, .yaml, .yml, .db, .sqlite); defaults to the configured path or the freshest snapshot in the current directory")
	fs.StringVar(&o.configPath, "config", "", "Config file (default "+config.ConfigPath()+")")
	fs.StringVar(&o.filter, "filter", "", "Only show entries whose title contains every word")
	fs.StringVar(&o.crs, "crs", "", "Only show layers available in this CRS, e.g. EPSG:28992")
	fs.StringVar(&o.move, "move", "", "Tree id of the folder, service or feature source to move (e.g. node:1_1)")
	fs.StringVar(&o.to, "to", "", "Tree id of the target the moved entry lands relative to")
	fs.StringVar(&o.position, "position", "inside", "Where to land relative to -to: before, after or inside")
	fs.BoolVar(&o.save, "save", false, "Write the moved catalog back to the snapshot")
	fs.BoolVar(&o.tui, "tui", false, "Browse the catalog in the terminal UI")
	fs.BoolVar(&o.watch, "watch", false, "Reload when the snapshot changes on disk")
	fs.BoolVar(&o.all, "all", false, "Print collapsed folders too")
	fs.BoolVar(&o.ids, "ids", false, "Print the tree id of every row")
	fs.BoolVar(&o.lazy, "lazy", false, "Load folder contents on first expand")
	fs.BoolVar(&o.version, "version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if (o.move == "") != (o.to == "") {
		return o, errors.New("-move and -to must be given together")
	}
	if o.save && o.move == "" {
		return o, errors.New("-save needs -move")
	}
	if o.tui && o.move != "" {
		return o, errors.New("-move cannot be combined with -tui")
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "catalogtree %s\n", version.Version)
		return 0
	}

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	path, err := resolveDataPath(o.data, cfg.Data.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := datasource.OpenSession(ctx, path, o.lazy || cfg.Data.Lazy)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening %s: %v\n", path, err)
		return 1
	}
	defer session.Close()
	session.SetLoadLimit(cfg.Data.LoadLimit)

	forest, fetcher, err := session.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", path, err)
		return 1
	}
	if err := catalog.Validate(forest); err != nil {
		debug.Log("catalogtree: %s: %v", path, err)
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	if o.tui {
		if err := runTUI(forest, fetcher, session, cfg, o); err != nil {
			fmt.Fprintf(stderr, "Error running catalog browser: %v\n", err)
			return 1
		}
		return 0
	}

	if o.move != "" {
		moved, code := applyMove(ctx, forest, session, o, stdout, stderr)
		if code != 0 {
			return code
		}
		forest = moved
	}

	styled, width := terminalOutput(stdout)
	show := func(f catalog.Forest) error {
		view := catalog.Filter(f, cfg.FilterOptions(o.filter, o.crs))
		build := catalog.BuildOptions{ShowRoot: cfg.UI.ShowRoot}
		if fetcher != nil {
			// Lazy folders are never fetched here.
			build.Loaded = func(string) bool { return false }
		}
		return printTree(stdout, view, build, printOptions{All: o.all, IDs: o.ids, Styled: styled, Width: width})
	}
	if err := show(forest); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !o.watch {
		return 0
	}
	if err := watchAndPrint(ctx, session, forest, cfg, show, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// resolveDataPath prefers the flag, then the config file, then the freshest
// valid snapshot in the working directory.
func resolveDataPath(flagPath, cfgPath string) (string, error) {
	switch {
	case flagPath != "":
		return flagPath, nil
	case cfgPath != "":
		return cfgPath, nil
	}
	sources, err := datasource.Discover(".")
	if err != nil {
		return "", err
	}
	best, err := datasource.SelectBest(sources)
	if err != nil {
		return "", fmt.Errorf("no snapshot given with -data and none found here: %w", err)
	}
	debug.Log("catalogtree: using %s", best)
	return best.Path, nil
}

// terminalOutput reports whether w is a terminal and its width.
func terminalOutput(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}

// parseTarget accepts a tree id or a bare folder id.
func parseTarget(s string) string {
	if _, _, ok := catalog.ParseTreeID(s); ok {
		return s
	}
	return catalog.TreeID(catalog.EntityNode, s)
}

func parsePosition(s string) (catalog.Position, error) {
	switch p := catalog.Position(strings.ToLower(strings.TrimSpace(s))); p {
	case catalog.Before, catalog.After, catalog.Inside:
		return p, nil
	}
	return "", fmt.Errorf("unknown position %q (want before, after or inside)", s)
}

// moveIntent builds the catalog move for the -move, -to and -position flags.
// Parents are left empty and located by catalog.Move.
func moveIntent(move, to, position string) (catalog.MoveIntent, error) {
	pos, err := parsePosition(position)
	if err != nil {
		return catalog.MoveIntent{}, err
	}
	nodeID, node, ok := catalog.SubjectOf(parseTarget(move))
	if !ok {
		return catalog.MoveIntent{}, fmt.Errorf("%s cannot be moved; use a folder, service or feature source id", move)
	}
	sibID, sib, ok := catalog.SubjectOf(parseTarget(to))
	if !ok {
		return catalog.MoveIntent{}, fmt.Errorf("%s is not a folder, service or feature source id", to)
	}
	in := catalog.MoveIntent{
		NodeID:    nodeID,
		Node:      node,
		Position:  pos,
		SiblingID: sibID,
		Sibling:   sib,
	}
	if pos == catalog.Inside {
		in.ToParent = sibID
	}
	return in, nil
}

func applyMove(ctx context.Context, f catalog.Forest, session *datasource.Session, o options, stdout, stderr io.Writer) (catalog.Forest, int) {
	in, err := moveIntent(o.move, o.to, o.position)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return f, 2
	}
	moved, changed := catalog.Move(f, in)
	if !changed {
		fmt.Fprintf(stderr, "Move of %s %s %s is not allowed\n", o.move, in.Position, o.to)
		return f, 1
	}
	fmt.Fprint(stdout, datasource.Diff(f, moved).Summary())

	if !o.save {
		return moved, 0
	}
	start := time.Now()
	n, err := session.Save(ctx, moved)
	if err != nil {
		fmt.Fprintf(stderr, "Error saving %s: %v\n", session.Path(), err)
		return f, 1
	}
	debug.LogTiming("catalogtree save", time.Since(start))
	fmt.Fprintf(stdout, "Saved %s (%d entit(ies) written)\n", session.Path(), n)
	return moved, 0
}

// watchAndPrint reprints the catalog whenever the snapshot changes, until
// ctx is cancelled.
func watchAndPrint(ctx context.Context, session *datasource.Session, current catalog.Forest, cfg config.Config, show func(catalog.Forest) error, stdout io.Writer) error {
	w, err := watcher.NewWatcher([]string{session.Path()}, cfg.WatchOptions()...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Changed():
			if !ok {
				return nil
			}
			next, _, err := session.Load(ctx)
			if err != nil {
				fmt.Fprintf(stdout, "Reload failed: %v\n", err)
				continue
			}
			diff := datasource.Diff(current, next)
			if !diff.HasChanges() {
				continue
			}
			current = next
			fmt.Fprintf(stdout, "\n%s", diff.Summary())
			if err := show(current); err != nil {
				return err
			}
		}
	}
}

func runTUI(f catalog.Forest, fetcher loader.Fetcher, session *datasource.Session, cfg config.Config, o options) error {
	opts := ui.Options{
		Config:  cfg,
		Session: session,
		Filter:  o.filter,
		CRS:     o.crs,
	}
	if cfg.UI.PersistExpansion {
		opts.StatePath = config.ExpansionStatePath()
	}
	if o.watch || cfg.Watch.Enabled {
		w, err := watcher.NewWatcher([]string{session.Path()}, cfg.WatchOptions()...)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		opts.Watcher = w
	}

	m := ui.NewModel(f, fetcher, opts)
	defer m.Close()
	return runTUIProgram(m)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
