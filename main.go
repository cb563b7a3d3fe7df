package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
	"k8s.io/klog/v2"

	"github.com/pedropintoo/AGL/core"
)

const version = "0.1.0"

const helpMessage = `agl compiles and runs AGL graphics programs.

Usage:
  agl [flags] <file.agl>
`

var debugAst = flag.Bool("debug-ast", false, "print AST")
var debugProgram = flag.Bool("debug-program", false, "print the instruction stream")
var interactive = flag.Bool("i", false, "drop into a REPL after the program runs")
var watch = flag.Bool("watch", false, "re-run on source change")
var showVersion = flag.Bool("version", false, "print the version and exit")

var errLine = color.New(color.FgRed, color.Bold)

// config is the optional agl.toml next to the source file.
type config struct {
	View struct {
		Width  float64 `toml:"width"`
		Height float64 `toml:"height"`
		Title  string  `toml:"title"`
	} `toml:"view"`
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Print(helpMessage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("agl " + version)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *watch {
		watchFile(args[0])
		return
	}
	eng, surface, err := runFile(args[0])
	if err != nil {
		report(err)
		os.Exit(1)
	}
	printTrace(surface, 0)
	if *interactive {
		repl(eng, surface)
	}
}

func report(err error) {
	errLine.Fprintln(os.Stderr, err.Error())
}

func loadConfig(dir string) config {
	var cfg config
	data, err := os.ReadFile(filepath.Join(dir, "agl.toml"))
	if err != nil {
		return cfg
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		report(fmt.Errorf("agl.toml: %w", err))
	}
	return cfg
}

func viewDefaults(cfg config) map[string]core.Value {
	out := map[string]core.Value{}
	if cfg.View.Width > 0 {
		out["width"] = core.NumberValue(cfg.View.Width)
	}
	if cfg.View.Height > 0 {
		out["height"] = core.NumberValue(cfg.View.Height)
	}
	if cfg.View.Title != "" {
		out["title"] = core.StringValue(cfg.View.Title)
	}
	return out
}

func runFile(path string) (*core.Engine, *core.RecordingSurface, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	ast, err := core.Parse(string(content), filepath.Base(path))
	if err != nil {
		return nil, nil, err
	}
	if *debugAst {
		fmt.Println(ast)
	}

	prog, err := core.Compile(ast)
	if err != nil {
		return nil, nil, err
	}
	if *debugProgram {
		fmt.Print(prog.Disassemble())
	}

	dir := filepath.Dir(path)
	surface := core.NewRecordingSurface()
	eng := core.NewEngine(prog, surface)
	eng.Loader = core.FileLoader(dir)
	eng.ViewDefaults = viewDefaults(loadConfig(dir))

	if err := eng.Run(context.Background()); err != nil {
		return eng, surface, err
	}
	return eng, surface, nil
}

// printTrace prints surface calls from index from on; the headless runner
// prints the render trace instead of opening a window.
func printTrace(surface *core.RecordingSurface, from int) int {
	for _, line := range surface.Log()[from:] {
		fmt.Println(line)
	}
	return len(surface.Calls)
}

// repl reads extension-language statements and plays them against the
// program's live graph.
func repl(eng *core.Engine, surface *core.RecordingSurface) {
	rl, err := readline.New("agl> ")
	if err != nil {
		panic(err)
	}
	defer rl.Close()

	seen := len(surface.Calls)
	for {
		text, err := rl.Readline()
		if err == io.EOF {
			break
		} else if err != nil {
			fmt.Println(err)
			break
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if err := eng.PlaySource(context.Background(), text, "<stdin>"); err != nil {
			report(err)
			continue
		}
		seen = printTrace(surface, seen)
	}
}

func watchFile(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		report(err)
		os.Exit(1)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		report(err)
		os.Exit(1)
	}

	run := func() {
		_, surface, err := runFile(path)
		if err != nil {
			report(err)
			return
		}
		printTrace(surface, 0)
	}

	run()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				klog.V(1).Infof("%s changed, re-running", path)
				run()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			report(err)
		}
	}
}
