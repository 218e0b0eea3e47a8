// bfc CLI - parse, run, and compile tape programs
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/manifest"
	"github.com/chazu/bfc/pkg/cache"
	"github.com/chazu/bfc/pkg/runner"
	"github.com/chazu/bfc/pkg/tape"
	"github.com/chazu/bfc/pkg/toolchain"
	"github.com/chazu/bfc/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("bfc.cmd")

func main() {
	file := flag.String("f", "", "Program file (or give it as the first argument)")
	frontend := flag.String("p", "", "Front end: lexer or grammar")
	mode := flag.String("m", "", "Mode: interpret, jit, compile or emit")
	bounds := flag.String("bounds", "", "Tape bounds policy: checked, wrap or clamp")
	backend := flag.String("backend", "", "Compile backend: llvm or go")
	outDir := flag.String("o", "", "Output directory for compile mode")
	name := flag.String("name", "", "Binary name for compile mode")
	cc := flag.String("cc", "", "External compiler for compile mode")
	irOnly := flag.Bool("ir-only", false, "Write the IR without invoking a compiler")
	emitForm := flag.String("emit", runner.EmitAST, "Form printed in emit mode: ast, bytecode, chunk, llvm or go")
	useCache := flag.Bool("cache", false, "Cache jit bytecode between runs")
	verbose := flag.Int("v", -1, "Log verbosity (overrides bfc.toml)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfc [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs or compiles a tape program. Program input is read from stdin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bfc hello.bf                    # Run with the bytecode VM\n")
		fmt.Fprintf(os.Stderr, "  bfc -m interpret -p lexer x.bf  # Tree-walking interpreter, lexer front end\n")
		fmt.Fprintf(os.Stderr, "  bfc -m compile hello.bf         # Write out/output.ll and build out/brainfuck\n")
		fmt.Fprintf(os.Stderr, "  bfc -m compile -backend go x.bf # Build through generated Go source\n")
		fmt.Fprintf(os.Stderr, "  bfc -m emit -emit bytecode x.bf # Disassemble\n")
		fmt.Fprintf(os.Stderr, "  bfc -m emit -emit chunk x.bf > x.bfbc && bfc x.bfbc  # Precompile\n")
		fmt.Fprintf(os.Stderr, "  bfc -lsp                        # Language server\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fail(err)
	}
	if m == nil {
		m = manifest.Default()
	}

	// Flags override the manifest
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if *frontend != "" {
		m.Run.Frontend = *frontend
	}
	if *mode != "" {
		m.Run.Mode = *mode
	}
	if *bounds != "" {
		m.Run.Bounds = *bounds
	}
	if *backend != "" {
		m.Compile.Backend = *backend
		if !set["cc"] {
			m.Compile.Compiler = toolchain.DefaultCompiler(*backend)
		}
	}
	if *cc != "" {
		m.Compile.Compiler = *cc
	}
	if *irOnly {
		m.Compile.Compiler = ""
	}
	if *outDir != "" {
		m.Compile.Output = *outDir
	}
	if *name != "" {
		m.Compile.Name = *name
	}
	if *useCache {
		m.Cache.Enabled = true
	}
	if *verbose >= 0 {
		m.Log.Verbosity = *verbose
	}
	if err := m.Validate(); err != nil {
		fail(err)
	}

	configureLogging(m)

	fe, err := compiler.FrontendByName(m.Run.Frontend)
	if err != nil {
		fail(err)
	}

	if *lspMode {
		if err := server.NewLSP(fe).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	path := *file
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		flag.Usage()
		os.Exit(2)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		fail(err)
	}

	runMode, _ := runner.ParseMode(m.Run.Mode)
	policy, _ := tape.ParsePolicy(m.Run.Bounds)
	opts := runner.Options{
		Frontend: fe,
		Mode:     runMode,
		Policy:   policy,
		Backend:  m.Compile.Backend,
		OutDir:   m.OutputDir(),
		Name:     m.Compile.Name,
		Compiler: m.Compile.Compiler,
		Emit:     *emitForm,
	}

	if m.Cache.Enabled && runMode == runner.ModeJIT {
		c, err := openCache(m)
		if err != nil {
			log.Warningf("cache disabled: %v", err)
		} else {
			defer c.Close()
			opts.Cache = c
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = runner.Run(ctx, opts, src, os.Stdin, os.Stdout)
	stop()
	if err != nil {
		if opts.Cache != nil {
			opts.Cache.Close()
		}
		fail(err)
	}
}

func configureLogging(m *manifest.Manifest) {
	if path := m.LogFile(); path != "" {
		commonlog.Configure(m.Log.Verbosity, &path)
		return
	}
	commonlog.Configure(m.Log.Verbosity, nil)
}

func openCache(m *manifest.Manifest) (*cache.Cache, error) {
	path, err := m.CachePath()
	if err != nil {
		return nil, err
	}
	log.Debugf("opening cache at %s", path)
	return cache.Open(path)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
