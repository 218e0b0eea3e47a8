// Package runner wires a front end to exactly one execution strategy.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/bytecode"
	"github.com/chazu/bfc/pkg/cache"
	"github.com/chazu/bfc/pkg/tape"
	"github.com/chazu/bfc/pkg/toolchain"
	"github.com/chazu/bfc/vm"
)

var log = commonlog.GetLogger("bfc.runner")

// Mode selects what happens to a parsed program.
type Mode string

const (
	ModeInterpret Mode = "interpret" // tree-walking interpreter
	ModeJIT       Mode = "jit"       // lower to bytecode, run in process
	ModeCompile   Mode = "compile"   // lower to native IR, build with an external compiler
	ModeEmit      Mode = "emit"      // print an intermediate form
)

// Modes lists every accepted mode.
var Modes = []Mode{ModeInterpret, ModeJIT, ModeCompile, ModeEmit}

// ParseMode parses a mode name. "machine" is accepted for the interpreter.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "jit":
		return ModeJIT, nil
	case "interpret", "machine":
		return ModeInterpret, nil
	case "compile":
		return ModeCompile, nil
	case "emit":
		return ModeEmit, nil
	}
	return "", fmt.Errorf("unknown mode %q (want interpret, jit, compile or emit)", s)
}

// Emit forms.
const (
	EmitAST      = "ast"
	EmitBytecode = "bytecode"
	EmitLLVM     = "llvm"
	EmitGo       = "go"
	EmitChunk    = "chunk" // binary chunk, runnable with Run
)

// Options configures a run.
type Options struct {
	Frontend compiler.Frontend
	Mode     Mode
	Policy   tape.BoundsPolicy

	// compile mode
	Backend  string
	OutDir   string
	Name     string
	Compiler string

	// Cache, if set, stores jit-mode chunks.
	Cache *cache.Cache

	// Emit is the form printed in emit mode.
	Emit string
}

// Run parses src and executes it per opts. Program input is read from in
// and program output written to out; in compile and emit modes out
// receives the artifact listing or the emitted text instead.
//
// A src holding a serialized chunk (see EmitChunk) skips the front end and
// runs on the bytecode VM with the policy it was compiled for.
func Run(ctx context.Context, opts Options, src []byte, in io.Reader, out io.Writer) error {
	if bytecode.IsChunk(src) {
		return runChunk(ctx, opts, src, in, out)
	}

	fe := opts.Frontend
	if fe == nil {
		fe = compiler.GrammarFrontend{}
	}
	prog, err := fe.Parse(src)
	if err != nil {
		return err
	}
	log.Debugf("parsed %d operators with %s front end, depth %d", prog.Len(), fe.Name(), prog.Depth())

	switch opts.Mode {
	case ModeInterpret:
		return interpret(prog, opts, in, out)
	case ModeJIT, "":
		return jit(ctx, prog, opts, in, out)
	case ModeCompile:
		art, err := toolchain.Build(ctx, prog, toolchain.Options{
			Backend:  opts.Backend,
			Policy:   opts.Policy,
			OutDir:   opts.OutDir,
			Name:     opts.Name,
			Compiler: opts.Compiler,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, art.IRPath)
		if art.BinaryPath != "" {
			fmt.Fprintln(out, art.BinaryPath)
		}
		return nil
	case ModeEmit:
		return emit(prog, opts, out)
	default:
		return fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

func interpret(prog *compiler.Program, opts Options, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	it := vm.New(bufio.NewReader(in), flushingWriter{w}, vm.WithPolicy(opts.Policy))
	err := it.Run(prog)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

func jit(ctx context.Context, prog *compiler.Program, opts Options, in io.Reader, out io.Writer) error {
	var (
		chunk *bytecode.Chunk
		err   error
	)
	if opts.Cache != nil {
		chunk, err = opts.Cache.Compile(ctx, prog, opts.Policy)
	} else {
		chunk, err = bytecode.Compile(prog, opts.Policy)
	}
	if err != nil {
		return err
	}
	return execute(ctx, chunk, in, out)
}

func runChunk(ctx context.Context, opts Options, data []byte, in io.Reader, out io.Writer) error {
	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		return err
	}
	log.Debugf("loaded %d-byte chunk built for %s", chunk.CodeLen(), chunk.Policy)

	switch opts.Mode {
	case ModeInterpret, ModeJIT, "":
		return execute(ctx, chunk, in, out)
	case ModeEmit:
		switch opts.Emit {
		case EmitBytecode, "":
			_, err := io.WriteString(out, chunk.Disassemble())
			return err
		case EmitChunk:
			_, err := out.Write(data)
			return err
		}
		return fmt.Errorf("emit form %q needs program source, not a compiled chunk", opts.Emit)
	default:
		return fmt.Errorf("mode %q needs program source, not a compiled chunk", opts.Mode)
	}
}

func execute(ctx context.Context, chunk *bytecode.Chunk, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	m := bytecode.NewVM(bufio.NewReader(in), flushingWriter{w})
	err := m.RunContext(ctx, chunk)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	log.Debugf("executed %d instructions", m.Executed())
	return err
}

func emit(prog *compiler.Program, opts Options, out io.Writer) error {
	switch opts.Emit {
	case EmitAST, "":
		_, err := fmt.Fprintln(out, prog.String())
		return err
	case EmitBytecode:
		chunk, err := bytecode.Compile(prog, opts.Policy)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, chunk.Disassemble())
		return err
	case EmitChunk:
		chunk, err := bytecode.Compile(prog, opts.Policy)
		if err != nil {
			return err
		}
		data, err := chunk.Serialize()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case EmitLLVM, EmitGo:
		text, err := toolchain.Generate(prog, opts.Emit, opts.Policy)
		if err != nil {
			return err
		}
		_, err = out.Write(text)
		return err
	default:
		return fmt.Errorf("unknown emit form %q (want ast, bytecode, chunk, llvm or go)", opts.Emit)
	}
}

// flushingWriter flushes after every newline so interactive programs show
// their prompts before blocking on input.
type flushingWriter struct {
	w *bufio.Writer
}

func (f flushingWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err == nil && len(p) > 0 && p[len(p)-1] == '\n' {
		err = f.w.Flush()
	}
	return n, err
}
