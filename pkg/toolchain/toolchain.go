// Package toolchain produces native executables ahead of time: it lowers a
// program to LLVM IR or Go source, writes it under an output directory and
// hands it to an external compiler.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/codegen"
	"github.com/chazu/bfc/pkg/tape"
)

var log = commonlog.GetLogger("bfc.toolchain")

// Backend names.
const (
	BackendLLVM = "llvm"
	BackendGo   = "go"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultOutDir = "out"
	DefaultName   = "brainfuck"
)

// Options configures a build.
type Options struct {
	Backend string            // BackendLLVM or BackendGo
	Policy  tape.BoundsPolicy // cursor bounds policy compiled into the unit

	OutDir string // directory receiving the IR and the binary
	Name   string // binary name

	// Compiler is the external compiler command, e.g. "clang" or "go".
	// Empty writes the IR only.
	Compiler string
}

// Artifact lists the files a build produced.
type Artifact struct {
	IRPath     string
	BinaryPath string // empty when no compiler ran
}

// DefaultCompiler returns the usual compiler command for a backend.
func DefaultCompiler(backend string) string {
	if backend == BackendGo {
		return "go"
	}
	return "clang"
}

// Generate lowers p with the named backend and returns the unit's text.
func Generate(p *compiler.Program, backend string, policy tape.BoundsPolicy) ([]byte, error) {
	u := codegen.NewUnit("bfc", policy)
	switch backend {
	case BackendLLVM, "":
		g := codegen.NewLLVMBackend()
		if err := codegen.Lower(p, g, u); err != nil {
			return nil, err
		}
		return []byte(g.IR()), nil
	case BackendGo:
		g := codegen.NewGoBackend()
		if err := codegen.Lower(p, g, u); err != nil {
			return nil, err
		}
		return g.Source(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want llvm or go)", backend)
	}
}

func irFile(backend string) string {
	if backend == BackendGo {
		return "main.go"
	}
	return "output.ll"
}

// Build writes the generated unit to OutDir and, when a compiler is
// configured, compiles it into OutDir/Name.
func Build(ctx context.Context, p *compiler.Program, opts Options) (*Artifact, error) {
	if opts.OutDir == "" {
		opts.OutDir = DefaultOutDir
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	src, err := Generate(p, opts.Backend, opts.Policy)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create output dir: %w", err)
	}
	art := &Artifact{IRPath: filepath.Join(opts.OutDir, irFile(opts.Backend))}
	if err := os.WriteFile(art.IRPath, src, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", art.IRPath, err)
	}
	log.Infof("wrote %s", art.IRPath)

	if opts.Compiler == "" {
		return art, nil
	}

	bin, err := filepath.Abs(filepath.Join(opts.OutDir, opts.Name))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", opts.Name, err)
	}
	if err := runCompiler(ctx, opts.Backend, opts.Compiler, art.IRPath, bin); err != nil {
		return nil, err
	}
	art.BinaryPath = bin
	log.Infof("built %s", bin)
	return art, nil
}

// runCompiler invokes cc on ir. The command may carry extra arguments,
// e.g. "clang -O2".
func runCompiler(ctx context.Context, backend, cc, ir, bin string) error {
	fields := strings.Fields(cc)
	if len(fields) == 0 {
		return fmt.Errorf("compiler command %q is blank", cc)
	}
	name, args := fields[0], fields[1:]
	if backend == BackendGo {
		args = append(args, "build", "-o", bin, filepath.Base(ir))
	} else {
		args = append(args, "-o", bin, filepath.Base(ir))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = filepath.Dir(ir)
	log.Debugf("running %s", strings.Join(cmd.Args, " "))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %s: %w", name, filepath.Base(ir), strings.TrimSpace(string(out)), err)
	}
	return nil
}
