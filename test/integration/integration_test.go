package integration_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/bytecode"
	"github.com/chazu/bfc/pkg/tape"
	"github.com/chazu/bfc/pkg/toolchain"
	"github.com/chazu/bfc/vm"
)

// ---------------------------------------------------------------------------
// Scenario fixtures
// ---------------------------------------------------------------------------

type scenario struct {
	Name         string `yaml:"name"`
	Program      string `yaml:"program"`
	Input        string `yaml:"input"`
	Output       string `yaml:"output"`
	OutputBytes  []int  `yaml:"output_bytes"`
	Bounds       string `yaml:"bounds"`
	Cells        []int  `yaml:"cells"`
	SyntaxError  string `yaml:"syntax_error"`
	RuntimeError string `yaml:"runtime_error"`
}

func (s scenario) want() []byte {
	if s.OutputBytes == nil {
		return []byte(s.Output)
	}
	b := make([]byte, len(s.OutputBytes))
	for i, v := range s.OutputBytes {
		b[i] = byte(v)
	}
	return b
}

func (s scenario) policy(t *testing.T) tape.BoundsPolicy {
	t.Helper()
	if s.Bounds == "" {
		return tape.Checked
	}
	p, err := tape.ParsePolicy(s.Bounds)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	return p
}

func (s scenario) runtimeErr() error {
	switch s.RuntimeError {
	case "bounds":
		return tape.ErrTapeBounds
	case "input":
		return tape.ErrInputExhausted
	}
	return nil
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	f, err := os.Open("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("open scenarios: %v", err)
	}
	defer f.Close()

	var out []scenario
	if err := yaml.NewDecoder(f).Decode(&out); err != nil {
		t.Fatalf("decode scenarios: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("no scenarios")
	}
	return out
}

// ---------------------------------------------------------------------------
// Engines
// ---------------------------------------------------------------------------

// inspectCells is how much of the tape in-process engines report back.
const inspectCells = 16

// result is what one engine observed for one program.
type result struct {
	out   []byte
	err   error
	cells []byte // nil for out-of-process engines
}

type engine struct {
	name string
	run  func(t *testing.T, p *compiler.Program, policy tape.BoundsPolicy, in string) result
}

func interpreterEngine(t *testing.T, p *compiler.Program, policy tape.BoundsPolicy, in string) result {
	var out bytes.Buffer
	interp := vm.New(strings.NewReader(in), &out, vm.WithPolicy(policy))
	err := interp.Run(p)
	return result{out: out.Bytes(), err: err, cells: interp.Tape().Cells(inspectCells)}
}

func bytecodeEngine(t *testing.T, p *compiler.Program, policy tape.BoundsPolicy, in string) result {
	chunk, err := bytecode.Compile(p, policy)
	if err != nil {
		t.Fatalf("bytecode compile: %v", err)
	}
	var out bytes.Buffer
	m := bytecode.NewVM(strings.NewReader(in), &out)
	err = m.Run(chunk)
	return result{out: out.Bytes(), err: err, cells: m.Tape().Cells(inspectCells)}
}

// nativeEngine builds p with the given backend and runs the binary. A
// runtime failure is reported as exit status 1, mapped back to a sentinel
// from the message on stderr.
func nativeEngine(backend string) func(*testing.T, *compiler.Program, tape.BoundsPolicy, string) result {
	return func(t *testing.T, p *compiler.Program, policy tape.BoundsPolicy, in string) result {
		art, err := toolchain.Build(context.Background(), p, toolchain.Options{
			Backend:  backend,
			Policy:   policy,
			OutDir:   t.TempDir(),
			Compiler: toolchain.DefaultCompiler(backend),
		})
		if err != nil {
			t.Fatalf("%s build: %v", backend, err)
		}

		var stdout, stderr bytes.Buffer
		cmd := exec.Command(art.BinaryPath)
		cmd.Stdin = strings.NewReader(in)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() != 1 {
				t.Fatalf("exit status %d, want 1 (stderr %q)", exitErr.ExitCode(), stderr.String())
			}
			switch {
			case strings.Contains(stderr.String(), "InputExhausted"):
				err = tape.ErrInputExhausted
			case strings.Contains(stderr.String(), "TapeBoundsExceeded"):
				err = tape.ErrTapeBounds
			default:
				t.Fatalf("unrecognized failure: %q", stderr.String())
			}
		} else if err != nil {
			t.Fatalf("run %s: %v", art.BinaryPath, err)
		}
		return result{out: stdout.Bytes(), err: err}
	}
}

func engines(t *testing.T) []engine {
	es := []engine{
		{"interpreter", interpreterEngine},
		{"bytecode", bytecodeEngine},
	}
	if testing.Short() {
		return es
	}
	if _, err := exec.LookPath("clang"); err == nil {
		es = append(es, engine{"llvm", nativeEngine(toolchain.BackendLLVM)})
	} else {
		t.Log("clang not on PATH; skipping llvm engine")
	}
	if _, err := exec.LookPath("go"); err == nil {
		es = append(es, engine{"go", nativeEngine(toolchain.BackendGo)})
	} else {
		t.Log("go not on PATH; skipping go engine")
	}
	return es
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestScenarios(t *testing.T) {
	scenarios := loadScenarios(t)
	es := engines(t)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			if sc.SyntaxError != "" {
				checkSyntaxError(t, sc)
				return
			}

			p, err := compiler.Parse([]byte(sc.Program))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			policy := sc.policy(t)
			wantErr := sc.runtimeErr()

			for _, e := range es {
				t.Run(e.name, func(t *testing.T) {
					r := e.run(t, p, policy, sc.Input)
					if !bytes.Equal(r.out, sc.want()) {
						t.Errorf("output = %q, want %q", r.out, sc.want())
					}
					switch {
					case wantErr == nil && r.err != nil:
						t.Errorf("unexpected error: %v", r.err)
					case wantErr != nil && !errors.Is(r.err, wantErr):
						t.Errorf("error = %v, want %v", r.err, wantErr)
					}
					if r.cells == nil {
						return
					}
					for i, want := range sc.Cells {
						if int(r.cells[i]) != want {
							t.Errorf("cell %d = %d, want %d", i, r.cells[i], want)
						}
					}
				})
			}
		})
	}
}

func checkSyntaxError(t *testing.T, sc scenario) {
	t.Helper()
	for _, fe := range []compiler.Frontend{compiler.LexerFrontend{}, compiler.GrammarFrontend{}} {
		_, err := fe.Parse([]byte(sc.Program))
		var syn *compiler.SyntaxError
		if !errors.As(err, &syn) {
			t.Errorf("%s: error = %v, want SyntaxError", fe.Name(), err)
			continue
		}
		if syn.Kind.String() != sc.SyntaxError {
			t.Errorf("%s: kind = %s, want %s", fe.Name(), syn.Kind, sc.SyntaxError)
		}
	}
}

// The two front ends must agree on every scenario program.
func TestFrontendsAgree(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		if sc.SyntaxError != "" {
			continue
		}
		a, errA := compiler.Parse([]byte(sc.Program))
		b, errB := compiler.ParseGrammar([]byte(sc.Program))
		if errA != nil || errB != nil {
			t.Fatalf("%s: parse errors %v / %v", sc.Name, errA, errB)
		}
		if a.String() != b.String() {
			t.Errorf("%s: lexer %q, grammar %q", sc.Name, a.String(), b.String())
		}
	}
}
