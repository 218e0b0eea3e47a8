package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/cache"
	"github.com/chazu/bfc/pkg/tape"
)

const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

func run(t *testing.T, opts Options, src, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), opts, []byte(src), strings.NewReader(input), &out)
	return out.String(), err
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeJIT},
		{"jit", ModeJIT},
		{"interpret", ModeInterpret},
		{"machine", ModeInterpret},
		{"compile", ModeCompile},
		{"emit", ModeEmit},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseMode("fast"); err == nil {
		t.Error("ParseMode(fast) should fail")
	}
}

func TestModesAgree(t *testing.T) {
	for _, fe := range []compiler.Frontend{compiler.LexerFrontend{}, compiler.GrammarFrontend{}} {
		for _, mode := range []Mode{ModeInterpret, ModeJIT} {
			out, err := run(t, Options{Frontend: fe, Mode: mode}, helloWorld, "")
			if err != nil {
				t.Fatalf("%s/%s: %v", fe.Name(), mode, err)
			}
			if out != "Hello World!\n" {
				t.Errorf("%s/%s: output = %q", fe.Name(), mode, out)
			}
		}
	}
}

func TestSyntaxErrorsSurface(t *testing.T) {
	for _, mode := range Modes {
		_, err := run(t, Options{Mode: mode, Emit: EmitAST}, "+]", "")
		if !errors.Is(err, compiler.ErrUnmatchedClose) {
			t.Errorf("%s: err = %v, want ErrUnmatchedClose", mode, err)
		}
		_, err = run(t, Options{Mode: mode}, "[[", "")
		if !errors.Is(err, compiler.ErrUnterminatedLoop) {
			t.Errorf("%s: err = %v, want ErrUnterminatedLoop", mode, err)
		}
	}
}

func TestRuntimeErrorsKeepOutput(t *testing.T) {
	for _, mode := range []Mode{ModeInterpret, ModeJIT} {
		out, err := run(t, Options{Mode: mode}, "+++++++++++++++++++++++++++++++++.<", "")
		if !errors.Is(err, tape.ErrTapeBounds) {
			t.Errorf("%s: err = %v, want ErrTapeBounds", mode, err)
		}
		if out != "!" {
			t.Errorf("%s: output = %q, want partial output", mode, out)
		}

		_, err = run(t, Options{Mode: mode}, ",", "")
		if !errors.Is(err, tape.ErrInputExhausted) {
			t.Errorf("%s: err = %v, want ErrInputExhausted", mode, err)
		}
	}
}

func TestPolicyApplies(t *testing.T) {
	for _, mode := range []Mode{ModeInterpret, ModeJIT} {
		out, err := run(t, Options{Mode: mode, Policy: tape.Wrap}, "<+.", "")
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if out != "\x01" {
			t.Errorf("%s: output = %q", mode, out)
		}
	}
}

func TestEmit(t *testing.T) {
	tests := []struct {
		form string
		want string
	}{
		{EmitAST, "+[-]\n"},
		{EmitBytecode, "BRANCH_NZ"},
		{EmitLLVM, "define i32 @main()"},
		{EmitGo, "package main"},
	}
	for _, tt := range tests {
		out, err := run(t, Options{Mode: ModeEmit, Emit: tt.form}, "+ [ - ] noise", "")
		if err != nil {
			t.Fatalf("emit %s: %v", tt.form, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("emit %s: output missing %q:\n%s", tt.form, tt.want, out)
		}
	}
	if _, err := run(t, Options{Mode: ModeEmit, Emit: "wasm"}, "+", ""); err == nil {
		t.Error("expected error for unknown emit form")
	}
}

func TestCompileModeWritesIR(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, Options{Mode: ModeCompile, Backend: "llvm", OutDir: dir}, "+.", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ir := filepath.Join(dir, "output.ll")
	if strings.TrimSpace(out) != ir {
		t.Errorf("output = %q, want %q", out, ir)
	}
	if _, err := os.Stat(ir); err != nil {
		t.Errorf("IR not written: %v", err)
	}
}

func TestJITUsesCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	for range 2 {
		out, err := run(t, Options{Mode: ModeJIT, Cache: c}, "++++++++[>++++++++<-]>+.", "")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if out != "A" {
			t.Errorf("output = %q, want A", out)
		}
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 hit 1 miss", s)
	}
}

func TestEmittedChunkRuns(t *testing.T) {
	var chunk bytes.Buffer
	err := Run(context.Background(), Options{Mode: ModeEmit, Emit: EmitChunk, Policy: tape.Wrap},
		[]byte("<+."), strings.NewReader(""), &chunk)
	if err != nil {
		t.Fatalf("emit chunk: %v", err)
	}

	// The chunk carries its own policy, so the checked default does not apply.
	out, err := run(t, Options{Mode: ModeJIT}, chunk.String(), "")
	if err != nil {
		t.Fatalf("run chunk: %v", err)
	}
	if out != "\x01" {
		t.Errorf("output = %q, want \\x01", out)
	}

	out, err = run(t, Options{Mode: ModeEmit, Emit: EmitBytecode}, chunk.String(), "")
	if err != nil || !strings.Contains(out, "Policy: wrap") {
		t.Errorf("disassembly = %q, %v", out, err)
	}

	if _, err := run(t, Options{Mode: ModeCompile}, chunk.String(), ""); err == nil {
		t.Error("compile mode should reject a compiled chunk")
	}
}

func TestCorruptChunkFails(t *testing.T) {
	var chunk bytes.Buffer
	err := Run(context.Background(), Options{Mode: ModeEmit, Emit: EmitChunk},
		[]byte("+."), strings.NewReader(""), &chunk)
	if err != nil {
		t.Fatalf("emit chunk: %v", err)
	}
	data := chunk.Bytes()
	if _, err := run(t, Options{}, string(data[:len(data)-3]), ""); err == nil {
		t.Error("expected error for truncated chunk")
	}
}

func TestMagicTextIsSource(t *testing.T) {
	// Commentary that happens to spell the magic is still source.
	out, err := run(t, Options{Mode: ModeInterpret}, "BFBC ++.", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "\x02" {
		t.Errorf("output = %q, want \\x02", out)
	}
}
