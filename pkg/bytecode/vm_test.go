package bytecode

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/tape"
	"github.com/chazu/bfc/vm"
)

const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

func TestVMScenarios(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		input string
		want  string
		cells []byte
	}{
		{"output A", strings.Repeat("+", 65) + ".", "", "A", []byte{65}},
		{"echo", ",.", "x", "x", []byte{'x'}},
		{"move and add", "+>++>+++", "", "", []byte{1, 2, 3}},
		{"clear loop", "+++++[-]", "", "", []byte{0}},
		{"transfer", "+++[->++<]", "", "", []byte{0, 6}},
		{"wrap cell", "-.", "", "\xff", []byte{0xff}},
		{"hello world", helloWorld, "", "Hello World!\n", nil},
		{"cat", ",[.,]", "abc", "", nil}, // ends on exhausted input
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			m := NewVM(strings.NewReader(tt.input), &out)
			err := m.Run(compile(t, tt.src, tape.Checked))
			if tt.name == "cat" {
				if !errors.Is(err, tape.ErrInputExhausted) {
					t.Fatalf("Run err = %v, want ErrInputExhausted", err)
				}
				if out.String() != "abc" {
					t.Errorf("output = %q, want abc", out.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
			if tt.cells != nil {
				if got := m.Tape().Cells(len(tt.cells)); !bytes.Equal(got, tt.cells) {
					t.Errorf("cells = %v, want %v", got, tt.cells)
				}
			}
		})
	}
}

func TestVMBoundsPolicies(t *testing.T) {
	tests := []struct {
		policy tape.BoundsPolicy
		src    string
		cursor int
		err    bool
	}{
		{tape.Checked, "<", 0, true},
		{tape.Checked, "><<", 0, true},
		{tape.Wrap, "<", tape.Size - 1, false},
		{tape.Wrap, "<<>", tape.Size - 1, false},
		{tape.Clamp, "<<<>", 1, false},
	}
	for _, tt := range tests {
		m := NewVM(strings.NewReader(""), &bytes.Buffer{})
		err := m.Run(compile(t, tt.src, tt.policy))
		if tt.err {
			var be *tape.BoundsError
			if !errors.As(err, &be) {
				t.Errorf("%s %q: err = %v, want *tape.BoundsError", tt.policy, tt.src, err)
			}
		} else if err != nil {
			t.Errorf("%s %q: %v", tt.policy, tt.src, err)
		}
		if got := m.Tape().Cursor(); got != tt.cursor {
			t.Errorf("%s %q: cursor = %d, want %d", tt.policy, tt.src, got, tt.cursor)
		}
	}
}

// The VM must agree with the tree-walking interpreter on output, final
// memory and error values.
func TestVMMatchesInterpreter(t *testing.T) {
	progs := []struct{ src, input string }{
		{helloWorld, ""},
		{",[.,]", "hello"},
		{"+[>+]", ""},
		{"-[<+]", ""},
		{">+++[<++>-]<[->>+<<]>>.", ""},
		{"++[>++[>++<-]<-]>>[-<<+>>]<<.", ""},
		{",>,<[->+<]>.", "\x05\x07"},
	}
	for _, policy := range []tape.BoundsPolicy{tape.Checked, tape.Wrap, tape.Clamp} {
		for _, p := range progs {
			compareWithInterpreter(t, policy, p.src, p.input)
		}
	}
}

// Generated terminating programs exercise Add and Move folding across
// block boundaries that hand-written cases miss.
func TestVMMatchesInterpreterGenerated(t *testing.T) {
	n := 1000
	if testing.Short() {
		n = 100
	}
	for _, policy := range []tape.BoundsPolicy{tape.Checked, tape.Wrap, tape.Clamp} {
		r := rand.New(rand.NewPCG(42, uint64(policy)))
		for range n {
			src := genProgram(r)
			input := make([]byte, r.IntN(8))
			for i := range input {
				input[i] = byte(r.IntN(256))
			}
			if !compareWithInterpreter(t, policy, src, string(input)) {
				return
			}
		}
	}
}

// compareWithInterpreter runs src on both engines and reports any
// difference in output, error, cursor or memory. It returns false after
// the first mismatch.
func compareWithInterpreter(t *testing.T, policy tape.BoundsPolicy, src, input string) bool {
	t.Helper()
	prog, err := compiler.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}

	var want bytes.Buffer
	it := vm.New(strings.NewReader(input), &want, vm.WithPolicy(policy))
	wantErr := it.Run(prog)

	chunk, err := Compile(prog, policy)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	var got bytes.Buffer
	m := NewVM(strings.NewReader(input), &got)
	gotErr := m.Run(chunk)

	ok := true
	if got.String() != want.String() {
		t.Errorf("%s %q: output = %q, interpreter %q", policy, src, got.String(), want.String())
		ok = false
	}
	if !sameError(gotErr, wantErr) {
		t.Errorf("%s %q: err = %v, interpreter %v", policy, src, gotErr, wantErr)
		ok = false
	}
	if m.Tape().Cursor() != it.Tape().Cursor() {
		t.Errorf("%s %q: cursor = %d, interpreter %d", policy, src, m.Tape().Cursor(), it.Tape().Cursor())
		ok = false
	}
	if !bytes.Equal(m.Tape().Cells(96), it.Tape().Cells(96)) {
		t.Errorf("%s %q: memory differs from interpreter", policy, src)
		ok = false
	}
	return ok
}

// progGen builds programs that halt under every policy. Each loop is
// "[-" body "]" where the body returns to the loop's cell and never writes
// to it or to any enclosing loop's cell, so every counter strictly
// decreases. Inside loops the cursor never steps left of cell 0, so
// clamping cannot shift a body off its counter.
type progGen struct {
	r        *rand.Rand
	sb       strings.Builder
	pos      int
	reserved map[int]bool
}

func genProgram(r *rand.Rand) string {
	g := &progGen{r: r, reserved: make(map[int]bool)}
	g.seq(1+r.IntN(30), 0)
	return g.sb.String()
}

func (g *progGen) seq(n, depth int) {
	for range n {
		switch g.r.IntN(9) {
		case 0, 1:
			if g.pos < 64 {
				g.sb.WriteByte('>')
				g.pos++
			}
		case 2:
			if g.pos > 0 {
				g.sb.WriteByte('<')
				g.pos--
			} else if depth == 0 {
				g.sb.WriteByte('<') // fails, wraps or clamps
			}
		case 3, 4:
			if !g.reserved[g.pos] {
				g.sb.WriteString(strings.Repeat("+", 1+g.r.IntN(4)))
			}
		case 5:
			if !g.reserved[g.pos] {
				g.sb.WriteByte('-')
			}
		case 6:
			g.sb.WriteByte('.')
		case 7:
			if !g.reserved[g.pos] {
				g.sb.WriteByte(',')
			}
		case 8:
			if depth < 2 && !g.reserved[g.pos] {
				g.loop(depth)
			}
		}
	}
}

func (g *progGen) loop(depth int) {
	start := g.pos
	g.sb.WriteString("[-")
	g.reserved[start] = true
	g.seq(1+g.r.IntN(6), depth+1)
	for ; g.pos > start; g.pos-- {
		g.sb.WriteByte('<')
	}
	for ; g.pos < start; g.pos++ {
		g.sb.WriteByte('>')
	}
	delete(g.reserved, start)
	g.sb.WriteByte(']')
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	var ba, bb *tape.BoundsError
	if errors.As(a, &ba) && errors.As(b, &bb) {
		return *ba == *bb
	}
	return errors.Is(a, tape.ErrInputExhausted) == errors.Is(b, tape.ErrInputExhausted) && a.Error() == b.Error()
}

func TestVMRejectsInvalidChunk(t *testing.T) {
	c := NewChunk(tape.Checked)
	c.Emit(OpOutput)
	err := NewVM(nil, &bytes.Buffer{}).Run(c)
	if err == nil || !strings.Contains(err.Error(), "terminator") {
		t.Errorf("Run = %v, want verification error", err)
	}
}

func TestVMCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewVM(nil, &bytes.Buffer{}).RunContext(ctx, compile(t, "+[]", tape.Checked))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunContext = %v, want context.Canceled", err)
	}
}

func TestVMTrace(t *testing.T) {
	var trace bytes.Buffer
	m := NewVM(nil, &bytes.Buffer{})
	m.Trace = true
	m.TraceOut = &trace
	if err := m.Run(compile(t, "+", tape.Checked)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(trace.String(), "ADD 1") || !strings.Contains(trace.String(), "HALT") {
		t.Errorf("trace = %q", trace.String())
	}
	if m.Executed() != 2 {
		t.Errorf("Executed() = %d, want 2", m.Executed())
	}
}
