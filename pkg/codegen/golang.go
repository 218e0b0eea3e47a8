package codegen

import (
	"fmt"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/chazu/bfc/pkg/tape"
)

// ---------------------------------------------------------------------------
// GoBackend: standalone Go program
// ---------------------------------------------------------------------------

// GoBackend emits a self-contained `package main` Go program. Each block
// becomes a label and control flow is plain goto, so the generated main
// mirrors the block graph one to one.
type GoBackend struct {
	unit   Unit
	blocks []*strings.Builder
	names  []string
	cur    *strings.Builder
	indent int

	out []byte
}

// NewGoBackend creates a Go source backend.
func NewGoBackend() *GoBackend {
	return &GoBackend{}
}

// Source returns the formatted program once Finish has succeeded.
func (g *GoBackend) Source() []byte {
	return g.out
}

func (g *GoBackend) Begin(u Unit) error {
	g.unit = u
	g.blocks = nil
	g.names = nil
	g.out = nil
	g.NewBlock(EntryBlock, "entry")
	g.SetInsertPoint(EntryBlock)
	return nil
}

func (g *GoBackend) NewBlock(b Block, name string) {
	for len(g.blocks) <= int(b) {
		g.blocks = append(g.blocks, &strings.Builder{})
		g.names = append(g.names, "")
	}
	g.names[b] = goLabel(name)
}

// goLabel makes a block name a valid Go identifier.
func goLabel(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
}

func (g *GoBackend) SetInsertPoint(b Block) {
	g.cur = g.blocks[b]
	g.indent = 1
	if b != EntryBlock {
		// the entry block is never a jump target and must not carry an unused label
		fmt.Fprintf(g.cur, "%s:\n", g.names[b])
	}
}

func (g *GoBackend) writeLine(format string, args ...any) {
	for i := 0; i < g.indent; i++ {
		g.cur.WriteByte('\t')
	}
	fmt.Fprintf(g.cur, format, args...)
	g.cur.WriteByte('\n')
}

func (g *GoBackend) Move(delta int) {
	switch g.unit.Policy {
	case tape.Wrap:
		g.writeLine("p = ((p+%d)%%tapeSize + tapeSize) %% tapeSize", delta)
	case tape.Clamp:
		g.writeLine("p = min(max(p+%d, 0), tapeSize-1)", delta)
	default:
		g.writeLine("if n := p + %d; n < 0 || n >= tapeSize {", delta)
		g.indent++
		g.writeLine("fatal(boundsMessage)")
		g.indent--
		g.writeLine("}")
		g.writeLine("p += %d", delta)
	}
}

func (g *GoBackend) Add(delta int) {
	if delta < 0 {
		g.writeLine("tape[p] -= %d", byte(-delta))
		return
	}
	g.writeLine("tape[p] += %d", byte(delta))
}

func (g *GoBackend) Output() {
	g.writeLine("out.WriteByte(tape[p])")
}

func (g *GoBackend) Input() {
	g.writeLine("out.Flush()")
	g.writeLine("if c, err := in.ReadByte(); err != nil {")
	g.indent++
	g.writeLine("fatal(inputMessage)")
	g.indent--
	g.writeLine("} else {")
	g.indent++
	g.writeLine("tape[p] = c")
	g.indent--
	g.writeLine("}")
}

func (g *GoBackend) Jump(target Block) {
	g.writeLine("goto %s", g.names[target])
}

func (g *GoBackend) BranchNonZero(then, els Block) {
	g.writeLine("if tape[p] != 0 {")
	g.indent++
	g.writeLine("goto %s", g.names[then])
	g.indent--
	g.writeLine("}")
	g.writeLine("goto %s", g.names[els])
}

func (g *GoBackend) Finish() error {
	g.writeLine("return")

	var sb strings.Builder
	sb.WriteString("// Code generated by bfc. DO NOT EDIT.\n")
	if g.unit.Name != "" {
		fmt.Fprintf(&sb, "// Unit: %s\n", g.unit.Name)
	}
	sb.WriteString("\npackage main\n\n")
	sb.WriteString("import (\n\t\"bufio\"\n\t\"os\"\n)\n\n")
	fmt.Fprintf(&sb, "const tapeSize = %d\n\n", g.unit.TapeSize)
	fmt.Fprintf(&sb, "const (\n\tboundsMessage = %q\n\tinputMessage = %q\n)\n\n", boundsMessage, inputMessage)
	sb.WriteString("var (\n\ttape [tapeSize]byte\n\tp int\n")
	sb.WriteString("\tin = bufio.NewReader(os.Stdin)\n\tout = bufio.NewWriter(os.Stdout)\n)\n\n")
	sb.WriteString("func fatal(msg string) {\n\tout.Flush()\n\tos.Stderr.WriteString(msg)\n\tos.Exit(1)\n}\n\n")
	sb.WriteString("func main() {\n")
	sb.WriteString("\tdefer out.Flush()\n")
	for _, b := range g.blocks {
		sb.WriteString(b.String())
	}
	sb.WriteString("}\n")

	out, err := checkGenerated("main.go", []byte(sb.String()))
	if err != nil {
		return err
	}
	g.out = out
	return nil
}

// checkGenerated formats src and type-checks the result. Either failure is
// an InternalError: valid trees always lower to valid Go.
func checkGenerated(filename string, src []byte) ([]byte, error) {
	formatted, err := imports.Process(filename, src, nil)
	if err != nil {
		return nil, &InternalError{Msg: fmt.Sprintf("generated Go does not parse: %v", err)}
	}
	if errs := NewCodeValidator(filename).Validate(formatted); len(errs) > 0 {
		return nil, &InternalError{Msg: FormatValidationErrors(errs, filename)}
	}
	return formatted, nil
}
