package codegen

import (
	"fmt"
	"strings"

	"github.com/chazu/bfc/pkg/tape"
)

// ---------------------------------------------------------------------------
// LLVMBackend: textual LLVM IR
// ---------------------------------------------------------------------------

const (
	boundsMessage = "TapeBoundsExceeded: cursor left the tape\n"
	inputMessage  = "InputExhausted: input operator found no byte to read\n"
)

// LLVMBackend emits a module of textual LLVM IR (opaque pointers). The tape
// is a zero-initialized global, the cursor an i64 index kept in an alloca.
// The result is handed to clang or llc; nothing here links against LLVM.
type LLVMBackend struct {
	unit   Unit
	blocks []*strings.Builder // body text per block, in creation order
	names  []string
	cur    *strings.Builder

	tempCount  int
	labelCount int
	boundsTrap bool // a move may branch to bounds_trap
	inputTrap  bool // an input may branch to input_trap

	out string
}

// NewLLVMBackend creates an LLVM IR backend.
func NewLLVMBackend() *LLVMBackend {
	return &LLVMBackend{}
}

// IR returns the module text once Finish has succeeded.
func (g *LLVMBackend) IR() string {
	return g.out
}

func (g *LLVMBackend) Begin(u Unit) error {
	g.unit = u
	g.blocks = nil
	g.names = nil
	g.tempCount = 0
	g.labelCount = 0
	g.boundsTrap = false
	g.inputTrap = false
	g.out = ""
	g.NewBlock(EntryBlock, "entry")
	g.SetInsertPoint(EntryBlock)

	g.emit("%%cursor = alloca i64")
	g.emit("store i64 0, ptr %%cursor")
	return nil
}

func (g *LLVMBackend) NewBlock(b Block, name string) {
	for len(g.blocks) <= int(b) {
		g.blocks = append(g.blocks, &strings.Builder{})
		g.names = append(g.names, "")
	}
	g.names[b] = name
}

func (g *LLVMBackend) SetInsertPoint(b Block) {
	g.cur = g.blocks[b]
	fmt.Fprintf(g.cur, "%s:\n", g.names[b])
}

func (g *LLVMBackend) emit(format string, args ...any) {
	g.cur.WriteString("  ")
	fmt.Fprintf(g.cur, format, args...)
	g.cur.WriteByte('\n')
}

// label starts an internal block that continues the current one.
func (g *LLVMBackend) label(name string) {
	fmt.Fprintf(g.cur, "%s:\n", name)
}

func (g *LLVMBackend) temp() string {
	g.tempCount++
	return fmt.Sprintf("%%t%d", g.tempCount)
}

func (g *LLVMBackend) freshLabel(prefix string) string {
	g.labelCount++
	return fmt.Sprintf("%s.%d", prefix, g.labelCount)
}

func (g *LLVMBackend) tapeType() string {
	return fmt.Sprintf("[%d x i8]", g.unit.TapeSize)
}

// cellPtr loads the cursor and returns a pointer to the current cell.
func (g *LLVMBackend) cellPtr() string {
	idx := g.temp()
	g.emit("%s = load i64, ptr %%cursor", idx)
	ptr := g.temp()
	g.emit("%s = getelementptr inbounds %s, ptr @tape, i64 0, i64 %s", ptr, g.tapeType(), idx)
	return ptr
}

func (g *LLVMBackend) Move(delta int) {
	size := g.unit.TapeSize
	idx := g.temp()
	g.emit("%s = load i64, ptr %%cursor", idx)
	next := g.temp()
	g.emit("%s = add i64 %s, %d", next, idx, delta)

	switch g.unit.Policy {
	case tape.Wrap:
		rem := g.temp()
		g.emit("%s = srem i64 %s, %d", rem, next, size)
		neg := g.temp()
		g.emit("%s = icmp slt i64 %s, 0", neg, rem)
		adj := g.temp()
		g.emit("%s = add i64 %s, %d", adj, rem, size)
		wrapped := g.temp()
		g.emit("%s = select i1 %s, i64 %s, i64 %s", wrapped, neg, adj, rem)
		next = wrapped
	case tape.Clamp:
		lo := g.temp()
		g.emit("%s = icmp slt i64 %s, 0", lo, next)
		low := g.temp()
		g.emit("%s = select i1 %s, i64 0, i64 %s", low, lo, next)
		hi := g.temp()
		g.emit("%s = icmp sgt i64 %s, %d", hi, low, size-1)
		clamped := g.temp()
		g.emit("%s = select i1 %s, i64 %d, i64 %s", clamped, hi, size-1, low)
		next = clamped
	default:
		// an unsigned compare also catches negative indices
		ok := g.temp()
		g.emit("%s = icmp ult i64 %s, %d", ok, next, size)
		cont := g.freshLabel("move_ok")
		g.emit("br i1 %s, label %%%s, label %%bounds_trap", ok, cont)
		g.label(cont)
		g.boundsTrap = true
	}
	g.emit("store i64 %s, ptr %%cursor", next)
}

func (g *LLVMBackend) Add(delta int) {
	ptr := g.cellPtr()
	val := g.temp()
	g.emit("%s = load i8, ptr %s", val, ptr)
	res := g.temp()
	if delta < 0 {
		g.emit("%s = sub i8 %s, %d", res, val, byte(-delta))
	} else {
		g.emit("%s = add i8 %s, %d", res, val, byte(delta))
	}
	g.emit("store i8 %s, ptr %s", res, ptr)
}

func (g *LLVMBackend) Output() {
	ptr := g.cellPtr()
	val := g.temp()
	g.emit("%s = load i8, ptr %s", val, ptr)
	ext := g.temp()
	g.emit("%s = sext i8 %s to i32", ext, val)
	g.emit("call i32 @%s(i32 %s)", g.unit.Extern(ExternOutput), ext)
}

func (g *LLVMBackend) Input() {
	ch := g.temp()
	g.emit("%s = call i32 @%s()", ch, g.unit.Extern(ExternInput))
	eof := g.temp()
	g.emit("%s = icmp slt i32 %s, 0", eof, ch)
	cont := g.freshLabel("input_ok")
	g.emit("br i1 %s, label %%input_trap, label %%%s", eof, cont)
	g.label(cont)
	g.inputTrap = true

	byteVal := g.temp()
	g.emit("%s = trunc i32 %s to i8", byteVal, ch)
	ptr := g.cellPtr()
	g.emit("store i8 %s, ptr %s", byteVal, ptr)
}

func (g *LLVMBackend) Jump(target Block) {
	g.emit("br label %%%s", g.names[target])
}

func (g *LLVMBackend) BranchNonZero(then, els Block) {
	ptr := g.cellPtr()
	val := g.temp()
	g.emit("%s = load i8, ptr %s", val, ptr)
	nz := g.temp()
	g.emit("%s = icmp ne i8 %s, 0", nz, val)
	g.emit("br i1 %s, label %%%s, label %%%s", nz, g.names[then], g.names[els])
}

func (g *LLVMBackend) Finish() error {
	g.emit("ret i32 0")

	var sb strings.Builder
	name := g.unit.Name
	if name == "" {
		name = "bfc"
	}
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", name)
	fmt.Fprintf(&sb, "source_filename = \"%s\"\n\n", name)
	fmt.Fprintf(&sb, "@tape = internal global %s zeroinitializer\n", g.tapeType())
	if g.boundsTrap {
		writeCString(&sb, "@.bounds_msg", boundsMessage)
	}
	if g.inputTrap {
		writeCString(&sb, "@.input_msg", inputMessage)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "declare i32 @%s(i32)\n", g.unit.Extern(ExternOutput))
	fmt.Fprintf(&sb, "declare i32 @%s()\n", g.unit.Extern(ExternInput))
	if g.boundsTrap || g.inputTrap {
		sb.WriteString("declare i64 @write(i32, ptr, i64)\n")
		sb.WriteString("declare void @exit(i32) noreturn\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "define i32 @%s() {\n", g.unit.Extern(ExternEntry))
	for _, b := range g.blocks {
		sb.WriteString(b.String())
	}
	if g.boundsTrap {
		writeTrap(&sb, "bounds_trap", "@.bounds_msg", len(boundsMessage))
	}
	if g.inputTrap {
		writeTrap(&sb, "input_trap", "@.input_msg", len(inputMessage))
	}
	sb.WriteString("}\n")

	g.out = sb.String()
	return nil
}

func writeCString(sb *strings.Builder, name, s string) {
	fmt.Fprintf(sb, "%s = private unnamed_addr constant [%d x i8] c\"", name, len(s)+1)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f || c == '"' || c == '\\' {
			fmt.Fprintf(sb, "\\%02X", c)
		} else {
			sb.WriteByte(c)
		}
	}
	sb.WriteString("\\00\"\n")
}

// writeTrap emits a block that reports a fatal runtime error on stderr and
// exits with status 1. exit flushes the buffered putchar output first.
func writeTrap(sb *strings.Builder, label, msg string, n int) {
	fmt.Fprintf(sb, "%s:\n", label)
	fmt.Fprintf(sb, "  call i64 @write(i32 2, ptr %s, i64 %d)\n", msg, n)
	sb.WriteString("  call void @exit(i32 1)\n")
	sb.WriteString("  unreachable\n")
}
