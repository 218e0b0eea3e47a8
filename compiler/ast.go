package compiler

import "strings"

// ---------------------------------------------------------------------------
// AST: operator tree for the tape language
// ---------------------------------------------------------------------------

// Op is the interface implemented by all operator nodes. The set is closed:
// only the types in this file implement it.
type Op interface {
	op() // marker method
}

// MoveRight moves the cursor one cell to the right (>).
type MoveRight struct{}

// MoveLeft moves the cursor one cell to the left (<).
type MoveLeft struct{}

// Increment adds one to the current cell, wrapping at 256 (+).
type Increment struct{}

// Decrement subtracts one from the current cell, wrapping at 0 (-).
type Decrement struct{}

// Output writes the current cell to the output sink (.).
type Output struct{}

// Input reads one byte from the input sink into the current cell (,).
type Input struct{}

// Loop re-runs Body while the current cell is non-zero, testing before each
// iteration. Body is owned exclusively by the loop.
type Loop struct {
	Body []Op
}

func (MoveRight) op() {}
func (MoveLeft) op()  {}
func (Increment) op() {}
func (Decrement) op() {}
func (Output) op()    {}
func (Input) op()     {}
func (*Loop) op()     {}

// Program is the root operator sequence.
type Program struct {
	Ops []Op
}

// NewProgram wraps an operator sequence.
func NewProgram(ops ...Op) *Program {
	return &Program{Ops: ops}
}

// opByte maps the leaf operators back to their command bytes.
func opByte(o Op) (byte, bool) {
	switch o.(type) {
	case MoveRight:
		return '>', true
	case MoveLeft:
		return '<', true
	case Increment:
		return '+', true
	case Decrement:
		return '-', true
	case Output:
		return '.', true
	case Input:
		return ',', true
	}
	return 0, false
}

// leafOp returns the leaf operator for a command token type.
func leafOp(t TokenType) (Op, bool) {
	switch t {
	case TokenMoveRight:
		return MoveRight{}, true
	case TokenMoveLeft:
		return MoveLeft{}, true
	case TokenIncrement:
		return Increment{}, true
	case TokenDecrement:
		return Decrement{}, true
	case TokenOutput:
		return Output{}, true
	case TokenInput:
		return Input{}, true
	}
	return nil, false
}

// String renders canonical source for the program. NoOp bytes from the
// original source are not part of the tree and are not reproduced.
func (p *Program) String() string {
	var sb strings.Builder
	writeOps(&sb, p.Ops)
	return sb.String()
}

func writeOps(sb *strings.Builder, ops []Op) {
	for _, o := range ops {
		if l, ok := o.(*Loop); ok {
			sb.WriteByte('[')
			writeOps(sb, l.Body)
			sb.WriteByte(']')
			continue
		}
		if b, ok := opByte(o); ok {
			sb.WriteByte(b)
		}
	}
}

// Len returns the total number of operators in the tree, loops included.
func (p *Program) Len() int {
	n := 0
	Walk(p.Ops, func(Op, int) { n++ })
	return n
}

// Depth returns the maximum Loop nesting depth of the program.
func (p *Program) Depth() int {
	deepest := 0
	Walk(p.Ops, func(o Op, depth int) {
		if _, ok := o.(*Loop); ok && depth+1 > deepest {
			deepest = depth + 1
		}
	})
	return deepest
}

// Walk visits every operator in pre-order. depth is the number of loops
// enclosing the visited operator.
func Walk(ops []Op, fn func(o Op, depth int)) {
	walk(ops, 0, fn)
}

func walk(ops []Op, depth int, fn func(Op, int)) {
	for _, o := range ops {
		fn(o, depth)
		if l, ok := o.(*Loop); ok {
			walk(l.Body, depth+1, fn)
		}
	}
}

// Equal reports whether two programs are structurally identical.
func Equal(a, b *Program) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equalOps(a.Ops, b.Ops)
}

func equalOps(a, b []Op) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		la, aLoop := a[i].(*Loop)
		lb, bLoop := b[i].(*Loop)
		if aLoop != bLoop {
			return false
		}
		if aLoop {
			if !equalOps(la.Body, lb.Body) {
				return false
			}
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
