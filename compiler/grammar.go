package compiler

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ---------------------------------------------------------------------------
// Grammar front end: participle parse tree to operator tree
// ---------------------------------------------------------------------------

// grammarLexer splits source into commands, brackets and runs of noise.
// Noise is elided before parsing.
var grammarLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Command", Pattern: `[<>+\-.,]`},
	{Name: "Open", Pattern: `\[`},
	{Name: "Close", Pattern: `\]`},
	{Name: "Noise", Pattern: `[^<>+\-.,\[\]]+`},
})

// ProgramNode is the grammar's root: Program = Item* EOI.
type ProgramNode struct {
	Items []*ItemNode `@@*`
}

// ItemNode is either a Loop or a single Command.
type ItemNode struct {
	Loop    *LoopNode `  @@`
	Command *string   `| @Command`
}

// LoopNode is Loop = "[" Item* "]".
type LoopNode struct {
	Pos   lexer.Position
	Items []*ItemNode `"[" @@* "]"`
}

var grammarParser = participle.MustBuild[ProgramNode](
	participle.Lexer(grammarLexer),
	participle.Elide("Noise"),
)

// ParseTree runs the grammar parser and returns its tree without lowering
// it to operators.
func ParseTree(src []byte) (*ProgramNode, error) {
	tree, err := grammarParser.ParseBytes("", src)
	if err != nil {
		return nil, grammarError(src, err)
	}
	return tree, nil
}

// ParseGrammar parses src with the grammar front end.
func ParseGrammar(src []byte) (*Program, error) {
	tree, err := ParseTree(src)
	if err != nil {
		return nil, err
	}
	ops, err := lowerItems(tree.Items)
	if err != nil {
		return nil, err
	}
	return &Program{Ops: ops}, nil
}

func lowerItems(items []*ItemNode) ([]Op, error) {
	ops := make([]Op, 0, len(items))
	for _, item := range items {
		switch {
		case item.Loop != nil:
			body, err := lowerItems(item.Loop.Items)
			if err != nil {
				return nil, err
			}
			ops = append(ops, &Loop{Body: body})
		case item.Command != nil && len(*item.Command) == 1:
			o, ok := leafOp(TypeOf((*item.Command)[0]))
			if !ok {
				return nil, fmt.Errorf("grammar produced unknown command %q", *item.Command)
			}
			ops = append(ops, o)
		default:
			return nil, errors.New("grammar produced an empty item")
		}
	}
	return ops, nil
}

// grammarError maps a participle failure onto the builder's SyntaxError
// kinds. A stray ']' surfaces as an unexpected Close token; any other
// rejection is a loop that ran into end of input.
func grammarError(src []byte, err error) error {
	var unexpected *participle.UnexpectedTokenError
	if errors.As(err, &unexpected) {
		tok := unexpected.Unexpected
		if !tok.EOF() && tok.Value == "]" {
			return &SyntaxError{Kind: UnmatchedClose, Offset: tok.Pos.Offset}
		}
	}
	if se := CheckBrackets(src); se != nil {
		return se
	}
	return fmt.Errorf("grammar: %w", err)
}
