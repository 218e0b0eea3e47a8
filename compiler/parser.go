package compiler

// ---------------------------------------------------------------------------
// AST builder: token stream to operator tree
// ---------------------------------------------------------------------------

// Build constructs the operator tree for a token stream in a single pass.
//
// At nesting depth zero every command token becomes a leaf operator. A '['
// at depth zero records its position and starts counting nested brackets;
// when the count returns to zero the tokens strictly between the recorded
// '[' and the matching ']' are built recursively into the Loop body.
func Build(tokens Tokens) (*Program, error) {
	ops, err := build(tokens)
	if err != nil {
		return nil, err
	}
	return &Program{Ops: ops}, nil
}

func build(tokens Tokens) ([]Op, error) {
	ops := make([]Op, 0, len(tokens))
	depth := 0
	start := 0
	var opens []int // offsets of unclosed '[' for diagnostics

	for pc, tok := range tokens {
		if depth == 0 {
			switch tok.Type {
			case TokenLoopOpen:
				start = pc
				depth++
				opens = append(opens, tok.Offset)
			case TokenLoopClose:
				return nil, &SyntaxError{Kind: UnmatchedClose, Offset: tok.Offset}
			default:
				if o, ok := leafOp(tok.Type); ok {
					ops = append(ops, o)
				}
			}
			continue
		}

		switch tok.Type {
		case TokenLoopOpen:
			depth++
			opens = append(opens, tok.Offset)
		case TokenLoopClose:
			depth--
			opens = opens[:len(opens)-1]
			if depth == 0 {
				body, err := build(tokens[start+1 : pc])
				if err != nil {
					return nil, err
				}
				ops = append(ops, &Loop{Body: body})
			}
		}
	}

	if depth > 0 {
		return nil, &SyntaxError{Kind: UnterminatedLoop, Offset: opens[len(opens)-1]}
	}
	return ops, nil
}

// Parse lexes and builds src with the built-in lexer.
func Parse(src []byte) (*Program, error) {
	return Build(NewTokenizer(src).Tokens())
}
