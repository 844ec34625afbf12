package nominal

import "fmt"

// Parser turns a token stream into an AST using recursive descent for
// the grammar's fixed shapes (maps, functions, parens) and precedence
// climbing for binary operators, the same split the lexer/parser pair
// this runtime is based on uses.
type Parser struct {
	lex *Lexer
	cur Token
}

// NewParser creates a parser over source and primes the first token.
func NewParser(source string) *Parser {
	p := &Parser{lex: NewLexer(source)}
	p.advance()
	return p
}

func (p *Parser) advance() { p.cur = p.lex.Next() }

func (p *Parser) curIsSymbol(c byte) bool {
	return p.cur.Type == TokSymbol && p.cur.Symbol == c
}

// ParseProgram parses a full source string as a sequence of
// comma-separated expressions and reports an error on trailing input.
func ParseProgram(source string) (*SequenceNode, error) {
	p := NewParser(source)
	seq, err := p.parseExprs()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TokEOI {
		return nil, p.unexpectedTokenError()
	}
	return seq, nil
}

func (p *Parser) unexpectedTokenError() error {
	if p.cur.Type == TokEOI {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("unexpected token %q on line %d", p.cur.Text, p.cur.Line)
}

// parseExprs parses a sequence of expressions separated by ',' or a
// newline (spec §4.6 grammar: "Exprs ← Expr ( ( ',' | newline ) Expr
// )*") into a single SequenceNode.
func (p *Parser) parseExprs() (*SequenceNode, error) {
	var exprs []Node
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if p.curIsSymbol(',') {
			p.advance()
			continue
		}
		if p.cur.SkippedNewline && p.canStartExpr() {
			continue
		}
		break
	}
	return &SequenceNode{Exprs: exprs}, nil
}

// canStartExpr reports whether the current token could begin a new
// PrimaryExpr, used to decide whether a newline crossed since the last
// token is a statement separator or just trailing whitespace before a
// closing bracket/brace/paren or the end of input.
func (p *Parser) canStartExpr() bool {
	switch p.cur.Type {
	case TokNumber, TokString, TokIdent:
		return true
	case TokOperator:
		return p.cur.Op == OpSub || p.cur.Op == OpNot
	case TokSymbol:
		return p.cur.Symbol == '(' || p.cur.Symbol == '{' || p.cur.Symbol == '['
	default:
		return false
	}
}

func (p *Parser) parseExpr() (Node, error) {
	left, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	return p.parseBinExpr(0, left)
}

// parseBinExpr implements precedence climbing: it keeps folding
// right-hand operands into left as long as the next operator's
// precedence is at least minPrec, recursing only when a following
// operator binds tighter than the current one.
func (p *Parser) parseBinExpr(minPrec int, left Node) (Node, error) {
	for {
		if p.cur.Type != TokOperator {
			return left, nil
		}
		op := p.cur.Op
		prec, known := opPrecedence[op]
		if !known || prec < minPrec {
			return left, nil
		}
		p.advance()

		right, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}

		if p.cur.Type == TokOperator {
			if nextPrec, ok := opPrecedence[p.cur.Op]; ok && prec < nextPrec {
				right, err = p.parseBinExpr(prec+1, right)
				if err != nil {
					return nil, err
				}
			}
		}

		if op == OpDefine {
			if !isDefineTarget(left) {
				return nil, fmt.Errorf("the left side of a ':=' expression must be an identifier or index expression")
			}
		}

		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
}

func isDefineTarget(n Node) bool {
	switch n.(type) {
	case *IdentNode, *IndexNode:
		return true
	default:
		return false
	}
}

// parsePrimaryExpr parses a unary-operator expression or falls through
// to parseSecondaryExpr.
func (p *Parser) parsePrimaryExpr() (Node, error) {
	if p.cur.Type == TokOperator {
		op := p.cur.Op
		if op == OpSub {
			op = OpNeg
		}
		if op != OpNeg && op != OpNot {
			return nil, fmt.Errorf("operator is not unary on line %d", p.cur.Line)
		}
		p.advance()
		if p.cur.SkippedWhitespace {
			return nil, fmt.Errorf("unary operator cannot have trailing whitespace on line %d", p.cur.Line)
		}
		expr, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: op, Expr: expr}, nil
	}
	return p.parseSecondaryExpr()
}

// parseSecondaryExpr parses a literal, identifier, paren expression, map,
// or function literal, then chains any directly-adjacent (no
// intervening whitespace) index or invocation suffixes onto it.
func (p *Parser) parseSecondaryExpr() (Node, error) {
	var node Node
	var err error

	switch p.cur.Type {
	case TokSymbol:
		switch p.cur.Symbol {
		case '(':
			node, err = p.parseParenExpr()
		case '{':
			node, err = p.parseMap()
		case '[':
			node, err = p.parseFunction()
		default:
			return nil, p.unexpectedTokenError()
		}
	case TokNumber:
		node = &NumberNode{Value: p.cur.NumberValue()}
		p.advance()
	case TokString, TokIdent:
		node, err = p.parseStringOrIdent()
	default:
		return nil, p.unexpectedTokenError()
	}
	if err != nil {
		return nil, err
	}

	if p.cur.SkippedWhitespace {
		return node, nil
	}

	for {
		switch {
		case p.curIsSymbol('['):
			p.advance()
			key, kerr := p.parseExpr()
			if kerr != nil {
				return nil, kerr
			}
			if !p.curIsSymbol(']') {
				return nil, fmt.Errorf("expected closing ']' on line %d", p.cur.Line)
			}
			p.advance()
			node = &IndexNode{Expr: node, Key: key, Bracket: true}

		case p.curIsSymbol('.'):
			p.advance()
			if p.cur.Type != TokIdent {
				return nil, fmt.Errorf("right side of '.' must be an identifier on line %d", p.cur.Line)
			}
			key := &StringNode{Text: p.cur.Text}
			p.advance()
			node = &IndexNode{Expr: node, Key: key, Bracket: false}

		case p.curIsSymbol(':'):
			p.advance()
			var args []Node
			for {
				if p.cur.Type == TokEOI || p.cur.SkippedNewline {
					break
				}
				saved := p.lex.Save()
				savedTok := p.cur
				arg, aerr := p.parsePrimaryExpr()
				if aerr != nil {
					p.lex.Restore(saved)
					p.cur = savedTok
					break
				}
				args = append(args, arg)
			}
			node = &InvocationNode{Expr: node, Args: args}

		default:
			return node, nil
		}
	}
}

func (p *Parser) parseParenExpr() (Node, error) {
	p.advance() // (
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.curIsSymbol(')') {
		return nil, fmt.Errorf("expected closing ')' on line %d", p.cur.Line)
	}
	p.advance()
	return expr, nil
}

func (p *Parser) parseStringOrIdent() (Node, error) {
	switch p.cur.Type {
	case TokString:
		s := &StringNode{Text: p.cur.Text}
		p.advance()
		return s, nil
	case TokIdent:
		id := &IdentNode{Name: p.cur.Text}
		p.advance()
		return id, nil
	default:
		return nil, fmt.Errorf("expected a string or identifier on line %d", p.cur.Line)
	}
}

// parseMap parses `{ ... }`. Each item becomes an explicit association
// when it is `k -> v` or `k := v` (whose key is stringified from the
// identifier on the left); anything else becomes a positional
// association keyed by the number of positional items before it, matching spec §3's map
// literal rule.
func (p *Parser) parseMap() (Node, error) {
	p.advance() // {
	if p.curIsSymbol('}') {
		p.advance()
		return &MapNode{}, nil
	}

	items, err := p.parseExprs()
	if err != nil {
		return nil, err
	}
	if !p.curIsSymbol('}') {
		return nil, fmt.Errorf("expected closing '}' on line %d", p.cur.Line)
	}
	p.advance()

	assocs := make([]MapAssoc, 0, len(items.Exprs))
	positional := 0
	for _, item := range items.Exprs {
		if bn, ok := item.(*BinaryNode); ok {
			switch bn.Op {
			case OpDefine:
				if ident, ok := bn.Left.(*IdentNode); ok {
					assocs = append(assocs, MapAssoc{Key: &StringNode{Text: ident.Name}, Value: bn.Right})
					continue
				}
			case OpAssoc:
				assocs = append(assocs, MapAssoc{Key: bn.Left, Value: bn.Right})
				continue
			}
		}
		assocs = append(assocs, MapAssoc{Key: &NumberNode{Value: float64(positional)}, Value: item})
		positional++
	}
	return &MapNode{Assocs: assocs}, nil
}

// parseFunction parses `[ params | body ]`. The parameter list is
// optional; it is recognized by speculatively parsing a run of bare
// identifiers up to a `|` and backtracking to reparse the body from
// scratch if that fails, since a body with no parameters can itself
// begin with an identifier.
func (p *Parser) parseFunction() (Node, error) {
	p.advance() // [

	saved := p.lex.Save()
	savedTok := p.cur

	var params []string
	paramsOK := true
	for {
		if p.cur.Type != TokIdent {
			paramsOK = false
			break
		}
		params = append(params, p.cur.Text)
		p.advance()
		if p.curIsSymbol('|') {
			p.advance()
			break
		}
	}
	if !paramsOK {
		p.lex.Restore(saved)
		p.cur = savedTok
		params = nil
	}

	body, err := p.parseExprs()
	if err != nil {
		return nil, err
	}
	if !p.curIsSymbol(']') {
		return nil, fmt.Errorf("expected closing ']' on line %d", p.cur.Line)
	}
	p.advance()

	return &FunctionNode{Params: params, Body: body}, nil
}
