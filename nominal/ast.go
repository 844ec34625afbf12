package nominal

// Node is an AST node. The grammar has exactly the shapes the original
// parser produces: literals, identifiers, map literals, binary/unary
// operators, indexing, sequences, function literals, and invocations.
type Node interface{ astNode() }

// NumberNode is a numeric literal.
type NumberNode struct{ Value float64 }

// StringNode is a string literal, or an identifier used as a map key
// (dot-index keys are rewritten to StringNode by the parser, exactly as
// the original does).
type StringNode struct{ Text string }

// IdentNode is a variable reference or a define/assign target.
type IdentNode struct{ Name string }

// MapAssoc is one key/value pair of a map literal.
type MapAssoc struct {
	Key   Node
	Value Node
}

// MapNode is a map literal: a sequence of associations, each either
// explicit (k -> v, or k := v shorthand) or positionally inferred
// (plain expr gets key Number(i)).
type MapNode struct{ Assocs []MapAssoc }

// BinaryNode applies a binary operator. Op is one of OpDefine, OpAssign,
// OpAdd, OpSub, OpMul, OpDiv, OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
// OpAnd, OpOr, or OpRet.
type BinaryNode struct {
	Op    Operator
	Left  Node
	Right Node
}

// UnaryNode applies OpNeg or OpNot to a single operand.
type UnaryNode struct {
	Op   Operator
	Expr Node
}

// IndexNode reads or is the target of an assignment to expr[key] or
// expr.key. Bracket distinguishes the two: see SPEC_FULL.md's resolution
// of the bracket-vs-dot open question for what each compiles to.
type IndexNode struct {
	Expr    Node
	Key     Node
	Bracket bool
}

// SequenceNode is a comma-separated list of expressions; every member
// but the last is evaluated and discarded.
type SequenceNode struct{ Exprs []Node }

// FunctionNode is a function literal: `[a b | expr, expr]`. Params may
// be empty.
type FunctionNode struct {
	Params []string
	Body   *SequenceNode
}

// InvocationNode calls Expr with Args, parsed from the colon-call form
// `f: a b` — a run of whitespace-separated primary expressions
// following a `:` with no call-site parentheses.
type InvocationNode struct {
	Expr Node
	Args []Node
}

func (*NumberNode) astNode()     {}
func (*StringNode) astNode()     {}
func (*IdentNode) astNode()      {}
func (*MapNode) astNode()        {}
func (*BinaryNode) astNode()     {}
func (*UnaryNode) astNode()      {}
func (*IndexNode) astNode()      {}
func (*SequenceNode) astNode()   {}
func (*FunctionNode) astNode()   {}
func (*InvocationNode) astNode() {}
