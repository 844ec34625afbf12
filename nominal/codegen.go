package nominal

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Chunk is a compiled, flat bytecode buffer ready for the VM's dispatch
// loop.
type Chunk struct {
	Code []byte
}

// codeGen walks an AST and appends instructions onto chunk, the State's
// single persistent bytecode buffer (spec §2: "the code generator
// appends to the state's bytecode buffer"). It interns every identifier
// and string literal it encounters into the shared StringPool as it
// goes, the same way the teacher's assembler resolves labels during a
// single forward pass.
type codeGen struct {
	chunk   *Chunk
	strings *StringPool
}

// Compile appends program's bytecode onto the end of chunk and returns
// an error if codegen fails partway through. Because chunk is shared
// and never reset between calls, every offset this pass emits — in
// particular a FUNCTION opcode's entry point — is an absolute position
// in the buffer that stays valid for the State's whole lifetime, not
// just for this one compile.
func Compile(chunk *Chunk, program *SequenceNode, pool *StringPool) error {
	g := &codeGen{chunk: chunk, strings: pool}
	return g.genSequence(program)
}

func (g *codeGen) emitByte(op Opcode) {
	g.chunk.Code = append(g.chunk.Code, byte(op))
}

func (g *codeGen) emitRaw(b byte) {
	g.chunk.Code = append(g.chunk.Code, b)
}

func (g *codeGen) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	g.chunk.Code = append(g.chunk.Code, buf[:]...)
}

func (g *codeGen) emitI32(v int32) { g.emitU32(uint32(v)) }

func (g *codeGen) emitF64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	g.chunk.Code = append(g.chunk.Code, buf[:]...)
}

func (g *codeGen) emitStringId(id StringId) { g.emitU32(uint32(id)) }

// emitJumpPlaceholder emits op followed by a 4-byte placeholder address
// and returns the offset of that placeholder, to be patched once the
// jump target is known.
func (g *codeGen) emitJumpPlaceholder(op Opcode) int {
	g.emitByte(op)
	pos := len(g.chunk.Code)
	g.emitI32(0)
	return pos
}

func (g *codeGen) patchJump(pos int) {
	binary.LittleEndian.PutUint32(g.chunk.Code[pos:pos+4], uint32(len(g.chunk.Code)))
}

func (g *codeGen) here() int32 { return int32(len(g.chunk.Code)) }

func (g *codeGen) gen(node Node) error {
	switch n := node.(type) {
	case *NumberNode:
		g.emitByte(PushNumber)
		g.emitF64(n.Value)
		return nil

	case *StringNode:
		id := g.strings.Intern(n.Text)
		g.emitByte(PushString)
		g.emitStringId(id)
		return nil

	case *IdentNode:
		id := g.strings.Intern(n.Name)
		g.emitByte(Lookup)
		g.emitStringId(id)
		return nil

	case *MapNode:
		return g.genMap(n)

	case *BinaryNode:
		return g.genBinary(n)

	case *UnaryNode:
		if err := g.gen(n.Expr); err != nil {
			return err
		}
		switch n.Op {
		case OpNeg:
			g.emitByte(Neg)
		case OpNot:
			g.emitByte(Not)
		default:
			return fmt.Errorf("operator is not unary")
		}
		return nil

	case *IndexNode:
		if err := g.gen(n.Expr); err != nil {
			return err
		}
		if err := g.gen(n.Key); err != nil {
			return err
		}
		if n.Bracket {
			g.emitByte(Get)
		} else {
			g.emitByte(Find)
		}
		return nil

	case *SequenceNode:
		return g.genSequence(n)

	case *FunctionNode:
		return g.genFunction(n)

	case *InvocationNode:
		if err := g.gen(n.Expr); err != nil {
			return err
		}
		for _, arg := range n.Args {
			if err := g.gen(arg); err != nil {
				return err
			}
		}
		if len(n.Args) > 255 {
			return fmt.Errorf("too many arguments in invocation")
		}
		g.emitByte(Invoke)
		g.emitRaw(byte(len(n.Args)))
		return nil

	default:
		return fmt.Errorf("codegen: unhandled node %T", node)
	}
}

func (g *codeGen) genSequence(seq *SequenceNode) error {
	for i, expr := range seq.Exprs {
		if err := g.gen(expr); err != nil {
			return err
		}
		if i != len(seq.Exprs)-1 {
			g.emitByte(Pop)
		}
	}
	return nil
}

// genMap pushes each association's key then value in source order; the
// VM's MakeMap pops them in reverse and reassembles forward order so
// that positional (array) keys land back in the right slots.
func (g *codeGen) genMap(n *MapNode) error {
	for _, assoc := range n.Assocs {
		if err := g.gen(assoc.Key); err != nil {
			return err
		}
		if err := g.gen(assoc.Value); err != nil {
			return err
		}
	}
	g.emitByte(MakeMap)
	g.emitU32(uint32(len(n.Assocs)))
	return nil
}

func (g *codeGen) genBinary(n *BinaryNode) error {
	switch n.Op {
	case OpDefine:
		return g.genAssignLike(n, true)
	case OpAssign:
		return g.genAssignLike(n, false)
	case OpAnd:
		return g.genShortCircuit(n, JumpIfFalse)
	case OpOr:
		return g.genShortCircuit(n, JumpIfTrue)
	case OpRet:
		if err := g.gen(n.Right); err != nil {
			return err
		}
		g.emitByte(Ret)
		return nil
	case OpAssoc:
		// Outside of a map literal (where the parser already consumes
		// "->" items itself) a standalone association expression builds
		// the single-pair map it describes.
		if err := g.gen(n.Left); err != nil {
			return err
		}
		if err := g.gen(n.Right); err != nil {
			return err
		}
		g.emitByte(MakeMap)
		g.emitU32(1)
		return nil
	default:
		if err := g.gen(n.Left); err != nil {
			return err
		}
		if err := g.gen(n.Right); err != nil {
			return err
		}
		g.emitByte(binaryOpcodes[n.Op])
		return nil
	}
}

var binaryOpcodes = map[Operator]Opcode{
	OpAdd: Add, OpSub: Sub, OpMul: Mul, OpDiv: Div,
	OpEq: Eq, OpNe: Ne, OpGt: Gt, OpGte: Gte, OpLt: Lt, OpLte: Lte,
}

// genAssignLike compiles `:=` and `=`. Per the bracket-vs-dot resolution
// (see SPEC_FULL.md): `:=` always inserts regardless of bracket/dot;
// `=` updates through a dot target (fails if absent) or sets through a
// bracket target (never fails).
func (g *codeGen) genAssignLike(n *BinaryNode, isDefine bool) error {
	switch target := n.Left.(type) {
	case *IdentNode:
		if err := g.gen(n.Right); err != nil {
			return err
		}
		id := g.strings.Intern(target.Name)
		if isDefine {
			g.emitByte(Define)
		} else {
			g.emitByte(Assign)
		}
		g.emitStringId(id)
		return nil

	case *IndexNode:
		if err := g.gen(target.Expr); err != nil {
			return err
		}
		if err := g.gen(target.Key); err != nil {
			return err
		}
		if err := g.gen(n.Right); err != nil {
			return err
		}
		switch {
		case isDefine:
			g.emitByte(Insert)
		case target.Bracket:
			g.emitByte(Set)
		default:
			g.emitByte(Update)
		}
		return nil

	default:
		return fmt.Errorf("invalid assignment target")
	}
}

// genShortCircuit compiles && (testOp JumpIfFalse) and || (testOp
// JumpIfTrue): evaluate the left side, duplicate it, and test the
// duplicate; if the test decides the result early, the original
// duplicate is left as the result and the right side is skipped.
func (g *codeGen) genShortCircuit(n *BinaryNode, testOp Opcode) error {
	if err := g.gen(n.Left); err != nil {
		return err
	}
	g.emitByte(Dup)
	skip := g.emitJumpPlaceholder(testOp)
	g.emitByte(Pop)
	if err := g.gen(n.Right); err != nil {
		return err
	}
	g.patchJump(skip)
	return nil
}

// genFunction emits a GOTO prelude that skips over the inline function
// body at definition time, followed by the Function opcode itself,
// which is what actually captures the enclosing scope and pushes the
// callable value — the body is only ever reached via Invoke.
func (g *codeGen) genFunction(n *FunctionNode) error {
	skip := g.emitJumpPlaceholder(Goto)
	entry := g.here()

	if err := g.genSequence(n.Body); err != nil {
		return err
	}
	g.emitByte(Ret)

	g.patchJump(skip)

	if len(n.Params) > 16 {
		return fmt.Errorf("function declares too many parameters (max 16)")
	}
	g.emitByte(MakeFunc)
	g.emitRaw(byte(len(n.Params)))
	for _, p := range n.Params {
		g.emitStringId(g.strings.Intern(p))
	}
	g.emitI32(entry)
	return nil
}
