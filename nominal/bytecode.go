package nominal

import "fmt"

// Opcode is a single byte-code instruction tag. The encoding is a flat
// byte stream, not a fixed-width instruction struct: most opcodes carry
// no operand, a handful carry a 4-byte StringId/address, and PushNumber
// carries a full 8-byte float. Operands are written little-endian via
// encoding/binary, the same convention the teacher's assembler uses for
// its own instruction stream.
type Opcode byte

const (
	Nop Opcode = 0x00

	// Stack / literal push
	PushNumber Opcode = 0x10 // <f64> push Number
	PushString Opcode = 0x11 // <StringId> push InternedString
	Pop        Opcode = 0x12 // discard top of stack
	Dup        Opcode = 0x13 // push a copy of the top of stack, used by && / || short-circuit codegen

	// Scope variable access (plain identifiers)
	Lookup Opcode = 0x20 // <StringId> push value of name, search call stack then closure scope
	Define Opcode = 0x21 // <StringId> pop value, insert into current scope; fail if already bound
	Assign Opcode = 0x22 // <StringId> pop value, overwrite existing binding; fail if unbound

	// Map indexing
	Find   Opcode = 0x30 // pop key, pop map; push map.Find(key); error if absent (dot-read)
	Get    Opcode = 0x31 // pop key, pop map; push map.Get(key), Nil if absent (bracket-read)
	Insert Opcode = 0x32 // pop value, pop key, pop map; map.Insert(key, value); fail if present; push value
	Update Opcode = 0x33 // pop value, pop key, pop map; map.Update(key, value); fail if absent; push value
	Set    Opcode = 0x34 // pop value, pop key, pop map; map.Set(key, value); never fails; push value

	// Arithmetic / comparison / logic (all binary pop two push one,
	// except Neg and Not which pop one push one)
	Add Opcode = 0x40
	Sub Opcode = 0x41
	Mul Opcode = 0x42
	Div Opcode = 0x43
	Neg Opcode = 0x44
	Eq  Opcode = 0x45
	Ne  Opcode = 0x46
	Gt  Opcode = 0x47
	Gte Opcode = 0x48
	Lt  Opcode = 0x49
	Lte Opcode = 0x4A
	Not Opcode = 0x4B

	// Class dispatch
	Classof Opcode = 0x4C // replace top of stack with its dispatch class (spec §4.8)

	// Aggregates and functions
	MakeMap  Opcode = 0x50 // <count u32> pop 2*count values (value,key pairs, reverse order), push new Map
	MakeFunc Opcode = 0x51 // <paramCount u8><StringId...><entry i32> capture scope, push new Function

	// Control flow
	Goto        Opcode = 0x60 // <addr i32> unconditional jump
	JumpIfFalse Opcode = 0x61 // <addr i32> pop value; jump if falsy
	JumpIfTrue  Opcode = 0x62 // <addr i32> pop value; jump if truthy
	Invoke      Opcode = 0x63 // <argc u8> call the Function argc below the top of stack
	Ret         Opcode = 0x64 // pop return value, pop frame (discarding fn + args), push return value
)

var opcodeNames = map[Opcode]string{
	Nop:         "nop",
	PushNumber:  "push_number",
	PushString:  "push_string",
	Pop:         "pop",
	Dup:         "dup",
	Lookup:      "lookup",
	Define:      "define",
	Assign:      "assign",
	Find:        "find",
	Get:         "get",
	Insert:      "insert",
	Update:      "update",
	Set:         "set",
	Add:         "add",
	Sub:         "sub",
	Mul:         "mul",
	Div:         "div",
	Neg:         "neg",
	Eq:          "eq",
	Ne:          "ne",
	Gt:          "gt",
	Gte:         "gte",
	Lt:          "lt",
	Lte:         "lte",
	Not:         "not",
	Classof:     "classof",
	MakeMap:     "make_map",
	MakeFunc:    "function",
	Goto:        "goto",
	JumpIfFalse: "jump_if_false",
	JumpIfTrue:  "jump_if_true",
	Invoke:      "invoke",
	Ret:         "ret",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode(0x%02X)", byte(op))
}

// IsJump reports whether op transfers control unconditionally or
// conditionally to a patched address operand.
func (op Opcode) IsJump() bool {
	return op == Goto || op == JumpIfFalse || op == JumpIfTrue
}

// IsBinaryOperator reports whether op is one of the binary arithmetic or
// comparison opcodes. All of them except Eq and Ne fall back to CLASSOF
// dispatch (spec §4.8) for non-numeric operands; Eq and Ne always use
// Equals.
func (op Opcode) IsBinaryOperator() bool {
	switch op {
	case Add, Sub, Mul, Div, Eq, Ne, Gt, Gte, Lt, Lte:
		return true
	default:
		return false
	}
}
