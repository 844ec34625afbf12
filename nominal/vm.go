package nominal

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Frame is one call-stack entry: either the implicit top-level frame,
// a native call, or a scripted call. fnBase indexes the callee Function
// value itself in the value stack; arguments occupy the argc slots
// directly above it, and stay there for the call's full duration so
// native code can peek them via ArgCount/Arg (spec §4.4, §6).
type Frame struct {
	fn    *Function
	fnBase int
	argc   int

	scope        *Map // nil only for native frames
	closureScope *Map

	returnIP int
}

func (f *Frame) argAt(s *State, i int) Value {
	return s.valueStack[f.fnBase+1+i]
}

// run executes the State's shared chunk from start to end against the
// current global scope, returning the value left on top of the stack,
// or an error if execution latched one. start/end bound only this call;
// the underlying chunk persists across calls (spec §2), so a Function
// entry point recorded by an earlier run remains valid here and in any
// later one.
func (s *State) run(start, end int) (Value, error) {
	s.ip = start
	s.end = end
	s.frames = append(s.frames, &Frame{fnBase: -1, scope: s.globals, returnIP: -1})
	base := len(s.frames) - 1

	err := s.runLoop(base)
	s.frames = s.frames[:base]
	if err != nil {
		return Nil, err
	}
	if len(s.valueStack) == 0 {
		return Nil, nil
	}
	return s.pop(), nil
}

// runLoop steps the dispatch loop, sharing the chunk/ip/frame state with
// whatever pushed the current top frame, until the call stack unwinds
// back to targetDepth or the chunk runs out of instructions. This same
// loop backs both top-level execution and any nested call a native
// handler or class operator dispatch makes back into scripted code.
func (s *State) runLoop(targetDepth int) error {
	for {
		if s.errFlag {
			msg := s.errMsg
			s.errFlag = false
			s.errMsg = ""
			return fmt.Errorf("%s", msg)
		}
		if len(s.frames) <= targetDepth || s.ip >= s.end {
			return nil
		}
		op := Opcode(s.chunk.Code[s.ip])
		s.ip++
		halt, err := s.step(op)
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
	}
}

// callValue invokes fnVal (native or scripted) with args and returns its
// result, driving the dispatch loop itself for a scripted callee. It
// bumps s.end to cover the whole shared chunk first: callValue can run
// outside any active top-level Evaluate (e.g. a host holding a script
// Function value retrieved earlier), and a scripted callee's entry
// point must fall within whatever the loop treats as in-bounds.
func (s *State) callValue(fnVal Value, args []Value) (Value, error) {
	if chunkEnd := len(s.chunk.Code); chunkEnd > s.end {
		s.end = chunkEnd
	}
	depth := len(s.frames)
	s.push(fnVal)
	for _, a := range args {
		s.push(a)
	}
	if s.errFlag {
		return Nil, fmt.Errorf("%s", s.LastError())
	}
	if err := s.invoke(len(args)); err != nil {
		return Nil, err
	}
	if len(s.frames) > depth {
		if err := s.runLoop(depth); err != nil {
			return Nil, err
		}
	}
	if len(s.valueStack) == 0 {
		return Nil, fmt.Errorf("call produced no value")
	}
	return s.pop(), nil
}

// push appends v to the value stack, latching a stack-overflow error
// (spec §7, invariant I6) instead of growing past the configured
// capacity. Every push site in this file pushes as its final act before
// returning to the dispatch loop, which rechecks errFlag before the
// next instruction, so a silently-dropped push here is caught promptly
// rather than corrupting later stack reads.
func (s *State) push(v Value) {
	if len(s.valueStack) >= s.stackCapacity {
		s.SetError("stack overflow (capacity %d)", s.stackCapacity)
		return
	}
	s.valueStack = append(s.valueStack, v)
}

func (s *State) pop() Value {
	v := s.valueStack[len(s.valueStack)-1]
	s.valueStack = s.valueStack[:len(s.valueStack)-1]
	return v
}

func (s *State) readU32() uint32 {
	v := binary.LittleEndian.Uint32(s.chunk.Code[s.ip : s.ip+4])
	s.ip += 4
	return v
}

func (s *State) readI32() int32 { return int32(s.readU32()) }

func (s *State) readF64() float64 {
	v := binary.LittleEndian.Uint64(s.chunk.Code[s.ip : s.ip+8])
	s.ip += 8
	return math.Float64frombits(v)
}

func (s *State) readByte() byte {
	b := s.chunk.Code[s.ip]
	s.ip++
	return b
}

// step executes a single instruction. The bool return reports whether
// execution should halt (used for the top-level Ret case).
func (s *State) step(op Opcode) (bool, error) {
	switch op {
	case Nop:
		return false, nil

	case PushNumber:
		s.push(NumberValue(s.readF64()))
		return false, nil

	case PushString:
		s.push(InternedStringValue(StringId(s.readU32())))
		return false, nil

	case Pop:
		s.pop()
		return false, nil

	case Dup:
		top := s.valueStack[len(s.valueStack)-1]
		s.push(top)
		return false, nil

	case Lookup:
		name := StringId(s.readU32())
		v, ok := s.lookupVar(name)
		if !ok {
			return false, s.runtimeError("undefined variable %q", s.strings.Lookup(name))
		}
		s.push(v)
		return false, nil

	case Define:
		name := StringId(s.readU32())
		v := s.pop()
		scope := s.frames[len(s.frames)-1].scope
		if err := scope.Insert(s, InternedStringValue(name), v); err != nil {
			return false, s.runtimeError("variable %q already exists", s.strings.Lookup(name))
		}
		s.push(v)
		return false, nil

	case Assign:
		name := StringId(s.readU32())
		v := s.pop()
		if !s.assignVar(name, v) {
			return false, s.runtimeError("no variable %q", s.strings.Lookup(name))
		}
		s.push(v)
		return false, nil

	case Find:
		key := s.pop()
		obj := s.pop()
		m, err := s.asMap(obj)
		if err != nil {
			return false, err
		}
		v, ferr := m.Find(s, key)
		if ferr != nil {
			return false, s.runtimeError("no value for key %s", s.describe(key))
		}
		s.push(v)
		return false, nil

	case Get:
		key := s.pop()
		obj := s.pop()
		m, err := s.asMap(obj)
		if err != nil {
			return false, err
		}
		s.push(m.Get(s, key))
		return false, nil

	case Insert:
		v := s.pop()
		key := s.pop()
		obj := s.pop()
		m, err := s.asMap(obj)
		if err != nil {
			return false, err
		}
		if ierr := m.Insert(s, key, v); ierr != nil {
			return false, s.runtimeError("key %s already exists", s.describe(key))
		}
		s.push(v)
		return false, nil

	case Update:
		v := s.pop()
		key := s.pop()
		obj := s.pop()
		m, err := s.asMap(obj)
		if err != nil {
			return false, err
		}
		if uerr := m.Update(s, key, v); uerr != nil {
			return false, s.runtimeError("no value for key %s", s.describe(key))
		}
		s.push(v)
		return false, nil

	case Set:
		v := s.pop()
		key := s.pop()
		obj := s.pop()
		m, err := s.asMap(obj)
		if err != nil {
			return false, err
		}
		m.Set(s, key, v)
		s.push(v)
		return false, nil

	case Add, Sub, Mul, Div, Gt, Gte, Lt, Lte:
		right := s.pop()
		left := s.pop()
		v, err := s.dispatchBinary(op, left, right)
		if err != nil {
			return false, err
		}
		s.push(v)
		return false, nil

	case Eq:
		right := s.pop()
		left := s.pop()
		s.push(BoolValue(s.Equals(left, right)))
		return false, nil

	case Ne:
		right := s.pop()
		left := s.pop()
		s.push(BoolValue(!s.Equals(left, right)))
		return false, nil

	case Neg:
		v := s.pop()
		nv, err := s.dispatchUnary(op, v)
		if err != nil {
			return false, err
		}
		s.push(nv)
		return false, nil

	case Not:
		v := s.pop()
		s.push(BoolValue(!v.Truthy()))
		return false, nil

	case Classof:
		v := s.pop()
		s.push(s.classOf(v))
		return false, nil

	case MakeMap:
		count := int(s.readU32())
		s.makeMap(count)
		return false, nil

	case MakeFunc:
		paramCount := int(s.readByte())
		params := make([]string, paramCount)
		for i := 0; i < paramCount; i++ {
			params[i] = s.strings.Lookup(StringId(s.readU32()))
		}
		entry := int(s.readI32())
		closure := s.frames[len(s.frames)-1].scope
		fn := NewScriptFunction("", entry, params, closure)
		id := s.heap.Alloc(ObjFunction, fn)
		s.push(objectValue(id))
		return false, nil

	case Goto:
		target := s.readI32()
		s.ip = int(target)
		return false, nil

	case JumpIfFalse:
		target := s.readI32()
		v := s.pop()
		if !v.Truthy() {
			s.ip = int(target)
		}
		return false, nil

	case JumpIfTrue:
		target := s.readI32()
		v := s.pop()
		if v.Truthy() {
			s.ip = int(target)
		}
		return false, nil

	case Invoke:
		argc := int(s.readByte())
		return false, s.invoke(argc)

	case Ret:
		v := s.pop()
		return s.doReturn(v)

	default:
		return false, s.runtimeError("unknown opcode 0x%02X", byte(op))
	}
}

// asMapQuiet reports whether v is a live Map without latching an error,
// for call sites that merely want to probe a value's shape.
func (s *State) asMapQuiet(v Value) (*Map, bool) {
	if v.IsObject() && s.heap.IsLive(v.AsObjectId()) && s.heap.Kind(v.AsObjectId()) == ObjMap {
		return s.heap.Data(v.AsObjectId()).(*Map), true
	}
	return nil, false
}

func (s *State) asMap(v Value) (*Map, error) {
	if m, ok := s.asMapQuiet(v); ok {
		return m, nil
	}
	return nil, s.runtimeError("value is not a map")
}

func (s *State) asFunction(v Value) (*Function, bool) {
	if v.IsObject() && s.heap.IsLive(v.AsObjectId()) && s.heap.Kind(v.AsObjectId()) == ObjFunction {
		return s.heap.Data(v.AsObjectId()).(*Function), true
	}
	return nil, false
}

// lookupVar walks the call stack from newest to oldest, checking each
// frame's scope then its one closure scope, per spec §4.4's one-hop
// closure rule.
func (s *State) lookupVar(name StringId) (Value, bool) {
	key := InternedStringValue(name)
	for i := len(s.frames) - 1; i >= 0; i-- {
		fr := s.frames[i]
		if fr.scope != nil {
			if v, err := fr.scope.Find(s, key); err == nil {
				return v, true
			}
		}
		if fr.closureScope != nil {
			if v, err := fr.closureScope.Find(s, key); err == nil {
				return v, true
			}
		}
	}
	return Nil, false
}

// assignVar walks the same chain as lookupVar and updates the first
// scope that already binds name.
func (s *State) assignVar(name StringId, v Value) bool {
	key := InternedStringValue(name)
	for i := len(s.frames) - 1; i >= 0; i-- {
		fr := s.frames[i]
		if fr.scope != nil && fr.scope.Contains(s, key) {
			_ = fr.scope.Update(s, key, v)
			return true
		}
		if fr.closureScope != nil && fr.closureScope.Contains(s, key) {
			_ = fr.closureScope.Update(s, key, v)
			return true
		}
	}
	return false
}

// makeMap pops 2*count values pushed as (key, value) pairs in source
// order and reassembles them in that same order: the VM sees them in
// reverse since they come off a LIFO stack, so each popped pair is
// written directly into its original slot instead of being appended.
func (s *State) makeMap(count int) {
	pairs := make([]MapAssocValue, count)
	for i := count - 1; i >= 0; i-- {
		value := s.pop()
		key := s.pop()
		pairs[i] = MapAssocValue{Key: key, Value: value}
	}
	m := NewMap()
	for _, p := range pairs {
		m.Set(s, p.Key, p.Value)
	}
	id := s.heap.Alloc(ObjMap, m)
	s.push(objectValue(id))
}

// MapAssocValue is an evaluated key/value pair awaiting insertion into a
// freshly built Map.
type MapAssocValue struct {
	Key   Value
	Value Value
}

// invoke dispatches a call: argc values sit on top of the stack with the
// callee Function just beneath them.
func (s *State) invoke(argc int) error {
	if len(s.frames) >= s.callStackCapacity {
		return s.runtimeError("stack overflow (call stack capacity %d)", s.callStackCapacity)
	}
	fnBase := len(s.valueStack) - argc - 1
	if fnBase < 0 {
		return s.runtimeError("invoke: stack underflow")
	}
	fnVal := s.valueStack[fnBase]
	fn, ok := s.asFunction(fnVal)
	if !ok {
		ctor, ok := s.classConstructorQuiet(fnVal)
		if !ok {
			return s.runtimeError("value is not callable")
		}
		s.valueStack[fnBase] = ctor
		return s.invoke(argc)
	}

	if fn.IsNative() {
		frame := &Frame{fn: fn, fnBase: fnBase, argc: argc}
		s.frames = append(s.frames, frame)
		ret, err := fn.Native()(s)
		s.frames = s.frames[:len(s.frames)-1]
		s.valueStack = s.valueStack[:fnBase]
		if err != nil {
			return s.runtimeError("%s", err.Error())
		}
		s.push(ret)
		return nil
	}

	// Too many arguments is an error; too few binds the missing trailing
	// parameters to Nil (spec §4.8 "invocation").
	if argc > fn.ParamCount() {
		return s.runtimeError("too many arguments (expected %d)", fn.ParamCount())
	}

	scope := NewMap()
	for i, name := range fn.ParamNames() {
		v := Nil
		if i < argc {
			v = s.valueStack[fnBase+1+i]
		}
		id := s.strings.Intern(name)
		_ = scope.Insert(s, InternedStringValue(id), v)
	}

	frame := &Frame{
		fn:           fn,
		fnBase:       fnBase,
		argc:         argc,
		scope:        scope,
		closureScope: fn.ClosureScope(),
		returnIP:     s.ip,
	}
	s.frames = append(s.frames, frame)
	s.ip = fn.Entry()
	return nil
}

// doReturn pops the current frame and discards the callee + its
// arguments, resuming the caller with v pushed as the call's result. At
// the outermost (top-level) frame there is nothing to resume into, so
// execution simply halts with v as the program's result.
func (s *State) doReturn(v Value) (bool, error) {
	frame := s.frames[len(s.frames)-1]
	if frame.fn == nil {
		// Top-level `<-`: nothing to return to, stop the program here.
		s.valueStack = append(s.valueStack[:0:0], v)
		return true, nil
	}
	s.frames = s.frames[:len(s.frames)-1]
	s.valueStack = s.valueStack[:frame.fnBase]
	s.ip = frame.returnIP
	s.push(v)
	return false, nil
}

func (s *State) describe(v Value) string {
	if content, ok := s.asStringIfStringy(v); ok {
		return fmt.Sprintf("%q", content)
	}
	if v.IsNumber() {
		return fmt.Sprintf("%g", v.AsNumber())
	}
	return "<value>"
}
