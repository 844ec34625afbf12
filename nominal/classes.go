package nominal

// intrinsicClasses holds the eight canonical class Maps CLASSOF resolves
// to for values that do not carry their own explicit class (spec §4.8):
// one per value kind, plus Class and Module (the latter has no runtime
// representation of its own in this core — import/modules are an
// external collaborator per spec §1 — but the class object itself is
// still a valid CLASSOF target for host code that models one).
type intrinsicClasses struct {
	nilClass      Value
	numberClass   Value
	booleanClass  Value
	stringClass   Value
	mapClass      Value
	functionClass Value
	classClass    Value
	moduleClass   Value
}

// newIntrinsicClass allocates a fresh, empty Map on the heap to serve as
// one of the canonical intrinsic classes.
func (s *State) newIntrinsicClass() Value {
	id := s.heap.Alloc(ObjMap, NewMap())
	return objectValue(id)
}

// initIntrinsicClasses builds the eight canonical class objects and
// wires their own CLASSOF to the Class class, which is self-referential
// (spec §4.8: "Class objects themselves have class = the Class class").
func (s *State) initIntrinsicClasses() {
	ic := &intrinsicClasses{
		nilClass:      s.newIntrinsicClass(),
		numberClass:   s.newIntrinsicClass(),
		booleanClass:  s.newIntrinsicClass(),
		stringClass:   s.newIntrinsicClass(),
		mapClass:      s.newIntrinsicClass(),
		functionClass: s.newIntrinsicClass(),
		classClass:    s.newIntrinsicClass(),
		moduleClass:   s.newIntrinsicClass(),
	}
	for _, v := range []Value{
		ic.nilClass, ic.numberClass, ic.booleanClass, ic.stringClass,
		ic.mapClass, ic.functionClass, ic.classClass, ic.moduleClass,
	} {
		m, _ := s.asMap(v)
		m.SetClass(ic.classClass)
	}
	s.classes = ic
}

// classOf returns the CLASSOF dispatch target for v (spec §4.8): the
// fixed intrinsic class for every non-Map kind, a Map's own explicit
// class field when set, and the intrinsic Map class otherwise.
func (s *State) classOf(v Value) Value {
	switch v.Kind() {
	case KindNil:
		return s.classes.nilClass
	case KindNumber:
		return s.classes.numberClass
	case KindBoolean:
		return s.classes.booleanClass
	case KindInternedString:
		return s.classes.stringClass
	case KindObject:
		if !s.heap.IsLive(v.AsObjectId()) {
			return Nil
		}
		switch s.heap.Kind(v.AsObjectId()) {
		case ObjString:
			return s.classes.stringClass
		case ObjFunction:
			return s.classes.functionClass
		case ObjMap:
			m := s.heap.Data(v.AsObjectId()).(*Map)
			if !m.Class().IsNil() {
				return m.Class()
			}
			return s.classes.mapClass
		}
	}
	return Nil
}

// classConstructor resolves v as a class value used as a constructor
// (spec §4.8 "Class value: treated as a constructor — resolve to the
// class's new function, if any, and recurse"). It errors if v is not a
// Map or has no "new" entry; whatever value sits under "new" is returned
// as is.
func (s *State) classConstructor(v Value) (Value, error) {
	if ctor, ok := s.classConstructorQuiet(v); ok {
		return ctor, nil
	}
	return Nil, s.runtimeError("value is not callable")
}

// classConstructorQuiet is classConstructor without latching the error
// flag, for callers (like the host-level `object` builtin) that treat
// "no constructor defined" as an ordinary, expected outcome rather than
// a script error.
func (s *State) classConstructorQuiet(v Value) (Value, bool) {
	m, ok := s.asMapQuiet(v)
	if !ok {
		return Nil, false
	}
	newKey := InternedStringValue(s.strings.Intern("new"))
	ctor, err := m.Find(s, newKey)
	if err != nil {
		return Nil, false
	}
	return ctor, true
}

// operatorSymbols names the map key a class (intrinsic or user-defined)
// must bind a Function under to override a given opcode. ADD/SUB/MUL/DIV use the
// exact names spec §4.8 calls out ("add"/"subtract"/"multiply"/
// "divide"); the comparison and unary-negate keys are this runtime's
// own extension of the same mechanism, since the spec does not name
// them explicitly.
var operatorSymbols = map[Opcode]string{
	Add: "add", Sub: "subtract", Mul: "multiply", Div: "divide",
	Gt: "greater_than", Gte: "greater_than_or_equal", Lt: "less_than", Lte: "less_than_or_equal",
	Neg: "negate",
}

// dispatchBinary implements CLASSOF-based operator dispatch (spec
// §4.8): numeric operands always use primitive math; otherwise the
// left operand's class, if any, is searched for a Function bound under
// the operator's symbol and invoked with (left, right).
func (s *State) dispatchBinary(op Opcode, left, right Value) (Value, error) {
	if left.IsNumber() && right.IsNumber() {
		return primitiveBinary(op, left.AsNumber(), right.AsNumber())
	}

	class := s.classOf(left)
	if class.IsNil() {
		return Nil, s.runtimeError("cannot apply operator %q to non-numeric value", operatorSymbols[op])
	}
	classMap, err := s.asMap(class)
	if err != nil {
		return Nil, s.runtimeError("class is not a map")
	}
	symbol := InternedStringValue(s.strings.Intern(operatorSymbols[op]))
	method, merr := classMap.Find(s, symbol)
	if merr != nil {
		return Nil, s.runtimeError("class does not define operator %q", operatorSymbols[op])
	}
	return s.callValue(method, []Value{left, right})
}

func primitiveBinary(op Opcode, l, r float64) (Value, error) {
	switch op {
	case Add:
		return NumberValue(l + r), nil
	case Sub:
		return NumberValue(l - r), nil
	case Mul:
		return NumberValue(l * r), nil
	case Div:
		return NumberValue(l / r), nil
	case Gt:
		return BoolValue(l > r), nil
	case Gte:
		return BoolValue(l >= r), nil
	case Lt:
		return BoolValue(l < r), nil
	case Lte:
		return BoolValue(l <= r), nil
	default:
		return Nil, nil
	}
}

// dispatchUnary implements the same CLASSOF fallback for Neg (Not is
// always primitive: every value has a truthiness).
func (s *State) dispatchUnary(op Opcode, v Value) (Value, error) {
	if v.IsNumber() {
		if op == Neg {
			return NumberValue(-v.AsNumber()), nil
		}
	}
	class := s.classOf(v)
	if class.IsNil() {
		return Nil, s.runtimeError("cannot apply unary operator %q to non-numeric value", operatorSymbols[op])
	}
	classMap, err := s.asMap(class)
	if err != nil {
		return Nil, s.runtimeError("class is not a map")
	}
	symbol := InternedStringValue(s.strings.Intern(operatorSymbols[op]))
	method, merr := classMap.Find(s, symbol)
	if merr != nil {
		return Nil, s.runtimeError("class does not define operator %q", operatorSymbols[op])
	}
	return s.callValue(method, []Value{v})
}
