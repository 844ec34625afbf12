package nominal

// Collect runs one mark-and-sweep pass over the heap. There is no
// automatic trigger (spec §4.2, §5): the host calls this explicitly, or
// a builtin does on its behalf. The root set is the value stack, every
// live call frame's scope and one-hop closure scope, the global scope,
// and the eight intrinsic classes.
func (s *State) Collect() uint32 {
	for _, v := range s.valueStack {
		s.markValue(v)
	}
	for _, fr := range s.frames {
		if fr.scope != nil {
			s.markMapContents(fr.scope)
		}
		if fr.closureScope != nil {
			s.markMapContents(fr.closureScope)
		}
	}
	s.markMapContents(s.globals)
	s.markIntrinsicClasses()
	return s.heap.Sweep()
}

// markIntrinsicClasses roots the eight canonical classes (spec §4.8).
// They live only on s.classes, not in any scope, so without this they
// would be swept the first time a script runs a GC pass after nothing
// else references them.
func (s *State) markIntrinsicClasses() {
	if s.classes == nil {
		return
	}
	for _, v := range []Value{
		s.classes.nilClass, s.classes.numberClass, s.classes.booleanClass, s.classes.stringClass,
		s.classes.mapClass, s.classes.functionClass, s.classes.classClass, s.classes.moduleClass,
	} {
		s.markValue(v)
	}
}

// markValue marks v's heap object (if any) and recurses into whatever
// it references. The heap's own marked bit guards against cycles: once
// an object is marked, revisiting it is a no-op.
func (s *State) markValue(v Value) {
	if !v.IsObject() {
		return
	}
	id := v.AsObjectId()
	if !s.heap.IsLive(id) || s.heap.Marked(id) {
		return
	}
	s.heap.Mark(id)

	switch s.heap.Kind(id) {
	case ObjMap:
		s.markMapContents(s.heap.Data(id).(*Map))
	case ObjFunction:
		fn := s.heap.Data(id).(*Function)
		if fn.ClosureScope() != nil {
			s.markMapContents(fn.ClosureScope())
		}
	case ObjString:
		// A HeapString holds no further references.
	}
}

// markMapContents marks every value reachable from m: its class and
// every entry's key and value. Scope maps (frame locals, closure
// scopes) are never themselves heap objects, so this is called on them
// directly rather than through markValue.
func (s *State) markMapContents(m *Map) {
	if !m.Class().IsNil() {
		s.markValue(m.Class())
	}
	for _, e := range m.Entries() {
		s.markValue(e.Key)
		s.markValue(e.Value)
	}
}
