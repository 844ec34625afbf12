package nominal

import (
	"fmt"

	"github.com/rs/zerolog"
)

// State is a self-contained runtime instance: its own StringPool, Heap,
// global scope, value stack, call stack, and latched error slot. Nothing
// is global; a host may run any number of independent States (spec §5,
// §9 "Global state").
type State struct {
	strings *StringPool
	heap    *Heap
	globals *Map

	valueStack []Value
	frames     []*Frame

	stackCapacity     int
	callStackCapacity int

	// chunk is the single bytecode buffer the state's whole lifetime
	// shares (spec §2): every Evaluate/Execute call appends its
	// generated code onto the end of it rather than replacing it, so a
	// Function's entry point recorded in one call stays a valid offset
	// in every later call. ip is the dispatch loop's cursor into chunk;
	// end is the boundary of the code the current run() call owns —
	// the loop halts once ip reaches it (spec §4.8's "ip < end").
	chunk *Chunk
	ip    int
	end   int

	classes *intrinsicClasses

	errFlag bool
	errMsg  string

	log zerolog.Logger
}

type stateConfig struct {
	stackCapacity      int
	callStackCapacity  int
	stringPoolCapacity int
	logger             zerolog.Logger
}

// Option configures a State at construction time. The runtime has no
// persistent configuration surface beyond this (spec §6's host API is
// the minimal one) — these are capacity limits, not a config file.
type Option func(*stateConfig)

// WithStackCapacity sets the value stack's capacity: a push beyond it
// latches a stack overflow error.
func WithStackCapacity(n int) Option {
	return func(c *stateConfig) { c.stackCapacity = n }
}

// WithCallStackCapacity sets the call stack's capacity: a call beyond it
// latches a stack overflow error.
func WithCallStackCapacity(n int) Option {
	return func(c *stateConfig) { c.callStackCapacity = n }
}

// WithStringPoolCapacity sets the fixed capacity of the State's
// StringPool. A capacity of 0 selects the pool's own default.
func WithStringPoolCapacity(n int) Option {
	return func(c *stateConfig) { c.stringPoolCapacity = n }
}

// WithLogger attaches a zerolog.Logger the State uses for lifecycle
// events (opened, script loaded, GC run, error latched). The default is
// a no-op logger, matching the teacher's own opt-in debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *stateConfig) { c.logger = logger }
}

// defaultStackCapacity and defaultCallStackCapacity match invariant I6's
// literal caps (spec §3): the value stack holds at most 128 entries and
// the call stack at most 32 frames before the VM latches a stack
// overflow error instead of growing without bound.
const (
	defaultStackCapacity     = 128
	defaultCallStackCapacity = 32
)

// NewState creates a fresh runtime instance and pre-binds the three
// global identifiers the original source treats as ordinary variables
// rather than keywords (Library/Source/state.c: nom_letvar(state, "nil",
// ...), likewise "true"/"false" — there is no keyword token type).
func NewState(opts ...Option) *State {
	cfg := stateConfig{
		stackCapacity:      defaultStackCapacity,
		callStackCapacity:  defaultCallStackCapacity,
		stringPoolCapacity: defaultStringPoolCapacity,
		logger:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &State{
		strings:           NewStringPool(cfg.stringPoolCapacity),
		heap:              NewHeap(),
		globals:           NewMap(),
		valueStack:        make([]Value, 0, cfg.stackCapacity),
		frames:            make([]*Frame, 0, cfg.callStackCapacity),
		stackCapacity:     cfg.stackCapacity,
		callStackCapacity: cfg.callStackCapacity,
		chunk:             &Chunk{},
		log:               cfg.logger,
	}

	s.LetVar("nil", Nil)
	s.LetVar("true", True)
	s.LetVar("false", False)
	s.initIntrinsicClasses()

	s.log.Debug().Msg("state opened")
	return s
}

// Close releases the State's resources. The Go GC reclaims everything
// once the State is unreferenced, so this only exists to give a host a
// symmetric lifecycle event to log (spec §6's free_state).
func (s *State) Close() {
	s.log.Debug().Msg("state closed")
}

// Execute parses and runs source against this State's global scope,
// discarding the final value (spec §6 execute).
func (s *State) Execute(source string) error {
	_, err := s.Evaluate(source)
	return err
}

// Evaluate parses source and compiles it onto the end of this State's
// shared bytecode buffer, then runs the VM from that prior end to the
// new one (spec §2), returning the value left on top of the stack (spec
// §6 evaluate).
func (s *State) Evaluate(source string) (Value, error) {
	program, err := ParseProgram(source)
	if err != nil {
		s.log.Error().Err(err).Msg("parse failed")
		return Nil, err
	}
	start := len(s.chunk.Code)
	if err := Compile(s.chunk, program, s.strings); err != nil {
		s.log.Error().Err(err).Msg("compile failed")
		return Nil, err
	}
	end := len(s.chunk.Code)
	s.log.Debug().Msg("script loaded")
	v, err := s.run(start, end)
	if err != nil {
		s.log.Error().Err(err).Msg("execution failed")
		return Nil, err
	}
	return v, nil
}

// LetVar defines name in the global scope, overwriting any existing
// binding. Unlike the DEFINE opcode this never fails on redefinition —
// it is the host-facing `let_var` primitive (spec §6), used to install
// builtins and host-exposed values before any script runs.
func (s *State) LetVar(name string, v Value) {
	id := s.strings.Intern(name)
	key := InternedStringValue(id)
	s.globals.Set(s, key, v)
}

// SetVar assigns an existing variable visible from the global scope,
// failing if it is not already bound anywhere (spec §6 set_var).
func (s *State) SetVar(name string, v Value) error {
	id := s.strings.Intern(name)
	if !s.assignVar(id, v) && s.globals.Update(s, InternedStringValue(id), v) != nil {
		return fmt.Errorf("no variable named %q", name)
	}
	return nil
}

// GetVar looks up a global-visible variable by name (spec §6 get_var).
func (s *State) GetVar(name string) (Value, bool) {
	id := s.strings.Intern(name)
	if v, ok := s.lookupVar(id); ok {
		return v, true
	}
	v, err := s.globals.Find(s, InternedStringValue(id))
	return v, err == nil
}

// Call invokes any callable value with args (spec §6 call). It is the
// host-facing entry point native callbacks and cmd/nominal use to
// invoke a script-provided function value.
func (s *State) Call(fn Value, args ...Value) (Value, error) {
	return s.callValue(fn, args)
}

// ArgCount returns the number of arguments passed to the native call
// currently executing. Valid only from inside a NativeFunc.
func (s *State) ArgCount() int {
	return s.frames[len(s.frames)-1].argc
}

// Arg returns the i'th argument (0-based) passed to the native call
// currently executing, or Nil if i is out of range — mirroring the
// script calling convention's "too few args bind to nil" rule (spec
// §4.4).
func (s *State) Arg(i int) Value {
	fr := s.frames[len(s.frames)-1]
	if i < 0 || i >= fr.argc {
		return Nil
	}
	return fr.argAt(s, i)
}

// NewFunction wraps a host callback as a callable Value (spec §6
// new_function).
func (s *State) NewFunction(name string, fn NativeFunc) Value {
	id := s.heap.Alloc(ObjFunction, NewNativeFunction(name, fn))
	return objectValue(id)
}

// NewString allocates a mutable, non-interned heap string (spec §6
// new_string). Script-visible string literals are interned via
// NewInternedString instead; this exists for values a host builds at
// runtime.
func (s *State) NewString(content string) Value {
	id := s.heap.Alloc(ObjString, newHeapString(content))
	return objectValue(id)
}

// NewInternedString interns content into the pool and wraps the
// resulting id as a Value (spec §6 new_interned_string).
func (s *State) NewInternedString(content string) Value {
	return InternedStringValue(s.strings.Intern(content))
}

// ClassOf returns v's CLASSOF dispatch target (spec §4.8): one of the
// eight intrinsic class objects, or a Map's own explicit class.
func (s *State) ClassOf(v Value) Value {
	return s.classOf(v)
}

// MarkAsClass sets v's own CLASSOF to the intrinsic Class class,
// tagging it the way the host-level `class` builtin does (spec §1's
// prelude is an external collaborator; the core only needs to expose
// SetClass, which this wraps).
func (s *State) MarkAsClass(v Value) {
	if m, err := s.asMap(v); err == nil {
		m.SetClass(s.classes.classClass)
	}
}

// SetMapClass assigns class as target's dispatch class, failing
// silently (a no-op) if target is not a Map — the host-level `object`
// builtin uses this to stamp a freshly built instance.
func (s *State) SetMapClass(target, class Value) {
	if m, ok := s.asMapQuiet(target); ok {
		m.SetClass(class)
	}
}

// ClassNew looks up the "new" constructor Function on a class Map, the
// same lookup CLASSOF-based construction uses internally (spec §4.8).
func (s *State) ClassNew(class Value) (Value, bool) {
	return s.classConstructorQuiet(class)
}

// ArgMapEntries returns the i'th argument's entries in insertion order,
// failing if it is not a Map. Used by host-level iteration builtins
// (for_values, for_keys) that need to walk a map without reaching into
// heap internals directly.
func (s *State) ArgMapEntries(i int) ([]MapEntry, bool) {
	m, err := s.asMap(s.Arg(i))
	if err != nil {
		return nil, false
	}
	return m.Entries(), true
}

// NewMapValue allocates a fresh, empty, classless Map on the heap and
// returns it as a Value (spec §6 new_map).
func (s *State) NewMapValue() Value {
	id := s.heap.Alloc(ObjMap, NewMap())
	return objectValue(id)
}

// ToString renders v for host consumption: string content verbatim,
// %g for numbers, "nil"/"true"/"false" for the obvious cases, and a
// bracketed placeholder for maps and functions (spec §6 to_string).
func (s *State) ToString(v Value) string {
	if content, ok := s.asStringIfStringy(v); ok {
		return content
	}
	switch v.Kind() {
	case KindNil:
		return "nil"
	case KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return fmt.Sprintf("%g", v.AsNumber())
	case KindObject:
		if s.heap.IsLive(v.AsObjectId()) {
			switch s.heap.Kind(v.AsObjectId()) {
			case ObjMap:
				return "<map>"
			case ObjFunction:
				return "<function>"
			}
		}
	}
	return "<value>"
}

// Acquire pins an Object-variant value so Collect will not sweep it even
// if unreachable (spec §6 acquire).
func (s *State) Acquire(v Value) {
	if v.IsObject() {
		s.heap.Acquire(v.AsObjectId())
	}
}

// Release unpins a value previously pinned with Acquire (spec §6
// release).
func (s *State) Release(v Value) {
	if v.IsObject() {
		s.heap.Release(v.AsObjectId())
	}
}

// SetError latches the error flag with a formatted message, the same
// primitive builtins use to abort a script (spec §6 set_error).
func (s *State) SetError(format string, args ...any) {
	s.errFlag = true
	s.errMsg = fmt.Sprintf(format, args...)
}

// HeapSlotCount reports how many heap slots have ever been allocated
// (live or swept), for host-side diagnostics like cmd/nominal's debug
// mode.
func (s *State) HeapSlotCount() int { return s.heap.Len() }

// InternedStringCount reports how many distinct strings are interned in
// this State's pool.
func (s *State) InternedStringCount() int { return s.strings.Len() }

// CollectGarbage runs one mark-and-sweep pass and logs the result (spec
// §6 collect_garbage).
func (s *State) CollectGarbage() uint32 {
	freed := s.Collect()
	s.log.Debug().Uint32("freed", freed).Msg("gc run")
	return freed
}
