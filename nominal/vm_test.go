package nominal

import (
	"fmt"
	"testing"
)

// assert mirrors the teacher's own hand-rolled VM test helper
// (vm/vm_test.go) rather than pulling in testify for this file's
// dispatch-level checks.
func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func evalNumber(t *testing.T, s *State, source string) float64 {
	t.Helper()
	v, err := s.Evaluate(source)
	assert(t, err == nil, "evaluate(%q) failed: %v", source, err)
	assert(t, v.IsNumber(), "evaluate(%q) did not produce a Number, got kind %v", source, v.Kind())
	return v.AsNumber()
}

func TestVMArithmeticPrecedence(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, "2 * 3 + 1")
	assert(t, got == 7, "expected 7, got %v", got)
}

func TestVMDefineThenFetchInSameScope(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, "a := 1, b := 2, a + b")
	assert(t, got == 3, "expected 3, got %v", got)
}

func TestVMRedefineFails(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate("a := 1, a := 2")
	assert(t, err != nil, "expected redefining a bound name to fail")
}

func TestVMUndefinedVariableFails(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate("nonexistent_name")
	assert(t, err != nil, "expected fetching an undefined variable to fail")
}

func TestVMTooFewArgumentsBindNil(t *testing.T) {
	s := NewState()
	v, err := s.Evaluate("f := [ a b | a ], f: 1")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, v.AsNumber() == 1, "expected 1, got %v", v.AsNumber())

	v2, err := s.Evaluate("f2 := [ a b | b ], f2: 1")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, v2.IsNil(), "expected missing second parameter to bind Nil")
}

func TestVMTooManyArgumentsErrors(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate("f := [ a | a ], f: 1 2")
	assert(t, err != nil, "expected too many arguments to error")
}

func TestVMClassofIntrinsics(t *testing.T) {
	s := NewState()
	assert(t, s.ClassOf(Nil) == s.classes.nilClass, "classof(nil) mismatch")
	assert(t, s.ClassOf(NumberValue(1)) == s.classes.numberClass, "classof(number) mismatch")
	assert(t, s.ClassOf(True) == s.classes.booleanClass, "classof(true) mismatch")

	m := s.NewMapValue()
	assert(t, s.ClassOf(m) == s.classes.mapClass, "classof(map) should default to the intrinsic Map class")
}

func TestVMClassofSelfReferential(t *testing.T) {
	s := NewState()
	assert(t, s.ClassOf(s.classes.classClass) == s.classes.classClass, "the Class class's own classof must be itself")
}

// TestVMOperatorClassFallback exercises spec §4.8's arithmetic class
// fallback directly through the host API (the `class`/`object` syntax
// sugar around SetClass lives in cmd/nominal's prelude, outside core
// scope).
func TestVMOperatorClassFallback(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate(`Vec := { add := [ a b | 99 ] }, v := { }`)
	assert(t, err == nil, "unexpected error: %v", err)

	vecClass, ok := s.GetVar("Vec")
	assert(t, ok, "Vec should be bound")
	v, ok := s.GetVar("v")
	assert(t, ok, "v should be bound")
	s.SetMapClass(v, vecClass)

	got := evalNumber(t, s, "v + v")
	assert(t, got == 99, "expected the class's add method to fire, got %v", got)
}

func TestVMArrayLiteralIndexing(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, "{ 2, 3, 4, 5 }[2]")
	assert(t, got == 4, "expected 4, got %v", got)
}

func TestVMFunctionLiteralAndCall(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, "add := [ x y | x + y ], add: 3 4")
	assert(t, got == 7, "expected 7, got %v", got)
}

// installTestIf binds a minimal `if` the way cmd/nominal's prelude does
// (spec §9 "Control flow via builtins"), so core-package tests can
// exercise recursion and branching without depending on the separate
// host binary.
func installTestIf(s *State) {
	s.LetVar("if", s.NewFunction("if", func(s *State) (Value, error) {
		if s.Arg(0).Truthy() {
			return s.Call(s.Arg(1))
		}
		if s.ArgCount() > 2 {
			return s.Call(s.Arg(2))
		}
		return Nil, nil
	}))
}

func TestVMRecursion(t *testing.T) {
	s := NewState()
	installTestIf(s)
	got := evalNumber(t, s, `
		fact := [ n | if: (n == 0) [ 1 ] [ n * (fact: (n - 1)) ] ],
		fact: 5
	`)
	assert(t, got == 120, "expected 120, got %v", got)
}

func TestVMBracketSetNeverFails(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, `m := { }, m.a := 1, m["b"] = 2, m.a + m.b`)
	assert(t, got == 3, "expected 3 (bracket-assign is insert-or-update), got %v", got)
}

func TestVMDotUpdateFailsWithoutPriorInsert(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate(`m := { }, m.a = 1`)
	assert(t, err != nil, "expected dot-assign (UPDATE) to fail when the key was never inserted")
}

func TestVMClosureCapturesEnclosingScope(t *testing.T) {
	s := NewState()
	got := evalNumber(t, s, `
		counter := [
			n := 0,
			[ n = n + 1, n ]
		]: ,
		counter: , counter: , counter:
	`)
	assert(t, got == 3, "expected the third call to return 3, got %v", got)
}

func TestVMGarbageCollectionReclaimsUnreachable(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate(`tmp := { 1, 2, 3 }`)
	assert(t, err == nil, "unexpected error: %v", err)
	before := s.HeapSlotCount()
	_, err = s.Evaluate(`tmp = nil`)
	assert(t, err == nil, "unexpected error: %v", err)
	freed := s.CollectGarbage()
	assert(t, freed >= 1, "expected at least one object freed, got %d (heap had %d slots)", freed, before)
}

// TestVMGarbageCollectionPreservesIntrinsicClasses guards against the
// eight canonical classes (spec §4.8) being swept: they are reachable
// only through State.classes, not through any scope, so a collection
// pass must root them explicitly.
func TestVMGarbageCollectionPreservesIntrinsicClasses(t *testing.T) {
	s := NewState()
	_, err := s.Evaluate(`tmp := { 1, 2, 3 }, tmp = nil`)
	assert(t, err == nil, "unexpected error: %v", err)
	s.CollectGarbage()

	assert(t, s.heap.IsLive(s.classes.numberClass.AsObjectId()), "Number class was swept")
	assert(t, s.heap.IsLive(s.classes.mapClass.AsObjectId()), "Map class was swept")
	assert(t, s.ClassOf(NumberValue(1)) == s.classes.numberClass, "classof(number) broke after GC")
}

func TestVMEvaluateSplitEquivalence(t *testing.T) {
	s1 := NewState()
	v1, err := s1.Evaluate("a := 1\nb := 2\na + b")
	assert(t, err == nil, "unexpected error: %v", err)

	s2 := NewState()
	err = s2.Execute("a := 1")
	assert(t, err == nil, "unexpected error: %v", err)
	err = s2.Execute("b := 2")
	assert(t, err == nil, "unexpected error: %v", err)
	v2, err := s2.Evaluate("a + b")
	assert(t, err == nil, "unexpected error: %v", err)

	assert(t, v1.AsNumber() == v2.AsNumber(), "split evaluation diverged: %v != %v", v1.AsNumber(), v2.AsNumber())
}
