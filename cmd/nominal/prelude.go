package main

import (
	"fmt"

	"nominal/nominal"
)

// installPrelude binds the builtins spec §1 scopes out of the core as
// "external collaborators": print, if, while, for_values, for_keys,
// assert_equal, class, object, and panic. The core only provides the
// mechanism (native functions, CLASSOF, map iteration); the host wires
// the policy on top of it, exactly as spec §1 describes.
func installPrelude(s *nominal.State) {
	s.LetVar("print", s.NewFunction("print", builtinPrint))
	s.LetVar("if", s.NewFunction("if", builtinIf))
	s.LetVar("while", s.NewFunction("while", builtinWhile))
	s.LetVar("for_values", s.NewFunction("for_values", builtinForValues))
	s.LetVar("for_keys", s.NewFunction("for_keys", builtinForKeys))
	s.LetVar("assert_equal", s.NewFunction("assert_equal", builtinAssertEqual))
	s.LetVar("class", s.NewFunction("class", builtinClass))
	s.LetVar("object", s.NewFunction("object", builtinObject))
	s.LetVar("panic", s.NewFunction("panic", builtinPanic))
}

// builtinPrint writes every argument's ToString rendering separated by
// a single space, followed by a newline, and returns Nil.
func builtinPrint(s *nominal.State) (nominal.Value, error) {
	n := s.ArgCount()
	for i := 0; i < n; i++ {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(s.ToString(s.Arg(i)))
	}
	fmt.Println()
	return nominal.Nil, nil
}

// builtinIf takes a condition and one or two zero-argument functions:
// `if: cond thenFn` or `if: cond thenFn elseFn`. At most one branch is
// called and its result returned; with a falsy condition and no elseFn
// nothing is called and the result is nil, mirroring colinhect/nominal-script's
// prelude.
func builtinIf(s *nominal.State) (nominal.Value, error) {
	cond := s.Arg(0)
	thenFn := s.Arg(1)
	if cond.Truthy() {
		return s.Call(thenFn)
	}
	if s.ArgCount() > 2 {
		return s.Call(s.Arg(2))
	}
	return nominal.Nil, nil
}

// builtinWhile repeatedly calls condFn; while its result is truthy it
// calls bodyFn and loops. There is no VM-level looping construct (spec
// §9 "Control flow via builtins") — this is exactly that collaborator.
func builtinWhile(s *nominal.State) (nominal.Value, error) {
	condFn := s.Arg(0)
	bodyFn := s.Arg(1)
	for {
		cond, err := s.Call(condFn)
		if err != nil {
			return nominal.Nil, err
		}
		if !cond.Truthy() {
			return nominal.Nil, nil
		}
		if _, err := s.Call(bodyFn); err != nil {
			return nominal.Nil, err
		}
	}
}

// builtinForValues calls fn(value) for every live entry of a map, in
// insertion order.
func builtinForValues(s *nominal.State) (nominal.Value, error) {
	return iterateMap(s, func(k, v nominal.Value) (nominal.Value, error) {
		return s.Call(s.Arg(1), v)
	})
}

// builtinForKeys calls fn(key) for every live entry of a map, in
// insertion order.
func builtinForKeys(s *nominal.State) (nominal.Value, error) {
	return iterateMap(s, func(k, v nominal.Value) (nominal.Value, error) {
		return s.Call(s.Arg(1), k)
	})
}

func iterateMap(s *nominal.State, visit func(k, v nominal.Value) (nominal.Value, error)) (nominal.Value, error) {
	m, ok := s.ArgMapEntries(0)
	if !ok {
		return nominal.Nil, fmt.Errorf("expected a map as the first argument")
	}
	for _, e := range m {
		if _, err := visit(e.Key, e.Value); err != nil {
			return nominal.Nil, err
		}
	}
	return nominal.Nil, nil
}

// builtinAssertEqual fails the script (via a returned error, which
// latches the State's error flag per spec §7) when its two arguments are
// not Equals.
func builtinAssertEqual(s *nominal.State) (nominal.Value, error) {
	a, b := s.Arg(0), s.Arg(1)
	if !s.Equals(a, b) {
		return nominal.Nil, fmt.Errorf("assert_equal failed: %s != %s", s.ToString(a), s.ToString(b))
	}
	return nominal.True, nil
}

// builtinClass marks a map literal as a class: its CLASSOF becomes the
// intrinsic Class class. Maps adopt it as their dispatch class (for
// operator overloading and methods) when built with `object:`, which
// stamps it through SetMapClass; assigning a "class" key in script code
// is an ordinary map insert and does not change a map's class.
func builtinClass(s *nominal.State) (nominal.Value, error) {
	body := s.Arg(0)
	s.MarkAsClass(body)
	return body, nil
}

// builtinObject allocates a fresh map whose class is the given class
// value, invoking the class's "new" constructor function if it defines
// one (spec §4.8's "class value treated as a constructor" rule, exposed
// here as an explicit builtin rather than implicit call-site dispatch).
func builtinObject(s *nominal.State) (nominal.Value, error) {
	class := s.Arg(0)
	obj := s.NewMapValue()
	s.SetMapClass(obj, class)
	if ctor, ok := s.ClassNew(class); ok {
		args := make([]nominal.Value, 0, s.ArgCount()-1)
		for i := 1; i < s.ArgCount(); i++ {
			args = append(args, s.Arg(i))
		}
		callArgs := append([]nominal.Value{obj}, args...)
		if _, err := s.Call(ctor, callArgs...); err != nil {
			return nominal.Nil, err
		}
	}
	return obj, nil
}

// builtinPanic latches a generic runtime error from script code (spec
// §7 "Runtime — generic panic from scripts").
func builtinPanic(s *nominal.State) (nominal.Value, error) {
	if s.ArgCount() > 0 {
		return nominal.Nil, fmt.Errorf("%s", s.ToString(s.Arg(0)))
	}
	return nominal.Nil, fmt.Errorf("panic")
}
