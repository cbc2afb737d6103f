// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package object

import (
	"testing"

	"github.com/loomlang/loom/loom/value"
)

func TestOpenUpvalueAliasesStack(t *testing.T) {
	stack := []value.Value{value.Number(1), value.Number(2), value.Number(3)}
	u := NewOpenUpvalue(&stack, 1)
	if u.Get().AsNumber() != 2 {
		t.Fatalf("expected 2, got %v", u.Get())
	}
	stack[1] = value.Number(42)
	if u.Get().AsNumber() != 42 {
		t.Fatalf("expected open upvalue to observe stack write, got %v", u.Get())
	}
	u.Set(value.Number(7))
	if stack[1].AsNumber() != 7 {
		t.Fatalf("expected Set to write through to stack, got %v", stack[1])
	}
}

func TestCloseDetachesFromStack(t *testing.T) {
	stack := []value.Value{value.Number(1), value.Number(2)}
	u := NewOpenUpvalue(&stack, 1)
	u.Close()
	if u.IsOpen() {
		t.Fatalf("expected upvalue to be closed")
	}
	stack[1] = value.Number(99)
	if u.Get().AsNumber() != 2 {
		t.Fatalf("expected closed upvalue to retain snapshot 2, got %v", u.Get())
	}
}

func TestOpenUpvaluesFindReusesExisting(t *testing.T) {
	var open OpenUpvalues
	stack := []value.Value{value.Number(1), value.Number(2), value.Number(3)}
	a := open.Find(&stack, 1)
	b := open.Find(&stack, 1)
	if a != b {
		t.Fatalf("expected Find to return the same upvalue for the same index")
	}
	c := open.Find(&stack, 2)
	if a == c {
		t.Fatalf("expected distinct upvalues for distinct indices")
	}
}

func TestOpenUpvaluesCloseAboveLevel(t *testing.T) {
	var open OpenUpvalues
	stack := []value.Value{value.Number(10), value.Number(20), value.Number(30)}
	u0 := open.Find(&stack, 0)
	u1 := open.Find(&stack, 1)
	u2 := open.Find(&stack, 2)

	open.Close(1)

	if u0.IsOpen() != true {
		t.Fatalf("expected index 0 upvalue to remain open")
	}
	if u1.IsOpen() || u2.IsOpen() {
		t.Fatalf("expected indices >= 1 to be closed")
	}
	if open.head != u0 {
		t.Fatalf("expected only the below-level upvalue to remain linked")
	}
}

func TestScriptedClosureTypeName(t *testing.T) {
	proto := &Prototype{NumParams: 0}
	c := NewScriptedClosure(proto, nil, nil)
	if c.TypeName() != "function" {
		t.Fatalf("expected function, got %s", c.TypeName())
	}
}

func TestNativeClosureInvocation(t *testing.T) {
	fn := func(state interface{}, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Number(args[0].AsNumber() * 2)}, nil
	}
	c := NewNativeClosure(fn, nil)
	results, err := c.Fn(nil, []value.Value{value.Number(21)})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].AsNumber() != 42 {
		t.Fatalf("expected 42, got %v", results[0])
	}
}
