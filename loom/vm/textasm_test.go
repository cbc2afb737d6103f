// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"strings"
	"testing"
)

func TestAssembleArithmeticProgram(t *testing.T) {
	s := NewState(1)
	src := `
.maxstack 3
.const number 2
.const number 3

LOADK 0 0
LOADK 1 1
ADD 2 0 1
RETURN 2 2 0
`
	proto, err := Assemble(s.G.Strings, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	results := runClosure(t, s, proto)
	if len(results) != 1 || results[0].AsNumber() != 5 {
		t.Fatalf("expected [5], got %v", results)
	}
}

func TestAssembleResolvesLabels(t *testing.T) {
	s := NewState(1)
	src := `
.maxstack 5
.const number 1
.const number 5
.const number 0

LOADK 0 0
LOADK 1 1
LOADK 2 0
LOADK 4 2
FORPREP 0 loop
body:
ADD 4 4 3
loop:
FORLOOP 0 body
RETURN 4 2 0
`
	proto, err := Assemble(s.G.Strings, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	results := runClosure(t, s, proto)
	if len(results) != 1 || results[0].AsNumber() != 15 {
		t.Fatalf("expected [15], got %v", results)
	}
}

func TestAssembleUnknownOpcodeErrors(t *testing.T) {
	s := NewState(1)
	_, err := Assemble(s.G.Strings, "BOGUS 0 0 0")
	if err == nil {
		t.Fatalf("expected an error for an unknown opcode")
	}
}

func TestAssembleStringConstant(t *testing.T) {
	s := NewState(1)
	src := `
.maxstack 1
.const string hello
LOADK 0 0
RETURN 0 2 0
`
	proto, err := Assemble(s.G.Strings, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	results := runClosure(t, s, proto)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %v", results)
	}
	str, ok := results[0].AsObj().(interface{ Bytes() []byte })
	if !ok {
		t.Fatalf("expected a string result, got %T", results[0].AsObj())
	}
	if !strings.HasPrefix(string(str.Bytes()), "hello") {
		t.Fatalf("expected hello, got %q", str.Bytes())
	}
}
