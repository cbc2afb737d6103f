// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/value"
)

// Assembler builds a Prototype instruction-by-instruction. It is not a
// compiler front end — there is no lexer, parser, or name resolution
// here — just the minimal scaffolding tests and tools need to hand-
// assemble bytecode for a known instruction sequence.
type Assembler struct {
	Code         []uint32
	Constants    []value.Value
	NumParams    int
	IsVararg     bool
	MaxStackSize int
	Source       string
	NestedProtos []*object.Prototype
}

// NewAssembler starts an empty Prototype builder with the given
// register-file size.
func NewAssembler(maxStack int) *Assembler {
	return &Assembler{MaxStackSize: maxStack}
}

// Const interns v into the constant pool, returning its index (reused
// if v was already added — RawEqual comparison, good enough for the
// small literal-heavy test programs this is meant for).
func (a *Assembler) Const(v value.Value) int {
	for i, existing := range a.Constants {
		if existing.RawEqual(v) {
			return i
		}
	}
	a.Constants = append(a.Constants, v)
	return len(a.Constants) - 1
}

// Emit appends a 3-register-field instruction and returns its pc.
func (a *Assembler) Emit(op Opcode, regA, regB, regC int) int {
	a.Code = append(a.Code, Encode(op, regA, regB, regC))
	return len(a.Code) - 1
}

// EmitBx appends a wide-unsigned-operand instruction and returns its pc.
func (a *Assembler) EmitBx(op Opcode, regA int, bx uint32) int {
	a.Code = append(a.Code, EncodeBx(op, regA, bx))
	return len(a.Code) - 1
}

// EmitSBx appends a signed-displacement instruction and returns its pc.
func (a *Assembler) EmitSBx(op Opcode, regA, sbx int) int {
	a.Code = append(a.Code, EncodeSBx(op, regA, sbx))
	return len(a.Code) - 1
}

// Patch overwrites the sBx field of a previously emitted jump-class
// instruction, for forward jumps whose target wasn't known at Emit time.
func (a *Assembler) Patch(pc int, sbx int) {
	instr := a.Code[pc]
	a.Code[pc] = EncodeSBx(decodeOp(instr), decodeA(instr), sbx)
}

// Here returns the pc the next Emit call will occupy.
func (a *Assembler) Here() int { return len(a.Code) }

// Build finalizes the Prototype.
func (a *Assembler) Build() *object.Prototype {
	return &object.Prototype{
		Code:         a.Code,
		Constants:    a.Constants,
		NumParams:    a.NumParams,
		IsVararg:     a.IsVararg,
		MaxStackSize: a.MaxStackSize,
		Source:       a.Source,
		NestedProtos: a.NestedProtos,
	}
}
