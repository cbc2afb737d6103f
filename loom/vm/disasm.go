// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"fmt"
	"strings"

	"github.com/loomlang/loom/loom/object"
)

// Disassemble renders a Prototype's bytecode as one line per
// instruction, in the same register/Bx/sBx operand shape the encoder
// accepts, for tracing and test-failure diagnostics.
func Disassemble(proto *object.Prototype) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; source=%q line=%d params=%d vararg=%v stack=%d\n",
		proto.Source, proto.LineDefined, proto.NumParams, proto.IsVararg, proto.MaxStackSize)
	for pc, instr := range proto.Code {
		op := decodeOp(instr)
		a := decodeA(instr)
		switch op {
		case OpLoadK, OpGetGlobal, OpSetGlobal, OpClosure:
			fmt.Fprintf(&b, "%4d  %-10s A=%d Bx=%d\n", pc, op, a, decodeBx(instr))
		case OpJmp, OpForLoop, OpForPrep:
			fmt.Fprintf(&b, "%4d  %-10s A=%d sBx=%d\n", pc, op, a, decodeSBx(instr))
		default:
			fmt.Fprintf(&b, "%4d  %-10s A=%d B=%d C=%d\n", pc, op, a, decodeB(instr), decodeC(instr))
		}
	}
	return b.String()
}
