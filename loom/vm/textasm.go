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
	"strconv"
	"strings"

	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/value"
)

// Assemble turns a textual mnemonic listing into a Prototype. This is
// the chunk format loomi's CLI and ad-hoc test fixtures use in place
// of a real compiler front end (out of scope per spec.md §1); it is
// deliberately minimal — one instruction per line, directives for the
// handful of Prototype fields a compiler would otherwise fill in, and
// named labels instead of hand-computed jump displacements.
//
// Grammar, one construct per line (blank lines and lines starting with
// ';' are ignored):
//
//	.params N            NumParams
//	.vararg true|false    IsVararg
//	.maxstack N           MaxStackSize
//	.source NAME          Source
//	.const number 3.5      append a number constant
//	.const string foo      append a string constant (no quoting/escapes)
//	.const bool true       append a boolean constant
//	.const nil             append a nil constant
//	label:                define a jump target at the next instruction
//	OP a b c               a 3-register instruction (Move, Add, ...)
//	OP a bx                a wide-operand instruction (LoadK, Closure, ...)
//	OP a label             a jump-class instruction (Jmp, ForLoop, ForPrep)
//
// A register/constant operand written as "K3" resolves to RKConst(3)
// wherever an instruction's B or C field is read as a register-or-
// constant slot.
func Assemble(strs *strtab.Table, src string) (*object.Prototype, error) {
	asm := NewAssembler(0)
	type rawInstr struct {
		mnemonic string
		args     []string
		lineNo   int
	}
	var instrs []rawInstr
	labels := map[string]int{}

	for lineNo, raw := range strings.Split(src, "\n") {
		lineNo++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if err := applyDirective(asm, strs, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			labels[strings.TrimSuffix(line, ":")] = len(instrs)
			continue
		}
		fields := strings.Fields(line)
		instrs = append(instrs, rawInstr{mnemonic: fields[0], args: fields[1:], lineNo: lineNo})
	}

	for pc, ri := range instrs {
		op, ok := opcodeByName(ri.mnemonic)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown opcode %q", ri.lineNo, ri.mnemonic)
		}
		switch {
		case op.IsWideImmediate() && (op == OpJmp || op == OpForLoop || op == OpForPrep):
			if len(ri.args) != 2 {
				return nil, fmt.Errorf("line %d: %s takes a register and a label/offset", ri.lineNo, ri.mnemonic)
			}
			a, err := strconv.Atoi(ri.args[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ri.lineNo, err)
			}
			sbx, err := resolveJumpTarget(ri.args[1], pc, labels)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ri.lineNo, err)
			}
			asm.EmitSBx(op, a, sbx)
		case op.IsWideImmediate():
			if len(ri.args) != 2 {
				return nil, fmt.Errorf("line %d: %s takes a register and a Bx operand", ri.lineNo, ri.mnemonic)
			}
			a, err := strconv.Atoi(ri.args[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ri.lineNo, err)
			}
			bx, err := strconv.Atoi(ri.args[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ri.lineNo, err)
			}
			asm.EmitBx(op, a, uint32(bx))
		default:
			if len(ri.args) != 3 {
				return nil, fmt.Errorf("line %d: %s takes three register/RK operands", ri.lineNo, ri.mnemonic)
			}
			regs := make([]int, 3)
			for i, tok := range ri.args {
				regs[i] = parseRegOrK(tok)
			}
			asm.Emit(op, regs[0], regs[1], regs[2])
		}
	}

	return asm.Build(), nil
}

func resolveJumpTarget(tok string, fromPC int, labels map[string]int) (int, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, nil
	}
	target, ok := labels[tok]
	if !ok {
		return 0, fmt.Errorf("undefined label %q", tok)
	}
	return target - (fromPC + 1), nil
}

// parseRegOrK parses a register operand, recognizing a "K<idx>" prefix
// as a constant-pool reference (RKConst), the textual form of the
// binary encoding's rkConstBit.
func parseRegOrK(tok string) int {
	if strings.HasPrefix(tok, "K") {
		if n, err := strconv.Atoi(tok[1:]); err == nil {
			return RKConst(n)
		}
	}
	n, _ := strconv.Atoi(tok)
	return n
}

func opcodeByName(name string) (Opcode, bool) {
	name = strings.ToUpper(name)
	for op, info := range opcodeTable {
		if info.name == name {
			return Opcode(op), true
		}
	}
	return 0, false
}

func applyDirective(asm *Assembler, strs *strtab.Table, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".params":
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		asm.NumParams = n
	case ".vararg":
		asm.IsVararg = fields[1] == "true"
	case ".maxstack":
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		asm.MaxStackSize = n
	case ".source":
		asm.Source = strings.Join(fields[1:], " ")
	case ".const":
		if len(fields) < 2 {
			return fmt.Errorf(".const requires a type")
		}
		switch fields[1] {
		case "number":
			f, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return err
			}
			asm.Const(value.Number(f))
		case "string":
			asm.Const(value.Obj(strs.NewLStr([]byte(strings.Join(fields[2:], " ")))))
		case "bool":
			asm.Const(value.Bool(fields[2] == "true"))
		case "nil":
			asm.Const(value.Nil)
		default:
			return fmt.Errorf("unknown constant type %q", fields[1])
		}
	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
	return nil
}
