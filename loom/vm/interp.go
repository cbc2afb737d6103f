// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"math"

	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/table"
	"github.com/loomlang/loom/loom/value"
)

// Call invokes fn (a scripted or native closure) with args, returning
// its results. It is the single entry point luaD_call/luaD_precall
// collapse into in the reference implementation: dispatch on closure
// kind and run to completion; a scripted closure runs inside a pushed
// CallInfo that is popped afterwards, a native closure is called
// directly without one.
func (s *State) Call(fn value.Value, args []value.Value) ([]value.Value, error) {
	if s.incNCcalls() {
		s.decNCcalls()
		return nil, ErrStackOverflow
	}
	defer s.decNCcalls()

	obj, ok := asObj(fn)
	if !ok {
		s.throwf(StatusErrRun, "attempt to call a %s value", fn.TypeName())
	}

	switch closure := obj.(type) {
	case *object.NativeClosure:
		if !s.G.Whitelist.IsAllowed(closure.Fn) {
			return nil, ErrNotWhitelisted
		}
		return closure.Fn(s, args)
	case *object.ScriptedClosure:
		return s.callScripted(closure, args)
	default:
		s.throwf(StatusErrRun, "attempt to call a %s value", fn.TypeName())
		panic("unreachable")
	}
}

// callScripted pushes a fresh activation record for a scripted closure,
// copies parameters/varargs into place per proto.NumParams/IsVararg,
// and runs the dispatch loop to completion.
func (s *State) callScripted(cl *object.ScriptedClosure, args []value.Value) ([]value.Value, error) {
	base := len(s.Stack)
	proto := cl.Proto

	nfixed := proto.NumParams
	for i := 0; i < nfixed; i++ {
		if i < len(args) {
			s.set(base+i, args[i])
		} else {
			s.set(base+i, value.Nil)
		}
	}
	var varargs []value.Value
	if proto.IsVararg && len(args) > nfixed {
		varargs = append(varargs, args[nfixed:]...)
	}
	s.growStack(proto.MaxStackSize)

	ci := s.pushCI()
	ci.Scripted = cl
	ci.Base = base
	ci.Top = base + proto.MaxStackSize
	ci.Pc = 0

	results, err := s.execute(ci, varargs)
	s.openUpvals.Close(base)
	s.popCI()
	s.Stack = s.Stack[:base]
	return results, err
}

// execute runs the bytecode dispatch loop for the activation on top of
// ci, the direct analogue of luaV_execute's instruction-fetch switch.
func (s *State) execute(ci *CallInfo, varargs []value.Value) ([]value.Value, error) {
	cl := ci.Scripted
	proto := cl.Proto
	base := ci.Base

	reg := func(i int) value.Value { return s.get(base + i) }
	setReg := func(i int, v value.Value) { s.set(base+i, v) }
	rk := func(field int) value.Value {
		if idx, isConst := isConstRef(field); isConst {
			return proto.Constants[idx]
		}
		return reg(field)
	}

	for {
		if s.G.HaltState != 0 {
			if s.G.HaltState == 2 {
				s.throwf(StatusErrRun, "%s", s.G.HaltMessage)
			}
			return nil, nil
		}

		if ci.Pc >= len(proto.Code) {
			return nil, nil
		}
		instr := proto.Code[ci.Pc]
		ci.Pc++
		op := decodeOp(instr)
		a := decodeA(instr)

		switch op {
		case OpMove:
			setReg(a, reg(decodeB(instr)))

		case OpLoadK:
			setReg(a, proto.Constants[decodeBx(instr)])

		case OpLoadBool:
			setReg(a, value.Bool(decodeB(instr) != 0))
			if decodeC(instr) != 0 {
				ci.Pc++
			}

		case OpLoadNil:
			b := decodeB(instr)
			for i := a; i <= b; i++ {
				setReg(i, value.Nil)
			}

		case OpGetUpval:
			setReg(a, cl.Upvals[decodeB(instr)].Get())

		case OpSetUpval:
			cl.Upvals[decodeB(instr)].Set(reg(a))

		case OpGetGlobal:
			key := proto.Constants[decodeBx(instr)]
			setReg(a, s.Globals.Get(key))

		case OpSetGlobal:
			key := proto.Constants[decodeBx(instr)]
			if err := s.Globals.Set(key, reg(a)); err != nil {
				s.throwf(StatusErrRun, "%s", err.Error())
			}

		case OpGetTable:
			setReg(a, s.index(reg(decodeB(instr)), rk(decodeC(instr))))

		case OpSetTable:
			s.newindex(reg(a), rk(decodeB(instr)), rk(decodeC(instr)))

		case OpNewTable:
			setReg(a, value.Obj(table.New(0, 0)))

		case OpSelf:
			obj := reg(decodeB(instr))
			setReg(a+1, obj)
			setReg(a, s.index(obj, rk(decodeC(instr))))

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			if err := s.arith(op, a, rk(decodeB(instr)), rk(decodeC(instr)), setReg); err != nil {
				return nil, err
			}

		case OpUnm:
			v := reg(decodeB(instr))
			n, ok := toNumber(v)
			if !ok {
				s.throwf(StatusErrRun, "attempt to perform arithmetic on a %s value", v.TypeName())
			}
			setReg(a, value.Number(-n))

		case OpNot:
			setReg(a, value.Bool(reg(decodeB(instr)).IsFalsy()))

		case OpLen:
			setReg(a, s.length(reg(decodeB(instr))))

		case OpConcat:
			b, c := decodeB(instr), decodeC(instr)
			setReg(a, s.concatRange(base, b, c))

		case OpJmp:
			ci.Pc += decodeSBx(instr)

		case OpEq:
			if valuesEqual(rk(decodeB(instr)), rk(decodeC(instr))) != (a != 0) {
				ci.Pc++
			}

		case OpLt:
			if s.lessThan(rk(decodeB(instr)), rk(decodeC(instr))) != (a != 0) {
				ci.Pc++
			}

		case OpLe:
			if s.lessEqual(rk(decodeB(instr)), rk(decodeC(instr))) != (a != 0) {
				ci.Pc++
			}

		case OpTest:
			if reg(a).IsFalsy() == (decodeC(instr) != 0) {
				ci.Pc++
			}

		case OpTestSet:
			b := reg(decodeB(instr))
			if b.IsFalsy() == (decodeC(instr) != 0) {
				ci.Pc++
			} else {
				setReg(a, b)
			}

		case OpCall:
			results, err := s.doCall(base, a, decodeB(instr), decodeC(instr), setReg)
			if err != nil {
				return nil, err
			}
			_ = results

		case OpTailCall:
			fn := reg(a)
			nargs := decodeB(instr) - 1
			var args []value.Value
			if nargs < 0 {
				args = s.collectTop(base, a+1)
			} else {
				args = make([]value.Value, nargs)
				for i := 0; i < nargs; i++ {
					args[i] = reg(a + 1 + i)
				}
			}
			ci.TailCalls++
			return s.Call(fn, args)

		case OpReturn:
			b := decodeB(instr)
			if b == 0 {
				return s.collectTop(base, a), nil
			}
			n := b - 1
			out := make([]value.Value, n)
			for i := 0; i < n; i++ {
				out[i] = reg(a + i)
			}
			return out, nil

		case OpForPrep:
			init, ok1 := toNumber(reg(a))
			limit, ok2 := toNumber(reg(a + 1))
			step, ok3 := toNumber(reg(a + 2))
			if !ok1 || !ok2 || !ok3 {
				s.throwf(StatusErrRun, "'for' initial value must be a number")
			}
			setReg(a, value.Number(init-step))
			ci.Pc += decodeSBx(instr)

		case OpForLoop:
			step, _ := toNumber(reg(a + 2))
			idx, _ := toNumber(reg(a))
			idx += step
			limit, _ := toNumber(reg(a + 1))
			if (step > 0 && idx <= limit) || (step < 0 && idx >= limit) {
				setReg(a, value.Number(idx))
				setReg(a+3, value.Number(idx))
				ci.Pc += decodeSBx(instr)
			}

		case OpTForLoop:
			c := decodeC(instr)
			fn := reg(a)
			args := []value.Value{reg(a + 1), reg(a + 2)}
			results, err := s.Call(fn, args)
			if err != nil {
				return nil, err
			}
			for i := 0; i < c; i++ {
				if i < len(results) {
					setReg(a+3+i, results[i])
				} else {
					setReg(a+3+i, value.Nil)
				}
			}
			if results0Nil(results) {
				ci.Pc++ // iterator exhausted: skip the following JMP back to the loop body
			} else {
				setReg(a+2, results[0]) // advance the control variable
				// fall through: the JMP that follows carries control back to the loop body
			}

		case OpSetList:
			b := decodeB(instr)
			c := decodeC(instr)
			tbl, _ := asObj(reg(a))
			t := tbl.(*table.Table)
			n := b
			if n == 0 {
				n = len(s.Stack) - (base + a + 1)
			}
			offset := (c - 1) * fieldsPerFlush
			for i := 1; i <= n; i++ {
				_ = t.Set(value.Number(float64(offset+i)), reg(a+i))
			}

		case OpClose:
			s.openUpvals.Close(base + a)

		case OpClosure:
			setReg(a, s.buildClosure(ci, instr))

		case OpVararg:
			b := decodeB(instr)
			if b == 0 {
				for i, v := range varargs {
					setReg(a+i, v)
				}
			} else {
				for i := 0; i < b-1; i++ {
					if i < len(varargs) {
						setReg(a+i, varargs[i])
					} else {
						setReg(a+i, value.Nil)
					}
				}
			}

		default:
			s.throwf(StatusErrRun, "unimplemented opcode %s", op)
		}
	}
}

func results0Nil(r []value.Value) bool {
	return len(r) == 0 || r[0].IsNil()
}

// collectTop returns every live register from from (inclusive) to the
// current logical stack top, used by RETURN/CALL's B==0 "all results"
// forms where the producing instruction left a variable count of
// values above its base.
func (s *State) collectTop(base, from int) []value.Value {
	top := len(s.Stack)
	if base+from >= top {
		return nil
	}
	out := make([]value.Value, top-(base+from))
	copy(out, s.Stack[base+from:top])
	return out
}

// doCall implements the CALL instruction: gather B-1 arguments (or
// "all up to top" if B==0), invoke, and scatter C-1 results (or leave
// "all results" on the stack starting at A if C==0).
func (s *State) doCall(base, a, b, c int, setReg func(int, value.Value)) ([]value.Value, error) {
	fn := s.get(base + a)
	var args []value.Value
	if b == 0 {
		args = s.collectTop(base, a+1)
	} else {
		args = make([]value.Value, b-1)
		for i := range args {
			args[i] = s.get(base + a + 1 + i)
		}
	}
	results, err := s.Call(fn, args)
	if err != nil {
		return nil, err
	}
	if c == 0 {
		s.Stack = s.Stack[:base+a]
		s.Stack = append(s.Stack, results...)
	} else {
		for i := 0; i < c-1; i++ {
			if i < len(results) {
				setReg(a+i, results[i])
			} else {
				setReg(a+i, value.Nil)
			}
		}
	}
	return results, nil
}

// buildClosure materializes a CLOSURE instruction: the prototype's
// nested-prototype table (carried out of band on Prototype) supplies
// the child Prototype, and the following MOVE/GETUPVAL pseudo-
// instructions (one per upvalue, per lparser.c's convention inherited
// here) describe how to wire each of its upvalues to the parent frame.
func (s *State) buildClosure(ci *CallInfo, instr uint32) value.Value {
	bx := decodeBx(instr)
	proto := ci.Scripted.Proto
	if int(bx) >= len(proto.NestedProtos) {
		s.throwf(StatusErrRun, "invalid nested prototype index")
	}
	child := proto.NestedProtos[bx]
	upvals := make([]*object.Upvalue, len(child.UpvalNames))
	for i := range upvals {
		pseudo := proto.Code[ci.Pc]
		ci.Pc++
		if decodeOp(pseudo) == OpMove {
			upvals[i] = s.openUpvals.Find(&s.Stack, ci.Base+decodeB(pseudo))
		} else { // GETUPVAL: inherit the parent's own upvalue
			upvals[i] = ci.Scripted.Upvals[decodeB(pseudo)]
		}
	}
	closure := object.NewScriptedClosure(child, s.Globals, upvals)
	return value.Obj(closure)
}

// asObj adapts Value.AsObj's single-return, caller-must-check-Kind
// shape to the (value, ok) idiom used throughout this file's
// type-switch-on-object-kind helpers.
func asObj(v value.Value) (value.Collectable, bool) {
	if v.Kind() != value.KObj {
		return nil, false
	}
	return v.AsObj(), true
}

func toNumber(v value.Value) (float64, bool) {
	if v.Kind() == value.KNumber {
		return v.AsNumber(), true
	}
	return 0, false
}

// valuesEqual implements EQ's notion of equality: RawEqual for every
// kind except objects, where two distinct string representations
// (short string vs. rope vs. substring) of the same content must
// still compare equal, so strings are compared by materialized
// content rather than by the Header pointer RawEqual uses for every
// other object kind.
func valuesEqual(a, b value.Value) bool {
	if as, aok := stringBytes(a); aok {
		bs, bok := stringBytes(b)
		return bok && string(as) == string(bs)
	}
	return a.RawEqual(b)
}

func (s *State) lessThan(a, b value.Value) bool {
	if an, ok := toNumber(a); ok {
		if bn, ok2 := toNumber(b); ok2 {
			return an < bn
		}
	}
	as, aok := stringBytes(a)
	bs, bok := stringBytes(b)
	if aok && bok {
		return string(as) < string(bs)
	}
	s.throwf(StatusErrRun, "attempt to compare two %s values", a.TypeName())
	return false
}

func (s *State) lessEqual(a, b value.Value) bool {
	if an, ok := toNumber(a); ok {
		if bn, ok2 := toNumber(b); ok2 {
			return an <= bn
		}
	}
	as, aok := stringBytes(a)
	bs, bok := stringBytes(b)
	if aok && bok {
		return string(as) <= string(bs)
	}
	s.throwf(StatusErrRun, "attempt to compare two %s values", a.TypeName())
	return false
}

func stringBytes(v value.Value) ([]byte, bool) {
	obj, ok := asObj(v)
	if !ok {
		return nil, false
	}
	str, ok := obj.(interface{ Bytes() []byte })
	if !ok {
		return nil, false
	}
	return str.Bytes(), true
}

// fieldsPerFlush mirrors lopcodes.h's LFIELDS_PER_FLUSH: the number of
// array slots a single SETLIST flush covers, so a chunk with more than
// fieldsPerFlush constructor entries splits into several SETLIST
// instructions, each carrying its own flush index in C.
const fieldsPerFlush = 50

// arithMetamethods maps each arithmetic opcode to the metamethod name
// arith falls back to when an operand isn't a number, mirroring
// lvm.c's luaT_gettmbyop table for the arithmetic ops.
var arithMetamethods = map[Opcode]string{
	OpAdd: "__add",
	OpSub: "__sub",
	OpMul: "__mul",
	OpDiv: "__div",
	OpMod: "__mod",
	OpPow: "__pow",
}

// metamethod looks up name on v's metatable, the table-only analogue
// of luaT_gettmbyobj (no other kind in this object model carries a
// metatable).
func (s *State) metamethod(v value.Value, name string) value.Value {
	obj, ok := asObj(v)
	if !ok {
		return value.Nil
	}
	t, ok := obj.(*table.Table)
	if !ok || t.Metatable == nil {
		return value.Nil
	}
	return t.Metatable.Get(s.NewString(name))
}

// arith implements ADD/SUB/MUL/DIV/MOD/POW: numeric if both operands
// are numbers, else try the operator's metamethod on the first operand
// and then the second, else raise, mirroring lvm.c's luaV_arith.
func (s *State) arith(op Opcode, a int, x, y value.Value, setReg func(int, value.Value)) error {
	xn, xok := toNumber(x)
	yn, yok := toNumber(y)
	if xok && yok {
		setReg(a, value.Number(arithCompute(op, xn, yn)))
		return nil
	}

	name := arithMetamethods[op]
	if h := s.metamethod(x, name); !h.IsNil() {
		return s.callArithMeta(a, h, x, y, setReg)
	}
	if h := s.metamethod(y, name); !h.IsNil() {
		return s.callArithMeta(a, h, x, y, setReg)
	}

	bad := x
	if xok {
		bad = y
	}
	s.throwf(StatusErrRun, "attempt to perform arithmetic on a %s value", bad.TypeName())
	return nil
}

func arithCompute(op Opcode, xn, yn float64) float64 {
	switch op {
	case OpAdd:
		return xn + yn
	case OpSub:
		return xn - yn
	case OpMul:
		return xn * yn
	case OpDiv:
		return xn / yn
	case OpMod:
		return xn - math.Floor(xn/yn)*yn
	case OpPow:
		return math.Pow(xn, yn)
	}
	return 0
}

func (s *State) callArithMeta(a int, handler, x, y value.Value, setReg func(int, value.Value)) error {
	results, err := s.Call(handler, []value.Value{x, y})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		setReg(a, value.Nil)
		return nil
	}
	setReg(a, results[0])
	return nil
}

// length implements LEN for tables and strings.
func (s *State) length(v value.Value) value.Value {
	if obj, ok := asObj(v); ok {
		if t, ok := obj.(*table.Table); ok {
			return value.Number(float64(t.Len()))
		}
		if str, ok := obj.(interface{ Len() int }); ok {
			return value.Number(float64(str.Len()))
		}
	}
	s.throwf(StatusErrRun, "attempt to get length of a %s value", v.TypeName())
	return value.Nil
}

// maxTagLoop bounds the __index/__newindex metatable chase, mirroring
// lvm.c's MAXTAGLOOP: a chain of table-valued __index/__newindex
// handlers longer than this is treated as a cycle.
const maxTagLoop = 100

// index implements GETTABLE/SELF's key lookup, chasing a chain of
// table-valued __index metamethods up to maxTagLoop hops (lvm.c's
// luaV_gettable) before raising a cycle error; a function-valued
// __index is called once and its first result returned.
func (s *State) index(obj, key value.Value) value.Value {
	for i := 0; i < maxTagLoop; i++ {
		o, ok := asObj(obj)
		if !ok {
			s.throwf(StatusErrRun, "attempt to index a %s value", obj.TypeName())
		}
		t, ok := o.(*table.Table)
		if !ok {
			s.throwf(StatusErrRun, "attempt to index a %s value", obj.TypeName())
		}
		v := t.Get(key)
		if !v.IsNil() || t.Metatable == nil {
			return v
		}
		idx := t.Metatable.Get(s.NewString("__index"))
		if idx.IsNil() {
			return value.Nil
		}
		if idxObj, ok := asObj(idx); ok {
			if _, isTable := idxObj.(*table.Table); isTable {
				obj = idx
				continue
			}
		}
		results, err := s.Call(idx, []value.Value{obj, key})
		if err != nil || len(results) == 0 {
			return value.Nil
		}
		return results[0]
	}
	s.throwf(StatusErrRun, "loop in gettable")
	return value.Nil
}

// newindex implements SETTABLE, chasing a chain of table-valued
// __newindex metamethods up to maxTagLoop hops analogously to index;
// a function-valued __newindex is called once with (obj, key, v).
func (s *State) newindex(obj, key, v value.Value) {
	for i := 0; i < maxTagLoop; i++ {
		o, ok := asObj(obj)
		if !ok {
			s.throwf(StatusErrRun, "attempt to index a %s value", obj.TypeName())
		}
		t, ok := o.(*table.Table)
		if !ok {
			s.throwf(StatusErrRun, "attempt to index a %s value", obj.TypeName())
		}
		if !t.Get(key).IsNil() || t.Metatable == nil {
			if err := t.Set(key, v); err != nil {
				s.throwf(StatusErrRun, "%s", err.Error())
			}
			return
		}
		ni := t.Metatable.Get(s.NewString("__newindex"))
		if ni.IsNil() {
			if err := t.Set(key, v); err != nil {
				s.throwf(StatusErrRun, "%s", err.Error())
			}
			return
		}
		if niObj, ok := asObj(ni); ok {
			if _, isTable := niObj.(*table.Table); isTable {
				obj = ni
				continue
			}
		}
		_, _ = s.Call(ni, []value.Value{obj, key, v})
		return
	}
	s.throwf(StatusErrRun, "loop in settable")
}

// concatRange implements CONCAT, building a left-leaning rope chain out
// of registers b..c via strtab.Table.Concat, each register appended to
// the rope built from the registers before it.
func (s *State) concatRange(base, b, c int) value.Value {
	if b == c {
		return s.get(base + b)
	}
	left := s.concatSingle(s.get(base + b))
	for i := b + 1; i <= c; i++ {
		right := s.concatSingle(s.get(base + i))
		left = s.G.Strings.Concat(left, right)
	}
	return value.Obj(left)
}

func (s *State) concatSingle(v value.Value) strtab.Str {
	if obj, ok := asObj(v); ok {
		if str, ok := obj.(strtab.Str); ok {
			return str
		}
	}
	s.throwf(StatusErrRun, "attempt to concatenate a %s value", v.TypeName())
	panic("unreachable")
}
