// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/value"
	"github.com/loomlang/loom/loom/vm"
)

// State is one coroutine's embedding-facing handle, wrapping a
// vm.State with the host-callable surface spec.md §6 describes:
// calling into scripted code, protected calls with or without an
// error handler, yield/resume, and the raw table/value primitives a
// host needs without going through scripted bytecode.
type State struct {
	inner *vm.State
	rt    *Runtime
}

// Inner exposes the wrapped vm.State for callers that need direct
// access to the dispatch loop (writing a native closure, for
// instance, which receives a *vm.State as its first argument).
func (s *State) Inner() *vm.State { return s.inner }

// Call invokes fn (a scripted or native closure Value) with args and
// returns its results, propagating any runtime error un-recovered —
// the caller is expected to wrap in PCall if it wants to catch it.
func (s *State) Call(fn value.Value, args []value.Value) ([]value.Value, error) {
	return s.inner.Call(fn, args)
}

// PCall runs fn under a protected call: a runtime error or exception
// raised inside fn is caught and returned as a Status/error-value pair
// instead of unwinding past this call, per spec.md §4.3/§7.
func (s *State) PCall(fn func(*State) ([]value.Value, error)) (vm.Status, []value.Value, value.Value) {
	return s.inner.PCall(func(inner *vm.State) ([]value.Value, error) {
		return fn(s)
	})
}

// XPCall is PCall with a host-supplied error handler invoked with the
// caught error value before PCall returns, the Go analogue of
// lua_pcall's message-handler argument — used by hosts that want to
// attach a traceback or translate the error value before it reaches
// their own caller.
func (s *State) XPCall(fn func(*State) ([]value.Value, error), handler func(value.Value) value.Value) (vm.Status, []value.Value, value.Value) {
	status, results, errVal := s.PCall(fn)
	if status != vm.StatusOK && handler != nil {
		errVal = handler(errVal)
	}
	return status, results, errVal
}

// Resume starts or continues this State as a coroutine, per spec.md's
// yield/resume machinery.
func (s *State) Resume(entry vm.Entry, args []value.Value) (vm.Status, []value.Value, value.Value) {
	return s.inner.Resume(entry, args)
}

// Yield suspends the running coroutine, handing values back to its
// resumer, and returns what the next Resume call passes in.
func (s *State) Yield(values []value.Value) []value.Value {
	return s.inner.Yield(values)
}

// NewString interns/builds a string Value through this coroutine's
// Global string table.
func (s *State) NewString(str string) value.Value {
	return s.inner.NewString(str)
}

// GetGlobal reads a variable from this coroutine's global table.
func (s *State) GetGlobal(name string) value.Value {
	return s.inner.Globals.Get(s.NewString(name))
}

// SetGlobal writes a variable into this coroutine's global table.
func (s *State) SetGlobal(name string, v value.Value) error {
	return s.inner.Globals.Set(s.NewString(name), v)
}

// RawGet/RawSet/RawEqual/RawLen below bypass __index/__newindex and
// any future equality metamethod entirely, the host-facing escape
// hatch spec.md §6 requires for code that must not trigger scripted
// callbacks as a side effect of a host-initiated table access.

// RawGet reads t[k] without invoking __index.
func (s *State) RawGet(t value.Value, k value.Value) value.Value {
	tbl, ok := t.AsObj().(rawTable)
	if !ok {
		return value.Nil
	}
	return tbl.Get(k)
}

// RawSet writes t[k] = v without invoking __newindex.
func (s *State) RawSet(t value.Value, k, v value.Value) error {
	tbl, ok := t.AsObj().(rawTable)
	if !ok {
		return vmErrNotATable
	}
	return tbl.Set(k, v)
}

// RawEqual compares a and b by identity/value, the same comparison
// the EQ opcode falls back to for non-string objects (see
// valuesEqual in loom/vm for the content-aware string special case
// this intentionally does not replicate — RawEqual is explicitly the
// "no metamethod, no content coercion" primitive).
func (s *State) RawEqual(a, b value.Value) bool {
	return a.RawEqual(b)
}

// RawLen returns the raw "length" of v: a table's border (Table.Len,
// which may extend past the array part into consecutive hash-part
// integer keys), or a string's byte length, without invoking a __len
// metamethod.
func (s *State) RawLen(v value.Value) int {
	if tbl, ok := v.AsObj().(rawTable); ok {
		return tbl.Len()
	}
	if str, ok := v.AsObj().(strtab.Str); ok {
		return str.Len()
	}
	return 0
}

// Next supports stateless iteration over a table's entries, mirroring
// table.Table.Next: pass value.Nil to start, and the previously
// returned key to continue.
func (s *State) Next(t value.Value, k value.Value) (nextKey, nextVal value.Value, ok bool) {
	tbl, isTable := t.AsObj().(rawTable)
	if !isTable {
		return value.Nil, value.Nil, false
	}
	return tbl.Next(k)
}

// Concat joins vs left to right into a rope-backed string, as the
// CONCAT opcode does, for hosts that need one outside of running
// bytecode. It returns value.Nil if any operand is not a string, where
// CONCAT raises an error, and the empty string for no operands.
func (s *State) Concat(vs ...value.Value) value.Value {
	if len(vs) == 0 {
		return s.NewString("")
	}
	acc, ok := vs[0].AsObj().(strtab.Str)
	if !ok {
		return value.Nil
	}
	for _, v := range vs[1:] {
		next, ok := v.AsObj().(strtab.Str)
		if !ok {
			return value.Nil
		}
		acc = s.rt.Global.Strings.Concat(acc, next)
	}
	return value.Obj(acc)
}

// TypeName reports v's dynamic type name the way the `type()` builtin
// would.
func (s *State) TypeName(v value.Value) string {
	return v.TypeName()
}

// rawTable is the subset of table.Table's method set RawGet/RawSet/
// RawLen/Next need; declared locally so this file doesn't import
// loom/table just to name its concrete type in two struct tags.
type rawTable interface {
	Get(value.Value) value.Value
	Set(value.Value, value.Value) error
	Len() int
	Next(value.Value) (value.Value, value.Value, bool)
}
