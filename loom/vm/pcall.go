// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/loomlang/loom/loom/value"
)

// controlSignal is the panic payload used as the Go analogue of
// setjmp/longjmp in ldo.c's luaD_throw/luaD_rawrunprotected: raising a
// script-level error, or unwinding to the nearest protected call,
// panics with a *controlSignal instead of returning an error value up
// through every call frame by hand.
type controlSignal struct {
	status Status
	value  value.Value
}

// throw raises a script-level error, unwound by the nearest
// rawRunProtected on the call stack (PCall, or Resume's goroutine
// wrapper if no pcall is active).
func throw(status Status, v value.Value) {
	panic(&controlSignal{status: status, value: v})
}

// throwf raises a host/VM-generated string error on s, interning the
// message through s's owning Global string table.
func (s *State) throwf(status Status, format string, args ...interface{}) {
	msg := newRuntimeError(status, format, args...).Error()
	throw(status, s.NewString(msg))
}

// rawRunProtected executes fn, catching any *controlSignal panic
// raised by throw/throwf (luaD_rawrunprotected's setjmp equivalent).
// A non-controlSignal panic indicates a genuine Go-level bug rather
// than a script-level error and is reported as StatusErrErr instead of
// being allowed to escape to the host.
func (s *State) rawRunProtected(fn func()) (status Status, errVal value.Value) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if cs, ok := r.(*controlSignal); ok {
			status, errVal = cs.status, cs.value
			return
		}
		status, errVal = StatusErrErr, value.Nil
	}()
	fn()
	return StatusOK, value.Nil
}

// PCall invokes fn in protected mode: the call-frame and open-upvalue
// state is rewound to this call's starting point on error, mirroring
// luaD_pcall's save/restore of ci/nCcalls/errfunc around
// luaD_rawrunprotected, followed by luaF_close/unwind_frames on
// failure.
func (s *State) PCall(fn func(*State) ([]value.Value, error)) (Status, []value.Value, value.Value) {
	savedCI := s.ciTop
	savedNCcalls := s.nCcalls
	savedStackLen := len(s.Stack)

	var results []value.Value
	status, errVal := s.rawRunProtected(func() {
		rs, err := fn(s)
		if err != nil {
			throw(StatusErrRun, s.errorValueFromGo(err))
		}
		results = rs
	})

	if status != StatusOK {
		s.openUpvals.Close(savedStackLen)
		s.ciTop = savedCI
		s.CI = s.CI[:savedCI+1]
		s.nCcalls = savedNCcalls
		s.Stack = s.Stack[:savedStackLen]
		return status, nil, errVal
	}
	return StatusOK, results, value.Nil
}

// errorValueFromGo lifts a Go error returned by a native closure into a
// script-visible string Value.
func (s *State) errorValueFromGo(err error) value.Value {
	return s.NewString(err.Error())
}
