// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/loomlang/loom/loom/value"

// coroutineMsg is what a coroutine's driving goroutine sends back to
// its Resume caller: either a yielded value set (StatusYield), a
// normal return (StatusOK), or an error escaping the coroutine body
// (StatusErrRun).
type coroutineMsg struct {
	status Status
	values []value.Value
	err    value.Value
}

// Entry is the body a coroutine runs: the reference implementation
// resumes a suspended luaV_execute stack frame directly, but Go gives
// a goroutine a real, independently-suspendable call stack, so the
// entry point is simply an ordinary function that may call s.Yield
// from arbitrarily deep within it. This is a deliberate departure from
// ldo.c's f_continue/luaD_poscall continuation-reentry machinery: Go
// does not need it, because blocking inside a goroutine already
// suspends the whole call chain without unwinding it.
type Entry func(s *State, args []value.Value) ([]value.Value, error)

// Resume starts (on first call) or continues (on every subsequent
// call) a coroutine, the Go equivalent of lua_resume. The returned
// status is StatusYield if the coroutine called s.Yield, StatusOK if
// it returned normally, or StatusErrRun if its body returned an error
// or raised a script-level error via throw.
func (s *State) Resume(entry Entry, args []value.Value) (Status, []value.Value, value.Value) {
	if s.finished {
		return StatusErrRun, nil, s.NewString(ErrDeadCoroutine.Error())
	}
	if s.resumeRunning {
		return StatusErrRun, nil, s.NewString(ErrRunningCoroutine.Error())
	}

	if !s.started {
		s.started = true
		s.resumeCh = make(chan []value.Value)
		s.yieldCh = make(chan coroutineMsg)
		go s.run(entry, args)
	} else {
		s.resumeCh <- args
	}

	s.resumeRunning = true
	msg := <-s.yieldCh
	s.resumeRunning = false
	s.status = msg.status
	if msg.status != StatusYield {
		s.finished = true
	}
	return msg.status, msg.values, msg.err
}

// run is the coroutine's driving goroutine body: it executes entry
// under rawRunProtected so a throw deep inside the coroutine reports
// back through the same Status/error-value channel a normal return or
// a Yield would use.
func (s *State) run(entry Entry, args []value.Value) {
	var results []value.Value
	status, errVal := s.rawRunProtected(func() {
		rs, err := entry(s, args)
		if err != nil {
			throw(StatusErrRun, s.errorValueFromGo(err))
		}
		results = rs
	})
	s.yieldCh <- coroutineMsg{status: status, values: results, err: errVal}
}

// Yield suspends the calling coroutine, handing values back to
// whoever called Resume, and blocks until the next Resume call
// supplies the values this Yield call returns. It is the Go
// equivalent of lua_vyield. It raises ErrYieldAcrossCCall only when
// the NoYield flag is set on s; otherwise a native closure running on a
// coroutine's own goroutine can suspend, since doing so blocks only
// that goroutine rather than unwinding a shared C stack.
func (s *State) Yield(values []value.Value) []value.Value {
	if s.flag(NoYield) {
		s.throwf(StatusErrRun, "%s", ErrYieldAcrossCCall.Error())
	}
	s.yieldCh <- coroutineMsg{status: StatusYield, values: values}
	return <-s.resumeCh
}

// CoroutineStatus reports the coroutine's last-observed Status (the Go
// equivalent of lua_status).
func (s *State) CoroutineStatus() Status { return s.status }
