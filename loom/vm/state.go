// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/table"
	"github.com/loomlang/loom/loom/value"
	"github.com/loomlang/loom/loom/whitelist"
)

var nextStateID int64

// nCcalls flag bits packed into the low 4 bits of State.nCcalls, mirroring
// ldo.c's LUA_NOYIELD/LUA_NOVPCALL/LUA_NOHOOKS/LUA_NOERRFUNC.
const (
	NoYield uint32 = 1 << iota
	NoVpCall
	NoHooks
	NoErrFunc

	nCcallsFlagBits = 4
	nCcallsUnit     = 1 << nCcallsFlagBits
	maxCcalls       = 200 // recursion ceiling, counted in nCcallsUnit steps
)

// Global is process-wide state shared by every coroutine (State) spawned
// from the same root: the string table, the native-function whitelist,
// and host-level hooks. One Global is created by NewGlobal (called by
// NewState and by api.NewRuntime) and shared by every State created
// from it with NewThread.
type Global struct {
	Strings    *strtab.Table
	Whitelist  *whitelist.Whitelist
	InstanceID uuid.UUID

	Panic func(s *State, errValue value.Value)

	// HaltState is the cooperative halt flag checked once per
	// instruction by the dispatch loop: 0 runs normally, 1 stops
	// silently (as if execution fell off the end), 2 raises
	// HaltMessage as a runtime error.
	HaltState   int32
	HaltMessage string

	lock reentrantLock
}

// NewGlobal constructs a fresh Global with its own string table and
// native-function whitelist.
func NewGlobal(seed uint32) *Global {
	return &Global{
		Strings:    strtab.NewTable(seed),
		Whitelist:  whitelist.New(),
		InstanceID: uuid.New(),
		lock:       *newReentrantLock(),
	}
}

// Lock acquires the Global's re-entrant lock on behalf of s.
func (g *Global) Lock(s *State) { g.lock.Lock(s.id) }

// Unlock releases one level of re-entrancy acquired by s.
func (g *Global) Unlock(s *State) { g.lock.Unlock(s.id) }

// CallInfo is one activation record. Unlike the reference VM, Base/Top
// are indices into State.Stack rather than raw pointers, so growing the
// stack is a plain append — there is no pointer-relocation pass to run
// after a realloc (the Go analogue of luaD_reallocstack/correctstack is
// simply unnecessary once addressing is index-based).
type CallInfo struct {
	Scripted  *object.ScriptedClosure // nil for a native-closure frame
	Native    *object.NativeClosure
	Base      int
	Top       int
	Pc        int
	NResults  int
	TailCalls int
}

// State is one coroutine (the source language's "thread" value): its own
// value stack, call-frame stack, and open-upvalue list, but sharing a
// Global with every other coroutine in the same instance.
type State struct {
	G *Global

	Stack []value.Value
	CI    []CallInfo
	ciTop int // index of the active CallInfo in CI

	openUpvals object.OpenUpvalues
	Globals    *table.Table

	nCcalls uint32
	ErrFunc value.Value

	status Status

	resumeCh      chan []value.Value
	yieldCh       chan coroutineMsg
	started       bool
	finished      bool
	resumeRunning bool
	id            int64
}

// NewState creates a fresh top-level coroutine (what the reference
// implementation calls the main thread) over a new Global.
func NewState(seed uint32) *State {
	g := NewGlobal(seed)
	return NewThread(g)
}

// NewThread creates an additional coroutine sharing g's string table,
// whitelist, and other process-wide state — the Go equivalent of
// lua_newthread.
func NewThread(g *Global) *State {
	s := &State{
		G:       g,
		Stack:   make([]value.Value, 0, 64),
		CI:      make([]CallInfo, 1, 8),
		Globals: table.New(0, 0),
		id:      atomic.AddInt64(&nextStateID, 1),
	}
	return s
}

// pushCI grows the call-frame stack by one and returns it; like the
// value stack, Go's append makes the reference implementation's
// growCI/luaD_reallocCI pointer-relocation dance unnecessary.
func (s *State) pushCI() *CallInfo {
	s.CI = append(s.CI, CallInfo{})
	s.ciTop++
	return &s.CI[s.ciTop]
}

func (s *State) popCI() {
	s.CI = s.CI[:s.ciTop]
	s.ciTop--
}

// growStack ensures the stack has room for at least n more slots above
// its current logical top, appending value.Nil as filler.
func (s *State) growStack(n int) {
	need := len(s.Stack) + n
	for cap(s.Stack) < need {
		s.Stack = append(s.Stack[:cap(s.Stack)], value.Nil)
	}
	for len(s.Stack) < need {
		s.Stack = append(s.Stack, value.Nil)
	}
}

// set writes v at absolute stack index idx, growing as needed.
func (s *State) set(idx int, v value.Value) {
	if idx >= len(s.Stack) {
		s.growStack(idx - len(s.Stack) + 1)
	}
	s.Stack[idx] = v
}

func (s *State) get(idx int) value.Value {
	if idx >= len(s.Stack) {
		return value.Nil
	}
	return s.Stack[idx]
}

// incNCcalls increments the recursion counter by one unit and reports
// whether the ceiling was exceeded, mirroring ldo.c's
// (L->nCcalls+16)|callflags overflow check in luaD_call.
func (s *State) incNCcalls() bool {
	s.nCcalls += nCcallsUnit
	return s.nCcalls>>nCcallsFlagBits > maxCcalls
}

func (s *State) decNCcalls() { s.nCcalls -= nCcallsUnit }

// NewString interns/allocates a string Value through this state's
// owning Global string table.
func (s *State) NewString(str string) value.Value {
	return value.Obj(s.G.Strings.NewLStr([]byte(str)))
}

func (s *State) flag(bit uint32) bool { return s.nCcalls&bit != 0 }

func (s *State) setFlag(bit uint32)   { s.nCcalls |= bit }
func (s *State) clearFlag(bit uint32) { s.nCcalls &^= bit }
