// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package object defines the two callable heap types (scripted and
// native closures) and the upvalue mechanism that lets scripted closures
// share mutable locals with their enclosing frame, grounded on the
// reference VM's Closure/UpVal pair (lvm.c's cl->upvals[i]->v indirection
// and luaF_findupval/luaF_close).
package object

import (
	"github.com/loomlang/loom/loom/table"
	"github.com/loomlang/loom/loom/value"
)

// Prototype is the immutable, compiled form of a scripted function: its
// bytecode, constant pool, and the metadata needed to build closures
// over it. Produced entirely outside this module (by the external
// compiler collaborator, or by loom/vm's Assembler/Assemble helpers);
// loom/object only consumes it.
type Prototype struct {
	Code         []uint32
	Constants    []value.Value
	NumParams    int
	IsVararg     bool
	MaxStackSize int
	UpvalNames   []string
	Source       string
	LineDefined  int

	// NestedProtos holds the prototypes of functions defined inside
	// this one, indexed by a CLOSURE instruction's Bx operand.
	NestedProtos []*Prototype
}

// NativeFunc is the Go-side signature for a native closure: it receives
// the calling state (typed as interface{} here to avoid an import cycle
// with loom/vm, which implements the concrete type) and the argument
// values, and returns result values or a Go error.
type NativeFunc func(state interface{}, args []value.Value) ([]value.Value, error)

// ScriptedClosure pairs a Prototype with the upvalues captured at the
// point the closure was created and the global environment table it
// resolves free (non-upvalue, non-local) names against.
type ScriptedClosure struct {
	value.Header
	Proto  *Prototype
	Env    *table.Table
	Upvals []*Upvalue
}

func NewScriptedClosure(proto *Prototype, env *table.Table, upvals []*Upvalue) *ScriptedClosure {
	c := &ScriptedClosure{Proto: proto, Env: env, Upvals: upvals}
	c.Tag = value.TagScriptedClosure
	return c
}

func (c *ScriptedClosure) TypeName() string { return "function" }

// NativeClosure wraps a host-supplied Go function together with any
// values it closed over at creation time (the native analogue of
// upvalues — plain captured Values rather than stack-linked cells, since
// a native function has no scripted stack frame to alias).
type NativeClosure struct {
	value.Header
	Fn     NativeFunc
	Upvals []value.Value
}

func NewNativeClosure(fn NativeFunc, upvals []value.Value) *NativeClosure {
	c := &NativeClosure{Fn: fn, Upvals: upvals}
	c.Tag = value.TagNativeClosure
	return c
}

func (c *NativeClosure) TypeName() string { return "function" }

// Upvalue is a shared cell referencing either a live stack slot (open)
// or a value it has copied out of the stack (closed, after the frame
// that owned the slot returned or was unwound). Open upvalues are kept
// in a singly linked list off the owning state, sorted by descending
// stack index, so luaF_close-equivalent logic can walk and close every
// upvalue at or above a given level in one pass.
type Upvalue struct {
	value.Header
	open   bool
	stack  *[]value.Value
	idx    int
	closed value.Value
	next   *Upvalue
}

func (u *Upvalue) TypeName() string { return "upvalue" }

// NewOpenUpvalue creates an upvalue aliasing slot idx of the given stack.
func NewOpenUpvalue(stack *[]value.Value, idx int) *Upvalue {
	u := &Upvalue{open: true, stack: stack, idx: idx}
	u.Tag = value.TagUpvalue
	return u
}

// Get reads the upvalue's current value, whether open or closed.
func (u *Upvalue) Get() value.Value {
	if u.open {
		return (*u.stack)[u.idx]
	}
	return u.closed
}

// Set writes through to the aliased stack slot while open, or to the
// closed cell afterward.
func (u *Upvalue) Set(v value.Value) {
	if u.open {
		(*u.stack)[u.idx] = v
		return
	}
	u.closed = v
}

// Close copies the current stack value into the upvalue's own storage
// and severs the stack alias, so it survives the owning frame's stack
// slot being reused or the stack itself being reallocated.
func (u *Upvalue) Close() {
	if !u.open {
		return
	}
	u.closed = (*u.stack)[u.idx]
	u.open = false
	u.stack = nil
}

// IsOpen reports whether the upvalue still aliases a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.open }

// StackIndex returns the aliased slot's index; only meaningful while open.
func (u *Upvalue) StackIndex() int { return u.idx }

// OpenUpvalues is the sorted-by-descending-index linked list of
// currently open upvalues for one coroutine/state, mirroring
// lstate.h's L->openupval.
type OpenUpvalues struct {
	head *Upvalue
}

// Find returns the existing open upvalue aliasing idx if one exists,
// else creates, links, and returns a new one — the Go equivalent of
// luaF_findupval's linear scan-and-insert-in-order.
func (o *OpenUpvalues) Find(stack *[]value.Value, idx int) *Upvalue {
	var prev *Upvalue
	cur := o.head
	for cur != nil && cur.idx > idx {
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.idx == idx {
		return cur
	}
	u := NewOpenUpvalue(stack, idx)
	u.next = cur
	if prev == nil {
		o.head = u
	} else {
		prev.next = u
	}
	return u
}

// Close closes every open upvalue whose aliased index is >= level and
// unlinks them from the list, mirroring luaF_close. Called when a frame
// returns or the stack is unwound below level.
func (o *OpenUpvalues) Close(level int) {
	for o.head != nil && o.head.idx >= level {
		u := o.head
		o.head = u.next
		u.Close()
		u.next = nil
	}
}
