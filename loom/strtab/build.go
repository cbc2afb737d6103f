// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

import "sync"

// scratchPool recycles byte buffers for rope materializations smaller
// than ropeAllocMinSize, standing in for the reference implementation's
// per-thread stack scratch buffer (Go has no alloca). Results at or
// above the threshold bypass the pool and get a freshly allocated slice,
// since pooling very large buffers would just pin memory.
var scratchPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, ropeAllocMinSize)
		return &b
	},
}

func getScratch(n int) []byte {
	if n >= ropeAllocMinSize {
		return make([]byte, n)
	}
	bp := scratchPool.Get().(*[]byte)
	return (*bp)[:n]
}

func putScratch(buf []byte) {
	if cap(buf) != ropeAllocMinSize {
		return
	}
	b := buf[:cap(buf)]
	scratchPool.Put(&b)
}

// Build materializes a rope into a flat string, using the reference
// algorithm from luaS_build: an iterative in-order traversal driven by
// an explicit stack (so depth is bounded only by heap, not by Go's
// goroutine stack), descending left children until it reaches a leaf,
// copying that leaf's bytes, then resuming at the nearest unvisited
// right child. The result is cached in r.Res and r.Left/r.Right are
// cleared so the now-redundant subtree can be reclaimed; the cached
// result is forced black so a build that races a collection cycle
// can't be swept out from under the rope that just produced it.
func Build(r *Rope) Str {
	if r.Res != nil {
		return r.Res
	}
	if r.length == 0 {
		res := newLongStr(nil)
		res.SetBlack()
		r.Res = res
		r.Left, r.Right = nil, nil
		return res
	}

	buf := getScratch(r.length)
	pos := 0
	stack := make([]Str, 0, 8)
	var cur Str = r

	for {
		for {
			rn, ok := cur.(*Rope)
			if !ok {
				break
			}
			if rn.Res != nil {
				cur = rn.Res
				break
			}
			stack = append(stack, rn.Right)
			cur = rn.Left
		}
		b := cur.Bytes()
		pos += copy(buf[pos:], b)
		if len(stack) == 0 {
			break
		}
		cur, stack = stack[len(stack)-1], stack[:len(stack)-1]
	}

	res := newLongStr(buf[:pos])
	res.SetBlack()
	putScratch(buf)

	r.Res = res
	r.Left, r.Right = nil, nil
	return res
}
