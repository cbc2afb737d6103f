// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// reentrantLock is the host-supplied re-entrant lock guarding a Global
// and every State derived from it, grounded on llock.cpp's
// _lua_lock/_lua_unlock: a single held/count pair over an OS mutex,
// where repeated locks from the same holder are no-ops so that a
// native function calling back into the API it was invoked from does
// not deadlock itself.
type reentrantLock struct {
	sem     *semaphore.Weighted
	holder  int64
	depth   int
}

func newReentrantLock() *reentrantLock {
	return &reentrantLock{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the lock for goroutine-id-like token id, blocking if a
// different holder currently owns it. Re-entering with the same id
// just bumps the depth counter.
func (l *reentrantLock) Lock(id int64) {
	if l.sem == nil {
		l.sem = semaphore.NewWeighted(1)
	}
	if l.depth > 0 && l.holder == id {
		l.depth++
		return
	}
	_ = l.sem.Acquire(context.Background(), 1)
	l.holder = id
	l.depth = 1
}

// Unlock releases one level of re-entrancy, releasing the underlying
// semaphore only once depth returns to zero.
func (l *reentrantLock) Unlock(id int64) {
	if l.depth == 0 || l.holder != id {
		return
	}
	l.depth--
	if l.depth == 0 {
		l.sem.Release(1)
	}
}
