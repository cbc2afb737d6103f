// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package api is loom's embedding surface: the entry point a host
// program uses to spin up a runtime, load pre-assembled chunks into
// it, and drive execution. Everything below this package (vm, object,
// strtab, table, whitelist) is reachable directly too, but a host that
// only wants to run sandboxed scripts should not need to.
package api

import (
	"fmt"
	goruntime "runtime"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"golang.org/x/crypto/sha3"

	"github.com/loomlang/loom/loom/loomconfig"
	"github.com/loomlang/loom/loom/loomlog"
	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/vm"
)

// Runtime owns one vm.Global (string table, whitelist, instance id)
// plus the host-facing ambient services layered on top of it: the
// configuration that built it, a logger, and the compiled-chunk cache.
type Runtime struct {
	Global *vm.Global
	Config loomconfig.Config
	Log    *loomlog.Logger

	chunkCache *fastcache.Cache
	protoMu    sync.RWMutex
	protos     map[[32]byte]*object.Prototype
}

// NewRuntime builds a Runtime from cfg: a fresh vm.Global seeded with
// the string-table hash seed, the native functions cfg.Whitelist names
// (resolved against reg) allowed, and a chunk cache sized by
// cfg.ChunkCacheBytes.
func NewRuntime(cfg loomconfig.Config, reg loomconfig.Registry, log *loomlog.Logger) (*Runtime, error) {
	if log == nil {
		log = loomlog.Root
	}
	g := vm.NewGlobal(0)
	if err := loomconfig.ApplyWhitelist(cfg, reg, g.Whitelist); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	cacheBytes := cfg.ChunkCacheBytes
	if cacheBytes <= 0 {
		cacheBytes = loomconfig.Defaults.ChunkCacheBytes
	}
	r := &Runtime{
		Global:     g,
		Config:     cfg,
		Log:        log,
		chunkCache: fastcache.New(cacheBytes),
		protos:     make(map[[32]byte]*object.Prototype),
	}
	log.Info("runtime created", "instance", g.InstanceID, "chunkCacheBytes", cacheBytes)
	return r, nil
}

// NewThread spawns a fresh coroutine (the "main thread" when called
// once right after NewRuntime, an additional coroutine thereafter)
// sharing this Runtime's Global.
func (r *Runtime) NewThread() *State {
	return &State{inner: vm.NewThread(r.Global), rt: r}
}

// Decoder turns raw chunk bytes produced by an external compiler into
// a Prototype. loom itself has no lexer/parser/compiler and performs
// no undump of a specific on-disk bytecode format — the caller
// supplies whatever decode step matches the chunk format its compiler
// emits; Load's only job is to memoize the result by content digest.
type Decoder func(raw []byte) (*object.Prototype, error)

// Load decodes raw into a Prototype via decode, memoizing the result
// keyed by a SHAKE128 digest of raw (the same wide-hash primitive
// strtab.Table.Digest uses for long-string table keys) so that a host
// re-loading identical chunk bytes (a common pattern when a sandboxed
// script is re-uploaded unchanged) skips re-decoding and re-interning
// the chunk's constant strings. The decoded Prototype cache itself is
// an unbounded Go map — fastcache stores only opaque []byte payloads,
// not Go pointers, so it cannot hold the Prototype graph directly; it
// only records, within cfg.ChunkCacheBytes, which digests have been
// seen. Every successfully decoded chunk stays in the Prototype map for
// the Runtime's lifetime; nothing removes entries from it.
func (r *Runtime) Load(raw []byte, decode Decoder) (*object.Prototype, error) {
	var digest [32]byte
	sha3.ShakeSum128(digest[:], raw)

	r.protoMu.RLock()
	if p, ok := r.protos[digest]; ok {
		r.protoMu.RUnlock()
		return p, nil
	}
	r.protoMu.RUnlock()

	if r.chunkCache.Has(digest[:]) {
		r.Log.Debug("chunk digest already seen but prototype evicted, re-decoding", "digest", fmt.Sprintf("%x", digest[:8]))
	}

	proto, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("api: decode chunk: %w", err)
	}

	r.chunkCache.Set(digest[:], []byte{1})
	r.protoMu.Lock()
	r.protos[digest] = proto
	r.protoMu.Unlock()
	return proto, nil
}

// CollectGarbage asks the Go runtime to run a collection and sweeps
// loom's own string-table free-list clusters. loom keeps no generation
// or incremental-step state of its own (object lifetime is delegated
// entirely to Go's collector per spec.md's "interacts with it through
// allocation, barrier, and step hooks only" scoping), so this is a
// direct passthrough rather than a multi-phase "step" API.
func (r *Runtime) CollectGarbage() {
	r.Global.Strings.SweepClusters()
	goruntime.GC()
}
