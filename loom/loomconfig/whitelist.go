// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loomconfig

import (
	"fmt"

	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/whitelist"
)

// Registry maps the symbolic names a config file's Whitelist entries
// use to the actual native functions a host embeds. A host builds one
// of these at startup and passes it to ApplyWhitelist; loom itself has
// no notion of function names, only raw pointers, so this indirection
// is entirely a loomconfig-level convenience.
type Registry map[string]object.NativeFunc

// ApplyWhitelist allows every function cfg.Whitelist names, looking it
// up in reg, into w. It fails closed: an unknown name is an error
// rather than a silently skipped entry, so a stale config can't
// quietly under-provision a host's exposed surface.
func ApplyWhitelist(cfg Config, reg Registry, w *whitelist.Whitelist) error {
	for _, name := range cfg.Whitelist {
		fn, ok := reg[name]
		if !ok {
			return fmt.Errorf("loomconfig: whitelist entry %q is not registered", name)
		}
		w.Allow(fn)
	}
	return nil
}
