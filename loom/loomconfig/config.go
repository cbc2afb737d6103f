// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package loomconfig loads host configuration for an embedded loom
// instance from a TOML file: memory ceilings, the cooperative halt
// step budget, the compiled-chunk cache size, and the set of native
// functions a host exposes to scripted code, named symbolically so the
// file itself never references a Go function value. Grounded on
// cmd/gprobe/config.go's tomlSettings/loadConfig/dumpConfig trio.
package loomconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the teacher's field-naming policy: TOML keys
// match Go struct field names exactly, and an unrecognized field is a
// hard error rather than being silently ignored, so a typo in a host's
// config file surfaces immediately instead of quietly keeping a
// default.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// MemoryConfig bounds the amount of script-reachable memory a State's
// owning Global is allowed to account for before the host is asked to
// intervene (loom itself never allocates from a fixed arena — this is
// advisory bookkeeping a host's allocation hooks can consult).
type MemoryConfig struct {
	MaxBytes int64 `toml:",omitempty"`
}

// HaltConfig is the default cooperative scheduling budget, counted in
// bytecode instructions, the gas-like analogue of the reference VM's
// instruction-count debug hook. loom itself does not read StepBudget:
// the dispatch loop checks vm.Global.HaltState before every
// instruction.
type HaltConfig struct {
	StepBudget uint32 `toml:",omitempty"`
}

// Config is the full host-supplied configuration document.
type Config struct {
	Memory          MemoryConfig
	Halt            HaltConfig
	ChunkCacheBytes int      `toml:",omitempty"`
	Whitelist       []string `toml:",omitempty"`
}

// Defaults is the configuration used when a host supplies no file.
var Defaults = Config{
	Memory:          MemoryConfig{MaxBytes: 64 << 20},
	Halt:            HaltConfig{StepBudget: 1 << 20},
	ChunkCacheBytes: 32 << 20,
}

// Load reads and decodes a TOML configuration file, starting from
// Defaults so an omitted section keeps its default value.
func Load(file string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return cfg, err
}

// Dump marshals cfg back to its TOML text form, the inverse of Load,
// so a host can materialize the effective configuration (defaults plus
// file plus any programmatic overrides) for inspection.
func Dump(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
