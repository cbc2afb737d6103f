// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loomconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/value"
	"github.com/loomlang/loom/loom/whitelist"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesOverridesOnTopOfDefaults(t *testing.T) {
	path := writeTempConfig(t, `
Whitelist = ["print"]

[Memory]
MaxBytes = 1024

[Halt]
StepBudget = 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.MaxBytes != 1024 {
		t.Fatalf("expected overridden MaxBytes, got %d", cfg.Memory.MaxBytes)
	}
	if cfg.Halt.StepBudget != 500 {
		t.Fatalf("expected overridden StepBudget, got %d", cfg.Halt.StepBudget)
	}
	if cfg.ChunkCacheBytes != Defaults.ChunkCacheBytes {
		t.Fatalf("expected default ChunkCacheBytes to survive, got %d", cfg.ChunkCacheBytes)
	}
	if len(cfg.Whitelist) != 1 || cfg.Whitelist[0] != "print" {
		t.Fatalf("expected whitelist [print], got %v", cfg.Whitelist)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "Bogus = true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error decoding an unknown field")
	}
}

func TestDumpRoundTrips(t *testing.T) {
	out, err := Dump(Defaults)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	path := writeTempConfig(t, string(out))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load dumped config: %v", err)
	}
	if cfg.Memory.MaxBytes != Defaults.Memory.MaxBytes {
		t.Fatalf("round trip changed MaxBytes: %d", cfg.Memory.MaxBytes)
	}
}

func samplePrint(state interface{}, args []value.Value) ([]value.Value, error) {
	return nil, nil
}

func TestApplyWhitelistAllowsRegisteredNames(t *testing.T) {
	cfg := Config{Whitelist: []string{"print"}}
	reg := Registry{"print": object.NativeFunc(samplePrint)}
	w := whitelist.New()
	if err := ApplyWhitelist(cfg, reg, w); err != nil {
		t.Fatalf("ApplyWhitelist: %v", err)
	}
	if !w.IsAllowed(object.NativeFunc(samplePrint)) {
		t.Fatalf("expected samplePrint to be allowed")
	}
}

func TestApplyWhitelistRejectsUnknownName(t *testing.T) {
	cfg := Config{Whitelist: []string{"missing"}}
	w := whitelist.New()
	if err := ApplyWhitelist(cfg, Registry{}, w); err == nil {
		t.Fatalf("expected an error for an unregistered whitelist entry")
	}
}
