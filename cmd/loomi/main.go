// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command loomi is loom's CLI front end: load a pre-assembled chunk —
// loom has no compiler of its own, see loom/vm.Assemble's textual
// mnemonic format — run it, or print its disassembly.
//
// Usage:
//
//	loomi run <chunk.loom>
//	loomi disasm <chunk.loom>
//	loomi -config <loom.toml> run <chunk.loom>
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/loomlang/loom/loom/api"
	"github.com/loomlang/loom/loom/loomconfig"
	"github.com/loomlang/loom/loom/loomlog"
	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/value"
	"github.com/loomlang/loom/loom/vm"
)

const version = "0.1.0"

var configFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML host configuration file",
}

func main() {
	app := cli.NewApp()
	app.Name = "loomi"
	app.Usage = "run and inspect loom bytecode chunks"
	app.Version = version
	app.Flags = []cli.Flag{configFlag}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "assemble and execute a chunk, printing its return values",
			ArgsUsage: "<chunk.loom>",
			Action:    runCommand,
		},
		{
			Name:      "disasm",
			Usage:     "print a chunk's disassembly without executing it",
			ArgsUsage: "<chunk.loom>",
			Action:    disasmCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (loomconfig.Config, error) {
	file := ctx.GlobalString(configFlag.Name)
	if file == "" {
		return loomconfig.Defaults, nil
	}
	return loomconfig.Load(file)
}

func readChunk(ctx *cli.Context) (string, error) {
	if ctx.NArg() < 1 {
		return "", fmt.Errorf("usage: loomi %s <chunk.loom>", ctx.Command.Name)
	}
	raw, err := os.ReadFile(ctx.Args().Get(0))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func runCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	src, err := readChunk(ctx)
	if err != nil {
		return err
	}

	rt, err := api.NewRuntime(cfg, loomconfig.Registry{}, loomlog.New(loomlog.Stderr(), loomlog.LevelInfo))
	if err != nil {
		return err
	}
	proto, err := rt.Load([]byte(src), func(raw []byte) (*object.Prototype, error) {
		return vm.Assemble(rt.Global.Strings, string(raw))
	})
	if err != nil {
		return err
	}

	st := rt.NewThread()
	cl := object.NewScriptedClosure(proto, st.Inner().Globals, nil)
	results, err := st.Call(value.Obj(cl), nil)
	if err != nil {
		return err
	}
	for i, v := range results {
		fmt.Printf("[%d] %s\n", i, v.String())
	}
	return nil
}

func disasmCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	src, err := readChunk(ctx)
	if err != nil {
		return err
	}

	rt, err := api.NewRuntime(cfg, loomconfig.Registry{}, loomlog.New(loomlog.Stderr(), loomlog.LevelInfo))
	if err != nil {
		return err
	}
	proto, err := vm.Assemble(rt.Global.Strings, src)
	if err != nil {
		return err
	}
	fmt.Print(vm.Disassemble(proto))
	return nil
}
