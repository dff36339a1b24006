package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"gblink/emu"
)

func main() {
	cli := parseArgs(os.Args[1:])
	if cli.mode == versionMode {
		printVersion()
		return
	}

	cfg, err := emu.LoadConfigOrDefault(cli.Config)
	check("configuration", err)

	switch cli.mode {
	case runMode:
		check("run", runMain(cli.Run, cfg))
	case loopbackMode:
		check("loopback", loopbackMain(cli.Loopback, cfg))
	case discoverMode:
		check("discovery", discoverMain(cli.Discover, cfg))
	}
}

func printVersion() {
	version := "(devel)"
	goversion := ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = bi.Main.Version
		goversion = bi.GoVersion
	}
	fmt.Println("gblink", version, goversion)
}
