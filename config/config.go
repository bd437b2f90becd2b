/*
   vcore - command-line configuration.

   Copyright (c) 2026, RWS Vrisc Project

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.
*/

// Package config parses the command line into a Config, covering the
// invocation flags of spec.md 6: core count, memory size, the initial ROM
// image, debug-mode gating, the external-clock switch, and the re-exec
// selectors a host uses to spawn one OS process per core. Kept on the
// teacher's github.com/pborman/getopt/v2, unlike the teacher's own
// file-based configparser/debugconfig (an IBM-370 device DSL this VM has
// no equivalent of - see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"
)

// Config is the fully parsed command line.
type Config struct {
	Cores          int
	MemoryBytes    uint64
	VROMPath       string
	Debug          bool
	ExternalClock  bool
	ProcessChild   bool
	IDCore         int
	LogFile        string
	Help           bool
}

const (
	defaultCores  = 1
	defaultMemory = 64 << 20 // 64 MiB
)

// Parse parses os.Args[1:] (via getopt's global flag set) into a Config.
func Parse() (Config, error) {
	cores := getopt.StringLong("cores", 'n', strconv.Itoa(defaultCores), "Number of cores")
	memory := getopt.StringLong("memory", 'm', fmt.Sprintf("%d", defaultMemory), "Main memory size in bytes")
	vrom := getopt.StringLong("vrom", 'r', "", "Initial ROM image to load at physical address 0")
	debug := getopt.BoolLong("debug", 'd', "Start cores in single-step debug mode")
	extClock := getopt.BoolLong("external-clock", 'e', "Drive the clock from an external source instead of the host monotonic clock")
	processChild := getopt.BoolLong("process-child", 0, "Internal: re-exec'd core child process")
	idCore := getopt.StringLong("id-core", 0, "-1", "Internal: core id for a re-exec'd child (requires --process-child)")
	logFile := getopt.StringLong("log", 'l', "", "Log file (defaults to stderr)")
	help := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *help {
		return Config{Help: true}, nil
	}
	coreCount, err := strconv.Atoi(*cores)
	if err != nil || coreCount < 1 {
		return Config{}, fmt.Errorf("config: --cores must be a positive integer, got %q", *cores)
	}
	memBytes, err := parseSize(*memory)
	if err != nil {
		return Config{}, fmt.Errorf("config: --memory: %w", err)
	}
	idCoreVal, err := strconv.Atoi(*idCore)
	if err != nil {
		return Config{}, fmt.Errorf("config: --id-core must be an integer, got %q", *idCore)
	}
	if *processChild && idCoreVal < 0 {
		return Config{}, fmt.Errorf("config: --process-child requires --id-core")
	}
	if *vrom != "" {
		if _, err := os.Stat(*vrom); err != nil {
			return Config{}, fmt.Errorf("config: --vrom %q: %w", *vrom, err)
		}
	}

	return Config{
		Cores:         coreCount,
		MemoryBytes:   memBytes,
		VROMPath:      *vrom,
		Debug:         *debug,
		ExternalClock: *extClock,
		ProcessChild:  *processChild,
		IDCore:        idCoreVal,
		LogFile:       *logFile,
	}, nil
}

// Usage prints getopt's generated usage text.
func Usage() {
	getopt.Usage()
}

func parseSize(s string) (uint64, error) {
	var n uint64
	var suffix string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &suffix); err != nil {
		if _, err2 := fmt.Sscanf(s, "%d", &n); err2 != nil {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return n, nil
	}
	switch suffix {
	case "K", "k":
		n <<= 10
	case "M", "m":
		n <<= 20
	case "G", "g":
		n <<= 30
	default:
		return 0, fmt.Errorf("unknown size suffix %q in %q", suffix, s)
	}
	return n, nil
}
