/*
 * vcore - entry point.
 *
 * Copyright (c) 2026, RWS Vrisc Project
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"bufio"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rwsvrisc/vcore/config"
	"github.com/rwsvrisc/vcore/emu/clock"
	"github.com/rwsvrisc/vcore/emu/supervisor"
	"github.com/rwsvrisc/vcore/util/logger"
)

var Logger *slog.Logger

func main() {
	cfg, err := config.Parse()
	if err != nil {
		slog.Default().Error(err.Error())
		os.Exit(1)
	}
	if cfg.Help {
		config.Usage()
		os.Exit(0)
	}

	var file *os.File
	if cfg.LogFile != "" {
		file, err = os.Create(cfg.LogFile)
		if err != nil {
			slog.Default().Error("vcore: could not create log file", "path", cfg.LogFile, "err", err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	if cfg.Debug {
		programLevel.Set(slog.LevelDebug)
	} else {
		programLevel.Set(slog.LevelInfo)
	}
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &cfg.Debug))
	slog.SetDefault(Logger)

	if cfg.ProcessChild {
		// One-OS-process-per-core hosts would exec this binary with
		// --process-child --id-core=N to run a single core bound to the
		// supervisor's already-published regions. This reference build
		// runs every core as a goroutine of one supervisor process instead
		// (see DESIGN.md for why cross-process event delivery, which would
		// require replacing emu/ioport's in-process Go channel with a
		// polling region, is not implemented here) and rejects this path
		// rather than silently falling back to full-supervisor behavior.
		Logger.Error("vcore: --process-child is not implemented by this build; run without it", "id-core", cfg.IDCore)
		os.Exit(1)
	}

	Logger.Info("vcore starting", "cores", cfg.Cores, "memory", cfg.MemoryBytes)

	var rom []byte
	if cfg.VROMPath != "" {
		rom, err = os.ReadFile(cfg.VROMPath)
		if err != nil {
			Logger.Error("vcore: failed to read vrom", "path", cfg.VROMPath, "err", err)
			os.Exit(1)
		}
	}

	sv, err := supervisor.New(supervisor.Config{
		NumCores:      cfg.Cores,
		MemorySize:    cfg.MemoryBytes,
		ROM:           rom,
		Cycle:         clock.DefaultCycle,
		Debug:         cfg.Debug,
		ExternalClock: cfg.ExternalClock,
		Log:           Logger,
	})
	if err != nil {
		Logger.Error("vcore: failed to initialize supervisor", "err", err)
		os.Exit(1)
	}

	go sv.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msg := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			input, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			msg <- input
		}
	}()

loop:
	for {
		select {
		case <-sigChan:
			Logger.Info("vcore: received shutdown signal")
			break loop
		case <-msg:
			// Reserved for future interactive commands; the reference
			// debugger frontend (debugcli) talks to the VdbApi mailboxes
			// directly rather than through this process's stdin.
		}
	}

	Logger.Info("vcore: shutting down")
	sv.Shutdown()
	if err := sv.Close(); err != nil {
		Logger.Error("vcore: error during shutdown", "err", err)
	}
	Logger.Info("vcore: stopped")
}
