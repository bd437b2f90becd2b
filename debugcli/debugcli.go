/*
   vcore - reference VdbApi debugger frontend.

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

// Package debugcli is a thin reference client for the VdbApi mailbox
// protocol (spec.md 4.10): it is not the interactive TUI spec.md 1 places
// out of scope, just the minimum harness that proves the protocol end to
// end, grounded on original_source/src/debug.rs's command_line/core_hack/
// memory_hack dispatch. The VM core never imports this package.
package debugcli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rwsvrisc/vcore/emu/debug"
	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/util/hex"
)

// CLI binds one mailbox per core plus the shared main memory region, and
// dispatches the same three-command surface as the original's command_line.
type CLI struct {
	mailboxes []*debug.Mailbox
	mem       *memory.Memory
}

// Bind connects to a running VM's mailboxes and main memory region.
// numCores and memSize must match the supervisor's invocation.
func Bind(numCores int, memSize uint64) (*CLI, error) {
	mem, err := memory.Bind(memSize)
	if err != nil {
		return nil, fmt.Errorf("debugcli: bind main memory: %w", err)
	}
	boxes := make([]*debug.Mailbox, numCores)
	for i := 0; i < numCores; i++ {
		mb, err := debug.Bind(i)
		if err != nil {
			for _, b := range boxes[:i] {
				b.Close()
			}
			mem.Close()
			return nil, fmt.Errorf("debugcli: bind core %d mailbox: %w", i, err)
		}
		boxes[i] = mb
	}
	return &CLI{mailboxes: boxes, mem: mem}, nil
}

// Close releases every bound handle.
func (c *CLI) Close() error {
	for _, mb := range c.mailboxes {
		mb.Close()
	}
	return c.mem.Close()
}

// Run dispatches one command line and returns the text to display, mirroring
// original_source/src/debug.rs's command_line.
func (c *CLI) Run(line string) (text string, exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	switch fields[0] {
	case "mem":
		return c.memoryHack(fields[1:]), false
	case "core":
		return c.coreHack(fields[1:]), false
	case "exit":
		return "", true
	case "help":
		return "vcore debugger\n\n" +
			"options:\n" +
			"    mem     Memory hack. Type \"mem help\" for details.\n" +
			"    core    Core hack. Type \"core help\" for details.\n" +
			"    exit    Stop the debugger frontend.\n" +
			"    help    Print this text.", false
	default:
		return "Undefined command. Type \"help\" for help.", false
	}
}

func (c *CLI) coreHack(args []string) string {
	if len(args) == 0 {
		return "Type \"core help\" for usage."
	}
	switch args[0] {
	case "regs":
		if len(args) < 2 {
			return "usage: core regs <core_id>"
		}
		id, err := strconv.Atoi(args[1])
		if err != nil || id < 0 || id >= len(c.mailboxes) {
			return fmt.Sprintf("There are %d cores. core_id out of range.", len(c.mailboxes))
		}
		resp, ok := c.mailboxes[id].Request(debug.RegisterRequest())
		if !ok {
			return fmt.Sprintf("core%d: mailbox request timed out.", id)
		}
		if resp.Tag == debug.TagNotRunning {
			return fmt.Sprintf("Core%d is not running.", id)
		}
		if resp.Tag != debug.TagRegister || !resp.HasPayload {
			return "Internal exception."
		}
		r := resp.Regs
		var sb strings.Builder
		for i := 0; i < 16; i++ {
			fmt.Fprintf(&sb, "x%d\t: %#016x\n", i, r.X[i])
		}
		fmt.Fprintf(&sb, "\nip\t: %#016x\n", r.IP)
		fmt.Fprintf(&sb, "flag\t: %#016x\n", r.Flag)
		fmt.Fprintf(&sb, "ivt\t: %#016x\n", r.IVT)
		fmt.Fprintf(&sb, "kpt\t: %#016x\n", r.KPT)
		fmt.Fprintf(&sb, "upt\t: %#016x\n", r.UPT)
		fmt.Fprintf(&sb, "scp\t: %#016x\n", r.SCP)
		fmt.Fprintf(&sb, "imsg\t: %#016x\n", r.IMsg)
		fmt.Fprintf(&sb, "ipdump\t: %#016x\n", r.IPDump)
		fmt.Fprintf(&sb, "flagdump: %#016x\n", r.FlagDump)
		return sb.String()
	case "amount":
		return strconv.Itoa(len(c.mailboxes))
	case "start":
		if len(args) < 2 {
			return "usage: core start <core_id>"
		}
		id, err := strconv.Atoi(args[1])
		if err != nil || id < 0 || id >= len(c.mailboxes) {
			return fmt.Sprintf("There are %d cores.", len(c.mailboxes))
		}
		resp, ok := c.mailboxes[id].Request(debug.StartCore())
		if !ok {
			return fmt.Sprintf("core%d: mailbox request timed out.", id)
		}
		if resp.Tag == debug.TagOk {
			return "OK"
		}
		return "Internal exception."
	case "help":
		return "usage: core <options>\n\n" +
			"options:\n" +
			"    regs <core_id>                  Print all registers.\n" +
			"    amount                          Print core amount.\n" +
			"    start <core_id>                 Start core<core_id>.\n" +
			"    help                            Print this text."
	default:
		return "Undefined command. Type \"core help\" for help."
	}
}

func (c *CLI) memoryHack(args []string) string {
	if len(args) == 0 {
		return "Type \"mem help\" for usage."
	}
	switch args[0] {
	case "read":
		if len(args) < 3 {
			return "Please type read option in correct form."
		}
		addr, err1 := strconv.ParseUint(args[1], 10, 64)
		length, err2 := strconv.ParseUint(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return "Please type read option in correct form."
		}
		return c.hexDump(addr, length)
	case "write":
		if len(args) < 4 {
			return "Please type write option in correct form."
		}
		addr, err1 := strconv.ParseUint(args[1], 10, 64)
		length, err2 := strconv.ParseUint(args[2], 10, 64)
		content, err3 := strconv.ParseUint(args[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || length > 8 {
			return "Please type write option in correct form."
		}
		c.mem.WriteWidth(addr, content, widthFor(length))
		return ""
	case "help":
		return "usage: mem <options>\n\n" +
			"options:\n" +
			"    read <addr> <len>               Read memory from the nearest 16-byte aligned\n" +
			"                                        address, print it on screen.\n" +
			"    write <addr> <len> <content>    Write <len> bytes data to <addr>, max <len> 8.\n" +
			"    help                            Print this text."
	default:
		return "Undefined command. Type \"mem help\" for help."
	}
}

// widthFor maps a byte count to the nearest regs width selector (0=8-bit,
// 1=16-bit, 2=32-bit, 3=64-bit), per spec.md 4.4's width encoding.
func widthFor(bytes uint64) int {
	switch {
	case bytes <= 1:
		return 0
	case bytes <= 2:
		return 1
	case bytes <= 4:
		return 2
	default:
		return 3
	}
}

func (c *CLI) hexDump(addr, length uint64) string {
	start := (addr / 16) * 16
	end := addr + length
	var sb strings.Builder
	for a := start; a < end; a += 16 {
		hex.FormatWord(&sb, []uint32{uint32(a >> 32), uint32(a)})
		sb.WriteString("|")
		row := c.mem.ReadBytes(a, 16)
		var ascii strings.Builder
		for i, b := range row {
			if i%4 == 0 {
				sb.WriteByte(' ')
			}
			hex.FormatByte(&sb, b)
			sb.WriteByte(' ')
			if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		sb.WriteString(" | ")
		sb.WriteString(ascii.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
