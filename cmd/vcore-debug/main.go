/*
   vcore-debug - reference debugger frontend binary.

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

// vcore-debug binds to a running vcore supervisor's mailboxes and main
// memory region and drives the reference VdbApi frontend (debugcli)
// interactively.
package main

import (
	"fmt"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rwsvrisc/vcore/debugcli"
)

func main() {
	cores := getopt.StringLong("cores", 'n', "1", "Number of cores the running vcore was started with")
	memory := getopt.StringLong("memory", 'm', "67108864", "Main memory size in bytes the running vcore was started with")
	getopt.Parse()

	coreCount, err := strconv.Atoi(*cores)
	if err != nil || coreCount < 1 {
		fmt.Fprintf(os.Stderr, "vcore-debug: --cores must be a positive integer, got %q\n", *cores)
		os.Exit(1)
	}
	memBytes, err := strconv.ParseUint(*memory, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vcore-debug: --memory must be an integer, got %q\n", *memory)
		os.Exit(1)
	}

	cli, err := debugcli.Bind(coreCount, memBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cli.Close()

	cli.RunInteractive()
}
