/*
   vcore - named cross-process shared memory regions.

   Copyright (c) 2026, RWS Vrisc Project

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package shared implements the VM's cross-process ABI substrate: named,
// fixed-size memory regions backed by POSIX shared memory (a /dev/shm-backed
// file plus an mmap, avoiding a cgo dependency on shm_open). One process
// creates a region with New; every other process that needs the same region
// maps it with Bind. Names are the stable external contract listed in
// spec.md 4.1 - VcoreVriscMainMemory, VcoreCore{N}StartFlg, and so on.
package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

const baseDir = "/dev/shm"

// Region is a named shared region holding count contiguous values of type T.
type Region[T any] struct {
	name  string
	owner bool
	file  *os.File
	data  []T
}

func path(name string) string {
	return filepath.Join(baseDir, name)
}

func mapFile[T any](f *os.File, count int) ([]T, error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	size := elemSize * count
	if size == 0 {
		return nil, fmt.Errorf("shared: zero-size region %q", f.Name())
	}
	raw, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shared: mmap %q: %w", f.Name(), err)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), count), nil
}

// New creates a named region sized count*sizeof(T), zero-initialized, owned
// by the calling process. It is a fatal condition (per spec.md 9) to ask for
// a zero-size region; callers should treat the returned error as fatal.
func New[T any](name string, count int) (*Region[T], error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if count <= 0 || elemSize == 0 {
		return nil, fmt.Errorf("shared: zero-size region %q", name)
	}
	p := path(name)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shared: create %q: %w", name, err)
	}
	if err := f.Truncate(int64(elemSize * count)); err != nil {
		f.Close()
		os.Remove(p)
		return nil, fmt.Errorf("shared: truncate %q: %w", name, err)
	}
	data, err := mapFile[T](f, count)
	if err != nil {
		f.Close()
		os.Remove(p)
		return nil, err
	}
	return &Region[T]{name: name, owner: true, file: f, data: data}, nil
}

// Bind maps an existing named region created by another process.
func Bind[T any](name string, count int) (*Region[T], error) {
	p := path(name)
	f, err := os.OpenFile(p, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shared: bind %q: %w", name, err)
	}
	data, err := mapFile[T](f, count)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Region[T]{name: name, owner: false, file: f, data: data}, nil
}

// Len returns the number of T-sized elements in the region.
func (r *Region[T]) Len() int {
	return len(r.data)
}

// At returns a copy of the element at index i. Out-of-range reads are
// clamped to the zero value (spec.md 4.1 documents out-of-range access as
// silently ignored rather than a panic).
func (r *Region[T]) At(i int) T {
	if i < 0 || i >= len(r.data) {
		var zero T
		return zero
	}
	return r.data[i]
}

// AtMut returns a pointer to the element at index i, or nil if out of range.
func (r *Region[T]) AtMut(i int) *T {
	if i < 0 || i >= len(r.data) {
		return nil
	}
	return &r.data[i]
}

// Slice returns a view of n elements starting at i, clamped to the region's
// bounds.
func (r *Region[T]) Slice(i, n int) []T {
	if i < 0 || i >= len(r.data) {
		return nil
	}
	end := i + n
	if end > len(r.data) {
		end = len(r.data)
	}
	return r.data[i:end]
}

// Write stores v at index i; out-of-range writes are silently ignored.
func (r *Region[T]) Write(i int, v T) {
	if i < 0 || i >= len(r.data) {
		return
	}
	r.data[i] = v
}

// WriteSlice copies vs into the region starting at i, truncating to fit.
func (r *Region[T]) WriteSlice(i int, vs []T) {
	if i < 0 || i >= len(r.data) {
		return
	}
	n := copy(r.data[i:], vs)
	_ = n
}

// Name reports the region's external (ABI) name.
func (r *Region[T]) Name() string {
	return r.name
}

// Owner reports whether the calling process created (and thus owns) this
// region, as opposed to having bound an existing one.
func (r *Region[T]) Owner() bool {
	return r.owner
}

// Close unmaps the region. If the calling process is the owner, the named
// backing file is also unlinked - only the creator unlinks, per spec.md 4.1
// and 9 (the original source unlinks unconditionally on both sides, which is
// a bug this implementation corrects).
func (r *Region[T]) Close() error {
	if r.data != nil {
		var zero T
		elemSize := int(unsafe.Sizeof(zero))
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&r.data[0])), elemSize*len(r.data))
		if err := unix.Munmap(raw); err != nil {
			return fmt.Errorf("shared: munmap %q: %w", r.name, err)
		}
		r.data = nil
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("shared: close %q: %w", r.name, err)
	}
	if r.owner {
		if err := os.Remove(path(r.name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shared: unlink %q: %w", r.name, err)
		}
	}
	return nil
}
