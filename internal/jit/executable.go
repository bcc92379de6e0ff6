// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package jit hosts freshly emitted machine code in anonymous executable
// memory and invokes it in-process (spec.md §2's C5). Memory is never both
// writable and executable at once: code is copied in while the mapping is
// R/W, then the mapping is flipped to R/X before it is ever called.
package jit

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Executable owns one mmap'd code region. The zero value is not usable;
// construct with Load.
type Executable struct {
	mem      []byte
	entry    int
	released bool
}

// Load copies code into a fresh anonymous mapping, marks it read+execute,
// and records entryOffset as the byte offset of the function to invoke
// (spec.md §5).
func Load(code []byte, entryOffset int) (*Executable, error) {
	if len(code) == 0 {
		return nil, errors.New("jit: empty code buffer")
	}

	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "jit: mmap")
	}
	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(err, "jit: mprotect")
	}

	return &Executable{mem: mem, entry: entryOffset}, nil
}

// Call invokes the loaded entry point as a zero-argument function under
// the host's C ABI and returns its integer result. Calling a released
// Executable panics — that is a use-after-free in the host program, not a
// recoverable condition.
func (x *Executable) Call() int64 {
	if x.released {
		panic("jit: Call on a released Executable")
	}
	// a Go func value is, in memory, a pointer to a closure record whose
	// first word is the code address; building that record (struct{ *byte })
	// over our own code and taking a pointer to it turns raw bytes into a
	// callable Go value.
	codePtr := unsafe.Pointer(&struct{ *byte }{&x.mem[x.entry]})
	fn := *(*func() int64)(unsafe.Pointer(&codePtr))
	return fn()
}

// Release unmaps the code region. Safe to call more than once; callers are
// expected to defer it immediately after Load succeeds (spec.md §5's
// "released on every exit path").
func (x *Executable) Release() error {
	if x.released {
		return nil
	}
	x.released = true
	return unix.Munmap(x.mem)
}
