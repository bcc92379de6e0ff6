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
package codegen

// physical x86-64 general-purpose register encodings, trimmed from the
// teacher's arch_x86.go (which also carries 32/16/8-bit aliases and the
// XMM file — unneeded here since every value in this language is an
// 8-byte integer or a zero-extended boolean).
const (
	rax = 0
	rcx = 1
	rdx = 2
	rbx = 3
	rsp = 4
	rbp = 5
	rsi = 6
	rdi = 7
	r8  = 8
	r9  = 9
	r10 = 10
	r11 = 11
	r12 = 12
	r13 = 13
	r14 = 14
	r15 = 15
)

// argRegs64 is the System V AMD64 integer-argument register sequence
// (spec.md §6). The first 6 integer arguments travel in registers; the
// rest are spilled to the stack (SPEC_FULL.md §4's completion of
// spec.md's single-argument prototype).
var argRegs64 = []int{rdi, rsi, rdx, rcx, r8, r9}
