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

// Package codegen is the Machine Emitter (spec.md §2's C4): it walks a
// program's LLIR and produces a single buffer of raw x86-64 machine code
// under the System V AMD64 ABI, resolving both intra-function branches and
// inter-function calls via a two-pass fixup scheme (spec.md §4.4-4.5).
package codegen

import (
	"encoding/binary"

	"jitlang/internal/llir"
	"jitlang/internal/utils"
)

// branchFixup records a not-yet-resolved rel32 field that targets another
// instruction within the *same* function, addressed by LLIR instruction
// index (spec.md §4.4: "a flat index, not a pointer, survives
// reallocation and is what the Lowerer already produces").
type branchFixup struct {
	fieldOffset int // byte offset of the rel32 field being patched
	targetInstr int // LLIR instruction index the branch targets
}

// callFixup records a not-yet-resolved rel32 field that targets the entry
// point of another function, addressed by function index. These are only
// resolved once, after every function has been emitted (spec.md §4.5).
type callFixup struct {
	fieldOffset int
	targetFn    int
}

// Emitter accumulates machine code for a whole program. One Emitter is
// used for exactly one compilation; it is not safe for concurrent use, the
// same discipline the teacher's own Assembler followed.
type Emitter struct {
	buf []byte

	// functionOffset[i] is the byte offset of function i's entry point,
	// populated as each function is emitted.
	functionOffset []int

	// positions[instrIdx] is the byte offset at which LLIR instruction
	// instrIdx's encoding begins, within the function currently being
	// emitted. Cleared at the start of every function.
	positions []int

	// frameSize is the current function's aligned stack frame size in
	// bytes, used to turn a slot index into an [rbp+disp32] address.
	// Set once per function, at the top of Emit.
	frameSize int32

	branchFixups []branchFixup
	callFixups   []callFixup

	// emitted guards against emitting the same function index twice, which
	// would silently corrupt functionOffset.
	emitted *utils.Set[int]
}

func NewEmitter() *Emitter {
	return &Emitter{emitted: utils.NewSet[int]()}
}

// Code returns the accumulated machine code buffer. Valid only after
// Emit has been called for every function in the program.
func (e *Emitter) Code() []byte {
	return e.buf
}

// EntryOffset returns the byte offset of the i'th emitted function, for
// locating the program's entry point (spec.md §5, C5).
func (e *Emitter) EntryOffset(fnIndex int) int {
	return e.functionOffset[fnIndex]
}

func (e *Emitter) emitByte(b byte)   { e.buf = append(e.buf, b) }
func (e *Emitter) emitBytes(bs ...byte) { e.buf = append(e.buf, bs...) }

func (e *Emitter) emitImm32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Emitter) emitImm64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Emitter) pos() int { return len(e.buf) }

// --- general addressing-mode encoders -------------------------------------
//
// Every local slot and incoming stack argument is addressed relative to
// rbp, not the (frequently moving) rsp: a call site pushes stack arguments
// and may pad rsp before the call is actually made, and slot addresses
// read or written while building those arguments must stay valid no
// matter how far rsp has wandered in the meantime. rbp is fixed for the
// entire body of a function (set once in the prologue, restored once in
// the epilogue), so [rbp+disp32] is the only addressing mode used for
// slots. reg is the full 0-15 x86-64 register encoding (register.go), so
// the same two helpers serve both the fixed rax/rcx scratch pair and the
// six System V argument registers alike.

// loadFromRbpOffset emits `mov reg64, [rbp+offset]`.
func (e *Emitter) loadFromRbpOffset(reg int, offset int32) {
	e.movRbpOffset(0x8B, reg, offset)
}

// storeToRbpOffset emits `mov [rbp+offset], reg64`.
func (e *Emitter) storeToRbpOffset(offset int32, reg int) {
	e.movRbpOffset(0x89, reg, offset)
}

// movRbpOffset needs no SIB byte: rbp is encoded directly in ModRM.rm with
// mod=10 (disp32, no SIB), unlike rsp which always requires one.
func (e *Emitter) movRbpOffset(opcode byte, reg int, offset int32) {
	rex := byte(0x48) | byte((reg>>3)&1)<<2       // REX.W + REX.R
	modrm := byte(0x80) | byte(reg&7)<<3 | byte(rbp&7) // mod=10, reg, rm=101(rbp)
	e.emitBytes(rex, opcode, modrm)
	e.emitImm32(offset)
}

// slotOffset returns slot i's address relative to rbp: rbp sits frameSize
// bytes above the first slot, which was pushed at [rsp] right after the
// prologue's `sub rsp, frameSize`.
func (e *Emitter) slotOffset(slot llir.Register) int32 {
	return int32(slot)*8 - e.frameSize
}

func (e *Emitter) loadSlot(reg int, slot llir.Register) { e.loadFromRbpOffset(reg, e.slotOffset(slot)) }
func (e *Emitter) storeSlot(slot llir.Register, reg int) { e.storeToRbpOffset(e.slotOffset(slot), reg) }

// pushReg emits `push reg64`.
func (e *Emitter) pushReg(reg int) {
	if reg >= 8 {
		e.emitByte(0x41)
	}
	e.emitByte(0x50 + byte(reg&7))
}

// subRspImm32 emits `sub rsp, imm32`.
func (e *Emitter) subRspImm32(n int32) {
	e.emitBytes(0x48, 0x81, 0xEC)
	e.emitImm32(n)
}

// addRspImm32 emits `add rsp, imm32`.
func (e *Emitter) addRspImm32(n int32) {
	e.emitBytes(0x48, 0x81, 0xC4)
	e.emitImm32(n)
}

// --- function emission -----------------------------------------------------

// Emit lays down one function's prologue, body, and epilogue, appending to
// the Emitter's running buffer, and records its entry offset. fn.RegisterCount
// virtual registers each occupy one 8-byte stack slot (spec.md §4.4).
func (e *Emitter) Emit(fnIndex int, fn *llir.Function) {
	utils.Assert(e.emitted.Add(fnIndex), "function index %d emitted twice", fnIndex)

	for len(e.functionOffset) <= fnIndex {
		e.functionOffset = append(e.functionOffset, 0)
	}
	e.functionOffset[fnIndex] = e.pos()

	e.positions = make([]int, len(fn.Body))
	e.frameSize = int32(utils.Align16(fn.RegisterCount * 8))

	// prologue: push rbp; mov rbp, rsp; sub rsp, frameSize
	e.emitByte(0x55)
	e.emitBytes(0x48, 0x89, 0xE5)
	e.subRspImm32(e.frameSize)

	e.emitParameterSpills(fn)

	localBranchFixups := e.branchFixups
	e.branchFixups = nil
	for idx, instr := range fn.Body {
		e.positions[idx] = e.pos()
		e.emitInstr(fnIndex, instr)
	}

	// resolve this function's intra-function branch fixups against the
	// positions table just built, then discard both (spec.md §4.4: the
	// table is per-function and does not survive to the next one).
	for _, fx := range e.branchFixups {
		e.patchRel32(fx.fieldOffset, e.positions[fx.targetInstr])
	}
	e.branchFixups = localBranchFixups
	e.positions = nil
}

// emitParameterSpills copies each incoming parameter into its local slot:
// the first six arrive in argRegs64, the rest on the caller's stack at
// [rbp+16+8*(i-6)] (SPEC_FULL.md §4's extension past a single rdi-only
// parameter): +8 for the pushed return address, +8 for the pushed rbp.
func (e *Emitter) emitParameterSpills(fn *llir.Function) {
	for i := range fn.Parameters {
		if i < len(argRegs64) {
			e.storeSlot(llir.Register(i), argRegs64[i])
			continue
		}
		callerOffset := int32(16 + 8*(i-len(argRegs64)))
		e.loadFromRbpOffset(rax, callerOffset)
		e.storeSlot(llir.Register(i), rax)
	}
}

func (e *Emitter) patchRel32(fieldOffset int, targetByte int) {
	rel := int32(targetByte - (fieldOffset + 4))
	binary.LittleEndian.PutUint32(e.buf[fieldOffset:fieldOffset+4], uint32(rel))
}

func (e *Emitter) emitInstr(fnIndex int, instr llir.Instr) {
	switch instr.Op {
	case llir.OpMove:
		e.loadSlot(rax, instr.Src)
		e.storeSlot(instr.Dst, rax)

	case llir.OpMoveImmI64:
		e.emitBytes(0x48, 0xB8) // movabs rax, imm64
		e.emitImm64(instr.Imm)
		e.storeSlot(instr.Dst, rax)

	case llir.OpJump:
		e.emitByte(0xE9) // jmp rel32
		fieldOffset := e.pos()
		e.emitImm32(0)
		e.branchFixups = append(e.branchFixups, branchFixup{fieldOffset, instr.Target})

	case llir.OpJumpOnZero:
		e.loadSlot(rax, instr.Cond)
		e.emitBytes(0x48, 0x85, 0xC0) // test rax, rax
		e.emitBytes(0x0F, 0x84)       // jz rel32
		fieldOffset := e.pos()
		e.emitImm32(0)
		e.branchFixups = append(e.branchFixups, branchFixup{fieldOffset, instr.Target})

	case llir.OpAdd:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x48, 0x01, 0xC8) // add rax, rcx
		e.storeSlot(instr.Dst, rax)

	case llir.OpSub:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x48, 0x29, 0xC8) // sub rax, rcx
		e.storeSlot(instr.Dst, rax)

	case llir.OpMul:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x48, 0xF7, 0xE1) // mul rcx (unsigned, rax *= rcx)
		e.storeSlot(instr.Dst, rax)

	case llir.OpDiv:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x31, 0xD2)       // xor edx, edx
		e.emitBytes(0x48, 0xF7, 0xF1) // div rcx (unsigned, rax = rax/rcx)
		e.storeSlot(instr.Dst, rax)

	case llir.OpEquals:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x48, 0x39, 0xC8) // cmp rax, rcx
		e.emitBytes(0x0F, 0x94, 0xC0) // sete al
		e.emitBytes(0x48, 0x0F, 0xB6, 0xC0) // movzx rax, al
		e.storeSlot(instr.Dst, rax)

	case llir.OpNotEqual:
		e.loadSlot(rax, instr.L)
		e.loadSlot(rcx, instr.R)
		e.emitBytes(0x48, 0x39, 0xC8)       // cmp rax, rcx
		e.emitBytes(0x0F, 0x95, 0xC0)       // setne al
		e.emitBytes(0x48, 0x0F, 0xB6, 0xC0) // movzx rax, al
		e.storeSlot(instr.Dst, rax)

	case llir.OpReturn:
		if instr.HasVal {
			e.loadSlot(rax, instr.Value)
		}
		e.emitBytes(0x48, 0x89, 0xEC) // mov rsp, rbp
		e.emitByte(0x5D)              // pop rbp
		e.emitByte(0xC3)              // ret

	case llir.OpCall:
		e.emitCall(fnIndex, instr)

	default:
		utils.ShouldNotReachHere()
	}
}

// emitCall extends spec.md §4.5's single-rdi-argument call to the full
// System V integer ABI: up to six arguments travel in argRegs64, the rest
// are pushed right-to-left, with padding inserted when an odd number of
// stack arguments would otherwise misalign the call (spec.md §6's 16-byte
// alignment invariant). Every argument is read out of its slot via
// loadSlot, which addresses [rbp+disp32]; rbp never moves while rsp is
// being shuffled by the padding and pushes below, so argument order and
// rsp adjustments can't corrupt each other's reads.
func (e *Emitter) emitCall(callerFn int, instr llir.Instr) {
	regArgs := instr.Args
	var stackArgs []llir.Register
	if len(regArgs) > len(argRegs64) {
		stackArgs = regArgs[len(argRegs64):]
		regArgs = regArgs[:len(argRegs64)]
	}

	padded := len(stackArgs)%2 != 0
	if padded {
		e.subRspImm32(8)
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		e.loadSlot(rax, stackArgs[i])
		e.pushReg(rax)
	}
	for i, r := range regArgs {
		e.loadSlot(argRegs64[i], r)
	}

	e.emitByte(0xE8) // call rel32
	fieldOffset := e.pos()
	e.emitImm32(0)
	e.callFixups = append(e.callFixups, callFixup{fieldOffset, instr.FnIdx})

	if stack := len(stackArgs) * 8; stack > 0 || padded {
		extra := int32(0)
		if padded {
			extra = 8
		}
		e.addRspImm32(int32(stack) + extra)
	}

	e.storeSlot(instr.Dst, rax)
}

// ResolveCalls patches every recorded call-site rel32 against the final
// function offset table. Must run once, after every function has been
// emitted (spec.md §4.5) — unlike branch fixups, call fixups are never
// cleared mid-program because a call may target a function emitted later.
func (e *Emitter) ResolveCalls() {
	for _, fx := range e.callFixups {
		e.patchRel32(fx.fieldOffset, e.functionOffset[fx.targetFn])
	}
	e.callFixups = nil
}
