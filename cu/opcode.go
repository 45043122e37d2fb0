package cu

import "github.com/sarchlab/modelmachine/alu"

// Opcode is the top OpcodeBits of every instruction word, shared across
// all seven control-unit variants. Not every variant accepts every value;
// each variant's InstructionBits rejects the ones it doesn't own.
type Opcode byte

// OpcodeBits is the width of the opcode field within every instruction.
const OpcodeBits = 8

const (
	Move  Opcode = 0x00 // alias: Load
	Load  Opcode = 0x00
	Add   Opcode = 0x01
	Sub   Opcode = 0x02
	SMul  Opcode = 0x03
	SDiv  Opcode = 0x04
	Comp  Opcode = 0x05
	Store Opcode = 0x10
	Addr  Opcode = 0x11 // mm-m only
	UMul  Opcode = 0x13
	UDiv  Opcode = 0x14

	Swap  Opcode = 0x20 // alias: RMove
	RMove Opcode = 0x20
	RAdd  Opcode = 0x21
	RSub  Opcode = 0x22
	RSMul Opcode = 0x23
	RSDiv Opcode = 0x24
	RComp Opcode = 0x25
	RUMul Opcode = 0x33
	RUDiv Opcode = 0x34

	Push  Opcode = 0x5A // mm-s; mm-0 uses 0x40, see mm-0's own table
	Pop   Opcode = 0x5B
	Dup   Opcode = 0x5C
	SSwap Opcode = 0x5D

	PushMM0 Opcode = 0x40

	Jump  Opcode = 0x80
	Jeq   Opcode = 0x81
	Jneq  Opcode = 0x82
	SJl   Opcode = 0x83
	SJgeq Opcode = 0x84
	SJleq Opcode = 0x85
	SJg   Opcode = 0x86
	UJl   Opcode = 0x93
	UJgeq Opcode = 0x94
	UJleq Opcode = 0x95
	UJg   Opcode = 0x96

	ReservedUnknown Opcode = 0x98
	Halt            Opcode = 0x99
)

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "Opcode(unknown)"
}

var opcodeNames = map[Opcode]string{
	Move: "move", Add: "add", Sub: "sub", SMul: "smul", SDiv: "sdiv", Comp: "comp",
	Store: "store", Addr: "addr", UMul: "umul", UDiv: "udiv",
	Swap: "swap", RAdd: "radd", RSub: "rsub", RSMul: "rsmul", RSDiv: "rsdiv", RComp: "rcomp",
	RUMul: "rumul", RUDiv: "rudiv",
	Push: "push", Pop: "pop", Dup: "dup", SSwap: "sswap",
	Jump: "jump", Jeq: "jeq", Jneq: "jneq", SJl: "sjl", SJgeq: "sjgeq", SJleq: "sjleq", SJg: "sjg",
	UJl: "ujl", UJgeq: "ujgeq", UJleq: "ujleq", UJg: "ujg",
	ReservedUnknown: "reserved_unknown", Halt: "halt",
}

// DwordWriteBack is the set of opcodes whose write-back also stores the
// divmod remainder alongside the quotient: a second RAM word for
// mm-2/mm-3/mm-v's memory-to-memory form, or register R+1 for mm-r/mm-m's register (rsdiv,
// rudiv) and memory-addressed (sdiv, udiv) forms.
var DwordWriteBack = map[Opcode]bool{SDiv: true, UDiv: true, RSDiv: true, RUDiv: true}

// ArithmeticOpcodes are the opcodes that read R1/R2 and write S via the ALU.
var ArithmeticOpcodes = map[Opcode]bool{
	Add: true, Sub: true, SMul: true, SDiv: true, UMul: true, UDiv: true,
}

// CondJumpOpcodes are the ten conditional jumps.
var CondJumpOpcodes = map[Opcode]bool{
	Jeq: true, Jneq: true, SJl: true, SJgeq: true, SJleq: true, SJg: true,
	UJl: true, UJgeq: true, UJleq: true, UJg: true,
}

// JumpOpcodes is CondJumpOpcodes plus the unconditional jump.
var JumpOpcodes = func() map[Opcode]bool {
	m := map[Opcode]bool{Jump: true}
	for k := range CondJumpOpcodes {
		m[k] = true
	}
	return m
}()

// RegisterArithOpcodes are mm-r/mm-m's register-to-register arithmetic ops.
var RegisterArithOpcodes = map[Opcode]bool{
	RAdd: true, RSub: true, RSMul: true, RSDiv: true, RUMul: true, RUDiv: true,
}

// RegisterOpcodes is RegisterArithOpcodes plus rmove/rcomp.
var RegisterOpcodes = func() map[Opcode]bool {
	m := map[Opcode]bool{RMove: true, RComp: true}
	for k := range RegisterArithOpcodes {
		m[k] = true
	}
	return m
}()

// condJumpSpec records the (signed, comp, equal) triple dispatchCommon
// feeds to alu.CondJump for each conditional-jump opcode, per spec.md
// §4.4 / cu/control_unit.py's _execute.
type condJumpSpec struct {
	signed bool
	comp   alu.Comparison
	equal  bool
}

var condJumps = map[Opcode]condJumpSpec{
	Jeq:   {signed: false, comp: alu.Equal, equal: true},
	Jneq:  {signed: false, comp: alu.Equal, equal: false},
	SJl:   {signed: true, comp: alu.Less, equal: false},
	SJgeq: {signed: true, comp: alu.Greater, equal: true},
	SJleq: {signed: true, comp: alu.Less, equal: true},
	SJg:   {signed: true, comp: alu.Greater, equal: false},
	UJl:   {signed: false, comp: alu.Less, equal: false},
	UJgeq: {signed: false, comp: alu.Greater, equal: true},
	UJleq: {signed: false, comp: alu.Less, equal: true},
	UJg:   {signed: false, comp: alu.Greater, equal: false},
}
