package asm

import (
	"fmt"

	"github.com/sarchlab/modelmachine/cu"
)

// MnemonicSpec is one assembly mnemonic's encoding: its opcode, the total
// width of the instruction it produces, and the operand fields it expects
// in source order.
type MnemonicSpec struct {
	Opcode          cu.Opcode
	InstructionBits int
	Operands        []Operand
}

// Dialect is one CPU's assembly language: its mnemonic table plus the
// geometry (word/address/IR widths) needed to place instructions and
// .word literals into RAM.
type Dialect struct {
	CPU         string
	WordBits    int
	AddressBits int
	IRBits      int
	Mnemonics   map[string]MnemonicSpec
	Indexed     bool // mm-m: `label[rN]` accepted on memory operands
}

var dialects map[string]*Dialect

func init() {
	dialects = map[string]*Dialect{}
	for _, d := range []*Dialect{
		mm0Dialect(), mm1Dialect(), mm2Dialect(), mm3Dialect(),
		mmvDialect(), mmsDialect(), mmrDialect(true), mmrDialect(false),
	} {
		dialects[d.CPU] = d
	}
}

// Lookup returns the named CPU's dialect, or an error if unknown.
func Lookup(cpuName string) (*Dialect, error) {
	d, ok := dialects[cpuName]
	if !ok {
		return nil, fmt.Errorf("asm: unknown cpu %q", cpuName)
	}
	return d, nil
}

func abs16(offset int) Field { return Field{Offset: offset, Width: 16, Mode: Absolute} }

// mm0Dialect: opcode(8) ∥ imm(8), one word always.
func mm0Dialect() *Dialect {
	const addressBits, wordBits = 16, 16
	imm := func(mode Mode) []Operand { return []Operand{{Field: Field{Offset: 0, Width: 8, Mode: mode}}} }
	none := func() []Operand { return nil }

	m := map[string]MnemonicSpec{
		"halt":  {Opcode: cu.Halt, InstructionBits: wordBits, Operands: none()},
		"push":  {Opcode: cu.PushMM0, InstructionBits: wordBits, Operands: imm(ImmediateSigned)},
		"pop":   {Opcode: cu.Pop, InstructionBits: wordBits, Operands: none()},
		"dup":   {Opcode: cu.Dup, InstructionBits: wordBits, Operands: none()},
		"sswap": {Opcode: cu.SSwap, InstructionBits: wordBits, Operands: none()},
	}
	for name, op := range map[string]cu.Opcode{
		"add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv, "comp": cu.Comp,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: imm(ImmediateUnsigned)}
	}
	for name, op := range map[string]cu.Opcode{
		"jump": cu.Jump, "jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: imm(PCRelative)}
	}
	return &Dialect{CPU: "mm-0", WordBits: wordBits, AddressBits: addressBits, IRBits: wordBits, Mnemonics: m}
}

// mm1Dialect: opcode(8) ∥ A(16), one-address accumulator machine.
func mm1Dialect() *Dialect {
	const addressBits = 16
	const wordBits = 8 + addressBits
	one := func() []Operand { return []Operand{{Field: abs16(0)}} }

	m := map[string]MnemonicSpec{
		"halt":  {Opcode: cu.Halt, InstructionBits: wordBits},
		"move":  {Opcode: cu.Move, InstructionBits: wordBits, Operands: one()},
		"store": {Opcode: cu.Store, InstructionBits: wordBits, Operands: one()},
		"swap":  {Opcode: cu.Swap, InstructionBits: wordBits, Operands: one()},
		"comp":  {Opcode: cu.Comp, InstructionBits: wordBits, Operands: one()},
	}
	for name, op := range map[string]cu.Opcode{
		"add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: one()}
	}
	for name, op := range map[string]cu.Opcode{
		"jump": cu.Jump, "jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: one()}
	}
	return &Dialect{CPU: "mm-1", WordBits: wordBits, AddressBits: addressBits, IRBits: wordBits, Mnemonics: m}
}

// two-address table shared by mm-2 and mm-v's wide instructions:
// opcode(8) ∥ A1(16) ∥ A2(16). a1 is dest/operand1, a2 is src/operand2
// and, for jumps, the branch target.
func twoAddressMnemonics(wordBits int) map[string]MnemonicSpec {
	both := func() []Operand { return []Operand{{Field: abs16(16)}, {Field: abs16(0)}} }
	target := func() []Operand { return []Operand{{Field: abs16(0)}} }

	m := map[string]MnemonicSpec{
		"move": {Opcode: cu.Move, InstructionBits: wordBits, Operands: both()},
		"comp": {Opcode: cu.Comp, InstructionBits: wordBits, Operands: both()},
		"jump": {Opcode: cu.Jump, InstructionBits: wordBits, Operands: target()},
	}
	for name, op := range map[string]cu.Opcode{
		"add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: both()}
	}
	for name, op := range map[string]cu.Opcode{
		"jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: both()}
	}
	return m
}

// mm2Dialect: opcode(8) ∥ A1(16) ∥ A2(16), one word always, word-addressed.
func mm2Dialect() *Dialect {
	const addressBits = 16
	const wordBits = 8 + 2*addressBits
	m := twoAddressMnemonics(wordBits)
	m["halt"] = MnemonicSpec{Opcode: cu.Halt, InstructionBits: wordBits}
	return &Dialect{CPU: "mm-2", WordBits: wordBits, AddressBits: addressBits, IRBits: wordBits, Mnemonics: m}
}

// mm3Dialect: opcode(8) ∥ A1(16) ∥ A2(16) ∥ A3(16), three-address.
func mm3Dialect() *Dialect {
	const addressBits = 16
	const wordBits = 8 + 3*addressBits
	two := func() []Operand { return []Operand{{Field: abs16(32)}, {Field: abs16(16)}} }
	three := func() []Operand { return []Operand{{Field: abs16(32)}, {Field: abs16(16)}, {Field: abs16(0)}} }
	moveOperands := func() []Operand { return []Operand{{Field: abs16(32)}, {Field: abs16(0)}} }
	target := func() []Operand { return []Operand{{Field: abs16(0)}} }

	m := map[string]MnemonicSpec{
		"halt": {Opcode: cu.Halt, InstructionBits: wordBits},
		"move": {Opcode: cu.Move, InstructionBits: wordBits, Operands: moveOperands()},
		"comp": {Opcode: cu.Comp, InstructionBits: wordBits, Operands: two()},
		"jump": {Opcode: cu.Jump, InstructionBits: wordBits, Operands: target()},
	}
	for name, op := range map[string]cu.Opcode{
		"add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: three()}
	}
	for name, op := range map[string]cu.Opcode{
		"jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: wordBits, Operands: three()}
	}
	return &Dialect{CPU: "mm-3", WordBits: wordBits, AddressBits: addressBits, IRBits: wordBits, Mnemonics: m}
}

// mmvDialect: byte-addressed, variable-width mm-2 layout. halt is 1 byte,
// jumps are 3 bytes (opcode + 1 address), everything else is 5 bytes
// (opcode + A1 + A2), matching cu.CUV.InstructionBits.
func mmvDialect() *Dialect {
	const addressBits = 16
	const opBits = 8
	m := map[string]MnemonicSpec{"halt": {Opcode: cu.Halt, InstructionBits: opBits}}
	for name, spec := range twoAddressMnemonics(opBits + 2*addressBits) {
		if name == "jump" || cu.CondJumpOpcodes[spec.Opcode] {
			spec.InstructionBits = opBits + addressBits
			spec.Operands = []Operand{{Field: abs16(0)}}
		}
		m[name] = spec
	}
	return &Dialect{CPU: "mm-v", WordBits: 8, AddressBits: addressBits, IRBits: opBits + 2*addressBits, Mnemonics: m}
}

// mmsDialect: mm-s, a zero-address stack machine. push/pop/jumps carry a
// 16-bit address, everything else is opcode-only.
func mmsDialect() *Dialect {
	const addressBits = 16
	const irBits = 8 + addressBits
	addr := func() []Operand { return []Operand{{Field: abs16(0)}} }

	m := map[string]MnemonicSpec{
		"halt":  {Opcode: cu.Halt, InstructionBits: 8},
		"push":  {Opcode: cu.Push, InstructionBits: irBits, Operands: addr()},
		"pop":   {Opcode: cu.Pop, InstructionBits: irBits, Operands: addr()},
		"dup":   {Opcode: cu.Dup, InstructionBits: 8},
		"sswap": {Opcode: cu.SSwap, InstructionBits: 8},
		"comp":  {Opcode: cu.Comp, InstructionBits: 8},
		"jump":  {Opcode: cu.Jump, InstructionBits: irBits, Operands: addr()},
	}
	for name, op := range map[string]cu.Opcode{
		"add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: 8}
	}
	for name, op := range map[string]cu.Opcode{
		"jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: irBits, Operands: addr()}
	}
	return &Dialect{CPU: "mm-s", WordBits: 8, AddressBits: addressBits, IRBits: irBits, Mnemonics: m}
}

// mmrDialect builds mm-r (isM=false) or mm-m (isM=true): a sixteen
// general-register machine. Register ops are opcode(8) ∥ R(4) ∥ R'(4);
// memory ops are opcode(8) ∥ R(4) ∥ M(4) ∥ A(16).
func mmrDialect(isM bool) *Dialect {
	const addressBits = 16
	const registerBits = 8 + 4 + 4
	const memoryBits = 8 + 4 + 4 + addressBits

	// Memory-op fields are relative to the 32-bit instruction's own frame
	// (opcode(8) R(4) M(4) A(16)); register-op fields are relative to the
	// 16-bit instruction's own frame (opcode(8) R(4) R'(4)) — cu.CUR
	// decodes both at the same *IR* offsets only because fetch
	// left-justifies the shorter register-op encoding by 16 bits first.
	memDestField := Field{Offset: 20, Width: 4, Mode: Register}
	memModField := Field{Offset: 16, Width: 4, Mode: Register}
	addrField := Field{Offset: 0, Width: 16, Mode: Absolute}
	regDestField := Field{Offset: 4, Width: 4, Mode: Register}
	regSrcField := Field{Offset: 0, Width: 4, Mode: Register}

	memOperand := func() Operand {
		op := Operand{Field: addrField}
		if isM {
			idx := memModField
			op.Index = &idx
		}
		return op
	}
	mem2 := func() []Operand { return []Operand{{Field: memDestField}, memOperand()} }
	mem1 := func() []Operand { return []Operand{memOperand()} }
	reg2 := func() []Operand { return []Operand{{Field: regDestField}, {Field: regSrcField}} }

	m := map[string]MnemonicSpec{
		"halt":  {Opcode: cu.Halt, InstructionBits: memoryBits},
		"move":  {Opcode: cu.Move, InstructionBits: memoryBits, Operands: mem2()},
		"store": {Opcode: cu.Store, InstructionBits: memoryBits, Operands: mem2()},
		"jump":  {Opcode: cu.Jump, InstructionBits: memoryBits, Operands: mem1()},
		"rmove": {Opcode: cu.RMove, InstructionBits: registerBits, Operands: reg2()},
		"rcomp": {Opcode: cu.RComp, InstructionBits: registerBits, Operands: reg2()},
	}
	if isM {
		m["addr"] = MnemonicSpec{Opcode: cu.Addr, InstructionBits: memoryBits, Operands: mem2()}
	}
	for name, op := range map[string]cu.Opcode{
		"radd": cu.RAdd, "rsub": cu.RSub, "rsmul": cu.RSMul, "rsdiv": cu.RSDiv,
		"rumul": cu.RUMul, "rudiv": cu.RUDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: registerBits, Operands: reg2()}
	}
	for name, op := range map[string]cu.Opcode{
		"comp": cu.Comp, "add": cu.Add, "sub": cu.Sub, "smul": cu.SMul, "sdiv": cu.SDiv,
		"umul": cu.UMul, "udiv": cu.UDiv,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: memoryBits, Operands: mem2()}
	}
	for name, op := range map[string]cu.Opcode{
		"jeq": cu.Jeq, "jneq": cu.Jneq,
		"sjl": cu.SJl, "sjgeq": cu.SJgeq, "sjleq": cu.SJleq, "sjg": cu.SJg,
		"ujl": cu.UJl, "ujgeq": cu.UJgeq, "ujleq": cu.UJleq, "ujg": cu.UJg,
	} {
		m[name] = MnemonicSpec{Opcode: op, InstructionBits: memoryBits, Operands: mem1()}
	}

	name := "mm-r"
	if isM {
		name = "mm-m"
	}
	return &Dialect{CPU: name, WordBits: 16, AddressBits: addressBits, IRBits: memoryBits, Mnemonics: m, Indexed: isM}
}
