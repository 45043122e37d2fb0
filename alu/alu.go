// Package alu implements the flag-producing arithmetic/logic unit shared by
// every control unit. The ALU is stateless except for a reference to the
// register file and the four register-file names it operates through; it
// never touches RAM.
package alu

import (
	"math/big"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/register"
)

// Flags are bit positions within the FLAGS register.
const (
	CF uint64 = 1 << iota // carry / unsigned overflow
	OF                     // signed overflow
	SF                     // sign (negative result)
	ZF                     // zero result
	HALT                   // machine halted
)

// AluRegisters names the four register-file slots the ALU operates
// through. Different ISAs alias these to different concrete registers:
// mm-1's accumulator plays both R1 and S, mm-3 keeps S distinct.
type AluRegisters struct {
	R1, R2, S, RES register.Name
}

// ZeroDivisionError reports a divide or modulus by zero, the Go analogue
// of AluZeroDivisionError. It satisfies the control unit's HaltError
// interface structurally via IsHaltError.
type ZeroDivisionError struct{}

func (e *ZeroDivisionError) Error() string  { return "division by zero" }
func (e *ZeroDivisionError) IsHaltError()   {}

// ALU is the arithmetic/logic unit. OperandBits is the width of R1, R2, S,
// RES and FLAGS; AddressBits is the width of PC and ADDR.
type ALU struct {
	regs        *register.File
	names       AluRegisters
	OperandBits int
	AddressBits int
}

// New builds an ALU bound to regs, declaring R1/R2/S/RES/FLAGS at
// operandBits and PC/ADDR at addressBits (idempotently — ISAs that alias
// multiple AluRegisters slots to the same concrete name, e.g. mm-1's S,
// simply re-declare that name at the same width).
func New(regs *register.File, names AluRegisters, operandBits, addressBits int) (*ALU, error) {
	a := &ALU{regs: regs, names: names, OperandBits: operandBits, AddressBits: addressBits}
	for _, n := range []register.Name{names.R1, names.R2, names.S, names.RES, register.FLAGS} {
		if err := regs.Add(n, operandBits); err != nil {
			return nil, err
		}
	}
	for _, n := range []register.Name{register.PC, register.ADDR} {
		if err := regs.Add(n, addressBits); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *ALU) get(n register.Name) cell.Cell { return a.regs.MustGet(n) }

func (a *ALU) setS(c cell.Cell) {
	if err := a.regs.Set(a.names.S, c); err != nil {
		panic(err)
	}
}

func (a *ALU) setRES(c cell.Cell) {
	if err := a.regs.Set(a.names.RES, c); err != nil {
		panic(err)
	}
}

// setFlags computes ZF/SF from the current value of S and OF/CF by
// comparing S's signed/unsigned views against the unbounded-precision
// ideal results, per the flag rule in spec.md §4.4. big.Int is used
// because the ideal values can exceed int64/uint64 range even though
// every Cell value itself fits in 64 bits (e.g. the true product of two
// 64-bit operands needs up to 128 bits).
func (a *ALU) setFlags(idealSigned, idealUnsigned *big.Int) {
	s := a.get(a.names.S)

	var flags uint64
	if s.Unsigned() == 0 {
		flags |= ZF
	}
	if s.IsNegative() {
		flags |= SF
	}
	if big.NewInt(s.Signed()).Cmp(idealSigned) != 0 {
		flags |= OF
	}
	if new(big.Int).SetUint64(s.Unsigned()).Cmp(idealUnsigned) != 0 {
		flags |= CF
	}

	if err := a.regs.Set(register.FLAGS, cell.FromUnsigned(flags, a.OperandBits)); err != nil {
		panic(err)
	}
}

func bigAdd(x, y *big.Int) *big.Int { return new(big.Int).Add(x, y) }
func bigSub(x, y *big.Int) *big.Int { return new(big.Int).Sub(x, y) }
func bigMul(x, y *big.Int) *big.Int { return new(big.Int).Mul(x, y) }

// bigDivToZero implements round-toward-zero division at unbounded
// precision: sign(x*y) * (|x| / |y|), matching cell.divToZero.
func bigDivToZero(x, y *big.Int) *big.Int {
	res := new(big.Int).Abs(x)
	divisor := new(big.Int).Abs(y)
	res.Quo(res, divisor)
	if x.Sign()*y.Sign() < 0 {
		res.Neg(res)
	}
	return res
}

// setFlagsFromOp computes the unbounded-precision ideal result of op
// applied to both the signed and unsigned views of the two operands, then
// derives OF/CF/SF/ZF by comparing those ideals against the wrapped value
// just written to S. This mirrors ArithmeticLogicUnit.set_flags, which is
// always fed one ideal signed and one ideal unsigned result regardless of
// which view the operation itself used.
func (a *ALU) setFlagsFromOp(op func(x, y *big.Int) *big.Int, r1, r2 cell.Cell) {
	idealSigned := op(big.NewInt(r1.Signed()), big.NewInt(r2.Signed()))
	idealUnsigned := op(new(big.Int).SetUint64(r1.Unsigned()), new(big.Int).SetUint64(r2.Unsigned()))
	a.setFlags(idealSigned, idealUnsigned)
}

// Add: S := R1 + R2.
func (a *ALU) Add() {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	a.setS(r1.Add(r2))
	a.setFlagsFromOp(bigAdd, r1, r2)
}

// Sub: S := R1 - R2.
func (a *ALU) Sub() {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	a.setS(r1.Sub(r2))
	a.setFlagsFromOp(bigSub, r1, r2)
}

// Comp computes R1 - R2 for its flags only, leaving S unchanged — the
// `comp` opcode is sub with the writeback suppressed.
func (a *ALU) Comp() {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	saved := a.get(a.names.S)
	a.setS(r1.Sub(r2))
	a.setFlagsFromOp(bigSub, r1, r2)
	a.setS(saved)
}

// SMul: S := R1 * R2, both read as signed.
func (a *ALU) SMul() {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	a.setS(r1.SMul(r2))
	a.setFlagsFromOp(bigMul, r1, r2)
}

// UMul: S := R1 * R2, both read as unsigned.
func (a *ALU) UMul() {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	a.setS(r1.UMul(r2))
	a.setFlagsFromOp(bigMul, r1, r2)
}

// SDivMod: S := R1 div R2, RES := R1 mod R2, signed, rounding toward zero.
// Returns ZeroDivisionError if R2 is zero.
func (a *ALU) SDivMod() error {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	if r2.Unsigned() == 0 {
		return &ZeroDivisionError{}
	}
	div, mod := r1.SDivMod(r2)
	a.setS(div)
	a.setRES(mod)
	a.setFlagsFromOp(bigDivToZero, r1, r2)
	return nil
}

// UDivMod: S := R1 div R2, RES := R1 mod R2, unsigned.
func (a *ALU) UDivMod() error {
	r1, r2 := a.get(a.names.R1), a.get(a.names.R2)
	if r2.Unsigned() == 0 {
		return &ZeroDivisionError{}
	}
	div, mod := r1.UDivMod(r2)
	a.setS(div)
	a.setRES(mod)
	a.setFlagsFromOp(bigDivToZero, r1, r2)
	return nil
}

// SDiv and SMod are the divide and remainder entry points recovered from
// original_source/modelmachine/alu.py. Each is a thin wrapper over SDivMod
// and runs the full division: either call writes the quotient to S and the
// remainder to RES.
func (a *ALU) SDiv() error { return a.SDivMod() }
func (a *ALU) SMod() error { return a.SDivMod() }

// UDiv and UMod mirror SDiv/SMod for the unsigned case.
func (a *ALU) UDiv() error { return a.UDivMod() }
func (a *ALU) UMod() error { return a.UDivMod() }

// Swap exchanges S and RES.
func (a *ALU) Swap() {
	s, res := a.get(a.names.S), a.get(a.names.RES)
	a.setS(res)
	a.setRES(s)
}

// Move copies the value of the named ALU register into another, both
// drawn from R1/R2/S/RES. Recovered from alu.py's move(); used by control
// units that need to shuttle a value between ALU-visible registers
// outside the flag-producing arithmetic ops.
func (a *ALU) Move(source, dest register.Name) {
	if err := a.regs.Set(dest, a.get(source)); err != nil {
		panic(err)
	}
}

// Jump: PC := ADDR.
func (a *ALU) Jump() {
	addr := a.get(register.ADDR)
	if err := a.regs.Set(register.PC, addr); err != nil {
		panic(err)
	}
}

// Halt sets the HALT flag, overwriting any other flags — matching
// alu.py's halt(), which replaces FLAGS wholesale rather than OR-ing in
// the bit.
func (a *ALU) Halt() {
	if err := a.regs.Set(register.FLAGS, cell.FromUnsigned(HALT, a.OperandBits)); err != nil {
		panic(err)
	}
}

// IsHalted reports whether the HALT flag is set.
func (a *ALU) IsHalted() bool {
	flags := a.get(register.FLAGS)
	return flags.Unsigned()&HALT != 0
}

// Comparison selects the relational operator for CondJump.
type Comparison int

const (
	Less Comparison = iota
	Equal
	Greater
)

// CondJump jumps (PC := ADDR) iff the FLAGS-derived predicate named by
// (signed, comp, equal) holds, per the condition table in spec.md §4.4:
// with s = SF != OF, z = ZF, c = CF,
//
//	EQUAL,   true  -> z            EQUAL,   false -> !z
//	LESS,    false -> s (c)        LESS,    true  -> s||z (c||z)
//	GREATER, false -> !s&&!z (!c&&!z)   GREATER, true -> !s (!c)
//
// (signed predicates use s; unsigned predicates use c in place of s.)
func (a *ALU) CondJump(signed bool, comp Comparison, equal bool) {
	flags := a.get(register.FLAGS).Unsigned()
	sf := flags&SF != 0
	of := flags&OF != 0
	cf := flags&CF != 0
	zf := flags&ZF != 0

	var less bool
	if signed {
		less = sf != of
	} else {
		less = cf
	}

	var take bool
	switch comp {
	case Equal:
		take = zf == equal
	case Less:
		if equal {
			take = less || zf
		} else {
			take = less
		}
	case Greater:
		if equal {
			take = !less
		} else {
			take = !less && !zf
		}
	}

	if take {
		a.Jump()
	}
}
