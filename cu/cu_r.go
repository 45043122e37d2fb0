package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CUR implements both mm-r and mm-m: a sixteen-general-register machine.
// Memory instructions (load, store, addr, comp/add/sub/smul/sdiv/umul/udiv,
// jumps, halt) are 4 bytes: opcode(8) ∥ R(4) ∥ M(4) ∥ A(16); the
// arithmetic/comp ones read R[R] and RAM[A] and write the result back to
// R[R] (sdiv/udiv also write the remainder to R[R+1]). Register instructions
// (rmove, rcomp, and the six r-arithmetic ops) are 2 bytes:
// opcode(8) ∥ R(4) ∥ R'(4). mm-m additionally hardwires R0 to the constant
// zero and folds M into the effective address (A + R[M]) wherever a memory
// instruction computes one; mm-r leaves M reserved (expected zero) and
// always uses A directly.
type CUR struct {
	*ControlUnit
	isM bool

	// transient per-instruction decode state
	destReg cell.Cell // R field, as a register index Cell
	srcReg  cell.Cell // R' field (register ops) or M field (memory ops)
	effAddr cell.Cell // memory ops only
}

func newCUR(isM bool, ramOpts ...memory.Option) (*CUR, error) {
	const addressBits = 16
	const wordBits = 16
	const irBits = OpcodeBits + 4 + 4 + addressBits // 32

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	a, err := alu.New(regs, alu.AluRegisters{R1: register.S1, R2: register.R, S: register.S, RES: register.R}, irBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, irBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	for _, name := range register.GeneralRegisters {
		if err := regs.Add(name, irBits); err != nil {
			return nil, err
		}
	}

	c := &CUR{ControlUnit: base, isM: isM}
	c.Bind(c)
	return c, nil
}

// NewCUR builds mm-r.
func NewCUR(ramOpts ...memory.Option) (*CUR, error) { return newCUR(false, ramOpts...) }

// NewCUM builds mm-m.
func NewCUM(ramOpts ...memory.Option) (*CUR, error) { return newCUR(true, ramOpts...) }

func (c *CUR) Name() string {
	if c.isM {
		return "mm-m"
	}
	return "mm-r"
}

func (c *CUR) generalName(idx cell.Cell) register.Name {
	return register.GeneralRegisters[idx.Unsigned()&0xF]
}

// getGeneral reads a general register, reading R0 as the constant zero on
// mm-m.
func (c *CUR) getGeneral(idx cell.Cell) cell.Cell {
	name := c.generalName(idx)
	if c.isM && name == register.R0 {
		return cell.Zero(c.IRBits)
	}
	return c.Registers.MustGet(name)
}

// setGeneral writes a general register, discarding writes to R0 on mm-m.
func (c *CUR) setGeneral(idx cell.Cell, v cell.Cell) error {
	name := c.generalName(idx)
	if c.isM && name == register.R0 {
		return nil
	}
	return c.Registers.Set(name, v)
}

func (c *CUR) isRegisterOp(op Opcode) bool { return RegisterOpcodes[op] }

func (c *CUR) isMemoryOp(op Opcode) bool {
	switch op {
	case Move, Store, Addr, Halt, Jump, Comp:
		return true
	}
	if ArithmeticOpcodes[op] {
		return true
	}
	return CondJumpOpcodes[op]
}

// isMemArith reports whether op is the memory-addressed arithmetic/compare
// family (comp, add, sub, smul, sdiv, umul, udiv as opcode∥R(4)∥M(4)∥A(16)):
// it reads R[destReg] and RAM[effAddr] and writes the result back to
// R[destReg] (plus R[destReg+1] for the divide remainder).
func (c *CUR) isMemArith(op Opcode) bool { return op == Comp || ArithmeticOpcodes[op] }

// nextReg returns the register index one past idx, wrapping mod 16 —
// where sdiv/udiv (memory and register forms) write the remainder.
func (c *CUR) nextReg(idx cell.Cell) cell.Cell {
	return cell.New(int64((idx.Unsigned()+1)&0xF), idx.Bits())
}

func (c *CUR) InstructionBits(op Opcode) (int, error) {
	if op == Addr && !c.isM {
		return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
	}
	if c.isRegisterOp(op) {
		return OpcodeBits + 8, nil
	}
	if c.isMemoryOp(op) {
		return c.IRBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CUR) Decode(op Opcode) error {
	ir := c.IR()
	c.destReg = ir.Slice(20, 24)
	c.srcReg = ir.Slice(16, 20)

	if c.isMemoryOp(op) {
		a := ir.Slice(0, c.AddressBits)
		if c.isM {
			m := c.getGeneral(c.srcReg)
			a = a.Add(cell.New(int64(m.Unsigned()), c.AddressBits))
		} else {
			c.ExpectZero(op, c.AddressBits, c.AddressBits+4)
		}
		c.effAddr = a
		if op == Jump || CondJumpOpcodes[op] {
			return c.Registers.Set(register.ADDR, a)
		}
	}
	if op == Halt {
		c.ExpectZero(op, 0, c.AddressBits+8)
	}
	return nil
}

func (c *CUR) needsOperands(op Opcode) bool {
	return RegisterArithOpcodes[op] || op == RComp
}

func (c *CUR) Load(op Opcode) error {
	switch {
	case op == Move:
		v, err := c.RAM.Fetch(c.effAddr, c.IRBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S, v)
	case op == RMove:
		return c.Registers.Set(register.S, c.getGeneral(c.srcReg))
	case c.needsOperands(op):
		if err := c.Registers.Set(register.S1, c.getGeneral(c.destReg)); err != nil {
			return err
		}
		return c.Registers.Set(register.R, c.getGeneral(c.srcReg))
	case c.isMemArith(op):
		v, err := c.RAM.Fetch(c.effAddr, c.IRBits, true)
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.S1, c.getGeneral(c.destReg)); err != nil {
			return err
		}
		return c.Registers.Set(register.R, v)
	}
	return nil
}

func (c *CUR) Execute(op Opcode) error {
	switch op {
	case Move, RMove, Store, Addr:
		return nil
	case RComp, Comp:
		c.ALU.Comp()
		return nil
	case RAdd:
		c.ALU.Add()
		return nil
	case RSub:
		c.ALU.Sub()
		return nil
	case RSMul:
		c.ALU.SMul()
		return nil
	case RUMul:
		c.ALU.UMul()
		return nil
	case RSDiv:
		return c.ALU.SDivMod()
	case RUDiv:
		return c.ALU.UDivMod()
	}
	handled, err := c.DispatchCommon(op)
	if err != nil {
		return err
	}
	if !handled {
		return &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
	}
	return nil
}

func (c *CUR) WriteBack(op Opcode) error {
	switch {
	case op == Halt || op == RComp || op == Comp || JumpOpcodes[op]:
		return nil
	case op == Store:
		return c.RAM.Put(c.effAddr, c.getGeneral(c.destReg), true)
	case op == Addr:
		return c.setGeneral(c.destReg, cell.FromUnsigned(c.effAddr.Unsigned(), c.IRBits))
	case op == Move || op == RMove || c.needsOperands(op) || ArithmeticOpcodes[op]:
		s, err := c.Registers.Get(register.S)
		if err != nil {
			return err
		}
		if err := c.setGeneral(c.destReg, s); err != nil {
			return err
		}
		if DwordWriteBack[op] {
			rem, err := c.Registers.Get(register.R)
			if err != nil {
				return err
			}
			return c.setGeneral(c.nextReg(c.destReg), rem)
		}
		return nil
	}
	return nil
}
