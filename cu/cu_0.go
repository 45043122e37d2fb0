package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CU0 is mm-0: a stack machine with PC-relative jumps and 8-bit
// instructions-within-a-word: opcode(8) ∥ imm(8), packed into one 16-bit
// word (the stack's element width). push writes the immediate itself
// (sign-extended) onto the stack rather than loading from memory; binary
// arithmetic reads a stack slot imm elements below the top as R1 and the
// top itself as R2, writing the result back to the top. dup and swap
// work the same as mm-s's (operating on the top one or two elements);
// pop just discards the top. Jump targets are PC + sign-extend(imm).
type CU0 struct {
	*ControlUnit
	stk *stack
	imm cell.Cell // transient: this instruction's decoded immediate field
}

func NewCU0(ramOpts ...memory.Option) (*CU0, error) {
	const addressBits = 16
	const wordBits = OpcodeBits + 8 // 16

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	a, err := alu.New(regs, alu.AluRegisters{R1: register.R1, R2: register.R2, S: register.S, RES: register.R1}, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, wordBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	if err := regs.Add(register.SP, addressBits); err != nil {
		return nil, err
	}
	top := cell.New(int64(ram.Len()-1), addressBits)
	if err := regs.Set(register.SP, top); err != nil {
		return nil, err
	}

	c := &CU0{ControlUnit: base}
	c.stk = newStack(base, wordBits, top)
	c.Bind(c)
	return c, nil
}

func (c *CU0) Name() string { return "mm-0" }

// Push and Pop expose the instruction stack for iounit's stack-addressed
// input/output: mm-0's input/output slots push/pop rather than target a
// fixed RAM address.
func (c *CU0) Push(v cell.Cell) error        { return c.stk.Push(v) }
func (c *CU0) Pop() (cell.Cell, error)       { return c.stk.Pop() }

// ResetStack moves SP (and the notion of "empty") to top.
func (c *CU0) ResetStack(top cell.Cell) error {
	c.stk.top = top
	return c.Registers.Set(register.SP, top)
}

func (c *CU0) InstructionBits(op Opcode) (int, error) {
	switch {
	case op == Halt, op == PushMM0, op == Comp:
		return c.IRBits, nil
	case op == Pop || op == Dup || op == SSwap:
		return c.IRBits, nil
	case ArithmeticOpcodes[op]:
		return c.IRBits, nil
	case op == Jump || CondJumpOpcodes[op]:
		return c.IRBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CU0) Decode(op Opcode) error {
	c.imm = c.IR().Slice(0, 8)
	if op == Halt {
		c.ExpectZero(op, 0, 8)
		return nil
	}
	if op == Jump || CondJumpOpcodes[op] {
		pc := c.Registers.MustGet(register.PC)
		delta := cell.New(c.imm.Signed(), c.AddressBits)
		return c.Registers.Set(register.ADDR, pc.Add(delta))
	}
	return nil
}

func (c *CU0) Load(op Opcode) error { return nil }

func (c *CU0) Execute(op Opcode) error {
	switch {
	case op == PushMM0:
		return c.stk.Push(cell.New(c.imm.Signed(), c.IRBits))

	case op == Comp || ArithmeticOpcodes[op]:
		top, err := c.stk.PeekAt(0)
		if err != nil {
			return err
		}
		below, err := c.stk.PeekAt(int(c.imm.Unsigned()))
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.R1, below); err != nil {
			return err
		}
		if err := c.Registers.Set(register.R2, top); err != nil {
			return err
		}
		if op == Comp {
			c.ALU.Comp()
			return nil
		}
		handled, err := c.DispatchCommon(op)
		if err != nil {
			return err
		}
		if !handled {
			return &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
		}
		s, err := c.Registers.Get(register.S)
		if err != nil {
			return err
		}
		return c.stk.PokeAt(0, s)

	case op == Pop:
		_, err := c.stk.Pop()
		return err

	case op == Dup:
		top, err := c.stk.PeekAt(0)
		if err != nil {
			return err
		}
		return c.stk.Push(top)

	case op == SSwap:
		top, err := c.stk.PeekAt(0)
		if err != nil {
			return err
		}
		second, err := c.stk.PeekAt(1)
		if err != nil {
			return err
		}
		if err := c.stk.PokeAt(0, second); err != nil {
			return err
		}
		return c.stk.PokeAt(1, top)

	default:
		handled, err := c.DispatchCommon(op)
		if err != nil {
			return err
		}
		if !handled {
			return &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
		}
		return nil
	}
}

func (c *CU0) WriteBack(op Opcode) error { return nil }
