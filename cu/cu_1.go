package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CU1 is mm-1: a one-address accumulator machine. Every instruction is one
// word: opcode(8) ∥ A(16). Arithmetic ops work against the accumulator (the
// ALU's S/R1 register) and an operand fetched from [A]; load/store/swap
// move values between the accumulator and [A] directly.
type CU1 struct {
	*ControlUnit
}

func NewCU1(ramOpts ...memory.Option) (*CU1, error) {
	const addressBits = 16
	const wordBits = OpcodeBits + addressBits

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	// The accumulator doubles as R1 and S; S1 holds the memory operand
	// (R2); R holds the divmod remainder (RES).
	a, err := alu.New(regs, alu.AluRegisters{R1: register.S, R2: register.S1, S: register.S, RES: register.R}, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, wordBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}

	c := &CU1{ControlUnit: base}
	c.Bind(c)
	return c, nil
}

func (c *CU1) Name() string { return "mm-1" }

func (c *CU1) InstructionBits(op Opcode) (int, error) {
	switch op {
	case Move, Store, Swap, Add, Sub, SMul, SDiv, Comp, UMul, UDiv, Jump, Halt:
		return c.IRBits, nil
	}
	if CondJumpOpcodes[op] {
		return c.IRBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CU1) Decode(op Opcode) error {
	if op == Halt {
		c.ExpectZero(op, 0, c.AddressBits)
	}
	addr := c.IR().Slice(0, c.AddressBits)
	return c.Registers.Set(register.ADDR, addr)
}

func (c *CU1) needsOperand(op Opcode) bool {
	return ArithmeticOpcodes[op] || op == Comp
}

func (c *CU1) Load(op Opcode) error {
	addr := c.Registers.MustGet(register.ADDR)
	switch {
	case op == Move:
		v, err := c.RAM.Fetch(addr, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S, v)
	case op == Swap:
		v, err := c.RAM.Fetch(addr, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S1, v)
	case c.needsOperand(op):
		v, err := c.RAM.Fetch(addr, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S1, v)
	}
	return nil
}

func (c *CU1) Execute(op Opcode) error {
	switch op {
	case Move, Store, Swap:
		return nil
	case Comp:
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
	return nil
}

func (c *CU1) WriteBack(op Opcode) error {
	addr := c.Registers.MustGet(register.ADDR)
	switch op {
	case Store:
		acc, err := c.Registers.Get(register.S)
		if err != nil {
			return err
		}
		return c.RAM.Put(addr, acc, true)
	case Swap:
		memVal, err := c.Registers.Get(register.S1)
		if err != nil {
			return err
		}
		acc, err := c.Registers.Get(register.S)
		if err != nil {
			return err
		}
		if err := c.RAM.Put(addr, acc, true); err != nil {
			return err
		}
		return c.Registers.Set(register.S, memVal)
	}
	return nil
}
