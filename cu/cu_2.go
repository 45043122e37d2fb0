package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CU2 is mm-2: a two-address memory-to-memory machine. Every instruction is
// one word: opcode(8) ∥ A1(16) ∥ A2(16). Binary ops read [A1] and [A2] and
// overwrite [A1] with the result; move copies [A2] into [A1]. Jumps use A2
// as the target address.
type CU2 struct {
	*ControlUnit
}

func NewCU2(ramOpts ...memory.Option) (*CU2, error) {
	const addressBits = 16
	const wordBits = OpcodeBits + 2*addressBits

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
	if err := regs.Add(register.A1, addressBits); err != nil {
		return nil, err
	}

	c := &CU2{ControlUnit: base}
	c.Bind(c)
	return c, nil
}

func (c *CU2) Name() string { return "mm-2" }

func (c *CU2) InstructionBits(op Opcode) (int, error) {
	switch op {
	case Move, Add, Sub, SMul, SDiv, Comp, UMul, UDiv, Jump, Halt:
		return c.IRBits, nil
	}
	if CondJumpOpcodes[op] {
		return c.IRBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CU2) a1() cell.Cell { return c.IR().Slice(c.AddressBits, 2*c.AddressBits) }
func (c *CU2) a2() cell.Cell { return c.IR().Slice(0, c.AddressBits) }

func (c *CU2) Decode(op Opcode) error {
	if op == Halt {
		c.ExpectZero(op, 0, 2*c.AddressBits)
	}
	if err := c.Registers.Set(register.A1, c.a1()); err != nil {
		return err
	}
	return c.Registers.Set(register.ADDR, c.a2())
}

func (c *CU2) needsR1R2(op Opcode) bool {
	return ArithmeticOpcodes[op] || CondJumpOpcodes[op] || op == Comp
}

func (c *CU2) Load(op Opcode) error {
	a1 := c.Registers.MustGet(register.A1)
	a2 := c.Registers.MustGet(register.ADDR) // mm-2's second field doubles as jump target and operand address
	switch {
	case op == Move:
		v, err := c.RAM.Fetch(a2, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S, v)
	case c.needsR1R2(op):
		v1, err := c.RAM.Fetch(a1, c.WordBits, true)
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.R1, v1); err != nil {
			return err
		}
		v2, err := c.RAM.Fetch(a2, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.R2, v2)
	}
	return nil
}

func (c *CU2) Execute(op Opcode) error {
	if op == Move {
		return nil
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
	return nil
}

func (c *CU2) WriteBack(op Opcode) error {
	if op == Halt || op == Comp || JumpOpcodes[op] {
		return nil
	}
	a1 := c.Registers.MustGet(register.A1)
	s, err := c.Registers.Get(register.S)
	if err != nil {
		return err
	}
	if err := c.RAM.Put(a1, s, true); err != nil {
		return err
	}
	if DwordWriteBack[op] {
		res, err := c.Registers.Get(register.R1)
		if err != nil {
			return err
		}
		return c.RAM.Put(a1.Add(cell.New(1, c.AddressBits)), res, true)
	}
	return nil
}
