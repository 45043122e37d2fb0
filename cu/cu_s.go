package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CUS is mm-s: a zero-address stack machine, byte-addressed, with 24-bit
// (3-byte) stack elements — the same width as IR_BITS. push/pop/jumps carry
// a 16-bit address and are 3-byte instructions; everything else (halt, dup,
// sswap, the arithmetic ops, comp) is a single opcode byte and operates on
// the stack implicitly.
type CUS struct {
	*ControlUnit
	stk *stack
}

func NewCUS(ramOpts ...memory.Option) (*CUS, error) {
	const addressBits = 16
	const wordBits = 8
	const irBits = OpcodeBits + addressBits // 24

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	a, err := alu.New(regs, alu.AluRegisters{R1: register.R1, R2: register.R2, S: register.S, RES: register.R1}, irBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, irBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	if err := regs.Add(register.SP, addressBits); err != nil {
		return nil, err
	}
	// The stack grows down from the top of memory by default; ResetStack
	// can move its starting point.
	top := cell.New(int64(ram.Len()-1), addressBits)
	if err := regs.Set(register.SP, top); err != nil {
		return nil, err
	}

	c := &CUS{ControlUnit: base}
	c.stk = newStack(base, irBits, top)
	c.Bind(c)
	return c, nil
}

func (c *CUS) Name() string { return "mm-s" }

// Push and Pop expose the instruction stack for iounit's stack-addressed
// input/output slots.
func (c *CUS) Push(v cell.Cell) error  { return c.stk.Push(v) }
func (c *CUS) Pop() (cell.Cell, error) { return c.stk.Pop() }

// ResetStack moves SP (and the notion of "empty") to top, for callers that
// know the real stack segment boundary from the assembled program.
func (c *CUS) ResetStack(top cell.Cell) error {
	c.stk.top = top
	return c.Registers.Set(register.SP, top)
}

func (c *CUS) InstructionBits(op Opcode) (int, error) {
	switch {
	case op == Push || op == Pop:
		return c.IRBits, nil
	case op == Jump || CondJumpOpcodes[op]:
		return c.IRBits, nil
	case op == Halt || op == Dup || op == SSwap || op == Comp:
		return OpcodeBits, nil
	case ArithmeticOpcodes[op]:
		return OpcodeBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CUS) Decode(op Opcode) error {
	switch {
	case op == Push || op == Pop || op == Jump || CondJumpOpcodes[op]:
		addr := c.IR().Slice(0, c.AddressBits)
		return c.Registers.Set(register.ADDR, addr)
	case op == Halt:
		c.ExpectZero(op, 0, c.AddressBits)
	}
	return nil
}

func (c *CUS) Load(op Opcode) error { return nil }

func (c *CUS) Execute(op Opcode) error {
	switch {
	case op == Push:
		addr := c.Registers.MustGet(register.ADDR)
		v, err := c.RAM.Fetch(addr, c.IRBits, true)
		if err != nil {
			return err
		}
		return c.stk.Push(v)

	case op == Pop:
		addr := c.Registers.MustGet(register.ADDR)
		v, err := c.stk.Pop()
		if err != nil {
			return err
		}
		return c.RAM.Put(addr, v, true)

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

	case op == Comp:
		r2, err := c.stk.PeekAt(0)
		if err != nil {
			return err
		}
		r1, err := c.stk.PeekAt(1)
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.R1, r1); err != nil {
			return err
		}
		if err := c.Registers.Set(register.R2, r2); err != nil {
			return err
		}
		c.ALU.Comp()
		return nil

	case ArithmeticOpcodes[op]:
		r2, err := c.stk.Pop()
		if err != nil {
			return err
		}
		r1, err := c.stk.Pop()
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.R1, r1); err != nil {
			return err
		}
		if err := c.Registers.Set(register.R2, r2); err != nil {
			return err
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
		return c.stk.Push(s)

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

func (c *CUS) WriteBack(op Opcode) error { return nil }
