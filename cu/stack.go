package cu

import (
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/register"
)

const spName = register.SP

// stack implements the shared push/pop/peek discipline used by mm-0 and
// mm-s: SP points at the top element, grows downward, and each machine
// has its own fixed element width. Per spec.md's "Stack discipline"
// section, reading/popping an empty stack is a StackAccessError.
type stack struct {
	cu          *ControlUnit
	elementBits int
	top         cell.Cell // the SP value meaning "nothing pushed yet"
}

func newStack(c *ControlUnit, elementBits int, top cell.Cell) *stack {
	return &stack{cu: c, elementBits: elementBits, top: top}
}

func (s *stack) sp() cell.Cell {
	return s.cu.Registers.MustGet(spName)
}

func (s *stack) setSP(v cell.Cell) error {
	return s.cu.Registers.Set(spName, v)
}

func (s *stack) words() int { return s.elementBits / s.cu.RAM.WordBits }

// Push writes value at the new top and moves SP down by one element.
func (s *stack) Push(value cell.Cell) error {
	sp := s.sp()
	if int(sp.Unsigned()) < s.words() {
		return stackErrorf("stack overflow: cannot push past address 0")
	}
	newSP := sp.Sub(cell.New(int64(s.words()), sp.Bits()))
	if err := s.cu.RAM.Put(newSP, value, true); err != nil {
		return err
	}
	return s.setSP(newSP)
}

// Pop reads the current top and moves SP up by one element.
func (s *stack) Pop() (cell.Cell, error) {
	sp := s.sp()
	if sp.Equal(s.top) {
		return cell.Cell{}, stackErrorf("stack underflow: nothing to pop")
	}
	value, err := s.cu.RAM.Fetch(sp, s.elementBits, true)
	if err != nil {
		return cell.Cell{}, err
	}
	newSP := sp.Add(cell.New(int64(s.words()), sp.Bits()))
	return value, s.setSP(newSP)
}

// PeekAt reads the element offsetElements below the current top without
// moving SP (offsetElements 0 is the top itself). Reading below the
// bottom of the stack is a StackAccessError.
func (s *stack) PeekAt(offsetElements int) (cell.Cell, error) {
	sp := s.sp()
	depth := (int(s.top.Unsigned()) - int(sp.Unsigned())) / s.words()
	if offsetElements >= depth {
		return cell.Cell{}, stackErrorf("stack underflow: fewer than %d elements on the stack", offsetElements+1)
	}
	addr := sp.Add(cell.New(int64(offsetElements*s.words()), sp.Bits()))
	return s.cu.RAM.Fetch(addr, s.elementBits, true)
}

// PokeAt writes the element offsetElements below the current top without
// moving SP.
func (s *stack) PokeAt(offsetElements int, value cell.Cell) error {
	sp := s.sp()
	addr := sp.Add(cell.New(int64(offsetElements*s.words()), sp.Bits()))
	return s.cu.RAM.Put(addr, value, true)
}

// IsEmpty reports whether nothing has been pushed (SP is back at top).
func (s *stack) IsEmpty() bool { return s.sp().Equal(s.top) }
