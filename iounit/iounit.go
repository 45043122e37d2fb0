// Package iounit implements the typed I/O slots every model machine reads
// and writes through: load_source (hex-loading a program image), input
// (parsing one signed decimal integer from a reader) and output (printing
// one word as signed decimal), per spec.md §4.6.
package iounit

import (
	"fmt"
	"io"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
)

// StackPort is implemented by the stack-discipline control units (mm-0,
// mm-s): when set, Input pushes instead of storing at a fixed address and
// Output pops instead of fetching one.
type StackPort interface {
	Push(cell.Cell) error
	Pop() (cell.Cell, error)
}

// IOUnit binds RAM access and the io_bits width shared by every input,
// output and enter slot declared by a program's directives.
type IOUnit struct {
	RAM    *memory.RAM
	IOBits int
	Stack  StackPort // nil for address-addressed (non-stack) variants
}

// CheckWord reports whether v fits an io_bits-wide word under either
// reading: -2^(io_bits-1) <= v < 2^io_bits, per spec.md §4.6. The range is
// intentionally asymmetric: it accepts v typed as a non-negative literal
// up to the word's full unsigned span, or as a negative literal down to
// the word's signed floor; either is stored via its two's-complement
// truncation, same as cell.New.
func CheckWord(v int64, ioBits int) error {
	lo := -(int64(1) << uint(ioBits-1))
	hi := int64(1) << uint(ioBits)
	if v < lo || v >= hi {
		return fmt.Errorf("iounit: value %d does not fit in a signed %d-bit word", v, ioBits)
	}
	return nil
}

// LoadSource parses hexString as a sequence of word_bits/4-nibble hex
// chunks and writes them into RAM at consecutive addresses starting at
// address, matching load_source(address, hex_string).
func LoadSource(ram *memory.RAM, address cell.Cell, hexString string) error {
	nibbles := ram.WordBits / 4
	if nibbles == 0 || len(hexString)%nibbles != 0 {
		return fmt.Errorf("iounit: source length %d is not a multiple of %d hex digits per word", len(hexString), nibbles)
	}
	words := len(hexString) / nibbles
	if int(address.Unsigned())+words > ram.Len() {
		return fmt.Errorf("iounit: source of %d words overruns memory at address 0x%x", words, address.Unsigned())
	}

	addr := address
	for i := 0; i < words; i++ {
		if ram.IsFilled(int(addr.Unsigned())) {
			return fmt.Errorf("iounit: address 0x%x is already filled, source segments must not overlap", addr.Unsigned())
		}
		chunk := hexString[i*nibbles : (i+1)*nibbles]
		v, err := cell.FromHex(chunk)
		if err != nil {
			return fmt.Errorf("iounit: %w", err)
		}
		word := cell.FromUnsigned(v.Unsigned(), ram.WordBits)
		if err := ram.Put(addr, word, false); err != nil {
			return err
		}
		addr = addr.Add(cell.New(1, addr.Bits()))
	}
	return nil
}

// Input reads one signed decimal integer from r, range-checks it against
// IOBits, and stores it at address (or pushes it, for stack variants).
func (u *IOUnit) Input(address cell.Cell, r io.Reader) error {
	var v int64
	if _, err := fmt.Fscan(r, &v); err != nil {
		return fmt.Errorf("iounit: input exhausted or malformed: %w", err)
	}
	if err := CheckWord(v, u.IOBits); err != nil {
		return err
	}
	word := cell.New(v, u.IOBits)
	if u.Stack != nil {
		return u.Stack.Push(word)
	}
	return u.RAM.Put(address, word, true)
}

// Output reads one word at address (or pops one, for stack variants),
// interprets it as signed, and prints it to w.
func (u *IOUnit) Output(address cell.Cell, w io.Writer) error {
	var (
		word cell.Cell
		err  error
	)
	if u.Stack != nil {
		word, err = u.Stack.Pop()
	} else {
		word, err = u.RAM.Fetch(address, u.IOBits, true)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, word.Signed())
	return err
}
