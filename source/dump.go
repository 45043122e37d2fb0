package source

import (
	"fmt"
	"strings"

	"github.com/sarchlab/modelmachine/cell"
)

// Dump renders b as a canonical `.cpu` program: a header, the input,
// output and enter directives, then one `.code` block per filled RAM
// interval — each word as lower-case hex padded to word_bits/4 digits,
// one word per line, with an aligned-column comment giving the word's
// address, per spec.md §6.3. Parse(Dump(b)) followed by Build reproduces
// byte-identical RAM and the same I/O requests.
func Dump(b *Built) string {
	var out strings.Builder

	fmt.Fprintf(&out, ".cpu %s\n", b.CPUName)
	for _, in := range b.Inputs {
		fmt.Fprintf(&out, ".input %s", fmt.Sprint(in.Address))
		if in.Message != "" {
			fmt.Fprintf(&out, " %s", in.Message)
		}
		out.WriteByte('\n')
	}
	for _, o := range b.Outputs {
		fmt.Fprintf(&out, ".output %s", fmt.Sprint(o.Address))
		if o.Message != "" {
			fmt.Fprintf(&out, " %s", o.Message)
		}
		out.WriteByte('\n')
	}
	if len(b.Enter) > 0 {
		tokens := make([]string, len(b.Enter))
		for i, v := range b.Enter {
			tokens[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(&out, ".enter %s\n", strings.Join(tokens, " "))
	}

	nibbles := b.RAM.WordBits / 4
	if nibbles == 0 {
		nibbles = 1
	}
	for _, iv := range b.RAM.FilledIntervals() {
		fmt.Fprintf(&out, ".code %d\n", iv.Start)
		for addr := iv.Start; addr < iv.Stop; addr++ {
			word, err := b.RAM.Fetch(cell.New(int64(addr), b.RAM.AddressBits), b.RAM.WordBits, false)
			if err != nil {
				continue // unreachable: addr is inside a filled interval
			}
			fmt.Fprintf(&out, "%-*s ; 0x%x\n", nibbles, word.Hex(), addr)
		}
	}

	return out.String()
}
