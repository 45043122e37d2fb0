package cachesim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/cachesim"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
)

var _ = Describe("Cache", func() {
	It("counts a miss then a hit on the same block", func() {
		c := cachesim.New(cachesim.Config{Sets: 4, Associativity: 2, BlockWords: 4, HitLatency: 1, MissLatency: 10})
		ram := memory.New(16, 16, c.Attach())

		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())
		Expect(ram.Put(cell.New(1, 16), cell.New(2, 16), true)).To(Succeed())

		stats := c.Stats()
		Expect(stats.Writes).To(Equal(uint64(2)))
		Expect(stats.Misses).To(Equal(uint64(1)))
		Expect(stats.Hits).To(Equal(uint64(1)))
	})

	It("does not observe non-CPU (debugger) accesses", func() {
		c := cachesim.New(cachesim.DefaultConfig())
		ram := memory.New(16, 16, c.Attach())
		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), false)).To(Succeed())

		stats := c.Stats()
		Expect(stats.Writes).To(Equal(uint64(0)))
		Expect(stats.Reads).To(Equal(uint64(0)))
	})

	It("reports an eviction once every way in a set is occupied", func() {
		c := cachesim.New(cachesim.Config{Sets: 1, Associativity: 2, BlockWords: 1, HitLatency: 1, MissLatency: 10})
		ram := memory.New(16, 16, c.Attach())

		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())
		Expect(ram.Put(cell.New(1, 16), cell.New(1, 16), true)).To(Succeed())
		Expect(ram.Put(cell.New(2, 16), cell.New(1, 16), true)).To(Succeed())

		stats := c.Stats()
		Expect(stats.Misses).To(Equal(uint64(3)))
		Expect(stats.Evictions).To(Equal(uint64(1)))
	})

	It("computes hit rate and latency from the attached config", func() {
		c := cachesim.New(cachesim.Config{Sets: 4, Associativity: 2, BlockWords: 4, HitLatency: 2, MissLatency: 30})
		ram := memory.New(16, 16, c.Attach())
		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())
		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())

		Expect(c.Stats().HitRate()).To(BeNumerically("~", 0.5, 1e-9))
		Expect(c.Latency(true)).To(Equal(uint64(2)))
		Expect(c.Latency(false)).To(Equal(uint64(30)))
	})

	It("Reset clears counters and directory state", func() {
		c := cachesim.New(cachesim.Config{Sets: 4, Associativity: 2, BlockWords: 4, HitLatency: 1, MissLatency: 10})
		ram := memory.New(16, 16, c.Attach())
		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())

		c.Reset()
		Expect(c.Stats()).To(Equal(cachesim.Stats{}))

		Expect(ram.Put(cell.New(0, 16), cell.New(1, 16), true)).To(Succeed())
		Expect(c.Stats().Misses).To(Equal(uint64(1)))
	})
})
