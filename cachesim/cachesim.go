// Package cachesim instruments a model machine's RAM traffic with an
// optional L1 cache model, built on the same akita cache directory the
// teacher's own timing/cache package uses. It never changes RAM semantics
// or access_count: Cache only observes addresses memory.RAM reports through
// its access hook and keeps hit/miss/eviction counters alongside.
package cachesim

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/modelmachine/memory"
)

// Config describes one direct/set-associative L1 model, sized in words
// rather than bytes since RAM is word-addressable.
type Config struct {
	Sets          int
	Associativity int
	BlockWords    int
	HitLatency    uint64
	MissLatency   uint64
}

// DefaultConfig returns a small L1-shaped default: 64 sets, 4-way,
// 8-word lines — enough to show realistic hit rates on the toy programs
// these machines run without needing any user tuning.
func DefaultConfig() Config {
	return Config{
		Sets:          64,
		Associativity: 4,
		BlockWords:    8,
		HitLatency:    1,
		MissLatency:   20,
	}
}

// Stats holds cache access counters for a run.
type Stats struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there were no accesses.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache observes RAM word accesses (via memory.WithAccessHook) and tracks
// them against an akita cache directory's tag/LRU state. It holds no data
// of its own: RAM remains the single source of truth for memory contents.
type Cache struct {
	cfg   Config
	dir   *akitacache.DirectoryImpl
	stats Stats
}

// New builds a Cache for cfg that is not yet wired to any RAM; pass the
// memory.Option returned by Attach to memory.New so that every from_cpu
// Fetch/Put on that RAM is observed and counted.
func New(cfg Config) *Cache {
	return &Cache{
		cfg: cfg,
		dir: akitacache.NewDirectory(
			cfg.Sets, cfg.Associativity, cfg.BlockWords,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Attach returns a memory.Option that makes ram report every from_cpu
// access to c.
func (c *Cache) Attach() memory.Option {
	return memory.WithAccessHook(c.track)
}

func (c *Cache) blockAddr(address int) int {
	return (address / c.cfg.BlockWords) * c.cfg.BlockWords
}

// track is RAM's access hook: it advances one word address at a time so a
// multi-word fetch (an mm-2/mm-3 instruction, say) touches every block it
// actually spans.
func (c *Cache) track(address, words int, isWrite bool) {
	for i := 0; i < words; i++ {
		c.accessOne(address+i, isWrite)
	}
}

func (c *Cache) accessOne(address int, isWrite bool) {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddr(address)
	block := c.dir.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.dir.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return
	}

	c.stats.Misses++
	victim := c.dir.FindVictim(uint64(blockAddr))
	if victim == nil {
		return
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.dir.Visit(victim)
}

// Stats returns a snapshot of the counters gathered so far.
func (c *Cache) Stats() Stats { return c.stats }

// Latency returns the cycle cost cfg assigns to a hit or a miss.
func (c *Cache) Latency(hit bool) uint64 {
	if hit {
		return c.cfg.HitLatency
	}
	return c.cfg.MissLatency
}

// Reset clears every counter and invalidates the directory, without
// touching the RAM it is attached to.
func (c *Cache) Reset() {
	c.dir.Reset()
	c.stats = Stats{}
}
