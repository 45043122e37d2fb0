// Package main provides the mm command line: run, debug and assemble
// programs for the eight model-machine variants.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/modelmachine/cachesim"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/cpu"
	"github.com/sarchlab/modelmachine/cu"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/source"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mm",
		Short: "mm runs the model-machine family of pedagogical von Neumann emulators",
	}
	root.AddCommand(runCmd(), debugCmd(), asmCmd())
	return root
}

func readProgram(path string) (*source.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return source.Parse(string(data))
}

// newCpu loads path and builds a cpu.Cpu against it, applying the
// -m/--protect-memory flag shared by run and debug and run's
// --cache-stats/--timing-config flags. Without a timing file, cycles are
// counted with cu.DefaultTimingConfig.
func newCpu(path string, protect, cacheStats bool, timingPath string) (*cpu.Cpu, *cachesim.Cache, error) {
	p, err := readProgram(path)
	if err != nil {
		return nil, nil, err
	}

	ramOpts := []memory.Option{
		memory.WithProtected(protect),
		memory.WithWarn(func(msg string) { fmt.Fprintln(os.Stderr, "warning:", msg) }),
	}

	var cache *cachesim.Cache
	if cacheStats {
		cache = cachesim.New(cachesim.DefaultConfig())
		ramOpts = append(ramOpts, cache.Attach())
	}

	opts := []cpu.Option{cpu.WithRAMOptions(ramOpts...)}
	if timingPath != "" {
		f, err := os.Open(timingPath)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		tc, err := cu.LoadTimingConfig(f)
		if err != nil {
			return nil, nil, fmt.Errorf("timing config: %w", err)
		}
		opts = append(opts, cpu.WithTiming(tc))
	} else {
		opts = append(opts, cpu.WithTiming(cu.DefaultTimingConfig()))
	}

	c, err := cpu.New(p, os.Stdin, opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, cache, nil
}

func runCmd() *cobra.Command {
	var protect, cacheStats bool
	var timingPath string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Load, run to completion and print outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, cache, err := newCpu(args[0], protect, cacheStats, timingPath)
			if err != nil {
				return err
			}

			if err := c.Run(os.Stdout); err != nil {
				return err
			}

			if c.Unit.Failed {
				fmt.Fprintf(os.Stderr, "%s: halted with fault after %d instructions\n", c.Name, c.InstructionCount())
				if cache != nil {
					printCacheStats(cache)
				}
				os.Exit(1)
			}

			fmt.Fprintf(os.Stderr, "%s: halted cleanly after %d instructions", c.Name, c.InstructionCount())
			if timingPath != "" || cacheStats {
				fmt.Fprintf(os.Stderr, " (%d cycles)", c.Cycles())
			}
			fmt.Fprintln(os.Stderr)
			if cache != nil {
				printCacheStats(cache)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&protect, "protect-memory", "m", false, "fault on reading never-written memory instead of warning")
	cmd.Flags().BoolVar(&cacheStats, "cache-stats", false, "attach a cachesim.Cache and print hit/miss statistics after the run")
	cmd.Flags().StringVar(&timingPath, "timing-config", "", "JSON per-opcode cycle cost table (see cu.LoadTimingConfig)")
	return cmd
}

func printCacheStats(cache *cachesim.Cache) {
	st := cache.Stats()
	fmt.Fprintf(os.Stderr, "cache: %d reads, %d writes, %d hits, %d misses (%.1f%% hit rate), %d evictions\n",
		st.Reads, st.Writes, st.Hits, st.Misses, 100*st.HitRate(), st.Evictions)
}

func debugCmd() *cobra.Command {
	var protect bool

	cmd := &cobra.Command{
		Use:   "debug <file>",
		Short: "Step through a program interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := newCpu(args[0], protect, false, "")
			if err != nil {
				return err
			}
			return runDebugger(c, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVarP(&protect, "protect-memory", "m", false, "fault on reading never-written memory instead of warning")
	return cmd
}

// runDebugger implements a line-oriented read-eval-print loop over
// cu.ControlUnit.Step: step, run, regs, mem <addr> <words>, quit. This is
// deliberately minimal — an interactive debugger UI is out of scope, this
// is just a REPL over the primitives cu and cpu already expose.
func runDebugger(c *cpu.Cpu, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "mm debug: %s loaded, %d instructions so far\n", c.Name, c.InstructionCount())

	for {
		fmt.Fprint(out, "(mm) ")
		if !scanner.Scan() {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "step", "s":
			if c.Status() == cu.Halted {
				fmt.Fprintln(out, "halted")
				continue
			}
			c.Step()
			fmt.Fprintf(out, "step %d: status=%v\n", c.InstructionCount(), c.Status())

		case "run", "r":
			c.Unit.Run()
			fmt.Fprintf(out, "ran to %v after %d instructions\n", c.Status(), c.InstructionCount())
			if err := c.PrintOutputs(out); err != nil {
				fmt.Fprintln(out, "output error:", err)
			}

		case "regs":
			for name, v := range c.Unit.Registers.State() {
				fmt.Fprintf(out, "  %-6s 0x%x\n", name, v.Unsigned())
			}

		case "mem":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: mem <addr> <words>")
				continue
			}
			addr, err1 := strconv.ParseInt(fields[1], 0, 64)
			words, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				fmt.Fprintln(out, "usage: mem <addr> <words>")
				continue
			}
			for i := 0; i < words; i++ {
				a := cell.New(addr+int64(i), c.Unit.AddressBits)
				word, err := c.Unit.RAM.Fetch(a, c.Unit.RAM.WordBits, false)
				if err != nil {
					fmt.Fprintln(out, "error:", err)
					break
				}
				fmt.Fprintf(out, "  0x%x: 0x%s\n", addr+int64(i), word.Hex())
			}

		case "quit", "q":
			return nil

		default:
			fmt.Fprintf(out, "unknown command %q (step|run|regs|mem <addr> <words>|quit)\n", fields[0])
		}
	}
}

func asmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asm <in> <out>",
		Short: "Assemble and link a program, writing its canonical .cpu dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := readProgram(args[0])
			if err != nil {
				return err
			}

			unit, err := cpuForDump(p.CPUName)
			if err != nil {
				return err
			}

			built, err := source.Build(p, unit.RAM, unit.ALU.OperandBits)
			if err != nil {
				return err
			}

			return os.WriteFile(args[1], []byte(source.Dump(built)), 0o644)
		},
	}
}

// cpuForDump builds a bare control unit for the named CPU, used only to
// get a correctly shaped RAM/ALU to assemble against; mm asm never
// executes anything.
func cpuForDump(name string) (*cu.ControlUnit, error) {
	switch name {
	case "mm-0":
		c, err := cu.NewCU0()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-1":
		c, err := cu.NewCU1()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-2":
		c, err := cu.NewCU2()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-3":
		c, err := cu.NewCU3()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-v":
		c, err := cu.NewCUV()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-s":
		c, err := cu.NewCUS()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-r":
		c, err := cu.NewCUR()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	case "mm-m":
		c, err := cu.NewCUM()
		if err != nil {
			return nil, err
		}
		return c.ControlUnit, nil
	}
	return nil, fmt.Errorf("mm: unknown cpu %q", name)
}
