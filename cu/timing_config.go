package cu

import (
	"encoding/json"
	"io"
)

// TimingConfig is an optional per-opcode cycle-cost table, loaded from
// JSON in the pattern of the teacher's timing/latency.TimingConfig: pure
// bookkeeping attached to a ControlUnit via its Timing field, never
// affecting execution semantics. cmd/mm's `--timing-config FILE` flag
// wires this in and reports Cpu.Cycles() alongside Cpu.InstructionCount()
// after a run.
type TimingConfig struct {
	Default     uint64            `json:"default"`
	ByMnemonic  map[string]uint64 `json:"by_mnemonic"`
	byOpcode    map[Opcode]uint64
}

// DefaultTimingConfig charges one cycle per instruction, a neutral
// baseline when no --timing-config file is given.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{Default: 1}
}

// LoadTimingConfig reads a JSON document shaped like:
//
//	{"default": 1, "by_mnemonic": {"smul": 3, "sdiv": 12, "halt": 1}}
func LoadTimingConfig(r io.Reader) (*TimingConfig, error) {
	var tc TimingConfig
	if err := json.NewDecoder(r).Decode(&tc); err != nil {
		return nil, err
	}
	tc.resolve()
	return &tc, nil
}

func (tc *TimingConfig) resolve() {
	tc.byOpcode = make(map[Opcode]uint64, len(tc.ByMnemonic))
	for name, cost := range tc.ByMnemonic {
		for op, opName := range opcodeNames {
			if opName == name {
				tc.byOpcode[op] = cost
			}
		}
	}
}

// CostOf returns the configured cycle cost of op, falling back to Default.
func (tc *TimingConfig) CostOf(op Opcode) uint64 {
	if tc.byOpcode == nil {
		tc.resolve()
	}
	if cost, ok := tc.byOpcode[op]; ok {
		return cost
	}
	return tc.Default
}
