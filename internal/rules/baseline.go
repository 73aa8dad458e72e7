package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Baseline supplies the expected average charge per procedure code.
// ok is false when the code has no reference average.
type Baseline interface {
	Average(code string) (avg float64, ok bool)
}

// StaticBaseline is an in-memory code -> average charge table
type StaticBaseline map[string]float64

// Average returns the average charge for code
func (b StaticBaseline) Average(code string) (float64, bool) {
	avg, ok := b[normalizeCode(code)]
	return avg, ok
}

// NewStaticBaseline copies averages into a StaticBaseline with normalized codes
func NewStaticBaseline(averages map[string]float64) StaticBaseline {
	b := make(StaticBaseline, len(averages))
	for code, avg := range averages {
		b[normalizeCode(code)] = avg
	}
	return b
}

// LoadBaseline reads a YAML file mapping procedure codes to average charges:
//
//	"99213": 150.00
//	"99215": 325.00
func LoadBaseline(path string) (StaticBaseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}

	var averages map[string]float64
	if err := yaml.Unmarshal(data, &averages); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}

	for code, avg := range averages {
		if avg <= 0 {
			return nil, fmt.Errorf("baseline %s: average for %s must be positive, got %v", path, code, avg)
		}
	}

	return NewStaticBaseline(averages), nil
}

// MergeBaselines layers averages: later tables override earlier ones
func MergeBaselines(tables ...StaticBaseline) StaticBaseline {
	merged := make(StaticBaseline)
	for _, t := range tables {
		for code, avg := range t {
			merged[code] = avg
		}
	}
	return merged
}

type chainBaseline []Baseline

func (c chainBaseline) Average(code string) (float64, bool) {
	for _, b := range c {
		if avg, ok := b.Average(code); ok {
			return avg, true
		}
	}
	return 0, false
}

// FirstOf consults each baseline in order and returns the first average found.
// Nil entries are skipped; with nothing left it returns nil.
func FirstOf(baselines ...Baseline) Baseline {
	var chain chainBaseline
	for _, b := range baselines {
		if b != nil {
			chain = append(chain, b)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}
