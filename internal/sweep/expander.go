package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// ParameterSeparator separates parameter triples in a sweep spec.
	ParameterSeparator = "|"
	// KindInput is the only supported parameter kind.
	KindInput = "input"

	tolerance = 1e-9

	// MaxCases bounds the number of cases one sweep may generate.
	MaxCases = 100000
)

// Parameter is one named range swept by the case generator
type Parameter struct {
	Name string  `yaml:"name" json:"name"`
	Kind string  `yaml:"kind" json:"kind"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// String renders the parameter back into NAME;input;MIN:MAX:STEP form
func (p Parameter) String() string {
	return fmt.Sprintf("%s;%s;%s:%s:%s", p.Name, p.Kind, formatValue(p.Min), formatValue(p.Max), formatValue(p.Step))
}

// Validate checks that the range is well formed
func (p Parameter) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("sweep parameter must have a name")
	}
	if p.Kind != KindInput {
		return fmt.Errorf("sweep parameter %s: unsupported kind %q", p.Name, p.Kind)
	}
	for _, v := range []float64{p.Min, p.Max, p.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("sweep parameter %s: range bounds must be finite", p.Name)
		}
	}
	if p.Step <= 0 {
		return fmt.Errorf("sweep parameter %s: step must be > 0", p.Name)
	}
	if p.Max < p.Min {
		return fmt.Errorf("sweep parameter %s: max %s < min %s", p.Name, formatValue(p.Max), formatValue(p.Min))
	}
	if p.count() > MaxCases {
		return fmt.Errorf("sweep parameter %s: more than %d values", p.Name, MaxCases)
	}
	return nil
}

// count is the number of values Values yields, as a float so huge ranges do not overflow.
func (p Parameter) count() float64 {
	return math.Floor((p.Max-p.Min)/p.Step+tolerance) + 1
}

// CheckCaseCount rejects sweeps whose cartesian product exceeds MaxCases.
func CheckCaseCount(params []Parameter) error {
	total := 1.0
	for _, p := range params {
		total *= p.count()
		if total > MaxCases {
			return fmt.Errorf("sweep generates more than %d cases", MaxCases)
		}
	}
	return nil
}

// Values enumerates MIN, MIN+STEP, ... up to and including MAX
func (p Parameter) Values() []float64 {
	values := make([]float64, 0)
	for k := 0; ; k++ {
		v := p.Min + float64(k)*p.Step
		if v > p.Max+tolerance*math.Max(1, math.Abs(p.Max)) {
			break
		}
		values = append(values, v)
	}
	return values
}

// Parse reads a sweep spec of |-separated NAME;input;MIN:MAX:STEP triples
func Parse(spec string) ([]Parameter, error) {
	params := make([]Parameter, 0)
	for _, raw := range strings.Split(spec, ParameterSeparator) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		fields := strings.Split(raw, ";")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid sweep parameter %q: expected NAME;input;MIN:MAX:STEP", raw)
		}
		bounds := strings.Split(fields[2], ":")
		if len(bounds) != 3 {
			return nil, fmt.Errorf("invalid sweep range %q: expected MIN:MAX:STEP", fields[2])
		}

		nums := make([]float64, 3)
		for i, b := range bounds {
			f, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sweep range %q: %w", fields[2], err)
			}
			nums[i] = f
		}

		p := Parameter{
			Name: strings.TrimSpace(fields[0]),
			Kind: strings.TrimSpace(fields[1]),
			Min:  nums[0],
			Max:  nums[1],
			Step: nums[2],
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	if len(params) == 0 {
		return nil, fmt.Errorf("sweep spec defines no parameters")
	}
	if err := CheckCaseCount(params); err != nil {
		return nil, err
	}
	return params, nil
}

// Cases produces one case string per combination of parameter values.
// The first parameter varies slowest; each case reads name=value,name=value.
func Cases(params []Parameter) []string {
	if len(params) == 0 {
		return nil
	}

	combos := [][]string{{}}
	for _, p := range params {
		next := make([][]string, 0, len(combos)*len(p.Values()))
		for _, prefix := range combos {
			for _, v := range p.Values() {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				combo = append(combo, p.Name+"="+formatValue(v))
				next = append(next, combo)
			}
		}
		combos = next
	}

	cases := make([]string, len(combos))
	for i, combo := range combos {
		cases[i] = strings.Join(combo, ",")
	}
	return cases
}

// Format renders parameters back into a sweep spec string
func Format(params []Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ParameterSeparator)
}

func formatValue(v float64) string {
	// snap accumulated step error so 0.1+0.2 renders as 0.3
	return strconv.FormatFloat(v, 'g', 12, 64)
}
