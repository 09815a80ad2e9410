package guardrail

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"concord/internal/proposal"
)

// DefaultEthicsRules are the constitutional checks every governance
// proposal must satisfy. Each rule is a CEL expression over:
//
//	metrics        map(string, double)  the six impact claims
//	rationale_ref  string
//	changes        int                  number of changes
//	kinds          list(string)         change kinds in order
var DefaultEthicsRules = []string{
	`metrics.wellbeing > -3.0`,
	`metrics.equity > -3.0`,
	`rationale_ref != ""`,
	`changes <= 16`,
}

// compiledRule keeps the source next to the program for evidence.
type compiledRule struct {
	source  string
	program cel.Program
}

// ethicsRules is a compiled, immutable rule set.
type ethicsRules struct {
	rules []compiledRule
}

func compileEthicsRules(sources []string) (*ethicsRules, error) {
	env, err := cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("rationale_ref", cel.StringType),
		cel.Variable("changes", cel.IntType),
		cel.Variable("kinds", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	out := &ethicsRules{rules: make([]compiledRule, 0, len(sources))}
	for i, src := range sources {
		ast, issues := env.Compile(src)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile ethics rule %d: %w", i, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("ethics rule %d must be boolean, got %s", i, ast.OutputType())
		}
		prg, err := env.Program(ast, cel.CostLimit(10000), cel.InterruptCheckFrequency(100))
		if err != nil {
			return nil, fmt.Errorf("program for ethics rule %d: %w", i, err)
		}
		out.rules = append(out.rules, compiledRule{source: src, program: prg})
	}
	return out, nil
}

// violations returns the sources of rules the proposal fails. Evaluation
// errors count as violations.
func (r *ethicsRules) violations(p *proposal.Proposal) []string {
	kinds := make([]string, len(p.Changes))
	for i, c := range p.Changes {
		kinds[i] = string(c.Kind)
	}
	input := map[string]any{
		"metrics": map[string]float64{
			"ecological": p.Metrics.Ecological,
			"wellbeing":  p.Metrics.Wellbeing,
			"efficiency": p.Metrics.Efficiency,
			"resilience": p.Metrics.Resilience,
			"equity":     p.Metrics.Equity,
			"innovation": p.Metrics.Innovation,
		},
		"rationale_ref": p.RationaleRef,
		"changes":       int64(len(p.Changes)),
		"kinds":         kinds,
	}

	var failed []string
	for _, rule := range r.rules {
		out, _, err := rule.program.Eval(input)
		if err != nil {
			failed = append(failed, rule.source)
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			failed = append(failed, rule.source)
		}
	}
	return failed
}
