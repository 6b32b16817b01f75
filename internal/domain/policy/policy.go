// Package policy evaluates CEL-based allow/deny rules for tool calls.
// Rules see the tool name and the caller's identity; deny rules win, and
// when any allow rules exist at least one must match. An empty rule set
// allows everything.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength caps rule expressions to keep compilation cheap.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, preventing cost-exhaustion
// through pathological expressions.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single rule evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked during evaluation.
const interruptCheckFreq = 100

// Effect is what a matching rule does.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule is one configured policy rule.
type Rule struct {
	Name       string
	Effect     Effect
	Expression string
}

// Input is the evaluation context a rule expression sees.
type Input struct {
	// Tool is the tool name being called.
	Tool string
	// Identity is the caller's identity ID ("" when auth is disabled).
	Identity string
	// Roles are the caller's role names.
	Roles []string
	// ReadOnly is true when the tool declares no side effects.
	ReadOnly bool
}

// Decision is the outcome of evaluating the rule set for one call.
type Decision struct {
	Allowed bool
	// Rule is the name of the deciding rule, empty for the defaults
	// (empty-set allow, or no-allow-matched deny).
	Rule string
}

type compiledRule struct {
	name    string
	effect  Effect
	program cel.Program
}

// Engine holds the compiled rule set.
type Engine struct {
	rules     []compiledRule
	hasAllows bool
}

// newEnv builds the CEL environment the rule expressions compile against.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("identity", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("read_only", cel.BoolType),
	)
}

// NewEngine compiles the given rules. Invalid expressions fail fast here,
// at configuration time, not per call.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("policy environment: %w", err)
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Effect != EffectAllow && r.Effect != EffectDeny {
			return nil, fmt.Errorf("rule %q: unknown effect %q", r.Name, r.Effect)
		}
		if err := ValidateExpression(r.Expression); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		prg, err := compile(env, r.Expression)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{name: r.Name, effect: r.Effect, program: prg})
		if r.Effect == EffectAllow {
			e.hasAllows = true
		}
	}
	return e, nil
}

func compile(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must evaluate to bool, got %v", ast.OutputType())
	}
	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// ValidateExpression checks that an expression is within the configured
// safety limits (length, nesting). Compilation happens separately.
func ValidateExpression(expression string) error {
	if expression == "" {
		return errors.New("expression is empty")
	}
	if len(expression) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expression), maxExpressionLength)
	}
	var depth, maxDepth int
	for _, ch := range expression {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Evaluate runs the rule set against one call. Deny rules are checked
// first; any match denies. If allow rules exist, one of them must match.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	if len(e.rules) == 0 {
		return Decision{Allowed: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	activation := map[string]any{
		"tool":      in.Tool,
		"identity":  in.Identity,
		"roles":     in.Roles,
		"read_only": in.ReadOnly,
	}

	for _, r := range e.rules {
		if r.effect != EffectDeny {
			continue
		}
		match, err := evalBool(ctx, r.program, activation)
		if err != nil {
			return Decision{}, fmt.Errorf("rule %q: %w", r.name, err)
		}
		if match {
			return Decision{Allowed: false, Rule: r.name}, nil
		}
	}

	if !e.hasAllows {
		return Decision{Allowed: true}, nil
	}
	for _, r := range e.rules {
		if r.effect != EffectAllow {
			continue
		}
		match, err := evalBool(ctx, r.program, activation)
		if err != nil {
			return Decision{}, fmt.Errorf("rule %q: %w", r.name, err)
		}
		if match {
			return Decision{Allowed: true, Rule: r.name}, nil
		}
	}
	return Decision{Allowed: false}, nil
}

func evalBool(ctx context.Context, prg cel.Program, activation map[string]any) (bool, error) {
	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return b, nil
}
