// Package rules provides the CEL-Go based row predicate engine.
package rules

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/konsi/campaign-filter/internal/domain"
)

// Engine evaluates compiled row predicates against records.
// It is safe for concurrent use; pipeline runs share one engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.RowRule
	Program cel.Program

	// numeric lists the margin variables the rule reads.
	numeric []string
}

// numericVariables maps margin columns to their CEL variable names.
var numericVariables = map[string]string{
	domain.ColLoanAvailable:       "emprestimo_disponivel",
	domain.ColWithdrawalAvailable: "beneficio_saque_disponivel",
	domain.ColWithdrawalTotal:     "beneficio_saque_total",
	domain.ColPurchaseAvailable:   "beneficio_compra_disponivel",
	domain.ColPurchaseTotal:       "beneficio_compra_total",
	domain.ColCardAvailable:       "cartao_disponivel",
	domain.ColCardTotal:           "cartao_total",
	domain.ColCompulsoryAvailable: "compulsoria_disponivel",
}

// NewEngine creates an engine with no rules loaded.
func NewEngine() (*Engine, error) {
	opts := []cel.EnvOption{
		cel.Variable("lotacao", cel.StringType),
		cel.Variable("vinculo", cel.StringType),
		cel.Variable("secretaria", cel.StringType),
		cel.Variable("convenio", cel.StringType),
		cel.Variable("matricula", cel.StringType),
	}
	for _, name := range numericVariables {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// NewDefaultEngine creates an engine with the built-in catalog loaded.
func NewDefaultEngine() (*Engine, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return engine, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.RowRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.RowRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(rules []*domain.RowRule) error {
	for _, rule := range rules {
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the columns a loaded rule reads.
func (e *Engine) Columns(ruleID string) ([]string, error) {
	compiled, err := e.get(ruleID)
	if err != nil {
		return nil, err
	}
	return compiled.Rule.Columns, nil
}

// Match evaluates one rule against one record.
// A rule reading a missing margin never matches.
func (e *Engine) Match(ruleID string, rec *domain.Record) (bool, error) {
	compiled, err := e.get(ruleID)
	if err != nil {
		return false, err
	}
	return compiled.match(rec)
}

// Filter keeps the records matching a rule, preserving order.
func (e *Engine) Filter(ruleID string, records []*domain.Record) ([]*domain.Record, error) {
	compiled, err := e.get(ruleID)
	if err != nil {
		return nil, err
	}

	kept := records[:0:0]
	for _, rec := range records {
		ok, err := compiled.match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rules ordered by ID.
func (e *Engine) GetLoadedRules() []*domain.RowRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RowRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	slices.SortFunc(rules, func(a, b *domain.RowRule) int {
		return strings.Compare(a.ID, b.ID)
	})
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) get(ruleID string) (*CompiledRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	compiled, ok := e.compiledRules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s is not loaded", ruleID)
	}
	return compiled, nil
}

func (e *Engine) compileRule(rule *domain.RowRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	var numeric []string
	for _, col := range rule.Columns {
		if _, ok := numericVariables[col]; ok {
			numeric = append(numeric, col)
		}
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
		numeric: numeric,
	}, nil
}

func (c *CompiledRule) match(rec *domain.Record) (bool, error) {
	margins := marginValues(rec)
	for _, col := range c.numeric {
		if domain.IsMissing(margins[col]) {
			return false, nil
		}
	}

	out, _, err := c.Program.Eval(activation(rec, margins))
	if err != nil {
		return false, fmt.Errorf("rule %s: evaluation error: %w", c.Rule.ID, err)
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("rule %s: non-bool result %v", c.Rule.ID, out)
	}
	return bool(b), nil
}

func marginValues(rec *domain.Record) map[string]float64 {
	return map[string]float64{
		domain.ColLoanAvailable:       rec.LoanAvailable,
		domain.ColWithdrawalAvailable: rec.WithdrawalAvailable,
		domain.ColWithdrawalTotal:     rec.WithdrawalTotal,
		domain.ColPurchaseAvailable:   rec.PurchaseAvailable,
		domain.ColPurchaseTotal:       rec.PurchaseTotal,
		domain.ColCardAvailable:       rec.CardAvailable,
		domain.ColCardTotal:           rec.CardTotal,
		domain.ColCompulsoryAvailable: rec.CompulsoryAvailable,
	}
}

func activation(rec *domain.Record, margins map[string]float64) map[string]any {
	vars := map[string]any{
		"lotacao":    rec.Department,
		"vinculo":    rec.Bond,
		"secretaria": rec.Secretariat,
		"convenio":   rec.Agreement,
		"matricula":  rec.Enrollment,
	}
	for col, name := range numericVariables {
		vars[name] = margins[col]
	}
	return vars
}
