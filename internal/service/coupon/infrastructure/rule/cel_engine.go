// internal/service/coupon/infrastructure/rule/cel_engine.go
package rule

import (
	"fmt"
	"sync"

	"commerce/internal/service/coupon/domain/port"

	"github.com/google/cel-go/cel"
)

// CELRuleEngine 是 port.RuleEngine 的 CEL 实现。
// 券规则是形如 "order_amount >= 10000" 的布尔表达式，
// 编译结果按表达式缓存。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_amount", cel.IntType),
		cel.Variable("item_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELRuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

func (e *CELRuleEngine) Evaluate(ruleExpr string, fact port.Fact) (bool, error) {
	program, err := e.compile(ruleExpr)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]interface{}{
		"order_amount": fact.OrderAmount,
		"item_count":   fact.ItemCount,
	})
	if err != nil {
		return false, fmt.Errorf("rule evaluation failed: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean", ruleExpr)
	}
	return result, nil
}

func (e *CELRuleEngine) compile(ruleExpr string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[ruleExpr]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(ruleExpr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", ruleExpr, issues.Err())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}

	e.mu.Lock()
	e.programs[ruleExpr] = program
	e.mu.Unlock()
	return program, nil
}
