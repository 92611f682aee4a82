package rule

import (
	"testing"

	"commerce/internal/service/coupon/domain/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		fact port.Fact
		want bool
	}{
		{name: "amount threshold met", expr: "order_amount >= 10000", fact: port.Fact{OrderAmount: 10000}, want: true},
		{name: "amount threshold missed", expr: "order_amount >= 10000", fact: port.Fact{OrderAmount: 9999}, want: false},
		{name: "combined condition", expr: "order_amount >= 5000 && item_count >= 2", fact: port.Fact{OrderAmount: 6000, ItemCount: 2}, want: true},
		{name: "item count only", expr: "item_count > 3", fact: port.Fact{OrderAmount: 100, ItemCount: 2}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(tt.expr, tt.fact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateInvalidRule(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("order_amount ++", port.Fact{})
	assert.Error(t, err)

	// 非布尔表达式也是错误
	_, err = engine.Evaluate("order_amount + 1", port.Fact{})
	assert.Error(t, err)
}

func TestProgramCacheReuse(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	const expr = "order_amount >= 100"
	_, err = engine.Evaluate(expr, port.Fact{OrderAmount: 100})
	require.NoError(t, err)

	engine.mu.RLock()
	_, cached := engine.programs[expr]
	engine.mu.RUnlock()
	assert.True(t, cached)
}
