// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 领域指标。通过默认 Registry 暴露在 /metrics 上。
var (
	CouponIssueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: "coupon",
		Name:      "issue_total",
		Help:      "Coupon issuance attempts by outcome.",
	}, []string{"outcome"}) // issued / queued / sold_out / duplicate / error

	OrderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: "order",
		Name:      "create_total",
		Help:      "Order creation attempts by outcome.",
	}, []string{"outcome"}) // completed / failed

	BalanceChargeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: "balance",
		Name:      "charge_total",
		Help:      "Balance charge attempts by outcome.",
	}, []string{"outcome"})

	LockAcquireSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "commerce",
		Subsystem: "lock",
		Name:      "acquire_seconds",
		Help:      "Time spent waiting for a distributed lock.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend"})

	LockTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Subsystem: "lock",
		Name:      "timeout_total",
		Help:      "Lock acquisition attempts that timed out.",
	}, []string{"backend"})
)
