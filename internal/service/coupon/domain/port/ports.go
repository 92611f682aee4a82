// internal/service/coupon/domain/port/ports.go
package port

import "context"

// GateResult 是发券准入脚本返回的业务状态码。
type GateResult int

const (
	GateSoldOut   GateResult = 0 // 已发完
	GateAccepted  GateResult = 1 // 占到名额
	GateDuplicate GateResult = 2 // 该用户已领取
)

// IssueGate 是发券的准入闸门。Reserve 必须是一个原子步骤：
// 查重、查余量、扣余量、记录用户要么全部发生要么都不发生，
// 任何读完再写的两段式实现都会在并发下超发。
type IssueGate interface {
	Reserve(ctx context.Context, couponID, userID int64) (GateResult, error)
	// Cancel 是 Reserve 的补偿：归还余量并移除用户占位。
	Cancel(ctx context.Context, couponID, userID int64) error
	// Prime 用剩余库存初始化闸门（服务启动或新活动上线时）。
	Prime(ctx context.Context, couponID, remaining int64) error
}

// IssueStatus 是一次发券请求的可轮询状态。
type IssueStatus string

const (
	StatusProcessing   IssueStatus = "PROCESSING"
	StatusSuccess      IssueStatus = "SUCCESS"
	StatusFailed       IssueStatus = "FAILED"
	StatusNotRequested IssueStatus = "NOT_REQUESTED"
)

// IssueQueue 是异步发券的等待队列与状态表。
type IssueQueue interface {
	// Enqueue 把请求放入队尾，返回排队位置（1 起）和当前队长。
	Enqueue(ctx context.Context, couponID, userID int64) (position, size int64, err error)
	// Dequeue 从队首弹出至多 max 个用户，队列为空时返回空切片。
	Dequeue(ctx context.Context, couponID int64, max int) ([]int64, error)
	// PendingCoupons 返回当前存在等待队列的优惠券 ID。
	PendingCoupons(ctx context.Context) ([]int64, error)

	SetStatus(ctx context.Context, couponID, userID int64, status IssueStatus, message string) error
	// GetStatus 返回状态、提示信息，以及仍在排队时的位置与队长。
	GetStatus(ctx context.Context, couponID, userID int64) (IssueStatus, string, int64, int64, error)
}

// IssueEventProducer 把闸门放行的请求送往工作队列（Kafka）。
type IssueEventProducer interface {
	PublishIssueRequested(ctx context.Context, couponID, userID int64) error
}

// RuleEngine 评估券的使用规则。
type RuleEngine interface {
	Evaluate(rule string, fact Fact) (bool, error)
}

// Fact 是规则评估的输入。字段名与 CEL 表达式里的变量一一对应。
type Fact struct {
	OrderAmount int64 `json:"order_amount"`
	ItemCount   int64 `json:"item_count"`
}
