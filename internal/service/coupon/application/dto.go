// internal/service/coupon/application/dto.go
package application

import (
	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"
)

// IssueResult 是一次发券请求的输出。
// Queued 为 true 时 UserCoupon 为 nil，结果通过状态轮询获取。
type IssueResult struct {
	Queued        bool
	UserCoupon    *domain.UserCoupon
	Coupon        *domain.Coupon
	QueuePosition int64
	QueueSize     int64
}

// StatusResult 是状态轮询的输出。
type StatusResult struct {
	Status        port.IssueStatus
	Message       string
	QueuePosition int64
	QueueSize     int64
}
