// internal/service/balance/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce/internal/pkg/lock"
	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/metrics"
	"commerce/internal/service/balance/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 乐观锁冲突时的最大重试次数。锁已经把同一用户的并发请求串行化了，
// 重试只兜底跨实例的竞争窗口。
const maxConflictRetries = 3

// BalanceService 负责余额的充值、扣减和查询。
// 同一用户的变更通过分布式锁串行化，不同用户互不阻塞。
type BalanceService struct {
	repo      domain.BalanceRepository
	locker    lock.Locker
	tracer    trace.Tracer
	lockWait  time.Duration
	lockLease time.Duration
}

func NewBalanceService(repo domain.BalanceRepository, locker lock.Locker, tracer trace.Tracer, lockWait, lockLease time.Duration) *BalanceService {
	return &BalanceService{
		repo:      repo,
		locker:    locker,
		tracer:    tracer,
		lockWait:  lockWait,
		lockLease: lockLease,
	}
}

// Charge 为用户充值，返回充值后的余额。
// 账户不存在时自动开户。
func (s *BalanceService) Charge(ctx context.Context, userID, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "balance.Charge")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("charge.amount", amount),
	)

	if amount <= 0 || amount > domain.MaxChargePerRequest {
		metrics.BalanceChargeTotal.WithLabelValues("invalid_amount").Inc()
		return 0, domain.ErrInvalidAmount
	}

	var newBalance int64
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		return s.retryOnConflict(ctx, func(ctx context.Context) error {
			balance, err := s.repo.FindByUserID(ctx, userID)
			if errors.Is(err, domain.ErrBalanceNotFound) {
				balance = domain.NewBalance(userID)
			} else if err != nil {
				return err
			}
			if err := balance.Charge(amount); err != nil {
				return err
			}
			if err := s.repo.Save(ctx, balance); err != nil {
				return err
			}
			newBalance = balance.Amount
			return s.repo.SaveTransaction(ctx, &domain.BalanceTransaction{
				UserID:       userID,
				Type:         domain.TransactionCharge,
				Amount:       amount,
				BalanceAfter: balance.Amount,
				CreatedAt:    time.Now(),
			})
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "charge failed")
		metrics.BalanceChargeTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	metrics.BalanceChargeTotal.WithLabelValues("ok").Inc()
	logger.Ctx(ctx).Info().Int64("user_id", userID).Int64("amount", amount).Int64("balance_after", newBalance).Msg("balance charged")
	return newBalance, nil
}

// Deduct 扣减余额，余额不足时返回 ErrInsufficientBalance。
// 由订单服务在下单流程中调用。
func (s *BalanceService) Deduct(ctx context.Context, userID, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "balance.Deduct")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("deduct.amount", amount),
	)

	var newBalance int64
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		return s.retryOnConflict(ctx, func(ctx context.Context) error {
			balance, err := s.repo.FindByUserID(ctx, userID)
			if err != nil {
				return err
			}
			if err := balance.Deduct(amount); err != nil {
				return err
			}
			if err := s.repo.Save(ctx, balance); err != nil {
				return err
			}
			newBalance = balance.Amount
			return s.repo.SaveTransaction(ctx, &domain.BalanceTransaction{
				UserID:       userID,
				Type:         domain.TransactionDeduct,
				Amount:       amount,
				BalanceAfter: balance.Amount,
				CreatedAt:    time.Now(),
			})
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deduct failed")
		return 0, err
	}
	return newBalance, nil
}

// Refund 是 Deduct 的补偿操作，把扣掉的金额加回去。
// 充值上限不适用于补偿路径，这里不走 Charge 的校验。
func (s *BalanceService) Refund(ctx context.Context, userID, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "balance.Refund")
	defer span.End()

	return s.withUserLock(ctx, userID, func(ctx context.Context) error {
		return s.retryOnConflict(ctx, func(ctx context.Context) error {
			balance, err := s.repo.FindByUserID(ctx, userID)
			if err != nil {
				return err
			}
			balance.Amount += amount
			if err := s.repo.Save(ctx, balance); err != nil {
				return err
			}
			return s.repo.SaveTransaction(ctx, &domain.BalanceTransaction{
				UserID:       userID,
				Type:         domain.TransactionCharge,
				Amount:       amount,
				BalanceAfter: balance.Amount,
				CreatedAt:    time.Now(),
			})
		})
	})
}

// GetBalance 查询用户当前余额。
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "balance.GetBalance")
	defer span.End()

	balance, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return balance.Amount, nil
}

func (s *BalanceService) withUserLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("balance:%d", userID)
	return lock.WithLock(ctx, s.locker, key, s.lockWait, s.lockLease, fn)
}

func (s *BalanceService) retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = fn(ctx); !errors.Is(err, domain.ErrConflict) {
			return err
		}
		logger.Ctx(ctx).Warn().Int("attempt", attempt+1).Msg("balance version conflict, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}
