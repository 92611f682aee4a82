// internal/service/coupon/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sync"
	"time"

	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"
)

// InMemoryCouponStore 是券模板与用户券的内存存储，
// 实现 CouponRepository 和 IssuanceStore，语义与 GORM 实现一致。
// 测试和本地开发用。
type InMemoryCouponStore struct {
	mu          sync.Mutex
	coupons     map[int64]*domain.Coupon
	userCoupons map[int64]*domain.UserCoupon
	byPair      map[[2]int64]int64 // (userID, couponID) -> userCouponID
	nextID      int64
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{
		coupons:     make(map[int64]*domain.Coupon),
		userCoupons: make(map[int64]*domain.UserCoupon),
		byPair:      make(map[[2]int64]int64),
	}
}

func (s *InMemoryCouponStore) FindByID(_ context.Context, id int64) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryCouponStore) FindAll(_ context.Context) ([]*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryCouponStore) Save(_ context.Context, coupon *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if coupon.ID == 0 {
		s.nextID++
		coupon.ID = s.nextID
	}
	copied := *coupon
	s.coupons[coupon.ID] = &copied
	return nil
}

func (s *InMemoryCouponStore) PersistIssuance(_ context.Context, couponID, userID int64) (*domain.UserCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, ok := s.coupons[couponID]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	if _, dup := s.byPair[[2]int64{userID, couponID}]; dup {
		return nil, domain.ErrAlreadyIssued
	}
	if coupon.IssuedQuantity >= coupon.TotalQuantity {
		return nil, domain.ErrSoldOut
	}
	coupon.IssuedQuantity++

	s.nextID++
	uc := &domain.UserCoupon{
		ID:       s.nextID,
		UserID:   userID,
		CouponID: couponID,
		Status:   domain.StatusIssued,
		IssuedAt: time.Now(),
	}
	s.userCoupons[uc.ID] = uc
	s.byPair[[2]int64{userID, couponID}] = uc.ID
	copied := *uc
	return &copied, nil
}

// UserCoupons 返回共享同一份数据的 UserCouponRepository 视图。
func (s *InMemoryCouponStore) UserCoupons() *InMemoryUserCouponRepository {
	return &InMemoryUserCouponRepository{store: s}
}

// IssuedCount 返回某张券的已发数量，测试断言用。
func (s *InMemoryCouponStore) IssuedCount(couponID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, uc := range s.userCoupons {
		if uc.CouponID == couponID {
			n++
		}
	}
	return n
}

// InMemoryUserCouponRepository 实现 UserCouponRepository。
type InMemoryUserCouponRepository struct {
	store *InMemoryCouponStore
}

func (r *InMemoryUserCouponRepository) FindByID(_ context.Context, id int64) (*domain.UserCoupon, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	uc, ok := r.store.userCoupons[id]
	if !ok {
		return nil, domain.ErrUserCouponNotFound
	}
	copied := *uc
	return &copied, nil
}

func (r *InMemoryUserCouponRepository) FindByUserAndCoupon(_ context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.byPair[[2]int64{userID, couponID}]
	if !ok {
		return nil, domain.ErrUserCouponNotFound
	}
	copied := *r.store.userCoupons[id]
	return &copied, nil
}

func (r *InMemoryUserCouponRepository) FindByUser(_ context.Context, userID int64) ([]*domain.UserCoupon, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.UserCoupon
	for _, uc := range r.store.userCoupons {
		if uc.UserID == userID {
			copied := *uc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *InMemoryUserCouponRepository) UpdateStatus(_ context.Context, uc *domain.UserCoupon, from domain.UserCouponStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.userCoupons[uc.ID]
	if !ok {
		return domain.ErrUserCouponNotFound
	}
	// 状态守卫和写在同一把锁里，与 GORM 实现的条件 UPDATE 语义一致
	if existing.Status != from {
		return domain.ErrInvalidCoupon
	}
	existing.Status = uc.Status
	existing.UsedAt = uc.UsedAt
	return nil
}

// InMemoryIssueGate 是 IssueGate + IssueQueue 的内存实现。
// Reserve 的检查和扣减在同一把锁里完成，与 Lua 脚本的原子性等价。
type InMemoryIssueGate struct {
	mu       sync.Mutex
	stock    map[int64]int64
	users    map[int64]map[int64]bool
	queues   map[int64][]int64
	statuses map[[2]int64]port.IssueStatus
	messages map[[2]int64]string
}

func NewInMemoryIssueGate() *InMemoryIssueGate {
	return &InMemoryIssueGate{
		stock:    make(map[int64]int64),
		users:    make(map[int64]map[int64]bool),
		queues:   make(map[int64][]int64),
		statuses: make(map[[2]int64]port.IssueStatus),
		messages: make(map[[2]int64]string),
	}
}

func (g *InMemoryIssueGate) Reserve(_ context.Context, couponID, userID int64) (port.GateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.users[couponID][userID] {
		return port.GateDuplicate, nil
	}
	if g.stock[couponID] <= 0 {
		return port.GateSoldOut, nil
	}
	g.stock[couponID]--
	if g.users[couponID] == nil {
		g.users[couponID] = make(map[int64]bool)
	}
	g.users[couponID][userID] = true
	return port.GateAccepted, nil
}

func (g *InMemoryIssueGate) Cancel(_ context.Context, couponID, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.users[couponID][userID] {
		delete(g.users[couponID], userID)
		g.stock[couponID]++
	}
	return nil
}

func (g *InMemoryIssueGate) Prime(_ context.Context, couponID, remaining int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stock[couponID] = remaining
	g.users[couponID] = make(map[int64]bool)
	return nil
}

func (g *InMemoryIssueGate) Enqueue(_ context.Context, couponID, userID int64) (int64, int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[couponID] = append(g.queues[couponID], userID)
	size := int64(len(g.queues[couponID]))
	return size, size, nil
}

func (g *InMemoryIssueGate) Dequeue(_ context.Context, couponID int64, max int) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.queues[couponID]
	if len(q) == 0 {
		return nil, nil
	}
	n := max
	if n > len(q) {
		n = len(q)
	}
	out := append([]int64(nil), q[:n]...)
	g.queues[couponID] = q[n:]
	return out, nil
}

func (g *InMemoryIssueGate) PendingCoupons(_ context.Context) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []int64
	for id, q := range g.queues {
		if len(q) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (g *InMemoryIssueGate) SetStatus(_ context.Context, couponID, userID int64, status port.IssueStatus, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[[2]int64{couponID, userID}] = status
	g.messages[[2]int64{couponID, userID}] = message
	return nil
}

func (g *InMemoryIssueGate) GetStatus(_ context.Context, couponID, userID int64) (port.IssueStatus, string, int64, int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[[2]int64{couponID, userID}]
	if !ok {
		return port.StatusNotRequested, "", 0, 0, nil
	}
	message := g.messages[[2]int64{couponID, userID}]
	if status != port.StatusProcessing {
		return status, message, 0, 0, nil
	}
	var position int64
	q := g.queues[couponID]
	for i, id := range q {
		if id == userID {
			position = int64(i + 1)
			break
		}
	}
	return status, message, position, int64(len(q)), nil
}
