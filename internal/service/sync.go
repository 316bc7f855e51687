package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avydigital/avyboost/internal/model"
)

// syncGuard не допускает одновременных проходов сверки по одному ключу
// и пропускает проходы чаще окна охлаждения.
type syncGuard struct {
	mu      sync.Mutex
	running map[string]bool
	lastRun map[string]time.Time
}

func newSyncGuard() *syncGuard {
	return &syncGuard{
		running: make(map[string]bool),
		lastRun: make(map[string]time.Time),
	}
}

// acquire возвращает false, если проход по ключу уже идёт или окончился недавно.
func (g *syncGuard) acquire(key string, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[key] {
		return false
	}
	if time.Since(g.lastRun[key]) < cooldown {
		return false
	}

	g.running[key] = true
	g.lastRun[key] = time.Now()
	return true
}

func (g *syncGuard) release(key string) {
	g.mu.Lock()
	g.running[key] = false
	g.mu.Unlock()
}

// MapRemoteStatus переводит статус удалённой системы во внутренний.
// Регистр не учитывается; нераспознанный статус консервативно считается
// processing и никогда не становится completed молча.
func MapRemoteStatus(remote string) model.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "completed", "partial":
		return model.OrderStatusCompleted
	case "canceled", "cancelled", "refunded":
		return model.OrderStatusCancelled
	case "in progress", "inprogress", "processing":
		return model.OrderStatusProcessing
	case "pending":
		return model.OrderStatusPending
	default:
		return model.OrderStatusProcessing
	}
}

// DeliveredCount вычисляет число доставленных единиц по остатку удалённой системы.
// Остаток авторитетен; результат не бывает отрицательным.
func DeliveredCount(quantity, remains int64) int64 {
	delivered := quantity - remains
	if delivered < 0 {
		return 0
	}
	return delivered
}

// StartOrderSync запускает фоновый процесс сверки активных заказов с панелью
// выполнения. Контекст также используется как жизненный цикл для наблюдателей платежей.
func (s *Service) StartOrderSync(ctx context.Context) {
	s.setLifecycleCtx(ctx)

	if s.booster == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncAllOrders(ctx)
			}
		}
	}()
}

func (s *Service) syncAllOrders(ctx context.Context) {
	if !s.guard.acquire("*", s.syncCooldown) {
		return
	}
	defer s.guard.release("*")

	orders, err := s.repo.GetAllActiveOrders(ctx, 100)
	if err != nil {
		s.logger.Warn("list active orders", zap.Error(err))
		return
	}

	byUser := make(map[string][]model.Order)
	for _, o := range orders {
		byUser[o.UserID] = append(byUser[o.UserID], o)
	}

	for uid, userOrders := range byUser {
		if ctx.Err() != nil {
			return
		}
		s.syncUserBatch(ctx, uid, userOrders)
	}
}

// syncUserBatch сверяет пачку заказов одного пользователя в рамках общего прохода.
// Ключ пользователя захватывается без окна охлаждения, чтобы не пересекаться
// с SyncUserOrders; занятый пользователь пропускается до следующего тика.
func (s *Service) syncUserBatch(ctx context.Context, uid string, orders []model.Order) {
	if !s.guard.acquire(uid, 0) {
		return
	}
	defer s.guard.release(uid)

	synced := 0
	for i, o := range orders {
		if i > 0 && !s.interCallDelay(ctx) {
			break
		}
		if s.syncOne(ctx, o) {
			synced++
		}
	}

	if synced > 0 {
		s.notifyOrders(ctx, uid)
	}
}

// SyncUserOrders выполняет сверку активных заказов одного пользователя по требованию.
// Возвращает число успешно сверенных заказов. Повторный вызов в окне охлаждения
// или во время идущего прохода пропускается.
func (s *Service) SyncUserOrders(ctx context.Context, uid string) (int, error) {
	if s.booster == nil {
		return 0, nil
	}

	if !s.guard.acquire(uid, s.syncCooldown) {
		return 0, nil
	}
	defer s.guard.release(uid)

	orders, err := s.repo.GetActiveOrders(ctx, uid)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i, o := range orders {
		if i > 0 && !s.interCallDelay(ctx) {
			break
		}
		if s.syncOne(ctx, o) {
			synced++
		}
	}

	if synced > 0 {
		s.notifyOrders(ctx, uid)
	}

	return synced, nil
}

// syncOne сверяет один заказ. Ошибка опроса означает отсутствие новой информации:
// заказ не изменяется, проход продолжается.
func (s *Service) syncOne(ctx context.Context, o model.Order) bool {
	res, err := s.booster.Status(ctx, o.ExoOrderID)
	if err != nil {
		s.logger.Warn("poll order status",
			zap.Error(err), zap.String("orderID", o.ID), zap.String("exoOrderID", o.ExoOrderID))
		return false
	}

	status := MapRemoteStatus(res.Status)
	delivered := DeliveredCount(o.Quantity, res.Remains)

	if err := s.repo.UpdateOrderSync(ctx, o.ID, status, delivered); err != nil {
		s.logger.Error("update order after sync", zap.Error(err), zap.String("orderID", o.ID))
		return false
	}

	return true
}

// interCallDelay выдерживает паузу между обращениями к панели, уважая отмену контекста.
func (s *Service) interCallDelay(ctx context.Context) bool {
	timer := time.NewTimer(s.pollDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
