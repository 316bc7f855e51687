package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/avydigital/avyboost/internal/model"
)

// orderFeed рассылает подписчикам актуальные снимки заказов пользователя.
// Медленный подписчик пропускает промежуточный снимок, но получит следующий.
type orderFeed struct {
	mu   sync.RWMutex
	subs map[string]map[chan []model.Order]struct{}
}

func newOrderFeed() *orderFeed {
	return &orderFeed{
		subs: make(map[string]map[chan []model.Order]struct{}),
	}
}

func (f *orderFeed) subscribe(uid string) (chan []model.Order, func()) {
	ch := make(chan []model.Order, 4)

	f.mu.Lock()
	if f.subs[uid] == nil {
		f.subs[uid] = make(map[chan []model.Order]struct{})
	}
	f.subs[uid][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[uid]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(f.subs, uid)
			}
		}
		f.mu.Unlock()
	}

	return ch, cancel
}

func (f *orderFeed) publish(uid string, orders []model.Order) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs[uid] {
		select {
		case ch <- orders:
		default:
		}
	}
}

// SubscribeOrders возвращает канал со снимками заказов пользователя: сразу текущий
// снимок, затем новый после каждого изменения. Ошибка начального чтения не
// прерывает подписку — подписчик получает пустой список.
func (s *Service) SubscribeOrders(ctx context.Context, uid string) (<-chan []model.Order, func()) {
	ch, cancel := s.feed.subscribe(uid)

	orders, err := s.repo.GetOrdersByUser(ctx, uid)
	if err != nil {
		s.logger.Warn("initial orders snapshot failed", zap.Error(err), zap.String("userID", uid))
		orders = []model.Order{}
	}

	select {
	case ch <- orders:
	default:
	}

	return ch, cancel
}

// notifyOrders читает свежий снимок заказов и рассылает его подписчикам.
func (s *Service) notifyOrders(ctx context.Context, uid string) {
	orders, err := s.repo.GetOrdersByUser(ctx, uid)
	if err != nil {
		s.logger.Warn("orders snapshot for feed failed", zap.Error(err), zap.String("userID", uid))
		return
	}
	s.feed.publish(uid, orders)
}
