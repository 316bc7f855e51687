// Package service реализует бизнес-логику сервиса AVYboost.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avydigital/avyboost/internal/campay"
	"github.com/avydigital/avyboost/internal/catalog"
	"github.com/avydigital/avyboost/internal/exobooster"
	"github.com/avydigital/avyboost/internal/model"
	"github.com/avydigital/avyboost/internal/notifier"
	"github.com/avydigital/avyboost/internal/repository"
	"github.com/avydigital/avyboost/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	EnsureAccount(ctx context.Context, uid string) (*model.Account, error)
	GetAccount(ctx context.Context, uid string) (*model.Account, error)
	Credit(ctx context.Context, uid string, amount int64, method, orderID string) (string, error)
	Debit(ctx context.Context, uid string, amount int64, service, orderID string) error
	GetTransactionsByUser(ctx context.Context, uid string) ([]model.Transaction, error)
	CreateOrder(ctx context.Context, o *model.Order) (string, error)
	CancelOrder(ctx context.Context, orderID, uid string) error
	GetOrdersByUser(ctx context.Context, uid string) ([]model.Order, error)
	GetActiveOrders(ctx context.Context, uid string) ([]model.Order, error)
	GetAllActiveOrders(ctx context.Context, limit int) ([]model.Order, error)
	SetOrderSubmitted(ctx context.Context, orderID, exoOrderID string) error
	UpdateOrderSync(ctx context.Context, orderID string, status model.OrderStatus, delivered int64) error
	CreatePaymentCollection(ctx context.Context, c *model.PaymentCollection) error
	GetPaymentCollection(ctx context.Context, reference string) (*model.PaymentCollection, error)
	SetCollectionGatewayReference(ctx context.Context, reference, gatewayRef string) error
	CreditCollection(ctx context.Context, reference string) error
	MarkCollectionFailed(ctx context.Context, reference string) error
}

// FulfillmentClient описывает контракт клиента панели выполнения.
type FulfillmentClient interface {
	Submit(ctx context.Context, serviceID int, link string, quantity int64) (*exobooster.SubmitResult, error)
	Status(ctx context.Context, externalOrderID string) (*exobooster.StatusResult, error)
	Balance(ctx context.Context) (string, string, error)
}

// PaymentClient описывает контракт клиента платёжного шлюза.
type PaymentClient interface {
	Collect(ctx context.Context, req campay.CollectRequest) (*campay.CollectResult, error)
	Status(ctx context.Context, reference string) (*campay.TransactionStatus, error)
	Balance(ctx context.Context) (string, error)
}

// Notifier описывает контракт отправки уведомлений оператору.
type Notifier interface {
	SendLowBalanceAlert(ctx context.Context, alert notifier.LowBalanceAlert) error
}

// ValidationError описывает ошибку входных данных, исправимую пользователем.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Service содержит бизнес-логику сервиса AVYboost.
type Service struct {
	repo     Repository
	booster  FulfillmentClient
	payments PaymentClient
	notifier Notifier
	logger   *zap.Logger

	feed *orderFeed

	// Параметры фоновых циклов; уменьшаются в тестах.
	syncInterval        time.Duration
	syncCooldown        time.Duration
	pollDelay           time.Duration
	paymentPollInterval time.Duration
	paymentTimeout      time.Duration

	guard *syncGuard

	// Контекст жизненного цикла фоновых наблюдателей; переустанавливается в
	// StartOrderSync, читается из обработчиков — поэтому под мьютексом.
	baseCtxMu sync.RWMutex
	baseCtx   context.Context

	wg sync.WaitGroup
}

// NewService создаёт новый сервис с указанными зависимостями.
func NewService(repo Repository, booster FulfillmentClient, payments PaymentClient, ntf Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:                repo,
		booster:             booster,
		payments:            payments,
		notifier:            ntf,
		logger:              logger,
		feed:                newOrderFeed(),
		syncInterval:        30 * time.Second,
		syncCooldown:        10 * time.Second,
		pollDelay:           300 * time.Millisecond,
		paymentPollInterval: 5 * time.Second,
		paymentTimeout:      2 * time.Minute,
		guard:               newSyncGuard(),
		baseCtx:             context.Background(),
	}
}

func (s *Service) setLifecycleCtx(ctx context.Context) {
	s.baseCtxMu.Lock()
	s.baseCtx = ctx
	s.baseCtxMu.Unlock()
}

func (s *Service) lifecycleCtx() context.Context {
	s.baseCtxMu.RLock()
	defer s.baseCtxMu.RUnlock()
	return s.baseCtx
}

// SetSyncInterval задаёт период фоновой сверки заказов.
// Вызывается до StartOrderSync.
func (s *Service) SetSyncInterval(d time.Duration) {
	if d > 0 {
		s.syncInterval = d
	}
}

// Close закрывает ресурсы сервиса и дожидается фоновых операций.
func (s *Service) Close() error {
	s.wg.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// EnsureAccount создаёт счёт пользователя при первом обращении и возвращает его.
func (s *Service) EnsureAccount(ctx context.Context, uid string) (*model.Account, error) {
	if uid == "" {
		return nil, &ValidationError{Message: "user id is required"}
	}
	return s.repo.EnsureAccount(ctx, uid)
}

// GetAccount возвращает счёт пользователя.
func (s *Service) GetAccount(ctx context.Context, uid string) (*model.Account, error) {
	return s.repo.GetAccount(ctx, uid)
}

// GetTransactions возвращает журнал операций пользователя.
func (s *Service) GetTransactions(ctx context.Context, uid string) ([]model.Transaction, error) {
	return s.repo.GetTransactionsByUser(ctx, uid)
}

// OrderSpec описывает параметры создаваемого заказа.
type OrderSpec struct {
	Platform      string
	ServiceID     int
	Service       string
	Quantity      int64
	TargetURL     string
	Amount        int64
	DeliveryType  model.DeliveryType
	EstimatedTime string
}

// CreateOrder проверяет параметры заказа, атомарно списывает его стоимость
// и создаёт заказ, после чего передаёт его панели выполнения. Если панель
// недоступна или на её счёте нет средств, заказ остаётся оплаченным и ожидающим,
// а оператор получает уведомление.
func (s *Service) CreateOrder(ctx context.Context, uid string, spec OrderSpec) (string, error) {
	if err := s.validateOrderSpec(spec); err != nil {
		return "", err
	}

	// Быстрая предварительная проверка баланса для мгновенного ответа пользователю.
	// Авторитетная проверка выполняется внутри транзакции создания заказа.
	account, err := s.repo.GetAccount(ctx, uid)
	if err != nil {
		return "", err
	}
	if account.Balance < spec.Amount {
		return "", repository.ErrInsufficientBalance
	}

	order := &model.Order{
		UserID:        uid,
		Platform:      spec.Platform,
		ServiceID:     spec.ServiceID,
		Service:       spec.Service,
		Quantity:      spec.Quantity,
		TargetURL:     spec.TargetURL,
		Amount:        spec.Amount,
		DeliveryType:  spec.DeliveryType,
		EstimatedTime: spec.EstimatedTime,
	}

	orderID, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return "", err
	}

	s.submitOrder(ctx, uid, orderID, spec)
	s.notifyOrders(ctx, uid)

	return orderID, nil
}

func (s *Service) validateOrderSpec(spec OrderSpec) error {
	if spec.TargetURL == "" || !validation.IsValidTargetURL(spec.TargetURL) {
		return &ValidationError{Message: "invalid target url"}
	}

	if spec.DeliveryType != model.DeliveryStandard && spec.DeliveryType != model.DeliveryExpress {
		return &ValidationError{Message: "invalid delivery type"}
	}

	if catalog.Resolve(spec.Platform, spec.ServiceID) == 0 {
		return &ValidationError{Message: "Service non trouvé"}
	}

	check := catalog.ValidateQuantity(spec.Platform, spec.ServiceID, spec.Quantity)
	if !check.Valid {
		return &ValidationError{Message: check.Message}
	}

	price, ok := catalog.Price(spec.Platform, spec.ServiceID, spec.Quantity)
	if !ok || price != spec.Amount {
		return &ValidationError{Message: fmt.Sprintf("Prix incorrect, attendu %d XAF", price)}
	}

	return nil
}

// submitOrder передаёт оплаченный заказ панели выполнения. Неудача не отменяет
// заказ: он остаётся в статусе pending до вмешательства оператора.
func (s *Service) submitOrder(ctx context.Context, uid, orderID string, spec OrderSpec) {
	if s.booster == nil {
		return
	}

	exoID := catalog.Resolve(spec.Platform, spec.ServiceID)

	res, err := s.booster.Submit(ctx, exoID, spec.TargetURL, spec.Quantity)
	if err != nil {
		if errors.Is(err, exobooster.ErrResellerBalance) {
			s.alertLowBalance(ctx, uid, spec)
		}
		s.logger.Warn("order submit failed, order stays pending",
			zap.Error(err), zap.String("orderID", orderID))
		return
	}

	if err := s.repo.SetOrderSubmitted(ctx, orderID, res.ExternalOrderID); err != nil {
		s.logger.Error("store external order id", zap.Error(err), zap.String("orderID", orderID))
	}
}

func (s *Service) alertLowBalance(ctx context.Context, uid string, spec OrderSpec) {
	if s.notifier == nil {
		return
	}

	balance := ""
	if b, _, err := s.booster.Balance(ctx); err == nil {
		balance = b
	}

	err := s.notifier.SendLowBalanceAlert(ctx, notifier.LowBalanceAlert{
		CustomerEmail: uid,
		ServiceName:   spec.Service,
		Quantity:      spec.Quantity,
		Amount:        spec.Amount,
		PanelBalance:  balance,
		TargetURL:     spec.TargetURL,
	})
	if err != nil {
		s.logger.Error("send low balance alert", zap.Error(err))
	}
}

// CancelOrder отменяет ожидающий заказ пользователя с полным возвратом средств.
func (s *Service) CancelOrder(ctx context.Context, orderID, uid string) error {
	if err := s.repo.CancelOrder(ctx, orderID, uid); err != nil {
		return err
	}
	s.notifyOrders(ctx, uid)
	return nil
}

// GetOrders возвращает заказы пользователя, новые первыми.
func (s *Service) GetOrders(ctx context.Context, uid string) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, uid)
}

// ComputeStats вычисляет агрегаты по набору заказов. Чистая функция.
func ComputeStats(orders []model.Order) model.OrderStats {
	stats := model.OrderStats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case model.OrderStatusPending:
			stats.Pending++
		case model.OrderStatusProcessing:
			stats.Processing++
		case model.OrderStatusCompleted:
			stats.Completed++
		}
	}
	return stats
}

// ResellerBalance возвращает остаток средств на счёте панели выполнения.
func (s *Service) ResellerBalance(ctx context.Context) (string, string, error) {
	if s.booster == nil {
		return "", "", fmt.Errorf("fulfillment client not configured")
	}
	return s.booster.Balance(ctx)
}

// PaymentBalance возвращает остаток средств приложения в платёжном шлюзе.
func (s *Service) PaymentBalance(ctx context.Context) (string, error) {
	if s.payments == nil {
		return "", fmt.Errorf("payment client not configured")
	}
	return s.payments.Balance(ctx)
}
