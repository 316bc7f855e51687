// Package handler содержит HTTP-обработчики API сервиса AVYboost.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avydigital/avyboost/internal/middleware"
	"github.com/avydigital/avyboost/internal/model"
	"github.com/avydigital/avyboost/internal/repository"
	"github.com/avydigital/avyboost/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	EnsureAccount(ctx context.Context, uid string) (*model.Account, error)
	GetAccount(ctx context.Context, uid string) (*model.Account, error)
	GetTransactions(ctx context.Context, uid string) ([]model.Transaction, error)
	CreateOrder(ctx context.Context, uid string, spec service.OrderSpec) (string, error)
	CancelOrder(ctx context.Context, orderID, uid string) error
	GetOrders(ctx context.Context, uid string) ([]model.Order, error)
	SubscribeOrders(ctx context.Context, uid string) (<-chan []model.Order, func())
	SyncUserOrders(ctx context.Context, uid string) (int, error)
	Recharge(ctx context.Context, uid string, amount int64, phone, method string) (*service.RechargeResult, error)
	CheckCollection(ctx context.Context, uid, reference string) (model.CollectionStatus, error)
	ResellerBalance(ctx context.Context) (string, string, error)
	PaymentBalance(ctx context.Context) (string, error)
}

// Handler реализует HTTP-обработчики API сервиса AVYboost.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	allowedOrigins []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, origins []string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		allowedOrigins: origins,
	}
}

// writeError переводит ошибки бизнес-логики в HTTP-ответы. Ошибки валидации
// возвращаются пользователю как есть (они локализованы), остальные скрываются
// за стандартными статусами.
func (h *Handler) writeError(w http.ResponseWriter, err error, logMsg string, fields ...zap.Field) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Message, http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrInsufficientBalance):
		http.Error(w, "Solde insuffisant", http.StatusPaymentRequired)
	case errors.Is(err, repository.ErrOrderNotCancellable):
		http.Error(w, "Seules les commandes en attente peuvent être annulées", http.StatusConflict)
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrCollectionNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	default:
		h.logger.Error(logMsg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type sessionRequest struct {
	UID string `json:"uid"`
}

type accountResponse struct {
	UID           string `json:"uid"`
	Balance       int64  `json:"balance"`
	LoyaltyPoints int64  `json:"loyalty_points"`
	LoyaltyLevel  string `json:"loyalty_level"`
	ReferralCode  string `json:"referral_code"`
	CreatedAt     string `json:"created_at"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		UID:           a.UID,
		Balance:       a.Balance,
		LoyaltyPoints: a.LoyaltyPoints,
		LoyaltyLevel:  string(a.LoyaltyLevel),
		ReferralCode:  a.ReferralCode,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

// Register принимает идентификатор, выданный провайдером аутентификации,
// создаёт счёт при первом обращении и устанавливает cookie сессии.
// Идентификатору доверяем: сервис развёрнут за обратным прокси провайдера,
// который аутентифицирует запрос до того, как он дойдёт сюда.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.UID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	account, err := h.service.EnsureAccount(r.Context(), req.UID)
	if err != nil {
		h.writeError(w, err, "ensure account error", zap.String("uid", req.UID))
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.UID)
	writeJSON(w, toAccountResponse(account))
}

// Login повторяет Register: счёт уже существует, cookie переустанавливается.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.Register(w, r)
}

// GetProfile возвращает счёт текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	account, err := h.service.GetAccount(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "get profile error", zap.String("uid", uid))
		return
	}

	writeJSON(w, toAccountResponse(account))
}

type balanceResponse struct {
	Balance       int64  `json:"balance"`
	LoyaltyPoints int64  `json:"loyalty_points"`
	LoyaltyLevel  string `json:"loyalty_level"`
}

// GetBalance возвращает баланс кошелька текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	account, err := h.service.GetAccount(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "get balance error", zap.String("uid", uid))
		return
	}

	writeJSON(w, balanceResponse{
		Balance:       account.Balance,
		LoyaltyPoints: account.LoyaltyPoints,
		LoyaltyLevel:  string(account.LoyaltyLevel),
	})
}

type transactionResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method,omitempty"`
	Service   string `json:"service,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetTransactions возвращает журнал операций текущего пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	transactions, err := h.service.GetTransactions(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "get transactions error", zap.String("uid", uid))
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, transactionResponse{
			ID:        t.ID,
			Type:      string(t.Type),
			Amount:    t.Amount,
			Method:    t.Method,
			Service:   t.Service,
			OrderID:   t.OrderID,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, resp)
}

type rechargeRequest struct {
	Amount int64  `json:"amount"`
	Phone  string `json:"phone"`
	Method string `json:"method"`
}

type rechargeResponse struct {
	Reference string `json:"reference"`
	USSDCode  string `json:"ussd_code,omitempty"`
}

// Recharge инициирует пополнение кошелька через мобильные деньги.
// Зачисление произойдёт позже, после подтверждения оплаты шлюзом.
func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req rechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.Recharge(r.Context(), uid, req.Amount, req.Phone, req.Method)
	if err != nil {
		h.writeError(w, err, "recharge error", zap.String("uid", uid))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(rechargeResponse{Reference: res.Reference, USSDCode: res.USSDCode}); err != nil {
		h.logger.Error("encode recharge response", zap.Error(err))
	}
}

type collectionStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// CheckRecharge сверяет статус платежа со шлюзом по требованию клиента.
// Повторные вызовы безопасны: успешный платёж зачисляется ровно один раз.
func (h *Handler) CheckRecharge(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := h.service.CheckCollection(r.Context(), uid, reference)
	if err != nil {
		h.writeError(w, err, "check recharge error", zap.String("uid", uid), zap.String("reference", reference))
		return
	}

	writeJSON(w, collectionStatusResponse{Reference: reference, Status: string(status)})
}

type createOrderRequest struct {
	Platform      string `json:"platform"`
	ServiceID     int    `json:"service_id"`
	Service       string `json:"service"`
	Quantity      int64  `json:"quantity"`
	TargetURL     string `json:"target_url"`
	Amount        int64  `json:"amount"`
	DeliveryType  string `json:"delivery_type"`
	EstimatedTime string `json:"estimated_time"`
}

// CreateOrder принимает заказ, атомарно списывает его стоимость и передаёт
// заказ панели выполнения.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orderID, err := h.service.CreateOrder(r.Context(), uid, service.OrderSpec{
		Platform:      req.Platform,
		ServiceID:     req.ServiceID,
		Service:       req.Service,
		Quantity:      req.Quantity,
		TargetURL:     req.TargetURL,
		Amount:        req.Amount,
		DeliveryType:  model.DeliveryType(req.DeliveryType),
		EstimatedTime: req.EstimatedTime,
	})
	if err != nil {
		h.writeError(w, err, "create order error", zap.String("uid", uid))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]string{"id": orderID}); err != nil {
		h.logger.Error("encode order response", zap.Error(err))
	}
}

type orderResponse struct {
	ID            string `json:"id"`
	Platform      string `json:"platform"`
	ServiceID     int    `json:"service_id"`
	Service       string `json:"service"`
	Quantity      int64  `json:"quantity"`
	Delivered     int64  `json:"delivered"`
	TargetURL     string `json:"target_url"`
	Amount        int64  `json:"amount"`
	DeliveryType  string `json:"delivery_type"`
	Status        string `json:"status"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			ID:            o.ID,
			Platform:      o.Platform,
			ServiceID:     o.ServiceID,
			Service:       o.Service,
			Quantity:      o.Quantity,
			Delivered:     o.Delivered,
			TargetURL:     o.TargetURL,
			Amount:        o.Amount,
			DeliveryType:  string(o.DeliveryType),
			Status:        string(o.Status),
			EstimatedTime: o.EstimatedTime,
			CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

type ordersListResponse struct {
	Orders []orderResponse  `json:"orders"`
	Stats  model.OrderStats `json:"stats"`
}

// GetOrders возвращает заказы текущего пользователя вместе с агрегатами.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrders(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "get orders error", zap.String("uid", uid))
		return
	}

	writeJSON(w, ordersListResponse{
		Orders: toOrderResponses(orders),
		Stats:  service.ComputeStats(orders),
	})
}

// CancelOrder отменяет заказ, ещё не переданный панели выполнения,
// и возвращает его стоимость на баланс.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.CancelOrder(r.Context(), orderID, uid); err != nil {
		h.writeError(w, err, "cancel order error", zap.String("uid", uid), zap.String("orderID", orderID))
		return
	}

	w.WriteHeader(http.StatusOK)
}

type syncResponse struct {
	Synced int `json:"synced"`
}

// SyncOrders запускает сверку активных заказов пользователя по требованию.
func (h *Handler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	synced, err := h.service.SyncUserOrders(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "sync orders error", zap.String("uid", uid))
		return
	}

	writeJSON(w, syncResponse{Synced: synced})
}

// StreamOrders отдаёт заказы пользователя потоком server-sent events:
// снимок при подключении и обновление после каждого изменения.
func (h *Handler) StreamOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := h.service.SubscribeOrders(r.Context(), uid)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case orders, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(ordersListResponse{
				Orders: toOrderResponses(orders),
				Stats:  service.ComputeStats(orders),
			})
			if err != nil {
				h.logger.Error("marshal orders event", zap.Error(err), zap.String("uid", uid))
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type adminBalancesResponse struct {
	ResellerBalance  string `json:"reseller_balance"`
	ResellerCurrency string `json:"reseller_currency"`
	PaymentBalance   string `json:"payment_balance"`
}

// GetAdminBalances возвращает остатки средств на счетах внешних систем.
// Ошибки одного шлюза не скрывают данные другого.
func (h *Handler) GetAdminBalances(w http.ResponseWriter, r *http.Request) {
	resp := adminBalancesResponse{}

	balance, currency, err := h.service.ResellerBalance(r.Context())
	if err != nil {
		h.logger.Warn("reseller balance error", zap.Error(err))
	} else {
		resp.ResellerBalance = balance
		resp.ResellerCurrency = currency
	}

	payBalance, err := h.service.PaymentBalance(r.Context())
	if err != nil {
		h.logger.Warn("payment balance error", zap.Error(err))
	} else {
		resp.PaymentBalance = payBalance
	}

	writeJSON(w, resp)
}
