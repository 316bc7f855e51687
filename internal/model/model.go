// Package model содержит доменные сущности сервиса AVYboost.
package model

import "time"

// LoyaltyLevel описывает уровень лояльности пользователя.
type LoyaltyLevel string

const (
	LoyaltyBronze   LoyaltyLevel = "bronze"
	LoyaltySilver   LoyaltyLevel = "silver"
	LoyaltyGold     LoyaltyLevel = "gold"
	LoyaltyPlatinum LoyaltyLevel = "platinum"
)

// Account представляет счёт пользователя: баланс в XAF и данные программы лояльности.
// Идентификатор принадлежит внешнему провайдеру аутентификации.
type Account struct {
	UID           string
	Balance       int64
	LoyaltyPoints int64
	LoyaltyLevel  LoyaltyLevel
	ReferralCode  string
	CreatedAt     time.Time
}

// TransactionType описывает направление операции по счёту.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionStatus описывает состояние операции по счёту.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction описывает запись журнала операций по счёту.
// Записи только добавляются; после перехода в completed запись не изменяется.
type Transaction struct {
	ID        string
	UserID    string
	Type      TransactionType
	Amount    int64
	Method    string
	Service   string
	OrderID   string
	Status    TransactionStatus
	CreatedAt time.Time
}

// OrderStatus описывает статус выполнения заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// DeliveryType описывает скорость доставки заказа.
type DeliveryType string

const (
	DeliveryStandard DeliveryType = "standard"
	DeliveryExpress  DeliveryType = "express"
)

// Order описывает заказ на продвижение в социальной сети.
type Order struct {
	ID            string
	UserID        string
	Platform      string
	ServiceID     int
	Service       string
	Quantity      int64
	Delivered     int64
	TargetURL     string
	Amount        int64
	DeliveryType  DeliveryType
	Status        OrderStatus
	EstimatedTime string
	ExoOrderID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active возвращает true, если заказ ожидает сверки с системой выполнения.
func (o Order) Active() bool {
	return (o.Status == OrderStatusPending || o.Status == OrderStatusProcessing) && o.ExoOrderID != ""
}

// OrderStats содержит агрегаты по заказам пользователя. Не хранится, вычисляется.
type OrderStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
}

// CollectionStatus описывает состояние запроса на пополнение через мобильные деньги.
type CollectionStatus string

const (
	CollectionPending  CollectionStatus = "pending"
	CollectionCredited CollectionStatus = "credited"
	CollectionFailed   CollectionStatus = "failed"
)

// PaymentCollection описывает запрос на сбор средств с телефона пользователя.
// Reference — наш внешний идентификатор, по нему гарантируется ровно одно зачисление.
type PaymentCollection struct {
	Reference        string
	UserID           string
	Amount           int64
	Phone            string
	Method           string
	GatewayReference string
	Status           CollectionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
