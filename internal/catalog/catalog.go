// Package catalog содержит статический каталог услуг: соответствие внутренних
// идентификаторов услугам панели выполнения, границы количества и расчёт цены.
package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ServiceInfo описывает услугу панели выполнения, на которую отображается внутренняя услуга.
type ServiceInfo struct {
	ExoID    int
	Name     string
	Min      int64
	Max      int64
	RateUSD  decimal.Decimal // тариф панели в USD за 1000 единиц
	Category string
}

// QuantityCheck содержит результат проверки количества относительно границ услуги.
type QuantityCheck struct {
	Valid   bool
	Min     int64
	Max     int64
	Message string
}

// Курс и наценка для пересчёта тарифов панели в розничные цены XAF.
var (
	usdToXAF = decimal.NewFromInt(615)
	margin   = decimal.NewFromFloat(1.25)
)

// Info возвращает описание услуги панели для внутренней услуги или nil,
// если услуга не заказывается через автоматическое выполнение.
func Info(platform string, serviceID int) *ServiceInfo {
	platformMapping, ok := mapping[platform]
	if !ok {
		return nil
	}

	info, ok := platformMapping[serviceID]
	if !ok {
		return nil
	}

	return &info
}

// Resolve возвращает идентификатор услуги панели выполнения.
// Ноль означает, что услуга не заказывается автоматически.
func Resolve(platform string, serviceID int) int {
	info := Info(platform, serviceID)
	if info == nil {
		return 0
	}
	return info.ExoID
}

// ValidateQuantity проверяет количество относительно границ услуги панели.
func ValidateQuantity(platform string, serviceID int, quantity int64) QuantityCheck {
	info := Info(platform, serviceID)
	if info == nil {
		return QuantityCheck{Message: "Service non trouvé"}
	}

	if quantity < info.Min {
		return QuantityCheck{Min: info.Min, Max: info.Max, Message: fmt.Sprintf("Minimum: %d", info.Min)}
	}

	if quantity > info.Max {
		return QuantityCheck{Min: info.Min, Max: info.Max, Message: fmt.Sprintf("Maximum: %d", info.Max)}
	}

	return QuantityCheck{Valid: true, Min: info.Min, Max: info.Max}
}

// Price вычисляет розничную цену в XAF: тариф панели за количество, пересчитанный
// по курсу, с наценкой, округлённый вверх до кратного 5.
func Price(platform string, serviceID int, quantity int64) (int64, bool) {
	info := Info(platform, serviceID)
	if info == nil {
		return 0, false
	}

	base := info.RateUSD.Div(decimal.NewFromInt(1000)).Mul(decimal.NewFromInt(quantity))
	xaf := base.Mul(usdToXAF).Mul(margin)

	five := decimal.NewFromInt(5)
	price := xaf.Div(five).Ceil().Mul(five)

	return price.IntPart(), true
}

// Platforms возвращает список платформ, представленных в каталоге.
func Platforms() []string {
	res := make([]string, 0, len(mapping))
	for p := range mapping {
		res = append(res, p)
	}
	return res
}
