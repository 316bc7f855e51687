package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avydigital/avyboost/internal/campay"
	"github.com/avydigital/avyboost/internal/model"
	"github.com/avydigital/avyboost/internal/repository"
)

// RechargeResult содержит данные для завершения платежа на стороне пользователя.
type RechargeResult struct {
	Reference string
	USSDCode  string
}

// Recharge инициирует пополнение кошелька через мобильные деньги и запускает
// наблюдение за платежом. Зачисление произойдёт ровно один раз после
// подтверждения оплаты шлюзом.
func (s *Service) Recharge(ctx context.Context, uid string, amount int64, phone, method string) (*RechargeResult, error) {
	if amount <= 0 {
		return nil, &ValidationError{Message: "amount must be positive"}
	}
	if s.payments == nil {
		return nil, errors.New("payment client not configured")
	}

	normalized, err := campay.NormalizePhone(phone)
	if err != nil {
		return nil, &ValidationError{Message: "invalid phone number"}
	}

	reference := "avyboost-" + uuid.NewString()

	collection := &model.PaymentCollection{
		Reference: reference,
		UserID:    uid,
		Amount:    amount,
		Phone:     normalized,
		Method:    method,
	}
	if err := s.repo.CreatePaymentCollection(ctx, collection); err != nil {
		return nil, err
	}

	res, err := s.payments.Collect(ctx, campay.CollectRequest{
		Amount:            amount,
		Phone:             normalized,
		ExternalReference: reference,
	})
	if err != nil {
		if markErr := s.repo.MarkCollectionFailed(ctx, reference); markErr != nil {
			s.logger.Error("mark collection failed", zap.Error(markErr), zap.String("reference", reference))
		}
		return nil, err
	}

	if err := s.repo.SetCollectionGatewayReference(ctx, reference, res.Reference); err != nil {
		s.logger.Error("store gateway reference", zap.Error(err), zap.String("reference", reference))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchCollection(s.lifecycleCtx(), reference, res.Reference)
	}()

	return &RechargeResult{Reference: reference, USSDCode: res.USSDCode}, nil
}

// watchCollection опрашивает шлюз до первого терминального статуса или таймаута.
// Первый успешный опрос зачисляет платёж и немедленно останавливает наблюдение,
// поэтому последующие тики не могут привести к повторному зачислению.
func (s *Service) watchCollection(ctx context.Context, reference, gatewayRef string) {
	ticker := time.NewTicker(s.paymentPollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(s.paymentTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			// Платёж может завершиться вне окна наблюдения: запись остаётся pending,
			// пользователь проверяет её через историю.
			s.logger.Info("payment watch timed out", zap.String("reference", reference))
			return
		case <-ticker.C:
			status, err := s.checkOnce(ctx, reference, gatewayRef)
			if err != nil {
				s.logger.Warn("poll payment status", zap.Error(err), zap.String("reference", reference))
				continue
			}
			if status != model.CollectionPending {
				return
			}
		}
	}
}

// CheckCollection сверяет платёж со шлюзом по требованию и возвращает его состояние.
// Успешный платёж зачисляется идемпотентно: повторная сверка ничего не меняет.
func (s *Service) CheckCollection(ctx context.Context, uid, reference string) (model.CollectionStatus, error) {
	c, err := s.repo.GetPaymentCollection(ctx, reference)
	if err != nil {
		return "", err
	}
	if c.UserID != uid {
		return "", repository.ErrCollectionNotFound
	}

	if c.Status != model.CollectionPending {
		return c.Status, nil
	}

	if c.GatewayReference == "" {
		return model.CollectionPending, nil
	}

	return s.checkOnce(ctx, reference, c.GatewayReference)
}

func (s *Service) checkOnce(ctx context.Context, reference, gatewayRef string) (model.CollectionStatus, error) {
	st, err := s.payments.Status(ctx, gatewayRef)
	if err != nil {
		return model.CollectionPending, err
	}

	switch st.Status {
	case campay.StatusSuccessful:
		err := s.repo.CreditCollection(ctx, reference)
		if err != nil && !errors.Is(err, repository.ErrCollectionAlreadyCredited) {
			return model.CollectionPending, err
		}
		return model.CollectionCredited, nil
	case campay.StatusFailed:
		if err := s.repo.MarkCollectionFailed(ctx, reference); err != nil {
			return model.CollectionPending, err
		}
		return model.CollectionFailed, nil
	default:
		return model.CollectionPending, nil
	}
}
