package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avydigital/avyboost/internal/model"
)

// CreatePaymentCollection сохраняет новый запрос на пополнение в статусе pending.
func (r *PostgresRepository) CreatePaymentCollection(ctx context.Context, c *model.PaymentCollection) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_collections (reference, user_id, amount, phone, method)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.Reference, c.UserID, c.Amount, c.Phone, c.Method,
	)
	if err != nil {
		return fmt.Errorf("insert payment collection: %w", err)
	}
	return nil
}

// GetPaymentCollection возвращает запрос на пополнение по нашему референсу.
func (r *PostgresRepository) GetPaymentCollection(ctx context.Context, reference string) (*model.PaymentCollection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT reference, user_id, amount, phone, method, gateway_reference, status, created_at, updated_at
		 FROM payment_collections WHERE reference = $1`,
		reference,
	)

	var c model.PaymentCollection
	err := row.Scan(&c.Reference, &c.UserID, &c.Amount, &c.Phone, &c.Method, &c.GatewayReference, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get payment collection: %w", err)
	}

	return &c, nil
}

// SetCollectionGatewayReference сохраняет референс, выданный платёжным шлюзом.
func (r *PostgresRepository) SetCollectionGatewayReference(ctx context.Context, reference, gatewayRef string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_collections SET gateway_reference = $2, updated_at = now() WHERE reference = $1`,
		reference, gatewayRef,
	)
	if err != nil {
		return fmt.Errorf("set gateway reference: %w", err)
	}
	return nil
}

// CreditCollection зачисляет успешный платёж на счёт пользователя ровно один раз.
// Переход pending -> credited и зачисление выполняются в одной транзакции; повторный
// вызов для того же референса возвращает ErrCollectionAlreadyCredited и ничего не меняет.
func (r *PostgresRepository) CreditCollection(ctx context.Context, reference string) error {
	return r.withRetry(ctx, func() error {
		return r.creditCollectionOnce(ctx, reference)
	})
}

func (r *PostgresRepository) creditCollectionOnce(ctx context.Context, reference string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var uid, method string
	var amount int64
	err = tx.QueryRow(ctx,
		`UPDATE payment_collections SET status = 'credited', updated_at = now()
		 WHERE reference = $1 AND status = 'pending'
		 RETURNING user_id, amount, method`,
		reference,
	).Scan(&uid, &amount, &method)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classifyCollectionConflict(ctx, reference)
		}
		return fmt.Errorf("mark collection credited: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (uid, balance, referral_code) VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE SET balance = users.balance + EXCLUDED.balance`,
		uid, amount, newReferralCode(),
	)
	if err != nil {
		return fmt.Errorf("apply collection credit: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, method, status)
		 VALUES ($1, $2, 'credit', $3, $4, 'completed')`,
		uuid.NewString(), uid, amount, method,
	)
	if err != nil {
		return fmt.Errorf("insert collection transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (r *PostgresRepository) classifyCollectionConflict(ctx context.Context, reference string) error {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM payment_collections WHERE reference = $1`, reference,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCollectionNotFound
		}
		return fmt.Errorf("get collection status: %w", err)
	}

	if status == string(model.CollectionCredited) {
		return ErrCollectionAlreadyCredited
	}
	return fmt.Errorf("collection %s is not pending: %s", reference, status)
}

// MarkCollectionFailed помечает запрос на пополнение неуспешным, если он ещё ожидает.
func (r *PostgresRepository) MarkCollectionFailed(ctx context.Context, reference string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_collections SET status = 'failed', updated_at = now()
		 WHERE reference = $1 AND status = 'pending'`,
		reference,
	)
	if err != nil {
		return fmt.Errorf("mark collection failed: %w", err)
	}
	return nil
}
