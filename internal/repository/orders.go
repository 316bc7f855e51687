package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avydigital/avyboost/internal/model"
)

// CreateOrder создаёт заказ и в той же транзакции списывает его стоимость со счёта
// и начисляет баллы лояльности (1 балл за 100 XAF). Заказ не может существовать
// неоплаченным: при нехватке средств транзакция откатывается целиком.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	orderID := ""
	err := r.withRetry(ctx, func() error {
		var err error
		orderID, err = r.createOrderOnce(ctx, o)
		return err
	})
	return orderID, err
}

func (r *PostgresRepository) createOrderOnce(ctx context.Context, o *model.Order) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	orderID, err := createOrderInTx(ctx, tx, o)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	return orderID, nil
}

func createOrderInTx(ctx context.Context, tx querier, o *model.Order) (string, error) {
	var balance, points int64
	err := tx.QueryRow(ctx,
		`SELECT balance, loyalty_points FROM users WHERE uid = $1 FOR UPDATE`,
		o.UserID,
	).Scan(&balance, &points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("lock account: %w", err)
	}

	if balance < o.Amount {
		return "", ErrInsufficientBalance
	}

	earned := o.Amount / 100
	newPoints := points + earned

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance - $2, loyalty_points = $3, loyalty_level = $4 WHERE uid = $1`,
		o.UserID, o.Amount, newPoints, string(levelFor(newPoints)),
	)
	if err != nil {
		return "", fmt.Errorf("apply order debit: %w", err)
	}

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, platform, service_id, service, quantity, target_url, amount, delivery_type, status, estimated_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)`,
		orderID, o.UserID, o.Platform, o.ServiceID, o.Service, o.Quantity, o.TargetURL, o.Amount, string(o.DeliveryType), o.EstimatedTime,
	)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, service, order_id, status)
		 VALUES ($1, $2, 'debit', $3, $4, $5, 'completed')`,
		uuid.NewString(), o.UserID, o.Amount, o.Service, orderID,
	)
	if err != nil {
		return "", fmt.Errorf("insert debit transaction: %w", err)
	}

	return orderID, nil
}

// CancelOrder отменяет заказ пользователя и возвращает его стоимость на счёт.
// Отмена возможна только пока заказ ожидает и не передан системе выполнения.
// Возврат, смена статуса и запись операции журнала выполняются в одной транзакции.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID, uid string) error {
	return r.withRetry(ctx, func() error {
		return r.cancelOrderOnce(ctx, orderID, uid)
	})
}

func (r *PostgresRepository) cancelOrderOnce(ctx context.Context, orderID, uid string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := cancelOrderInTx(ctx, tx, orderID, uid); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func cancelOrderInTx(ctx context.Context, tx querier, orderID, uid string) error {
	var status string
	var amount int64
	var exoOrderID *string
	err := tx.QueryRow(ctx,
		`SELECT status, amount, exo_order_id FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		orderID, uid,
	).Scan(&status, &amount, &exoOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if status != string(model.OrderStatusPending) || exoOrderID != nil {
		return ErrOrderNotCancellable
	}

	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE uid = $1`, uid, amount)
	if err != nil {
		return fmt.Errorf("apply refund: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, method, order_id, status)
		 VALUES ($1, $2, 'credit', $3, 'Remboursement', $4, 'completed')`,
		uuid.NewString(), uid, amount, orderID,
	)
	if err != nil {
		return fmt.Errorf("insert refund transaction: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = 'cancelled', updated_at = now() WHERE id = $1`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	return nil
}

const orderColumns = `id, user_id, platform, service_id, service, quantity, delivered, target_url,
	amount, delivery_type, status, estimated_time, COALESCE(exo_order_id, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Platform, &o.ServiceID, &o.Service, &o.Quantity, &o.Delivered,
		&o.TargetURL, &o.Amount, &o.DeliveryType, &o.Status, &o.EstimatedTime, &o.ExoOrderID,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, uid string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetActiveOrders возвращает заказы пользователя, ожидающие сверки с системой выполнения:
// статус pending или processing и назначенный внешний идентификатор.
func (r *PostgresRepository) GetActiveOrders(ctx context.Context, uid string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND status IN ('pending', 'processing') AND exo_order_id IS NOT NULL
		 ORDER BY created_at`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// GetAllActiveOrders возвращает заказы всех пользователей, ожидающие сверки.
func (r *PostgresRepository) GetAllActiveOrders(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status IN ('pending', 'processing') AND exo_order_id IS NOT NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetOrderSubmitted сохраняет внешний идентификатор заказа после передачи системе
// выполнения и переводит заказ в processing. Срабатывает только для ожидающих заказов.
func (r *PostgresRepository) SetOrderSubmitted(ctx context.Context, orderID, exoOrderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET exo_order_id = $2, status = 'processing', updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		orderID, exoOrderID,
	)
	if err != nil {
		return fmt.Errorf("set order submitted: %w", err)
	}
	return nil
}

// UpdateOrderSync обновляет статус и число доставленных единиц по данным внешней
// системы. Терминальные заказы не трогаются, delivered не убывает.
func (r *PostgresRepository) UpdateOrderSync(ctx context.Context, orderID string, status model.OrderStatus, delivered int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, delivered = GREATEST(delivered, $3), updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'processing')`,
		orderID, string(status), delivered,
	)
	if err != nil {
		return fmt.Errorf("update order sync: %w", err)
	}
	return nil
}
