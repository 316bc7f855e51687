// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/avydigital/avyboost/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAccountNotFound возвращается, если счёт пользователя не найден.
var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound возвращается, если заказ не найден у данного пользователя.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotCancellable возвращается при попытке отменить заказ, уже взятый в работу.
	ErrOrderNotCancellable = errors.New("order is not cancellable")
	// ErrCollectionNotFound возвращается, если запрос на пополнение не найден.
	ErrCollectionNotFound = errors.New("payment collection not found")
	// ErrCollectionAlreadyCredited возвращается при повторной попытке зачислить один и тот же платёж.
	ErrCollectionAlreadyCredited = errors.New("payment collection already credited")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// querier покрывает общие для pgxpool.Pool и pgx.Tx операции, используемые
// телами транзакций. Шаги транзакции тестируются отдельно от пула.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при конфликтах сериализации и дедлоках.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(time.Second))
	return retry.Do(ctx, backoff, func(_ context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		return err
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func newReferralCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "AVY" + uuid.NewString()[:6]
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return "AVY" + string(buf)
}

func levelFor(points int64) model.LoyaltyLevel {
	switch {
	case points >= 10000:
		return model.LoyaltyPlatinum
	case points >= 2000:
		return model.LoyaltyGold
	case points >= 500:
		return model.LoyaltySilver
	default:
		return model.LoyaltyBronze
	}
}

// EnsureAccount создаёт счёт с нулевым балансом, если его ещё нет, и возвращает его.
// Идемпотентна и безопасна при параллельных вызовах.
func (r *PostgresRepository) EnsureAccount(ctx context.Context, uid string) (*model.Account, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (uid, referral_code) VALUES ($1, $2) ON CONFLICT (uid) DO NOTHING`,
		uid, newReferralCode(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	return r.GetAccount(ctx, uid)
}

// GetAccount возвращает счёт пользователя.
func (r *PostgresRepository) GetAccount(ctx context.Context, uid string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT uid, balance, loyalty_points, loyalty_level, referral_code, created_at
		 FROM users WHERE uid = $1`,
		uid,
	)

	var a model.Account
	err := row.Scan(&a.UID, &a.Balance, &a.LoyaltyPoints, &a.LoyaltyLevel, &a.ReferralCode, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

// Credit зачисляет средства на счёт пользователя. Сначала создаётся запись операции
// в статусе pending, затем в одной транзакции увеличивается баланс и запись помечается
// completed. Если счёта ещё нет, он создаётся сразу с зачисленной суммой.
func (r *PostgresRepository) Credit(ctx context.Context, uid string, amount int64, method, orderID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	txID := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, method, order_id, status)
		 VALUES ($1, $2, 'credit', $3, $4, $5, 'pending')`,
		txID, uid, amount, method, nullableID(orderID),
	)
	if err != nil {
		return "", fmt.Errorf("insert credit transaction: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		return r.completeCredit(ctx, txID, uid, amount)
	})
	if err != nil {
		// Запись остаётся в журнале как неуспешная, баланс не менялся.
		_, _ = r.pool.Exec(ctx, `UPDATE transactions SET status = 'failed' WHERE id = $1`, txID)
		return "", err
	}

	return txID, nil
}

func (r *PostgresRepository) completeCredit(ctx context.Context, txID, uid string, amount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (uid, balance, referral_code) VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE SET balance = users.balance + EXCLUDED.balance`,
		uid, amount, newReferralCode(),
	)
	if err != nil {
		return fmt.Errorf("apply credit: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE transactions SET status = 'completed' WHERE id = $1`, txID)
	if err != nil {
		return fmt.Errorf("complete credit transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Debit списывает средства со счёта пользователя. Проверка баланса, уменьшение
// и запись операции журнала выполняются в одной транзакции с блокировкой строки счёта.
func (r *PostgresRepository) Debit(ctx context.Context, uid string, amount int64, service, orderID string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	return r.withRetry(ctx, func() error {
		return r.debitOnce(ctx, uid, amount, service, orderID)
	})
}

func (r *PostgresRepository) debitOnce(ctx context.Context, uid string, amount int64, service, orderID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE uid = $1 FOR UPDATE`, uid).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lock account: %w", err)
	}

	if balance < amount {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance - $2 WHERE uid = $1`, uid, amount)
	if err != nil {
		return fmt.Errorf("apply debit: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, service, order_id, status)
		 VALUES ($1, $2, 'debit', $3, $4, $5, 'completed')`,
		uuid.NewString(), uid, amount, service, nullableID(orderID),
	)
	if err != nil {
		return fmt.Errorf("insert debit transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetTransactionsByUser возвращает журнал операций пользователя, новые первыми.
func (r *PostgresRepository) GetTransactionsByUser(ctx context.Context, uid string) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, amount, method, service, COALESCE(order_id::text, ''), status, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Method, &t.Service, &t.OrderID, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
