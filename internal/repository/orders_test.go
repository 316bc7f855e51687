package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avydigital/avyboost/internal/model"
)

type execCall struct {
	sql  string
	args []any
}

type fakeRow struct {
	sql  string
	args []any
	scan func(sql string, args []any, dest []any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scan(r.sql, r.args, dest)
}

type fakeTx struct {
	rowScan func(sql string, args []any, dest []any) error
	execs   []execCall
	execErr error
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{sql: sql, args: args, scan: t.rowScan}
}

func accountScan(balance, points int64) func(string, []any, []any) error {
	return func(_ string, _ []any, dest []any) error {
		*dest[0].(*int64) = balance
		*dest[1].(*int64) = points
		return nil
	}
}

func orderScan(status string, amount int64, exoOrderID *string) func(string, []any, []any) error {
	return func(_ string, _ []any, dest []any) error {
		*dest[0].(*string) = status
		*dest[1].(*int64) = amount
		*dest[2].(**string) = exoOrderID
		return nil
	}
}

func testOrder() *model.Order {
	return &model.Order{
		UserID:        "uid-1",
		Platform:      "tiktok",
		ServiceID:     1,
		Service:       "Vues TikTok",
		Quantity:      1000,
		TargetURL:     "https://tiktok.com/@user",
		Amount:        1085,
		DeliveryType:  model.DeliveryStandard,
		EstimatedTime: "0-1 heure",
	}
}

func TestCreateOrderInTx_InsufficientBalance(t *testing.T) {
	tx := &fakeTx{rowScan: accountScan(500, 0)}

	_, err := createOrderInTx(context.Background(), tx, testOrder())
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(tx.execs) != 0 {
		t.Fatalf("expected no writes on insufficient balance, got %d", len(tx.execs))
	}
}

func TestCreateOrderInTx_AccountMissing(t *testing.T) {
	tx := &fakeTx{rowScan: func(_ string, _ []any, _ []any) error {
		return pgx.ErrNoRows
	}}

	_, err := createOrderInTx(context.Background(), tx, testOrder())
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if len(tx.execs) != 0 {
		t.Fatalf("expected no writes for missing account, got %d", len(tx.execs))
	}
}

func TestCreateOrderInTx_DebitsAndAccruesLoyalty(t *testing.T) {
	tx := &fakeTx{rowScan: accountScan(5000, 495)}

	orderID, err := createOrderInTx(context.Background(), tx, testOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID == "" {
		t.Fatal("expected non-empty order id")
	}
	if len(tx.execs) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(tx.execs))
	}

	debit := tx.execs[0]
	if !strings.Contains(debit.sql, "UPDATE users") {
		t.Fatalf("first write should debit the account, got: %s", debit.sql)
	}
	if debit.args[1].(int64) != 1085 {
		t.Errorf("debit amount = %v, want 1085", debit.args[1])
	}
	// 495 накопленных + 1085/100 начисленных = 505, что даёт уровень silver.
	if debit.args[2].(int64) != 505 {
		t.Errorf("loyalty points = %v, want 505", debit.args[2])
	}
	if debit.args[3].(string) != string(model.LoyaltySilver) {
		t.Errorf("loyalty level = %v, want silver", debit.args[3])
	}

	if !strings.Contains(tx.execs[1].sql, "INSERT INTO orders") {
		t.Errorf("second write should insert the order, got: %s", tx.execs[1].sql)
	}
	journal := tx.execs[2]
	if !strings.Contains(journal.sql, "INSERT INTO transactions") || !strings.Contains(journal.sql, "'debit'") {
		t.Errorf("third write should journal the debit, got: %s", journal.sql)
	}
	if journal.args[4].(string) != orderID {
		t.Errorf("journal order id = %v, want %s", journal.args[4], orderID)
	}
}

func TestCancelOrderInTx_RefundsPendingOrder(t *testing.T) {
	tx := &fakeTx{rowScan: orderScan("pending", 1085, nil)}

	if err := cancelOrderInTx(context.Background(), tx, "order-1", "uid-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tx.execs) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(tx.execs))
	}

	refund := tx.execs[0]
	if !strings.Contains(refund.sql, "balance = balance + $2") {
		t.Fatalf("first write should refund the account, got: %s", refund.sql)
	}
	if refund.args[1].(int64) != 1085 {
		t.Errorf("refund amount = %v, want 1085", refund.args[1])
	}

	journal := tx.execs[1]
	if !strings.Contains(journal.sql, "'credit'") || !strings.Contains(journal.sql, "'Remboursement'") {
		t.Errorf("second write should journal the refund, got: %s", journal.sql)
	}
	if journal.args[2].(int64) != 1085 {
		t.Errorf("journal amount = %v, want 1085", journal.args[2])
	}

	if !strings.Contains(tx.execs[2].sql, "'cancelled'") {
		t.Errorf("third write should cancel the order, got: %s", tx.execs[2].sql)
	}
}

func TestCancelOrderInTx_RejectsNonCancellable(t *testing.T) {
	exoID := "exo-42"
	tests := []struct {
		name       string
		status     string
		exoOrderID *string
	}{
		{name: "processing order", status: "processing", exoOrderID: nil},
		{name: "completed order", status: "completed", exoOrderID: nil},
		{name: "pending but already submitted", status: "pending", exoOrderID: &exoID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &fakeTx{rowScan: orderScan(tt.status, 1085, tt.exoOrderID)}

			err := cancelOrderInTx(context.Background(), tx, "order-1", "uid-1")
			if !errors.Is(err, ErrOrderNotCancellable) {
				t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
			}
			if len(tx.execs) != 0 {
				t.Fatalf("expected no writes, got %d", len(tx.execs))
			}
		})
	}
}

func TestCancelOrderInTx_OrderMissing(t *testing.T) {
	tx := &fakeTx{rowScan: func(_ string, _ []any, _ []any) error {
		return pgx.ErrNoRows
	}}

	err := cancelOrderInTx(context.Background(), tx, "order-1", "uid-1")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

// Создание заказа и его отмена в сумме не меняют баланс: дебет и возврат
// на одну и ту же сумму, в журнале ровно две записи.
func TestCreateThenCancel_NetZeroJournal(t *testing.T) {
	o := testOrder()
	tx := &fakeTx{rowScan: func(sql string, _ []any, dest []any) error {
		if strings.Contains(sql, "FROM users") {
			return accountScan(5000, 0)(sql, nil, dest)
		}
		return orderScan("pending", o.Amount, nil)(sql, nil, dest)
	}}

	orderID, err := createOrderInTx(context.Background(), tx, o)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cancelOrderInTx(context.Background(), tx, orderID, o.UserID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var journaled []execCall
	var delta int64
	for _, call := range tx.execs {
		if strings.Contains(call.sql, "INSERT INTO transactions") {
			journaled = append(journaled, call)
		}
		if strings.Contains(call.sql, "balance = balance - $2") {
			delta -= call.args[1].(int64)
		}
		if strings.Contains(call.sql, "balance = balance + $2") {
			delta += call.args[1].(int64)
		}
	}
	if len(journaled) != 2 {
		t.Fatalf("expected exactly 2 journal rows, got %d", len(journaled))
	}
	if journaled[0].args[2].(int64) != journaled[1].args[2].(int64) {
		t.Errorf("debit %v and refund %v amounts differ", journaled[0].args[2], journaled[1].args[2])
	}
	if delta != 0 {
		t.Errorf("balance delta after create+cancel = %d, want 0", delta)
	}
}
