package exobooster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmit_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("action") != "add" {
			t.Fatalf("action = %s, want add", r.PostForm.Get("action"))
		}
		if r.PostForm.Get("key") != "secret-key" {
			t.Fatalf("key = %s, want secret-key", r.PostForm.Get("key"))
		}
		if r.PostForm.Get("service") != "3036" {
			t.Fatalf("service = %s, want 3036", r.PostForm.Get("service"))
		}
		if r.PostForm.Get("quantity") != "1000" {
			t.Fatalf("quantity = %s, want 1000", r.PostForm.Get("quantity"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order": 99123, "charge": "1.41", "start_count": "250"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Submit(ctx, 3036, "https://tiktok.com/@someone", 1000)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.ExternalOrderID != "99123" {
		t.Fatalf("order id = %s, want 99123", res.ExternalOrderID)
	}
	if res.Charge != "1.41" {
		t.Fatalf("charge = %s, want 1.41", res.Charge)
	}
	if res.StartCount != 250 {
		t.Fatalf("start count = %d, want 250", res.StartCount)
	}
}

func TestSubmit_APIErrorField(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Панель сообщает об ошибке в теле, HTTP-код при этом 200.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "Incorrect service ID"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Submit(ctx, 1, "https://example.com", 10)
	if !errors.Is(err, ErrAPIError) {
		t.Fatalf("expected ErrAPIError, got %v", err)
	}
}

func TestSubmit_ResellerBalanceClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "Not enough funds on balance"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Submit(ctx, 3036, "https://example.com", 1000)
	if !errors.Is(err, ErrResellerBalance) {
		t.Fatalf("expected ErrResellerBalance, got %v", err)
	}
}

func TestStatus_StringNumbers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("action") != "status" {
			t.Fatalf("action = %s, want status", r.PostForm.Get("action"))
		}
		if r.PostForm.Get("order") != "99123" {
			t.Fatalf("order = %s, want 99123", r.PostForm.Get("order"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "In progress", "remains": "400", "start_count": "250", "charge": "1.41", "currency": "USD"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Status(ctx, "99123")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if res.Status != "In progress" {
		t.Fatalf("status = %s, want In progress", res.Status)
	}
	if res.Remains != 400 {
		t.Fatalf("remains = %d, want 400", res.Remains)
	}
	if res.StartCount != 250 {
		t.Fatalf("start count = %d, want 250", res.StartCount)
	}
}

func TestBalance(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance": "12.30", "currency": "USD"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	balance, currency, err := client.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance != "12.30" || currency != "USD" {
		t.Fatalf("balance = %s %s, want 12.30 USD", balance, currency)
	}
}
