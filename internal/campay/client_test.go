package campay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		want    string
		wantErr bool
	}{
		{name: "local with leading zero", phone: "0691234567", want: "237691234567"},
		{name: "local without prefix", phone: "691234567", want: "237691234567"},
		{name: "already international", phone: "237691234567", want: "237691234567"},
		{name: "with spaces and plus", phone: "+237 6 91 23 45 67", want: "237691234567"},
		{name: "too short", phone: "12345", wantErr: true},
		{name: "letters", phone: "69123456a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.phone)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.phone, got, tt.want)
			}
		})
	}
}

func TestCollect_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collect/" {
			t.Fatalf("path = %s, want /collect/", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token perm-token" {
			t.Fatalf("authorization = %s, want Token perm-token", got)
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["from"] != "237691234567" {
			t.Fatalf("from = %s, want 237691234567", payload["from"])
		}
		if payload["currency"] != "XAF" {
			t.Fatalf("currency = %s, want XAF", payload["currency"])
		}
		if payload["amount"] != "5000" {
			t.Fatalf("amount = %s, want 5000", payload["amount"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reference": "ref-123", "ussd_code": "*126#"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "perm-token")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Collect(ctx, CollectRequest{
		Amount:            5000,
		Phone:             "0691234567",
		ExternalReference: "avy-1",
	})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if res.Reference != "ref-123" {
		t.Fatalf("reference = %s, want ref-123", res.Reference)
	}
	if res.USSDCode != "*126#" {
		t.Fatalf("ussd code = %s, want *126#", res.USSDCode)
	}
}

func TestCollect_InvalidPhoneRejectedBeforeCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "perm-token")

	_, err := client.Collect(context.Background(), CollectRequest{Amount: 5000, Phone: "123"})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if called {
		t.Fatalf("gateway must not be called with invalid phone")
	}
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/ref-123/" {
			t.Fatalf("path = %s, want /transaction/ref-123/", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "SUCCESSFUL", "amount": "5000", "operator": "MTN"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "perm-token")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Status(ctx, "ref-123")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if res.Status != StatusSuccessful {
		t.Fatalf("status = %s, want %s", res.Status, StatusSuccessful)
	}
}

func TestCollect_GatewayErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Insufficient operator balance"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "perm-token")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Collect(ctx, CollectRequest{Amount: 5000, Phone: "691234567"})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}
