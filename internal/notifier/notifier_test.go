package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendLowBalanceAlert(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %q, want /emails", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	e := NewEmailer("re_key", "ops@avyboost.com").WithBaseURL(srv.URL)

	err := e.SendLowBalanceAlert(context.Background(), LowBalanceAlert{
		CustomerEmail: "uid-1",
		ServiceName:   "Tiktok Followers",
		Quantity:      1000,
		Amount:        1085,
		PanelBalance:  "0.12",
		TargetURL:     "https://tiktok.com/@user",
	})
	if err != nil {
		t.Fatalf("SendLowBalanceAlert: %v", err)
	}

	if gotAuth != "Bearer re_key" {
		t.Fatalf("authorization = %q", gotAuth)
	}

	html, _ := gotPayload["html"].(string)
	if !strings.Contains(html, "1085 XAF") || !strings.Contains(html, "Tiktok Followers") {
		t.Fatalf("unexpected html body: %s", html)
	}

	subject, _ := gotPayload["subject"].(string)
	if !strings.Contains(subject, "ALERTE") {
		t.Fatalf("unexpected subject: %s", subject)
	}
}

func TestSendLowBalanceAlert_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	e := NewEmailer("re_key", "ops@avyboost.com").WithBaseURL(srv.URL)

	err := e.SendLowBalanceAlert(context.Background(), LowBalanceAlert{})
	if err == nil {
		t.Fatal("expected error on 4xx response")
	}
}

func TestSendLowBalanceAlert_NotConfigured(t *testing.T) {
	e := NewEmailer("", "")

	if err := e.SendLowBalanceAlert(context.Background(), LowBalanceAlert{}); err == nil {
		t.Fatal("expected error when notifier is not configured")
	}
}
