// Package campay предоставляет клиент платёжного шлюза мобильных денег.
package campay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Статусы платежа в словаре шлюза.
const (
	StatusPending    = "PENDING"
	StatusSuccessful = "SUCCESSFUL"
	StatusFailed     = "FAILED"
)

// ErrInvalidPhone возвращается, если номер телефона не приводится к формату 237XXXXXXXXX.
var (
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrGateway возвращается при ошибке, о которой сообщил платёжный шлюз.
	ErrGateway = errors.New("payment gateway error")
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// CollectRequest описывает запрос на сбор средств с телефона плательщика.
type CollectRequest struct {
	Amount            int64
	Phone             string
	Description       string
	ExternalReference string
}

// CollectResult содержит ответ шлюза на инициацию сбора.
type CollectResult struct {
	Reference string
	USSDCode  string
}

// TransactionStatus содержит состояние платежа по данным шлюза.
type TransactionStatus struct {
	Status   string
	Amount   string
	Operator string
}

// NewClient создаёт клиент платёжного шлюза по указанному адресу и постоянному токену.
func NewClient(baseURL, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: rc.StandardClient(),
	}
}

// NormalizePhone приводит номер к каноническому международному формату "237" + 9 цифр.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '+' {
			return -1
		}
		return r
	}, phone)

	cleaned = strings.TrimPrefix(cleaned, "0")
	if !strings.HasPrefix(cleaned, "237") {
		cleaned = "237" + cleaned
	}

	if len(cleaned) != 12 {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, phone)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %s", ErrInvalidPhone, phone)
		}
	}

	return cleaned, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("campay client not configured")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrGateway, apiErr.Error)
		}
		if apiErr.Message != "" && resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrGateway, apiErr.Message)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return data, nil
}

// Collect инициирует запрос на списание с телефона плательщика.
// Номер телефона приводится к каноническому формату перед отправкой.
func (c *Client) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Recharge portefeuille AVYboost"
	}

	payload := map[string]string{
		"amount":             strconv.FormatInt(req.Amount, 10),
		"currency":           "XAF",
		"from":               phone,
		"description":        description,
		"external_reference": req.ExternalReference,
	}

	body, err := c.do(ctx, http.MethodPost, "/collect/", payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Reference string `json:"reference"`
		USSDCode  string `json:"ussd_code"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode collect response: %w", err)
	}

	if raw.Reference == "" {
		return nil, fmt.Errorf("%w: response without reference", ErrGateway)
	}

	return &CollectResult{Reference: raw.Reference, USSDCode: raw.USSDCode}, nil
}

// Status запрашивает состояние платежа по референсу шлюза.
func (c *Client) Status(ctx context.Context, reference string) (*TransactionStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/transaction/"+reference+"/", nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Operator string `json:"operator"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &TransactionStatus{Status: raw.Status, Amount: raw.Amount, Operator: raw.Operator}, nil
}

// Balance запрашивает остаток средств приложения в шлюзе.
func (c *Client) Balance(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/balance/", nil)
	if err != nil {
		return "", err
	}

	var raw struct {
		TotalBalance json.Number `json:"total_balance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode balance response: %w", err)
	}

	return raw.TotalBalance.String(), nil
}
