// Package exobooster предоставляет клиент для внешней панели выполнения заказов.
package exobooster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrAPIError возвращается, когда панель ответила полем error вместо данных.
var (
	ErrAPIError = errors.New("exobooster api error")
	// ErrResellerBalance возвращается, когда на счёте панели недостаточно средств
	// для размещения заказа. Требует уведомления оператора.
	ErrResellerBalance = errors.New("reseller balance is too low")
)

// Client инкапсулирует HTTP-взаимодействие с панелью выполнения.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Service описывает услугу из прайс-листа панели.
type Service struct {
	Service  string `json:"service"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Rate     string `json:"rate"`
	Min      string `json:"min"`
	Max      string `json:"max"`
}

// SubmitResult содержит ответ панели на размещение заказа.
type SubmitResult struct {
	ExternalOrderID string
	Charge          string
	StartCount      int64
}

// StatusResult содержит ответ панели на запрос статуса заказа.
// Status — свободный словарь удалённой системы, интерпретируется вызывающей стороной.
type StatusResult struct {
	Status     string
	Remains    int64
	StartCount int64
}

// NewClient создаёт клиент панели выполнения по указанному адресу и ключу API.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc.StandardClient(),
	}
}

// call выполняет один form-encoded запрос к панели. Панель сообщает об ошибках
// полем error в теле ответа, а не HTTP-кодом, поэтому тело проверяется всегда.
func (c *Client) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("exobooster client not configured")
	}

	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return nil, classifyAPIError(apiErr.Error)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return body, nil
}

func classifyAPIError(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "not enough funds") || strings.Contains(lower, "low balance") {
		return fmt.Errorf("%w: %s", ErrResellerBalance, msg)
	}
	return fmt.Errorf("%w: %s", ErrAPIError, msg)
}

// Services запрашивает прайс-лист панели.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	params := url.Values{}
	params.Set("action", "services")

	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var res []Service
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}

	return res, nil
}

// Submit размещает заказ в панели выполнения.
func (c *Client) Submit(ctx context.Context, serviceID int, link string, quantity int64) (*SubmitResult, error) {
	params := url.Values{}
	params.Set("action", "add")
	params.Set("service", strconv.Itoa(serviceID))
	params.Set("link", link)
	params.Set("quantity", strconv.FormatInt(quantity, 10))

	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Order      flexString `json:"order"`
		Charge     flexString `json:"charge"`
		StartCount flexString `json:"start_count"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}

	if raw.Order == "" {
		return nil, fmt.Errorf("%w: response without order id", ErrAPIError)
	}

	return &SubmitResult{
		ExternalOrderID: string(raw.Order),
		Charge:          string(raw.Charge),
		StartCount:      raw.StartCount.Int(),
	}, nil
}

// Status запрашивает статус ранее размещённого заказа.
func (c *Client) Status(ctx context.Context, externalOrderID string) (*StatusResult, error) {
	params := url.Values{}
	params.Set("action", "status")
	params.Set("order", externalOrderID)

	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Status     string     `json:"status"`
		Remains    flexString `json:"remains"`
		StartCount flexString `json:"start_count"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &StatusResult{
		Status:     raw.Status,
		Remains:    raw.Remains.Int(),
		StartCount: raw.StartCount.Int(),
	}, nil
}

// Balance запрашивает остаток средств на счёте панели.
func (c *Client) Balance(ctx context.Context) (string, string, error) {
	params := url.Values{}
	params.Set("action", "balance")

	body, err := c.call(ctx, params)
	if err != nil {
		return "", "", err
	}

	var raw struct {
		Balance  string `json:"balance"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", "", fmt.Errorf("decode balance response: %w", err)
	}

	return raw.Balance, raw.Currency, nil
}

// flexString принимает поле, которое панель отдаёт то строкой, то числом.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

// Int переводит значение в int64; нераспознанное значение считается нулём.
func (f flexString) Int() int64 {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int64(fv)
	}
	return v
}
