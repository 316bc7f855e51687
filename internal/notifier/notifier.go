// Package notifier отправляет служебные уведомления оператору по электронной почте.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

// Emailer отправляет письма через HTTP API почтового сервиса.
type Emailer struct {
	baseURL    string
	apiKey     string
	to         string
	httpClient *http.Client
}

// LowBalanceAlert описывает уведомление о нехватке средств на счёте панели выполнения:
// заказ клиента принят и оплачен, но не размещён.
type LowBalanceAlert struct {
	CustomerEmail string
	ServiceName   string
	Quantity      int64
	Amount        int64
	PanelBalance  string
	TargetURL     string
}

// NewEmailer создаёт отправитель уведомлений на указанный адрес оператора.
func NewEmailer(apiKey, to string) *Emailer {
	return &Emailer{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		to:      to,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL переопределяет адрес почтового API. Используется в тестах.
func (e *Emailer) WithBaseURL(baseURL string) *Emailer {
	e.baseURL = strings.TrimRight(baseURL, "/")
	return e
}

// SendLowBalanceAlert отправляет оператору письмо о необходимости пополнить счёт панели.
func (e *Emailer) SendLowBalanceAlert(ctx context.Context, alert LowBalanceAlert) error {
	if e == nil || e.apiKey == "" || e.to == "" {
		return fmt.Errorf("notifier not configured")
	}

	html := fmt.Sprintf(
		`<h2>Solde panel insuffisant</h2>
<p>Une commande payée est en attente de placement.</p>
<ul>
<li>Client: %s</li>
<li>Service: %s</li>
<li>Quantité: %d</li>
<li>Montant: %d XAF</li>
<li>Lien: %s</li>
<li>Solde panel: %s</li>
</ul>`,
		alert.CustomerEmail, alert.ServiceName, alert.Quantity, alert.Amount, alert.TargetURL, alert.PanelBalance,
	)

	payload := map[string]any{
		"from":    "AVYboost Alerts <onboarding@resend.dev>",
		"to":      []string{e.to},
		"subject": "ALERTE: Solde ExoBooster insuffisant - Commande en attente",
		"html":    html,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/emails", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email service status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
