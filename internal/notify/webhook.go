// Package notify reenvía alertas a sistemas externos.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"avicola-service/internal/models"

	"github.com/go-resty/resty/v2"
)

// Notifier publica una alerta recién creada
type Notifier interface {
	NotificarAlerta(ctx context.Context, alerta *models.Alerta) error
}

// NopNotifier descarta las notificaciones
type NopNotifier struct{}

// NotificarAlerta no hace nada
func (NopNotifier) NotificarAlerta(context.Context, *models.Alerta) error { return nil }

// WebhookNotifier envía la alerta como JSON por POST
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookNotifier crea el cliente; url es la dirección completa del webhook
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "avicola-service").
		SetTimeout(timeout)

	return &WebhookNotifier{httpClient: client, url: url}
}

// alertaPayload es el cuerpo enviado al webhook
type alertaPayload struct {
	Evento  string         `json:"evento"`
	Alerta  *models.Alerta `json:"alerta"`
	Enviado string         `json:"enviado"`
}

type webhookError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotificarAlerta publica la alerta; status >= 400 se considera error
func (n *WebhookNotifier) NotificarAlerta(ctx context.Context, alerta *models.Alerta) error {
	apiErr := new(webhookError)

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(alertaPayload{
			Evento:  "alerta.creada",
			Alerta:  alerta,
			Enviado: time.Now().Format(time.RFC3339),
		}).
		SetError(apiErr).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("send alerta webhook: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
		return fmt.Errorf("alerta webhook error: status=%d, message=%s", resp.StatusCode(), message)
	}
	return nil
}
