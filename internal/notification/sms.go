package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kidsclub-backend/config"
)

// SMSSender delivers one OTP text message. Delivery is best effort.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// GatewaySender posts messages to an HTTP SMS gateway.
type GatewaySender struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewGatewaySender creates a sender from the SMS channel config.
func NewGatewaySender(cfg config.SMSConfig) *GatewaySender {
	return &GatewaySender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the gateway.
func (g *GatewaySender) Send(ctx context.Context, to, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"message": message,
		"sender":  g.cfg.Sender,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
