// Package whatsapp dispatches text messages through the WaSender API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/config"
	"DeliberoScan/internal/ports"
)

// Messenger sends WhatsApp messages via the WaSender HTTP API.
type Messenger struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Messenger = (*Messenger)(nil)

// NewMessenger builds a client from configuration.
func NewMessenger(cfg config.WaSenderConfig) *Messenger {
	return &Messenger{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// SendText posts a message to the given phone number.
func (m *Messenger) SendText(ctx context.Context, phone, text string) error {
	if m.apiKey == "" {
		return fmt.Errorf("wasender api key: %w", apperr.ErrConfiguration)
	}

	body, err := json.Marshal(map[string]string{
		"to":   phone,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return apperr.Upstream("whatsapp", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.Upstream("whatsapp", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
