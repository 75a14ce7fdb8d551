// Package notify sends transactional email through a third-party email API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

//go:generate mockgen -destination=mocks/mock_notify.go -package=mocks storefront/internal/notify Sender,RecipientSource

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailAPIClient posts messages to a Resend-compatible HTTP API.
type EmailAPIClient struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

type ClientConfig struct {
	Endpoint   string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

func NewEmailAPIClient(cfg ClientConfig) (*EmailAPIClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("email API endpoint is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &EmailAPIClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		httpClient: httpClient,
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// APIError is a non-2xx answer from the email API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("email API returned %d: %s", e.StatusCode, e.Body)
}

func (c *EmailAPIClient) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
