package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BrevoEmailSender posts transactional emails to the Brevo (ex Sendinblue)
// v3 API.
type BrevoEmailSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	sender  Recipient
}

func NewBrevoEmailSender(baseURL, apiKey string, sender Recipient, timeout time.Duration) *BrevoEmailSender {
	return &BrevoEmailSender{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
	}
}

type brevoSendRequest struct {
	Sender      Recipient   `json:"sender"`
	To          []Recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

func (s *BrevoEmailSender) Send(ctx context.Context, subject, htmlBody string, to []Recipient) error {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:      s.sender,
		To:          to,
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo responded %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
