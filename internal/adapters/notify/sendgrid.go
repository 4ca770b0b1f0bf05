package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// maxErrorBytes bounds how much of a provider error body is kept
const maxErrorBytes = 4 << 10

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type sgMessage struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	ReplyTo          *sgAddress          `json:"reply_to,omitempty"`
	Content          []sgContent         `json:"content"`
	Attachments      []sgAttachment      `json:"attachments,omitempty"`
}

// SendGridSender delivers alerts with the SendGrid v3 Mail Send API
type SendGridSender struct {
	apiKey     string
	baseURL    string
	from       sgAddress
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSendGridSender creates a SendGrid sender. Deadlines come from the
// context passed to SendAlert.
func NewSendGridSender(apiKey, baseURL, senderAddress, senderName string, logger *zap.Logger) *SendGridSender {
	return &SendGridSender{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		from:       sgAddress{Email: senderAddress, Name: senderName},
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// SendAlert posts the alert to SendGrid
func (s *SendGridSender) SendAlert(ctx context.Context, alert *core.Alert) error {
	if s.apiKey == "" {
		return errors.New("SendGrid API key not configured")
	}

	payload := sgMessage{
		Personalizations: []sgPersonalization{{
			To:      []sgAddress{{Email: alert.Recipient}},
			Subject: alert.Subject,
		}},
		From:    s.from,
		Content: []sgContent{{Type: "text/plain", Value: alert.Body}},
	}
	if a := alert.Attachment; a != nil {
		payload.Attachments = []sgAttachment{{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		}}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	if resp.StatusCode >= 400 {
		return &ProviderError{Provider: "sendgrid", StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	s.logger.Debug("SendGrid accepted alert",
		zap.Int("status_code", resp.StatusCode),
		zap.String("message_id", resp.Header.Get("X-Message-Id")))
	return nil
}

// ProviderError is a rejection reported by an outbound provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Detail)
}
