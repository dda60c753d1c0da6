// AngelaMos | 2026
// gmail.go

package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/config"
)

const defaultGmailBaseURL = "https://gmail.googleapis.com"

type GmailTransport struct {
	baseURL string
	http    *http.Client
}

func NewGmailTransport(cfg config.GmailConfig) *GmailTransport {
	base := cfg.BaseURL
	if base == "" {
		base = defaultGmailBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GmailTransport{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type gmailSendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Send posts the rendered message to users.messages.send. 401 and 403
// become ErrAuthExpired, other 4xx become ErrPermanent, and everything else
// is returned as a transient error.
func (g *GmailTransport) Send(ctx context.Context, creds Credentials, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	if creds.AccessToken == "" {
		return Receipt{}, fmt.Errorf("gmail send: missing access token: %w", ErrAuthExpired)
	}

	raw, err := msg.RFC5322()
	if err != nil {
		return Receipt{}, err
	}

	payload, err := json.Marshal(gmailSendRequest{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadID: msg.ThreadID,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("gmail send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.baseURL+"/gmail/v1/users/me/messages/send",
		bytes.NewReader(payload),
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("gmail send: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10)) //nolint:errcheck // diagnostic only
		return Receipt{}, classifyStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out gmailSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, fmt.Errorf("gmail send: decode response: %w", err)
	}

	return Receipt{MessageID: out.ID, ThreadID: out.ThreadID}, nil
}

func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("gmail send: status %d: %w", status, ErrAuthExpired)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("gmail send: rate limited: %s", body)
	case status >= 400 && status < 500:
		return fmt.Errorf("gmail send: status %d: %s: %w", status, body, ErrPermanent)
	default:
		return fmt.Errorf("gmail send: status %d: %s", status, body)
	}
}

var _ Transport = (*GmailTransport)(nil)
