// AngelaMos | 2026
// mail_test.go

package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/creator-outreach/internal/config"
)

func testMessage() Message {
	return Message{
		FromName:  "Acme",
		FromEmail: "team@acme.test",
		To:        "creator@example.com",
		Subject:   "Hello",
		Text:      "plain body",
		HTML:      "<p>html body</p>",
	}
}

func TestGmailTransportSendsRawMessage(t *testing.T) {
	var got gmailSendRequest
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1","threadId":"thr-1","labelIds":["SENT"]}`))
	}))
	defer srv.Close()

	tr := NewGmailTransport(config.GmailConfig{BaseURL: srv.URL})
	msg := testMessage()
	msg.ThreadID = "thr-1"

	rcpt, err := tr.Send(context.Background(), Credentials{AccessToken: "tok"}, msg)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "/gmail/v1/users/me/messages/send", path)
	assert.Equal(t, "thr-1", got.ThreadID)
	assert.Equal(t, Receipt{MessageID: "msg-1", ThreadID: "thr-1"}, rcpt)

	raw, err := base64.URLEncoding.DecodeString(got.Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: creator@example.com")
	assert.Contains(t, string(raw), "Subject: Hello")
	assert.Contains(t, string(raw), "multipart/alternative")
}

func TestGmailTransportClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		authErr   bool
		permanent bool
	}{
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"forbidden", http.StatusForbidden, true, false},
		{"bad request", http.StatusBadRequest, false, true},
		{"rate limited", http.StatusTooManyRequests, false, false},
		{"server error", http.StatusBadGateway, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			tr := NewGmailTransport(config.GmailConfig{BaseURL: srv.URL})
			_, err := tr.Send(context.Background(), Credentials{AccessToken: "tok"}, testMessage())

			require.Error(t, err)
			assert.Equal(t, tt.authErr, errors.Is(err, ErrAuthExpired))
			assert.Equal(t, tt.permanent, errors.Is(err, ErrPermanent))
		})
	}
}

func TestGmailTransportRequiresToken(t *testing.T) {
	tr := NewGmailTransport(config.GmailConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := tr.Send(context.Background(), Credentials{}, testMessage())
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestSMTPTransport(t *testing.T) {
	tr := NewSMTPTransport(config.SMTPConfig{Host: "smtp.test", Port: 587, Username: "u", Password: "p"})

	var dialer *gomail.Dialer
	var sent []*gomail.Message
	tr.dial = func(d *gomail.Dialer, m ...*gomail.Message) error {
		dialer = d
		sent = append(sent, m...)
		return nil
	}

	rcpt, err := tr.Send(context.Background(), Credentials{}, testMessage())
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.test", dialer.Host)
	assert.Equal(t, "u", dialer.Username)
	assert.True(t, strings.HasSuffix(rcpt.MessageID, "@acme.test"))
	assert.Equal(t, []string{"<" + rcpt.MessageID + ">"}, sent[0].GetHeader("Message-ID"))
}

func TestSMTPTransportUsesMailboxCredential(t *testing.T) {
	tr := NewSMTPTransport(config.SMTPConfig{Host: "smtp.test", Port: 587, Username: "u", Password: "p"})

	var dialer *gomail.Dialer
	tr.dial = func(d *gomail.Dialer, _ ...*gomail.Message) error {
		dialer = d
		return nil
	}

	_, err := tr.Send(context.Background(), Credentials{Email: "me@acme.test", AccessToken: "app-pass"}, testMessage())
	require.NoError(t, err)
	assert.Equal(t, "me@acme.test", dialer.Username)
	assert.Equal(t, "app-pass", dialer.Password)
}

func TestClassifySMTP(t *testing.T) {
	assert.ErrorIs(t, classifySMTP(&textproto.Error{Code: 535, Msg: "bad credentials"}), ErrAuthExpired)
	assert.ErrorIs(t, classifySMTP(&textproto.Error{Code: 550, Msg: "no such user"}), ErrPermanent)

	transient := classifySMTP(&textproto.Error{Code: 421, Msg: "try later"})
	assert.NotErrorIs(t, transient, ErrPermanent)
	assert.NotErrorIs(t, transient, ErrAuthExpired)
}

func TestRouter(t *testing.T) {
	r := NewRouter(map[string]Transport{})
	_, err := r.Send(context.Background(), Credentials{Provider: "carrier-pigeon"}, testMessage())
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestMessageValidation(t *testing.T) {
	msg := testMessage()
	msg.Text, msg.HTML = "", ""
	assert.ErrorIs(t, msg.validate(), ErrPermanent)

	msg = testMessage()
	msg.To = ""
	assert.ErrorIs(t, msg.validate(), ErrPermanent)
}

func TestTemplateComposer(t *testing.T) {
	c := DefaultComposer()

	msg, err := c.Compose(context.Background(), ComposeInput{
		Sender:    Sender{Name: "Acme", Email: "team@acme.test"},
		Recipient: Recipient{Email: "creator@example.com", Handle: "cook", Platform: "instagram", Niche: "food"},
		ThreadID:  "thr-9",
	})
	require.NoError(t, err)

	assert.Equal(t, "Collaboration with Acme (food)", msg.Subject)
	assert.Equal(t, "creator@example.com", msg.To)
	assert.Equal(t, "team@acme.test", msg.FromEmail)
	assert.Equal(t, "thr-9", msg.ThreadID)
	assert.Contains(t, msg.Text, "Hi @cook,")
	assert.Contains(t, msg.HTML, "<p>Hi @cook,</p>")
}

func TestTemplateComposerEscapesHTML(t *testing.T) {
	c := DefaultComposer()

	msg, err := c.Compose(context.Background(), ComposeInput{
		Sender:    Sender{Name: "Acme", Email: "team@acme.test"},
		Recipient: Recipient{Email: "x@example.com", DisplayName: "<b>Bold</b>"},
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hi <b>Bold</b>,")
	assert.NotContains(t, msg.HTML, "<b>Bold</b>")
}

func TestTemplateComposerRequiresEmail(t *testing.T) {
	_, err := DefaultComposer().Compose(context.Background(), ComposeInput{})
	assert.ErrorIs(t, err, ErrPermanent)
}
