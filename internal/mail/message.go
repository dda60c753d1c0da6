// AngelaMos | 2026
// message.go

package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var (
	// ErrAuthExpired means the mailbox credential was rejected. The mailbox
	// must be reconnected before it can send again.
	ErrAuthExpired = errors.New("mailbox authorization expired")

	// ErrPermanent means the provider rejected the message itself and a
	// retry cannot succeed.
	ErrPermanent = errors.New("message permanently rejected")
)

const (
	ProviderGmail = "gmail"
	ProviderSMTP  = "smtp"
)

type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	Text      string
	HTML      string
	ThreadID  string
	MessageID string
}

// Credentials are the decrypted secrets for one mailbox. They never leave
// the process.
type Credentials struct {
	MailboxID    string
	Provider     string
	Email        string
	AccessToken  string
	RefreshToken string
}

type Receipt struct {
	MessageID string
	ThreadID  string
}

type Transport interface {
	Send(ctx context.Context, creds Credentials, msg Message) (Receipt, error)
}

func (m Message) validate() error {
	if m.FromEmail == "" || m.To == "" {
		return fmt.Errorf("message missing sender or recipient: %w", ErrPermanent)
	}
	if m.Text == "" && m.HTML == "" {
		return fmt.Errorf("message has no body: %w", ErrPermanent)
	}
	return nil
}

func (m Message) gomail() *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.FromEmail, m.FromName)
	gm.SetHeader("To", m.To)
	gm.SetHeader("Subject", m.Subject)
	if m.MessageID != "" {
		gm.SetHeader("Message-ID", "<"+m.MessageID+">")
	}

	switch {
	case m.Text != "" && m.HTML != "":
		gm.SetBody("text/plain", m.Text)
		gm.AddAlternative("text/html", m.HTML)
	case m.HTML != "":
		gm.SetBody("text/html", m.HTML)
	default:
		gm.SetBody("text/plain", m.Text)
	}
	return gm
}

// RFC5322 renders the message as it goes over the wire.
func (m Message) RFC5322() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.gomail().WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}

// Router dispatches to the transport registered for the mailbox provider.
type Router struct {
	transports map[string]Transport
}

func NewRouter(transports map[string]Transport) *Router {
	return &Router{transports: transports}
}

func (r *Router) Send(ctx context.Context, creds Credentials, msg Message) (Receipt, error) {
	t, ok := r.transports[creds.Provider]
	if !ok {
		return Receipt{}, fmt.Errorf("no transport for provider %q: %w", creds.Provider, ErrPermanent)
	}
	return t.Send(ctx, creds, msg)
}

var _ Transport = (*Router)(nil)
