// AngelaMos | 2026
// smtp.go

package mail

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/creator-outreach/internal/config"
)

// SMTPTransport relays through a fixed SMTP server. The mailbox credential
// is used as the password when present, so each connected mailbox can
// authenticate as itself.
type SMTPTransport struct {
	cfg  config.SMTPConfig
	dial func(d *gomail.Dialer, m ...*gomail.Message) error
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		cfg: cfg,
		dial: func(d *gomail.Dialer, m ...*gomail.Message) error {
			return d.DialAndSend(m...)
		},
	}
}

func (s *SMTPTransport) Send(ctx context.Context, creds Credentials, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	username, password := s.cfg.Username, s.cfg.Password
	if creds.AccessToken != "" {
		username, password = creds.Email, creds.AccessToken
	}

	if msg.MessageID == "" {
		domain := "localhost"
		if at := strings.LastIndex(msg.FromEmail, "@"); at >= 0 {
			domain = msg.FromEmail[at+1:]
		}
		msg.MessageID = uuid.New().String() + "@" + domain
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, username, password)
	if err := s.dial(d, msg.gomail()); err != nil {
		return Receipt{}, classifySMTP(err)
	}

	return Receipt{MessageID: msg.MessageID, ThreadID: msg.ThreadID}, nil
}

// classifySMTP maps reply codes: 535 is a rejected login, other 5xx are
// permanent, 4xx and transport errors are transient.
func classifySMTP(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 535 || tpErr.Code == 534:
			return fmt.Errorf("smtp send: %w: %w", ErrAuthExpired, err)
		case tpErr.Code >= 500:
			return fmt.Errorf("smtp send: %w: %w", ErrPermanent, err)
		}
	}
	return fmt.Errorf("smtp send: %w", err)
}

var _ Transport = (*SMTPTransport)(nil)
