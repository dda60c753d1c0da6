// AngelaMos | 2026
// composer.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Recipient is what a composer knows about the creator being contacted.
type Recipient struct {
	Email       string
	Handle      string
	DisplayName string
	Platform    string
	Niche       string
	Followers   int64
}

func (r Recipient) Greeting() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Handle != "" {
		return "@" + r.Handle
	}
	return "there"
}

type Sender struct {
	Name  string
	Email string
}

type ComposeInput struct {
	Sender     Sender
	Recipient  Recipient
	CampaignID string
	ThreadID   string
}

// Composer produces the outreach content. Implementations may call out to a
// generator; the worker treats the result as opaque.
type Composer interface {
	Compose(ctx context.Context, in ComposeInput) (Message, error)
}

const (
	defaultSubject = `Collaboration with {{.Sender.Name}}{{if .Recipient.Niche}} ({{.Recipient.Niche}}){{end}}`

	defaultText = `Hi {{.Recipient.Greeting}},

I came across your {{.Recipient.Platform}} profile and loved your work{{if .Recipient.Niche}} in {{.Recipient.Niche}}{{end}}.
We would like to talk about a paid collaboration. Would you be open to a quick chat?

Best,
{{.Sender.Name}}
`

	defaultHTML = `<p>Hi {{.Recipient.Greeting}},</p>
<p>I came across your {{.Recipient.Platform}} profile and loved your work{{if .Recipient.Niche}} in {{.Recipient.Niche}}{{end}}.
We would like to talk about a paid collaboration. Would you be open to a quick chat?</p>
<p>Best,<br>{{.Sender.Name}}</p>
`
)

type TemplateComposer struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func NewTemplateComposer(subject, text, html string) (*TemplateComposer, error) {
	if subject == "" {
		subject = defaultSubject
	}
	if text == "" {
		text = defaultText
	}
	if html == "" {
		html = defaultHTML
	}

	st, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	tt, err := texttemplate.New("text").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	ht, err := htmltemplate.New("html").Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}

	return &TemplateComposer{subject: st, text: tt, html: ht}, nil
}

// DefaultComposer panics only if the built-in templates fail to parse.
func DefaultComposer() *TemplateComposer {
	c, err := NewTemplateComposer("", "", "")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *TemplateComposer) Compose(ctx context.Context, in ComposeInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if in.Recipient.Email == "" {
		return Message{}, fmt.Errorf("compose: recipient has no email: %w", ErrPermanent)
	}

	var subject, text, html bytes.Buffer
	if err := c.subject.Execute(&subject, in); err != nil {
		return Message{}, fmt.Errorf("compose subject: %w", err)
	}
	if err := c.text.Execute(&text, in); err != nil {
		return Message{}, fmt.Errorf("compose text: %w", err)
	}
	if err := c.html.Execute(&html, in); err != nil {
		return Message{}, fmt.Errorf("compose html: %w", err)
	}

	return Message{
		FromName:  in.Sender.Name,
		FromEmail: in.Sender.Email,
		To:        in.Recipient.Email,
		Subject:   strings.TrimSpace(subject.String()),
		Text:      text.String(),
		HTML:      html.String(),
		ThreadID:  in.ThreadID,
	}, nil
}

var _ Composer = (*TemplateComposer)(nil)
