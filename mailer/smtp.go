// Package mailer delivers composed digests over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"book-digest/models"
	"book-digest/utils"
)

// ImplicitTLSPort is the submission port that expects TLS from the first byte.
const ImplicitTLSPort = 465

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Sender is the From address; it defaults to Username.
	Sender  string
	Timeout time.Duration
}

// SMTPMailer publishes digests to one recipient per call.
type SMTPMailer struct {
	cfg    Config
	logger *utils.Logger
}

func New(cfg Config, logger *utils.Logger) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Publish sends d to recipient.
func (m *SMTPMailer) Publish(ctx context.Context, recipient string, d *models.Digest) error {
	if recipient == "" {
		return errors.New("mailer: no recipient")
	}
	if m.cfg.Sender == "" {
		return errors.New("mailer: no sender configured")
	}

	msg, err := BuildMessage(m.cfg.Sender, recipient, d, time.Now())
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", recipient, err)
	}

	m.logger.Info("[mailer] Sent %q to %s with %d images", d.Subject, recipient, len(d.Attachments))
	return nil
}

// client dials with implicit TLS on ImplicitTLSPort and upgrades with
// STARTTLS elsewhere when the server offers it.
func (m *SMTPMailer) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.Port == ImplicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return gomail.NewClient(m.cfg.Host, opts...)
}

// BuildMessage lays d out as a multipart/related message: a
// multipart/alternative body (plain text, then HTML) followed by one inline
// part per attachment, addressable by its Content-ID.
func BuildMessage(from, to string, d *models.Digest, date time.Time) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mailer: sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: recipient %q: %w", to, err)
	}
	msg.Subject(d.Subject)
	msg.SetDateWithValue(date)

	msg.SetBodyString(gomail.TypeTextPlain, d.PlainText)
	msg.AddAlternativeString(gomail.TypeTextHTML, d.HTML)

	for _, a := range d.Attachments {
		err := msg.EmbedReader(a.Filename, bytes.NewReader(a.Data),
			gomail.WithFileContentID("<"+a.ContentID+">"),
			gomail.WithFileContentType(gomail.ContentType(a.ContentType)),
		)
		if err != nil {
			return nil, fmt.Errorf("mailer: embed %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}
