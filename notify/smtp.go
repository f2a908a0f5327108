package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/uhppoted/uhppoted-app-report/log"
)

const (
	SecurityNone     = "none"
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
)

// SMTPSender submits messages to an SMTP relay, optionally authenticating with
// SASL PLAIN.
type SMTPSender struct {
	Address   string
	Username  string
	Password  string
	Security  string
	TLSConfig *tls.Config
}

func (s *SMTPSender) Send(ctx context.Context, message *Message) (string, error) {
	if err := s.send(ctx, message); err != nil {
		err = &SendError{Transport: "smtp", Err: err}
		log.Errorf("%v", err)

		return "", err
	}

	return message.MessageID, nil
}

func (s *SMTPSender) send(ctx context.Context, message *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return err
	}

	defer c.Close()

	if s.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.Username, s.Password)); err != nil {
			return err
		}
	}

	if err := c.Mail(message.From, nil); err != nil {
		return err
	}

	for _, rcpt := range message.Recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}

	if _, err := w.Write(message.Raw); err != nil {
		w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

func (s *SMTPSender) dial() (*smtp.Client, error) {
	switch s.Security {
	case SecurityTLS:
		return smtp.DialTLS(s.Address, s.TLSConfig)

	case SecurityStartTLS, "":
		return smtp.DialStartTLS(s.Address, s.TLSConfig)

	case SecurityNone:
		return smtp.Dial(s.Address)

	default:
		return nil, fmt.Errorf("invalid SMTP security '%v'", s.Security)
	}
}
