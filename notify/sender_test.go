package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"google.golang.org/api/option"
)

func TestGmailSender(t *testing.T) {
	var raw []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/users/me/messages/send") {
			http.NotFound(w, r)
			return
		}

		var msg struct {
			Raw string `json:"raw"`
		}

		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b, err := base64.URLEncoding.DecodeString(msg.Raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		raw = b

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"18f2a7c3e5d9b001","threadId":"18f2a7c3e5d9b001","labelIds":["SENT"]}`)
	}))

	defer srv.Close()

	sender, err := NewGmailSender(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("%v", err)
	}

	message, err := Compose(envelope(), picture(t), today)
	if err != nil {
		t.Fatalf("%v", err)
	}

	id, err := sender.Send(context.Background(), message)
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if id != "18f2a7c3e5d9b001" {
		t.Errorf("incorrect message ID - expected:%v, got:%v", "18f2a7c3e5d9b001", id)
	}

	if !bytes.Equal(raw, message.Raw) {
		t.Errorf("sent message does not match composed message")
	}
}

func TestGmailSenderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"Request had insufficient authentication scopes."}}`)
	}))

	defer srv.Close()

	sender, err := NewGmailSender(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("%v", err)
	}

	message, err := Compose(envelope(), picture(t), today)
	if err != nil {
		t.Fatalf("%v", err)
	}

	_, err = sender.Send(context.Background(), message)

	var e *SendError
	if !errors.As(err, &e) {
		t.Fatalf("expected SendError, got %v", err)
	}

	if e.Transport != "gmail" {
		t.Errorf("incorrect transport - expected:%v, got:%v", "gmail", e.Transport)
	}
}

// mailbox is an in-process SMTP server that keeps the submitted messages.
type mailbox struct {
	sync.Mutex
	username string
	password string
	reject   string
	messages []envelopeData
}

type envelopeData struct {
	from string
	to   []string
	data []byte
}

func (m *mailbox) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{mailbox: m}, nil
}

type session struct {
	mailbox       *mailbox
	authenticated bool
	from          string
	to            []string
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.mailbox.username || password != s.mailbox.password {
			return errors.New("invalid credentials")
		}

		s.authenticated = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.mailbox.username != "" && !s.authenticated {
		return smtp.ErrAuthRequired
	}

	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.mailbox.reject {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "no such user"}
	}

	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mailbox.Lock()
	defer s.mailbox.Unlock()

	s.mailbox.messages = append(s.mailbox.messages, envelopeData{from: s.from, to: s.to, data: b})

	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

func listen(t *testing.T, m *mailbox) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("%v", err)
	}

	srv := smtp.NewServer(m)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true

	go srv.Serve(l)

	t.Cleanup(func() { srv.Close() })

	return l.Addr().String()
}

func TestSMTPSender(t *testing.T) {
	m := mailbox{username: "reports", password: "shhh"}
	address := listen(t, &m)

	message, err := Compose(envelope(), picture(t), today)
	if err != nil {
		t.Fatalf("%v", err)
	}

	sender := SMTPSender{
		Address:  address,
		Username: "reports",
		Password: "shhh",
		Security: SecurityNone,
	}

	id, err := sender.Send(context.Background(), message)
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if id != message.MessageID {
		t.Errorf("incorrect message ID - expected:%v, got:%v", message.MessageID, id)
	}

	m.Lock()
	defer m.Unlock()

	if len(m.messages) != 1 {
		t.Fatalf("expected 1 message, got %v", len(m.messages))
	}

	received := m.messages[0]
	if received.from != "reports@example.com" {
		t.Errorf("incorrect MAIL FROM - expected:%v, got:%v", "reports@example.com", received.from)
	}

	if !reflect.DeepEqual(received.to, message.Recipients) {
		t.Errorf("incorrect RCPT TO - expected:%v, got:%v", message.Recipients, received.to)
	}

	// the DATA command normalises line endings to CRLF
	normalise := func(b []byte) []byte {
		return bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	}

	if !bytes.Equal(normalise(received.data), normalise(message.Raw)) {
		t.Errorf("received message does not match composed message")
	}
}

func TestSMTPSenderInvalidCredentials(t *testing.T) {
	m := mailbox{username: "reports", password: "shhh"}
	address := listen(t, &m)

	message, err := Compose(envelope(), picture(t), today)
	if err != nil {
		t.Fatalf("%v", err)
	}

	sender := SMTPSender{
		Address:  address,
		Username: "reports",
		Password: "guess",
		Security: SecurityNone,
	}

	var e *SendError
	if _, err := sender.Send(context.Background(), message); !errors.As(err, &e) {
		t.Errorf("expected SendError, got %v", err)
	}

	if len(m.messages) != 0 {
		t.Errorf("expected no messages, got %v", len(m.messages))
	}
}

func TestSMTPSenderRejectedRecipient(t *testing.T) {
	m := mailbox{reject: "finance@example.com"}
	address := listen(t, &m)

	message, err := Compose(envelope(), picture(t), today)
	if err != nil {
		t.Fatalf("%v", err)
	}

	sender := SMTPSender{
		Address:  address,
		Security: SecurityNone,
	}

	_, err = sender.Send(context.Background(), message)

	var e *smtp.SMTPError
	if !errors.As(err, &e) || e.Code != 550 {
		t.Errorf("expected 550 SMTPError, got %v", err)
	}
}

func TestSMTPSenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := SMTPSender{Address: "127.0.0.1:1", Security: SecurityNone}

	if _, err := sender.Send(ctx, &Message{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
