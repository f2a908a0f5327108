// Package notify composes the report email and sends it via the Gmail API or an SMTP relay.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"os"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/emersion/go-message/mail"
)

// Envelope holds the addressing and presentation settings of the report email. The
// subject is a text/template evaluated with the formatted report date as .Date (and
// .ISODate for the attachment style date).
type Envelope struct {
	From      string
	To        []string
	Cc        []string
	Subject   string
	Signature string
	Link      string

	DateFormat       string
	AttachmentFormat string
}

// Message is a composed RFC 5322 message ready for submission.
type Message struct {
	Raw        []byte
	MessageID  string
	From       string
	Recipients []string
	Subject    string
}

// Sender submits a composed message and returns the ID assigned by the transport.
type Sender interface {
	Send(ctx context.Context, message *Message) (string, error)
}

// SendError wraps a transport failure.
type SendError struct {
	Transport string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send email via %v (%v)", e.Transport, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

var body = template.Must(template.New("body").Parse(`<html>
  <body>
    Hi,
    <br>
    <br>
    Please find below today's report as of {{.Date}}.
    <br>
    <img alt="{{.Alt}}" src="{{.Image}}" />
    <br>
    {{- if .Link}}
    <div>Report Link:
    <a href="{{.Link}}" target="_blank">Click Me!</a>
    </div>
    {{- end}}
    <br>
    <br>
    Best,
    <br>
    {{.Signature}}
  </body>
</html>
`))

// DataURL reads the PNG image, re-encodes it and returns it as a base64 data URL.
func DataURL(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}

	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("invalid image %v (%w)", path, err)
	}

	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b.Bytes()), nil
}

// Compose builds a multipart/mixed message with an HTML body that embeds the image
// inline as a data URL and the image file attached as <date>.png.
func Compose(envelope Envelope, imagefile string, date time.Time) (*Message, error) {
	from, err := mail.ParseAddress(envelope.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address '%v' (%w)", envelope.From, err)
	}

	to, err := addresses(envelope.To)
	if err != nil {
		return nil, err
	} else if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	cc, err := addresses(envelope.Cc)
	if err != nil {
		return nil, err
	}

	subject, err := subject(envelope, date)
	if err != nil {
		return nil, err
	}

	attachment, err := os.ReadFile(imagefile)
	if err != nil {
		return nil, err
	}

	url, err := DataURL(imagefile)
	if err != nil {
		return nil, err
	}

	filename := date.Format(envelope.AttachmentFormat) + ".png"

	// ... header
	var h mail.Header

	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	h.SetSubject(subject)

	if err := h.GenerateMessageIDWithHostname(hostname(from)); err != nil {
		return nil, err
	}

	id, err := h.MessageID()
	if err != nil {
		return nil, err
	}

	// ... body
	var b bytes.Buffer

	mw, err := mail.CreateWriter(&b, h)
	if err != nil {
		return nil, err
	}

	var ih mail.InlineHeader
	ih.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	w, err := mw.CreateSingleInline(ih)
	if err != nil {
		return nil, err
	}

	if err := body.Execute(w, struct {
		Date      string
		Alt       string
		Image     template.URL
		Link      string
		Signature string
	}{
		Date:      date.Format(envelope.DateFormat),
		Alt:       filename,
		Image:     template.URL(url),
		Link:      envelope.Link,
		Signature: envelope.Signature,
	}); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	// ... attachment
	var ah mail.AttachmentHeader
	ah.SetContentType("image/png", nil)
	ah.SetFilename(filename)

	w, err = mw.CreateAttachment(ah)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(attachment); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	recipients := []string{}
	for _, list := range [][]*mail.Address{to, cc} {
		for _, a := range list {
			recipients = append(recipients, a.Address)
		}
	}

	return &Message{
		Raw:        b.Bytes(),
		MessageID:  id,
		From:       from.Address,
		Recipients: recipients,
		Subject:    subject,
	}, nil
}

func addresses(list []string) ([]*mail.Address, error) {
	addresses := []*mail.Address{}

	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}

		a, err := mail.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient address '%v' (%w)", s, err)
		}

		addresses = append(addresses, a)
	}

	return addresses, nil
}

func subject(envelope Envelope, date time.Time) (string, error) {
	t, err := texttemplate.New("subject").Parse(envelope.Subject)
	if err != nil {
		return "", fmt.Errorf("invalid subject template (%w)", err)
	}

	var s strings.Builder
	if err := t.Execute(&s, struct {
		Date    string
		ISODate string
	}{
		Date:    date.Format(envelope.DateFormat),
		ISODate: date.Format(envelope.AttachmentFormat),
	}); err != nil {
		return "", fmt.Errorf("invalid subject template (%w)", err)
	}

	return s.String(), nil
}

func hostname(from *mail.Address) string {
	if ix := strings.LastIndex(from.Address, "@"); ix >= 0 && ix < len(from.Address)-1 {
		return from.Address[ix+1:]
	}

	if h, err := os.Hostname(); err == nil {
		return h
	}

	return "localhost"
}
