package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/uhppoted/uhppoted-app-report/log"
)

// GmailSender submits messages with the Gmail API users.messages.send method on behalf
// of the authorised user.
type GmailSender struct {
	service *gmail.Service
}

func NewGmailSender(ctx context.Context, options ...option.ClientOption) (*GmailSender, error) {
	service, err := gmail.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to create new Gmail client (%w)", err)
	}

	return &GmailSender{
		service: service,
	}, nil
}

func (g *GmailSender) Send(ctx context.Context, message *Message) (string, error) {
	msg := gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(message.Raw),
	}

	sent, err := g.service.Users.Messages.Send("me", &msg).Context(ctx).Do()
	if err != nil {
		err = &SendError{Transport: "gmail", Err: err}
		log.Errorf("%v", err)

		return "", err
	}

	log.Debugf("gmail message ID %v (%v)", sent.Id, message.MessageID)

	return sent.Id, nil
}
