// Package auth manages the OAuth2 credentials used to access Google Drive and Gmail.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/uhppoted/uhppoted-app-report/log"
)

// Scopes is the fixed scope set requested for the report: full Drive access and full
// mail access.
var Scopes = []string{
	drive.DriveScope,
	gmail.MailGoogleComScope,
}

var ErrNotAuthorised = errors.New("not authorised - run 'uhppoted-app-report authorise' to authorise access")

// Authoriser obtains a new token from the user, e.g. via the browser consent flow.
type Authoriser func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

type Manager struct {
	credentials string
	tokens      string
	scopes      []string
	interactive bool
	authorise   Authoriser

	sync.Mutex
	config *oauth2.Config
}

// NewManager returns a credentials manager for the client secret file 'credentials' that
// persists tokens to the 'tokens' file. If 'interactive' is false, a missing or
// unrefreshable token is reported as ErrNotAuthorised instead of starting the browser
// consent flow.
func NewManager(credentials, tokens string, interactive bool) *Manager {
	return &Manager{
		credentials: credentials,
		tokens:      tokens,
		scopes:      Scopes,
		interactive: interactive,
		authorise:   Loopback,
	}
}

// WithAuthoriser replaces the browser consent flow.
func (m *Manager) WithAuthoriser(authorise Authoriser) *Manager {
	m.authorise = authorise

	return m
}

func (m *Manager) Config() (*oauth2.Config, error) {
	m.Lock()
	defer m.Unlock()

	if m.config != nil {
		return m.config, nil
	}

	b, err := os.ReadFile(m.credentials)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file (%w)", err)
	}

	config, err := google.ConfigFromJSON(b, m.scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file (%w)", err)
	}

	m.config = config

	return config, nil
}

// Token returns a valid token. A persisted token that is still valid is returned as is,
// an expired token with a refresh token is refreshed and saved, otherwise the
// interactive authorisation flow is run (if enabled) and the result saved.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	config, err := m.Config()
	if err != nil {
		return nil, err
	}

	token, err := tokenFromFile(m.tokens)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("%v", err)
	}

	switch {
	case token != nil && token.Valid():
		return token, nil

	case token != nil && token.RefreshToken != "":
		log.Debugf("refreshing expired access token")

		refreshed, err := config.TokenSource(ctx, token).Token()
		if err != nil {
			return nil, fmt.Errorf("error refreshing access token (%w)", err)
		}

		if err := saveToken(m.tokens, refreshed); err != nil {
			return nil, err
		}

		return refreshed, nil

	case !m.interactive:
		return nil, ErrNotAuthorised

	default:
		return m.acquire(ctx, config)
	}
}

// Authorise unconditionally runs the interactive authorisation flow and saves the token.
func (m *Manager) Authorise(ctx context.Context) error {
	config, err := m.Config()
	if err != nil {
		return err
	}

	_, err = m.acquire(ctx, config)

	return err
}

// Client returns an HTTP client authorised with the managed token. Tokens refreshed
// while the client is in use are saved to the tokens file.
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	config, err := m.Config()
	if err != nil {
		return nil, err
	}

	token, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}

	source := &persistent{
		source: config.TokenSource(ctx, token),
		file:   m.tokens,
		last:   token.AccessToken,
	}

	return oauth2.NewClient(ctx, source), nil
}

func (m *Manager) acquire(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	if m.authorise == nil {
		return nil, ErrNotAuthorised
	}

	token, err := m.authorise(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("authorisation error (%w)", err)
	}

	if err := saveToken(m.tokens, token); err != nil {
		return nil, err
	}

	return token, nil
}

// persistent saves the token whenever the wrapped token source hands out a new access
// token.
type persistent struct {
	sync.Mutex
	source oauth2.TokenSource
	file   string
	last   string
}

func (p *persistent) Token() (*oauth2.Token, error) {
	p.Lock()
	defer p.Unlock()

	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != p.last {
		if err := saveToken(p.file, token); err != nil {
			log.Warnf("unable to save refreshed token (%v)", err)
		}

		p.last = token.AccessToken
	}

	return token, nil
}
