package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fixture struct {
	credentials string
	tokens      string
	server      *httptest.Server
	grants      []string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := fixture{
		credentials: filepath.Join(dir, "credentials.json"),
		tokens:      filepath.Join(dir, "credentials.tokens"),
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		grant := r.PostForm.Get("grant_type")
		f.grants = append(f.grants, grant)

		var token string
		switch grant {
		case "refresh_token":
			token = "refreshed"
		case "authorization_code":
			if r.PostForm.Get("code") != "qwerty" || r.PostForm.Get("code_verifier") == "" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			token = "exchanged"
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"r1","expires_in":3600}`, token)
	}))

	t.Cleanup(f.server.Close)

	secret := fmt.Sprintf(`{
  "installed": {
    "client_id": "12345.apps.googleusercontent.com",
    "client_secret": "shhh",
    "auth_uri": %q,
    "token_uri": %q,
    "redirect_uris": ["http://localhost"]
  }
}`, f.server.URL+"/auth", f.server.URL+"/token")

	if err := os.WriteFile(f.credentials, []byte(secret), 0600); err != nil {
		t.Fatalf("error writing credentials file (%v)", err)
	}

	return &f
}

func (f *fixture) save(t *testing.T, token *oauth2.Token) {
	t.Helper()

	if err := saveToken(f.tokens, token); err != nil {
		t.Fatalf("error saving token (%v)", err)
	}
}

func (f *fixture) load(t *testing.T) *oauth2.Token {
	t.Helper()

	b, err := os.ReadFile(f.tokens)
	if err != nil {
		t.Fatalf("error reading tokens file (%v)", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		t.Fatalf("error decoding tokens file (%v)", err)
	}

	return &token
}

func TestTokenValid(t *testing.T) {
	f := setup(t)
	f.save(t, &oauth2.Token{AccessToken: "valid", RefreshToken: "r0", Expiry: time.Now().Add(time.Hour)})

	m := NewManager(f.credentials, f.tokens, false)

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if token.AccessToken != "valid" {
		t.Errorf("incorrect access token - expected:%v, got:%v", "valid", token.AccessToken)
	}

	if len(f.grants) != 0 {
		t.Errorf("unexpected token requests %v", f.grants)
	}
}

func TestTokenRefresh(t *testing.T) {
	f := setup(t)
	f.save(t, &oauth2.Token{AccessToken: "expired", RefreshToken: "r0", Expiry: time.Now().Add(-time.Hour)})

	m := NewManager(f.credentials, f.tokens, false)

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if token.AccessToken != "refreshed" {
		t.Errorf("incorrect access token - expected:%v, got:%v", "refreshed", token.AccessToken)
	}

	if saved := f.load(t); saved.AccessToken != "refreshed" {
		t.Errorf("refreshed token not saved - got:%v", saved.AccessToken)
	}
}

func TestTokenNotAuthorised(t *testing.T) {
	f := setup(t)

	m := NewManager(f.credentials, f.tokens, false)

	if _, err := m.Token(context.Background()); !errors.Is(err, ErrNotAuthorised) {
		t.Errorf("expected ErrNotAuthorised, got %v", err)
	}
}

func TestTokenInvalidFile(t *testing.T) {
	f := setup(t)

	if err := os.WriteFile(f.tokens, []byte("{{{"), 0600); err != nil {
		t.Fatalf("%v", err)
	}

	m := NewManager(f.credentials, f.tokens, false)

	if _, err := m.Token(context.Background()); !errors.Is(err, ErrNotAuthorised) {
		t.Errorf("expected ErrNotAuthorised, got %v", err)
	}
}

func TestTokenMissingCredentials(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(filepath.Join(dir, "credentials.json"), filepath.Join(dir, "credentials.tokens"), true)

	if _, err := m.Token(context.Background()); err == nil {
		t.Errorf("expected error for missing credentials file, got %v", err)
	}
}

func TestAuthoriserTokenSaved(t *testing.T) {
	f := setup(t)

	authoriser := func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "granted", RefreshToken: "r2", Expiry: time.Now().Add(time.Hour)}, nil
	}

	m := NewManager(f.credentials, f.tokens, true).WithAuthoriser(authoriser)

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if token.AccessToken != "granted" {
		t.Errorf("incorrect access token - expected:%v, got:%v", "granted", token.AccessToken)
	}

	if saved := f.load(t); saved.AccessToken != "granted" || saved.RefreshToken != "r2" {
		t.Errorf("authorised token not saved - got:%+v", saved)
	}
}

func TestAuthoriserError(t *testing.T) {
	f := setup(t)

	authoriser := func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
		return nil, fmt.Errorf("refused")
	}

	m := NewManager(f.credentials, f.tokens, true).WithAuthoriser(authoriser)

	if err := m.Authorise(context.Background()); err == nil {
		t.Errorf("expected authorisation error, got %v", err)
	}

	if _, err := os.Stat(f.tokens); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no tokens file, got %v", err)
	}
}

func TestLoopback(t *testing.T) {
	f := setup(t)

	opener := Opener
	t.Cleanup(func() { Opener = opener })

	Opener = func(link string) error {
		u, err := url.Parse(link)
		if err != nil {
			return err
		}

		q := u.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("access_type") != "offline" {
			return fmt.Errorf("invalid consent URL %v", link)
		}

		redirect := fmt.Sprintf("%v?state=%v&code=qwerty", q.Get("redirect_uri"), url.QueryEscape(q.Get("state")))

		go func() {
			if rsp, err := http.Get(redirect); err == nil {
				rsp.Body.Close()
			}
		}()

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := NewManager(f.credentials, f.tokens, true)

	if err := m.Authorise(ctx); err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if saved := f.load(t); saved.AccessToken != "exchanged" {
		t.Errorf("exchanged token not saved - got:%+v", saved)
	}
}

func TestLoopbackInvalidState(t *testing.T) {
	f := setup(t)

	opener := Opener
	t.Cleanup(func() { Opener = opener })

	status := make(chan int, 1)

	Opener = func(link string) error {
		u, _ := url.Parse(link)
		redirect := fmt.Sprintf("%v?state=forged&code=qwerty", u.Query().Get("redirect_uri"))

		go func() {
			if rsp, err := http.Get(redirect); err == nil {
				status <- rsp.StatusCode
				rsp.Body.Close()
			}
		}()

		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-status:
		case <-time.After(10 * time.Second):
		}
		cancel()
	}()

	m := NewManager(f.credentials, f.tokens, true)

	if err := m.Authorise(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancelled authorisation, got %v", err)
	}
}
