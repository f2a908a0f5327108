package auth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/uhppoted/uhppoted-app-report/log"
)

// Opener opens the consent URL for the user. Replaced in tests.
var Opener = func(url string) error {
	return exec.Command(BROWSER, url).Start()
}

var page = template.Must(template.New("authorised").Parse(`<!DOCTYPE html>
<html>
  <head><title>uhppoted-app-report</title></head>
  <body>
    {{if .}}<p>Authorisation failed: {{.}}</p>{{else}}<p>uhppoted-app-report has been authorised. You can close this window.</p>{{end}}
  </body>
</html>
`))

// Loopback runs the 'installed application' consent flow: the consent URL is opened in
// the browser and the authorisation code is received on a loopback HTTP listener bound
// to a random port.
func Loopback(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://%v/", listener.Addr())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	authorised := make(chan string, 1)
	refused := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, rq *http.Request) {
		if rq.FormValue("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		if reason := rq.FormValue("error"); reason != "" {
			page.Execute(w, reason)

			select {
			case refused <- fmt.Errorf("authorisation refused (%v)", reason):
			default:
			}
			return
		}

		if code := rq.FormValue("code"); code != "" {
			page.Execute(w, nil)

			select {
			case authorised <- code:
			default:
			}
		}
	})

	srv := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("authorisation listener (%v)", err)
		}
	}()

	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warnf("%v", err)
		}
	}()

	// ... CTRL-C handler
	interrupt := make(chan os.Signal, 1)

	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fmt.Printf("\n  Open the following link in your browser to authorise uhppoted-app-report:\n\n  %v\n\n", url)

	if err := Opener(url); err != nil {
		log.Warnf("could not open the authorisation page in the browser - please open it manually")
	}

	// ... wait for authorisation
	select {
	case <-interrupt:
		return nil, fmt.Errorf("cancelled")

	case <-ctx.Done():
		return nil, ctx.Err()

	case err := <-refused:
		return nil, err

	case code := <-authorised:
		token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from web (%w)", err)
		}

		return token, nil
	}
}
