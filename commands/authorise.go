package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhppoted/uhppoted-app-report/auth"
	"github.com/uhppoted/uhppoted-app-report/config"
	"github.com/uhppoted/uhppoted-app-report/log"
)

var AuthoriseCmd = Authorise{
	credentials: "",
	tokens:      "",
}

// Authorise runs the browser consent flow and saves the resulting token for use by
// subsequent unattended runs.
type Authorise struct {
	credentials string
	tokens      string
}

func (cmd *Authorise) Name() string {
	return "authorise"
}

func (cmd *Authorise) Description() string {
	return "Authorises uhppoted-app-report to access Google Drive and Gmail"
}

func (cmd *Authorise) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:     cmd.Name(),
		Aliases: []string{"authorize"},
		Short:   cmd.Description(),
		Long: `Opens the Google consent page in the browser and waits for the authorisation to be
granted. The access and refresh tokens are stored in the tokens file.`,
		Example: fmt.Sprintf(`  %s authorise --credentials ".google/credentials.json"`, APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().StringVar(&cmd.credentials, "credentials", cmd.credentials, "Path for the 'credentials.json' file. Defaults to GOOGLE_CREDENTIALS")
	c.Flags().StringVar(&cmd.tokens, "tokens", cmd.tokens, "Path for the tokens file. Defaults to GOOGLE_TOKENS")

	return c
}

func (cmd *Authorise) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	credentials := cfg.Google.Credentials
	tokens := cfg.Google.Tokens

	if strings.TrimSpace(cmd.credentials) != "" {
		credentials = cmd.credentials
	}

	if strings.TrimSpace(cmd.tokens) != "" {
		tokens = cmd.tokens
	}

	if !config.Exists(credentials) {
		return fmt.Errorf("missing Google credentials file %v", credentials)
	}

	if err := auth.NewManager(credentials, tokens, true).Authorise(ctx); err != nil {
		return fmt.Errorf("authorisation error (%w)", err)
	}

	log.Successf("authorised - tokens saved to %v", tokens)

	return nil
}
