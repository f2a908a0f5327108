package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// VERSION is set at build time with -ldflags "-X ...commands.VERSION=v0.8.11"
var VERSION = "v0.8.x"

// VersionCmd is an initialized Version command for the main() command list
var VersionCmd = Version{}

// Version is a CLI command implementation that displays the CLI version information.
type Version struct {
}

// Returns 'version'
func (cmd *Version) Name() string {
	return "version"
}

// Description returns the 'version' command short form help
func (cmd *Version) Description() string {
	return "Displays the current version"
}

func (cmd *Version) Command(options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   cmd.Name(),
		Short: cmd.Description(),
		Long:  fmt.Sprintf("Displays the %v version in the format v<major>.<minor>.<build> e.g. v0.8.11", APP),
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}
}

// Execute prints the current version
func (cmd *Version) Execute(ctx context.Context, options *Options) error {
	fmt.Printf("%s\n", VERSION)

	return nil
}
