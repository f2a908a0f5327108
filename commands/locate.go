package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var LocateCmd = Locate{
	path: "",
}

type Locate struct {
	path string
}

func (cmd *Locate) Name() string {
	return "locate"
}

func (cmd *Locate) Description() string {
	return "Resolves the report workbook path in the shared drive"
}

func (cmd *Locate) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:     cmd.Name(),
		Short:   cmd.Description(),
		Example: fmt.Sprintf(`  %s locate --path "Reports/2026/daily.xlsx"`, APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().StringVar(&cmd.path, "path", cmd.path, "Slash separated path of the file in the shared drive. Defaults to DRIVE_PATH")

	return c
}

func (cmd *Locate) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	path := cfg.Drive.Path
	if strings.TrimSpace(cmd.path) != "" {
		path = cmd.path
	}

	client, err := authorised(ctx, cfg)
	if err != nil {
		return err
	}

	drive, err := newDrive(ctx, cfg, client)
	if err != nil {
		return err
	}

	id, err := drive.Locate(ctx, path)
	if err != nil {
		return err
	}

	file, err := drive.Stat(ctx, id)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  path      %v\n", path)
	fmt.Printf("  ID        %v\n", file.ID)
	fmt.Printf("  name      %v\n", file.Name)
	fmt.Printf("  type      %v\n", file.MimeType)
	fmt.Printf("  size      %v\n", file.Size)
	fmt.Printf("  revision  %v\n", file.Revision)
	fmt.Printf("  modified  %v\n", file.ModifiedTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Println()

	return nil
}
