// Package showcmder provides the show command, which renders one stored
// image record as markdown.
package showcmder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/snaps/api"
	"github.com/papercomputeco/snaps/api/client"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/dotdir"
)

type showCommander struct {
	apiTarget string
	configDir string
	raw       bool
}

const showLongDesc string = `Show a stored image record.

The argument is an image id, or the number of a result from the last
"snaps search" (1 is the top hit).

Examples:
  snaps show 3f6c2a0e-...
  snaps show 1`

const showShortDesc string = "Show a stored image record"

func NewShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <id|n>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd, config.ClientFlags, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print markdown without terminal styling")
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *showCommander) run(ctx context.Context, w io.Writer, ref string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := dotdir.NewManager().LoadSearchState(c.configDir)
	if err != nil {
		return err
	}
	id := state.Resolve(ref)

	apiClient, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	img, err := apiClient.Get(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("no image with id %q", id)
		}
		return err
	}

	md := Markdown(img)
	if c.raw {
		_, err = io.WriteString(w, md)
		return err
	}

	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		// Fall back to the plain markdown.
		rendered = md
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// Markdown renders an image record as a markdown document.
func Markdown(img *api.ImageResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", img.Building)
	fmt.Fprintf(&b, "**Shot** %s\n\n", img.ShotDate)
	if img.Notes != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(img.Notes, "\n", "\n> "))
	}

	b.WriteString("| Field | Value |\n|---|---|\n")
	rows := [][2]string{
		{"ID", "`" + img.ID + "`"},
		{"Image", img.ImageURL},
		{"Content type", img.ContentType},
		{"Checksum", "`" + img.Checksum + "`"},
		{"Namespace", img.Namespace},
		{"Stored", img.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")},
	}
	for _, row := range rows {
		if row[1] == "" || row[1] == "``" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}

	return b.String()
}
