// Package searchcmder provides the search command for finding stored images
// by text, by a reference image, or both.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/snaps/api/client"
	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/dotdir"
)

var (
	rankStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	buildingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	notesStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	input     search.Input
	jsonOut   bool
	quiet     bool
	apiTarget string
	configDir string
}

const searchLongDesc string = `Search stored images via the snaps API.

Give a text query, a reference image id (--image-id), or both; both vectors
are averaged. Building and date filters narrow the results. Requires a
running snaps API server.

The result list is remembered, so "snaps show 1" opens the top hit.

Examples:
  snaps search "tower crane"
  snaps search excavator --building "North Hall" --from 2023-07-01 --to 2023-07-31
  snaps search --image-id 3f6c... -k 5
  snaps search scaffolding --quiet`

const searchShortDesc string = "Search stored images"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.input.Query = args[0]
			}
			if strings.TrimSpace(cmder.input.Query) == "" && cmder.input.QueryImageID == "" {
				return fmt.Errorf("provide a query or --image-id")
			}

			cfg, err := config.Resolve(cmd, config.ClientFlags, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.input.QueryImageID, "image-id", "", "Find images similar to this stored image")
	cmd.Flags().StringVarP(&cmder.input.Building, "building", "b", "", "Only return images of this building")
	cmd.Flags().StringVar(&cmder.input.DateFrom, "from", "", "Earliest shot date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&cmder.input.DateTo, "to", "", "Latest shot date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&cmder.input.Namespace, "namespace", "", "Only return images from this namespace")
	cmd.Flags().IntVarP(&cmder.input.TopK, "top", "k", search.DefaultTopK, "Number of results to return")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only image ids, one per line")
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	api, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	output, err := api.Search(ctx, c.input)
	if err != nil {
		return err
	}

	c.remember(output)

	switch {
	case c.jsonOut:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)

	case c.quiet:
		for _, r := range output.Results {
			fmt.Fprintln(w, r.ID)
		}
		return nil
	}

	if output.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search results for:"),
		idStyle.Render(c.describe()),
	)

	width := cliui.TerminalWidth(os.Stdout, 100) - 6
	for i, r := range output.Results {
		printResult(w, i+1, r, width)
	}

	return nil
}

// remember saves the result ids so "snaps show <n>" can refer to them.
// Failure is not fatal to the search.
func (c *searchCommander) remember(output *search.Output) {
	ids := make([]string, 0, len(output.Results))
	for _, r := range output.Results {
		ids = append(ids, r.ID)
	}

	state := &dotdir.SearchState{Query: c.input.Query, IDs: ids}
	if err := dotdir.NewManager().SaveSearchState(state, c.configDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save search results: %v\n", err)
	}
}

func (c *searchCommander) describe() string {
	var parts []string
	if c.input.Query != "" {
		parts = append(parts, fmt.Sprintf("%q", c.input.Query))
	}
	if c.input.QueryImageID != "" {
		parts = append(parts, "image "+c.input.QueryImageID)
	}
	if c.input.Building != "" {
		parts = append(parts, "building "+c.input.Building)
	}
	if c.input.DateFrom != "" || c.input.DateTo != "" {
		parts = append(parts, fmt.Sprintf("dates %s..%s", c.input.DateFrom, c.input.DateTo))
	}
	return strings.Join(parts, ", ")
}

func printResult(w io.Writer, rank int, r search.Result, width int) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		idStyle.Render(r.ID),
	)
	fmt.Fprintf(w, "  %s  %s\n", buildingStyle.Render(r.Building), dimStyle.Render(r.ShotDate))
	if r.Notes != "" {
		fmt.Fprintf(w, "  %s\n", notesStyle.Render(cliui.Fit(r.Notes, width)))
	}
	fmt.Fprintf(w, "  %s\n\n", dimStyle.Render(r.ImageURL))
}
