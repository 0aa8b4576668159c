// Package uploadcmder provides the upload command, a multipart client for
// the snaps API.
package uploadcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/snaps/api/client"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/ingest"
)

type uploadCommander struct {
	building  string
	shotDate  string
	notes     string
	apiTarget string
}

const uploadLongDesc string = `Upload images to a running snaps API server.

A single file is sent to /api/images, several files to /api/images/batch.
Every file shares the given building, shot date and notes.

Examples:
  snaps upload facade.jpg --building "North Hall" --shot-date 2023-07-12
  snaps upload site/*.jpg --building Annex --shot-date 2024-03-01 --notes "level 2 slab"`

const uploadShortDesc string = "Upload images"

func NewUploadCmd() *cobra.Command {
	cmder := &uploadCommander{}

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: uploadShortDesc,
		Long:  uploadLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd, config.ClientFlags, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().StringVarP(&cmder.building, "building", "b", "", "Building the images were taken at")
	cmd.Flags().StringVar(&cmder.shotDate, "shot-date", "", "Shot date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cmder.notes, "notes", "", "Optional notes")
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	_ = cmd.MarkFlagRequired("building")
	_ = cmd.MarkFlagRequired("shot-date")

	return cmd
}

func (c *uploadCommander) run(ctx context.Context, w io.Writer, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	api, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	meta := client.Metadata{
		Building: c.building,
		ShotDate: c.shotDate,
		Notes:    c.notes,
	}

	if len(paths) == 1 {
		var id, url string
		err := cliui.Step(w, "Uploading "+filepath.Base(paths[0]), func() error {
			res, err := api.Upload(ctx, paths[0], meta)
			if err != nil {
				return err
			}
			id, url = res.ID, res.ImageURL
			return nil
		})
		if err != nil {
			return err
		}
		printUploaded(w, paths[0], id, url)
		return nil
	}

	var stored []ingest.Result
	err = cliui.Step(w, fmt.Sprintf("Uploading %d images", len(paths)), func() error {
		res, err := api.UploadBatch(ctx, paths, meta)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				stored = apiErr.Uploaded
			}
			return err
		}
		stored = res.Uploaded
		return nil
	})

	// Results come back in input order, including the ones stored before
	// a batch failure.
	for i, r := range stored {
		printUploaded(w, paths[i], r.ID, r.ImageURL)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s %d images uploaded\n", cliui.SuccessMark, len(stored))
	return nil
}

func printUploaded(w io.Writer, path, id, url string) {
	fmt.Fprintf(w, "    %s  %s  %s\n",
		cliui.ValueStyle.Render(filepath.Base(path)),
		cliui.KeyStyle.Render(id),
		cliui.DimStyle.Render(url),
	)
}
