package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/ManuGH/venuecache/internal/daemon"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newImageCmd(opts *rootOptions) *cobra.Command {
	var (
		width, height int
		output        string
		timeout       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "image <url>",
		Short: "Download an image and scale it to fit",
		Long:  "Download an image, decode it to fit within -w x -H pixels and write it as PNG.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = cfg.Images.MaxWidth
			}
			if height <= 0 {
				height = cfg.Images.MaxHeight
			}

			rt, err := daemon.NewRuntime(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()
			// No catalog load for a single image.
			if err := rt.StartWorkers(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			bm, ok := rt.Service().RequestImage(ctx, args[0], width, height)
			if !ok {
				return fmt.Errorf("image %s could not be loaded", args[0])
			}
			defer bm.Release()

			f, err := renameio.NewPendingFile(output, renameio.WithPermissions(0o644))
			if err != nil {
				return err
			}
			defer func() { _ = f.Cleanup() }()
			if err := png.Encode(f, bm.Image()); err != nil {
				return err
			}
			if err := f.CloseAtomicallyReplace(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d\n", output, bm.Width(), bm.Height())
			return nil
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 0, "maximum width (default from config)")
	cmd.Flags().IntVarP(&height, "height", "H", 0, "maximum height (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG output path")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultWaitTimeout, "download and decode deadline")
	return cmd
}
