package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/venuecache/internal/daemon"
	"github.com/ManuGH/venuecache/internal/service"
	"github.com/spf13/cobra"
)

const defaultWaitTimeout = 30 * time.Second

func newVenuesCmd(opts *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "Query the venue catalog",
	}
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultWaitTimeout, "how long to wait for the catalog")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every venue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), opts, timeout, func(svc *service.Service) error {
				venues := svc.ListVenues()
				if asJSON {
					return writeJSON(cmd, venues)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tEVENTS")
				for _, v := range venues {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", v.ID, v.Name, v.Address, len(v.Schedule))
				}
				return tw.Flush()
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one venue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("venue id %q: %w", args[0], err)
			}
			return withCatalog(cmd.Context(), opts, timeout, func(svc *service.Service) error {
				v, ok := svc.GetVenueByID(id)
				if !ok {
					return fmt.Errorf("venue %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, v)
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s\n%s\n", v.Name, v.Address)
				if v.Phone != "" {
					_, _ = fmt.Fprintln(out, v.Phone)
				}
				for _, item := range v.ScheduleItems() {
					_, _ = fmt.Fprintf(out, "  %s  to  %s\n", item.StartString(), item.EndString())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

// withCatalog runs fn once the first catalog delivery has arrived.
func withCatalog(ctx context.Context, opts *rootOptions, timeout time.Duration, fn func(*service.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rt, err := daemon.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()
	if err := rt.Start(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rt.Service().WaitCatalog(waitCtx); err != nil {
		return fmt.Errorf("waiting for catalog: %w", err)
	}
	return fn(rt.Service())
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
