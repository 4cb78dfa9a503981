package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"licensebridge/internal/exporter"
	"licensebridge/internal/license"
	"licensebridge/pkg/contracts"
	"licensebridge/pkg/contracts/events"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Synchronize with the daemon, creating the automatic license when none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, s *session) error {
				return s.module.Init(ctx)
			})
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved license status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(context.Context, *session) error { return nil })
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored licenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(_ context.Context, s *session) error {
				st := s.module.State()
				printLicenses(s.out, st.Licenses, st.Now)
				return nil
			})
		},
	}
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	var req license.AddRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a perpetual license, or start the trial with --trial",
		Example: `  licensectl add --email owner@example.com --key ABCD-EFGH
  licensectl add --trial`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, s *session) error {
				return s.module.Add(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email stored with the license")
	cmd.Flags().StringVar(&req.Key, "key", "", "license key (default \""+license.DefaultLicenseKey+"\")")
	cmd.Flags().BoolVar(&req.Trial, "trial", false, "create the trial license instead")
	cmd.MarkFlagsMutuallyExclusive("trial", "key")
	return cmd
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove the license with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid license id %q", args[0])
			}
			return opts.run(cmd, true, func(ctx context.Context, s *session) error {
				for _, l := range s.module.State().Licenses {
					if l.ID == id {
						return s.module.Remove(ctx, l)
					}
				}
				return fmt.Errorf("license %d not found", id)
			})
		},
	}
}

func newSyncCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch licenses and status from the daemon again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, s *session) error {
				return s.module.Sync(ctx)
			})
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the synchronized licenses and status to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(_ context.Context, s *session) error {
				st := s.module.State()
				if err := exporter.WriteLicensesFile(args[0], st.Licenses, st.Status, st.Now); err != nil {
					return err
				}
				fmt.Fprintf(s.out, "exported %d licenses to %s\n", len(st.Licenses), args[0])
				return nil
			})
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events pushed by the daemon and re-sync on license changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The per-command timeout does not apply to an open-ended watch
			if count == 0 {
				opts.timeout = 0
			}
			return opts.run(cmd, true, func(ctx context.Context, s *session) error {
				return watch(ctx, opts.eventsURL, s, count)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many license or notification events (0 runs until interrupted)")
	return cmd
}

// watch reads frames from the event stream until ctx is done or count relevant
// events have been handled
func watch(ctx context.Context, eventsURL string, s *session, count int) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, eventsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	seen := 0
	for count == 0 || seen < count {
		var frame events.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		switch frame.Event {
		case events.LicenseChanged:
			var data events.LicenseChangedData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				return fmt.Errorf("decode %s: %w", frame.Event, err)
			}
			fmt.Fprintf(s.out, "%s license %d %s\n", frame.Timestamp.Format("15:04:05"), data.ID, data.Action)
			if err := s.module.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			printSummary(s.out, s.module)
			seen++
		case events.Notification:
			var data events.NotificationData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				return fmt.Errorf("decode %s: %w", frame.Event, err)
			}
			fmt.Fprintf(s.out, "%s %s: %s\n", frame.Timestamp.Format("15:04:05"), data.Level, data.Message)
			seen++
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), contracts.GetVersionInfo().Banner("licensectl"))
			return err
		},
	}
}
