package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"licensebridge/internal/bridge"
	"licensebridge/internal/config"
	"licensebridge/internal/flagstore"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/license"
	"licensebridge/internal/notify"
)

type globalOptions struct {
	bridgeURL string
	eventsURL string
	flagsFile string
	timeout   time.Duration
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "licensectl",
		Short: "Inspect and manage licenses through the licensed daemon",
		Long: `licensectl connects to the licensed daemon over its websocket bridge and
drives the license state container: it synchronizes licenses and the resolved
status, adds perpetual or trial licenses, removes them and exports them.

Every command except init initializes the container first, which creates the
automatic license on an empty installation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.bridgeURL, "bridge-url", "", "websocket URL of the daemon bridge (default from config)")
	pf.StringVar(&opts.eventsURL, "events-url", "", "websocket URL of the daemon event stream (default derived from --bridge-url)")
	pf.StringVar(&opts.flagsFile, "flags-file", "", "path of the local flag store (default from config)")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for each command (0 disables)")
	pf.StringVar(&opts.logLevel, "log-level", "error", "log level written to stderr")

	root.AddCommand(
		newInitCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newRemoveCmd(opts),
		newSyncCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolve fills unset URLs and paths from the loaded configuration
func (o *globalOptions) resolve() error {
	if o.bridgeURL == "" || o.flagsFile == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if o.bridgeURL == "" {
			o.bridgeURL = cfg.Bridge.URL
		}
		if o.flagsFile == "" {
			o.flagsFile = cfg.Storage.FlagsPath
		}
	}
	if o.eventsURL == "" {
		u, err := url.Parse(o.bridgeURL)
		if err != nil {
			return fmt.Errorf("invalid bridge url: %w", err)
		}
		u.Path = config.DefaultEventsPath
		o.eventsURL = u.String()
	}
	return nil
}

// session is one connected license module
type session struct {
	module *license.Module
	client *bridge.WSClient
	flags  *flagstore.File
	out    io.Writer
	logger *slog.Logger
}

func (o *globalOptions) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	if err := o.resolve(); err != nil {
		return nil, err
	}

	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), o.logLevel)

	flags, err := flagstore.Open(o.flagsFile)
	if err != nil {
		return nil, err
	}

	client, err := bridge.Dial(ctx, o.bridgeURL, bridge.DialOptions{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	metrics, err := license.NewMetrics(otel.GetMeterProvider().Meter(infrastructure.MeterName))
	if err != nil {
		client.Close()
		return nil, err
	}

	module := license.NewModule(client, notify.NewConsole(cmd.OutOrStdout()), flags,
		license.WithLogger(logger),
		license.WithMetrics(metrics),
	)

	return &session{
		module: module,
		client: client,
		flags:  flags,
		out:    cmd.OutOrStdout(),
		logger: logger,
	}, nil
}

func (s *session) Close() error {
	return s.client.Close()
}

// run opens a session, initializes the module unless the action is init itself,
// runs action and prints the resulting license summary
func (o *globalOptions) run(cmd *cobra.Command, initFirst bool, action func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	s, err := o.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if initFirst {
		if err := s.module.Init(ctx); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	if err := action(ctx, s); err != nil {
		return err
	}

	printSummary(s.out, s.module)
	return nil
}
