package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/bootstrap"
	"github.com/kbukum/flowkit/internal/demo/api"
	"github.com/kbukum/flowkit/internal/demo/screens"
	"github.com/kbukum/flowkit/internal/demo/store"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/version"
)

type rootOptions struct {
	configPath string
	tick       time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Play the flowkit demo screens",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: config.yml search path)")
	root.PersistentFlags().DurationVar(&opts.tick, "tick", 0, "length of one timing unit (default from config, 10ms)")

	root.AddCommand(
		newListCommand(),
		newRunCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load reads the config and applies command line overrides.
func (o *rootOptions) load() (*DemoConfig, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.tick > 0 {
		cfg.Tick = o.tick
	}
	cfg.Version = version.Get().Short()
	return cfg, nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available screens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, sc := range screens.All() {
				fmt.Fprintf(w, "%s\t%s\n", sc.Name(), sc.Description())
			}
			return w.Flush()
		},
	}
}

func newRunCommand(root *rootOptions) *cobra.Command {
	var (
		asJSON bool
		fail   bool
	)
	cmd := &cobra.Command{
		Use:       "run <screen>",
		Short:     "Play one screen and print its events",
		Args:      cobra.ExactArgs(1),
		ValidArgs: screenNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, ok := screens.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown screen %q, see %s list", args[0], serviceName)
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if fail {
				cfg.API.FailRequests = true
			}

			app, err := bootstrap.NewApp(cfg, bootstrap.WithoutSummary())
			if err != nil {
				return err
			}
			db := store.New(cfg.Store)
			if err := app.RegisterComponent(db); err != nil {
				return err
			}
			out := printer(cmd.OutOrStdout(), asJSON)
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				env := screens.Env{
					API:         api.New(cfg.API),
					Store:       db,
					Dispatchers: app.Dispatchers,
					Tick:        cfg.Tick,
				}
				return sc.Run(ctx, env, out)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON lines")
	cmd.Flags().BoolVar(&fail, "fail", false, "make every simulated API request fail")
	return cmd
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every screen as a server-sent event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				host, port, err := splitAddr(addr)
				if err != nil {
					return err
				}
				cfg.HTTP.Host, cfg.HTTP.Port = host, port
			}

			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			db := store.New(cfg.Store)
			srv := sse.NewServer(cfg.HTTP, cfg.Name)
			if err := app.RegisterComponent(db); err != nil {
				return err
			}
			if err := app.RegisterComponent(srv); err != nil {
				return err
			}

			env := screens.Env{
				API:         api.New(cfg.API),
				Store:       db,
				Dispatchers: app.Dispatchers,
				Tick:        cfg.Tick,
			}
			for _, sc := range screens.All() {
				path := "/streams/" + sc.Name()
				srv.Stream(path, sc.Name(), sse.Handler(screens.Stream(sc, env), sse.JSON[screens.Event](),
					sse.WithKeepAlive(cfg.HTTP.KeepAlive),
				))
				app.Summary.TrackStream(sc.Name(), "screen", path)
			}
			srv.HandleHealth(app.Components.HealthAll)

			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// printer writes events one per line. Screens emit from several tasks, so
// writes are serialized.
func printer(w io.Writer, asJSON bool) screens.Output {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(_ context.Context, e screens.Event) {
		mu.Lock()
		defer mu.Unlock()
		if asJSON {
			_ = enc.Encode(e)
			return
		}
		fmt.Fprintln(w, e.String())
	}
}

func screenNames() []string {
	var names []string
	for _, sc := range screens.All() {
		names = append(names, sc.Name())
	}
	return names
}

func splitAddr(addr string) (string, int, error) {
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in --addr %q: %w", addr, err)
	}
	return host, port, nil
}
