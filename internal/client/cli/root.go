// Package cli is the scribe command-line front end. It plays the part of
// the UI: navigation becomes a view announcement on stdout and toast
// notifications become lines on stderr.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/scribe/internal/client/config"
	"github.com/keyxmakerx/scribe/internal/client/gateway"
	"github.com/keyxmakerx/scribe/internal/client/httpapi"
	"github.com/keyxmakerx/scribe/internal/client/localstore"
	"github.com/keyxmakerx/scribe/internal/client/media"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/posts"
	"github.com/keyxmakerx/scribe/internal/client/profiles"
	"github.com/keyxmakerx/scribe/internal/client/session"
)

// Platform is the set of capabilities the commands run against.
type Platform struct {
	Auth    platform.AuthProvider
	Rows    platform.RowStore
	Objects platform.ObjectStore
	State   localstore.Store

	// SiteURL is where password recovery links land.
	SiteURL string

	// Close releases the platform's resources. May be nil.
	Close func() error
}

// ConnectFunc builds the platform for a loaded configuration.
type ConnectFunc func(cfg *config.Config, logger *slog.Logger) (*Platform, error)

// ConnectHTTP talks to a scribe server over HTTP and keeps state in a
// SQLite database under the state directory.
func ConnectHTTP(cfg *config.Config, logger *slog.Logger) (*Platform, error) {
	state, err := localstore.OpenSQLite(filepath.Join(cfg.StateDir, "scribe.db"))
	if err != nil {
		return nil, err
	}
	client := httpapi.New(cfg.ServerURL, state, httpapi.WithLogger(logger))
	return &Platform{
		Auth:    client,
		Rows:    client,
		Objects: client,
		State:   state,
		SiteURL: cfg.ServerURL,
		Close:   state.Close,
	}, nil
}

// App holds the IO streams and, once a command starts, the wired client
// components.
type App struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Connect ConnectFunc

	// Set by the root command before any subcommand runs.
	logger    *slog.Logger
	platform  *Platform
	store     *session.Store
	gateway   *gateway.Gateway
	repo      *posts.Repository
	dashboard *posts.Dashboard
	profiles  *profiles.Service
}

// NewApp returns an App bound to the process's standard streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Connect: ConnectHTTP}
}

// Execute runs the command line and reports a failure as an error toast.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	// Runs even when the command failed; cobra skips post-run hooks then.
	a.shutdown()
	if err != nil {
		a.toast("error", err.Error())
	}
	return err
}

// RootCommand assembles the command tree.
func (a *App) RootCommand() *cobra.Command {
	var (
		configFile string
		serverURL  string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Write and read posts on a Scribe server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{File: configFile})
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			if verbose {
				cfg.Verbose = true
			}
			return a.start(cmd, cfg)
		},
	}
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/scribe/config.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides SCRIBE_SERVER_URL)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.signUpCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.resetPasswordCommand(),
		a.recoverCommand(),
		a.updatePasswordCommand(),
		a.feedCommand(),
		a.postsCommand(),
		a.avatarCommand(),
	)
	return root
}

// start wires the client components and restores the session.
func (a *App) start(cmd *cobra.Command, cfg *config.Config) error {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{Level: level}))

	p, err := a.Connect(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	a.platform = p

	uploader := media.New(p.Objects, a.logger)
	a.profiles = profiles.New(p.Rows, uploader, a.logger)
	a.repo = posts.NewRepository(p.Rows, a.logger)
	a.dashboard = posts.NewDashboard(a.repo, uploader)
	a.gateway = gateway.New(gateway.Config{
		Auth:     p.Auth,
		State:    p.State,
		Uploader: uploader,
		Profiles: a.profiles,
		SiteURL:  p.SiteURL,
		Logger:   a.logger,
	})

	a.store = session.New(p.Auth, &navigator{out: a.Stdout, logger: a.logger}, a.logger)
	ctx := cmd.Context()
	a.store.Init(ctx)
	cmd.SetContext(session.WithStore(ctx, a.store))
	return nil
}

// shutdown drops the auth subscription and closes the platform.
func (a *App) shutdown() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	if a.platform != nil && a.platform.Close != nil {
		if err := a.platform.Close(); err != nil {
			a.logger.Warn("closing local state", slog.Any("error", err))
		}
	}
	a.platform = nil
}

// toast writes a one-line notification to stderr.
func (a *App) toast(kind, msg string) {
	fmt.Fprintf(a.Stderr, "%s: %s\n", kind, msg)
}

// navigator announces view changes on stdout.
type navigator struct {
	out    io.Writer
	logger *slog.Logger
}

func (n *navigator) Refresh() {
	n.logger.Debug("view refreshed")
}

func (n *navigator) Navigate(view string) {
	fmt.Fprintf(n.out, "-> %s\n", view)
}
