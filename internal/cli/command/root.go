// Package command provides the snipbox CLI.
//
// It uses urfave/cli/v2 for command parsing. Each invocation builds the same
// engine as the server (see internal/app) in its Before hook, runs one
// command through a panel.Controller, and closes the store in After.
//
// Clipboard writes go to the system clipboard, falling back to an OSC 52
// sequence on the command's output. Confirmations and the add prompt read
// lines from the command's input.
package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/app"
	"github.com/sakif/snippet-box/internal/clipboard"
	"github.com/sakif/snippet-box/internal/config"
	"github.com/sakif/snippet-box/internal/panel"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const sessionKey = "session"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Session is what every command runs against.
type Session struct {
	App        *app.App
	Controller *panel.Controller
	Output     string
}

// Option configures the CLI application.
type Option func(*options)

type options struct {
	clipboard clipboard.Writer
}

// WithClipboard replaces the system clipboard.
func WithClipboard(w clipboard.Writer) Option {
	return func(o *options) { o.clipboard = w }
}

// App creates the CLI application reading prompts from in and writing results
// to out. Logs and error messages go to errOut.
func App(in io.Reader, out, errOut io.Writer, opts ...Option) *cli.App {
	o := options{clipboard: clipboard.NewSystem(out)}
	for _, opt := range opts {
		opt(&o)
	}
	prompt := newLinePrompt(in, out)

	a := &cli.App{
		Name:      "snipbox",
		Usage:     "Keep, search and copy code snippets",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags:     globalFlags(),
		Metadata:  map[string]any{},
		Commands: []*cli.Command{
			ListCommand(),
			AddCommand(),
			TitleCommand(),
			SaveCommand(),
			DeleteCommand(),
			RefreshCommand(),
			CopyCommand(),
			WidthCommand(),
			PaletteCommand(),
			TokenCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			logger := cfg.Log.NewLogger(c.App.ErrWriter)

			engine, err := app.New(c.Context, cfg, logger)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			c.App.Metadata[sessionKey] = &Session{
				App: engine,
				Controller: panel.NewController(c.Context, engine.Snippets, o.clipboard, logger,
					panel.WithConfirmer(prompt),
					panel.WithPrompter(prompt),
				),
				Output: c.String("output"),
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if s := GetSession(c); s != nil {
				return s.App.Close()
			}
			return nil
		},
	}
	return a
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"SNIPBOX_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Store driver: sqlite, badger, memory",
		},
		&cli.StringFlag{
			Name:  "store-path",
			Usage: "Database file (sqlite) or directory (badger)",
		},
		&cli.StringFlag{
			Name:  "source-url",
			Usage: "Fetch the external snippet list from this URL",
		},
		&cli.StringFlag{
			Name:  "source-file",
			Usage: "Read the external snippet list from this file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "warn",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			Value:   FormatTable,
		},
	}
}

// loadConfig reads .env and the configuration file, then applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if c.IsSet("store") {
		cfg.Store.Driver = c.String("store")
	}
	if c.IsSet("store-path") {
		cfg.Store.Path = c.String("store-path")
	}
	if c.IsSet("source-url") {
		cfg.Source.URL = c.String("source-url")
	}
	if c.IsSet("source-file") {
		cfg.Source.File = c.String("source-file")
	}
	cfg.Log.Level = c.String("log-level")

	switch out := c.String("output"); out {
	case FormatTable, FormatJSON:
	default:
		return config.Config{}, fmt.Errorf("invalid output format %q", out)
	}
	return cfg, cfg.Validate()
}

// GetSession retrieves the session from context.
func GetSession(c *cli.Context) *Session {
	if s, ok := c.App.Metadata[sessionKey].(*Session); ok {
		return s
	}
	return nil
}

// dispatch runs cmd on the session controller and prints its toasts.
func dispatch(c *cli.Context, cmd panel.Command) (panel.Outcome, error) {
	s := GetSession(c)
	if s == nil {
		return panel.Outcome{}, cli.Exit("not initialized", 1)
	}
	out := s.Controller.Dispatch(c.Context, cmd)
	printToasts(c, out.Toasts)
	return out, exitError(out.Err)
}

// exitError maps an operation failure to an exit code.
func exitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperror.ErrValidation):
		return cli.Exit(err.Error(), 2)
	case errors.Is(err, apperror.ErrNotFound):
		return cli.Exit(err.Error(), 3)
	default:
		return cli.Exit(err.Error(), 1)
	}
}
