package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"setlistbot/internal/bot"
	"setlistbot/internal/repositories"
	"setlistbot/internal/server"
	"setlistbot/internal/services"
	"setlistbot/internal/shared"
	"setlistbot/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter config.toml and initialize the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the webhook server",
		Action: r.Serve,
	}
}

// Setup writes the example config and bootstraps the sqlite schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("config not written", "error", err)
	} else {
		fmt.Fprintf(r.output, "Wrote %s\n", path)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.EnsureSchema(db); err != nil {
		return err
	}

	fmt.Fprintf(r.output, "Database ready at %s\n", r.config.Database.Path)
	return nil
}

// Serve wires the pipeline and starts the webhook server.
//
// Shared clients are constructed once here and reused across all pipeline
// runs; they need no teardown beyond process exit.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram token", shared.ErrMissingCredentials)
	}
	if cfg.Telegram.WebhookSecret == "" {
		return fmt.Errorf("%w: telegram webhook secret", shared.ErrMissingCredentials)
	}

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)

	if err := repositories.EnsureSchema(db); err != nil {
		return err
	}

	tokens := repositories.NewTokenRepository(db)
	playlists := repositories.NewPlaylistRepository(db)

	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     cfg.Credentials.Spotify.ClientID,
		"client_secret": cfg.Credentials.Spotify.ClientSecret,
		"redirect_uri":  cfg.Credentials.Spotify.RedirectURI,
	}, shared.WithLogger(r.logger, "service", "spotify"))
	if err != nil {
		return err
	}

	// The configured refresh token wins; otherwise fall back to one captured
	// by a previous /login.
	refreshToken := cfg.Credentials.Spotify.RefreshToken
	if refreshToken == "" {
		if stored, err := tokens.LoadToken(); err == nil {
			refreshToken = stored
		} else if !errors.Is(err, shared.ErrNoRefreshToken) {
			return err
		}
	}

	if refreshToken != "" {
		if err := spotify.Authenticate(ctx, map[string]string{"refresh_token": refreshToken}); err != nil {
			return err
		}
	} else {
		r.logger.Warn("spotify account not linked; visit /login to authorize")
	}

	extractor := services.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, nil, shared.WithLogger(r.logger, "service", "openai"))
	setlists := services.NewSetlistFMClient(cfg.SetlistFM.APIKey, nil, shared.WithLogger(r.logger, "service", "setlistfm"))

	engine := tasks.NewPipelineEngine(extractor, setlists, spotify, shared.WithLogger(r.logger, "component", "pipeline"))
	engine.SetRecorder(playlists)

	telegram := bot.NewClient(cfg.Telegram.Token, nil)
	handler := bot.NewHandler(engine, telegram, shared.WithLogger(r.logger, "component", "bot"))

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(&server.HealthHandler{})
	router.Handler(server.NewOAuthHandler(spotify, tokens, shared.WithLogger(r.logger, "component", "oauth")))
	router.Handler(server.NewWebhookHandler(cfg.Telegram.WebhookSecret, handler, shared.WithLogger(r.logger, "component", "webhook")))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	r.logger.Info("starting server", "addr", addr)

	return http.ListenAndServe(addr, router)
}
