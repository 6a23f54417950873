package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jamworks/jambot/internal/learner"
	"github.com/jamworks/jambot/internal/matcher"
	"github.com/jamworks/jambot/internal/parser"
	"github.com/jamworks/jambot/internal/patterns"
	"github.com/jamworks/jambot/internal/repositories"
	"github.com/jamworks/jambot/internal/services"
	"github.com/jamworks/jambot/internal/shared"
	"github.com/jamworks/jambot/internal/workflow"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	catalog services.MusicCatalogGateway

	db       *sql.DB
	parser   *parser.Parser
	patterns *patterns.Store
	matcher  *matcher.SongMatcher
	engine   *workflow.Engine
	learner  *learner.Learner
	configs  *repositories.TenantConfigRepository
	songs    *repositories.SongRepository
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog is optional; when nil, commands that reach the music catalog
// build a Spotify gateway from the config on first use.
type RunnerOpts struct {
	Config  *shared.Config
	Catalog services.MusicCatalogGateway
	Logger  *log.Logger
	Output  io.Writer
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
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		catalog: opts.Catalog,
	}
}

// loadConfig replaces the runner config from the command's --config path
// when the file exists. Must run before bootstrap.
func (r *Runner) loadConfig(cmd *cli.Command) {
	path := cmd.String("config")
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return
	}
	r.config = config
}

// bootstrap opens the database and wires the component graph. Commands
// call it once at the top of their action; main tears it down on exit.
func (r *Runner) bootstrap(ctx context.Context) error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if r.config.Database.Path != ":memory:" {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db

	r.configs = repositories.NewTenantConfigRepository(db)
	r.songs = repositories.NewSongRepository(db)
	r.parser = parser.New(r.logger)
	r.patterns = patterns.NewStore(r.configs, r.logger)

	catalog := r.catalog
	if catalog == nil {
		catalog, err = r.openCatalog(ctx)
		if err != nil {
			r.logger.Warn("music catalog unavailable", "error", err)
			catalog = nil
		}
		r.catalog = catalog
	}
	if catalog != nil {
		r.matcher = matcher.New(r.songs, catalog, r.config.Bot.SearchLimit, r.logger)
	}

	r.engine = workflow.NewEngine(workflow.Options{
		Store:    repositories.NewWorkflowRepository(db),
		History:  r.songs,
		Setlists: repositories.NewSetlistRepository(db),
		Configs:  r.configs,
		Catalog:  catalog,
		Notifier: services.NewConsoleNotifier(r.output, r.logger),
		Logger:   r.logger,
	})
	if _, err := r.engine.Restore(); err != nil {
		return err
	}

	r.learner = learner.New(r.parser, r.patterns, r.logger)
	return nil
}

// openCatalog builds the Spotify gateway from config credentials and the
// stored token file.
func (r *Runner) openCatalog(ctx context.Context) (services.MusicCatalogGateway, error) {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify credentials not configured", shared.ErrMissingConfig)
	}

	data, err := os.ReadFile(creds.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: no token at %s", shared.ErrNotAuthenticated, creds.TokenPath)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return services.NewSpotifyGateway(ctx, services.SpotifyCredentials{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		Token:        &token,
	}, r.logger)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, processCommand, selectCommand, overrideCommand, workflowCommand, learnCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireCatalog guards commands that cannot run without the music catalog.
func (r *Runner) requireCatalog() error {
	if r.catalog == nil {
		return fmt.Errorf("%w: configure spotify credentials and token first", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) close() {
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}
