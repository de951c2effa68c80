package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/playlists"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, engine and service are opened lazily by commands that need them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	ownsDB     bool
	redis      *redis.Client
	engine     *tasks.Engine
	service    *playlists.Service
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB // used as-is when set; migrations are the caller's responsibility
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
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, userCommand, catalogCommand, playlistCommand, templatesCommand, refreshAllCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig replaces the runner's configuration with the file named by --config when it exists.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}

	config, err := shared.LoadOrDefault(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.configPath = path

	if logFile := cmd.String("log-file"); logFile != "" {
		logger, err := shared.NewFileLogger(logFile)
		if err != nil {
			return ctx, err
		}
		r.logger = logger
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// open connects to the database, applies migrations and wires the engine and service.
func (r *Runner) open() error {
	if r.service != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.OpenConfigured(r.config.Database)
		if err != nil {
			return err
		}
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
		r.ownsDB = true
	}

	opts := []tasks.Option{
		tasks.WithLogger(shared.WithLogger(r.logger, "component", "engine")),
		tasks.WithCompactPositions(r.config.Playlists.CompactPositions),
		tasks.WithRateLimit(r.config.Refresh.RateLimit),
	}
	if timeout := r.config.Refresh.LockTimeout(); timeout > 0 {
		opts = append(opts, tasks.WithLockTimeout(timeout))
	}
	if r.config.Redis.Enabled {
		r.redis = tasks.NewRedisClient(r.config.Redis)
		opts = append(opts, tasks.WithLocker(tasks.NewRedisLocker(r.redis, r.config.Redis.LockTTL())))
		r.logger.Debug("using redis playlist locks", "addr", r.config.Redis.Address)
	}

	r.engine = tasks.NewEngine(r.db, opts...)
	r.service = playlists.NewService(r.db, r.engine,
		playlists.WithLogger(shared.WithLogger(r.logger, "component", "playlists")),
		playlists.WithSettings(r.config.Playlists),
	)
	return nil
}

// Close releases the database and redis connections opened by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.db != nil && r.ownsDB {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// actor resolves --user, given as an email address or an id. An empty value is anonymous.
func (r *Runner) actor(ctx context.Context, cmd *cli.Command) (*models.User, error) {
	ref := strings.TrimSpace(cmd.String("user"))
	if ref == "" {
		return nil, nil
	}

	users := repositories.NewUserRepository(r.db)
	var (
		user *models.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = users.GetByEmail(ctx, ref)
	} else {
		user, err = users.Get(ctx, ref)
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user %q", shared.ErrNotAuthenticated, ref)
	}
	return user, err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
