package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/credentials"
	"github.com/desertthunder/apostle/internal/repositories"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/session"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/desertthunder/apostle/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	store      credentials.Store
	events     *repositories.SessionEventRepository
	resolver   *services.EndpointResolver
	baseURL    string
	cache      *services.ResponseCache
	client     *services.Client
	httpClient *http.Client
	session    *session.Service
	engine     *tasks.ContentEngine
	uploader   *services.Uploader
	logger     *log.Logger
	input      *bufio.Reader
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Store  credentials.Store
	Events *repositories.SessionEventRepository
	Logger *log.Logger
	Input  io.Reader
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration and connects it
// to the API origin. The origin is resolved without a page context and kept for
// the life of the Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Store == nil {
		opts.Store = credentials.NewMemoryStore()
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:   opts.Config,
		resolver: services.NewEndpointResolver(opts.Config.API.BaseURL),
		cache:    services.NewResponseCache(),
		store:    opts.Store,
		events:   opts.Events,
		logger:   opts.Logger,
		input:    bufio.NewReader(opts.Input),
		output:   opts.Output,
	}
	r.connect()
	return r
}

// connect wires the API client, request authorizer and session. The session is
// rehydrated from the credential store.
func (r *Runner) connect() {
	r.baseURL = r.resolver.Resolve(nil)

	var svc *session.Service
	r.httpClient = services.NewHTTPClient(r.config.API, services.CredentialFunc(func() string {
		return svc.AccessCredential()
	}), r.cache)

	r.client = services.NewClient(r.baseURL, r.httpClient)
	r.client.SetRateLimit(r.config.API.RequestsPerSecond)
	r.client.SetLogger(r.logger)

	svc = session.New(r.client, r.store, r.logger)
	svc.Observe(session.FlushOnEnd(r.cache))
	if r.events != nil {
		svc.Observe(session.AuditTo(r.events, r.logger))
	}
	if err := svc.Rehydrate(); err != nil {
		r.logger.Warn("failed to restore session", "error", err)
	}
	r.session = svc
	r.engine = tasks.NewContentEngine(r.client, r.client)

	if up, err := services.NewUploader(r.config.Upload, nil); err == nil {
		up.SetLogger(r.logger)
		r.uploader = up
	} else {
		r.logger.Debug("image uploads disabled", "reason", err)
		r.uploader = nil
	}
}

// SetLogger replaces the logger and rebuilds the session and clients around it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.connect()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, statsCommand, songsCommand, categoriesCommand,
		genresCommand, playlistsCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireCredential fails fast when no access credential is held anywhere.
func (r *Runner) requireCredential() error {
	if _, err := r.session.RequireCredential(); err != nil {
		return fmt.Errorf("%w: run 'apostle auth login' first", err)
	}
	return nil
}

// prompt reads one line from input after writing label.
func (r *Runner) prompt(label string) (string, error) {
	r.writePlain("%s: ", label)
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	output = []byte(strings.TrimSuffix(string(output), "\n"))
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

// openStore selects the credential store backend named by cfg.Driver.
//
// The sqlite backend also yields the session audit repository and the database
// handle to close on exit. When the database cannot be opened the file store is
// used instead.
func openStore(cfg shared.StorageConfig, logger *log.Logger) (credentials.Store, *repositories.SessionEventRepository, *sql.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return credentials.NewMemoryStore(), nil, nil, nil
	case "file":
		store, err := credentials.NewFileStore(cfg.CredentialsDir)
		return store, nil, nil, err
	case "sqlite", "":
		db, err := shared.OpenMigrated(cfg)
		if err != nil {
			logger.Warn("falling back to file credential store", "error", err)
			store, ferr := credentials.NewFileStore(cfg.CredentialsDir)
			return store, nil, nil, ferr
		}
		return credentials.NewSQLiteStore(db), repositories.NewSessionEventRepository(db), db, nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown storage driver %q (sqlite, file, memory)", shared.ErrInvalidConfig, cfg.Driver)
	}
}
