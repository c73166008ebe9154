package cli

import (
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/config"
	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/profiles"
	"github.com/roach88/acorn/internal/project"
	"github.com/roach88/acorn/internal/signal"
	"github.com/roach88/acorn/internal/validate"
)

// node is an opened local ledger with every record type wired in.
type node struct {
	cfg      config.Config
	ledger   *ledger.Ledger
	project  *project.Project
	profiles *profiles.Store
	logger   *slog.Logger
}

func (n *node) Close() error {
	return n.ledger.Close()
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Key != "" {
		cfg.KeyFile = o.Key
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the text logger on w. --verbose lowers the level to debug.
func (o *RootOptions) newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// nodeDeps are the optional collaborators of openNode.
type nodeDeps struct {
	sender  signal.Sender
	metrics *metrics.Metrics
}

// openNode loads config and key, then opens the ledger.
// The caller closes the node.
func openNode(opts *RootOptions, cmd *cobra.Command, deps nodeDeps) (*node, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())

	key, err := ledger.LoadOrCreateKey(cfg.KeyFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load key", err)
	}
	return openNodeWithKey(cfg, key, logger, deps)
}

func openNodeWithKey(cfg config.Config, key ed25519.PrivateKey, logger *slog.Logger, deps nodeDeps) (*node, error) {
	reg := validate.NewRegistry()
	if err := project.Register(reg); err != nil {
		return nil, err
	}
	if err := profiles.Register(reg); err != nil {
		return nil, err
	}

	logger.Debug("opening ledger", "path", cfg.DB)
	l, err := ledger.Open(cfg.DB, key,
		ledger.WithValidator(reg),
		ledger.WithLogger(logger),
		ledger.WithMetrics(deps.metrics),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}

	var notifier *signal.Notifier
	if deps.sender != nil {
		notifier = signal.NewNotifier(deps.sender, signal.WithLogger(logger), signal.WithMetrics(deps.metrics))
	}
	return &node{
		cfg:      cfg,
		ledger:   l,
		project:  project.New(l, notifier, logger),
		profiles: profiles.New(l, notifier, logger),
		logger:   logger,
	}, nil
}

// closeNode closes n, logging any error.
func closeNode(n *node) {
	if err := n.Close(); err != nil {
		n.logger.Error("error closing ledger", "error", err)
	}
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// commandError maps a domain error to an exit error.
func commandError(message string, err error) error {
	switch {
	case validate.IsRejected(err, ""),
		errors.Is(err, crud.ErrSingletonViolation),
		errors.Is(err, crud.ErrNotFound),
		errors.Is(err, crud.ErrDeleteForbidden),
		errors.Is(err, crud.ErrEntryTypeMismatch),
		errors.Is(err, project.ErrNoProjectMeta):
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
