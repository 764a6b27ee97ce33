package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/config"
	"github.com/roach88/matchstick/internal/game"
	"github.com/roach88/matchstick/internal/notify"
	"github.com/roach88/matchstick/internal/persistence"
	"github.com/roach88/matchstick/internal/telemetry"
)

// session is a game bound to the save database for one command.
type session struct {
	game    *game.Game
	saves   *persistence.Store
	logger  *slog.Logger
	notes   *notify.Throttled
	metrics *telemetry.Metrics

	// recorded sees every notification, throttled or not.
	recorded *notify.Recorder
}

// sessionOptions tunes openSession for long-running commands.
type sessionOptions struct {
	autosave bool
	metrics  bool
}

// newLogger builds the process logger. --verbose forces debug; otherwise
// MATCHSTICK_LOG_LEVEL applies.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := o.Runtime.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens the save database.
func (o *RootOptions) openStore(logger *slog.Logger) (*persistence.Store, error) {
	logger.Debug("opening save database", "path", o.DB)
	saves, err := persistence.Open(o.DB, persistence.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open save database", err)
	}
	return saves, nil
}

// openSession loads the balance, opens the save database and builds the
// game. The latest save, if any, is loaded.
func (o *RootOptions) openSession(cmd *cobra.Command, so sessionOptions) (*session, error) {
	logger := o.newLogger(cmd.ErrOrStderr())

	balance, err := config.LoadFile(o.Balance)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load balance", err)
	}
	saves, err := o.openStore(logger)
	if err != nil {
		return nil, err
	}

	s := &session{
		saves:  saves,
		logger: logger,
		notes:  notify.NewThrottled(notify.SlogSink{Logger: logger}, o.Runtime.NotifyPerSecond, o.Runtime.NotifyBurst),

		recorded: &notify.Recorder{},
	}
	if so.metrics {
		s.metrics = telemetry.New()
	}
	gameOpts := game.Options{
		Balance:  balance,
		Saves:    saves,
		Logger:   logger,
		Notifier: notify.Multi{s.notes, s.recorded},
		Metrics:  s.metrics,
	}
	if so.autosave {
		gameOpts.AutosaveInterval = o.Runtime.AutosaveInterval
	}
	s.game = game.New(gameOpts)

	info, ok, err := s.game.LoadLatest(cmd.Context())
	switch {
	case err != nil:
		s.close()
		return nil, WrapExitError(ExitFailure, "failed to load latest save", err)
	case ok:
		logger.Info("save loaded", "id", info.ID, "name", info.Name)
	default:
		logger.Info("no saves found, starting a new game")
	}
	return s, nil
}

// persist writes an autosave of the current state.
func (s *session) persist(ctx context.Context) (persistence.Info, error) {
	info, err := s.game.Autosave(ctx)
	if err != nil {
		return persistence.Info{}, fmt.Errorf("autosave: %w", err)
	}
	return info, nil
}

func (s *session) close() {
	s.game.Close()
	if err := s.saves.Close(); err != nil {
		s.logger.Error("error closing save database", "error", err)
	}
}
