package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/game"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Duration    time.Duration // stop after this long; 0 runs until interrupted
	Clicks      int           // manual clicks per second performed by the session
	MetricsAddr string        // serve Prometheus metrics here when set
	Fresh       bool          // start a new game instead of loading the latest save
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run a headless game session",
		Long: `Run the simulation headlessly.

The session loads the latest save, starts the market, automation and
autosave loops and runs until interrupted or until --duration elapses.
A final autosave is written on shutdown.

Example:
  matchstick play --duration 10m --clicks 3
  matchstick play --metrics-addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this duration (0 runs until interrupted)")
	cmd.Flags().IntVar(&opts.Clicks, "clicks", 0, "manual clicks per second")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default $MATCHSTICK_METRICS_ADDR)")
	cmd.Flags().BoolVar(&opts.Fresh, "new", false, "start a new game instead of loading the latest save")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	if opts.Duration < 0 {
		return NewExitError(ExitCommandError, "--duration must not be negative")
	}
	if opts.Clicks < 0 {
		return NewExitError(ExitCommandError, "--clicks must not be negative")
	}
	addr := opts.MetricsAddr
	if addr == "" {
		addr = opts.Runtime.MetricsAddr
	}

	s, err := opts.openSession(cmd, sessionOptions{autosave: true, metrics: addr != ""})
	if err != nil {
		return err
	}
	defer s.close()
	logger := s.logger

	if opts.Fresh {
		s.game.NewGame()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(s), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	if err := s.game.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start game", err)
	}
	if opts.Clicks > 0 {
		clicks := opts.Clicks
		s.game.Scheduler().Every("session.clicks", time.Second, func() {
			if _, err := s.game.Production().Produce(clicks); err != nil {
				logger.Warn("session click failed", "error", err)
			}
		})
	}

	logger.Info("session started", "db", opts.DB, "duration", opts.Duration, "clicks", opts.Clicks)
	fmt.Fprintln(cmd.ErrOrStderr(), "Session running. Press Ctrl-C to stop.")

	<-ctx.Done()
	s.game.Stop()

	info, err := s.persist(context.Background())
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, "failed to save on shutdown", err)
	}
	if err := s.saves.SetMeta(context.Background(), "last_session_end", info.CreatedAt.Format(time.RFC3339)); err != nil {
		logger.Warn("failed to record session end", "error", err)
	}
	if n := s.notes.Dropped(); n > 0 {
		logger.Debug("notifications throttled", "dropped", n)
	}
	logger.Info("session stopped gracefully", "save", info.ID)

	return opts.formatter(cmd).Success(statusView(s.game.Summary()))
}

func metricsMux(s *session) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// statusView renders a game summary.
type statusView game.Summary

// WriteText implements TextWriter.
func (v statusView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Phase:        %d\n", v.Phase)
	fmt.Fprintf(w, "Matchsticks:  %s\n", v.Matchsticks)
	fmt.Fprintf(w, "Money:        $%.2f\n", v.Money)
	price := fmt.Sprintf("$%.4f", v.Price)
	if v.Condition != "" {
		price += " (" + v.Condition + ")"
	}
	fmt.Fprintf(w, "Price:        %s, trend %s\n", price, v.Analysis.Trend)
	fmt.Fprintf(w, "Automation:   %d clicker levels, %d facilities\n", v.AutoClickers, v.Facilities)
	fmt.Fprintf(w, "Achievements: %d (%d points)\n", v.Achievements, v.Points)
	fmt.Fprintf(w, "Lifetime:     %s produced, %s sold\n", v.TotalProduced, v.TotalSold)
}
