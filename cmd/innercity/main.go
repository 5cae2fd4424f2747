package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/config"
	"github.com/tatianab/inner-city/internal/engine"
	"github.com/tatianab/inner-city/internal/logging"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
	"github.com/tatianab/inner-city/internal/tui"
)

var (
	// Global flags
	baseURL   string
	verbose   bool
	logToFile bool
	limit     int

	cfg    *config.Config
	logger *zap.Logger
	eng    *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:   "innercity",
	Short: "Inner City: a terminal client for the self-reflection city",
	Long: `Inner City keeps a map of districts that light up as you reflect,
a dialog with the agent Aira, small breathing and grounding exercises,
and a collection of cards bought with Effort.

Run without arguments to open the interactive client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// The interactive client owns the terminal, so it always logs to a file.
		output := cfg.LogFile
		if cmd != cmd.Root() && !logToFile {
			output = "stderr"
		}
		logger, err = logging.New(logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Output: output})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		book, err := models.OpenAchievements(cfg.DataDir)
		if err != nil {
			logger.Warn("achievements unavailable", zap.String("dir", cfg.DataDir), zap.Error(err))
		}
		client := api.NewClient(cfg.BaseURL, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(logger))
		eng = engine.New(store.New(), client,
			engine.WithLogger(logger),
			engine.WithAchievements(book),
			engine.WithTransitionDelay(cfg.TransitionDelay),
			engine.WithHistoryLimit(cfg.HistoryLimit),
		)
		logger.Debug("client configured", zap.String("base_url", cfg.BaseURL), zap.String("data_dir", cfg.DataDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eng != nil {
			eng.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(cmd.Context(), eng, logger)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print progress, districts and cards once",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := eng.Sync(cmd.Context())
		st := eng.Store().Snapshot()
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderMap(st))
		if st.Notice != nil && st.Notice.Error {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.RenderNotice(st.Notice))
		}
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent sessions and the agent's notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.LoadHistory(cmd.Context(), limit); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderHistory(eng.Store().Snapshot().History))
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Ask the server to persist progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return eng.Save(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend URL (overrides INNERCITY_BASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "log to the configured file even for one-shot commands")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of sessions (default from config)")

	rootCmd.AddCommand(statusCmd, historyCmd, saveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
