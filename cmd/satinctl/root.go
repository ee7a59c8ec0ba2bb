package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/di/providers"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/search"
	"github.com/ilbumi/satin/internal/service"
	"github.com/ilbumi/satin/internal/store"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "satinctl",
	Short: "Maintenance tool for Satin data directories",
	Long: `satinctl works directly on the store and search index of a Satin server.

It reads the server configuration (YAML file, SATIN_* environment variables
and .env) to locate the data directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store activity to stderr")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(genKeyCmd)
	rootCmd.AddCommand(hashKeyCmd)
	rootCmd.AddCommand(openapiCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "satinctl %s\n", providers.Version)
	},
}

func loadConfig() (*config.Config, error) {
	var args []string
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return config.Load(args)
}

func newLogger(cfg *config.Config) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return logger.New(logger.Config{
		Writer:      os.Stderr,
		Format:      "pretty",
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	}).Logger
}

// stack is the store and search layer opened outside the server.
type stack struct {
	cfg    *config.Config
	logger *slog.Logger
	repos  *store.Repositories
	index  *search.SearchIndex
	search *service.SearchService
}

// openStack opens the configured store. The search index is opened only
// when withIndex is set.
func openStack(withIndex bool) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	backend, err := providers.OpenBackend(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &stack{
		cfg:    cfg,
		logger: log,
		repos:  store.NewRepositories(backend, nil, log),
	}

	if withIndex {
		s.index, err = search.NewSearchIndex(search.Options{
			Path:     cfg.Search.Path,
			InMemory: cfg.Search.InMemory,
			Logger:   log,
		})
		if err != nil {
			_ = s.repos.Close()
			return nil, fmt.Errorf("open search index: %w", err)
		}
		s.search = service.NewSearchService(s.index, s.repos, log)
	}
	return s, nil
}

// deps returns service dependencies that keep the search index current when
// it is open.
func (s *stack) deps() service.Deps {
	deps := service.Deps{Logger: s.logger}
	if s.search != nil {
		deps.Indexer = s.search
	}
	return deps
}

func (s *stack) Close() {
	if s.index != nil {
		_ = s.index.Close()
	}
	_ = s.repos.Close()
}
