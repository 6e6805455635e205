package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/neurodesk/mdtemplate/pkg/config"
	"github.com/neurodesk/mdtemplate/pkg/data"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/neurodesk/mdtemplate/pkg/netcache"
	"github.com/neurodesk/mdtemplate/pkg/store"
	"github.com/spf13/cobra"
)

const compiledExt = ".mdtemp"

var (
	configPath string
	verbose    bool
	fallback   string
)

// session is the state shared by all commands, built once the config file
// has been read.
type session struct {
	cfg    config.Config
	env    *mdtemplate.Environment
	logger *slog.Logger
	loader *data.Loader
	cache  *store.Store
}

var app session

var rootCmd = cobra.Command{
	Use:           "mdtemplate",
	Short:         "Render markdown templates against YAML or JSON data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.cache != nil {
			return app.cache.Close()
		}
		return nil
	},
}

func (s *session) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	case err != nil:
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("fallback") {
		cfg.Fallback = &fallback
	}

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(s.logger)

	if s.env, err = cfg.Environment(s.logger); err != nil {
		return err
	}
	s.cfg = cfg

	s.loader = &data.Loader{Stdin: cmd.InOrStdin()}
	if cfg.DataCache != "" {
		nc := netcache.New(cfg.DataCache)
		nc.Logger = s.logger
		s.loader.Cache = nc
	}
	if cfg.Cache != "" {
		if s.cache, err = store.Open(cfg.Cache); err != nil {
			return err
		}
		s.cache.Logger = s.logger
	}
	return nil
}

// parse compiles the template file at path, through the cache when one is
// configured.
func (s *session) parse(ctx context.Context, path string) (*mdtemplate.Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.env.Parse(string(src))
	}
	t, cached, err := s.cache.Parse(ctx, s.env, string(src))
	if err == nil {
		s.logger.Debug("template compiled", "path", path, "cached", cached)
	}
	return t, err
}

// render renders t, fail-soft when a fallback is configured.
func (s *session) render(ctx context.Context, t *mdtemplate.Template, data mdtemplate.Context) (string, error) {
	if s.cfg.Fallback != nil {
		out := t.RenderOrContext(ctx, data, *s.cfg.Fallback)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return out, nil
	}
	return t.RenderContext(ctx, data)
}

// writeOutput writes content to path atomically, or to stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewBufferString(content)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// compiledPath is the default output of compile: the source path with its
// extension replaced.
func compiledPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + compiledExt
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mdtemplate.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&fallback, "fallback", "", "Replace the whole output with this text when rendering fails")

	compileCmd.Flags().StringP("output", "o", "", "Output path (default: <template>"+compiledExt+")")
	rootCmd.AddCommand(&compileCmd)
	rootCmd.AddCommand(&applyCmd)
	rootCmd.AddCommand(&renderCmd)
	watchCmd.Flags().Duration("debounce", defaultDebounce, "Wait this long for changes to settle before rendering")
	rootCmd.AddCommand(&watchCmd)
	rootCmd.AddCommand(&replCmd)
	rootCmd.AddCommand(&filtersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
