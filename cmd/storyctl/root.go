package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"novel-graph-api/internal/application/record"
	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/config"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/internal/wire"
	"novel-graph-api/pkg/logger"
)

// globalOptions 全局参数
type globalOptions struct {
	configDir  string
	driver     string
	sqlitePath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Import analyzed stories into the narrative graph",
		Long: `storyctl imports analyzed story bundles and loose entity records into the
narrative graph store, classifies records, and manages the schema.

Examples:
  storyctl migrate
  storyctl import story bundle.yaml
  storyctl import entities records.json --story-id 6f1c...
  storyctl classify record.json
  storyctl records list characters --story-id 6f1c...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			logger.InitWithWriter(opts.logLevel, "text", cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", config.DefaultConfigDir, "Directory containing config.yaml")
	flags.StringVar(&opts.driver, "driver", "", "Override database driver (postgres, sqlite)")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "Override SQLite database path")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newImportCmd(opts),
		newClassifyCmd(),
		newMigrateCmd(opts),
		newTablesCmd(),
		newRecordsCmd(opts),
	)
	return root
}

// loadConfig 加载配置并应用命令行覆盖
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(o.configDir)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.sqlitePath != "" {
		cfg.Database.SQLite.Path = o.sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// services 命令使用的存储与应用服务
type services struct {
	backend  repository.Backend
	importer *storyimport.Importer
	records  *record.Service
}

func (o *globalOptions) open(ctx context.Context) (*services, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	backend, cleanup, err := wire.InitializeBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return &services{
		backend:  backend,
		importer: storyimport.NewImporter(backend),
		records:  record.NewService(backend),
	}, cleanup, nil
}

// readInput 读取文件，"-" 表示标准输入
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
