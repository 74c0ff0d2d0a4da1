package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clarifai/internal/cache"
	"github.com/ppiankov/clarifai/internal/llm"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/util"
	"github.com/ppiankov/clarifai/internal/worker"
)

const version = "clarifai v0.1.0"

var (
	cfgFile string
	verbose bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clarifai",
	Short: "Clarifai - claim verification and bias detection for text",
	Long: `Clarifai reads a piece of text, extracts the factual claims it makes,
checks each claim against a language model or live web sources, looks
for biased phrasing, and writes a short report with a reliability index.

Results stream as they are produced: every finished step is sent to the
client as soon as its output is available.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.clarifai/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig seeds viper with the defaults, then reads the config file and CLARIFAI_* variables
func initConfig() {
	viper.SetConfigType("yaml")
	if defaults, err := yaml.Marshal(model.DefaultConfig()); err == nil {
		// Every key must be known to viper for env overrides to reach Unmarshal
		_ = viper.ReadConfig(bytes.NewReader(defaults))
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".clarifai"))
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CLARIFAI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Optional keys are left out of the marshalled defaults
	for _, key := range []string{"llm.api_key", "llm.base_url", "server.allowed_origin", "web.http_proxy", "web.https_proxy", "web.no_proxy"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

// loadConfig merges defaults, config file, environment and provider keys
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai", "":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Cache.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Cache.Dir = filepath.Join(home, ".clarifai", "cache")
		}
	}
	return cfg, nil
}

func newLogger(cfg model.LogConfig, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if !cfg.JSON {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

// newModelClient builds the provider client with logging, rate limiting and optional caching
func newModelClient(cfg *model.Config) (llm.Client, error) {
	httpClient := util.NewHTTPClient(time.Duration(cfg.LLM.Timeout)*time.Second,
		cfg.Web.HTTPProxy, cfg.Web.HTTPSProxy, cfg.Web.NoProxy)

	base, err := llm.NewClient(cfg.LLM, httpClient)
	if err != nil {
		return nil, err
	}

	mws := []llm.Middleware{llm.WithLogging(logger)}
	if cfg.Cache.Enabled {
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		mws = append(mws, llm.WithCache(c, cfg.Cache.DiskTTL))
	}
	if cfg.LLM.RequestsPerSecond > 0 {
		mws = append(mws, llm.WithRateLimit(worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)))
	}
	return llm.Wrap(base, mws...), nil
}
