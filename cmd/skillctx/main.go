// Command skillctx is the operational surface around the skill selection
// engine: corpus inspection and validation, one-shot selection, and the
// long-running API server with corpus auto-reload.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/mcp"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/telemetry"
	"github.com/opus67/skillctx/pkg/version"
)

func init() {
	viper.SetEnvPrefix("SKILLCTX")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillctx")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetDefault("weights.keyword", 3.0)
	viper.SetDefault("weights.file_type", 2.0)
	viper.SetDefault("weights.directory", 1.0)
	viper.SetDefault("cache_size", 256)
	viper.SetDefault("token_budget", 24000)
	viper.SetDefault("mcp.probe_timeout", "5s")
}

var rootCmd = &cobra.Command{
	Use:   "skillctx",
	Short: "Skill selection and context budgeting for AI coding assistants",
	Long: `skillctx loads a corpus of skill documents and selects which ones to
inject into an assistant's context window for a given request, respecting
per-skill token cost, tier priority, related-skill requirements, and MCP
connection availability.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if level := viper.GetString("log_level"); level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				return err
			}
		}
		if format := viper.GetString("log_format"); format != "" {
			logger.SetLogFormat(format)
		}
		return nil
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringSlice("skill-dirs", nil, "Directories to load skill markdown files from")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text or json)")
	_ = viper.BindPFlag("skill_dirs", rootCmd.PersistentFlags().Lookup("skill-dirs"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRegistry builds and loads a registry from configuration.
func newRegistry(ctx context.Context) (*registry.Registry, *registry.LoadReport, error) {
	opts := []registry.Option{}
	if dirs := viper.GetStringSlice("skill_dirs"); len(dirs) > 0 {
		opts = append(opts, registry.WithDirs(dirs...))
	} else {
		opts = append(opts, registry.WithDefaultDirs())
	}
	if viper.GetBool("estimate_costs") {
		est, err := registry.NewTiktokenEstimator()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, registry.WithCostEstimator(est))
	}

	reg, err := registry.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	report, err := reg.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reg, report, nil
}

func newEngine(reg *registry.Registry) (*engine.Engine, error) {
	weights := matcher.Weights{
		Keyword:   viper.GetFloat64("weights.keyword"),
		FileType:  viper.GetFloat64("weights.file_type"),
		Directory: viper.GetFloat64("weights.directory"),
	}
	return engine.New(reg,
		engine.WithWeights(weights),
		engine.WithCacheSize(viper.GetInt("cache_size")),
	)
}

func newProber() (*mcp.Prober, error) {
	servers := map[string]mcp.ServerConfig{}
	if err := viper.UnmarshalKey("mcp.servers", &servers); err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, nil
	}
	timeout := viper.GetDuration("mcp.probe_timeout")
	return mcp.NewProber(servers, timeout), nil
}

func initTracing(ctx context.Context) (func(context.Context) error, error) {
	return telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "skillctx",
		ServiceVersion: version.Version,
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	})
}

func shutdownTracing(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to shut down tracing")
	}
}
