package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	storePath string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimsense",
	Short: "ClaimSense - Medical claim validation and queue routing",
	Long: `ClaimSense evaluates extracted medical-claim data against billing and
compliance rules and routes every claim to a review queue:

  CriticalErrors   at least one Critical finding
  WarningsOnly     Warning findings but no Critical ones
  ApprovedClaims   nothing above Info

Routing is deterministic. Optional LLM reviewer notes never change a
finding or a queue.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("claimsense " + version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimsense/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "claim database path (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envKeys are settings overridable from CLAIMSENSE_* variables without appearing in a config file
var envKeys = []string{
	"store.path",
	"logging.level",
	"logging.format",
	"analytics.timezone",
	"concurrency.workers",
	"rate_limiting.requests_per_second",
	"llm.provider",
	"llm.model",
	"llm.base_url",
	"baseline.file",
	"baseline.from_history",
	"cache.dir",
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".claimsense"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CLAIMSENSE_*
	viper.SetEnvPrefix("CLAIMSENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	// The API key is only ever read from the environment
	_ = viper.BindEnv("llm.api_key", "CLAIMSENSE_LLM_API_KEY", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers viper's view over the built-in defaults, then applies flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openPipeline loads the configuration and builds the pipeline the commands share
func openPipeline() (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	p, err := openPipelineWith(cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

func openPipelineWith(cfg *model.Config) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, logging.New(cfg.Logging))
}

func printBanner(title string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
}
