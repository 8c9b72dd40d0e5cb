package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/mvgeo/internal/config"
	"github.com/MeKo-Tech/mvgeo/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mvgeo",
	Short: "Multi-view geometry estimation from point correspondences",
	Long: `Multi-view geometry estimation: mvgeo computes the algebraic relations
between two or three views of a scene from matched observations:

- fundamental and essential matrices from point pairs (normalized 8-point)
- plane induced homographies from point pairs, refined and sign adjusted
- trifocal tensors from point triples with epipolar constraint enforcement

Correspondences are read from JSON, YAML or CSV files. Results are written
as text, JSON or YAML. The same estimators are available as an HTTP API.

Examples:
  mvgeo fundamental pairs.json
  mvgeo fundamental pairs.yaml --essential --format json
  mvgeo homography plane.csv --line
  mvgeo trifocal triples.json --plot residuals.png
  mvgeo batch data/ --recursive --workers 4
  mvgeo serve --port 8080
  mvgeo benchmark --sizes 20,500`,
	Version:      version.String(),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate("mvgeo version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/mvgeo, /etc/mvgeo)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")

	// Estimation and output settings shared by every estimating command
	pf.Float64("rank-tolerance", 0, "relative singular value threshold for the effective rank (default from config)")
	pf.Bool("normalize", true, "apply Hartley normalization before the linear fit")
	pf.StringP("format", "f", "text", "output format: text, json, yaml")
	pf.StringP("output", "o", "", "output file (default: stdout)")
	pf.Int("precision", 6, "number of decimals in text output")

	bindPersistentFlags()

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		slog.SetDefault(GetConfig().NewLogger(cmd.ErrOrStderr()))
	}
}

// bindPersistentFlags binds the global flags to their config keys.
func bindPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log_file", pf.Lookup("log-file"))
	_ = viper.BindPFlag("estimation.normalize", pf.Lookup("normalize"))
	_ = viper.BindPFlag("output.format", pf.Lookup("format"))
	_ = viper.BindPFlag("output.file", pf.Lookup("output"))
	_ = viper.BindPFlag("output.precision", pf.Lookup("precision"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration with CLI flag overrides applied.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flags are bound after the first load, so unmarshal again.
	loader := GetConfigLoader()
	var cfg config.Config
	if err := loader.GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}

	// A zero tolerance means "keep the configured one".
	if f := rootCmd.PersistentFlags().Lookup("rank-tolerance"); f != nil && f.Changed {
		cfg.Estimation.RankTolerance, _ = rootCmd.PersistentFlags().GetFloat64("rank-tolerance")
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
