package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/speechcare/analysis-service/config"
)

var (
	cfgFile   string
	serverURL string
	cfg       *config.Config
	logger    *zerolog.Logger
	client    *http.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "analysis-service",
	Short: "Analysis Service CLI - speech analysis task tool",
	Long: `A CLI tool for submitting audio and video recordings to a running
analysis service and polling task state. Uploads are admitted under a
caller-supplied task identifier; status, result, and list commands read
back task state over the same HTTP API the service exposes to clients.`,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "base URL of the analysis service (default http://localhost:10000)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional; commands only need a reachable server.
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	if serverURL == "" {
		if cfg != nil {
			serverURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		} else {
			serverURL = "http://localhost:10000"
		}
	}

	client = &http.Client{Timeout: 2 * time.Minute}

	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// Always use console format for CLI
	noColor := false
	if cfg != nil {
		noColor = cfg.Logging.NoColor
	}
	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
