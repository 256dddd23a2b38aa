package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"opineeo/survey-widget/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var AppName = "no-app-name"

var Version = "no-version"

var BuildTime = "no-build-time"

var CommitHash = "no-commit-hash"

var Environment = "no-env"

// flags holds the persistent command line overrides.
type flags struct {
	configFile string
	debug      bool
	host       string
	port       string
	surveyDir  string
}

func main() {
	AppName = os.Getenv("APP_NAME")
	if AppName == "" {
		AppName = "opineeo"
	}

	if BuildTime == "no-build-time" {
		now := time.Now()
		BuildTime = "not provided (now: " + now.Format(time.RFC3339) + ")"
	}

	Environment = os.Getenv("ENV")
	if Environment == "" {
		Environment = "no-env"
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "opineeo",
		Short:        "Survey widget host, reference survey API and renderer",
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&f.configFile, "config", "", "path to a yaml config file (overrides CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "enable development logging")
	root.PersistentFlags().StringVar(&f.host, "host", "", "listen host")
	root.PersistentFlags().StringVar(&f.port, "port", "", "listen port")
	root.PersistentFlags().StringVar(&f.surveyDir, "surveys", "", "directory of survey definitions served by the survey api")

	root.AddCommand(
		newServeCommand(f),
		newAPICommand(f),
		newRenderCommand(),
	)
	return root
}

func appMetadata() []zap.Field {
	return []zap.Field{
		zap.String("app_name", AppName),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit_hash", CommitHash),
		zap.String("environment", Environment),
	}
}

// loadConfig applies the command line on top of every other config source
// and exits with a banner when the result is unusable.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, *zap.Logger) {
	if f.configFile != "" {
		_ = os.Setenv("CONFIG_FILE", f.configFile)
	}

	cfg, cfgLog := config.Load(func(c *config.Config) {
		changed := cmd.Flags().Changed
		if changed("debug") {
			c.Debug = f.debug
		}
		if changed("host") {
			c.Host = f.host
		}
		if changed("port") {
			c.Port = f.port
		}
		if changed("surveys") {
			c.SurveyDir = f.surveyDir
		}
	})

	err := cfg.Validate()
	if err != nil {
		switch {
		case errors.Is(err, config.ErrAPIBaseURLRequired), errors.Is(err, config.ErrInvalidAPIBaseURL):
			title := "Survey API base URL is missing or invalid"
			message := "Please set the API_BASE_URL environment variable or provide a config file with the api_base_url key, e.g. https://app.opineeo.com/api/survey/v0."
			log.Fatal(EarlyApplicationFailed(title, message))
		case errors.Is(err, config.ErrAPITokensRequired):
			title := "API tokens are required"
			message := "The survey api is enabled by SURVEY_DIR. Please set API_TOKENS to a comma separated list of bearer tokens accepted by the api."
			log.Fatal(EarlyApplicationFailed(title, message))
		default:
			log.Fatalf("Failed to validate config: %v, exiting...", err)
		}
	}

	logger, err := initLogger(&cfg, appMetadata())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v, exiting...", err)
	}

	cfgLog.FlushToZap(logger)

	if cfg.Secret == config.DefaultSecret && !cfg.Debug {
		logger.Warn("Default secret detected in production environment, replace it with a secure random string")
		cfg.Secret = uuid.New().String()
	}

	return cfg, logger
}

func EarlyApplicationFailed(title, action string) string {
	result := `
-----------------------------------------
Application Failed to Start
-----------------------------------------

# What's wrong?
%s

# How to fix it?
%s

`

	result = fmt.Sprintf(result, title, action)
	return result
}
