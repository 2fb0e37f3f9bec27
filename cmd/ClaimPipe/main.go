package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MedLedger/ClaimPipe/internal/api"
	"github.com/MedLedger/ClaimPipe/internal/exceptions"
	"github.com/MedLedger/ClaimPipe/internal/fraud"
	"github.com/MedLedger/ClaimPipe/internal/genai"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/util"
	"github.com/MedLedger/ClaimPipe/internal/workflow"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ClaimPipe state data
	DefaultStateDir = "/var/lib/claimpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "claimpipe.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build the storage backend
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build the GenAI client; processing falls back to deterministic logic without one
	llm := buildGenAIClient(flags)

	// Wire services and the workflow engine
	fraudSvc := fraud.NewService(st)
	exceptionSvc := exceptions.NewService(st)

	registry := workflow.NewToolRegistry()
	toolset := workflow.NewToolset(st, fraudSvc)
	if err := toolset.RegisterAll(registry); err != nil {
		slog.Error("Failed to register workflow tools", "error", err)
		os.Exit(1)
	}

	var engineOpts []workflow.EngineOption
	if llm != nil {
		engineOpts = append(engineOpts, workflow.WithGenAIClient(llm))
	}
	engine := workflow.NewEngine(registry, engineOpts...)

	server := api.NewServer(st, engine, fraudSvc, exceptionSvc, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ClaimPipe with configured modules")
	if err := server.Run(ctx); err != nil {
		slog.Error("ClaimPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ClaimPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	OpenAIModel string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	apiAddr     *string
}

// initializeLogger sets up structured logging. Debug level is the default;
// set CLAIMPIPE_DEBUG=false to quiet it down to info.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CLAIMPIPE_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    util.GetEnvOrDefault("CLAIMPIPE_STATE_DIR", DefaultStateDir),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CLAIMPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for ClaimPipe data (overrides $CLAIMPIPE_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the claim store (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"openaiModel", *flags.openaiModel,
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory when the DSN was left at its default
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore selects and initializes the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildGenAIClient creates the GenAI client when an API key is configured.
func buildGenAIClient(flags Flags) genai.ClientInterface {
	if *flags.openaiKey == "" {
		slog.Warn("OPENAI_API_KEY not set, claims will be processed with deterministic fallback")
		return nil
	}
	opts := []genai.Option{genai.WithAPIKey(*flags.openaiKey)}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Error("Failed to create GenAI client, using deterministic fallback", "error", err)
		return nil
	}
	return client
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
