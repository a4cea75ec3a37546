package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/healthbook/healthbook/internal/api"
	"github.com/healthbook/healthbook/internal/assistant"
	"github.com/healthbook/healthbook/internal/emergency"
	"github.com/healthbook/healthbook/internal/extraction"
	"github.com/healthbook/healthbook/internal/genai"
	"github.com/healthbook/healthbook/internal/memory"
	"github.com/healthbook/healthbook/internal/messaging"
	"github.com/healthbook/healthbook/internal/models"
	"github.com/healthbook/healthbook/internal/report"
	"github.com/healthbook/healthbook/internal/storage"
	"github.com/healthbook/healthbook/internal/twiliowhatsapp"
	"github.com/healthbook/healthbook/internal/util"
	"github.com/healthbook/healthbook/internal/vectorstore"
	"github.com/healthbook/healthbook/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for HealthBook state data
	DefaultStateDir = "/var/lib/healthbook"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "healthbook.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	ai, err := buildGenAIClient(flags)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	store, err := buildVectorStore(flags)
	if err != nil {
		slog.Error("Failed to initialize vector store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// The embedding request dimension and the store schema dimension must
	// agree; a mismatch would corrupt every similarity ranking.
	if ai.Dimensions() != store.Dimensions() {
		slog.Error("Embedding dimension mismatch",
			"genai_dimensions", ai.Dimensions(), "store_dimensions", store.Dimensions())
		os.Exit(1)
	}

	mem, err := buildMemoryManager(ctx, flags)
	if err != nil {
		slog.Error("Failed to initialize conversation memory", "error", err)
		os.Exit(1)
	}

	uploader, err := storage.NewS3Service(ctx)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	msgService, media, err := buildMessaging(flags, uploader)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}
	defer msgService.Stop()

	bot := assistant.New(assistant.Deps{
		Messaging: msgService,
		AI:        ai,
		Extractor: extraction.NewExtractor(ai),
		Store:     store,
		Memory:    mem,
		Media:     media,
		Uploader:  uploader,
		Reports:   report.NewGenerator(*flags.stateDir),
		Emergency: emergency.NewService(),
	},
		assistant.WithMemoryWindow(*flags.memoryWindow),
		assistant.WithWorkers(*flags.workers),
	)

	server := api.NewServer(bot, api.WithAddr(*flags.apiAddr))

	slog.Info("Bootstrapping HealthBook with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr, "messaging_backend", *flags.backend,
		"redis_set", *flags.redisURL != "")
	if err := server.Run(); err != nil {
		slog.Error("HealthBook failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("HealthBook exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	Backend      string
	RedisURL     string
	MemoryWindow int
	Workers      int
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	backend      *string
	redisURL     *string
	memoryWindow *int
	workers      *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("HEALTHBOOK_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		Backend:      os.Getenv("MESSAGING_BACKEND"),
		RedisURL:     os.Getenv("REDIS_URL"),
		MemoryWindow: util.ParseIntEnv("MEMORY_WINDOW", models.DefaultMemoryWindow),
		Workers:      util.ParseIntEnv("WORKER_COUNT", assistant.DefaultWorkers),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HEALTHBOOK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.Backend == "" {
		config.Backend = "cloud"
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"HEALTHBOOK_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend,
		"REDIS_URL_SET", config.RedisURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "Directory for state data (reports, SQLite database)"),
		dbDSN:        flag.String("dsn", config.DatabaseURL, "Database DSN (postgres:// URL or SQLite file path)"),
		openaiKey:    flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		apiAddr:      flag.String("addr", config.APIAddr, "API server listen address"),
		backend:      flag.String("backend", config.Backend, "Messaging backend: cloud or twilio"),
		redisURL:     flag.String("redis-url", config.RedisURL, "Redis URL for conversation memory (empty for in-process)"),
		memoryWindow: flag.Int("memory-window", config.MemoryWindow, "Conversation turns included in prompts"),
		workers:      flag.Int("workers", config.Workers, "Maximum concurrent inference calls"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when missing
func ensureDirectoriesExist(flags Flags) error {
	return os.MkdirAll(*flags.stateDir, 0o755)
}

// buildGenAIClient constructs the GenAI client from flags
func buildGenAIClient(flags Flags) (*genai.Client, error) {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genai.NewClient(opts...)
}

// buildVectorStore selects the store backend from the DSN: Postgres URLs get
// the pgvector store, anything else is treated as a SQLite file path.
func buildVectorStore(flags Flags) (vectorstore.Store, error) {
	dsn := *flags.dbDSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		slog.Info("Using Postgres vector store")
		return vectorstore.NewPostgresStore(vectorstore.WithDSN(dsn))
	}
	slog.Info("Using SQLite vector store", "path", dsn)
	return vectorstore.NewSQLiteStore(vectorstore.WithDSN(dsn))
}

// buildMemoryManager selects Redis-backed or in-process conversation memory
func buildMemoryManager(ctx context.Context, flags Flags) (memory.Manager, error) {
	if *flags.redisURL != "" {
		slog.Info("Using Redis conversation memory")
		return memory.NewRedisManager(ctx, *flags.redisURL)
	}
	slog.Info("Using in-process conversation memory")
	return memory.NewInMemoryManager(), nil
}

// messagingService is the full surface main wires up, including shutdown.
type messagingService interface {
	messaging.Service
	Stop()
}

// buildMessaging constructs the messaging backend. The Cloud API client also
// serves as the inbound media fetcher; the Twilio backend has no media
// download surface, so inbound media still goes through the Cloud API client.
func buildMessaging(flags Flags, uploader *storage.S3Service) (messagingService, *whatsapp.Client, error) {
	waClient, err := whatsapp.NewClient()
	if err != nil {
		return nil, nil, err
	}

	switch *flags.backend {
	case "twilio":
		twClient, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTwilioService(twClient, uploader), waClient, nil
	default:
		return messaging.NewCloudService(waClient), waClient, nil
	}
}
