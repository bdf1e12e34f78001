package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/campusfind/internal/analysis"
	"github.com/zombor/campusfind/internal/item"
	"github.com/zombor/campusfind/internal/server"
	"github.com/zombor/campusfind/internal/session"
	"github.com/zombor/campusfind/internal/submission"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("campusfind")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbDriver      = fs.StringLong("db-driver", "bolt", "Item store: 'bolt' or 'mongo'")
		dbPath        = fs.StringLong("db", "campusfind.db", "BoltDB file path")
		mongoURI      = fs.StringLong("mongo-uri", "", "MongoDB connection string")
		mongoDatabase = fs.StringLong("mongo-db", "campusfind", "MongoDB database name")
		storageType   = fs.StringLong("storage", "local", "Original upload storage: 'local' or 's3'")
		storagePath   = fs.StringLong("storage-path", "./originals", "Local storage directory path")
		s3Bucket      = fs.StringLong("s3-bucket", "", "S3 bucket for original uploads")
		s3Prefix      = fs.StringLong("s3-prefix", "originals", "S3 key prefix for original uploads")
		analyzerType  = fs.StringLong("analyzer", "gemini", "Image analysis: 'gemini', 'ollama' or 'none'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY / API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl, bakllava)")
		sessionSecret = fs.StringLong("session-secret", "", "Secret for signing session tokens (random if empty)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CAMPUSFIND"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Starting CampusFind", "version", version)

	// Initialize database
	var db item.DB
	var err error
	switch *dbDriver {
	case "bolt":
		slog.Info("Initializing database...", "driver", "bolt", "path", *dbPath)
		db, err = item.NewBoltDB(*dbPath)
	case "mongo":
		slog.Info("Initializing database...", "driver", "mongo", "database", *mongoDatabase)
		db, err = item.NewMongoDB(*mongoURI, *mongoDatabase)
	default:
		slog.Error("Invalid database driver", "driver", *dbDriver, "valid", "bolt or mongo")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := item.NewStore(db, item.SeedItems(time.Now()))
	items, err := store.Load()
	if err != nil {
		slog.Error("Failed to load items", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded items", "count", len(items))

	// Initialize storage
	var storage item.Storage
	switch *storageType {
	case "local":
		slog.Info("Initializing storage...", "type", "local", "path", *storagePath)
		storage, err = item.NewLocalStorage(*storagePath)
	case "s3":
		slog.Info("Initializing storage...", "type", "s3", "bucket", *s3Bucket, "prefix", *s3Prefix)
		storage, err = item.NewS3Storage(*s3Bucket, *s3Prefix)
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "local or s3")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize analyzer. A missing credential is not fatal: uploads fall
	// back to manual entry.
	var analyzer analysis.Analyzer
	switch *analyzerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			apiKey = os.Getenv("API_KEY")
		}
		slog.Info("Initializing Gemini analyzer...", "model", *geminiModel)
		analyzer, err = analysis.NewGemini(apiKey, *geminiModel)
		if errors.Is(err, analysis.ErrMissingCredential) {
			slog.Warn("Gemini API key not set, image analysis disabled. Set --gemini-key or GEMINI_API_KEY")
			analyzer, err = nil, nil
		}
	case "ollama":
		slog.Info("Initializing Ollama analyzer...", "url", *ollamaURL, "model", *ollamaModel)
		analyzer, err = analysis.NewOllama(*ollamaURL, *ollamaModel)
	case "none":
		slog.Info("Image analysis disabled")
	default:
		slog.Error("Invalid analyzer type", "type", *analyzerType, "valid", "gemini, ollama or none")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	analysisClient := analysis.NewClient(analyzer)
	defer analysisClient.Close()

	sessions, err := session.NewIssuer(*sessionSecret)
	if err != nil {
		slog.Error("Failed to initialize sessions", "error", err)
		os.Exit(1)
	}
	if *sessionSecret == "" {
		slog.Warn("No session secret configured, sessions will not survive a restart")
	}

	itemService := item.NewService(store, storage)
	workflow := submission.NewWorkflow(analysisClient, itemService)

	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := server.NewServer(itemService, workflow, sessions, basicAuth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := srv.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
