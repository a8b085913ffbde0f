package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/aria/pkg/adapter"
	"github.com/m-mizutani/aria/pkg/repository"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	configPath string
	logLevel   string

	// Storage
	storage           string
	dataDir           string
	mongoURI          string
	mongoDatabase     string
	firestoreProject  string
	firestoreDatabase string

	// Gateways
	serpAPIKey      string
	serpAPIBaseURL  string
	geminiProject   string
	geminiLocation  string
	geminiModel     string
	searchTimeout   time.Duration
	generateTimeout time.Duration
	historyWindow   int64
}

// storageFlags returns flags for storage backend selection with destination config
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to YAML config file supplying defaults",
			Sources:     cli.EnvVars("ARIA_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ARIA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "storage",
			Usage:       "Storage backend (memory, file, firestore, mongo; default memory)",
			Sources:     cli.EnvVars("ARIA_STORAGE"),
			Destination: &cfg.storage,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Data directory for file storage (default data)",
			Sources:     cli.EnvVars("ARIA_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "mongo-uri",
			Usage:       "MongoDB connection URI (default mongodb://localhost:27017)",
			Sources:     cli.EnvVars("MONGO_URI"),
			Destination: &cfg.mongoURI,
		},
		&cli.StringFlag{
			Name:        "mongo-database",
			Usage:       "MongoDB database name (default aria_db)",
			Sources:     cli.EnvVars("MONGO_DB_NAME"),
			Destination: &cfg.mongoDatabase,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID (default (default))",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

// gatewayFlags returns flags for search and LLM gateway configuration with
// destination config
func gatewayFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "serpapi-key",
			Usage:       "SerpAPI key for Google Scholar search",
			Sources:     cli.EnvVars("SERPAPI_KEY"),
			Destination: &cfg.serpAPIKey,
		},
		&cli.StringFlag{
			Name:        "serpapi-base-url",
			Usage:       "Override the SerpAPI endpoint",
			Sources:     cli.EnvVars("SERPAPI_BASE_URL"),
			Destination: &cfg.serpAPIBaseURL,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini (default us-central1)",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for synthesis and chat",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.DurationFlag{
			Name:        "search-timeout",
			Usage:       "Timeout for one search call",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("ARIA_SEARCH_TIMEOUT"),
			Destination: &cfg.searchTimeout,
		},
		&cli.DurationFlag{
			Name:        "generate-timeout",
			Usage:       "Timeout for one model call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("ARIA_GENERATE_TIMEOUT"),
			Destination: &cfg.generateTimeout,
		},
		&cli.IntFlag{
			Name:        "history-window",
			Usage:       "Recent conversation turns included in chat context",
			Value:       int64(chat.DefaultHistoryWindow),
			Sources:     cli.EnvVars("ARIA_HISTORY_WINDOW"),
			Destination: &cfg.historyWindow,
		},
	}
}

// fileConfig mirrors the optional YAML config file. File values fill only
// fields that flags and environment variables left empty.
type fileConfig struct {
	Storage struct {
		Kind              string `yaml:"kind"`
		DataDir           string `yaml:"data_dir"`
		MongoURI          string `yaml:"mongo_uri"`
		MongoDatabase     string `yaml:"mongo_database"`
		FirestoreProject  string `yaml:"firestore_project"`
		FirestoreDatabase string `yaml:"firestore_database"`
	} `yaml:"storage"`
	SerpAPI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"serpapi"`
	Gemini struct {
		Project  string `yaml:"project"`
		Location string `yaml:"location"`
		Model    string `yaml:"model"`
	} `yaml:"gemini"`
}

// configure loads the optional config file and installs the default logger.
// Every command action calls it before building dependencies.
func (cfg *config) configure() error {
	if cfg.configPath != "" {
		data, err := os.ReadFile(cfg.configPath)
		if err != nil {
			return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
		}

		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
		}

		fillEmpty(&cfg.storage, fc.Storage.Kind)
		fillEmpty(&cfg.dataDir, fc.Storage.DataDir)
		fillEmpty(&cfg.mongoURI, fc.Storage.MongoURI)
		fillEmpty(&cfg.mongoDatabase, fc.Storage.MongoDatabase)
		fillEmpty(&cfg.firestoreProject, fc.Storage.FirestoreProject)
		fillEmpty(&cfg.firestoreDatabase, fc.Storage.FirestoreDatabase)
		fillEmpty(&cfg.serpAPIKey, fc.SerpAPI.APIKey)
		fillEmpty(&cfg.serpAPIBaseURL, fc.SerpAPI.BaseURL)
		fillEmpty(&cfg.geminiProject, fc.Gemini.Project)
		fillEmpty(&cfg.geminiLocation, fc.Gemini.Location)
		fillEmpty(&cfg.geminiModel, fc.Gemini.Model)
	}

	// Flags and environment win over the file, the file over built-ins
	fillEmpty(&cfg.storage, "memory")
	fillEmpty(&cfg.dataDir, "data")
	fillEmpty(&cfg.mongoURI, "mongodb://localhost:27017")
	fillEmpty(&cfg.mongoDatabase, "aria_db")
	fillEmpty(&cfg.firestoreDatabase, "(default)")
	fillEmpty(&cfg.geminiLocation, "us-central1")

	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
	return nil
}

func fillEmpty(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

// newRepository creates the storage backend selected by configuration
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.storage {
	case "memory":
		return repository.NewMemory(), nil

	case "file":
		if cfg.dataDir == "" {
			return nil, goerr.New("data-dir is required for file storage")
		}
		repo, err := repository.NewFile(cfg.dataDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open file storage")
		}
		return repo, nil

	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required for firestore storage")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to connect to firestore")
		}
		return repo, nil

	case "mongo":
		repo, err := repository.NewMongo(ctx, cfg.mongoURI, cfg.mongoDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to connect to mongodb")
		}
		return repo, nil

	default:
		return nil, goerr.New("unknown storage kind", goerr.V("storage", cfg.storage))
	}
}

// newSearch creates the search gateway instance
func (cfg *config) newSearch() (adapter.SearchClient, error) {
	if cfg.serpAPIKey == "" {
		return nil, goerr.New("serpapi-key is required")
	}

	var opts []adapter.SerpAPIOption
	if cfg.serpAPIBaseURL != "" {
		opts = append(opts, adapter.WithSerpAPIBaseURL(cfg.serpAPIBaseURL))
	}
	return adapter.NewSerpAPI(cfg.serpAPIKey, opts...), nil
}

// newGemini creates the model gateway instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}

	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

// researchOptions returns usecase options derived from configuration
func (cfg *config) researchOptions() []research.Option {
	return []research.Option{
		research.WithSearchTimeout(cfg.searchTimeout),
		research.WithGenerateTimeout(cfg.generateTimeout),
	}
}

// chatOptions returns usecase options derived from configuration
func (cfg *config) chatOptions() []chat.Option {
	return []chat.Option{
		chat.WithChatTimeout(cfg.generateTimeout),
		chat.WithHistoryWindow(int(cfg.historyWindow)),
	}
}
