package secsearch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/secsearch/chunk"
	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/source/edgar"
	"github.com/flarexio/secsearch/vector"
)

type Config struct {
	Embedding embedding.Config `yaml:"embedding"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Vector    vector.Config    `yaml:"vector"`
	Registry  registry.Config  `yaml:"registry"`
	Search    SearchConfig     `yaml:"search"`
	EDGAR     edgar.Config     `yaml:"edgar"`
	Log       LogConfig        `yaml:"log"`
}

type ChunkingConfig struct {
	TokenLimit int `yaml:"token_limit"`
}

type SearchConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.0
)

func DefaultConfig() Config {
	return Config{
		Embedding: embedding.DefaultConfig(),
		Chunking: ChunkingConfig{
			TokenLimit: chunk.DefaultTokenLimit,
		},
		Vector: vector.Config{
			Persistent: true,
			Path:       "./data/chroma_db",
			Collection: vector.DefaultCollection,
		},
		Registry: registry.Config{
			Path:       "./data/metadata.sqlite",
			MaxFilings: registry.DefaultMaxFilings,
		},
		Search: SearchConfig{
			TopK:          DefaultTopK,
			MinSimilarity: DefaultMinSimilarity,
		},
		EDGAR: edgar.Config{
			BaseURL:   edgar.DefaultBaseURL,
			DataURL:   edgar.DefaultDataURL,
			RateLimit: edgar.DefaultRateLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, loads a .env file
// from the working directory if present and then applies environment
// overrides. A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (cfg *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	integer := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}

		*dst = n
		return nil
	}

	str("EMBEDDING_MODEL_NAME", &cfg.Embedding.Model)

	if v, ok := os.LookupEnv("EMBEDDING_DEVICE"); ok && v != "" {
		cfg.Embedding.Device = embedding.Device(v)
	}

	if err := integer("EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize); err != nil {
		return err
	}

	if err := integer("CHUNKING_TOKEN_LIMIT", &cfg.Chunking.TokenLimit); err != nil {
		return err
	}

	str("DB_CHROMA_PATH", &cfg.Vector.Path)
	str("DB_METADATA_DB_PATH", &cfg.Registry.Path)

	if err := integer("DB_MAX_FILINGS", &cfg.Registry.MaxFilings); err != nil {
		return err
	}

	if err := integer("SEARCH_TOP_K", &cfg.Search.TopK); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("SEARCH_MIN_SIMILARITY"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SEARCH_MIN_SIMILARITY: %w", ErrInvalidConfig, err)
		}

		cfg.Search.MinSimilarity = f
	}

	str("EDGAR_IDENTITY_NAME", &cfg.EDGAR.IdentityName)
	str("EDGAR_IDENTITY_EMAIL", &cfg.EDGAR.IdentityEmail)

	return nil
}

func (cfg Config) Validate() error {
	var errs []error

	if cfg.Chunking.TokenLimit <= 0 {
		errs = append(errs, errors.New("chunking.token_limit must be positive"))
	}

	if cfg.Embedding.BatchSize <= 0 {
		errs = append(errs, errors.New("embedding.batch_size must be positive"))
	}

	if cfg.Embedding.Concurrency < 0 {
		errs = append(errs, errors.New("embedding.concurrency must not be negative"))
	}

	if cfg.Embedding.Dimension < 0 {
		errs = append(errs, errors.New("embedding.dimension must not be negative"))
	}

	if !cfg.Embedding.Device.Valid() {
		errs = append(errs, fmt.Errorf("embedding.device %q must be one of auto, cpu, cuda", cfg.Embedding.Device))
	}

	switch cfg.Embedding.Provider {
	case embedding.ProviderOllama, embedding.ProviderOpenAI, embedding.ProviderHash:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", cfg.Embedding.Provider))
	}

	if cfg.Vector.Persistent && cfg.Vector.Path == "" {
		errs = append(errs, errors.New("vector.path is required when persistent"))
	}

	if cfg.Registry.MaxFilings <= 0 {
		errs = append(errs, errors.New("registry.max_filings must be positive"))
	}

	if cfg.Search.TopK <= 0 {
		errs = append(errs, errors.New("search.top_k must be positive"))
	}

	if cfg.Search.MinSimilarity < -1 || cfg.Search.MinSimilarity > 1 {
		errs = append(errs, errors.New("search.min_similarity must be within [-1, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
