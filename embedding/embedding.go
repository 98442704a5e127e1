package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/philippgille/chromem-go"
)

var (
	ErrEmbedding           = errors.New("embedding failure")
	ErrNoInput             = errors.New("no input texts")
	ErrZeroVector          = errors.New("zero length vector")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
)

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
)

type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

func (d Device) Valid() bool {
	switch d {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
		return true
	default:
		return false
	}
}

const (
	DefaultModel         = "nomic-embed-text"
	DefaultDimension     = 768
	DefaultBatchSize     = 32
	DefaultConcurrency   = 4
	DefaultMaxInputChars = 8192

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

type Config struct {
	Provider      Provider      `yaml:"provider"`
	Model         string        `yaml:"model"`
	Device        Device        `yaml:"device"`
	BatchSize     int           `yaml:"batch_size"`
	Concurrency   int           `yaml:"concurrency"`
	Dimension     int           `yaml:"dimension"`
	MaxInputChars int           `yaml:"max_input_chars"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Provider:      ProviderOllama,
		Model:         DefaultModel,
		Device:        DeviceAuto,
		BatchSize:     DefaultBatchSize,
		Concurrency:   DefaultConcurrency,
		Dimension:     DefaultDimension,
		MaxInputChars: DefaultMaxInputChars,
		Timeout:       2 * time.Minute,
	}
}

// Embedder maps texts to fixed length unit vectors. The same text always
// maps to the same vector for a given model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Func embeds a single text.
type Func = chromem.EmbeddingFunc

// NewFunc resolves the backend named by the config.
func NewFunc(cfg Config) (Func, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL), nil

	case ProviderOpenAI:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOpenAIBaseURL
		}

		return chromem.NewEmbeddingFuncOpenAICompat(baseURL, cfg.APIKey, cfg.Model, nil), nil

	case ProviderHash:
		dim := cfg.Dimension
		if dim <= 0 {
			dim = DefaultDimension
		}

		return NewHashFunc(dim), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// New builds the batching embedder for the configured backend.
func New(cfg Config) (Embedder, error) {
	fn, err := NewFunc(cfg)
	if err != nil {
		return nil, err
	}

	return NewBatchEmbedder(fn, cfg), nil
}
