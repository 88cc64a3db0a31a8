package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Providers
const (
	ProviderModelScope  = "modelscope"
	ProviderGemini      = "gemini"
	ProviderFusionBrain = "fusionbrain"
)

// Asset stores
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// TextConfig holds the poem generation settings
type TextConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
}

// ImageConfig holds the illustration settings
type ImageConfig struct {
	Provider          string
	Model             string
	Width             int
	Height            int
	Steps             int
	GuidanceScale     float64
	Style             string
	NegativePrompt    string
	MaxTaskRetries    int
	MaxPollingRetries int
	PollMinDelay      time.Duration
	PollStep          time.Duration
	PollMaxDelay      time.Duration
	PollTimeoutDelay  time.Duration
	TaskRetryDelay    time.Duration
}

// Config holds all configuration for the application
type Config struct {
	ModelScopeBaseURL    string
	ModelScopeAPIKey     string
	GeminiAPIKey         string
	GeminiModel          string
	FusionBrainAPIKey    string
	FusionBrainSecretKey string

	Text  TextConfig
	Image ImageConfig

	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	StreamTimeout   time.Duration

	UploadDir     string
	AssetStore    string
	PruneSchedule string
	PruneMaxAge   time.Duration
	LogLevel      string

	DB DBConfig
}

// Load loads the configuration from a .env file, if any, and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	var p parser
	config := &Config{
		ModelScopeBaseURL:    p.getString("MODELSCOPE_BASE_URL", "https://api-inference.modelscope.cn/"),
		ModelScopeAPIKey:     os.Getenv("MODELSCOPE_API_KEY"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          p.getString("GEMINI_MODEL", "gemini-2.5-flash"),
		FusionBrainAPIKey:    os.Getenv("FUSION_BRAIN_API_KEY"),
		FusionBrainSecretKey: os.Getenv("FUSION_BRAIN_SECRET_KEY"),

		Text: TextConfig{
			Provider:    strings.ToLower(p.getString("TEXT_PROVIDER", ProviderModelScope)),
			Model:       p.getString("TEXT_MODEL", "deepseek-ai/DeepSeek-R1-Distill-Qwen-32B"),
			Temperature: p.getFloat("TEMPERATURE", 0.7),
			MaxTokens:   p.getInt("MAX_TOKENS", 1024),
			MaxRetries:  p.getInt("TEXT_MAX_RETRIES", 3),
			RetryDelay:  p.millis("TEXT_RETRY_DELAY_MS", 1000),
		},
		Image: ImageConfig{
			Provider:          strings.ToLower(p.getString("IMAGE_PROVIDER", ProviderModelScope)),
			Model:             p.getString("IMAGE_MODEL", "Qwen/Qwen-Image"),
			Width:             p.getInt("IMAGE_WIDTH", 1024),
			Height:            p.getInt("IMAGE_HEIGHT", 768),
			Steps:             p.getInt("IMAGE_STEPS", 50),
			GuidanceScale:     p.getFloat("IMAGE_GUIDANCE", 7.5),
			Style:             os.Getenv("IMAGE_STYLE"),
			NegativePrompt:    os.Getenv("IMAGE_NEGATIVE_PROMPT"),
			MaxTaskRetries:    p.getInt("IMAGE_MAX_TASK_RETRIES", 3),
			MaxPollingRetries: p.getInt("IMAGE_MAX_POLLING_RETRIES", 40),
			PollMinDelay:      p.millis("POLL_MIN_DELAY_MS", 2000),
			PollStep:          p.millis("POLL_STEP_MS", 500),
			PollMaxDelay:      p.millis("POLL_MAX_DELAY_MS", 15000),
			PollTimeoutDelay:  p.millis("POLL_TIMEOUT_DELAY_MS", 5000),
			TaskRetryDelay:    p.millis("TASK_RETRY_DELAY_MS", 3000),
		},

		RequestTimeout:  p.seconds("REQUEST_TIMEOUT", 30),
		DownloadTimeout: p.seconds("DOWNLOAD_TIMEOUT", 60),
		StreamTimeout:   p.seconds("STREAM_TIMEOUT", 300),

		UploadDir:     p.getString("UPLOAD_DIR", "uploads"),
		AssetStore:    strings.ToLower(p.getString("ASSET_STORE", StoreFile)),
		PruneSchedule: p.getString("PRUNE_SCHEDULE", "0 0 * * * *"),
		PruneMaxAge:   time.Duration(p.getInt("PRUNE_MAX_AGE", 168)) * time.Hour,
		LogLevel:      p.getString("LOG_LEVEL", "info"),

		DB: DBConfig{
			Host:            os.Getenv("DB_HOST"),
			Port:            p.getInt("DB_PORT", 5432),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        os.Getenv("DB_NAME"),
			SSLMode:         p.getString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    p.getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.getInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: p.seconds("DB_CONN_MAX_LIFETIME", 300),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Text.Provider {
	case ProviderModelScope:
		if c.ModelScopeAPIKey == "" {
			return fmt.Errorf("MODELSCOPE_API_KEY is required")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown TEXT_PROVIDER %q", c.Text.Provider)
	}

	switch c.Image.Provider {
	case ProviderModelScope:
		if c.ModelScopeAPIKey == "" {
			return fmt.Errorf("MODELSCOPE_API_KEY is required")
		}
	case ProviderFusionBrain:
		if c.FusionBrainAPIKey == "" {
			return fmt.Errorf("FUSION_BRAIN_API_KEY is required")
		}
		if c.FusionBrainSecretKey == "" {
			return fmt.Errorf("FUSION_BRAIN_SECRET_KEY is required")
		}
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q", c.Image.Provider)
	}

	if c.Text.MaxRetries < 0 || c.Image.MaxTaskRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if c.Image.MaxPollingRetries < 1 {
		return fmt.Errorf("IMAGE_MAX_POLLING_RETRIES must be at least 1")
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", c.Image.Width, c.Image.Height)
	}

	switch c.AssetStore {
	case StoreFile:
	case StorePostgres:
		if c.DB.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.DB.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.DB.Database == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	default:
		return fmt.Errorf("unknown ASSET_STORE %q", c.AssetStore)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// parser reads typed variables, keeping the first parse error.
type parser struct {
	err error
}

func (p *parser) getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) millis(key string, def int) time.Duration {
	return time.Duration(p.getInt(key, def)) * time.Millisecond
}

func (p *parser) seconds(key string, def int) time.Duration {
	return time.Duration(p.getInt(key, def)) * time.Second
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}
