package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Fetch   FetchConfig
	OCR     OCRConfig
	Extract ExtractConfig
	LLM     LLMConfig
	S3      S3Config
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// StoreConfig holds job-store configuration
type StoreConfig struct {
	Driver          string // "postgres" | "sqlite"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// FetchConfig holds document downloader configuration
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
	TmpDir   string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "textract" | "tesseract"
	Fallback      bool   // cloud -> local fallback (orchestration policy)
	Tesseract     string // binary name or absolute path
	TesseractLang string
	TessdataDir   string
	Pdftoppm      string
	DPI           int
	AWSRegion     string
	Enhance       bool
}

// ExtractConfig selects the extraction strategy
type ExtractConfig struct {
	Path string // "heuristic" | "llm"
}

// LLMConfig holds LLM backend configuration
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// S3Config holds optional artifact-upload configuration
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":3000"),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "postgres"),
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:  getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBytes: int64(getEnvAsInt("FETCH_MAX_BYTES", 15<<20)),
			TmpDir:   getEnv("TMP_DIR", "./tmp"),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", "tesseract"),
			Fallback:      getEnvAsBool("OCR_FALLBACK", false),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:           getEnvAsInt("RASTER_DPI", 300),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			Enhance:       getEnvAsBool("IMAGE_ENHANCE", true),
		},
		Extract: ExtractConfig{
			Path: getEnv("EXTRACT_PATH", "heuristic"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
		},
		S3: S3Config{
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.OCR.Engine != "textract" && c.OCR.Engine != "tesseract" {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be textract or tesseract", ErrInvalidInput)
	}
	if c.Extract.Path != "heuristic" && c.Extract.Path != "llm" {
		return NewAppError("CONFIG_ERROR", "EXTRACT_PATH must be heuristic or llm", ErrInvalidInput)
	}
	if c.Extract.Path == "llm" {
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required for the llm extract path", ErrInvalidInput)
		}
		if c.LLM.Model == "" {
			return NewAppError("CONFIG_ERROR", "LLM_MODEL is required for the llm extract path", ErrInvalidInput)
		}
	}
	return nil
}
