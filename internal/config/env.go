package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPodcastsFile = "config/podcasts.yaml"
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultPort         = "8080"
	DefaultLogDir       = "logs"
	DefaultLockFile     = "run_once.lock"
	DefaultLocalDir     = "storage"
)

const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Env holds process settings read from the environment.
type Env struct {
	DatabaseURL        string
	PodcastsConfig     string
	PodcastsConfigFile string
	RedisAddr          string
	Port               string
	APIToken           string
	BaseURL            string
	LogLevel           string
	LogFormat          string
	LogDir             string
	LockFile           string
	Storage            StorageEnv
}

// StorageEnv selects and locates the object store. Credentials are resolved
// separately by the storage package.
type StorageEnv struct {
	Backend  string
	Endpoint string
	Bucket   string
	Region   string
	UseSSL   bool
	LocalDir string
}

// LoadDotEnv loads .env files into the process environment. A missing file is
// reported as an error for the caller to log; it is never fatal.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// FromEnv reads Env from the process environment, applying defaults.
func FromEnv() Env {
	backend := strings.ToLower(getenv("STORAGE_BACKEND", ""))
	if backend == "" {
		backend = BackendS3
		if os.Getenv("S3_ENDPOINT") == "" {
			backend = BackendLocal
		}
	}

	return Env{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PodcastsConfig:     os.Getenv("PODCASTS_CONFIG"),
		PodcastsConfigFile: getenv("PODCASTS_CONFIG_FILE", DefaultPodcastsFile),
		RedisAddr:          getenv("REDIS_ADDR", DefaultRedisAddr),
		Port:               getenv("PORT", DefaultPort),
		APIToken:           os.Getenv("API_TOKEN"),
		BaseURL:            os.Getenv("BASE_URL"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "console"),
		LogDir:             getenv("LOG_DIR", DefaultLogDir),
		LockFile:           getenv("LOCK_FILE", DefaultLockFile),
		Storage: StorageEnv{
			Backend:  backend,
			Endpoint: os.Getenv("S3_ENDPOINT"),
			Bucket:   os.Getenv("S3_BUCKET"),
			Region:   os.Getenv("S3_REGION"),
			UseSSL:   parseBool(os.Getenv("S3_USE_SSL"), true),
			LocalDir: getenv("LOCAL_STORAGE_DIR", DefaultLocalDir),
		},
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
