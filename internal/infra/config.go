package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"videogen/internal/domain"
)

// Storage providers accepted by STORAGE_PROVIDER.
const (
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
	StorageLocal      = "local"
)

// TTS providers accepted by TTS_PROVIDER.
const (
	TTSStub   = "stub"
	TTSGCloud = "gcloud"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	GoogleAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	VeoModel           string
	VeoAspectRatio     string
	VeoResolution      string
	VeoDurationSeconds int
	VeoPollInterval    time.Duration
	VeoMaxWait         time.Duration
	VeoImageRoot       string

	StorageProvider     string
	UploadFolder        string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	S3Bucket            string
	AWSRegion           string
	S3PublicBaseURL     string
	StoragePath         string
	StorageBaseURL      string

	WebhookURL     string
	WebhookTimeout time.Duration

	JobStoreURL         string
	MongoDB             string
	MongoJobsCollection string

	TTSProvider string
	TTSLanguage string
	TTSVoice    string

	EnableFramePipeline bool
	FFmpegPath          string

	WorkerConcurrency int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8000")
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            port,
		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout: time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		GoogleAPIKey:  strings.TrimSpace(getEnv("GOOGLE_API_KEY", os.Getenv("GEMINI_API_KEY"))),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		VeoAspectRatio:     os.Getenv("VEO_ASPECT_RATIO"),
		VeoResolution:      os.Getenv("VEO_RESOLUTION"),
		VeoDurationSeconds: getEnvInt("VEO_DURATION_SECONDS", domain.DefaultDurationSeconds),
		VeoPollInterval:    time.Second * time.Duration(getEnvInt("VEO_POLL_INTERVAL_SECONDS", 10)),
		VeoMaxWait:         time.Second * time.Duration(getEnvInt("VEO_MAX_WAIT_SECONDS", 900)),
		VeoImageRoot:       strings.TrimSpace(os.Getenv("VEO_IMAGE_ROOT")),

		StorageProvider:     strings.ToLower(getEnv("STORAGE_PROVIDER", StorageCloudinary)),
		UploadFolder:        getEnv("UPLOAD_FOLDER", "ai_videos"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		S3PublicBaseURL:     strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:      strings.TrimRight(getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)), "/"),

		WebhookURL:     strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookTimeout: time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)),

		JobStoreURL:         strings.TrimSpace(getEnv("JOB_STORE_URL", os.Getenv("MONGODB_URI"))),
		MongoDB:             getEnv("MONGO_DB", "ai_video"),
		MongoJobsCollection: getEnv("MONGO_JOBS_COLLECTION", "video_jobs"),

		TTSProvider: strings.ToLower(getEnv("TTS_PROVIDER", TTSStub)),
		TTSLanguage: getEnv("TTS_LANGUAGE", "en-US"),
		TTSVoice:    getEnv("TTS_VOICE", "en-US-Standard-C"),

		EnableFramePipeline: getEnvBool("ENABLE_FRAME_PIPELINE", false),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),

		WorkerConcurrency: getEnvInt("VIDEO_WORKER_CONCURRENCY", 2),
	}

	// Synchronous generation holds the request open for the whole operation.
	cfg.HTTPWriteTimeout = time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0))
	if cfg.HTTPWriteTimeout <= 0 {
		cfg.HTTPWriteTimeout = cfg.VeoMaxWait + 2*time.Minute
	}

	if cfg.VeoAspectRatio != "" && !domain.ValidAspectRatio(cfg.VeoAspectRatio) {
		return nil, fmt.Errorf("VEO_ASPECT_RATIO %q is not supported", cfg.VeoAspectRatio)
	}
	if cfg.VeoResolution != "" && !domain.ValidResolution(cfg.VeoResolution) {
		return nil, fmt.Errorf("VEO_RESOLUTION %q is not supported", cfg.VeoResolution)
	}
	if !domain.ValidDuration(cfg.VeoDurationSeconds) {
		return nil, fmt.Errorf("VEO_DURATION_SECONDS %d is not supported", cfg.VeoDurationSeconds)
	}
	if cfg.VeoPollInterval <= 0 {
		return nil, fmt.Errorf("VEO_POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.VeoMaxWait <= 0 {
		return nil, fmt.Errorf("VEO_MAX_WAIT_SECONDS must be positive")
	}

	switch cfg.StorageProvider {
	case StorageCloudinary, StorageLocal:
	case StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", cfg.StorageProvider)
	}

	switch cfg.TTSProvider {
	case TTSStub, TTSGCloud:
	default:
		return nil, fmt.Errorf("unsupported TTS_PROVIDER %q", cfg.TTSProvider)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// GenerationDefaults exposes the VEO_* fallbacks for the request handler.
func (c *Config) GenerationDefaults() domain.GenerationDefaults {
	return domain.GenerationDefaults{
		AspectRatio:     c.VeoAspectRatio,
		Resolution:      c.VeoResolution,
		DurationSeconds: c.VeoDurationSeconds,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
