package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	InstanceID  string
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Upstream inference service
	UpstreamURL          string
	UpstreamConfigPath   string // cfg_path forwarded to load_cameras_and_models
	UpstreamTimeout      time.Duration
	StreamConnectTimeout time.Duration
	StreamReadTimeout    time.Duration
	SettleDelay          time.Duration

	// Cameras to record. Empty means discover them from check_status.
	Cameras []string

	// Capture
	CaptureMode         string // "stream" or "poll"
	RecordDuration      time.Duration
	TargetFPS           float64
	UseProvisionalFPS   bool
	FrameBudget         bool
	ReadChunkSize       int
	MaxFrameBytes       int
	ProgressEveryFrames int64
	AbortOnCameraError  bool

	// Video output
	VideoOutputDir   string
	VideoCodec       string // fourcc handed to the encoder
	VideoExtension   string
	VideoMaxSessions int // session directories to keep, 0 = unlimited
	MinFreeDiskMB    uint64
	FetchCameraProps bool

	// Rate reconciliation
	ReconcileEnabled bool
	FFmpegBin        string
	ReconcileTimeout time.Duration

	// Session lifecycle
	TeardownTimeout time.Duration
	Loop            bool
	LoopPause       time.Duration

	// Catalog
	CatalogPath      string
	CatalogListLimit int

	// NATS (recording events)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	EventsSubject      string

	// Control surfaces
	APIEnabled      bool
	Port            int
	GRPCHealthPort  int
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		InstanceID:  getEnv("INSTANCE_ID", "recorder-1"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Upstream
		UpstreamURL:          strings.TrimRight(getEnv("UPSTREAM_URL", "http://api-yolo:3002"), "/"),
		UpstreamConfigPath:   getEnv("UPSTREAM_CONFIG_PATH", "../cfgs/cfg.json"),
		UpstreamTimeout:      getEnvDuration("UPSTREAM_TIMEOUT", 200*time.Second),
		StreamConnectTimeout: getEnvDuration("STREAM_CONNECT_TIMEOUT", 10*time.Second),
		StreamReadTimeout:    getEnvDuration("STREAM_READ_TIMEOUT", 10*time.Second),
		SettleDelay:          getEnvDuration("SETTLE_DELAY", 2*time.Second),

		Cameras: getEnvList("CAMERAS", nil),

		// Capture
		CaptureMode:         getEnv("CAPTURE_MODE", "stream"),
		RecordDuration:      getEnvDuration("RECORD_DURATION", time.Minute),
		TargetFPS:           getEnvFloat("TARGET_FPS", 30),
		UseProvisionalFPS:   getEnvBool("USE_PROVISIONAL_FPS", false),
		FrameBudget:         getEnvBool("FRAME_BUDGET", false),
		ReadChunkSize:       getEnvInt("READ_CHUNK_SIZE", 8192),
		MaxFrameBytes:       getEnvInt("MAX_FRAME_BYTES", 16*1024*1024), // 16MB
		ProgressEveryFrames: int64(getEnvInt("PROGRESS_EVERY_FRAMES", 100)),
		AbortOnCameraError:  getEnvBool("ABORT_ON_CAMERA_ERROR", false),

		// Video output
		VideoOutputDir:   getEnv("VIDEO_OUTPUT_DIR", "../files"),
		VideoCodec:       getEnv("VIDEO_CODEC", "mp4v"),
		VideoExtension:   strings.TrimPrefix(getEnv("VIDEO_EXTENSION", "mp4"), "."),
		VideoMaxSessions: getEnvInt("VIDEO_MAX_SESSIONS", 0),
		MinFreeDiskMB:    uint64(getEnvInt("MIN_FREE_DISK_MB", 0)),
		FetchCameraProps: getEnvBool("FETCH_CAMERA_PROPERTIES", false),
		ReconcileEnabled: getEnvBool("RECONCILE_ENABLED", true),
		FFmpegBin:        getEnv("FFMPEG_BIN", "ffmpeg"),
		ReconcileTimeout: getEnvDuration("RECONCILE_TIMEOUT", 5*time.Minute),
		TeardownTimeout:  getEnvDuration("TEARDOWN_TIMEOUT", 30*time.Second),
		Loop:             getEnvBool("LOOP", false),
		LoopPause:        getEnvDuration("LOOP_PAUSE", 0),
		CatalogPath:      getEnv("CATALOG_PATH", "recordings.db"),
		CatalogListLimit: getEnvInt("CATALOG_LIST_LIMIT", 50),

		// NATS (recording events)
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		EventsSubject:      getEnv("EVENTS_SUBJECT", "recordings"),

		// Control surfaces
		APIEnabled:      getEnvBool("API_ENABLED", false),
		Port:            getEnvInt("PORT", 8000),
		GRPCHealthPort:  getEnvInt("GRPC_HEALTH_PORT", 0),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// FrameBudgetFor returns target_fps × duration, or 0 when budgets are off.
func (c *Config) FrameBudgetFor(d time.Duration) int64 {
	if !c.FrameBudget || c.TargetFPS <= 0 {
		return 0
	}
	return int64(c.TargetFPS * d.Seconds())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
