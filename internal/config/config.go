package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Media    MediaConfig
	Ticket   TicketConfig
	SMS      SMSConfig
	OTP      OTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitMB           int
	// ProxyHeader names the header carrying the client IP behind a reverse proxy.
	ProxyHeader string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console"; empty picks console outside production.
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	MaxLoginAttempts      int
	LockoutSeconds        int
}

// StorageConfig points at the directories attachments are written to.
type StorageConfig struct {
	PublicRoot string
	TempDir    string
}

// MediaConfig tunes attachment compression.
type MediaConfig struct {
	ImageMaxDimension int
	ImageQuality      int
	ImageMaxPixels    int
	// VipsEnabled only takes effect in binaries built with -tags vips; other builds
	// never produce WebP and start the codec chain at PNG.
	VipsEnabled      bool
	FFmpegPath       string
	TranscodeTimeout time.Duration
	VideoMaxWidth    int
	VideoMaxHeight   int
	VideoPreset      string
	VideoCRF         int
}

// TicketConfig holds intake defaults.
type TicketConfig struct {
	NumberPrefix       string
	DueDays            int
	DefaultAssigneeID  int64
	MaxAttachments     int
	MaxAttachmentBytes int64
}

// SMSConfig holds the outbound SMS gateway credentials and template ids.
type SMSConfig struct {
	GatewayURL              string
	Username                string
	APIPassword             string
	Sender                  string
	EntityID                string
	Priority                string
	OTPTemplateID           string
	WelcomeTemplateID       string
	TicketCreatedTemplateID string
	Timeout                 time.Duration
}

// OTPConfig configures one-time login codes.
type OTPConfig struct {
	TTL    time.Duration
	Length int
	// PurgeInterval is how often expired codes are deleted; zero disables the sweep.
	PurgeInterval time.Duration
	// EchoInResponse returns generated codes to the caller; never enabled in production.
	EchoInResponse bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	defaultAssignee, err := strconv.ParseInt(getEnv("TICKET_DEFAULT_ASSIGNEE_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TICKET_DEFAULT_ASSIGNEE_ID: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-desk"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 0),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 520),
			ProxyHeader:           os.Getenv("HTTP_PROXY_HEADER"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Timeout:  getEnvAsDuration("REDIS_TIMEOUT", 2*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 120),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			MaxLoginAttempts:      getEnvAsInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			LockoutSeconds:        getEnvAsInt("AUTH_LOCKOUT_SECONDS", 60),
		},
		Storage: StorageConfig{
			PublicRoot: getEnv("STORAGE_PUBLIC_ROOT", "./public"),
			TempDir:    getEnv("STORAGE_TEMP_DIR", os.TempDir()),
		},
		Media: MediaConfig{
			ImageMaxDimension: getEnvAsInt("MEDIA_IMAGE_MAX_DIMENSION", 1920),
			ImageQuality:      getEnvAsInt("MEDIA_IMAGE_QUALITY", 75),
			ImageMaxPixels:    getEnvAsInt("MEDIA_IMAGE_MAX_PIXELS", 50_000_000),
			VipsEnabled:       getEnvAsBool("MEDIA_VIPS_ENABLED", true),
			FFmpegPath:        getEnv("MEDIA_FFMPEG_PATH", "ffmpeg"),
			TranscodeTimeout:  getEnvAsDuration("MEDIA_TRANSCODE_TIMEOUT", 10*time.Minute),
			VideoMaxWidth:     getEnvAsInt("MEDIA_VIDEO_MAX_WIDTH", 1280),
			VideoMaxHeight:    getEnvAsInt("MEDIA_VIDEO_MAX_HEIGHT", 720),
			VideoPreset:       getEnv("MEDIA_VIDEO_PRESET", "veryfast"),
			VideoCRF:          getEnvAsInt("MEDIA_VIDEO_CRF", 26),
		},
		Ticket: TicketConfig{
			NumberPrefix:       strings.ToUpper(getEnv("TICKET_NUMBER_PREFIX", "UCC")),
			DueDays:            getEnvAsInt("TICKET_DUE_DAYS", 3),
			DefaultAssigneeID:  defaultAssignee,
			MaxAttachments:     getEnvAsInt("TICKET_MAX_ATTACHMENTS", 10),
			MaxAttachmentBytes: int64(getEnvAsInt("TICKET_MAX_ATTACHMENT_MB", 50)) << 20,
		},
		SMS: SMSConfig{
			GatewayURL:              getEnv("SMS_GATEWAY_URL", "https://itda.hmimedia.in/pushsms.php"),
			Username:                os.Getenv("SMS_API_USERNAME"),
			APIPassword:             os.Getenv("SMS_API_PASSWORD"),
			Sender:                  getEnv("SMS_SENDER", "UKITDA"),
			EntityID:                os.Getenv("SMS_API_ENTITY_ID"),
			Priority:                getEnv("SMS_PRIORITY", "11"),
			OTPTemplateID:           getEnv("SMS_TEMPLATE_OTP", "1307175429742401534"),
			WelcomeTemplateID:       getEnv("SMS_TEMPLATE_WELCOME", "1307175429746978514"),
			TicketCreatedTemplateID: getEnv("SMS_TEMPLATE_TICKET_CREATED", "1307175429633438028"),
			Timeout:                 getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		OTP: OTPConfig{
			TTL:            getEnvAsDuration("OTP_TTL", 5*time.Minute),
			Length:         getEnvAsInt("OTP_LENGTH", 6),
			PurgeInterval:  getEnvAsDuration("OTP_PURGE_INTERVAL", time.Hour),
			EchoInResponse: env != "production",
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
