package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL   string
	DBAutoMigrate bool
	JWTSecretKey  string
	ServerPort    int
	LogLevel      string

	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Game     GameConfig
	R2       R2Config

	SupervisorInterval time.Duration
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// RabbitMQConfig: пустой URL отключает публикацию событий.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

type GameConfig struct {
	Duration           time.Duration
	TeamSize           int
	QuestionsPerMatch  int
	MatchmakingTimeout time.Duration
	SessionTTL         time.Duration
	AnswerMaxTime      time.Duration
	StartDeadline      time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled: архивирование включается только при полном наборе параметров.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != "" && c.PublicBaseURL != ""
}

func (c R2Config) partial() bool {
	return !c.Enabled() && (c.AccountID != "" || c.AccessKeyID != "" || c.SecretAccessKey != "" || c.BucketName != "" || c.PublicBaseURL != "")
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	logLevel := strings.ToLower(envOr("LOG_LEVEL", "info"))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", logLevel)
	}

	autoMigrate, err := boolEnv("DB_AUTO_MIGRATE", false)
	if err != nil {
		return nil, err
	}

	redisCfg, err := loadRedis()
	if err != nil {
		return nil, err
	}

	game, err := loadGame()
	if err != nil {
		return nil, err
	}

	supervisorInterval, err := durationEnv("SUPERVISOR_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	r2 := R2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	if r2.partial() {
		return nil, fmt.Errorf("R2 archive configuration is incomplete: set all R2_* variables or none")
	}

	cfg := &Config{
		DatabaseURL:   dbURL,
		DBAutoMigrate: autoMigrate,
		JWTSecretKey:  jwtKey,
		ServerPort:    port,
		LogLevel:      logLevel,
		Redis:         redisCfg,
		RabbitMQ: RabbitMQConfig{
			URL:   os.Getenv("RABBITMQ_URL"),
			Queue: envOr("RABBITMQ_MATCH_QUEUE", "match.finished"),
		},
		Game:               game,
		R2:                 r2,
		SupervisorInterval: supervisorInterval,
		CORSAllowedOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "*")),
	}

	return cfg, nil
}

func loadRedis() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	useTLS, err := boolEnv("REDIS_TLS", false)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       dbNum,
		TLS:      useTLS,
	}, nil
}

func loadGame() (GameConfig, error) {
	var g GameConfig
	var err error

	if g.Duration, err = durationEnv("GAME_DURATION", 300*time.Second); err != nil {
		return g, err
	}
	if g.TeamSize, err = intEnv("MAX_TEAM_SIZE", 2); err != nil {
		return g, err
	}
	if g.TeamSize < 1 {
		return g, fmt.Errorf("MAX_TEAM_SIZE must be positive, got %d", g.TeamSize)
	}
	if g.QuestionsPerMatch, err = intEnv("QUESTIONS_PER_MATCH", 5); err != nil {
		return g, err
	}
	if g.QuestionsPerMatch < 1 {
		return g, fmt.Errorf("QUESTIONS_PER_MATCH must be positive, got %d", g.QuestionsPerMatch)
	}
	if g.MatchmakingTimeout, err = durationEnv("MATCHMAKING_TIMEOUT", 300*time.Second); err != nil {
		return g, err
	}
	if g.SessionTTL, err = durationEnv("SESSION_TTL", time.Hour); err != nil {
		return g, err
	}
	if g.AnswerMaxTime, err = durationEnv("ANSWER_MAX_TIME", 10*time.Second); err != nil {
		return g, err
	}
	if g.StartDeadline, err = durationEnv("MATCH_START_DEADLINE", 2*time.Minute); err != nil {
		return g, err
	}
	if g.SessionTTL < g.Duration {
		return g, fmt.Errorf("SESSION_TTL (%s) must not be shorter than GAME_DURATION (%s)", g.SessionTTL, g.Duration)
	}
	return g, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

// durationEnv понимает и "90s", и просто "90" (секунды).
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %d", key, secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
