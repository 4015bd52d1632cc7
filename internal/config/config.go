package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	Auth   AuthConfig
	Speech SpeechConfig
	Agent  AgentConfig
	Redis  RedisConfig
	Audit  AuditConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type StoreConfig struct {
	// DataDir is where the JSON collections live. Created on boot if absent.
	DataDir string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type SpeechConfig struct {
	STTEndpoint  string
	STTModelSize string

	TTSEndpoint string
	TTSVoice    string

	// LLMEndpoint empty means script-only responses.
	LLMEndpoint string
	LLMModel    string

	Timeout time.Duration
}

type AgentConfig struct {
	// MaxConcurrentCalls caps in-flight calls per account. Requires Redis.
	// Zero disables the cap.
	MaxConcurrentCalls int
	RetryAttempts      int
	RetrySleep         time.Duration
}

type RedisConfig struct {
	// Addr empty disables Redis-backed features.
	Addr string
}

type AuditConfig struct {
	// PostgresDSN empty keeps the audit trail in memory.
	PostgresDSN string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.DataDir = strings.TrimSpace(os.Getenv("DATA_DIR"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Speech.STTEndpoint = strings.TrimSpace(os.Getenv("STT_ENDPOINT"))
	c.Speech.STTModelSize = strings.TrimSpace(os.Getenv("STT_MODEL_SIZE"))
	c.Speech.TTSEndpoint = strings.TrimSpace(os.Getenv("TTS_ENDPOINT"))
	c.Speech.TTSVoice = strings.TrimSpace(os.Getenv("TTS_VOICE"))
	c.Speech.LLMEndpoint = strings.TrimSpace(os.Getenv("LLM_ENDPOINT"))
	c.Speech.LLMModel = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	c.Speech.Timeout = mustDuration("SPEECH_TIMEOUT")

	c.Agent.MaxConcurrentCalls = optionalInt("AGENT_MAX_CONCURRENT_CALLS", &parseErrs)
	c.Agent.RetryAttempts = optionalInt("AGENT_RETRY_ATTEMPTS", &parseErrs)
	c.Agent.RetrySleep = mustDuration("AGENT_RETRY_SLEEP")

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	c.Audit.PostgresDSN = os.Getenv("AUDIT_DB_DSN")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	// Speech endpoints are optional in local/dev (text-only turns still
	// work) but calls cannot run without STT in production.
	if c.IsProduction() && c.Speech.STTEndpoint == "" {
		errs = append(errs, errors.New("STT_ENDPOINT is required in production"))
	}
	if c.Speech.Timeout <= 0 {
		c.Speech.Timeout = 30 * time.Second
	}

	if c.Agent.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("AGENT_MAX_CONCURRENT_CALLS must be >= 0, got %d", c.Agent.MaxConcurrentCalls))
	}
	if c.Agent.MaxConcurrentCalls > 0 && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when AGENT_MAX_CONCURRENT_CALLS is set"))
	}
	if c.Agent.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("AGENT_RETRY_ATTEMPTS must be >= 0, got %d", c.Agent.RetryAttempts))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
