package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/identity"
)

type Config struct {
	Server   ServerConfig
	Webhook  WebhookConfig
	Platform PlatformConfig
	Reply    ReplyConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address       string
	HealthText    string
	DebugEndpoint bool
}

type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
}

type PlatformConfig struct {
	BaseURL       string
	Version       string
	Token         string
	PhoneNumberID string
	Timeout       time.Duration
}

type ReplyConfig struct {
	Prefix           string
	TemplateName     string
	TemplateLanguage string
	SelfAddress      string
	AllowedAddress   string
	NumberingPolicy  string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type AMQPConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	verifyToken, err := requireEnv("VERIFY_TOKEN")
	collect(err)

	timeoutSeconds, err := getEnvInt("GRAPH_HTTP_TIMEOUT_SECONDS", 0)
	collect(err)
	if err == nil && timeoutSeconds < 0 {
		collect(errors.New("GRAPH_HTTP_TIMEOUT_SECONDS must be >= 0"))
	}

	debugEndpoint, err := getEnvBool("DEBUG_ENDPOINT", false)
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address:       serverAddress(),
			HealthText:    getEnv("HEALTH_TEXT", "Bot WhatsApp OK"),
			DebugEndpoint: debugEndpoint,
		},
		Webhook: WebhookConfig{
			VerifyToken: verifyToken,
			AppSecret:   os.Getenv("APP_SECRET"),
		},
		Platform: PlatformConfig{
			BaseURL:       strings.TrimRight(getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"), "/"),
			Version:       getEnv("GRAPH_API_VERSION", "v19.0"),
			Token:         os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("PHONE_NUMBER_ID"),
			Timeout:       time.Duration(timeoutSeconds) * time.Second,
		},
		Reply: ReplyConfig{
			Prefix:           getEnv("REPLY_PREFIX", "🤖 Bot activo. Dijiste:"),
			TemplateName:     os.Getenv("REPLY_TEMPLATE_NAME"),
			TemplateLanguage: getEnv("REPLY_TEMPLATE_LANGUAGE", "en_US"),
			SelfAddress:      os.Getenv("SELF_ADDRESS"),
			AllowedAddress:   os.Getenv("ALLOWED_TEST_ADDRESS"),
			NumberingPolicy:  strings.ToLower(getEnv("NUMBERING_POLICY", "insert")),
		},
		AMQP: loadAMQPConfig(),
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	redisCfg, err := loadRedisConfig()
	collect(err)
	cfg.Redis = redisCfg

	collect(validate(cfg))

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serverAddress() string {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		return addr
	}
	return ":" + getEnv("PORT", "3000")
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	} else if ttl <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors(errs)
}

func loadAMQPConfig() AMQPConfig {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		return AMQPConfig{Enabled: false}
	}
	return AMQPConfig{
		Enabled:  true,
		URL:      url,
		Exchange: getEnv("AMQP_EXCHANGE", "whatsapp.autoreply"),
	}
}

func validate(cfg *Config) error {
	var errs []error
	if _, err := identity.ParsePolicy(cfg.Reply.NumberingPolicy); err != nil {
		errs = append(errs, fmt.Errorf("NUMBERING_POLICY: %w", err))
	}
	if cfg.Reply.TemplateName != "" && cfg.Reply.TemplateLanguage == "" {
		errs = append(errs, errors.New("REPLY_TEMPLATE_LANGUAGE must be set when REPLY_TEMPLATE_NAME is set"))
	}
	if !oneOf(cfg.Log.Level, []string{"debug", "info", "warn", "error"}) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.Log.Level))
	}
	if !oneOf(cfg.Log.Format, []string{"json", "text"}) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of json|text, got %q", cfg.Log.Format))
	}
	return joinErrors(errs)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
