// Package config 讀取設定檔、.env 與環境變數
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

const envPrefix = "TRAVELPLANNER"

// ========== 設定結構 ==========

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	StaticDir       string        `mapstructure:"static_dir"`
	DataFile        string        `mapstructure:"data_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	DeepSeekAPIKey   string        `mapstructure:"deepseek_api_key"`
	GeminiAPIKey     string        `mapstructure:"gemini_api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TopP             float32       `mapstructure:"top_p"`
	PresencePenalty  float32       `mapstructure:"presence_penalty"`
	FrequencyPenalty float32       `mapstructure:"frequency_penalty"`
	Vertex           bool          `mapstructure:"vertex"`
	Project          string        `mapstructure:"project"`
	Location         string        `mapstructure:"location"`
}

// StepConfig 單一步驟的溫度與輸出上限
type StepConfig struct {
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type GenerationConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Overview   StepConfig    `mapstructure:"overview"`
	Day        StepConfig    `mapstructure:"day"`
	Summary    StepConfig    `mapstructure:"summary"`
}

type LimitsConfig struct {
	MaxDays        int     `mapstructure:"max_days"`
	MinBudget      float64 `mapstructure:"min_budget"`
	MaxBudget      float64 `mapstructure:"max_budget"`
	MaxInputLength int     `mapstructure:"max_input_length"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig 有 Redis 時用滑動視窗，否則退回單機 token bucket
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Window            time.Duration `mapstructure:"window"`
	MaxRequests       int           `mapstructure:"max_requests"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ========== 載入 ==========

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allow_origins", []string{"http://localhost:8080", "*"})
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.data_file", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("llm.provider", "deepseek")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.deepseek_api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.presence_penalty", 0.1)
	v.SetDefault("llm.frequency_penalty", 0.1)
	v.SetDefault("llm.vertex", false)
	v.SetDefault("llm.project", "")
	v.SetDefault("llm.location", "us-central1")

	def := itinerary.DefaultSettings()
	v.SetDefault("generation.max_retries", def.MaxRetries)
	v.SetDefault("generation.retry_delay", def.RetryDelay)
	v.SetDefault("generation.timeout", 3*time.Minute)
	v.SetDefault("generation.overview.temperature", def.Overview.Temperature)
	v.SetDefault("generation.overview.max_tokens", def.Overview.MaxOutputTokens)
	v.SetDefault("generation.day.temperature", def.Day.Temperature)
	v.SetDefault("generation.day.max_tokens", def.Day.MaxOutputTokens)
	v.SetDefault("generation.summary.temperature", def.Summary.Temperature)
	v.SetDefault("generation.summary.max_tokens", def.Summary.MaxOutputTokens)

	v.SetDefault("limits.max_days", def.Limits.MaxDays)
	v.SetDefault("limits.min_budget", def.Limits.MinBudget)
	v.SetDefault("limits.max_budget", def.Limits.MaxBudget)
	v.SetDefault("limits.max_input_length", def.Limits.MaxInputLength)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "go_travel")
	v.SetDefault("mongo.collection", "plans")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.max_requests", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 讀取設定，優先順序：環境變數 > 設定檔 > 預設值。
// path 為空時在 . 與 ./config 找 config.{yaml,json,toml}，找不到就只用預設值。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 沿用各服務慣用的環境變數名稱
	_ = v.BindEnv("llm.deepseek_api_key", envPrefix+"_LLM_DEEPSEEK_API_KEY", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", envPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("mongo.uri", envPrefix+"_MONGO_URI", "MONGO_URI")
	_ = v.BindEnv("redis.addr", envPrefix+"_REDIS_ADDR", "REDIS_ADDR")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini", "genai", "vertex":
			cfg.LLM.APIKey = cfg.LLM.GeminiAPIKey
		default:
			cfg.LLM.APIKey = cfg.LLM.DeepSeekAPIKey
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	switch c.LLM.Provider {
	case "deepseek", "openai", "gemini", "genai", "vertex":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of deepseek, openai, gemini, genai, vertex", c.LLM.Provider))
	}
	if c.Server.Address == "" {
		problems = append(problems, "server.address is empty")
	}
	if c.Generation.MaxRetries < 0 {
		problems = append(problems, "generation.max_retries cannot be negative")
	}
	if c.Generation.RetryDelay < 0 {
		problems = append(problems, "generation.retry_delay cannot be negative")
	}
	if c.Limits.MaxDays < 1 {
		problems = append(problems, "limits.max_days must be at least 1")
	}
	if c.Limits.MaxBudget > 0 && c.Limits.MinBudget > c.Limits.MaxBudget {
		problems = append(problems, "limits.min_budget is larger than limits.max_budget")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ========== 轉換成各套件的設定 ==========

func (c *Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider:         c.LLM.Provider,
		Model:            c.LLM.Model,
		BaseURL:          c.LLM.BaseURL,
		APIKey:           c.LLM.APIKey,
		Timeout:          c.LLM.Timeout,
		TopP:             c.LLM.TopP,
		PresencePenalty:  c.LLM.PresencePenalty,
		FrequencyPenalty: c.LLM.FrequencyPenalty,
		Vertex:           c.LLM.Vertex,
		Project:          c.LLM.Project,
		Location:         c.LLM.Location,
	}
}

func (s StepConfig) options() llm.Options {
	return llm.Options{Temperature: s.Temperature, MaxOutputTokens: s.MaxTokens}
}

func (c *Config) GenerationSettings() itinerary.Settings {
	return itinerary.Settings{
		MaxRetries: c.Generation.MaxRetries,
		RetryDelay: c.Generation.RetryDelay,
		Overview:   c.Generation.Overview.options(),
		Day:        c.Generation.Day.options(),
		Summary:    c.Generation.Summary.options(),
		Limits: itinerary.Limits{
			MaxDays:        c.Limits.MaxDays,
			MinBudget:      c.Limits.MinBudget,
			MaxBudget:      c.Limits.MaxBudget,
			MaxInputLength: c.Limits.MaxInputLength,
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// SlogLevel 已經過 Validate，這裡不會失敗
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}
