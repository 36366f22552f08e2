package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

type Builder struct {
	MaxBuildIterations  int           `yaml:"max_build_iterations" env:"BUILDER_MAX_BUILD_ITERATIONS" env-default:"5"`
	MaxRefineIterations int           `yaml:"max_refine_iterations" env:"BUILDER_MAX_REFINE_ITERATIONS" env-default:"3"`
	MaxExtraFixes       int           `yaml:"max_extra_fixes" env:"BUILDER_MAX_EXTRA_FIXES" env-default:"2"`
	PreviewDebounce     time.Duration `yaml:"preview_debounce" env:"BUILDER_PREVIEW_DEBOUNCE" env-default:"800ms"`
	StatusClearDelay    time.Duration `yaml:"status_clear_delay" env:"BUILDER_STATUS_CLEAR_DELAY" env-default:"2s"`
	AskFirst            bool          `yaml:"ask_first" env:"BUILDER_ASK_FIRST" env-default:"false"`
	HistoryTokenLimit   int           `yaml:"history_token_limit" env:"BUILDER_HISTORY_TOKEN_LIMIT" env-default:"6000"`
	TokenModel          string        `yaml:"token_model" env:"BUILDER_TOKEN_MODEL" env-default:"gpt-4o"`
	SummaryLength       int           `yaml:"summary_length" env:"BUILDER_SUMMARY_LENGTH" env-default:"60"`
}

type Endpoints struct {
	Backend         string        `yaml:"backend" env:"GENERATION_BACKEND" env-default:"http"`
	GenerateURL     string        `yaml:"generate_url" env:"GENERATE_URL" env-default:"http://localhost:3000/api/ai/generate-widget"`
	CritiqueURL     string        `yaml:"critique_url" env:"CRITIQUE_URL" env-default:"http://localhost:3000/api/ai/critique-widget"`
	CritiqueTimeout time.Duration `yaml:"critique_timeout" env:"CRITIQUE_TIMEOUT" env-default:"60s"`
	AuthToken       string        `env:"ENDPOINTS_AUTH_TOKEN"`
}

type OpenAI struct {
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIModel      string  `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	OpenAIBaseURL    string  `yaml:"open_ai_base_url" env:"OPENAI_BASE_URL"`
	ModelTemperature float32 `yaml:"model_temperature" env:"MODEL_TEMPERATURE" env-default:"0.7"`
}

type Telegram struct {
	TelegramAPIToken  string        `env:"TELEGRAM_APITOKEN,required"`
	AllowedTelegramID []int64       `yaml:"allowed_telegram_id" env:"ALLOWED_TELEGRAM_ID" env-separator:","`
	IsNotPublic       bool          `yaml:"is_not_public" env:"TELEGRAM_NOT_PUBLIC" env-default:"false"`
	ProgressInterval  time.Duration `yaml:"progress_interval" env:"TELEGRAM_PROGRESS_INTERVAL" env-default:"2500ms"`
}

type Redis struct {
	Endpoint   string        `yaml:"endpoint" env:"REDIS_ENDPOINT"`
	Password   string        `env:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"REDIS_SESSION_TTL" env-default:"168h"`
}

type Preview struct {
	Addr        string   `yaml:"addr" env:"PREVIEW_ADDR" env-default:":8090"`
	PublicURL   string   `yaml:"public_url" env:"PREVIEW_PUBLIC_URL"`
	CORSOrigins []string `yaml:"cors_origins" env:"PREVIEW_CORS_ORIGINS" env-separator:"," env-default:"*"`
}

type Log struct {
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"dev"`
}

type Config struct {
	Builder   Builder   `yaml:"builder"`
	Endpoints Endpoints `yaml:"endpoints"`
	OpenAI    OpenAI    `yaml:"open_ai"`
	Telegram  Telegram  `yaml:"telegram"`
	Redis     Redis     `yaml:"redis"`
	Preview   Preview   `yaml:"preview"`
	Log       Log       `yaml:"log"`
}

func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultBuilder mirrors the env-default tags above.
func DefaultBuilder() Builder {
	return Builder{
		MaxBuildIterations:  5,
		MaxRefineIterations: 3,
		MaxExtraFixes:       2,
		PreviewDebounce:     800 * time.Millisecond,
		StatusClearDelay:    2 * time.Second,
		HistoryTokenLimit:   6000,
		TokenModel:          "gpt-4o",
		SummaryLength:       60,
	}
}
