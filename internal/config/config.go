package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/utils"
)

// Profile overwrite policies for a concluded onboarding conversation.
const (
	PolicyLastWriteWins  = "last-write-wins"
	PolicyFirstWriteWins = "first-write-wins"
)

// Config holds all workshop backend configuration.
type Config struct {
	LogMode    string           `yaml:"log_mode"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	Redis      RedisConfig      `yaml:"redis"`
	Export     ExportConfig     `yaml:"export"`
	Email      EmailConfig      `yaml:"email"`
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// DatabaseConfig selects postgres (default) or a local sqlite file.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
}

type LLMConfig struct {
	Provider         string        `yaml:"provider"` // openai, gemini
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	EmbedModel       string        `yaml:"embed_model"`
	Timeout          time.Duration `yaml:"timeout"`
	EmbedConclusions bool          `yaml:"embed_conclusions"`
}

type OnboardingConfig struct {
	ConcludeAfter int    `yaml:"conclude_after"`
	ProfilePolicy string `yaml:"profile_policy"`
}

// RedisConfig is optional; an empty address keeps the session registry in memory.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Key      string `yaml:"key"`
}

type ExportConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

type EmailConfig struct {
	SendgridAPIKey   string `yaml:"sendgrid_api_key"`
	FromEmail        string `yaml:"from_email"`
	FacilitatorEmail string `yaml:"facilitator_email"`
}

func DefaultConfig() *Config {
	return &Config{
		LogMode: "development",
		Server: ServerConfig{
			Port:         "8000",
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:8000"},
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "creative_workshop",
			SQLitePath: "workshop.db",
		},
		LLM: LLMConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
			Timeout:    90 * time.Second,
		},
		Onboarding: OnboardingConfig{
			ConcludeAfter: 5,
			ProfilePolicy: PolicyLastWriteWins,
		},
		Redis: RedisConfig{
			Key: "csw:current_session",
		},
		Email: EmailConfig{
			FromEmail: "no-reply@slotter.ai",
		},
	}
}

// Load reads a yaml file over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets environment variables win over file values.
func (c *Config) ApplyEnvOverrides(log *logger.Logger) {
	c.LogMode = utils.GetEnv("LOG_MODE", c.LogMode, log)
	c.Server.Port = utils.GetEnv("PORT", c.Server.Port, log)
	if origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); origins != "" {
		c.Server.AllowOrigins = splitList(origins)
	}

	c.Database.Driver = utils.GetEnv("CSW_DB_DRIVER", c.Database.Driver, log)
	c.Database.Host = utils.GetEnv("POSTGRES_HOST", c.Database.Host, log)
	c.Database.Port = utils.GetEnv("POSTGRES_PORT", c.Database.Port, log)
	c.Database.User = utils.GetEnv("POSTGRES_USER", c.Database.User, log)
	c.Database.Password = utils.GetEnv("POSTGRES_PASSWORD", c.Database.Password, log)
	c.Database.Name = utils.GetEnv("POSTGRES_NAME", c.Database.Name, log)
	c.Database.SQLitePath = utils.GetEnv("CSW_SQLITE_PATH", c.Database.SQLitePath, log)

	c.LLM.Provider = utils.GetEnv("CSW_LLM_PROVIDER", c.LLM.Provider, log)
	switch c.LLM.Provider {
	case "gemini":
		c.LLM.APIKey = utils.GetEnv("GEMINI_API_KEY", c.LLM.APIKey, log)
	default:
		c.LLM.APIKey = utils.GetEnv("OPENAI_API_KEY", c.LLM.APIKey, log)
	}
	c.LLM.BaseURL = utils.GetEnv("CSW_LLM_BASE_URL", c.LLM.BaseURL, log)
	c.LLM.Model = utils.GetEnv("CSW_MODEL", c.LLM.Model, log)
	c.LLM.EmbedModel = utils.GetEnv("CSW_EMBED_MODEL", c.LLM.EmbedModel, log)
	c.LLM.Timeout = utils.GetEnvAsDuration("CSW_LLM_TIMEOUT", c.LLM.Timeout, log)
	c.LLM.EmbedConclusions = utils.GetEnvAsBool("CSW_EMBED_CONCLUSIONS", c.LLM.EmbedConclusions, log)

	c.Onboarding.ConcludeAfter = utils.GetEnvAsInt("CSW_CONCLUDE_AFTER", c.Onboarding.ConcludeAfter, log)
	c.Onboarding.ProfilePolicy = utils.GetEnv("CSW_PROFILE_POLICY", c.Onboarding.ProfilePolicy, log)

	c.Redis.Address = utils.GetEnv("REDIS_ADDRESS", c.Redis.Address, log)
	c.Redis.Password = utils.GetEnv("REDIS_PASSWORD", c.Redis.Password, log)
	c.Redis.Key = utils.GetEnv("REDIS_SESSION_KEY", c.Redis.Key, log)

	c.Export.Bucket = utils.GetEnv("CSW_EXPORT_BUCKET", c.Export.Bucket, log)
	c.Export.CredentialsFile = utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Export.CredentialsFile, log)

	c.Email.SendgridAPIKey = utils.GetEnv("SENDGRID_API_KEY", c.Email.SendgridAPIKey, log)
	c.Email.FromEmail = utils.GetEnv("SENDGRID_SUPPORT_EMAIL", c.Email.FromEmail, log)
	c.Email.FacilitatorEmail = utils.GetEnv("CSW_FACILITATOR_EMAIL", c.Email.FacilitatorEmail, log)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be openai or gemini, got %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.Onboarding.ConcludeAfter <= 0 {
		return fmt.Errorf("onboarding.conclude_after must be positive")
	}
	switch c.Onboarding.ProfilePolicy {
	case PolicyLastWriteWins, PolicyFirstWriteWins:
	default:
		return fmt.Errorf("onboarding.profile_policy must be %s or %s, got %q", PolicyLastWriteWins, PolicyFirstWriteWins, c.Onboarding.ProfilePolicy)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
