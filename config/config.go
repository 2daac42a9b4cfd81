package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nachoal/gemini-chat-go/conversation"
)

// Configuration keys
const (
	KeyModel         = "model"
	KeyBaseURL       = "base_url"
	KeyImageDir      = "image_dir"
	KeyTimeout       = "timeout"
	KeyPersonaPrompt = "persona_prompt"
	KeyPersonaAck    = "persona_ack"
	KeyReplayImages  = "replay_images"
	KeyTemperature   = "temperature"
	KeyResponseMIME  = "response_mime_type"
	KeyLogLevel      = "log_level"
	KeyTheme         = "theme"
	KeyVerbose       = "verbose"
)

const (
	DefaultModel    = "gemini-2.0-flash-preview-image-generation"
	DefaultImageDir = "generated_images"
	DefaultTimeout  = 5 * time.Minute
	DefaultResponse = "text/plain"

	envPrefix  = "GEMINI_CHAT"
	configName = "config"
	configType = "yaml"
)

// apiKeyVars are checked in order for the API key
var apiKeyVars = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

// ConfigurationError reports a missing or invalid startup setting
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Config is the effective application configuration
type Config struct {
	APIKey        string
	Model         string
	BaseURL       string
	ImageDir      string
	Timeout       time.Duration
	PersonaPrompt string
	PersonaAck    string
	ReplayImages  bool
	Temperature   *float32 // nil leaves the model default in place
	ResponseMIME  string
	LogLevel      string
	Theme         string
	Verbose       bool
}

// dumpView is the YAML shape printed by Dump
type dumpView struct {
	APIKey        string   `yaml:"api_key"`
	Model         string   `yaml:"model"`
	BaseURL       string   `yaml:"base_url,omitempty"`
	ImageDir      string   `yaml:"image_dir"`
	Timeout       string   `yaml:"timeout"`
	PersonaPrompt string   `yaml:"persona_prompt"`
	PersonaAck    string   `yaml:"persona_ack"`
	ReplayImages  bool     `yaml:"replay_images"`
	Temperature   *float32 `yaml:"temperature,omitempty"`
	ResponseMIME  string   `yaml:"response_mime_type"`
	LogLevel      string   `yaml:"log_level"`
	Theme         string   `yaml:"theme"`
}

// Manager handles configuration loading and persistence
type Manager struct {
	v          *viper.Viper
	configPath string
}

// LoadEnv loads a .env file if one exists in the working directory
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// NewManager creates a config manager backed by ~/.gemini-chat/config.yaml
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(homeDir, ".gemini-chat"))
}

// NewManagerAt creates a config manager rooted at configDir
func NewManagerAt(configDir string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	return &Manager{
		v:          v,
		configPath: filepath.Join(configDir, configName+"."+configType),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyImageDir, DefaultImageDir)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyPersonaPrompt, conversation.DefaultPersonaPrompt)
	v.SetDefault(KeyPersonaAck, conversation.DefaultPersonaAck)
	v.SetDefault(KeyReplayImages, true)
	v.SetDefault(KeyResponseMIME, DefaultResponse)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyTheme, "default")
	v.SetDefault(KeyVerbose, false)
}

// Viper exposes the underlying viper instance for flag binding
func (m *Manager) Viper() *viper.Viper {
	return m.v
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// Load resolves the effective configuration. A missing API key is a
// ConfigurationError.
func (m *Manager) Load() (*Config, error) {
	cfg := m.Settings()
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{
			Key:    apiKeyVars[0],
			Reason: "not set; add it to your environment or a .env file",
		}
	}
	if cfg.Model == "" {
		return nil, &ConfigurationError{Key: KeyModel, Reason: "must not be empty"}
	}
	if cfg.Timeout <= 0 {
		return nil, &ConfigurationError{Key: KeyTimeout, Reason: "must be positive"}
	}
	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 2) {
		return nil, &ConfigurationError{Key: KeyTemperature, Reason: "must be between 0 and 2"}
	}
	return cfg, nil
}

// Settings returns the configuration without validating it
func (m *Manager) Settings() *Config {
	cfg := &Config{
		APIKey:        lookupAPIKey(),
		Model:         strings.TrimSpace(m.v.GetString(KeyModel)),
		BaseURL:       strings.TrimSpace(m.v.GetString(KeyBaseURL)),
		ImageDir:      m.v.GetString(KeyImageDir),
		Timeout:       m.v.GetDuration(KeyTimeout),
		PersonaPrompt: m.v.GetString(KeyPersonaPrompt),
		PersonaAck:    m.v.GetString(KeyPersonaAck),
		ReplayImages:  m.v.GetBool(KeyReplayImages),
		ResponseMIME:  strings.TrimSpace(m.v.GetString(KeyResponseMIME)),
		LogLevel:      m.v.GetString(KeyLogLevel),
		Theme:         m.v.GetString(KeyTheme),
		Verbose:       m.v.GetBool(KeyVerbose),
	}
	if m.v.IsSet(KeyTemperature) {
		temp := float32(m.v.GetFloat64(KeyTemperature))
		cfg.Temperature = &temp
	}
	return cfg
}

// SetDefaultModel updates the model and writes the config file
func (m *Manager) SetDefaultModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return &ConfigurationError{Key: KeyModel, Reason: "must not be empty"}
	}
	m.v.Set(KeyModel, model)
	return m.Save()
}

// Save writes the persisted keys to disk. The API key is never written.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := m.v.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Dump renders cfg as YAML with the API key redacted
func Dump(cfg *Config) ([]byte, error) {
	view := dumpView{
		APIKey:        redact(cfg.APIKey),
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		ImageDir:      cfg.ImageDir,
		Timeout:       cfg.Timeout.String(),
		PersonaPrompt: cfg.PersonaPrompt,
		PersonaAck:    cfg.PersonaAck,
		ReplayImages:  cfg.ReplayImages,
		Temperature:   cfg.Temperature,
		ResponseMIME:  cfg.ResponseMIME,
		LogLevel:      cfg.LogLevel,
		Theme:         cfg.Theme,
	}
	out, err := yaml.Marshal(&view)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

func lookupAPIKey() string {
	for _, name := range apiKeyVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func redact(key string) string {
	switch {
	case key == "":
		return "(unset)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "…" + key[len(key)-4:]
	}
}
