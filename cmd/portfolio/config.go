package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/handlers"
	"github.com/thomasboom/portfolio/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (chat.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"maxTokens"`
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	Stop        []string `yaml:"stop"`
}

type config struct {
	Port               string        `yaml:"port"`
	LogLevel           string        `yaml:"logLevel"`
	Persona            string        `yaml:"persona"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	DBPath             string        `yaml:"dbPath"`
	Blog               blogConfig    `yaml:"blog"`
	Site               handlers.Site `yaml:"site"`
	LLM                llmConfig     `yaml:"llm"`
}

type blogConfig struct {
	PostsFile string `yaml:"postsFile"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	Stream        *bool  `yaml:"stream"`
	Referer       string `yaml:"referer"`
	Title         string `yaml:"title"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

const (
	defaultModel       = "z-ai/glm-4.5-air:free"
	defaultMaxTokens   = 2000
	defaultTemperature = float32(0.7)
)

func defaultConfig() config {
	temperature := defaultTemperature
	return config{
		Port:               "8080",
		LogLevel:           "info",
		Persona:            defaultPersona,
		SessionIdleTimeout: 2 * time.Hour,
		Site:               defaultSite(),
		LLM: &openRouterConfig{
			BaseLLMConfig: BaseLLMConfig{
				Provider:    "openrouter",
				Model:       defaultModel,
				MaxTokens:   defaultMaxTokens,
				Temperature: &temperature,
			},
		},
	}
}

// configDir returns the directory holding the config file and the post database.
func configDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "portfolio"), nil
}

// loadConfig reads the YAML config at path on top of the defaults. A missing or empty file yields the
// defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port               string         `yaml:"port"`
		LogLevel           string         `yaml:"logLevel"`
		Persona            string         `yaml:"persona"`
		SessionIdleTimeout time.Duration  `yaml:"sessionIdleTimeout"`
		DBPath             string         `yaml:"dbPath"`
		Blog               blogConfig     `yaml:"blog"`
		Site               *handlers.Site `yaml:"site"`
		LLM                map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.Persona != "" {
		c.Persona = rawConfig.Persona
	}
	if rawConfig.SessionIdleTimeout > 0 {
		c.SessionIdleTimeout = rawConfig.SessionIdleTimeout
	}
	if rawConfig.DBPath != "" {
		c.DBPath = rawConfig.DBPath
	}
	if rawConfig.Blog.PostsFile != "" {
		c.Blog.PostsFile = rawConfig.Blog.PostsFile
	}
	if rawConfig.Site != nil {
		c.Site = *rawConfig.Site
	}

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openrouter":
		llm = &openRouterConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (b BaseLLMConfig) params() services.LLMParameters {
	return services.LLMParameters{
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
		TopP:        b.TopP,
		Stop:        b.Stop,
	}
}

func (o openRouterConfig) llm(logger *slog.Logger) (chat.LLM, error) {
	model := o.Model
	if model == "" {
		model = defaultModel
	}
	params := o.params()
	if params.MaxTokens == 0 {
		params.MaxTokens = defaultMaxTokens
	}
	if params.Temperature == nil {
		temperature := defaultTemperature
		params.Temperature = &temperature
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}

	llm := services.NewOpenRouter(apiKey, model, params, logger)
	if o.BaseURL != "" {
		llm = llm.WithBaseURL(o.BaseURL)
	}
	if o.Stream != nil {
		llm = llm.WithStreaming(*o.Stream)
	}
	if o.Referer != "" || o.Title != "" {
		llm = llm.WithAttribution(o.Referer, o.Title)
	}
	return llm, nil
}

func (o openAIConfig) llm(logger *slog.Logger) (chat.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.params(), logger), nil
}

func (o ollamaConfig) llm(logger *slog.Logger) (chat.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, o.params(), logger)
}

func (a anthropicConfig) llm(logger *slog.Logger) (chat.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	llm := services.NewAnthropic(apiKey, a.Model, a.params(), logger)
	if a.BaseURL != "" {
		llm = llm.WithBaseURL(a.BaseURL)
	}
	return llm, nil
}
