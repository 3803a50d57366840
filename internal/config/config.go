// Package config loads service configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Strategy names accepted by REPLY_STRATEGY.
const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
	StrategyLLM    = "llm"
)

// Config aggregates every runtime setting.
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	AI     AIConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chatCfg, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Chat: chatCfg, AI: ai}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ChatConfig describes the session engine: where state lives, which reply
// strategy runs, and how to reach the remote chat backend.
type ChatConfig struct {
	// DataDir is the BadgerDB directory. Empty selects the in-memory store.
	DataDir string
	// Strategy is one of local, remote, llm.
	Strategy string
	// RemoteBaseURL is the remote chat API root, e.g. "https://host/api".
	RemoteBaseURL string
	// RemoteTimeout bounds every remote call.
	RemoteTimeout time.Duration
	// LocalReplyDelay is the simulated think-time of the offline strategy.
	LocalReplyDelay time.Duration
	// UserID identifies the device user on the remote API.
	UserID string
	// AuthToken is the static bearer token, when one is provisioned.
	AuthToken string
}

func loadChatConfig() (ChatConfig, error) {
	strategy := strings.ToLower(getEnvOrDefault("REPLY_STRATEGY", StrategyLocal))
	switch strategy {
	case StrategyLocal, StrategyRemote, StrategyLLM:
	default:
		return ChatConfig{}, fmt.Errorf("invalid REPLY_STRATEGY value: %q", strategy)
	}

	timeoutSec, err := parseOptionalIntEnv("CHAT_API_TIMEOUT")
	if err != nil {
		return ChatConfig{}, err
	}
	timeout := 30 * time.Second
	if timeoutSec != nil {
		timeout = time.Duration(*timeoutSec) * time.Second
	}

	delayMS, err := parseOptionalIntEnv("REPLY_DELAY_MS")
	if err != nil {
		return ChatConfig{}, err
	}
	delay := time.Duration(0)
	if delayMS != nil {
		delay = time.Duration(*delayMS) * time.Millisecond
	}

	cfg := ChatConfig{
		DataDir:         strings.TrimSpace(os.Getenv("DATA_DIR")),
		Strategy:        strategy,
		RemoteBaseURL:   strings.TrimSpace(os.Getenv("CHAT_API_BASE_URL")),
		RemoteTimeout:   timeout,
		LocalReplyDelay: delay,
		UserID:          getEnvOrDefault("CHAT_USER_ID", "local-user"),
		AuthToken:       strings.TrimSpace(os.Getenv("CHAT_API_TOKEN")),
	}

	if cfg.Strategy == StrategyRemote && cfg.RemoteBaseURL == "" {
		return ChatConfig{}, fmt.Errorf("REPLY_STRATEGY=remote requires CHAT_API_BASE_URL")
	}
	return cfg, nil
}

// AIConfig describes the chat model used by the llm strategy.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + ARK_MODEL or AK/SK")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
