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

// Config aggregates the service settings.
type Config struct {
	Server    ServerConfig
	Echo      EchoConfig
	AI        AIConfig
	Documents DocumentsConfig
	Scheduler SchedulerConfig
	Planner   PlannerConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	echo, err := loadEchoConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Echo:      echo,
		AI:        ai,
		Documents: loadDocumentsConfig(),
		Scheduler: loadSchedulerConfig(),
		Planner:   loadPlannerConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr        string
	AgentsFile  string
	MetricsPath string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	cfg := ServerConfig{
		AgentsFile:  strings.TrimSpace(os.Getenv("AGENTS_FILE")),
		MetricsPath: getEnvOrDefault("METRICS_PATH", "/metrics"),
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// EchoConfig sets the pacing of the echo agent stream.
type EchoConfig struct {
	StreamDelay time.Duration
}

func loadEchoConfig() (EchoConfig, error) {
	delayMs, err := parseOptionalIntEnv("ECHO_STREAM_DELAY_MS")
	if err != nil {
		return EchoConfig{}, err
	}

	delay := 50 * time.Millisecond
	if delayMs != nil {
		if *delayMs < 0 {
			return EchoConfig{}, fmt.Errorf("invalid ECHO_STREAM_DELAY_MS value %d: must not be negative", *delayMs)
		}
		delay = time.Duration(*delayMs) * time.Millisecond
	}
	return EchoConfig{StreamDelay: delay}, nil
}

// AIConfig holds the Ark credentials and sampling parameters.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// HasCredentials reports whether an API key or an AK/SK pair is set.
func (c AIConfig) HasCredentials() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
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
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// DocumentsConfig locates the document catalog served to the agents.
type DocumentsConfig struct {
	File     string
	Account  string
	Database string
}

func loadDocumentsConfig() DocumentsConfig {
	return DocumentsConfig{
		File:     strings.TrimSpace(os.Getenv("DOCUMENTS_FILE")),
		Account:  getEnvOrDefault("DOCUMENTS_ACCOUNT", "gold-demo-cosmos"),
		Database: getEnvOrDefault("DOCUMENTS_DATABASE", "FactoryOpsDB"),
	}
}

// SchedulerConfig describes the hosted maintenance scheduler agent.
type SchedulerConfig struct {
	InferenceEndpoint string
	DeploymentName    string
	ProjectEndpoint   string
	ToolConnectionID  string
}

// Each setting accepts its AI_* name first and the AZURE_* name used by
// earlier deployments second.
var (
	inferenceEndpointEnv = []string{"AI_INFERENCE_ENDPOINT", "AZURE_OPENAI_ENDPOINT"}
	deploymentNameEnv    = []string{"AI_DEPLOYMENT_NAME", "AZURE_OPENAI_CHAT_DEPLOYMENT_NAME"}
	projectEndpointEnv   = []string{"AI_PROJECT_ENDPOINT", "AZURE_AI_PROJECT_ENDPOINT"}
	toolConnectionEnv    = []string{"AI_PROJECT_TOOL_CONNECTION_ID", "AZURE_AI_PROJECT_TOOL_CONNECTION_ID"}
)

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		InferenceEndpoint: firstEnv(inferenceEndpointEnv...),
		DeploymentName:    firstEnv(deploymentNameEnv...),
		ProjectEndpoint:   firstEnv(projectEndpointEnv...),
		ToolConnectionID:  firstEnv(toolConnectionEnv...),
	}
}

// Configured reports whether any scheduler variable was provided at all.
func (c SchedulerConfig) Configured() bool {
	return c.InferenceEndpoint != "" || c.DeploymentName != "" || c.ProjectEndpoint != ""
}

// Validate returns an error naming the first missing required variable.
func (c SchedulerConfig) Validate() error {
	required := []struct {
		keys  []string
		value string
	}{
		{inferenceEndpointEnv, c.InferenceEndpoint},
		{deploymentNameEnv, c.DeploymentName},
		{projectEndpointEnv, c.ProjectEndpoint},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s environment variable must be set", r.keys[0])
		}
	}
	return nil
}

// ToolsEnabled reports whether the project tool connection is configured.
func (c SchedulerConfig) ToolsEnabled() bool {
	return c.ToolConnectionID != ""
}

// NewChatModel creates the scheduler's chat model.
func (c SchedulerConfig) NewChatModel(ctx context.Context, ai AIConfig) (model.ChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return newArkModel(ctx, ai, c.InferenceEndpoint, c.DeploymentName)
}

// PlannerConfig describes the repair planner agent. It shares the Ark
// credentials with the scheduler and only needs a model name.
type PlannerConfig struct {
	InferenceEndpoint string
	DeploymentName    string
}

func loadPlannerConfig() PlannerConfig {
	return PlannerConfig{
		InferenceEndpoint: firstEnv("PLANNER_INFERENCE_ENDPOINT", "AI_INFERENCE_ENDPOINT", "AZURE_OPENAI_ENDPOINT"),
		DeploymentName:    firstEnv("PLANNER_DEPLOYMENT_NAME", "MODEL_DEPLOYMENT_NAME"),
	}
}

// Configured reports whether a planner model was named.
func (c PlannerConfig) Configured() bool {
	return c.DeploymentName != ""
}

// NewChatModel creates the planner's chat model.
func (c PlannerConfig) NewChatModel(ctx context.Context, ai AIConfig) (model.ChatModel, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("PLANNER_DEPLOYMENT_NAME environment variable must be set")
	}
	return newArkModel(ctx, ai, c.InferenceEndpoint, c.DeploymentName)
}

func newArkModel(ctx context.Context, ai AIConfig, baseURL, modelName string) (model.ChatModel, error) {
	if !ai.HasCredentials() {
		return nil, fmt.Errorf("missing Ark credentials: set ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if ai.Temperature != nil {
		val := float32(*ai.Temperature)
		temperature = &val
	}

	var topP *float32
	if ai.TopP != nil {
		val := float32(*ai.TopP)
		topP = &val
	}

	var maxTokens *int
	if ai.MaxTokens != nil {
		val := *ai.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     baseURL,
		Region:      ai.Region,
		APIKey:      ai.APIKey,
		AccessKey:   ai.AccessKey,
		SecretKey:   ai.SecretKey,
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
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
