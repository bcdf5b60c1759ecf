package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM       LLMConfig
	Retriever RetrieverConfig
	VectorDB  VectorDBConfig `mapstructure:"vector_db"`
	Usage     UsageConfig
	Server    ServerConfig
	Session   SessionConfig
	Prompts   PromptSet
}

// LLMConfig holds the configuration of the primary and correction models
type LLMConfig struct {
	Provider        string `mapstructure:"provider"`
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	CorrectionModel string `mapstructure:"correction_model"`
	SplitCorrection bool   `mapstructure:"split_correction"`
	TimeoutSecs     int    `mapstructure:"timeout_secs"`
}

// RetrieverConfig holds the document splitting and retrieval configuration
type RetrieverConfig struct {
	ChunkSize    int      `mapstructure:"chunk_size"`
	ChunkOverlap int      `mapstructure:"chunk_overlap"`
	Separators   []string `mapstructure:"separators"`
	NResults     int      `mapstructure:"n_results"`
}

// VectorDBConfig holds the connection parameters of the vector index
type VectorDBConfig struct {
	Type        string `mapstructure:"type"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Collection  string `mapstructure:"collection"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// UsageConfig holds the token accounting configuration
type UsageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// SessionConfig holds the per-session defaults applied at startup
type SessionConfig struct {
	User    string `mapstructure:"user"`
	Context string `mapstructure:"context"`
}

// PromptSet groups the system prompts of the primary agent, the correcting
// agent, the retrieval-injection templates and the tool-specific templates.
// Templates use {statements} and {df} placeholders.
type PromptSet struct {
	PrimaryModelPrompts    []string          `mapstructure:"primary_model_prompts"`
	CorrectingAgentPrompts []string          `mapstructure:"correcting_agent_prompts"`
	RAGAgentPrompts        []string          `mapstructure:"rag_agent_prompts"`
	ToolPrompts            map[string]string `mapstructure:"tool_prompts"`
}

// Load loads the configuration from the config.yaml file. CONFIG_PATH
// overrides the lookup for tests and containerized deployments.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.correction_model", "gpt-3.5-turbo")
	v.SetDefault("llm.timeout_secs", 30)
	v.SetDefault("retriever.chunk_size", 1000)
	v.SetDefault("retriever.chunk_overlap", 0)
	v.SetDefault("retriever.separators", []string{" ", ",", "\n"})
	v.SetDefault("retriever.n_results", 3)
	v.SetDefault("vector_db.type", "memory")
	v.SetDefault("vector_db.host", "127.0.0.1")
	v.SetDefault("vector_db.port", 6333)
	v.SetDefault("vector_db.collection", "documents")
	v.SetDefault("vector_db.timeout_secs", 15)
	v.SetDefault("usage.db_path", "usage.db")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("session.user", "community")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
