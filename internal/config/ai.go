package config

import "os"

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Synthesis diagnoses a set of free-text responses (quality over speed, not blocking)
	Synthesis string `json:"synthesis"`

	// Draft suggests a new activity from a topic (needs to be fast)
	Draft string `json:"draft"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	APIKey    string       `json:"-"` // Never serialize
	Models    GeminiModels `json:"models"`
	TimeoutMS int          `json:"timeoutMs"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Models: GeminiModels{
			Synthesis: getEnv("GEMINI_MODEL_SYNTHESIS", "gemini-2.0-flash"),
			Draft:     getEnv("GEMINI_MODEL_DRAFT", "gemini-2.0-flash"),
		},
		TimeoutMS: getInt("GEMINI_TIMEOUT_MS", 30000),
	}
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c != nil && c.APIKey != ""
}
