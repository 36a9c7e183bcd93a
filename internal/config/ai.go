package config

import "os"

// AIConfig holds the question-generation model configuration.
type AIConfig struct {
	APIKey    string `json:"-"` // Never serialize
	BaseURL   string `json:"baseUrl"`
	Model     string `json:"model"`
	TimeoutMS int    `json:"timeoutMs"`
}

// DefaultAIConfig returns the default AI configuration.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		APIKey:    os.Getenv("GEMINI_API_KEY"),
		BaseURL:   "https://generativelanguage.googleapis.com/v1beta/models",
		Model:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		TimeoutMS: 10000, // 10 second default timeout
	}
}

// IsEnabled returns true if the AI API is configured.
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full generateContent endpoint for the configured model.
func (c *AIConfig) ModelEndpoint() string {
	return c.BaseURL + "/" + c.Model + ":generateContent"
}
