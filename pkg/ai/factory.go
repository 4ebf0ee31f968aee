package ai

// Config holds advisory backend configuration
type Config struct {
	APIKey  string
	BaseURL string // optional OpenAI-compatible endpoint
	Model   string
}

// NewSuggestionService creates a SuggestionService from the config. Returns
// nil when no API key is configured: the engine then runs on deterministic
// fallback rules only.
func NewSuggestionService(cfg Config) SuggestionService {
	if cfg.APIKey == "" {
		return nil
	}
	return NewOpenAIService(cfg.APIKey, cfg.BaseURL, cfg.Model)
}
