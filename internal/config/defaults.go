package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.CallLogPath == "" {
		cfg.Storage.CallLogPath = "./data/calls.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "openai"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		// 1536 for the remote ada family; override to 384 for local MiniLM models.
		if cfg.Embedding.Backend == "onnx" {
			cfg.Embedding.Dimensions = 384
		} else {
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 500
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 50
	}
	if cfg.Retrieval.DefaultOrg == "" {
		cfg.Retrieval.DefaultOrg = "sample_org"
	}
	if cfg.Speech.BaseURL == "" {
		cfg.Speech.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Speech.APIKeyEnv == "" {
		cfg.Speech.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "whisper-1"
	}
	if cfg.Responder.BaseURL == "" {
		cfg.Responder.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Responder.APIKeyEnv == "" {
		cfg.Responder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Responder.Model == "" {
		cfg.Responder.Model = "gpt-4o-mini"
	}
	if cfg.Responder.MaxTokens == 0 {
		cfg.Responder.MaxTokens = 150
	}
}
