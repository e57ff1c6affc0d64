package config

// Provider names accepted in ProviderConfig.Name.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/index.db"
	}
	if cfg.Library.PDFDir == "" {
		cfg.Library.PDFDir = "./data/pdfs"
	}
	if cfg.Library.ManifestPath == "" {
		cfg.Library.ManifestPath = "./data/pdfs/manifest.json"
	}
	if cfg.Library.Extensions == nil {
		cfg.Library.Extensions = []string{".pdf", ".txt", ".md", ".docx"}
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = ProviderOpenAI
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-4-turbo-preview"
	}
	if cfg.Provider.Dimensions == 0 {
		cfg.Provider.Dimensions = 1536
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.BatchSize == 0 {
		cfg.Retrieval.BatchSize = 64
	}
	if cfg.Retrieval.RetryLimit == 0 {
		cfg.Retrieval.RetryLimit = 3
	}
	if cfg.Retrieval.Concurrency == 0 {
		cfg.Retrieval.Concurrency = 4
	}
}
