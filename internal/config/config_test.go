package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  data_dir: "./data"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data_dir = %s", cfg.Storage.DataDir)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KOTAE_TEST_SECRET=hunter2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KOTAE_TEST_SECRET", "")
	os.Unsetenv("KOTAE_TEST_SECRET")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("KOTAE_TEST_SECRET") != "hunter2" {
		t.Error(".env next to config should be loaded")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Backend != "openai" {
		t.Errorf("default backend: got %s", cfg.Embedding.Backend)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("default top_k: got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.ChunkSize != 500 || cfg.Retrieval.ChunkOverlap != 50 {
		t.Errorf("default chunking: %+v", cfg.Retrieval)
	}
	if cfg.Responder.Model == "" {
		t.Error("responder model should have a default")
	}
}

func TestApplyDefaults_ONNXDimensions(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Backend: "onnx"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("onnx default dimensions: got %d, want 384", cfg.Embedding.Dimensions)
	}
}

func TestStoreAndKnowledgeDirs(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataDir: "/var/lib/kotae"}}
	if got := cfg.StoreDir("acme"); got != filepath.Join("/var/lib/kotae", "acme", "vector_store") {
		t.Errorf("StoreDir = %s", got)
	}
	if got := cfg.KnowledgeDir("acme"); got != filepath.Join("/var/lib/kotae", "acme", "knowledge") {
		t.Errorf("KnowledgeDir = %s", got)
	}
}

func TestLoadOrgProfile_Missing(t *testing.T) {
	profile, err := LoadOrgProfile(t.TempDir(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	if profile.OrgName != "acme" {
		t.Errorf("OrgName = %s", profile.OrgName)
	}
	if profile.FallbackReply == "" {
		t.Error("default profile should have a fallback reply")
	}
}

func TestLoadOrgProfile_FromFile(t *testing.T) {
	dir := t.TempDir()
	orgDir := filepath.Join(dir, "acme")
	if err := os.MkdirAll(orgDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"assistant_role": "Receptionist", "language": "de-DE", "greeting": "Guten Tag!"}`
	if err := os.WriteFile(filepath.Join(orgDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	profile, err := LoadOrgProfile(dir, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if profile.AssistantRole != "Receptionist" || profile.Language != "de-DE" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.OrgName != "acme" {
		t.Errorf("OrgName should default to the collection name, got %s", profile.OrgName)
	}
	if profile.FallbackReply == "" {
		t.Error("unset fields should keep defaults")
	}
}

func TestLoadOrgProfile_Malformed(t *testing.T) {
	dir := t.TempDir()
	orgDir := filepath.Join(dir, "acme")
	if err := os.MkdirAll(orgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orgDir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrgProfile(dir, "acme"); err == nil {
		t.Error("malformed profile should be an error")
	}
}
