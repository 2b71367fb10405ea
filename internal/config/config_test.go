package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quiz-sense/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
db:
  driver: postgres
  host: db
  port: 5432
  user: quiz
  password: secret
  name: quizsense
embedding:
  source: ollama
  timeout: 3s
  models:
    - name: all-minilm
      dimension: 384
quiz:
  default_count: 3
  max_count: 10
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://quiz:secret@db:5432/quizsense?sslmode=disable", cfg.GetDSN())
	assert.Equal(t, 3*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, []domain.EmbeddingModel{{Name: "all-minilm", Dimension: 384}}, cfg.EmbeddingModels())
	assert.Equal(t, 24*time.Hour, cfg.Quiz.SessionTTL)
	assert.Equal(t, "cosine", cfg.Quiz.DefaultMetric)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "oracle", cfg.DB.Driver)
	assert.Equal(t, domain.DefaultEmbeddingModels, cfg.EmbeddingModels())
	assert.Equal(t, domain.ModelNomicEmbedText, cfg.Embedding.DefaultModel)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
}

func TestLoadConfigFile_EnvOverride(t *testing.T) {
	t.Setenv("OLLAMA_API_URL", "http://ollama:11434")
	t.Setenv("SESSION_TOKEN_SECRET", "from-env")
	path := writeConfig(t, "embedding:\n  source: ollama\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", cfg.Embedding.Ollama.ServerURL)
	assert.Equal(t, "from-env", cfg.Session.TokenSecret)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "db:\n  driver: mysql\n"},
		{"unknown source", "embedding:\n  source: cohere\n"},
		{"unknown metric", "quiz:\n  default_metric: manhattan\n"},
		{"count above max", "quiz:\n  default_count: 20\n  max_count: 10\n"},
		{"model without dimension", "embedding:\n  models:\n    - name: all-minilm\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{DB: DBConfig{Driver: "oracle", User: "u", Password: "p", Host: "h", Port: 1521, DBName: "svc"}}
	assert.Equal(t, "oracle://u:p@h:1521/svc", cfg.GetDSN())

	cfg.DB.Driver = "sqlite"
	cfg.DB.DBName = ""
	assert.Contains(t, cfg.GetDSN(), "file:quizsense.db")

	cfg.DB.DSN = "explicit"
	assert.Equal(t, "explicit", cfg.GetDSN())
}
