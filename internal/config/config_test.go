package config

import (
	"encoding/base64"
	"strings"
	"testing"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestLoadRequiresEmbeddingKey(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when EMBEDDING_AES_KEY is unset")
	}
}

func TestLoadRejectsShortKey(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", "too-short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoadAcceptsBase64Key(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", validKey())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.EmbeddingKey) != EmbeddingKeySize {
		t.Fatalf("key length = %d, want %d", len(cfg.EmbeddingKey), EmbeddingKeySize)
	}
}

func TestLoadAcceptsRawKey(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", strings.Repeat("x", 40))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.EmbeddingKey) != EmbeddingKeySize {
		t.Fatalf("key length = %d, want %d", len(cfg.EmbeddingKey), EmbeddingKeySize)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", validKey())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RecognitionThreshold != 0.6 {
		t.Fatalf("threshold = %v, want 0.6", cfg.RecognitionThreshold)
	}
	if cfg.EmbeddingDim != 128 {
		t.Fatalf("embedding dim = %d, want 128", cfg.EmbeddingDim)
	}
	if cfg.SessionMaxAge != 0 {
		t.Fatalf("session max age should default to disabled, got %v", cfg.SessionMaxAge)
	}
}

func TestLoadThresholdOverride(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", validKey())
	t.Setenv("FACE_RECOGNITION_THRESHOLD", "0.75")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RecognitionThreshold != 0.75 {
		t.Fatalf("threshold = %v, want 0.75", cfg.RecognitionThreshold)
	}
}

func TestLoadThresholdOutOfRange(t *testing.T) {
	t.Setenv("EMBEDDING_AES_KEY", validKey())
	t.Setenv("FACE_RECOGNITION_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for threshold > 1")
	}
}
