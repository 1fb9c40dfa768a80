package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "8", 5, 8},
		{"uses default for empty", "TEST_INT_2", "", 5, 5},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 5, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("MONGO_URI", "mongodb://localhost:27017")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	os.Setenv("JWT_SECRET", "test-secret")
	defer func() {
		for _, k := range []string{"MONGO_URI", "REDIS_URL", "GEMINI_API_KEY", "ADMIN_PASSWORD_HASH", "JWT_SECRET"} {
			os.Unsetenv(k)
		}
	}()

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.MongoDB != "geoguesser" {
		t.Errorf("Expected default database name, got %q", cfg.MongoDB)
	}
	if cfg.GeminiConcurrentReqs != 5 {
		t.Errorf("Expected default concurrency 5, got %d", cfg.GeminiConcurrentReqs)
	}
	if cfg.MirrorPath != "./data/mirror.db" {
		t.Errorf("Expected default mirror path, got %q", cfg.MirrorPath)
	}
}
