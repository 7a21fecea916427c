package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Storage.Path != "./apostle.db" {
			t.Errorf("expected storage path ./apostle.db, got %s", config.Storage.Path)
		}
		if config.Storage.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %s", config.Storage.Driver)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if config.API.BaseURL != "" {
			t.Errorf("expected empty API base URL, got %s", config.API.BaseURL)
		}
		if config.API.Timeout() != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", config.API.Timeout())
		}
		if config.Upload.MaxAttempts != 3 {
			t.Errorf("expected 3 upload attempts, got %d", config.Upload.MaxAttempts)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Storage.Path != DefaultConfig().Storage.Path {
			t.Errorf("created config storage path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[api]
base_url = "https://api.example.com"
requests_per_second = 2.5

[storage]
driver = "file"
credentials_dir = "/tmp/apostle"

[server]
port = 8081
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://api.example.com" {
			t.Errorf("expected base URL https://api.example.com, got %s", config.API.BaseURL)
		}
		if config.API.RequestsPerSecond != 2.5 {
			t.Errorf("expected 2.5 requests per second, got %v", config.API.RequestsPerSecond)
		}
		if config.Storage.Driver != "file" {
			t.Errorf("expected file driver, got %s", config.Storage.Driver)
		}
		if config.Server.Port != 8081 {
			t.Errorf("expected server port 8081, got %d", config.Server.Port)
		}
		if config.Server.Host != "127.0.0.1" {
			t.Errorf("expected default host to survive partial config, got %s", config.Server.Host)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[api\nbase_url ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestEnv(t *testing.T) {
	t.Run("ApplyEnv Overrides BaseURL", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "https://env.example.com")

		config := DefaultConfig()
		config.API.BaseURL = "https://file.example.com"
		config.ApplyEnv()

		if config.API.BaseURL != "https://env.example.com" {
			t.Errorf("expected env override, got %s", config.API.BaseURL)
		}
	})

	t.Run("ApplyEnv Without Variable", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "")

		config := DefaultConfig()
		config.API.BaseURL = "https://file.example.com"
		config.ApplyEnv()

		if config.API.BaseURL != "https://file.example.com" {
			t.Errorf("expected file value to remain, got %s", config.API.BaseURL)
		}
	})

	t.Run("LoadEnv Missing File Is Ignored", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("expected no error for missing .env, got %v", err)
		}
	})

	t.Run("LoadEnv Reads File", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "")
		os.Unsetenv(EnvAPIURL)

		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte(EnvAPIURL+"=https://dotenv.example.com\n"), 0644); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}

		if err := LoadEnv(envPath); err != nil {
			t.Fatalf("failed to load .env: %v", err)
		}
		if got := os.Getenv(EnvAPIURL); got != "https://dotenv.example.com" {
			t.Errorf("expected value from .env, got %q", got)
		}
	})
}

func TestMaskToken(t *testing.T) {
	tc := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: "(none)"},
		{name: "short", token: "abc", want: "********"},
		{name: "long", token: "abcdefghijkl", want: "abcd…ijkl"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]string{"url": "https://a.test/?x=1&y=<2>"}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(compact); got != "{\"url\":\"https://a.test/?x=1&y=<2>\"}\n" {
		t.Errorf("unexpected compact output %q", got)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(pretty); got != "{\n  \"url\": \"https://a.test/?x=1&y=<2>\"\n}\n" {
		t.Errorf("unexpected pretty output %q", got)
	}

	if VisibilityString(true) != "Hidden" || VisibilityString(false) != "Visible" {
		t.Error("unexpected visibility strings")
	}
}
