package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("Server.Addr = %q, want default", cfg.Server.Addr)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("Log = %+v, want info/text defaults", cfg.Log)
	}
	if cfg.Auth.JWTExpiresIn != DefaultJWTExpiresIn {
		t.Fatalf("Auth.JWTExpiresIn = %q, want default", cfg.Auth.JWTExpiresIn)
	}
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "debug"
format = "json"

[server]
addr = ":9090"

[auth]
jwt_secret = "s3cret"

[channels.sms]
account_sid = "AC123"
auth_token = "token-123"

[channels.telegram]
secret_token = "tg-secret"

[channels.email]
signing_key = "mail-key"

[[directory.users]]
channel = "sms"
address = "+15551234567"
user_id = "user-1"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("Server.Addr = %q", cfg.Server.Addr)
	}
	if !cfg.Channels.SMS.Enabled() {
		t.Fatal("sms channel not enabled")
	}
	if cfg.Channels.WhatsApp.Enabled() {
		t.Fatal("whatsapp channel enabled without credentials")
	}
	if !cfg.Channels.Telegram.Enabled() || !cfg.Channels.Email.Enabled() {
		t.Fatal("configured channels not enabled")
	}
	if len(cfg.Directory.Users) != 1 || cfg.Directory.Users[0].UserID != "user-1" {
		t.Fatalf("Directory.Users = %+v", cfg.Directory.Users)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "loud"

[[directory.users]]
channel = "sms"
address = "+15551234567"
user_id = "user-1"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid log level")
	}
}

func TestLoad_MissingDirectoryFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[[directory.users]]
channel = "sms"
address = "+15551234567"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted directory binding without user_id")
	}
}
