package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Channels  ChannelsConfig  `toml:"channels"`
	Directory DirectoryConfig `toml:"directory"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type ChannelsConfig struct {
	SMS      TwilioConfig   `toml:"sms"`
	WhatsApp TwilioConfig   `toml:"whatsapp"`
	Telegram TelegramConfig `toml:"telegram"`
	Email    EmailConfig    `toml:"email"`
	IMessage IMessageConfig `toml:"imessage"`
}

// TwilioConfig covers the SMS and WhatsApp gateway channels; both ride the
// same provider account.
type TwilioConfig struct {
	AccountSID  string `toml:"account_sid"`
	AuthToken   string `toml:"auth_token"`
	VerifyToken string `toml:"verify_token"`
}

func (c TwilioConfig) Enabled() bool {
	return c.AuthToken != ""
}

type TelegramConfig struct {
	SecretToken string `toml:"secret_token"`
}

func (c TelegramConfig) Enabled() bool {
	return c.SecretToken != ""
}

type EmailConfig struct {
	VerificationKey string `toml:"verification_key"`
	SigningKey      string `toml:"signing_key"`
}

func (c EmailConfig) Enabled() bool {
	return c.VerificationKey != "" || c.SigningKey != ""
}

type IMessageConfig struct {
	PublicKeyPEM string `toml:"public_key_pem"`
}

func (c IMessageConfig) Enabled() bool {
	return c.PublicKeyPEM != ""
}

type DirectoryConfig struct {
	Users []DirectoryUser `toml:"users"`
}

// DirectoryUser binds one provider-native address to an internal user id.
type DirectoryUser struct {
	Channel string `toml:"channel" validate:"required"`
	Address string `toml:"address" validate:"required"`
	UserID  string `toml:"user_id" validate:"required"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
