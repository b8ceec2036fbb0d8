package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultJWTExpiresIn    = "24h"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "structmail"
	DefaultPGSSLMode       = "disable"
	DefaultExtractorPath   = "bin/kitinerary-extractor"
	DefaultDispatchTimeout = 15
	DefaultRefreshInterval = 1
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Admin      AdminConfig      `toml:"admin"`
	Auth       AuthConfig       `toml:"auth"`
	Postgres   PostgresConfig   `toml:"postgres"`
	IMAP       IMAPConfig       `toml:"imap"`
	Delivery   DeliveryConfig   `toml:"delivery"`
	Extractor  ExtractorConfig  `toml:"extractor"`
	Dispatch   DispatchConfig   `toml:"dispatch"`
	Folders    FoldersConfig    `toml:"folders"`
	Live       LiveConfig       `toml:"live"`
	Structured StructuredConfig `toml:"structured"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type IMAPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security"`
}

// DeliveryConfig selects the outbound mail provider used for
// programmatic action replies and promoted compose bodies.
type DeliveryConfig struct {
	Provider string        `toml:"provider"`
	From     string        `toml:"from"`
	SMTP     SMTPConfig    `toml:"smtp"`
	Mailgun  MailgunConfig `toml:"mailgun"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security"`
}

type MailgunConfig struct {
	Domain string `toml:"domain"`
	APIKey string `toml:"api_key"`
	Region string `toml:"region"`
}

// ExtractorConfig controls the subprocess fallback for messages whose
// structured data is not embedded inline.
type ExtractorConfig struct {
	BinaryPath     string   `toml:"binary_path"`
	TrustedDomains []string `toml:"trusted_domains"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

func (c ExtractorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type DispatchConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

func (c DispatchConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultDispatchTimeout * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type FoldersConfig struct {
	Special []string `toml:"special"`
}

type LiveConfig struct {
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
}

func (c LiveConfig) Interval() time.Duration {
	if c.RefreshIntervalSeconds <= 0 {
		return DefaultRefreshInterval * time.Second
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

type StructuredConfig struct {
	ShowForTrustedSenders    bool `toml:"show_for_trusted_senders"`
	AllowRemoteURLExtraction bool `toml:"allow_remote_url_extraction"`
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
		Admin: AdminConfig{
			Username: "admin",
			Password: "change-your-password-here",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		IMAP: IMAPConfig{
			Port:     993,
			Security: "tls",
		},
		Delivery: DeliveryConfig{
			Provider: "smtp",
			SMTP: SMTPConfig{
				Port:     587,
				Security: "starttls",
			},
			Mailgun: MailgunConfig{
				Region: "us",
			},
		},
		Extractor: ExtractorConfig{
			BinaryPath:     DefaultExtractorPath,
			TimeoutSeconds: 10,
		},
		Dispatch: DispatchConfig{
			TimeoutSeconds: DefaultDispatchTimeout,
		},
		Folders: FoldersConfig{
			Special: []string{"sent", "drafts", "trash", "junk"},
		},
		Live: LiveConfig{
			RefreshIntervalSeconds: DefaultRefreshInterval,
		},
		Structured: StructuredConfig{
			ShowForTrustedSenders:    true,
			AllowRemoteURLExtraction: true,
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

	return cfg, nil
}
