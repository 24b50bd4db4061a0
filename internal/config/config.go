package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type APIKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
	Role string `yaml:"role"`
}

type RecordingConfig struct {
	BasePath string `yaml:"base_path"`
}

// PBXConfig points at the telephony switch manager interface.
type PBXConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
}

// ExtensionRange is the numeric peer range polled for registration status.
type ExtensionRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type Config struct {
	ListenAddr     string          `yaml:"listen_addr"`
	DBDSN          string          `yaml:"db_dsn"`
	APIKeys        []APIKey        `yaml:"api_keys"`
	Recordings     RecordingConfig `yaml:"recordings"`
	PBX            PBXConfig       `yaml:"pbx"`
	Extensions     ExtensionRange  `yaml:"extensions"`
	WebhookToken   string          `yaml:"webhook_token"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.PBX.Port == 0 {
		cfg.PBX.Port = 5038
	}
	if cfg.Extensions.Start == 0 {
		cfg.Extensions.Start = 200
	}
	if cfg.Extensions.End == 0 {
		cfg.Extensions.End = 299
	}

	return &cfg, nil
}

// PBXAddr returns the host:port of the manager interface.
func (c *Config) PBXAddr() string {
	return fmt.Sprintf("%s:%d", c.PBX.Host, c.PBX.Port)
}
