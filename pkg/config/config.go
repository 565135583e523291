package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Timezone is the civil timezone providers report in. Explicit
	// configuration, never process-global state: accounts differ.
	Timezone string        `yaml:"timezone"`
	Ovo      OvoConfig     `yaml:"ovo"`
	TPLink   TPLinkConfig  `yaml:"tplink"`
	Channels ChannelConfig `yaml:"channels"`
	Pricing  PricingConfig `yaml:"pricing"`
	Fetch    FetchConfig   `yaml:"fetch"`
}

type OvoConfig struct {
	AccountID string `yaml:"account_id"`
}

type TPLinkConfig struct {
	GatewayURL string         `yaml:"gateway_url"`
	Devices    []DeviceConfig `yaml:"devices"`
}

// DeviceConfig names one smart plug. Channel is the report label; ThingName
// is the cloud-side device identifier.
type DeviceConfig struct {
	Channel   string `yaml:"channel"`
	ThingName string `yaml:"thing_name"`
}

// ChannelConfig maps raw provider channels onto the reconciliation roles.
// Which register is the gross metered total is deployment configuration.
type ChannelConfig struct {
	Gross    string             `yaml:"gross"`
	Known    []string           `yaml:"known"` // defaults to every device channel
	Residual string             `yaml:"residual"`
	Rename   map[string]string  `yaml:"rename"`
	Offsets  map[string]float64 `yaml:"offsets"` // constant kWh per bucket
}

type PricingConfig struct {
	Rates map[string]float64 `yaml:"rates"` // $/kWh per report channel
	MCP   MCPPricingConfig   `yaml:"mcp"`
}

type MCPPricingConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type FetchConfig struct {
	LookbackDays   int    `yaml:"lookback_days"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Granularity    string `yaml:"granularity"` // hourly or daily
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := *DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Fetch.LookbackDays <= 0 {
		cfg.Fetch.LookbackDays = 30
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 300
	}
	if cfg.Fetch.Granularity == "" {
		cfg.Fetch.Granularity = "hourly"
	}
	if cfg.Channels.Residual == "" {
		cfg.Channels.Residual = "Unknown"
	}

	return &cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Timezone: "Australia/Brisbane",
		Channels: ChannelConfig{
			Gross:    "E1",
			Residual: "Unknown",
			Rename:   map[string]string{"E2": "CL2"},
		},
		Pricing: PricingConfig{
			Rates: map[string]float64{},
		},
		Fetch: FetchConfig{
			LookbackDays:   30,
			TimeoutSeconds: 300,
			Granularity:    "hourly",
		},
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// BucketSeconds maps the configured granularity to a bucket size.
func (c *Config) BucketSeconds() (int64, error) {
	switch c.Fetch.Granularity {
	case "hourly":
		return 3600, nil
	case "daily":
		return 86400, nil
	default:
		return 0, fmt.Errorf("invalid granularity %q (expected: hourly or daily)", c.Fetch.Granularity)
	}
}

// Credentials are only ever read from the environment (or a .env file
// loaded at startup); they have no place in config.yaml.
type Credentials struct {
	OvoUsername    string
	OvoPassword    string
	OvoAccountID   string
	TPLinkUsername string
	TPLinkPassword string
}

// CredentialsFromEnv reads provider credentials, failing on the first
// missing variable. The OVO account id may come from config instead.
func CredentialsFromEnv(cfg *Config) (Credentials, error) {
	creds := Credentials{
		OvoUsername:    os.Getenv("OVO_USERNAME"),
		OvoPassword:    os.Getenv("OVO_PASSWORD"),
		OvoAccountID:   os.Getenv("OVO_ACCOUNT_ID"),
		TPLinkUsername: os.Getenv("TAPO_USERNAME"),
		TPLinkPassword: os.Getenv("TAPO_PASSWORD"),
	}
	if creds.OvoAccountID == "" {
		creds.OvoAccountID = cfg.Ovo.AccountID
	}

	switch {
	case creds.OvoUsername == "":
		return creds, fmt.Errorf("OVO_USERNAME is not set")
	case creds.OvoPassword == "":
		return creds, fmt.Errorf("OVO_PASSWORD is not set")
	case creds.OvoAccountID == "":
		return creds, fmt.Errorf("OVO_ACCOUNT_ID is not set and ovo.account_id is empty in config")
	case creds.TPLinkUsername == "":
		return creds, fmt.Errorf("TAPO_USERNAME is not set")
	case creds.TPLinkPassword == "":
		return creds, fmt.Errorf("TAPO_PASSWORD is not set")
	}
	return creds, nil
}
