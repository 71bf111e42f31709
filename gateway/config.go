/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/PivotLLM/GatewayAuth/global"
)

// Defaults for gateway configuration
const (
	DefaultClientID             = "gateway-cli"
	DefaultDeviceCodePath       = "/api/device/code"
	DefaultTokenPath            = "/api/device/token"
	DefaultProfilePath          = "/api/profile"
	DefaultNotificationsPath    = "/api/notifications"
	DefaultProfileEmailQuery    = ".email"
	DefaultNotificationsTimeout = 5 * time.Second
	DefaultPollInterval         = 5 * time.Second
	DefaultExpiresIn            = 900 * time.Second
	DefaultHTTPTimeout          = 30 * time.Second
)

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// Config holds the gateway endpoints and client settings
type Config struct {
	BaseURL                 string        `json:"baseURL"`
	ClientID                string        `json:"clientId"`
	Scopes                  []string      `json:"scopes,omitempty"`
	DeviceCodePath          string        `json:"deviceCodePath,omitempty"`
	TokenPath               string        `json:"tokenPath,omitempty"`
	ProfilePath             string        `json:"profilePath,omitempty"`
	NotificationsPath       string        `json:"notificationsPath,omitempty"`
	ProfileEmailQuery       string        `json:"profileEmailQuery,omitempty"`
	DataPath                string        `json:"dataPath,omitempty"`
	NotificationsTimeout    time.Duration `json:"-"`
	NotificationsTimeoutStr string        `json:"notificationsTimeout,omitempty"`
	DefaultPollInterval     time.Duration `json:"-"`
	DefaultPollIntervalStr  string        `json:"defaultPollInterval,omitempty"`
	DefaultExpiresIn        time.Duration `json:"-"`
	DefaultExpiresInStr     string        `json:"defaultExpiresIn,omitempty"`
	HTTPTimeout             time.Duration `json:"-"`
	HTTPTimeoutStr          string        `json:"httpTimeout,omitempty"`
	ConfigPath              string        `json:"-"`
}

// DefaultConfig returns a configuration with every optional field populated
func DefaultConfig(baseURL string) *Config {
	c := &Config{BaseURL: baseURL}
	c.applyDefaults()
	return c
}

// UnmarshalJSON implements custom JSON unmarshaling for Config
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	durations := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"notificationsTimeout", c.NotificationsTimeoutStr, &c.NotificationsTimeout},
		{"defaultPollInterval", c.DefaultPollIntervalStr, &c.DefaultPollInterval},
		{"defaultExpiresIn", c.DefaultExpiresInStr, &c.DefaultExpiresIn},
		{"httpTimeout", c.HTTPTimeoutStr, &c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		duration, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s duration '%s': %w", d.name, d.value, err)
		}
		*d.dest = duration
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.DeviceCodePath == "" {
		c.DeviceCodePath = DefaultDeviceCodePath
	}
	if c.TokenPath == "" {
		c.TokenPath = DefaultTokenPath
	}
	if c.ProfilePath == "" {
		c.ProfilePath = DefaultProfilePath
	}
	if c.NotificationsPath == "" {
		c.NotificationsPath = DefaultNotificationsPath
	}
	if c.ProfileEmailQuery == "" {
		c.ProfileEmailQuery = DefaultProfileEmailQuery
	}
	if c.NotificationsTimeout <= 0 {
		c.NotificationsTimeout = DefaultNotificationsTimeout
	}
	if c.DefaultPollInterval <= 0 {
		c.DefaultPollInterval = DefaultPollInterval
	}
	if c.DefaultExpiresIn <= 0 {
		c.DefaultExpiresIn = DefaultExpiresIn
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, NewConfigurationError("file",
			fmt.Sprintf("failed to read config file %s", filePath), err)
	}

	return LoadConfigFromJSON(data, filePath)
}

// LoadConfigFromJSONWithLogger loads configuration from JSON data with logging support
func LoadConfigFromJSONWithLogger(data []byte, configPath string, logger global.Logger) (*Config, error) {
	if logger != nil {
		logger.Infof("Loading gateway configuration from %s", configPath)
	}

	var config Config
	if err := json.Unmarshal(ExpandEnvironmentVariables(data), &config); err != nil {
		if logger != nil {
			logger.Errorf("Failed to parse JSON configuration: %v", err)
		}
		return nil, NewConfigurationError("json", "failed to parse JSON configuration", err)
	}

	config.ConfigPath = configPath

	if err := config.ValidateWithLogger(logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Debugf("Gateway %s, client %s, device endpoint %s",
			config.BaseURL, config.ClientID, config.DeviceCodePath)
	}

	return &config, nil
}

// LoadConfigFromJSON loads configuration from JSON data
func LoadConfigFromJSON(data []byte, configPath string) (*Config, error) {
	return LoadConfigFromJSONWithLogger(data, configPath, nil)
}

// ValidateWithLogger validates the configuration with logging support
func (c *Config) ValidateWithLogger(logger global.Logger) error {
	if err := validateHTTPURL(c.BaseURL); err != nil {
		if logger != nil {
			logger.Errorf("Configuration validation failed: baseURL %q: %v", c.BaseURL, err)
		}
		return NewConfigurationError("baseURL", "baseURL must be an absolute http(s) URL", err)
	}

	if strings.TrimSpace(c.ClientID) == "" {
		if logger != nil {
			logger.Error("Configuration validation failed: clientId is empty")
		}
		return NewConfigurationError("clientId", "clientId is required", nil)
	}

	for name, path := range map[string]string{
		"deviceCodePath":    c.DeviceCodePath,
		"tokenPath":         c.TokenPath,
		"profilePath":       c.ProfilePath,
		"notificationsPath": c.NotificationsPath,
	} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return NewConfigurationError(name, "endpoint paths must start with '/'", nil)
		}
	}

	if _, err := gojq.Parse(c.ProfileEmailQuery); err != nil {
		return NewConfigurationError("profileEmailQuery", "invalid jq expression", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return c.ValidateWithLogger(nil)
}

// DeviceCodeURL returns the absolute device-code endpoint
func (c *Config) DeviceCodeURL() string {
	return joinURL(c.BaseURL, c.DeviceCodePath)
}

// TokenURL returns the absolute token endpoint
func (c *Config) TokenURL() string {
	return joinURL(c.BaseURL, c.TokenPath)
}

// ProfileURL returns the profile endpoint of the gateway that issued token
func (c *Config) ProfileURL(token string) string {
	return joinURL(ExtractBaseURL(c.BaseURL, token), c.ProfilePath)
}

// NotificationsURL returns the notifications endpoint of the gateway that issued token
func (c *Config) NotificationsURL(token string) string {
	return joinURL(ExtractBaseURL(c.BaseURL, token), c.NotificationsPath)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// ExpandEnvironmentVariables expands ${VAR_NAME} and ${VAR_NAME:default} patterns in JSON data
func ExpandEnvironmentVariables(data []byte) []byte {
	result := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		matches := envPattern.FindStringSubmatch(match)
		if len(matches) < 2 {
			return match
		}

		if value := os.Getenv(matches[1]); value != "" {
			return value
		}

		// An empty default still counts as a default
		if strings.Contains(match, ":") {
			return matches[2]
		}

		return match
	})

	return []byte(result)
}
