/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/PivotLLM/GatewayAuth/gateway"
	"github.com/PivotLLM/GatewayAuth/global"
)

// Manager builds the gateway configuration from one or more JSON files.
// Top-level keys of later files override those of earlier files.
type Manager struct {
	configFiles []string          // List of config files to load
	baseURL     string            // Used when no file sets baseURL
	settings    map[string]any    // Merged top-level settings
	origins     map[string]string // Setting name to the file that provided it
	config      *gateway.Config
	logger      global.Logger
	mu          sync.RWMutex
}

// Option defines a function type for configuring the Manager
type Option func(*Manager)

// WithLogger sets the logger for the config manager
func WithLogger(logger global.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithConfigFiles sets the configuration files to load
func WithConfigFiles(files ...string) Option {
	return func(m *Manager) {
		m.configFiles = files
	}
}

// WithDefaultBaseURL sets the gateway URL used when no file provides one
func WithDefaultBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = baseURL
	}
}

// New creates a new config manager instance
func New(options ...Option) *Manager {
	m := &Manager{
		settings:    make(map[string]any),
		origins:     make(map[string]string),
		configFiles: []string{},
	}

	// Apply options
	for _, option := range options {
		option(m)
	}

	return m
}

// LoadConfigs loads all configured files, merges them and validates the result
func (m *Manager) LoadConfigs() (*gateway.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = make(map[string]any)
	m.origins = make(map[string]string)

	if len(m.configFiles) == 0 && m.logger != nil {
		m.logger.Debug("No configuration files specified, using defaults")
	}

	for _, configFile := range m.configFiles {
		if m.logger != nil {
			m.logger.Infof("Loading configuration file: %s", configFile)
		}
		if err := m.loadAndMerge(configFile); err != nil {
			if m.logger != nil {
				m.logger.Errorf("Failed to load config %s: %v", configFile, err)
			}
			return nil, err
		}
	}

	if _, ok := m.settings["baseURL"]; !ok && m.baseURL != "" {
		m.settings["baseURL"] = m.baseURL
		m.origins["baseURL"] = "default"
	}

	merged, err := json.Marshal(m.settings)
	if err != nil {
		return nil, gateway.NewConfigurationError("json", "failed to merge configuration", err)
	}

	source := "defaults"
	if len(m.configFiles) > 0 {
		source = m.configFiles[len(m.configFiles)-1]
	}

	cfg, err := gateway.LoadConfigFromJSONWithLogger(merged, source, m.logger)
	if err != nil {
		return nil, err
	}

	if m.logger != nil {
		m.logger.Infof("Loaded %d settings from %d config files", len(m.settings), len(m.configFiles))
	}

	m.config = cfg
	return cfg, nil
}

// loadAndMerge reads one file and merges its top-level settings
func (m *Manager) loadAndMerge(configFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return gateway.NewConfigurationError("file",
			fmt.Sprintf("failed to read config file %s", configFile), err)
	}

	var settings map[string]any
	if err := json.Unmarshal(gateway.ExpandEnvironmentVariables(data), &settings); err != nil {
		return gateway.NewConfigurationError("json",
			fmt.Sprintf("failed to parse config file %s", configFile), err)
	}

	for key, value := range settings {
		if previous, exists := m.origins[key]; exists && m.logger != nil {
			m.logger.Debugf("Setting '%s' from %s overrides %s", key, configFile, previous)
		}
		m.settings[key] = value
		m.origins[key] = configFile
	}

	return nil
}

// Config returns the configuration produced by the last successful LoadConfigs
func (m *Manager) Config() *gateway.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Origin returns the file that provided setting, or "" when it is not set
func (m *Manager) Origin(setting string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.origins[setting]
}

// SettingNames returns the names of all merged settings in sorted order
func (m *Manager) SettingNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.settings))
}
