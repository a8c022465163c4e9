// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads the ambient settings that govern the secure
// allocator, keyring file format, and DH session transport: logging,
// metrics, and the on-disk storage location and master-password source.
package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Secretd     *SecretdConfig  `yaml:"secretd" json:"secretd"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// SecretdConfig holds settings for the keyring/JWE storage engine and the
// secure allocator it builds on.
type SecretdConfig struct {
	// StoragePath is the JWE storage file (see SECRET_STORAGE_PATH).
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	// PasswordEnv names the environment variable holding the master
	// password (default SECRET_STORAGE_PASSWORD).
	PasswordEnv string `yaml:"password_env" json:"password_env"`
	// PBKDF2Iterations is the iteration count used for new keyring files.
	PBKDF2Iterations int `yaml:"pbkdf2_iterations" json:"pbkdf2_iterations"`
	// AllocatorBlockSize is the minimum mmap'd block size for the secure
	// allocator, rounded up to a page boundary at allocation time.
	AllocatorBlockSize int `yaml:"allocator_block_size" json:"allocator_block_size"`
	// ForceFallback disables secure (mlock'd) allocation unconditionally;
	// mirrors SECMEM_FORCE_FALLBACK for use from a config file in tests.
	ForceFallback bool `yaml:"force_fallback" json:"force_fallback"`
	// DHGroup is the IANA MODP group name used for session handshakes
	// (default "modp1024", i.e. IKE group 2).
	DHGroup string `yaml:"dh_group" json:"dh_group"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing format by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) >= 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration, mirroring the documented
// environment-variable defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Secretd == nil {
		cfg.Secretd = &SecretdConfig{}
	}
	if cfg.Secretd.PasswordEnv == "" {
		cfg.Secretd.PasswordEnv = "SECRET_STORAGE_PASSWORD"
	}
	if cfg.Secretd.PBKDF2Iterations == 0 {
		cfg.Secretd.PBKDF2Iterations = 100000
	}
	if cfg.Secretd.AllocatorBlockSize == 0 {
		cfg.Secretd.AllocatorBlockSize = 16384
	}
	if cfg.Secretd.DHGroup == "" {
		cfg.Secretd.DHGroup = "modp1024"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// parseBoolEnv is a small helper shared by env.go's override logic.
func parseBoolEnv(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
