// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	content := `
environment: staging
secretd:
  storage_path: /tmp/secrets.jwe
  pbkdf2_iterations: 200000
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "/tmp/secrets.jwe", cfg.Secretd.StoragePath)
	assert.Equal(t, 200000, cfg.Secretd.PBKDF2Iterations)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Defaults fill in untouched fields.
	assert.Equal(t, "SECRET_STORAGE_PASSWORD", cfg.Secretd.PasswordEnv)
	assert.Equal(t, "modp1024", cfg.Secretd.DHGroup)
}

func TestLoadFromFileJSONFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `{"environment": "production", "secretd": {"storage_path": "/var/secrets.jwe"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "/var/secrets.jwe", cfg.Secretd.StoragePath)
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 100000, cfg.Secretd.PBKDF2Iterations)
	assert.Equal(t, 16384, cfg.Secretd.AllocatorBlockSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.yaml")

	cfg := &Config{
		Environment: "test",
		Secretd: &SecretdConfig{
			StoragePath:      "/tmp/x.jwe",
			PBKDF2Iterations: 150000,
		},
		Logging: &LoggingConfig{Level: "warn"},
		Metrics: &MetricsConfig{Enabled: true, Port: 9090},
	}
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Environment, loaded.Environment)
	assert.Equal(t, cfg.Secretd.StoragePath, loaded.Secretd.StoragePath)
	assert.Equal(t, cfg.Secretd.PBKDF2Iterations, loaded.Secretd.PBKDF2Iterations)
	assert.True(t, loaded.Metrics.Enabled)
}
