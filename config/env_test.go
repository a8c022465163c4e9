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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("SECRETD_TEST_VAR", "resolved")
	defer os.Unsetenv("SECRETD_TEST_VAR")

	assert.Equal(t, "resolved", SubstituteEnvVars("${SECRETD_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${SECRETD_UNSET_VAR:fallback}"))
	assert.Equal(t, "plain", SubstituteEnvVars("plain"))
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("SECRETD_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())

	os.Setenv("SECRETD_ENV", "PRODUCTION")
	defer os.Unsetenv("SECRETD_ENV")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())
}

func TestForceFallback(t *testing.T) {
	os.Unsetenv("SECMEM_FORCE_FALLBACK")
	assert.False(t, ForceFallback())

	os.Setenv("SECMEM_FORCE_FALLBACK", "1")
	defer os.Unsetenv("SECMEM_FORCE_FALLBACK")
	assert.True(t, ForceFallback())
}

func TestDefaultStoragePath(t *testing.T) {
	os.Setenv("XDG_DATA_HOME", "/tmp/xdgtest")
	defer os.Unsetenv("XDG_DATA_HOME")

	assert.Equal(t, "/tmp/xdgtest/keyrings/default.jwe", DefaultStoragePath())
}
