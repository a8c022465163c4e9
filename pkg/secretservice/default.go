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

package secretservice

import (
	"os"
	"sync"

	"github.com/sage-x-project/secretd/config"
	"github.com/sage-x-project/secretd/internal/secmem"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
	"github.com/sage-x-project/secretd/pkg/keyring"
	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

var (
	defaultMu   sync.Mutex
	defaultInst *Storage
)

// passwordEnvVar and pathEnvVar name the default environment variables
// the loaded SecretdConfig points at; tests override them via t.Setenv.
const (
	passwordEnvVar = "SECRET_STORAGE_PASSWORD"
	pathEnvVar     = "SECRET_STORAGE_PATH"
)

// Default returns the process-wide Storage instance, opening it on first
// call from the environment variables named by the loaded SecretdConfig
// (SECRET_STORAGE_PASSWORD / SECRET_STORAGE_PATH by default). It also
// bootstraps the process-wide secure allocator (internal/secmem) and the
// keyring package's PBKDF2 round count from the same config, since this
// is the one place every secretd entrypoint calls before touching key
// material.
func Default() (*Storage, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultInst != nil {
		return defaultInst, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, secretdctx.Wrap(secretdctx.IO, "secretservice.default", "load config", err)
	}

	secmem.SetForceFallback(cfg.Secretd.ForceFallback)
	secmem.SetMinBlockSize(cfg.Secretd.AllocatorBlockSize)
	if cfg.Secretd.PBKDF2Iterations > 0 {
		keyring.DefaultIterations = cfg.Secretd.PBKDF2Iterations
	}

	password := os.Getenv(cfg.Secretd.PasswordEnv)
	if password == "" {
		return nil, secretdctx.New(secretdctx.InvalidArgument, "secretservice.default", cfg.Secretd.PasswordEnv+" is not set")
	}
	path := cfg.Secretd.StoragePath

	s, err := Open(cryptobackend.Default(), path, []byte(password))
	if err != nil {
		return nil, err
	}
	defaultInst = s
	return defaultInst, nil
}

// ResetDefaultForTest drops the process-wide singleton so the next call
// to Default re-opens from the current environment. Tests only.
func ResetDefaultForTest() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultInst = nil
}
