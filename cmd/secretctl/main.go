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

// Command secretctl is a thin CLI over pkg/secretservice: store, lookup,
// clear and search secrets in the local encrypted keyring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "secretctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "secretctl",
		Short: "Manage secrets in the local encrypted keyring",
		Long: "secretctl stores, looks up, clears and searches credentials kept\n" +
			"in an HKDF/AES-GCM-encrypted (JWE) file on disk, driven by the\n" +
			"SECRET_STORAGE_PASSWORD and SECRET_STORAGE_PATH environment variables.",
		SilenceUsage: true,
	}

	root.AddCommand(newStoreCmd())
	root.AddCommand(newLookupCmd())
	root.AddCommand(newClearCmd())
	root.AddCommand(newSearchCmd())

	return root
}
