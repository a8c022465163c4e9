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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/secretd/pkg/secretservice"
)

func newSearchCmd() *cobra.Command {
	var attrFlags []string
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List every secret whose attributes are a superset of the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttrs(attrFlags)
			if err != nil {
				return err
			}

			storage, err := secretservice.Default()
			if err != nil {
				return err
			}

			results, err := storage.Search(cmd.Context(), nil, attrs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s\t%v\n", r.Label(), r.Attributes())
				if showSecrets {
					secret, err := r.RetrieveSecret(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\t%s\n", string(secret.Bytes))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&attrFlags, "attr", nil, "attribute as key=value (repeatable)")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "also decrypt and print matched secret values")

	return cmd
}
