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

func newClearCmd() *cobra.Command {
	var attrFlags []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every secret matching the given attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttrs(attrFlags)
			if err != nil {
				return err
			}

			storage, err := secretservice.Default()
			if err != nil {
				return err
			}

			removed, err := storage.Clear(cmd.Context(), nil, attrs)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no secret found for the given attributes")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&attrFlags, "attr", nil, "attribute as key=value (repeatable)")

	return cmd
}
