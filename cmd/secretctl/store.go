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
	"github.com/spf13/cobra"

	"github.com/sage-x-project/secretd/pkg/secretservice"
)

func newStoreCmd() *cobra.Command {
	var attrFlags []string
	var label, value, contentType string
	var session bool

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a secret under the given attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttrs(attrFlags)
			if err != nil {
				return err
			}

			storage, err := secretservice.Default()
			if err != nil {
				return err
			}

			collection := secretservice.DefaultCollection
			if session {
				collection = secretservice.SessionCollection
			}

			return storage.Store(cmd.Context(), nil, attrs, collection, label, &secretservice.SecretValue{
				Bytes:       []byte(value),
				ContentType: contentType,
			})
		},
	}

	cmd.Flags().StringArrayVar(&attrFlags, "attr", nil, "attribute as key=value (repeatable)")
	cmd.Flags().StringVar(&label, "label", "", "human-readable label")
	cmd.Flags().StringVar(&value, "value", "", "secret value")
	cmd.Flags().StringVar(&contentType, "content-type", "text/plain", "content type of the value")
	cmd.Flags().BoolVar(&session, "session", false, "store in the ephemeral session collection instead of the default one")

	return cmd
}
