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
	"strconv"
	"strings"

	"github.com/sage-x-project/secretd/pkg/secretdctx"
)

// AttributeKind names the permitted shapes of an attribute value.
type AttributeKind int

const (
	KindString AttributeKind = iota
	KindInteger
	KindBoolean
)

// Schema describes the attribute names a caller may use with Store,
// Lookup, Clear and Search, and the kind each value must take. AllowOther
// permits attribute names not listed, matching an "open" schema.
type Schema struct {
	Name       string
	Attributes map[string]AttributeKind
	AllowOther bool
}

// Validate checks attrs against the schema: every named attribute must
// match its declared kind, unlisted names are rejected unless the
// schema is open, and no value may be empty or contain a NUL byte.
func (s *Schema) Validate(attrs map[string]string) error {
	for name, value := range attrs {
		if value == "" || strings.ContainsRune(value, 0) {
			return secretdctx.New(secretdctx.InvalidArgument, "schema.validate", "attribute value is empty or contains NUL: "+name)
		}

		kind, known := s.Attributes[name]
		if !known {
			if !s.AllowOther {
				return secretdctx.New(secretdctx.InvalidArgument, "schema.validate", "unknown attribute: "+name)
			}
			continue
		}

		switch kind {
		case KindInteger:
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				return secretdctx.New(secretdctx.InvalidArgument, "schema.validate", "attribute is not an integer: "+name)
			}
		case KindBoolean:
			if value != "true" && value != "false" {
				return secretdctx.New(secretdctx.InvalidArgument, "schema.validate", "attribute is not a boolean: "+name)
			}
		case KindString:
			// any non-empty, NUL-free UTF-8 string is valid.
		}
	}
	return nil
}
