// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package graph executes GraphQL requests against the didpoop schema.
// The schema is fixed and embedded; gqlparser handles parsing and
// validation, and a small executor resolves selection sets through the
// per-request loaders.
package graph

import (
	_ "embed"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaSDL string

// Schema is the parsed didpoop schema, validated at init.
var Schema = gqlparser.MustLoadSchema(&ast.Source{
	Name:  "schema.graphql",
	Input: schemaSDL,
})
