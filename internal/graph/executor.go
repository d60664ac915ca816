// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package graph

import (
	"context"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
)

// Request is the body of a GraphQL HTTP request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Executor parses, validates, and resolves requests against the
// embedded schema. Safe for concurrent use; all per-request state lives
// in the RequestContext.
type Executor struct {
	resolver *Resolver
}

// NewExecutor builds an executor over the resolver set.
func NewExecutor(r *Resolver) *Executor {
	return &Executor{resolver: r}
}

// Execute runs one request. Parse and validation failures, and any
// resolver failure, surface in the response errors list; every root
// field in this schema is non-nullable, so a failed field nulls the
// whole data object.
func (e *Executor) Execute(ctx context.Context, rc *RequestContext, req Request) *Response {
	doc, listErr := gqlparser.LoadQuery(Schema, req.Query)
	if len(listErr) > 0 {
		resp := &Response{}
		for _, gerr := range listErr {
			resp.Errors = append(resp.Errors, &Error{
				Message:    gerr.Message,
				Extensions: map[string]any{"code": 400},
			})
		}
		return resp
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &Response{Errors: []*Error{{
			Message:    "operation not found",
			Extensions: map[string]any{"code": 400},
		}}}
	}

	vars, verr := validator.VariableValues(Schema, op, req.Variables)
	if verr != nil {
		return &Response{Errors: []*Error{{
			Message:    verr.Error(),
			Extensions: map[string]any{"code": 400},
		}}}
	}

	switch op.Operation {
	case ast.Query:
		return e.executeQuery(ctx, rc, op, vars)
	case ast.Mutation:
		return e.executeMutation(ctx, rc, op, vars)
	default:
		return &Response{Errors: []*Error{{
			Message:    "unsupported operation",
			Extensions: map[string]any{"code": 400},
		}}}
	}
}

// executeQuery resolves root fields concurrently. Sibling fields share
// the request's loaders, so their relation lookups coalesce into shared
// batches.
func (e *Executor) executeQuery(ctx context.Context, rc *RequestContext, op *ast.OperationDefinition, vars map[string]any) *Response {
	fields := collectFields(op.SelectionSet)
	results := make([]any, len(fields))
	errs := make([]error, len(fields))

	var wg sync.WaitGroup
	for i, f := range fields {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.resolver.resolveQueryField(ctx, rc, f, vars)
		}()
	}
	wg.Wait()

	resp := &Response{Data: make(map[string]any, len(fields))}
	for i, f := range fields {
		if errs[i] != nil {
			resp.Errors = append(resp.Errors, fieldError(f.Alias, errs[i]))
			continue
		}
		resp.Data[f.Alias] = results[i]
	}
	if len(resp.Errors) > 0 {
		resp.Data = nil
	}
	return resp
}

// executeMutation resolves root fields serially, top to bottom, and
// stops at the first failure.
func (e *Executor) executeMutation(ctx context.Context, rc *RequestContext, op *ast.OperationDefinition, vars map[string]any) *Response {
	resp := &Response{Data: make(map[string]any)}
	for _, f := range collectFields(op.SelectionSet) {
		v, err := e.resolver.resolveMutationField(ctx, rc, f, vars)
		if err != nil {
			resp.Errors = append(resp.Errors, fieldError(f.Alias, err))
			resp.Data = nil
			return resp
		}
		resp.Data[f.Alias] = v
	}
	return resp
}
