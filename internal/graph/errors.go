// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package graph

import (
	"github.com/samber/oops"
)

// Error is one entry of a GraphQL response's errors list.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is a GraphQL response body.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []*Error       `json:"errors,omitempty"`
}

// statusFor maps an error's code to the numeric code carried in the
// error extensions. Anything uncoded or unknown is a 500.
func statusFor(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 500
	}
	switch oopsErr.Code() {
	case "NOT_FOUND":
		return 404
	case "UNAUTHORIZED":
		return 401
	case "FORBIDDEN":
		return 403
	case "BAD_REQUEST":
		return 400
	default:
		return 500
	}
}

// fieldError wraps a resolver failure for one root field. Internal
// errors keep their detail out of the response body; coded client
// errors surface their message.
func fieldError(path string, err error) *Error {
	status := statusFor(err)
	msg := err.Error()
	if status == 500 {
		msg = "internal error"
	}
	return &Error{
		Message:    msg,
		Path:       []any{path},
		Extensions: map[string]any{"code": status},
	}
}
