// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package graph

import (
	"sync"

	"github.com/didpoop/didpoop/internal/loader"
	"github.com/didpoop/didpoop/internal/model"
)

// RequestContext carries the per-request state resolvers need: the
// authenticated identity (nil when anonymous), a fresh loader bundle,
// and the Set-Cookie values accumulated by auth mutations. One is built
// per HTTP request and discarded with it.
type RequestContext struct {
	User    *model.User
	Loaders *loader.Loaders

	mu      sync.Mutex
	cookies []string
}

// NewRequestContext builds the request state. user may be nil.
func NewRequestContext(user *model.User, loaders *loader.Loaders) *RequestContext {
	return &RequestContext{User: user, Loaders: loaders}
}

// AddCookie records a Set-Cookie value to emit with the response.
// Safe for concurrent resolvers.
func (rc *RequestContext) AddCookie(value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cookies = append(rc.cookies, value)
}

// Cookies returns the accumulated Set-Cookie values in the order they
// were added.
func (rc *RequestContext) Cookies() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.cookies...)
}
