// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package auth

import "fmt"

// CookieSettings carries the attributes stamped on every session
// cookie. Secure is present unless explicitly disabled for local dev.
type CookieSettings struct {
	Name      string
	Domain    string
	Secure    bool
	MaxAgeSec int
}

// FormatSetCookie renders the Set-Cookie header value carrying the raw
// token (or a logout marker). The attribute set is fixed: HttpOnly,
// SameSite=Lax, Path=/ always; Secure unless disabled.
func (c CookieSettings) FormatSetCookie(value string) string {
	secure := ""
	if c.Secure {
		secure = "Secure; "
	}
	return fmt.Sprintf("%s=%s; Domain=%s; %sHttpOnly; Max-Age=%d; SameSite=Lax; Path=/",
		c.Name, value, c.Domain, secure, c.MaxAgeSec)
}
