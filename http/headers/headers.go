// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package headers provides constants for the HTTP headers used by the INI
// server.
package headers

// HTTP header constants, all in canonical format.
const (
	// Message body
	ContentType = "Content-Type"

	// Conditional requests
	ETag        = "Etag"
	IfMatch     = "If-Match"
	IfNoneMatch = "If-None-Match"

	// Errors
	RetryAfter = "Retry-After"

	// Tracing
	XRequestID = "X-Request-Id"
)

// X-Content-Type-Options header and its value.
// https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/X-Content-Type-Options
const (
	XContentTypeOptions = "X-Content-Type-Options"
	NoSniff             = "nosniff"
)

// Content types produced by the server.
const (
	JSON = "application/json; charset=utf-8"
	Text = "text/plain; charset=utf-8"
)
