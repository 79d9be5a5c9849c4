// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package requestid tags each HTTP request with an ID for log correlation.
// A client-supplied X-Request-Id header is honored; otherwise one is
// generated. The ID is echoed back in the response.
package requestid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/nbcin/polder/http/headers"
)

type contextKey struct{}

// maxLen is the longest client-supplied ID that is honored.
const maxLen = 200

// Middleware attaches a request ID to the Context of every request passed to
// the wrapped handler.
type Middleware struct {
	Wrap http.Handler
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(headers.XRequestID)
	if id == "" || len(id) > maxLen {
		id = newID()
	}
	w.Header().Set(headers.XRequestID, id)
	m.Wrap.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
}

// NewContext returns a copy of ctx that carries the request ID.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ContextID returns the request ID stored in the Context or the empty string
// if the Context did not come from Middleware.
func ContextID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func newID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
