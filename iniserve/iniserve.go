// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package iniserve exposes a single INI file over HTTP. Properties can be
// read, written, deleted, and renamed with JSON requests, and changes made by
// any process can be followed over a WebSocket.
//
// Routes:
//
//	GET    /dump
//	GET    /sections
//	GET    /sections/{section}
//	DELETE /sections/{section}
//	POST   /sections/{section}/rename          {"name": "..."}
//	GET    /sections/{section}/keys/{key}
//	PUT    /sections/{section}/keys/{key}      {"value": "..."}
//	DELETE /sections/{section}/keys/{key}
//	POST   /sections/{section}/keys/{key}/rename {"name": "..."}
//	GET    /watch
//
// Responses to GET requests on a key carry an ETag derived from the file's
// modification time and size. Mutations honor If-Match with such an ETag.
package iniserve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nbcin/polder/filelock"
	"github.com/nbcin/polder/http/headers"
	"github.com/nbcin/polder/ini"
	"github.com/nbcin/polder/requestid"
	"zombiezen.com/go/log"
)

// Default values for the zero Handler fields.
const (
	DefaultLockTimeout  = 5 * time.Second
	DefaultDebounce     = 100 * time.Millisecond
	DefaultPingInterval = 30 * time.Second
)

const maxBodySize = 1 << 20

// Handler serves the INI file at Path. Its exported fields must not be
// changed after the first request.
type Handler struct {
	Path    string
	Options *ini.Options

	// If Lock is true, mutations also hold the file's filelock so that they
	// are serialized with other processes that use it. Waiting for the lock
	// gives up after LockTimeout.
	Lock        bool
	LockTimeout time.Duration

	// Debounce coalesces change notifications sent to watchers.
	Debounce time.Duration
	// PingInterval is how often watchers are pinged.
	PingInterval time.Duration

	once sync.Once
	mux  http.Handler
	// mu serializes mutations made through this handler.
	mu sync.Mutex
}

func (h *Handler) init() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dump", h.dump)
	mux.HandleFunc("GET /sections", h.listSections)
	mux.HandleFunc("GET /sections/{section}", h.getSection)
	mux.HandleFunc("DELETE /sections/{section}", h.deleteSection)
	mux.HandleFunc("POST /sections/{section}/rename", h.renameSection)
	mux.HandleFunc("GET /sections/{section}/keys/{key}", h.getKey)
	mux.HandleFunc("PUT /sections/{section}/keys/{key}", h.putKey)
	mux.HandleFunc("DELETE /sections/{section}/keys/{key}", h.deleteKey)
	mux.HandleFunc("POST /sections/{section}/keys/{key}/rename", h.renameKey)
	mux.HandleFunc("GET /watch", h.watch)
	h.mux = &requestid.Middleware{Wrap: mux}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.init)
	w.Header().Set(headers.XContentTypeOptions, headers.NoSniff)
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) lockTimeout() time.Duration {
	if h.LockTimeout <= 0 {
		return DefaultLockTimeout
	}
	return h.LockTimeout
}

func (h *Handler) debounce() time.Duration {
	if h.Debounce <= 0 {
		return DefaultDebounce
	}
	return h.Debounce
}

func (h *Handler) pingInterval() time.Duration {
	if h.PingInterval <= 0 {
		return DefaultPingInterval
	}
	return h.PingInterval
}

// A Property is a single key-value pair in a section.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// A Section is the response body of GET /sections/{section}.
type Section struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// A KeyValue is the response body of GET on a key.
type KeyValue struct {
	Section string `json:"section"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

type putRequest struct {
	Value *string `json:"value"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// errBadRequest marks errors in the request body.
var errBadRequest = errors.New("bad request")

// errPreconditionFailed is returned when If-Match does not match the file.
var errPreconditionFailed = errors.New("file changed since it was read")

func (h *Handler) dump(w http.ResponseWriter, r *http.Request) {
	data, err := ini.Dump(r.Context(), h.Path, h.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	names, err := ini.Sections(r.Context(), h.Path, h.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, r, http.StatusOK, names)
}

func (h *Handler) getSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("section")
	keys, err := ini.Keys(ctx, h.Path, name, h.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := ini.Dump(ctx, h.Path, h.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sec := Section{Name: name, Properties: make([]Property, 0, len(keys))}
	for _, k := range keys {
		sec.Properties = append(sec.Properties, Property{Key: k, Value: data[name][k]})
	}
	writeJSON(w, r, http.StatusOK, sec)
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	section, key := r.PathValue("section"), r.PathValue("key")
	tag, err := etag(h.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if match := r.Header.Get(headers.IfNoneMatch); match != "" && match == tag {
		w.Header().Set(headers.ETag, tag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	value, ok, err := ini.Lookup(ctx, h.Path, section, key, h.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, h.notFound(ctx, section, key))
		return
	}
	w.Header().Set(headers.ETag, tag)
	writeJSON(w, r, http.StatusOK, KeyValue{Section: section, Key: key, Value: value})
}

// notFound reports whether a failed lookup was missing the section or the key.
func (h *Handler) notFound(ctx context.Context, section, key string) error {
	exists, err := ini.SectionExists(ctx, h.Path, section, h.Options)
	if err != nil {
		return err
	}
	if !exists {
		return &ini.Error{Op: "Lookup", Path: h.Path, Name: section, Kind: ini.ErrSectionNotFound}
	}
	return &ini.Error{Op: "Lookup", Path: h.Path, Name: key, Kind: ini.ErrKeyNotFound}
}

func (h *Handler) putKey(w http.ResponseWriter, r *http.Request) {
	section, key := r.PathValue("section"), r.PathValue("key")
	var req putRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		writeError(w, r, fmt.Errorf("%w: missing value", errBadRequest))
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return ini.Write(ctx, h.Path, section, key, *req.Value, h.Options)
	})
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	section, key := r.PathValue("section"), r.PathValue("key")
	h.mutate(w, r, func(ctx context.Context) error {
		return ini.DeleteKey(ctx, h.Path, section, key, h.Options)
	})
}

func (h *Handler) renameKey(w http.ResponseWriter, r *http.Request) {
	section, key := r.PathValue("section"), r.PathValue("key")
	var req renameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return ini.RenameKey(ctx, h.Path, section, key, req.Name, h.Options)
	})
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	section := r.PathValue("section")
	h.mutate(w, r, func(ctx context.Context) error {
		return ini.DeleteSection(ctx, h.Path, section, h.Options)
	})
}

func (h *Handler) renameSection(w http.ResponseWriter, r *http.Request) {
	section := r.PathValue("section")
	var req renameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return ini.RenameSection(ctx, h.Path, section, req.Name, h.Options)
	})
}

// mutate runs f while holding the handler's mutex and, if configured, the
// file lock. Once the locks are held, f runs to completion even if the
// client goes away.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, f func(ctx context.Context) error) {
	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Lock {
		lockCtx, cancel := context.WithTimeout(ctx, h.lockTimeout())
		l, err := filelock.Acquire(lockCtx, h.Path)
		cancel()
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer func() {
			if err := l.Release(); err != nil {
				log.Warnf(ctx, "%v", err)
			}
		}()
	}
	if match := r.Header.Get(headers.IfMatch); match != "" && match != "*" {
		tag, err := etag(h.Path)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if tag != match {
			writeError(w, r, errPreconditionFailed)
			return
		}
	}
	if err := f(context.WithoutCancel(ctx)); err != nil {
		writeError(w, r, err)
		return
	}
	log.Infof(ctx, "%s %s [%s]", r.Method, r.URL.Path, requestid.ContextID(ctx))
	if tag, err := etag(h.Path); err == nil {
		w.Header().Set(headers.ETag, tag)
	}
	w.WriteHeader(http.StatusNoContent)
}

// etag returns an entity tag for the current version of the file.
func etag(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &ini.Error{Op: "Stat", Path: path, Kind: ini.ErrCannotOpenSource, Err: err}
	}
	return fmt.Sprintf(`"%x-%x"`, info.ModTime().UnixNano(), info.Size()), nil
}

func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(headers.ContentType, headers.JSON)
	w.WriteHeader(code)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Debugf(r.Context(), "Writing response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusCode maps an error to an HTTP status code.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ini.ErrSectionNotFound),
		errors.Is(err, ini.ErrKeyNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ini.ErrSectionExists),
		errors.Is(err, ini.ErrKeyExists):
		return http.StatusConflict
	case errors.Is(err, ini.ErrInvalidName),
		errors.Is(err, ini.ErrInvalidValue),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, filelock.ErrLocked):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		log.Errorf(r.Context(), "%s %s [%s]: %v", r.Method, r.URL.Path, requestid.ContextID(r.Context()), err)
	} else {
		log.Debugf(r.Context(), "%s %s: %v", r.Method, r.URL.Path, err)
	}
	if code == http.StatusServiceUnavailable {
		w.Header().Set(headers.RetryAfter, "1")
	}
	data, _ := json.Marshal(errorResponse{Error: err.Error()})
	w.Header().Set(headers.ContentType, headers.JSON)
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
}
