// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package's file operations is an
// *Error whose Kind is one of these, so callers can test with errors.Is.
var (
	ErrCannotOpenSource = errors.New("cannot open file")
	ErrCannotCreateTemp = errors.New("cannot create temporary file")
	ErrSectionNotFound  = errors.New("section not found")
	ErrKeyNotFound      = errors.New("key not found")
	ErrSectionExists    = errors.New("section already exists")
	ErrKeyExists        = errors.New("key already exists")
	ErrMalformed        = errors.New("malformed line")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidValue     = errors.New("invalid value")
	ErrInvalidDialect   = errors.New("invalid dialect")
)

// An Error describes a failed operation on an INI file.
type Error struct {
	// Op is the name of the operation, like "DeleteKey".
	Op   string
	Path string
	// Name is the offending section or key name, if any.
	Name string
	// Line is the 1-based line number for ErrMalformed.
	Line int
	Kind error
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	sb := new(strings.Builder)
	sb.WriteString("ini: ")
	sb.WriteString(e.Op)
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(sb, ": line %d", e.Line)
	}
	if e.Name != "" {
		fmt.Fprintf(sb, ": %q", e.Name)
	}
	if e.Kind != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the error kind and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
