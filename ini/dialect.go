// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A Dialect holds the characters used to tokenize an INI file.
// The zero value is treated identically to DefaultDialect. A partially
// filled Dialect is not: its zero fields stay zero and fail Validate, so
// set all three characters when using anything but the default.
type Dialect struct {
	// Delimiter separates a key from its value.
	Delimiter byte
	// Comment starts a comment that runs to the end of the line.
	Comment byte
	// Terminator ends a line.
	Terminator byte
}

// DefaultDialect is the dialect used when none is given.
var DefaultDialect = Dialect{
	Delimiter:  '=',
	Comment:    ';',
	Terminator: '\n',
}

func (d Dialect) orDefault() Dialect {
	if d == (Dialect{}) {
		return DefaultDialect
	}
	return d
}

// Validate reports whether the dialect can be used to tokenize a file.
// The three characters must be distinct and none of them may be a square
// bracket, a carriage return, a space, a tab, a backslash, or NUL.
func (d Dialect) Validate() error {
	d = d.orDefault()
	chars := []struct {
		name string
		c    byte
	}{
		{"delimiter", d.Delimiter},
		{"comment", d.Comment},
		{"terminator", d.Terminator},
	}
	for i, c := range chars {
		switch c.c {
		case 0, '[', ']', '\r', ' ', '\t', '\\':
			return fmt.Errorf("%s character %q not allowed", c.name, c.c)
		}
		for _, other := range chars[:i] {
			if c.c == other.c {
				return fmt.Errorf("%s and %s are both %q", other.name, c.name, c.c)
			}
		}
	}
	return nil
}

func (d Dialect) String() string {
	d = d.orDefault()
	return fmt.Sprintf("ini.Dialect{Delimiter: %q, Comment: %q, Terminator: %q}", d.Delimiter, d.Comment, d.Terminator)
}

// IsValidSection reports whether a string can be used as a section name in
// a file tokenized with the given dialect.
func IsValidSection(name string, d Dialect) bool {
	d = d.orDefault()
	if !hasNoSurroundingSpace(name) {
		return false
	}
	if strings.ContainsAny(name, "[]\r") {
		return false
	}
	return strings.IndexByte(name, d.Comment) == -1 &&
		strings.IndexByte(name, d.Terminator) == -1
}

// IsValidKey reports whether a string can be used as a property key in
// a file tokenized with the given dialect.
func IsValidKey(key string, d Dialect) bool {
	d = d.orDefault()
	if !hasNoSurroundingSpace(key) {
		return false
	}
	if key[0] == '[' || key[0] == ']' || strings.IndexByte(key, '\r') != -1 {
		return false
	}
	return strings.IndexByte(key, d.Delimiter) == -1 &&
		strings.IndexByte(key, d.Comment) == -1 &&
		strings.IndexByte(key, d.Terminator) == -1
}

// IsValidValue reports whether a string can be written as a property value.
// Comment characters are allowed: they are escaped on write. Leading and
// trailing whitespace is not, since it is trimmed when the value is read.
func IsValidValue(value string, d Dialect) bool {
	d = d.orDefault()
	if value != "" && !hasNoSurroundingSpace(value) {
		return false
	}
	return strings.IndexByte(value, d.Terminator) == -1 && strings.IndexByte(value, '\r') == -1
}

func hasNoSurroundingSpace(s string) bool {
	if s == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return !unicode.IsSpace(first) && !unicode.IsSpace(last)
}
