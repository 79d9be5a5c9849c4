// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package envvar reads configuration defaults from environment variables.
// Malformed values fall back to the default rather than failing, so that a
// stray variable in the environment never prevents a command from running.
package envvar

import (
	"os"
	"strconv"
	"time"
)

// Get returns the value of the given environment variable. If it is empty or
// unset, it returns the default value.
func Get(key string, defaultValue string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	return v
}

// Bool returns the value of a boolean environment variable as interpreted by
// strconv.ParseBool. If it is unset or unparseable, it returns defaultValue.
func Bool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

// Char returns the value of an environment variable that holds a single
// byte, like a delimiter, as parsed by ParseChar. If it is unset or
// unparseable, it returns defaultValue.
func Char(key string, defaultValue byte) byte {
	c, ok := ParseChar(os.Getenv(key))
	if !ok {
		return defaultValue
	}
	return c
}

// ParseChar parses a string holding exactly one byte. Escapes understood by
// strconv.Unquote, such as `\t`, are accepted.
func ParseChar(s string) (byte, bool) {
	if len(s) == 1 {
		return s[0], true
	}
	if len(s) < 2 || s[0] != '\\' {
		return 0, false
	}
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil || len(u) != 1 {
		return 0, false
	}
	return u[0], true
}

// Duration returns the value of an environment variable parsed with
// time.ParseDuration. If it is unset, unparseable, or negative, it returns
// defaultValue.
func Duration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
