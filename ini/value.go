// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"fmt"
	"strconv"
)

// A Value is a property value as read from a file, with typed accessors.
// The accessors never panic: malformed input is reported as an error.
type Value string

// String returns the value unchanged.
func (v Value) String() string {
	return string(v)
}

// Int parses the value as a base-10 signed integer.
func (v Value) Int() (int64, error) {
	i, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ini value %q: %w", string(v), err)
	}
	return i, nil
}

// Uint parses the value as a base-10 unsigned integer.
func (v Value) Uint() (uint64, error) {
	u, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ini value %q: %w", string(v), err)
	}
	return u, nil
}

// Float parses the value as a floating-point number.
func (v Value) Float() (float64, error) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, fmt.Errorf("ini value %q: %w", string(v), err)
	}
	return f, nil
}

// Bool parses the value with the same rules as strconv.ParseBool.
func (v Value) Bool() (bool, error) {
	b, err := strconv.ParseBool(string(v))
	if err != nil {
		return false, fmt.Errorf("ini value %q: %w", string(v), err)
	}
	return b, nil
}
