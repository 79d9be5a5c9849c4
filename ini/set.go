// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"context"
	"errors"
	"io/fs"
)

// FileSet is a list of file paths to obtain configuration from in descending
// order of precedence. Missing files are treated as empty.
type FileSet []string

// Lookup returns the value of the property from the first file that defines
// it, and reports whether any file did.
func (fset FileSet) Lookup(ctx context.Context, section, key string, opts *Options) (string, bool, error) {
	for _, path := range fset {
		v, ok, err := Lookup(ctx, path, section, key, opts)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Read returns the value of the property from the first file that defines
// it, or defaultValue if none do.
func (fset FileSet) Read(ctx context.Context, section, key, defaultValue string, opts *Options) (string, error) {
	v, ok, err := fset.Lookup(ctx, section, key, opts)
	if err != nil {
		return "", err
	}
	if !ok {
		return defaultValue, nil
	}
	return v, nil
}

// Sections returns the names of sections defined in any file, in order of
// first appearance scanning files in precedence order.
func (fset FileSet) Sections(ctx context.Context, opts *Options) ([]string, error) {
	var merged []string
	seen := make(map[string]struct{})
	for _, path := range fset {
		names, err := Sections(ctx, path, opts)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return merged, err
		}
		for _, name := range names {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				merged = append(merged, name)
			}
		}
	}
	return merged, nil
}

// Write sets the property on the first file and deletes it from all
// subsequent files that define it, so that the written value takes effect.
// Write will panic if len(fset) == 0.
func (fset FileSet) Write(ctx context.Context, section, key, value string, opts *Options) error {
	if len(fset) == 0 {
		panic("ini.FileSet.Write called on empty set")
	}
	if err := Write(ctx, fset[0], section, key, value, opts); err != nil {
		return err
	}
	return fset[1:].Delete(ctx, section, key, opts)
}

// Delete deletes the property from every file that defines it, removing
// repeated occurrences until none is visible to Read. Files or sections that
// do not define it are skipped.
func (fset FileSet) Delete(ctx context.Context, section, key string, opts *Options) error {
	for _, path := range fset {
		for {
			err := DeleteKey(ctx, path, section, key, opts)
			if err == nil {
				continue
			}
			if errors.Is(err, fs.ErrNotExist) ||
				errors.Is(err, ErrSectionNotFound) ||
				errors.Is(err, ErrKeyNotFound) {
				break
			}
			return err
		}
	}
	return nil
}
