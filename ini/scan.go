// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"bufio"
	"context"
	"io"
	"os"
)

// Options holds optional parameters for the file operations. Nil options
// are treated identically as passing the zero value.
type Options struct {
	// Dialect is the tokenization dialect. The zero value means DefaultDialect.
	Dialect Dialect

	// Strict makes operations fail with ErrMalformed when they encounter a
	// line that is neither blank, a comment, a section header, nor a
	// key-value pair. Otherwise such lines are ignored and copied verbatim.
	// Read-only operations stop early, so they only report malformed lines
	// that precede what they were looking for.
	Strict bool
}

func (opts *Options) dialect() Dialect {
	if opts == nil {
		return DefaultDialect
	}
	return opts.Dialect.orDefault()
}

func (opts *Options) strict() bool {
	return opts != nil && opts.Strict
}

func checkDialect(op, path string, opts *Options) error {
	if err := opts.dialect().Validate(); err != nil {
		return &Error{Op: op, Path: path, Kind: ErrInvalidDialect, Err: err}
	}
	return nil
}

// A lineReader yields the raw lines of a file, terminators included.
type lineReader struct {
	r      *bufio.Reader
	term   byte
	lineno int
}

func newLineReader(r io.Reader, term byte) *lineReader {
	return &lineReader{r: bufio.NewReader(r), term: term}
}

// next returns the next raw line or io.EOF. The last line of a file may
// lack a terminator.
func (lr *lineReader) next() (string, error) {
	line, err := lr.r.ReadString(lr.term)
	if err == io.EOF {
		if line == "" {
			return "", io.EOF
		}
		err = nil
	}
	if err != nil {
		return "", err
	}
	lr.lineno++
	return line, nil
}

// scanLines calls f with each classified line of the file at path until f
// returns false or the file ends.
func scanLines(ctx context.Context, op, path string, opts *Options, f func(l *Line) bool) error {
	if err := checkDialect(op, path, opts); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return &Error{Op: op, Path: path, Kind: ErrCannotOpenSource, Err: err}
	}
	defer file.Close() // Read-only; close errors irrelevant.
	d := opts.dialect()
	lr := newLineReader(file, d.Terminator)
	for {
		if err := ctx.Err(); err != nil {
			return &Error{Op: op, Path: path, Err: err}
		}
		raw, err := lr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &Error{Op: op, Path: path, Kind: ErrCannotOpenSource, Err: err}
		}
		l := Classify(raw, d)
		if l.Kind == Malformed && opts.strict() {
			return &Error{Op: op, Path: path, Line: lr.lineno, Kind: ErrMalformed}
		}
		if !f(&l) {
			return nil
		}
	}
}

type scanState int

const (
	searching scanState = iota
	inTargetSection
	done
)

type findResult int

const (
	sectionNotFound findResult = iota
	keyNotFound
	keyFound
)

// find locates the first key in the first section with the given names.
func find(ctx context.Context, op, path, section, key string, opts *Options) (string, findResult, error) {
	state := searching
	result := sectionNotFound
	var value string
	err := scanLines(ctx, op, path, opts, func(l *Line) bool {
		switch state {
		case searching:
			if l.Kind == SectionHeader && l.Name == section {
				state = inTargetSection
				result = keyNotFound
			}
		case inTargetSection:
			switch {
			case l.Kind == SectionHeader:
				state = done
			case l.Kind == KeyValue && l.Key == key:
				value = l.Value
				result = keyFound
				state = done
			}
		}
		return state != done
	})
	return value, result, err
}

// SectionExists reports whether the file at path has a section with the
// given name.
func SectionExists(ctx context.Context, path, section string, opts *Options) (bool, error) {
	found := false
	err := scanLines(ctx, "SectionExists", path, opts, func(l *Line) bool {
		found = l.Kind == SectionHeader && l.Name == section
		return !found
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// KeyExists reports whether the first section with the given name in the
// file at path has a property with the given key.
func KeyExists(ctx context.Context, path, section, key string, opts *Options) (bool, error) {
	_, result, err := find(ctx, "KeyExists", path, section, key, opts)
	if err != nil {
		return false, err
	}
	return result == keyFound, nil
}

// Lookup returns the value of the first property with the given key in the
// first section with the given name. The boolean reports whether the
// property was found.
func Lookup(ctx context.Context, path, section, key string, opts *Options) (string, bool, error) {
	value, result, err := find(ctx, "Lookup", path, section, key, opts)
	if err != nil {
		return "", false, err
	}
	return value, result == keyFound, nil
}

// Read returns the value of the first property with the given key in the
// first section with the given name, or defaultValue if either is absent.
// A missing section or key is not an error.
func Read(ctx context.Context, path, section, key, defaultValue string, opts *Options) (string, error) {
	value, result, err := find(ctx, "Read", path, section, key, opts)
	if err != nil {
		return "", err
	}
	if result != keyFound {
		return defaultValue, nil
	}
	return value, nil
}

// Sections returns the names of the sections in the file at path, in the
// order they first appear. Repeated sections are reported once.
func Sections(ctx context.Context, path string, opts *Options) ([]string, error) {
	var names []string
	seen := make(map[string]struct{})
	err := scanLines(ctx, "Sections", path, opts, func(l *Line) bool {
		if l.Kind != SectionHeader {
			return true
		}
		if _, dup := seen[l.Name]; !dup {
			seen[l.Name] = struct{}{}
			names = append(names, l.Name)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Keys returns the keys of the first section with the given name, in file
// order. Repeated keys are reported once.
func Keys(ctx context.Context, path, section string, opts *Options) ([]string, error) {
	const op = "Keys"
	state := searching
	keys := []string{}
	seen := make(map[string]struct{})
	err := scanLines(ctx, op, path, opts, func(l *Line) bool {
		switch state {
		case searching:
			if l.Kind == SectionHeader && l.Name == section {
				state = inTargetSection
			}
		case inTargetSection:
			switch l.Kind {
			case SectionHeader:
				state = done
			case KeyValue:
				if _, dup := seen[l.Key]; !dup {
					seen[l.Key] = struct{}{}
					keys = append(keys, l.Key)
				}
			}
		}
		return state != done
	})
	if err != nil {
		return nil, err
	}
	if state == searching {
		return nil, &Error{Op: op, Path: path, Name: section, Kind: ErrSectionNotFound}
	}
	return keys, nil
}

// Dump returns every property visible to Read, keyed by section and then by
// key. Only the first section of a given name and the first property of a
// given key within it are reported.
func Dump(ctx context.Context, path string, opts *Options) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string)
	var curr map[string]string
	err := scanLines(ctx, "Dump", path, opts, func(l *Line) bool {
		switch l.Kind {
		case SectionHeader:
			if _, dup := result[l.Name]; dup {
				curr = nil
				break
			}
			curr = make(map[string]string)
			result[l.Name] = curr
		case KeyValue:
			if curr == nil {
				break
			}
			if _, dup := curr[l.Key]; !dup {
				curr[l.Key] = l.Value
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
