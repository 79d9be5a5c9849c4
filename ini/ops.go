// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"context"
	"strconv"
	"strings"
)

// FloatPrecision is the number of digits after the decimal point used by
// WriteFloat. Callers that need an exact round trip should format the value
// themselves and call Write.
const FloatPrecision = 6

func checkSection(op, path, section string, d Dialect) error {
	if !IsValidSection(section, d) {
		return &Error{Op: op, Path: path, Name: section, Kind: ErrInvalidName}
	}
	return nil
}

func checkKey(op, path, key string, d Dialect) error {
	if !IsValidKey(key, d) {
		return &Error{Op: op, Path: path, Name: key, Kind: ErrInvalidName}
	}
	return nil
}

// Write sets the value of a property. If the first section with the given
// name already has the key, its first occurrence is updated in place,
// keeping its indentation and trailing comment. Otherwise the property is
// added at the end of the section, or a new section is added at the end of
// the file. If the file does not exist, it is created. If path is a
// symbolic link, the file it points to is rewritten and the link is kept.
//
// The value may not begin or end with whitespace, or contain a line
// terminator. Writing a value equal to the current one leaves the file
// untouched.
func Write(ctx context.Context, path, section, key, value string, opts *Options) error {
	return write(ctx, "Write", path, section, key, value, opts)
}

// WriteFloat is like Write but formats value with FloatPrecision digits
// after the decimal point.
func WriteFloat(ctx context.Context, path, section, key string, value float64, opts *Options) error {
	return write(ctx, "WriteFloat", path, section, key, strconv.FormatFloat(value, 'f', FloatPrecision, 64), opts)
}

// WriteInt is like Write but formats value in base 10.
func WriteInt(ctx context.Context, path, section, key string, value int64, opts *Options) error {
	return write(ctx, "WriteInt", path, section, key, strconv.FormatInt(value, 10), opts)
}

func write(ctx context.Context, op, path, section, key, value string, opts *Options) error {
	d := opts.dialect()
	if err := checkSection(op, path, section, d); err != nil {
		return err
	}
	if err := checkKey(op, path, key, d); err != nil {
		return err
	}
	if !IsValidValue(value, d) {
		return &Error{Op: op, Path: path, Name: key, Kind: ErrInvalidValue}
	}
	escaped := escapeValue(value, d.Comment)
	property := FormatProperty(key, value, d)
	header := "[" + section + "]"
	return rewrite(ctx, path, opts, &edit{
		op:      op,
		section: section,
		key:     key,
		create:  header + string(d.Terminator) + property + string(d.Terminator),
		targetKey: func(p *pass, l *Line) error {
			if l.Value == value {
				p.keep(l)
				return nil
			}
			p.replace(l, replaceValue(l, escaped, d))
			return nil
		},
		sectionEnd: func(p *pass, atEOF bool) {
			if !p.keyFound {
				p.insert(property)
				p.keyFound = true
			}
		},
		finish: func(p *pass) error {
			if p.sectionFound {
				return nil
			}
			p.flushBlanks()
			if p.written && !p.lastBlank {
				p.insert("")
			}
			p.insert(header)
			p.insert(property)
			return nil
		},
	})
}

// DeleteSection removes the first section with the given name: its header
// and every line up to the next section header.
func DeleteSection(ctx context.Context, path, section string, opts *Options) error {
	const op = "DeleteSection"
	d := opts.dialect()
	if err := checkSection(op, path, section, d); err != nil {
		return err
	}
	drop := func(p *pass, l *Line) error {
		p.drop(l)
		return nil
	}
	return rewrite(ctx, path, opts, &edit{
		op:           op,
		section:      section,
		targetHeader: drop,
		sectionLine:  drop,
		sectionEnd: func(p *pass, atEOF bool) {
			if atEOF {
				// Blank lines that separated the section from the one
				// before it would otherwise trail at the end of the file.
				p.discardBlanks()
			}
		},
		finish: func(p *pass) error {
			if !p.sectionFound {
				return p.fail(section, ErrSectionNotFound)
			}
			return nil
		},
	})
}

// DeleteKey removes the first property with the given key from the first
// section with the given name.
func DeleteKey(ctx context.Context, path, section, key string, opts *Options) error {
	const op = "DeleteKey"
	d := opts.dialect()
	if err := checkSection(op, path, section, d); err != nil {
		return err
	}
	if err := checkKey(op, path, key, d); err != nil {
		return err
	}
	return rewrite(ctx, path, opts, &edit{
		op:      op,
		section: section,
		key:     key,
		targetKey: func(p *pass, l *Line) error {
			p.drop(l)
			return nil
		},
		finish: func(p *pass) error {
			if !p.sectionFound {
				return p.fail(section, ErrSectionNotFound)
			}
			if !p.keyFound {
				return p.fail(key, ErrKeyNotFound)
			}
			return nil
		},
	})
}

// RenameSection renames the first section named oldName. It fails without
// modifying the file if no such section exists or if a section named
// newName already exists anywhere in the file.
func RenameSection(ctx context.Context, path, oldName, newName string, opts *Options) error {
	const op = "RenameSection"
	d := opts.dialect()
	if err := checkSection(op, path, oldName, d); err != nil {
		return err
	}
	if err := checkSection(op, path, newName, d); err != nil {
		return err
	}
	if oldName == newName {
		ok, err := SectionExists(ctx, path, oldName, opts)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Op: op, Path: path, Name: oldName, Kind: ErrSectionNotFound}
		}
		return nil
	}
	return rewrite(ctx, path, opts, &edit{
		op:      op,
		section: oldName,
		targetHeader: func(p *pass, l *Line) error {
			p.replace(l, replaceSectionName(l, newName))
			return nil
		},
		otherHeader: func(p *pass, l *Line) error {
			if l.Name == newName {
				return p.fail(newName, ErrSectionExists)
			}
			p.keep(l)
			return nil
		},
		finish: func(p *pass) error {
			if !p.sectionFound {
				return p.fail(oldName, ErrSectionNotFound)
			}
			return nil
		},
	})
}

// RenameKey renames the first property with the key oldKey in the first
// section with the given name, keeping its value and comment. It fails
// without modifying the file if the section or key does not exist, or if
// the section already has a property with the key newKey.
func RenameKey(ctx context.Context, path, section, oldKey, newKey string, opts *Options) error {
	const op = "RenameKey"
	d := opts.dialect()
	if err := checkSection(op, path, section, d); err != nil {
		return err
	}
	if err := checkKey(op, path, oldKey, d); err != nil {
		return err
	}
	if err := checkKey(op, path, newKey, d); err != nil {
		return err
	}
	if oldKey == newKey {
		_, result, err := find(ctx, op, path, section, oldKey, opts)
		if err != nil {
			return err
		}
		switch result {
		case sectionNotFound:
			return &Error{Op: op, Path: path, Name: section, Kind: ErrSectionNotFound}
		case keyNotFound:
			return &Error{Op: op, Path: path, Name: oldKey, Kind: ErrKeyNotFound}
		}
		return nil
	}
	return rewrite(ctx, path, opts, &edit{
		op:      op,
		section: section,
		key:     oldKey,
		targetKey: func(p *pass, l *Line) error {
			p.replace(l, replaceKey(l, newKey, d))
			return nil
		},
		sectionLine: func(p *pass, l *Line) error {
			if l.Kind == KeyValue && l.Key == newKey {
				return p.fail(newKey, ErrKeyExists)
			}
			p.keep(l)
			return nil
		},
		finish: func(p *pass) error {
			if !p.sectionFound {
				return p.fail(section, ErrSectionNotFound)
			}
			if !p.keyFound {
				return p.fail(oldKey, ErrKeyNotFound)
			}
			return nil
		},
	})
}

// FormatProperty returns the line, without terminator, that Write adds for a
// new property. Comment characters in value are escaped.
func FormatProperty(key, value string, d Dialect) string {
	d = d.orDefault()
	return key + string(d.Delimiter) + escapeValue(value, d.Comment)
}

// lineEnding returns the terminator (and carriage return) at the end of raw.
func lineEnding(raw string, d Dialect) string {
	term := string(d.Terminator)
	switch {
	case strings.HasSuffix(raw, "\r"+term):
		return "\r" + term
	case strings.HasSuffix(raw, term):
		return term
	default:
		return ""
	}
}

// replaceValue returns the raw key-value line l with its value replaced by
// the already-escaped value, keeping the key, spacing, and trailing comment.
func replaceValue(l *Line, escaped string, d Dialect) string {
	end := lineEnding(l.Raw, d)
	body := strings.TrimSuffix(l.Raw, end)
	i := strings.IndexByte(body, d.Delimiter)
	head, rest := body[:i+1], body[i+1:]
	tail := ""
	if ci := commentIndex(rest, d.Comment); ci >= 0 {
		rest, tail = rest[:ci], rest[ci:]
	}
	lead := rest[:len(rest)-len(strings.TrimLeft(rest, " \t"))]
	rest = rest[len(lead):]
	space := rest[len(strings.TrimRight(rest, " \t")):]
	if tail != "" && space == "" && escaped != "" {
		space = " "
	}
	return head + lead + escaped + space + tail + end
}

// replaceKey returns the raw key-value line l with its key replaced.
func replaceKey(l *Line, key string, d Dialect) string {
	i := strings.IndexByte(l.Raw, d.Delimiter)
	head := l.Raw[:i]
	start := strings.Index(head, l.Key)
	return head[:start] + key + head[start+len(l.Key):] + l.Raw[i:]
}

// replaceSectionName returns the raw header line l with its name replaced.
func replaceSectionName(l *Line, name string) string {
	open := strings.IndexByte(l.Raw, '[')
	end := open + 1 + strings.IndexByte(l.Raw[open+1:], ']')
	inner := l.Raw[open+1 : end]
	start := strings.Index(inner, l.Name)
	return l.Raw[:open+1] + inner[:start] + name + inner[start+len(l.Name):] + l.Raw[end:]
}
