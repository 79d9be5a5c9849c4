// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"strings"
)

// A LineKind is the classification of a single line of an INI file.
type LineKind int

// Line kinds.
const (
	Blank LineKind = iota
	Comment
	SectionHeader
	KeyValue
	Malformed
)

func (k LineKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Comment:
		return "comment"
	case SectionHeader:
		return "section header"
	case KeyValue:
		return "key-value"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// A Line is a classified line of an INI file.
type Line struct {
	Kind LineKind
	// Name is the section name of a SectionHeader line.
	Name string
	// Key and Value are set for KeyValue lines. Value has escaped comment
	// characters unescaped.
	Key   string
	Value string
	// Comment is the text after the first unescaped comment character,
	// without the comment character itself. HasComment distinguishes an
	// empty comment from no comment.
	Comment    string
	HasComment bool
	// Raw is the line as read, including its terminator if it had one.
	Raw string
}

// Classify classifies a single raw line. The line may include its
// terminator. Classify does not validate the dialect.
func Classify(raw string, d Dialect) Line {
	d = d.orDefault()
	l := Line{Raw: raw}
	text := strings.TrimSuffix(raw, string(d.Terminator))
	text = strings.TrimSuffix(text, "\r")
	if i := commentIndex(text, d.Comment); i >= 0 {
		l.Comment = text[i+1:]
		l.HasComment = true
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	switch {
	case text == "" && l.HasComment:
		l.Kind = Comment
	case text == "":
		l.Kind = Blank
	case text[0] == '[':
		end := strings.IndexByte(text, ']')
		if end == -1 {
			l.Kind = Malformed
			break
		}
		name := strings.TrimSpace(text[1:end])
		if name == "" {
			l.Kind = Malformed
			break
		}
		l.Kind = SectionHeader
		l.Name = name
	default:
		i := strings.IndexByte(text, d.Delimiter)
		if i == -1 {
			l.Kind = Malformed
			break
		}
		key := strings.TrimSpace(text[:i])
		if key == "" {
			l.Kind = Malformed
			break
		}
		l.Kind = KeyValue
		l.Key = key
		l.Value = unescapeValue(strings.TrimSpace(text[i+1:]), d.Comment)
	}
	return l
}

// commentIndex returns the index of the first comment character in s that
// is not preceded by a backslash, or -1.
func commentIndex(s string, comment byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == comment && (i == 0 || s[i-1] != '\\') {
			return i
		}
	}
	return -1
}

func unescapeValue(v string, comment byte) string {
	esc := string([]byte{'\\', comment})
	if !strings.Contains(v, esc) {
		return v
	}
	return strings.ReplaceAll(v, esc, string(comment))
}

func escapeValue(v string, comment byte) string {
	if strings.IndexByte(v, comment) == -1 {
		return v
	}
	return strings.ReplaceAll(v, string(comment), string([]byte{'\\', comment}))
}
