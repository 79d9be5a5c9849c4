// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

const testFileName = "test.ini"

// newFile writes content to a fresh file and returns its path. A nil
// content leaves the file absent.
func newFile(tb testing.TB, content *string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), testFileName)
	if content != nil {
		if err := os.WriteFile(path, []byte(*content), 0o644); err != nil {
			tb.Fatal(err)
		}
	}
	return path
}

func readFile(tb testing.TB, path string) string {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatal(err)
	}
	return string(data)
}

// checkNoTemp fails the test if anything other than the test file is left
// in the file's directory.
func checkNoTemp(tb testing.TB, path string) {
	tb.Helper()
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		tb.Fatal(err)
	}
	for _, ent := range entries {
		if ent.Name() != testFileName {
			tb.Errorf("leftover file %q in directory", ent.Name())
		}
	}
}

func str(s string) *string { return &s }

func TestClassify(t *testing.T) {
	tests := []struct {
		raw     string
		dialect Dialect
		want    Line
	}{
		{
			raw:  "\n",
			want: Line{Kind: Blank},
		},
		{
			raw:  "  \t\r\n",
			want: Line{Kind: Blank},
		},
		{
			raw:  "; This explains everything!\n",
			want: Line{Kind: Comment, Comment: " This explains everything!", HasComment: true},
		},
		{
			raw:  "  ;\n",
			want: Line{Kind: Comment, HasComment: true},
		},
		{
			raw:  "[foo]\n",
			want: Line{Kind: SectionHeader, Name: "foo"},
		},
		{
			raw:  "  [  foo bar  ]  ; about foo\r\n",
			want: Line{Kind: SectionHeader, Name: "foo bar", Comment: " about foo", HasComment: true},
		},
		{
			raw:  "[foo\n",
			want: Line{Kind: Malformed},
		},
		{
			raw:  "[]\n",
			want: Line{Kind: Malformed},
		},
		{
			raw:  "[foo;]\n",
			want: Line{Kind: Malformed, Comment: "]", HasComment: true},
		},
		{
			raw:  "key=value\n",
			want: Line{Kind: KeyValue, Key: "key", Value: "value"},
		},
		{
			raw:  "  key  =  value with spaces  ; note\n",
			want: Line{Kind: KeyValue, Key: "key", Value: "value with spaces", Comment: " note", HasComment: true},
		},
		{
			raw:  "key=a=b\n",
			want: Line{Kind: KeyValue, Key: "key", Value: "a=b"},
		},
		{
			raw:  "key=\n",
			want: Line{Kind: KeyValue, Key: "key"},
		},
		{
			raw:  `key=a\;b ; real comment` + "\n",
			want: Line{Kind: KeyValue, Key: "key", Value: "a;b", Comment: " real comment", HasComment: true},
		},
		{
			raw:  "key=value",
			want: Line{Kind: KeyValue, Key: "key", Value: "value"},
		},
		{
			raw:  "no delimiter\n",
			want: Line{Kind: Malformed},
		},
		{
			raw:  "=value\n",
			want: Line{Kind: Malformed},
		},
		{
			raw:     "key: value # note|",
			dialect: Dialect{Delimiter: ':', Comment: '#', Terminator: '|'},
			want:    Line{Kind: KeyValue, Key: "key", Value: "value", Comment: " note", HasComment: true},
		},
		{
			raw:     "key=value ; not a comment\n",
			dialect: Dialect{Delimiter: '=', Comment: '#', Terminator: '\n'},
			want:    Line{Kind: KeyValue, Key: "key", Value: "value ; not a comment"},
		},
	}
	for _, test := range tests {
		got := Classify(test.raw, test.dialect)
		test.want.Raw = test.raw
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Classify(%q, %v) (-want +got):\n%s", test.raw, test.dialect, diff)
		}
	}
}

func TestDialectValidate(t *testing.T) {
	tests := []struct {
		dialect Dialect
		ok      bool
	}{
		{Dialect{}, true},
		{DefaultDialect, true},
		{Dialect{Delimiter: ':', Comment: '#', Terminator: '\n'}, true},
		{Dialect{Delimiter: '=', Comment: '=', Terminator: '\n'}, false},
		{Dialect{Delimiter: '=', Comment: ';', Terminator: ';'}, false},
		{Dialect{Delimiter: '[', Comment: ';', Terminator: '\n'}, false},
		{Dialect{Delimiter: ' ', Comment: ';', Terminator: '\n'}, false},
		{Dialect{Delimiter: '=', Comment: ';', Terminator: '\r'}, false},
		{Dialect{Delimiter: '=', Comment: ';', Terminator: 0}, false},
		{Dialect{Delimiter: ':'}, false},
		{Dialect{Comment: '#'}, false},
	}
	for _, test := range tests {
		err := test.dialect.Validate()
		if (err == nil) != test.ok {
			t.Errorf("%v.Validate() = %v; want ok=%t", test.dialect, err, test.ok)
		}
	}
}

func TestIsValidSection(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", false},
		{" ", false},
		{"\t", false},
		{"foo", true},
		{"foo bar", true},
		{" foo ", false},
		{"[foo", false},
		{"]foo", false},
		{"foo[bar", false},
		{"foo]bar", false},
		{"foo;bar", false},
		{"foo=bar", true},
		{"foo\nbar", false},
	}
	for _, test := range tests {
		if got := IsValidSection(test.name, DefaultDialect); got != test.want {
			t.Errorf("IsValidSection(%q) = %t; want %t", test.name, got, test.want)
		}
	}
}

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{" ", false},
		{"\t", false},
		{"foo", true},
		{"foo bar", true},
		{" foo ", false},
		{";foo", false},
		{"=foo", false},
		{"[foo", false},
		{"]foo", false},
		{"foo;bar", false},
		{"foo=bar", false},
		{"foo\nbar", false},
		{"foo#bar", true},
		{"foo[bar", true},
		{"foo]bar", true},
	}
	for _, test := range tests {
		if got := IsValidKey(test.key, DefaultDialect); got != test.want {
			t.Errorf("IsValidKey(%q) = %t; want %t", test.key, got, test.want)
		}
	}
}

func TestIsValidValue(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"v", true},
		{"a b", true},
		{"a;b", true},
		{" ", false},
		{" v", false},
		{"v ", false},
		{"\tv", false},
		{"v\t", false},
		{"a\nb", false},
		{"a\rb", false},
	}
	for _, test := range tests {
		if got := IsValidValue(test.value, DefaultDialect); got != test.want {
			t.Errorf("IsValidValue(%q) = %t; want %t", test.value, got, test.want)
		}
	}
}

const readSource = "global=ignored\n" +
	"[net]\n" +
	"; comment\n" +
	"host = example.com ; the host\n" +
	"garbage line\n" +
	"port=8080\n" +
	"port=9090\n" +
	"empty=\n" +
	"[db]\n" +
	"name=main\n" +
	"[net]\n" +
	"timeout=30\n"

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		section string
		key     string
		want    string
		wantOK  bool
	}{
		{name: "Found", section: "net", key: "host", want: "example.com", wantOK: true},
		{name: "FirstMatch", section: "net", key: "port", want: "8080", wantOK: true},
		{name: "EmptyValue", section: "net", key: "empty", want: "", wantOK: true},
		{name: "OtherSection", section: "db", key: "name", want: "main", wantOK: true},
		{name: "KeyInOtherSection", section: "db", key: "host", want: "default"},
		{name: "DuplicateSectionInvisible", section: "net", key: "timeout", want: "default"},
		{name: "NoSection", section: "nope", key: "host", want: "default"},
		{name: "GlobalNotMatched", section: "", key: "global", want: "default"},
		{name: "CaseSensitive", section: "NET", key: "host", want: "default"},
	}
	path := newFile(t, str(readSource))
	ctx := testlog.WithTB(context.Background(), t)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Read(ctx, path, test.section, test.key, "default", nil)
			if err != nil {
				t.Fatal("Read:", err)
			}
			if got != test.want {
				t.Errorf("Read(ctx, path, %q, %q, \"default\", nil) = %q; want %q", test.section, test.key, got, test.want)
			}
			_, ok, err := Lookup(ctx, path, test.section, test.key, nil)
			if err != nil {
				t.Fatal("Lookup:", err)
			}
			if ok != test.wantOK {
				t.Errorf("Lookup(ctx, path, %q, %q, nil) ok = %t; want %t", test.section, test.key, ok, test.wantOK)
			}
			exists, err := KeyExists(ctx, path, test.section, test.key, nil)
			if err != nil {
				t.Fatal("KeyExists:", err)
			}
			if exists != test.wantOK {
				t.Errorf("KeyExists(ctx, path, %q, %q, nil) = %t; want %t", test.section, test.key, exists, test.wantOK)
			}
		})
	}
	if got := readFile(t, path); got != readSource {
		t.Errorf("reads modified the file:\n%s", cmp.Diff(readSource, got))
	}
}

func TestSectionExists(t *testing.T) {
	path := newFile(t, str(readSource))
	ctx := testlog.WithTB(context.Background(), t)
	for _, test := range []struct {
		section string
		want    bool
	}{
		{"net", true},
		{"db", true},
		{"nope", false},
		{"Net", false},
		{"", false},
	} {
		got, err := SectionExists(ctx, path, test.section, nil)
		if err != nil {
			t.Errorf("SectionExists(ctx, path, %q, nil): %v", test.section, err)
			continue
		}
		if got != test.want {
			t.Errorf("SectionExists(ctx, path, %q, nil) = %t; want %t", test.section, got, test.want)
		}
	}
}

func TestListing(t *testing.T) {
	path := newFile(t, str(readSource))
	ctx := testlog.WithTB(context.Background(), t)

	sections, err := Sections(ctx, path, nil)
	if err != nil {
		t.Fatal("Sections:", err)
	}
	if diff := cmp.Diff([]string{"net", "db"}, sections); diff != "" {
		t.Errorf("Sections (-want +got):\n%s", diff)
	}

	keys, err := Keys(ctx, path, "net", nil)
	if err != nil {
		t.Fatal("Keys:", err)
	}
	if diff := cmp.Diff([]string{"host", "port", "empty"}, keys); diff != "" {
		t.Errorf("Keys (-want +got):\n%s", diff)
	}
	if _, err := Keys(ctx, path, "nope", nil); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("Keys(ctx, path, \"nope\", nil) = _, %v; want %v", err, ErrSectionNotFound)
	}

	dump, err := Dump(ctx, path, nil)
	if err != nil {
		t.Fatal("Dump:", err)
	}
	want := map[string]map[string]string{
		"net": {"host": "example.com", "port": "8080", "empty": ""},
		"db":  {"name": "main"},
	}
	if diff := cmp.Diff(want, dump); diff != "" {
		t.Errorf("Dump (-want +got):\n%s", diff)
	}
}

func TestStrict(t *testing.T) {
	const source = "[net]\nport=1\ngarbage\nhost=a\n"
	path := newFile(t, str(source))
	ctx := testlog.WithTB(context.Background(), t)
	strict := &Options{Strict: true}

	if got, err := Read(ctx, path, "net", "port", "", strict); err != nil || got != "1" {
		t.Errorf("Read before malformed line = %q, %v; want \"1\", <nil>", got, err)
	}
	_, err := Read(ctx, path, "net", "host", "", strict)
	var e *Error
	if !errors.As(err, &e) || !errors.Is(err, ErrMalformed) {
		t.Fatalf("Read past malformed line = %v; want %v", err, ErrMalformed)
	}
	if e.Line != 3 {
		t.Errorf("error line = %d; want 3", e.Line)
	}
	if err := Write(ctx, path, "net", "host", "b", strict); !errors.Is(err, ErrMalformed) {
		t.Errorf("strict Write = %v; want %v", err, ErrMalformed)
	}
	if got := readFile(t, path); got != source {
		t.Errorf("strict Write modified file:\n%s", cmp.Diff(source, got))
	}

	if err := Write(ctx, path, "net", "host", "b", nil); err != nil {
		t.Fatal("Write:", err)
	}
	const want = "[net]\nport=1\ngarbage\nhost=b\n"
	if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
		t.Errorf("lenient Write (-want +got):\n%s", diff)
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name    string
		source  *string
		section string
		key     string
		value   string
		opts    *Options
		want    string
	}{
		{
			name:    "MissingFile",
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nport=8080\n",
		},
		{
			name:    "EmptyFile",
			source:  str(""),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nport=8080\n",
		},
		{
			name:    "Overwrite",
			source:  str("[net]\nport=80\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nport=8080\n",
		},
		{
			name:    "KeepSpacingAndComment",
			source:  str("[net]\n  port = 80 ; http\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\n  port = 8080 ; http\n",
		},
		{
			name:    "FillEmptyValueBeforeComment",
			source:  str("[net]\nport=;unset\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nport=8080 ;unset\n",
		},
		{
			name:    "AppendToSection",
			source:  str("[net]\nhost=a\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nhost=a\nport=8080\n",
		},
		{
			name:    "InsertBeforeTrailingBlanks",
			source:  str("[net]\nhost=a\n\n\n[db]\nname=x\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nhost=a\nport=8080\n\n\n[db]\nname=x\n",
		},
		{
			name:    "InsertBeforeTrailingBlanksAtEOF",
			source:  str("[net]\nhost=a\n\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nhost=a\nport=8080\n\n",
		},
		{
			name:    "NewSection",
			source:  str("[a]\nx=1\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[a]\nx=1\n\n[net]\nport=8080\n",
		},
		{
			name:    "NewSectionAfterBlank",
			source:  str("[a]\nx=1\n\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[a]\nx=1\n\n[net]\nport=8080\n",
		},
		{
			name:    "NoTrailingNewline",
			source:  str("[a]\nx=1"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[a]\nx=1\n\n[net]\nport=8080\n",
		},
		{
			name:    "NoTrailingNewlineInSection",
			source:  str("[net]\nhost=a"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nhost=a\nport=8080\n",
		},
		{
			name:    "FirstKeyOnly",
			source:  str("[net]\nport=1\nport=2\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nport=8080\nport=2\n",
		},
		{
			name:    "FirstSectionOnly",
			source:  str("[net]\nhost=a\n[other]\n[net]\nport=2\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\nhost=a\nport=8080\n[other]\n[net]\nport=2\n",
		},
		{
			name:    "CRLF",
			source:  str("[net]\r\nhost=a\r\nport=80\r\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\r\nhost=a\r\nport=8080\r\n",
		},
		{
			name:    "CRLFInsert",
			source:  str("[net]\r\nhost=a\r\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "[net]\r\nhost=a\r\nport=8080\r\n",
		},
		{
			name:    "EscapeComment",
			source:  str(""),
			section: "net",
			key:     "motd",
			value:   "hi; there",
			want:    "[net]\nmotd=hi\\; there\n",
		},
		{
			name:    "GlobalPropertiesIgnored",
			source:  str("port=1\n[net]\n"),
			section: "net",
			key:     "port",
			value:   "8080",
			want:    "port=1\n[net]\nport=8080\n",
		},
		{
			name:    "CustomDialect",
			source:  str("[net]\nhost: a # note\n"),
			section: "net",
			key:     "host",
			value:   "b",
			opts:    &Options{Dialect: Dialect{Delimiter: ':', Comment: '#', Terminator: '\n'}},
			want:    "[net]\nhost: b # note\n",
		},
		{
			name:    "CustomDialectNewFile",
			section: "net",
			key:     "port",
			value:   "8080",
			opts:    &Options{Dialect: Dialect{Delimiter: ':', Comment: '#', Terminator: '\n'}},
			want:    "[net]\nport:8080\n",
		},
		{
			name:    "ReplaceKeepsPadding",
			source:  str("[s]\nk=  old  ; c\n"),
			section: "s",
			key:     "k",
			value:   "v",
			want:    "[s]\nk=  v  ; c\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, test.source)
			if err := Write(ctx, path, test.section, test.key, test.value, test.opts); err != nil {
				t.Fatal("Write:", err)
			}
			if diff := cmp.Diff(test.want, readFile(t, path)); diff != "" {
				t.Errorf("file after Write (-want +got):\n%s", diff)
			}
			got, err := Read(ctx, path, test.section, test.key, "", test.opts)
			if err != nil {
				t.Fatal("Read:", err)
			}
			if got != test.value {
				t.Errorf("Read after Write = %q; want %q", got, test.value)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestWriteInvalid(t *testing.T) {
	tests := []struct {
		name    string
		section string
		key     string
		value   string
		want    error
	}{
		{name: "EmptySection", section: "", key: "k", value: "v", want: ErrInvalidName},
		{name: "BracketSection", section: "a]b", key: "k", value: "v", want: ErrInvalidName},
		{name: "DelimiterKey", section: "s", key: "a=b", value: "v", want: ErrInvalidName},
		{name: "NewlineValue", section: "s", key: "k", value: "a\nb", want: ErrInvalidValue},
		{name: "LeadingSpaceValue", section: "s", key: "k", value: " v", want: ErrInvalidValue},
		{name: "TrailingTabValue", section: "s", key: "k", value: "v\t", want: ErrInvalidValue},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, nil)
			err := Write(ctx, path, test.section, test.key, test.value, nil)
			if !errors.Is(err, test.want) {
				t.Errorf("Write = %v; want %v", err, test.want)
			}
			if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("file was created (stat err = %v)", err)
			}
		})
	}
	t.Run("PaddedValueKeepsFile", func(t *testing.T) {
		ctx := testlog.WithTB(context.Background(), t)
		const source = "[s]\nk= v\n"
		path := newFile(t, str(source))
		for i := 0; i < 3; i++ {
			if err := Write(ctx, path, "s", "k", " v", nil); !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Write #%d = %v; want %v", i+1, err, ErrInvalidValue)
			}
		}
		if got := readFile(t, path); got != source {
			t.Errorf("file = %q; want %q", got, source)
		}
	})
	t.Run("BadDialect", func(t *testing.T) {
		ctx := testlog.WithTB(context.Background(), t)
		path := newFile(t, str(""))
		opts := &Options{Dialect: Dialect{Delimiter: '=', Comment: '=', Terminator: '\n'}}
		if err := Write(ctx, path, "s", "k", "v", opts); !errors.Is(err, ErrInvalidDialect) {
			t.Errorf("Write = %v; want %v", err, ErrInvalidDialect)
		}
	})
}

func TestWriteNumeric(t *testing.T) {
	ctx := testlog.WithTB(context.Background(), t)
	path := newFile(t, nil)
	if err := WriteFloat(ctx, path, "math", "pi", 3.14159265, nil); err != nil {
		t.Fatal("WriteFloat:", err)
	}
	if err := WriteInt(ctx, path, "math", "answer", -42, nil); err != nil {
		t.Fatal("WriteInt:", err)
	}
	const want = "[math]\npi=3.141593\nanswer=-42\n"
	if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
		t.Errorf("file (-want +got):\n%s", diff)
	}
	v, err := Read(ctx, path, "math", "pi", "0", nil)
	if err != nil {
		t.Fatal("Read:", err)
	}
	f, err := Value(v).Float()
	if err != nil {
		t.Fatal(err)
	}
	if f != 3.141593 {
		t.Errorf("pi = %v; want 3.141593", f)
	}
}

func TestWriteIdempotent(t *testing.T) {
	tests := []struct {
		name   string
		source string
		key    string
		value  string
	}{
		{name: "Comment", source: "[net]\nport = 8080 ; http\n", key: "port", value: "8080"},
		{name: "PaddedOnDisk", source: "[net]\nhost=   a   \n", key: "host", value: "a"},
		{name: "Empty", source: "[net]\nuser=\n", key: "user", value: ""},
		{name: "EscapedComment", source: "[net]\nmotd=hi\\; there\n", key: "motd", value: "hi; there"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, str(test.source))
			old := time.Now().Add(-time.Hour).Truncate(time.Second)
			if err := os.Chtimes(path, old, old); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 2; i++ {
				if err := Write(ctx, path, "net", test.key, test.value, nil); err != nil {
					t.Fatal("Write:", err)
				}
			}
			if got := readFile(t, path); got != test.source {
				t.Errorf("file = %q; want %q", got, test.source)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if !info.ModTime().Equal(old) {
				t.Errorf("mtime = %v; want %v (unchanged)", info.ModTime(), old)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestWriteKeepsMode(t *testing.T) {
	ctx := testlog.WithTB(context.Background(), t)
	path := newFile(t, str("[net]\nport=1\n"))
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Write(ctx, path, "net", "port", "2", nil); err != nil {
		t.Fatal("Write:", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %v; want %v", got, fs.FileMode(0o600))
	}
}

func TestWriteThroughSymlink(t *testing.T) {
	ctx := testlog.WithTB(context.Background(), t)
	target := newFile(t, str("[net]\nport=1\nhost=a\n"))
	if err := os.Chmod(target, 0o600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(filepath.Dir(target), "link.ini")
	if err := os.Symlink(testFileName, link); err != nil {
		t.Skip("symlinks not supported:", err)
	}
	if err := Write(ctx, link, "net", "port", "2", nil); err != nil {
		t.Fatal("Write:", err)
	}
	if err := DeleteKey(ctx, link, "net", "host", nil); err != nil {
		t.Fatal("DeleteKey:", err)
	}
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		t.Errorf("%s mode = %v; want a symlink", link, info.Mode())
	}
	if diff := cmp.Diff("[net]\nport=2\n", readFile(t, target)); diff != "" {
		t.Errorf("target after Write (-want +got):\n%s", diff)
	}
	info, err = os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("target mode = %v; want %v", got, fs.FileMode(0o600))
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		for _, ent := range entries {
			t.Log(ent.Name())
		}
		t.Errorf("directory has %d entries; want 2", len(entries))
	}
}

func TestDeleteKey(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		section string
		key     string
		want    string
		wantErr error
	}{
		{
			name:    "OnlyKey",
			source:  "[net]\nport=8080\n",
			section: "net",
			key:     "port",
			want:    "[net]\n",
		},
		{
			name:    "PreserveOtherSections",
			source:  "[a]\n; keep me\nx = 1 ; one\n\n[b]\ny=2 ; two\nz=3\n",
			section: "b",
			key:     "y",
			want:    "[a]\n; keep me\nx = 1 ; one\n\n[b]\nz=3\n",
		},
		{
			name:    "FirstKeyOnly",
			source:  "[net]\nport=1\nport=2\n",
			section: "net",
			key:     "port",
			want:    "[net]\nport=2\n",
		},
		{
			name:    "KeyNotFound",
			source:  "[net]\nhost=a\n[db]\nport=1\n",
			section: "net",
			key:     "port",
			wantErr: ErrKeyNotFound,
		},
		{
			name:    "KeyOnlyInDuplicateSection",
			source:  "[net]\nhost=a\n[net]\nport=1\n",
			section: "net",
			key:     "port",
			wantErr: ErrKeyNotFound,
		},
		{
			name:    "SectionNotFound",
			source:  "[db]\nport=1\n",
			section: "net",
			key:     "port",
			wantErr: ErrSectionNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, str(test.source))
			err := DeleteKey(ctx, path, test.section, test.key, nil)
			want := test.want
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("DeleteKey = %v; want %v", err, test.wantErr)
				}
				want = test.source
			} else if err != nil {
				t.Error("DeleteKey:", err)
			}
			if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
				t.Errorf("file after DeleteKey (-want +got):\n%s", diff)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestDeleteSection(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		section string
		want    string
		wantErr error
	}{
		{
			name:    "First",
			source:  "[a]\nx=1\n\n[b]\ny=2\n",
			section: "a",
			want:    "[b]\ny=2\n",
		},
		{
			name:    "Last",
			source:  "[a]\nx=1\n\n[b]\ny=2\n",
			section: "b",
			want:    "[a]\nx=1\n",
		},
		{
			name:    "Middle",
			source:  "[z]\nq=1\n\n[a]\nx=1\n; about a\n\n[b]\ny=2\n",
			section: "a",
			want:    "[z]\nq=1\n\n[b]\ny=2\n",
		},
		{
			name:    "FirstMatchOnly",
			source:  "[a]\nx=1\n[b]\n[a]\nx=2\n",
			section: "a",
			want:    "[b]\n[a]\nx=2\n",
		},
		{
			name:    "NotFound",
			source:  "[a]\nx=1\n",
			section: "b",
			wantErr: ErrSectionNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, str(test.source))
			err := DeleteSection(ctx, path, test.section, nil)
			want := test.want
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("DeleteSection = %v; want %v", err, test.wantErr)
				}
				want = test.source
			} else if err != nil {
				t.Error("DeleteSection:", err)
			}
			if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
				t.Errorf("file after DeleteSection (-want +got):\n%s", diff)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestRenameSection(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		oldName string
		newName string
		want    string
		wantErr error
	}{
		{
			name:    "Simple",
			source:  "[a]\nx=1\n",
			oldName: "a",
			newName: "b",
			want:    "[b]\nx=1\n",
		},
		{
			name:    "KeepSpacingAndComment",
			source:  "  [ a ] ; c\nx=1\n",
			oldName: "a",
			newName: "b",
			want:    "  [ b ] ; c\nx=1\n",
		},
		{
			name:    "FirstMatchOnly",
			source:  "[a]\n[c]\n[a]\n",
			oldName: "a",
			newName: "b",
			want:    "[b]\n[c]\n[a]\n",
		},
		{
			name:    "SameName",
			source:  "[a]\n",
			oldName: "a",
			newName: "a",
			want:    "[a]\n",
		},
		{
			name:    "TargetExistsAfter",
			source:  "[a]\n[b]\n",
			oldName: "a",
			newName: "b",
			wantErr: ErrSectionExists,
		},
		{
			name:    "TargetExistsBefore",
			source:  "[b]\n[a]\n",
			oldName: "a",
			newName: "b",
			wantErr: ErrSectionExists,
		},
		{
			name:    "NotFound",
			source:  "[c]\n",
			oldName: "a",
			newName: "b",
			wantErr: ErrSectionNotFound,
		},
		{
			name:    "SameNameNotFound",
			source:  "[c]\n",
			oldName: "a",
			newName: "a",
			wantErr: ErrSectionNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, str(test.source))
			err := RenameSection(ctx, path, test.oldName, test.newName, nil)
			want := test.want
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("RenameSection = %v; want %v", err, test.wantErr)
				}
				want = test.source
			} else if err != nil {
				t.Error("RenameSection:", err)
			}
			if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
				t.Errorf("file after RenameSection (-want +got):\n%s", diff)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestRenameKey(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		section string
		oldKey  string
		newKey  string
		want    string
		wantErr error
	}{
		{
			name:    "KeepValueAndComment",
			source:  "[a]\n  x = 1 ; c\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			want:    "[a]\n  y = 1 ; c\n",
		},
		{
			name:    "KeyInOtherSectionUntouched",
			source:  "[b]\nx=0\n[a]\nx=1\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			want:    "[b]\nx=0\n[a]\ny=1\n",
		},
		{
			name:    "NewKeyInOtherSectionAllowed",
			source:  "[a]\nx=1\n[b]\ny=2\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			want:    "[a]\ny=1\n[b]\ny=2\n",
		},
		{
			name:    "SameName",
			source:  "[a]\nx=1\n",
			section: "a",
			oldKey:  "x",
			newKey:  "x",
			want:    "[a]\nx=1\n",
		},
		{
			name:    "TargetExistsAfter",
			source:  "[a]\nx=1\ny=2\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			wantErr: ErrKeyExists,
		},
		{
			name:    "TargetExistsBefore",
			source:  "[a]\ny=2\nx=1\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			wantErr: ErrKeyExists,
		},
		{
			name:    "KeyNotFound",
			source:  "[a]\nz=1\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			wantErr: ErrKeyNotFound,
		},
		{
			name:    "SectionNotFound",
			source:  "[b]\nx=1\n",
			section: "a",
			oldKey:  "x",
			newKey:  "y",
			wantErr: ErrSectionNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testlog.WithTB(context.Background(), t)
			path := newFile(t, str(test.source))
			err := RenameKey(ctx, path, test.section, test.oldKey, test.newKey, nil)
			want := test.want
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("RenameKey = %v; want %v", err, test.wantErr)
				}
				want = test.source
			} else if err != nil {
				t.Error("RenameKey:", err)
			}
			if diff := cmp.Diff(want, readFile(t, path)); diff != "" {
				t.Errorf("file after RenameKey (-want +got):\n%s", diff)
			}
			checkNoTemp(t, path)
		})
	}
}

func TestMissingFile(t *testing.T) {
	ctx := testlog.WithTB(context.Background(), t)
	path := newFile(t, nil)
	ops := []struct {
		name string
		f    func() error
	}{
		{"SectionExists", func() error { _, err := SectionExists(ctx, path, "a", nil); return err }},
		{"KeyExists", func() error { _, err := KeyExists(ctx, path, "a", "b", nil); return err }},
		{"Read", func() error { _, err := Read(ctx, path, "a", "b", "", nil); return err }},
		{"DeleteSection", func() error { return DeleteSection(ctx, path, "a", nil) }},
		{"DeleteKey", func() error { return DeleteKey(ctx, path, "a", "b", nil) }},
		{"RenameSection", func() error { return RenameSection(ctx, path, "a", "b", nil) }},
		{"RenameKey", func() error { return RenameKey(ctx, path, "a", "b", "c", nil) }},
	}
	for _, op := range ops {
		err := op.f()
		if !errors.Is(err, ErrCannotOpenSource) || !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s = %v; want %v wrapping %v", op.name, err, ErrCannotOpenSource, fs.ErrNotExist)
		}
		var e *Error
		if errors.As(err, &e) && e.Path != path {
			t.Errorf("%s error path = %q; want %q", op.name, e.Path, path)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file was created (stat err = %v)", err)
	}
}

func TestCannotCreateTemp(t *testing.T) {
	ctx := testlog.WithTB(context.Background(), t)
	path := filepath.Join(t.TempDir(), "missing", testFileName)
	if err := Write(ctx, path, "a", "b", "c", nil); !errors.Is(err, ErrCannotCreateTemp) {
		t.Errorf("Write = %v; want %v", err, ErrCannotCreateTemp)
	}
}

func TestFailedRenameLeavesOriginal(t *testing.T) {
	const source = "[net]\nport=80\n"
	ctx := testlog.WithTB(context.Background(), t)
	path := newFile(t, str(source))
	renameErr := errors.New("bork")
	renameFile = func(oldpath, newpath string) error { return renameErr }
	t.Cleanup(func() { renameFile = os.Rename })

	if err := Write(ctx, path, "net", "port", "8080", nil); !errors.Is(err, renameErr) {
		t.Errorf("Write = %v; want %v", err, renameErr)
	}
	if diff := cmp.Diff(source, readFile(t, path)); diff != "" {
		t.Errorf("file after failed Write (-want +got):\n%s", diff)
	}
	checkNoTemp(t, path)
}

func TestCanceled(t *testing.T) {
	const source = "[net]\nport=80\n"
	path := newFile(t, str(source))
	ctx, cancel := context.WithCancel(testlog.WithTB(context.Background(), t))
	cancel()
	if err := Write(ctx, path, "net", "port", "8080", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Write = %v; want %v", err, context.Canceled)
	}
	if _, err := Read(ctx, path, "net", "port", "", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Read = %v; want %v", err, context.Canceled)
	}
	if diff := cmp.Diff(source, readFile(t, path)); diff != "" {
		t.Errorf("file after canceled Write (-want +got):\n%s", diff)
	}
	checkNoTemp(t, path)
}

func TestScenarios(t *testing.T) {
	t.Run("Port", func(t *testing.T) {
		ctx := testlog.WithTB(context.Background(), t)
		path := newFile(t, str(""))
		if err := Write(ctx, path, "net", "port", "8080", nil); err != nil {
			t.Fatal("Write:", err)
		}
		if got, want := readFile(t, path), "[net]\nport=8080\n"; got != want {
			t.Errorf("after Write, file = %q; want %q", got, want)
		}
		if got, err := Read(ctx, path, "net", "port", "0", nil); err != nil || got != "8080" {
			t.Errorf("Read = %q, %v; want \"8080\", <nil>", got, err)
		}
		if err := DeleteKey(ctx, path, "net", "port", nil); err != nil {
			t.Fatal("DeleteKey:", err)
		}
		if got, want := readFile(t, path), "[net]\n"; got != want {
			t.Errorf("after DeleteKey, file = %q; want %q", got, want)
		}
		if err := DeleteKey(ctx, path, "net", "port", nil); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("second DeleteKey = %v; want %v", err, ErrKeyNotFound)
		}
	})
	t.Run("DeleteSection", func(t *testing.T) {
		ctx := testlog.WithTB(context.Background(), t)
		path := newFile(t, nil)
		if err := Write(ctx, path, "a", "x", "1", nil); err != nil {
			t.Fatal("Write:", err)
		}
		if err := Write(ctx, path, "b", "y", "2", nil); err != nil {
			t.Fatal("Write:", err)
		}
		if err := DeleteSection(ctx, path, "a", nil); err != nil {
			t.Fatal("DeleteSection:", err)
		}
		if got, want := readFile(t, path), "[b]\ny=2\n"; got != want {
			t.Errorf("file = %q; want %q", got, want)
		}
		if ok, err := SectionExists(ctx, path, "a", nil); err != nil || ok {
			t.Errorf("SectionExists(a) = %t, %v; want false, <nil>", ok, err)
		}
	})
	t.Run("RenameSection", func(t *testing.T) {
		ctx := testlog.WithTB(context.Background(), t)
		path := newFile(t, str("[a]\nx=1\n"))
		if err := RenameSection(ctx, path, "a", "b", nil); err != nil {
			t.Fatal("RenameSection:", err)
		}
		got := make(map[string]bool)
		for _, name := range []string{"a", "b"} {
			ok, err := SectionExists(ctx, path, name, nil)
			if err != nil {
				t.Fatal(err)
			}
			got[name] = ok
		}
		if diff := cmp.Diff(map[string]bool{"a": false, "b": true}, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("SectionExists after rename (-want +got):\n%s", diff)
		}
	})
}
