// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

/*
Package ini reads and edits INI files in place.
See https://en.wikipedia.org/wiki/INI_file.

This package never loads a file into a document model. Every operation
streams the file from disk: reads stop as soon as they have an answer, and
edits copy the file line by line into a temporary file in the same
directory, changing only the lines they target, then rename the temporary
file over the original. Comments, blank lines, spacing, and lines the
package does not understand are preserved byte for byte. If an edit fails
for any reason, including a missing section or key, the original file is
left untouched.

Syntax

An INI file is text made of lines separated by a terminator character. The
characters used for tokenizing are given by a Dialect; by default, lines end
with a newline ('\n'), comments start with a semicolon (';'), and keys are
separated from values by an equals sign ('='). A carriage return before the
terminator is ignored.

A section is started by writing its name in square brackets on its own line
and ends at the next section header or the end of file:

	[section]
	key1 = value1
	key2 = value2 ; trailing comment

Everything from the first comment character to the end of the line is a
comment. A comment character preceded by a backslash is part of the value
instead; Write escapes comment characters this way. Whitespace around
section names, keys, and values is ignored, so Write rejects values that
begin or end with whitespace. Section names and keys are
case-sensitive. Lines before the first section header belong to no section
and are never matched.

Repeated names

Only the first section with a given name is visible, and within it only the
first property with a given key. Later duplicates are never read, and edits
leave them alone.

Concurrency

Operations do not lock. Two processes editing the same file at once race:
each rewrites from the snapshot it read, and the last rename wins. Callers
that need to serialize writers should hold a lock around their edits, for
example with package filelock.

On platforms where renaming over an existing file is not atomic, a crash
during the final rename may lose the file.
*/
package ini
