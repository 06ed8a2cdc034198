// Package normalize canonicalizes action config text fields at write time so
// every downstream reader sees the same bytes regardless of input origin
// (browser form, API client, pasted editor content).
//
// All functions are idempotent: applying one twice yields the same result as
// applying it once.
package normalize

import (
	"regexp"
	"strings"
)

var (
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	lineBreak = regexp.MustCompile(`\r\n|\r`)
)

// newlines unifies all line endings to \n.
func newlines(s string) string {
	return lineBreak.ReplaceAllString(s, "\n")
}

// Script canonicalizes a shell script body: line endings unified to \n,
// trailing whitespace stripped per line (leading indentation preserved),
// trailing empty lines dropped, exactly one trailing newline.
func Script(s string) string {
	lines := strings.Split(newlines(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Code canonicalizes an embedded code body. Only line endings are unified;
// internal whitespace is semantically significant and must not be altered.
func Code(s string) string {
	return newlines(s)
}

// URL canonicalizes an endpoint URL: surrounding whitespace trimmed and any
// embedded CR/LF/TAB stripped. A single value must never smuggle extra lines
// into logs or headers.
func URL(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t':
			return -1
		}
		return r
	}, s)
}

// Name canonicalizes a short text field: trimmed, internal line breaks
// collapsed to a single space, repeated whitespace collapsed.
func Name(s string) string {
	s = lineBreak.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Description canonicalizes a long text field: trimmed and line endings
// unified to \n, structure otherwise preserved.
func Description(s string) string {
	return strings.TrimSpace(newlines(s))
}

// EnvBlock canonicalizes an environment block: split on line breaks, each
// line trimmed, empty lines dropped, rejoined with \n.
func EnvBlock(s string) string {
	var out []string
	for _, line := range strings.Split(newlines(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// EnvValue sanitizes a value destined for a process environment entry:
// line breaks become spaces, surrounding whitespace is trimmed. Prevents a
// single value from forging additional environment entries.
func EnvValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// Output unifies line endings in captured executor output without otherwise
// altering content.
func Output(s string) string {
	return newlines(s)
}
