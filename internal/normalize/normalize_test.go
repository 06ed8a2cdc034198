package normalize

import (
	"testing"
)

func TestScript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "crlf unified",
			input: "#!/bin/sh\r\necho hi\r\n",
			want:  "#!/bin/sh\necho hi\n",
		},
		{
			name:  "bare cr unified",
			input: "echo one\recho two",
			want:  "echo one\necho two\n",
		},
		{
			name:  "trailing whitespace stripped, indentation kept",
			input: "if true; then\n    echo hi   \t\nfi\n",
			want:  "if true; then\n    echo hi\nfi\n",
		},
		{
			name:  "trailing empty lines dropped",
			input: "echo hi\n\n\n\n",
			want:  "echo hi\n",
		},
		{
			name:  "exactly one trailing newline added",
			input: "echo hi",
			want:  "echo hi\n",
		},
		{
			name:  "empty input stays empty",
			input: "",
			want:  "",
		},
		{
			name:  "only blank lines collapse to empty",
			input: "\r\n\n  \n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Script(tt.input)
			if got != tt.want {
				t.Errorf("Script(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCodePreservesInternalWhitespace(t *testing.T) {
	input := "if x > 1 {\r\n\ty = \"a  b\"   \r\n}"
	want := "if x > 1 {\n\ty = \"a  b\"   \n}"
	if got := Code(input); got != want {
		t.Errorf("Code() = %q, want %q", got, want)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  https://example.com/hook  ", "https://example.com/hook"},
		{"https://example.com/\r\nhook", "https://example.com/hook"},
		{"https://example.com/a\tb", "https://example.com/ab"},
	}
	for _, tt := range tests {
		if got := URL(tt.input); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Deploy   hook  ", "Deploy hook"},
		{"Deploy\r\nhook", "Deploy hook"},
		{"a\n\nb", "a b"},
	}
	for _, tt := range tests {
		if got := Name(tt.input); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEnvBlock(t *testing.T) {
	input := "  FOO=bar  \r\n\r\nBAZ=qux\n\n"
	want := "FOO=bar\nBAZ=qux"
	if got := EnvBlock(input); got != want {
		t.Errorf("EnvBlock() = %q, want %q", got, want)
	}
}

func TestEnvValueStripsLineBreaks(t *testing.T) {
	input := " multi\r\nline\nvalue "
	want := "multi line value"
	if got := EnvValue(input); got != want {
		t.Errorf("EnvValue() = %q, want %q", got, want)
	}
}

// Every normalizer must be idempotent: normalizing already-normalized content
// is a no-op.
func TestIdempotence(t *testing.T) {
	samples := []string{
		"",
		"plain",
		"  leading and trailing  ",
		"crlf\r\nlines\r\n",
		"cr\ronly",
		"mixed\r\n\rendings\n",
		"trailing spaces   \nand tabs\t\t\n\n\n",
		"\ttab indented\n    space indented\n",
		"FOO=bar\n\n  BAZ=qux  \r\n",
		"https://example.com/\r\n\thook ",
		"name  with\r\nbreaks   and   runs",
	}

	funcs := map[string]func(string) string{
		"Script":      Script,
		"Code":        Code,
		"URL":         URL,
		"Name":        Name,
		"Description": Description,
		"EnvBlock":    EnvBlock,
		"EnvValue":    EnvValue,
		"Output":      Output,
	}

	for fname, f := range funcs {
		for _, s := range samples {
			once := f(s)
			twice := f(once)
			if once != twice {
				t.Errorf("%s not idempotent for %q: once=%q twice=%q", fname, s, once, twice)
			}
		}
	}
}
