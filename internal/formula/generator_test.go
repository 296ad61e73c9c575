package formula

import (
	"context"
	"strings"
	"testing"
)

func TestQuoteLuaString(t *testing.T) {
	tests := map[string]string{
		`plain`:        `"plain"`,
		`say "hi"`:     `"say \"hi\""`,
		`C:\path`:      `"C:\\path"`,
		"echo hi\nexit": `"echo hi\nexit"`,
		"bell\x07":     `"bell\007"`,
	}
	for in, want := range tests {
		if got := quoteLuaString(in); got != want {
			t.Errorf("quoteLuaString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestGenerate_EscapedValuesSurviveParse(t *testing.T) {
	f := Default()
	f.Desc = "quote \" backslash \\ newline \n tab \t"
	f.Tests[1].Input = "echo \"$HOME\"\nexit\n"

	src, err := NewGenerator().Generate(f)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got, err := NewParser(nil).ParseString(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if got.Desc != f.Desc || got.Tests[1].Input != f.Tests[1].Input {
		t.Errorf("escaped values changed: desc=%q input=%q", got.Desc, got.Tests[1].Input)
	}
}

func TestGenerate_KeepsEmptyChecksumVisible(t *testing.T) {
	src, err := NewGenerator().Generate(Default())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, `sha256 = "",`) {
		t.Errorf("generated formula should carry an explicit empty sha256:\n%s", src)
	}
}

func TestGenerate_RejectsInvalid(t *testing.T) {
	f := Default()
	f.Binary = ""
	if _, err := NewGenerator().Generate(f); err == nil {
		t.Fatal("expected validation error")
	}
}
