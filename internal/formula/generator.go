package formula

import (
	"bytes"
	"fmt"
	"strings"
)

// Generator writes a Formula back out as Lua source.
type Generator struct {
	indent string
}

// NewGenerator creates a generator that indents with two spaces.
func NewGenerator() *Generator {
	return &Generator{indent: "  "}
}

type luaWriter struct {
	buf    bytes.Buffer
	indent string
	depth  int
}

func (w *luaWriter) line(format string, args ...any) {
	w.buf.WriteString(strings.Repeat(w.indent, w.depth))
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *luaWriter) field(name, value string) {
	if value != "" {
		w.line("%s = %s,", name, quoteLuaString(value))
	}
}

func (w *luaWriter) list(name string, values []string) {
	if len(values) == 0 {
		return
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteLuaString(v)
	}
	w.line("%s = { %s },", name, strings.Join(quoted, ", "))
}

func (w *luaWriter) open(name string) {
	w.line("%s = {", name)
	w.depth++
}

func (w *luaWriter) close() {
	w.depth--
	w.line("},")
}

// Generate renders f as a formula file. The output evaluates back to an
// equal Formula.
func (g *Generator) Generate(f *Formula) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	w := &luaWriter{indent: g.indent}
	w.line("-- %s %s", f.Name, f.Version)
	w.line("-- Evaluated in a sandbox. The read-only 'platform' table is available,")
	w.line("-- e.g. platform.when(platform.is_macos, \"-DREADLINE_ROOT=...\").")
	w.line("")
	w.line("formula = {")
	w.depth++

	w.field("name", f.Name)
	w.field("desc", f.Desc)
	w.field("homepage", f.Homepage)
	w.field("version", f.Version)
	w.field("license", f.License)
	w.field("url", f.URL)
	if f.URL != "" {
		// An empty checksum is kept explicit so it is visible for review.
		w.line("sha256 = %s,", quoteLuaString(f.SHA256))
	}
	w.field("signature_url", f.SignatureURL)
	w.field("signing_key", f.SigningKey)

	if f.Head.URL != "" {
		w.open("head")
		w.field("url", f.Head.URL)
		w.field("branch", f.Head.Branch)
		w.close()
	}
	if len(f.Depends.Build)+len(f.Depends.Runtime) > 0 {
		w.open("depends_on")
		w.list("build", f.Depends.Build)
		w.list("runtime", f.Depends.Runtime)
		w.close()
	}

	w.open("build")
	w.field("type", f.Build.Type)
	w.list("flags", f.Build.Flags)
	w.close()

	w.field("binary", f.Binary)

	if f.Caveats != (CaveatSpec{}) {
		w.open("caveats")
		w.field("config_path", f.Caveats.ConfigPath)
		w.field("docs_url", f.Caveats.DocsURL)
		w.close()
	}

	if len(f.Tests) > 0 {
		w.open("tests")
		for _, tc := range f.Tests {
			w.line("{")
			w.depth++
			w.field("name", tc.Name)
			w.field("kind", tc.Kind)
			w.list("args", tc.Args)
			w.field("input", tc.Input)
			w.field("expect", tc.Expect)
			if tc.Regex {
				w.line("regex = true,")
			}
			w.close()
		}
		w.close()
	}

	w.depth--
	w.line("}")
	return w.buf.String(), nil
}

// quoteLuaString quotes a string as a Lua double-quoted literal.
func quoteLuaString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
