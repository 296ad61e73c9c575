package formula

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Zixiao-System/leizi-formula/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser evaluates formula files with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a parser. A nil detector leaves "platform" undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseError represents a formula evaluation error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Raw Lua error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseFile reads and evaluates the formula at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString evaluates formula source. The VM is bound to ctx, so a
// cancelled context aborts runaway formula code.
func (p *Parser) ParseString(ctx context.Context, code string) (*Formula, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(code); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("evaluate formula: %w", ctxErr)
		}
		return nil, &ParseError{Message: "Lua error", Detail: err.Error()}
	}

	f, err := extractFormula(L)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func extractFormula(L *lua.LState) (*Formula, error) {
	val := L.GetGlobal("formula")
	table, ok := val.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'formula' table",
			Detail:  fmt.Sprintf("expected table, got %s", val.Type()),
		}
	}

	r := reader{}
	f := &Formula{
		Name:         r.str(table, "name"),
		Desc:         r.str(table, "desc"),
		Homepage:     r.str(table, "homepage"),
		Version:      r.str(table, "version"),
		License:      r.str(table, "license"),
		URL:          r.str(table, "url"),
		SHA256:       strings.ToLower(r.str(table, "sha256")),
		SignatureURL: r.str(table, "signature_url"),
		SigningKey:   r.str(table, "signing_key"),
		Binary:       r.str(table, "binary"),
	}

	if head := r.table(table, "head"); head != nil {
		f.Head = Head{URL: r.str(head, "head.url"), Branch: r.str(head, "head.branch")}
	}
	if deps := r.table(table, "depends_on"); deps != nil {
		f.Depends = Depends{
			Build:   r.strList(deps, "depends_on.build"),
			Runtime: r.strList(deps, "depends_on.runtime"),
		}
	}
	if build := r.table(table, "build"); build != nil {
		f.Build = BuildSpec{Type: r.str(build, "build.type"), Flags: r.strList(build, "build.flags")}
	}
	if caveats := r.table(table, "caveats"); caveats != nil {
		f.Caveats = CaveatSpec{
			ConfigPath: r.str(caveats, "caveats.config_path"),
			DocsURL:    r.str(caveats, "caveats.docs_url"),
		}
	}
	if tests := r.table(table, "tests"); tests != nil {
		n := tests.Len()
		for i := 1; i <= n; i++ {
			field := fmt.Sprintf("tests[%d]", i-1)
			tt, ok := tests.RawGetInt(i).(*lua.LTable)
			if !ok {
				r.fail(field, "expected table")
				break
			}
			f.Tests = append(f.Tests, TestSpec{
				Name:   r.str(tt, field+".name"),
				Kind:   r.str(tt, field+".kind"),
				Args:   r.strList(tt, field+".args"),
				Input:  r.str(tt, field+".input"),
				Expect: r.str(tt, field+".expect"),
				Regex:  r.boolean(tt, field+".regex"),
			})
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

const maxListLen = 1024

// reader extracts typed fields and records the first type mismatch.
// Field names may be dotted paths; the last segment is the table key.
type reader struct {
	err error
}

func (r *reader) fail(field, msg string) {
	if r.err == nil {
		r.err = &ValidationError{Field: field, Message: msg}
	}
}

func key(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

func (r *reader) str(t *lua.LTable, field string) string {
	switch v := t.RawGetString(key(field)).(type) {
	case *lua.LNilType:
		return ""
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		r.fail(field, fmt.Sprintf("expected string, got %s", v.Type()))
		return ""
	}
}

func (r *reader) boolean(t *lua.LTable, field string) bool {
	switch v := t.RawGetString(key(field)).(type) {
	case *lua.LNilType:
		return false
	case lua.LBool:
		return bool(v)
	default:
		r.fail(field, fmt.Sprintf("expected boolean, got %s", v.Type()))
		return false
	}
}

func (r *reader) table(t *lua.LTable, field string) *lua.LTable {
	switch v := t.RawGetString(key(field)).(type) {
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		return v
	default:
		r.fail(field, fmt.Sprintf("expected table, got %s", v.Type()))
		return nil
	}
}

// strList reads an array of strings. Nil holes left by platform
// conditionals (platform.when(...)) are skipped.
func (r *reader) strList(t *lua.LTable, field string) []string {
	list := r.table(t, field)
	if list == nil {
		return nil
	}
	maxN := 0
	list.ForEach(func(k, _ lua.LValue) {
		if n, ok := k.(lua.LNumber); ok && int(n) > maxN {
			maxN = int(n)
		}
	})
	if maxN > maxListLen {
		r.fail(field, fmt.Sprintf("list too long (%d entries, max %d)", maxN, maxListLen))
		return nil
	}
	var out []string
	for i := 1; i <= maxN; i++ {
		switch v := list.RawGetInt(i).(type) {
		case lua.LString:
			out = append(out, string(v))
		case *lua.LNilType:
		default:
			r.fail(field, fmt.Sprintf("expected string elements, got %s", v.Type()))
		}
	}
	return out
}

// FormatError formats a formula error for display. Unless verbose, the Lua
// stack traceback is dropped.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}
