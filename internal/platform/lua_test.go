package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func evalPlatform(t *testing.T, info *Info, code string) lua.LValue {
	t.Helper()
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}
	if err := L.DoString(code); err != nil {
		t.Fatalf("DoString(%q) error = %v", code, err)
	}
	v := L.Get(-1)
	L.Pop(1)
	return v
}

func TestInjectPlatformTable(t *testing.T) {
	linux := &Info{OS: "linux", Arch: "amd64", ArchRaw: "amd64", Platform: "ubuntu", Family: FamilyDebian, Version: "24.04"}
	mac := &Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64"}

	tests := []struct {
		name string
		info *Info
		code string
		want lua.LValue
	}{
		{"linux os", linux, `return platform.os`, lua.LString("linux")},
		{"linux flag", linux, `return platform.is_linux`, lua.LTrue},
		{"linux distro id", linux, `return platform.distro.id`, lua.LString("ubuntu")},
		{"linux distro family", linux, `return platform.distro.family`, lua.LString("debian")},
		{"linux no homebrew", linux, `return platform.homebrew_prefix`, lua.LNil},
		{"mac flag", mac, `return platform.is_macos`, lua.LTrue},
		{"apple silicon", mac, `return platform.is_apple_silicon`, lua.LTrue},
		{"apple silicon homebrew", mac, `return platform.homebrew_prefix`, lua.LString("/opt/homebrew")},
		{"mac has no distro", mac, `return platform.distro`, lua.LNil},
		{"when true", mac, `return platform.when(platform.is_macos, "-DX=1")`, lua.LString("-DX=1")},
		{"when false", linux, `return platform.when(platform.is_macos, "-DX=1")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalPlatform(t, tt.info, tt.code)
			if got.Type() != tt.want.Type() || got.String() != tt.want.String() {
				t.Errorf("%s = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Arch: "amd64"}); err != nil {
		t.Fatal(err)
	}

	for _, code := range []string{
		`platform.os = "windows"`,
		`platform.new_field = 1`,
		`setmetatable(platform, {})`,
	} {
		err := L.DoString(code)
		if err == nil {
			t.Errorf("%q: expected error", code)
			continue
		}
		if !strings.Contains(err.Error(), "read-only") && !strings.Contains(err.Error(), "protected") {
			t.Errorf("%q: unexpected error %v", code, err)
		}
	}
}
