package formula

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are removed before formula code runs. Formulas are
// declarative: no process, file, module or debug access.
var blockedGlobals = []string{
	"os", "io", "debug",
	"require", "dofile", "loadfile", "load", "loadstring",
	"module", "package", "collectgarbage",
}

// newSandboxedVM returns a Lua state with only the string, table, math and
// base libraries reachable.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
